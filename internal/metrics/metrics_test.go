package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTextfile(t *testing.T, r *Recorder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intercase.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestObserve(t *testing.T) {
	r := New()
	r.ObserveLoad("users", 12, 2)
	r.ObserveLoad("users", 13, 1)
	r.ObserveReconcile("users", 3, 1, 5, 2)
	r.ObserveStaged("users", 4)

	out := readTextfile(t, r)
	for _, line := range []string{
		`intercase_cases{service="users"} 13`,
		`intercase_duplicate_cases_total{service="users"} 3`,
		`intercase_augmentation_updates_total{outcome="inserted",service="users"} 3`,
		`intercase_augmentation_updates_total{outcome="updated",service="users"} 1`,
		`intercase_augmentation_updates_total{outcome="unchanged",service="users"} 5`,
		`intercase_orphan_updates_total{service="users"} 2`,
		`intercase_staged_updates_total{service="users"} 4`,
	} {
		assert.Contains(t, out, line)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveLoad("users", 7, 0)
	r.ObserveDuration("users", "load", 15*time.Millisecond)

	out := readTextfile(t, r)
	assert.Contains(t, out, `intercase_cases{service="users"} 7`)
	assert.Contains(t, out, `intercase_operation_duration_seconds_count{operation="load",service="users"} 1`)
}

func TestNilRecorderIsNoOp(t *testing.T) {
	var r *Recorder
	r.ObserveLoad("users", 1, 1)
	r.ObserveReconcile("users", 1, 1, 1, 1)
	r.ObserveStaged("users", 1)
	r.ObserveDuration("users", "load", time.Second)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}
