package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatcher(t *testing.T, dirs []string, opts ...Option) (<-chan []string, context.CancelFunc, <-chan error) {
	t.Helper()

	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithDebounce(50 * time.Millisecond)}, opts...)
	w, err := New(dirs, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 8)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, paths []string) error {
			batches <- paths
			return nil
		})
	}()
	return batches, cancel, done
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case paths := <-batches:
		return paths
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
		return nil
	}
}

func stop(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherReportsDocumentChanges(t *testing.T) {
	dir := t.TempDir()
	batches, cancel, done := startWatcher(t, []string{dir})
	defer stop(t, cancel, done)

	doc := filepath.Join(dir, "svc.yml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(doc, []byte("- request: {}\n"), 0o644))
	require.NoError(t, os.WriteFile(doc, []byte("- request: {a: 1}\n"), 0o644))

	assert.Equal(t, []string{doc}, waitBatch(t, batches))
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	batches, cancel, done := startWatcher(t, []string{dir})
	defer stop(t, cancel, done)

	sub := filepath.Join(dir, "svc")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to add the new directory.
	time.Sleep(100 * time.Millisecond)

	doc := filepath.Join(sub, "extra.yaml")
	require.NoError(t, os.WriteFile(doc, []byte("[]\n"), 0o644))

	paths := waitBatch(t, batches)
	assert.Contains(t, paths, doc)
}

func TestNewSkipsMissingDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir, filepath.Join(dir, "missing"), dir})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []string{filepath.Clean(dir)}, w.Dirs())
}

func TestCloseTwice(t *testing.T) {
	w, err := New([]string{t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestIsDocument(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"svc.yml", true},
		{"a/b/svc.update.yml", true},
		{"svc.YAML", true},
		{".tmp-svc.yml-123", false},
		{".hidden.yml", false},
		{"svc.json", false},
		{"svc", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDocument(tt.path))
		})
	}
}

func TestDocumentFilter(t *testing.T) {
	ext := filepath.Join("interfaces", "svc")
	isDocument := DocumentFilter([]string{".cases"}, ext)

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("interfaces", "svc.cases"), true},
		{filepath.Join("interfaces", "svc.yml"), true},
		{filepath.Join(ext, "extra.json"), true},
		{filepath.Join(ext, "extra"), true},
		{filepath.Join(ext, ".tmp-extra-1"), false},
		{filepath.Join("interfaces", "notes.txt"), false},
		{filepath.Join(ext, "nested", "deep.txt"), false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isDocument(tt.path))
		})
	}
}

func TestWatcherUsesFilter(t *testing.T) {
	dir := t.TempDir()
	batches, cancel, done := startWatcher(t, []string{dir}, WithFilter(DocumentFilter(nil, dir)))
	defer stop(t, cancel, done)

	path := filepath.Join(dir, "extra.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	assert.Contains(t, waitBatch(t, batches), path)
}
