package cases

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/intercase/internal/codec"
	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/ir"
)

const getX = "52d116e1fae40065f993ab834173ff9a3f774cf8daccb0099f6b960b1f6a134a"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newLoader(t *testing.T, opts ...Option) *Loader {
	t.Helper()
	c, err := codec.New(codec.Options{})
	require.NoError(t, err)
	l, err := NewLoader(c, opts...)
	require.NoError(t, err)
	return l
}

func TestLoadMainOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yml"), `- request: {method: GET, path: /x}
  response: {status: 200}
`)

	set, err := newLoader(t).Load(dir, "svc")
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	c := set.Cases()[0]
	assert.Equal(t, getX, c.ID)
	assert.Equal(t, ir.IRObject{"status": ir.IRInt(200)}, c.Response)
	assert.Equal(t, filepath.Join(dir, "svc.yml"), c.Source.Path)
	assert.Equal(t, 0, c.Source.Index)
	assert.Equal(t, 1, c.Source.Line)
	assert.True(t, set.Has(getX))
	assert.Empty(t, set.Diagnostics())
}

func TestLoadInsertionOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yml"), `- request: {path: /main-1}
  response: {}
- request: {path: /main-2}
  response: {}
`)
	writeFile(t, filepath.Join(dir, "svc", "b.yml"), `- request: {path: /b}
  response: {}
`)
	writeFile(t, filepath.Join(dir, "svc", "a.yml"), `- request: {path: /a-1}
  response: {}
---
- request: {path: /a-2}
  response: {}
`)
	writeFile(t, filepath.Join(dir, "svc", ".hidden.yml"), "not: [valid\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "svc", "nested"), 0o755))

	set, err := newLoader(t).Load(dir, "svc")
	require.NoError(t, err)

	var paths []string
	for _, c := range set.Cases() {
		paths = append(paths, string(c.Request["path"].(ir.IRString)))
	}
	assert.Equal(t, []string{"/main-1", "/main-2", "/a-1", "/a-2", "/b"}, paths)
	assert.Equal(t, []string{
		filepath.Join(dir, "svc.yml"),
		filepath.Join(dir, "svc", "a.yml"),
		filepath.Join(dir, "svc", "b.yml"),
	}, set.Files())

	second, ok := set.Get(ir.MustRequestID(ir.IRObject{"path": ir.IRString("/a-2")}, ir.Selection{}))
	require.True(t, ok)
	assert.Equal(t, 1, second.Source.Document)
}

func TestLoadIdenticalDuplicateKeepsFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yml"), `- request: {method: GET, path: /x}
  response: {status: 200}
`)
	writeFile(t, filepath.Join(dir, "svc", "copy.yml"), `- request: {path: /x, method: GET}
  response: {status: 200}
`)

	core, logs := observer.New(zap.WarnLevel)
	set, err := newLoader(t, WithLogger(zap.New(core))).Load(dir, "svc")
	require.NoError(t, err)

	require.Equal(t, 1, set.Len())
	c, _ := set.Get(getX)
	assert.Equal(t, filepath.Join(dir, "svc.yml"), c.Source.Path)

	require.Len(t, set.Diagnostics(), 1)
	d := set.Diagnostics()[0]
	assert.Equal(t, diag.KindDuplicateCase, d.Kind)
	assert.Equal(t, getX, d.Identifier)
	require.Len(t, d.Locations, 2)
	assert.Equal(t, filepath.Join(dir, "svc", "copy.yml"), d.Locations[1].Path)

	assert.Equal(t, 1, logs.FilterMessage("duplicate case ignored").Len())
}

func TestLoadConflictingDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yml"), `- request: {method: GET, path: /x}
  response: {status: 200}
`)
	writeFile(t, filepath.Join(dir, "svc", "other.yml"), `- request: {method: GET, path: /x}
  response: {status: 404}
`)

	_, err := newLoader(t).Load(dir, "svc")
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.KindDuplicateCaseConflict))

	d, ok := diag.AsDiagnostic(err)
	require.True(t, ok)
	assert.Equal(t, getX, d.Identifier)
	require.Len(t, d.Locations, 2)
	assert.Equal(t, filepath.Join(dir, "svc.yml"), d.Locations[0].Path)
	assert.Equal(t, filepath.Join(dir, "svc", "other.yml"), d.Locations[1].Path)
}

func TestLoadIgnoreFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yml"), `- description: first wording
  request: {path: /x}
  response: {status: 200}
- description: second wording
  request: {path: /x}
  response: {status: 200}
`)

	_, err := newLoader(t).Load(dir, "svc")
	assert.True(t, diag.IsKind(err, diag.KindDuplicateCaseConflict))

	set, err := newLoader(t, WithIgnoreFields("description")).Load(dir, "svc")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.Len(t, set.Diagnostics(), 1)
}

func TestLoadSelection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yml"), `- request: {path: /x, headers: {trace: a}}
  response: {status: 200}
- request: {path: /x, headers: {trace: b}}
  response: {status: 200}
`)

	set, err := newLoader(t).Load(dir, "svc")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	set, err = newLoader(t, WithSelection(ir.Selection{Exclude: []string{"headers.trace"}})).Load(dir, "svc")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		index   int
		line    int
	}{
		{
			name:    "missing response",
			content: "- request: {path: /ok}\n  response: {}\n- request: {path: /x}\n",
			index:   1,
			line:    3,
		},
		{
			name:    "request not a mapping",
			content: "- request: GET /x\n  response: {}\n",
			index:   0,
			line:    1,
		},
		{
			name:    "document not a sequence",
			content: "request: {path: /x}\nresponse: {}\n",
			index:   -1,
			line:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "svc.yml"), tt.content)

			_, err := newLoader(t).Load(dir, "svc")
			require.Error(t, err)
			require.True(t, diag.IsKind(err, diag.KindMalformedDocument), "got %v", err)

			d, _ := diag.AsDiagnostic(err)
			require.Len(t, d.Locations, 1)
			assert.Equal(t, tt.index, d.Locations[0].Index)
			assert.Equal(t, tt.line, d.Locations[0].Line)
		})
	}
}

func TestLoadMalformedExtensionFailsWholeLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yml"), "- request: {}\n  response: {}\n")
	writeFile(t, filepath.Join(dir, "svc", "bad.yml"), "- request: !!python/object:os.system {}\n  response: {}\n")

	_, err := newLoader(t).Load(dir, "svc")
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.KindMalformedDocument))
	assert.Contains(t, err.Error(), "bad.yml")
}

func TestLoadEmptyDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yml"), "")
	writeFile(t, filepath.Join(dir, "svc", "a.yml"), "---\n---\n- request: {}\n  response: {}\n")

	set, err := newLoader(t).Load(dir, "svc")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestLoadMissingMain(t *testing.T) {
	_, err := newLoader(t).Load(t.TempDir(), "svc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main case document")
}

func TestLoadCustomExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yaml"), "- request: {}\n  response: {}\n")

	set, err := newLoader(t, WithExtension("yaml")).Load(dir, "svc")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestRead(t *testing.T) {
	set, err := newLoader(t).Read("<stdin>", []byte("- request: {method: GET, path: /x}\n  response: {status: 200}\n"))
	require.NoError(t, err)
	assert.True(t, set.Has(getX))
	assert.Equal(t, []string{"<stdin>"}, set.Files())
}

func TestLoadLargeCollectionHasNoCollisions(t *testing.T) {
	var b strings.Builder
	n := 0
	for i := 0; i < 200; i++ {
		// Same digits in several types and shapes must not collide.
		for _, v := range []string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%q", fmt.Sprint(i)),
			fmt.Sprintf("%d.0", i),
			fmt.Sprintf("[%d]", i),
			fmt.Sprintf("{n: %d}", i),
		} {
			fmt.Fprintf(&b, "- request: {path: /items, value: %s}\n  response: {}\n", v)
			n++
		}
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "svc.yml"), b.String())

	set, err := newLoader(t).Load(dir, "svc")
	require.NoError(t, err)
	assert.Equal(t, n, set.Len())
	assert.Empty(t, set.Diagnostics())
	assert.Len(t, set.IDs(), n)
}
