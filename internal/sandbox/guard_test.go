package sandbox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeswarm/refactor-swarm/internal/sandbox"
)

func newGuard(t *testing.T) (*sandbox.Guard, string) {
	t.Helper()
	dir := t.TempDir()
	g, err := sandbox.NewGuard(dir)
	require.NoError(t, err)
	return g, dir
}

func TestReadWriteInsideRoot(t *testing.T) {
	g, _ := newGuard(t)

	require.NoError(t, g.WriteFile("pkg/main.py", []byte("print('hi')\n")))
	data, err := g.ReadFile("pkg/main.py")
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))
}

func TestEscapeByDotDotRejected(t *testing.T) {
	g, _ := newGuard(t)

	err := g.WriteFile("../outside.txt", []byte("nope"))
	var verr *sandbox.ViolationError
	require.ErrorAs(t, err, &verr)

	_, err = g.ReadFile("../../etc/passwd")
	assert.ErrorAs(t, err, &verr)
}

func TestEscapeByAbsolutePathRejected(t *testing.T) {
	g, _ := newGuard(t)

	assert.False(t, g.Allowed("/etc/passwd"))
	_, err := g.ReadFile("/etc/passwd")
	var verr *sandbox.ViolationError
	assert.ErrorAs(t, err, &verr)
}

func TestEscapeBySymlinkRejected(t *testing.T) {
	g, dir := newGuard(t)

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0600))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	_, err := g.ReadFile("link/secret.txt")
	var verr *sandbox.ViolationError
	assert.ErrorAs(t, err, &verr)
}

func TestAllowed(t *testing.T) {
	g, dir := newGuard(t)

	assert.True(t, g.Allowed("a.py"))
	assert.True(t, g.Allowed(filepath.Join(dir, "sub", "b.py")))
	assert.False(t, g.Allowed("../a.py"))
}

func TestListFilesFiltersAndSkips(t *testing.T) {
	g, dir := newGuard(t)

	require.NoError(t, g.WriteFile("a.py", []byte("")))
	require.NoError(t, g.WriteFile("sub/b.py", []byte("")))
	require.NoError(t, g.WriteFile("notes.md", []byte("")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "__pycache__"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "__pycache__", "c.py"), []byte(""), 0600))

	files, err := g.ListFiles(".py")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.py", filepath.Join("sub", "b.py")}, files)
}

func TestNewGuardRejectsMissingDir(t *testing.T) {
	_, err := sandbox.NewGuard(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
