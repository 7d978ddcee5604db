package command

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-zhang/shellbox/vfs"
)

// newCmd builds a Command wired against a fresh in-memory filesystem and
// buffered IO, the shape every sandbox component hands a coreutil.
func newCmd(name, dir string) (Command, *bytes.Buffer, *bytes.Buffer, *vfs.FileSystem) {
	ctor, ok := Lookup(name)
	if !ok {
		panic("no such command: " + name)
	}
	cmd := ctor()
	var out, errOut bytes.Buffer
	fs := vfs.NewMemory()
	cmd.SetIO(bytes.NewReader(nil), &out, &errOut)
	cmd.SetWorkingDir(dir)
	cmd.SetLookupEnv(func(string) (string, bool) { return "", false })
	cmd.SetFS(fs)
	return cmd, &out, &errOut, fs
}

func TestCatReadsFromFilesystem(t *testing.T) {
	cmd, out, _, fs := newCmd("cat", "/")
	require.NoError(t, fs.WriteFile("/hello.txt", []byte("hi there\n"), 0o644))
	require.NoError(t, cmd.RunContext(context.Background(), "hello.txt"))
	assert.Equal(t, "hi there\n", out.String())
}

func TestCatMissingFileReturnsExitError(t *testing.T) {
	cmd, _, _, _ := newCmd("cat", "/")
	err := cmd.RunContext(context.Background(), "missing.txt")
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
}

func TestMkdirPCreatesNestedDirs(t *testing.T) {
	cmd, _, _, fs := newCmd("mkdir", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "-p", "/a/b/c"))
	info, err := fs.Stat("/a/b/c")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMkdirRejectsExistingDirectory(t *testing.T) {
	cmd, _, _, fs := newCmd("mkdir", "/")
	require.NoError(t, fs.MkdirAll("/existing", 0o755))
	err := cmd.RunContext(context.Background(), "/existing")
	assert.Error(t, err)
}

func TestTouchCreatesEmptyFile(t *testing.T) {
	cmd, _, _, fs := newCmd("touch", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "new.txt"))
	data, err := fs.ReadFile("/new.txt")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestCpRecursiveCopiesTree(t *testing.T) {
	cmd, _, _, fs := newCmd("cp", "/")
	require.NoError(t, fs.MkdirAll("/src/nested", 0o755))
	require.NoError(t, fs.WriteFile("/src/file.txt", []byte("a"), 0o644))
	require.NoError(t, fs.WriteFile("/src/nested/inner.txt", []byte("b"), 0o644))

	require.NoError(t, cmd.RunContext(context.Background(), "-r", "/src", "/dst"))

	data, err := fs.ReadFile("/dst/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
	data, err = fs.ReadFile("/dst/nested/inner.txt")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestCpDirectoryWithoutRecursiveFails(t *testing.T) {
	cmd, _, _, fs := newCmd("cp", "/")
	require.NoError(t, fs.MkdirAll("/src", 0o755))
	err := cmd.RunContext(context.Background(), "/src", "/dst")
	assert.Error(t, err)
}

func TestMvRenamesFile(t *testing.T) {
	cmd, _, _, fs := newCmd("mv", "/")
	require.NoError(t, fs.WriteFile("/old.txt", []byte("x"), 0o644))
	require.NoError(t, cmd.RunContext(context.Background(), "/old.txt", "/new.txt"))
	_, err := fs.Stat("/old.txt")
	assert.Error(t, err)
	data, err := fs.ReadFile("/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestRmDirectoryRequiresRecursive(t *testing.T) {
	cmd, _, _, fs := newCmd("rm", "/")
	require.NoError(t, fs.MkdirAll("/dir", 0o755))
	err := cmd.RunContext(context.Background(), "/dir")
	assert.Error(t, err)
}

func TestRmForceIgnoresMissing(t *testing.T) {
	cmd, _, _, _ := newCmd("rm", "/")
	err := cmd.RunContext(context.Background(), "-f", "/nope.txt")
	assert.NoError(t, err)
}

func TestLnRejectsHardLinks(t *testing.T) {
	cmd, _, _, fs := newCmd("ln", "/")
	require.NoError(t, fs.WriteFile("/a.txt", []byte("a"), 0o644))
	err := cmd.RunContext(context.Background(), "/a.txt", "/b.txt")
	assert.Error(t, err)
}

func TestLnSymbolicCreatesLink(t *testing.T) {
	cmd, _, _, fs := newCmd("ln", "/")
	require.NoError(t, fs.WriteFile("/a.txt", []byte("a"), 0o644))
	require.NoError(t, cmd.RunContext(context.Background(), "-s", "/a.txt", "/b.txt"))
	data, err := fs.ReadFile("/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestPwdReportsWorkingDir(t *testing.T) {
	cmd, out, _, _ := newCmd("pwd", "/some/dir")
	require.NoError(t, cmd.RunContext(context.Background()))
	assert.Equal(t, "/some/dir\n", out.String())
}

func TestBasenameStripsSuffix(t *testing.T) {
	cmd, out, _, _ := newCmd("basename", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "/a/b/file.tar.gz", ".tar.gz"))
	assert.Equal(t, "file\n", out.String())
}

func TestDirnameReturnsParent(t *testing.T) {
	cmd, out, _, _ := newCmd("dirname", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "/a/b/file.txt"))
	assert.Equal(t, "/a/b\n", out.String())
}
