package vfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.WriteFile("/tmp/greeting.txt", []byte("hello"), 0o644))

	data, err := fs.ReadFile("/tmp/greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestReadMissingFileTranslatesENOENT(t *testing.T) {
	fs := NewMemory()
	_, err := fs.ReadFile("/nope.txt")
	require.Error(t, err)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ENOENT", verr.Code)
	assert.Equal(t, "No such file or directory", verr.Message())
}

func TestMkdirAllThenReadDir(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.MkdirAll("/a/b/c", 0o755))
	require.NoError(t, fs.WriteFile("/a/b/one.txt", []byte("1"), 0o644))
	require.NoError(t, fs.WriteFile("/a/b/two.txt", []byte("2"), 0o644))

	infos, err := fs.ReadDir("/a/b")
	require.NoError(t, err)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name())
	}
	assert.ElementsMatch(t, []string{"c", "one.txt", "two.txt"}, names)
}

func TestSymlinkResolvesThroughRealpath(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.WriteFile("/real.txt", []byte("payload"), 0o644))
	require.NoError(t, fs.Symlink("/real.txt", "/link.txt"))

	data, err := fs.ReadFile("/link.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	target, err := fs.Readlink("/link.txt")
	require.NoError(t, err)
	assert.Equal(t, "/real.txt", target)
}

func TestSymlinkCycleIsRejected(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.Symlink("/b", "/a"))
	require.NoError(t, fs.Symlink("/a", "/b"))

	_, err := fs.Realpath("/a")
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "EINVAL", verr.Code)
}

func TestRemoveAllDropsSymlinksUnderPrefix(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.MkdirAll("/dir", 0o755))
	require.NoError(t, fs.WriteFile("/dir/file.txt", []byte("x"), 0o644))
	require.NoError(t, fs.Symlink("/dir/file.txt", "/dir/link.txt"))

	require.NoError(t, fs.RemoveAll("/dir"))

	_, err := fs.Readlink("/dir/link.txt")
	require.Error(t, err)
}

func TestAllPathsIncludesWrittenFiles(t *testing.T) {
	fs := NewMemory()
	require.NoError(t, fs.WriteFile("/one.txt", []byte("1"), 0o644))
	require.NoError(t, fs.WriteFile("/sub/two.txt", []byte("2"), 0o644))

	paths, err := fs.AllPaths()
	require.NoError(t, err)
	assert.Contains(t, paths, "/one.txt")
	assert.Contains(t, paths, "/sub/two.txt")
}

func TestLooksLikeScriptDetectsShebang(t *testing.T) {
	assert.True(t, LooksLikeScript([]byte("#!/bin/sh\necho hi\n")))
	assert.True(t, LooksLikeScript([]byte("#!/usr/bin/env bash\necho hi\n")))
	assert.False(t, LooksLikeScript([]byte("echo hi\n")))
	assert.False(t, LooksLikeScript([]byte("#!/bin/python\n")))
}

func TestOverlayIsReadOnlyAtBaseLayer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/seed.txt", []byte("seed"), 0o644))

	fs := NewOverlay(dir)
	data, err := fs.ReadFile("/seed.txt")
	require.NoError(t, err)
	assert.Equal(t, "seed", string(data))

	require.NoError(t, fs.WriteFile("/seed.txt", []byte("changed"), 0o644))
	data, err = fs.ReadFile("/seed.txt")
	require.NoError(t, err)
	assert.Equal(t, "changed", string(data))

	hostData, err := os.ReadFile(dir + "/seed.txt")
	require.NoError(t, err)
	assert.Equal(t, "seed", string(hostData), "host file must not be mutated by sandbox writes")
}
