package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffIdenticalFilesProducesNoOutput(t *testing.T) {
	cmd, out, _, fs := newCmd("diff", "/")
	require.NoError(t, fs.WriteFile("/a.txt", []byte("same\n"), 0o644))
	require.NoError(t, fs.WriteFile("/b.txt", []byte("same\n"), 0o644))

	require.NoError(t, cmd.RunContext(context.Background(), "a.txt", "b.txt"))
	assert.Empty(t, out.String())
}

func TestDiffDifferingFilesReportsExitOne(t *testing.T) {
	cmd, out, _, fs := newCmd("diff", "/")
	require.NoError(t, fs.WriteFile("/a.txt", []byte("foo\n"), 0o644))
	require.NoError(t, fs.WriteFile("/b.txt", []byte("bar\n"), 0o644))

	err := cmd.RunContext(context.Background(), "a.txt", "b.txt")
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.NotEmpty(t, out.String())
}

func TestDiffMissingFileReportsExitTwo(t *testing.T) {
	cmd, _, _, fs := newCmd("diff", "/")
	require.NoError(t, fs.WriteFile("/a.txt", []byte("foo\n"), 0o644))

	err := cmd.RunContext(context.Background(), "a.txt", "missing.txt")
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
