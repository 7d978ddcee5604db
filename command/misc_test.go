package command

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoJoinsArgsWithNewline(t *testing.T) {
	cmd, out, _, _ := newCmd("echo", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "hello", "world"))
	assert.Equal(t, "hello world\n", out.String())
}

func TestEchoDashNSuppressesNewline(t *testing.T) {
	cmd, out, _, _ := newCmd("echo", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "-n", "hi"))
	assert.Equal(t, "hi", out.String())
}

func TestPrintfExpandsConversions(t *testing.T) {
	cmd, out, _, _ := newCmd("printf", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "%s is %d\\n", "x", "3"))
	assert.Equal(t, "x is 3\n", out.String())
}

func TestSeqRangeWithStep(t *testing.T) {
	cmd, out, _, _ := newCmd("seq", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "1", "2", "5"))
	assert.Equal(t, "1\n3\n5\n", out.String())
}

func TestSeqRejectsZeroStep(t *testing.T) {
	cmd, _, _, _ := newCmd("seq", "/")
	err := cmd.RunContext(context.Background(), "1", "0", "5")
	assert.Error(t, err)
}

func TestFindFiltersByNameAndType(t *testing.T) {
	cmd, out, _, fs := newCmd("find", "/")
	require.NoError(t, fs.MkdirAll("/root/sub", 0o755))
	require.NoError(t, fs.WriteFile("/root/a.txt", []byte("x"), 0o644))
	require.NoError(t, fs.WriteFile("/root/sub/b.txt", []byte("y"), 0o644))
	require.NoError(t, fs.WriteFile("/root/c.log", []byte("z"), 0o644))

	require.NoError(t, cmd.RunContext(context.Background(), "/root", "-name", "*.txt", "-type", "f"))
	assert.Equal(t, "/root/a.txt\n/root/sub/b.txt\n", out.String())
}

func TestSedSubstitutesFirstMatch(t *testing.T) {
	cmd, out, _, _ := newCmd("sed", "/")
	cmd.SetIO(strings.NewReader("foo bar foo\n"), out, io.Discard)
	require.NoError(t, cmd.RunContext(context.Background(), "s/foo/baz/"))
	assert.Equal(t, "baz bar foo\n", out.String())
}

func TestSedGlobalFlagReplacesAll(t *testing.T) {
	cmd, out, _, _ := newCmd("sed", "/")
	cmd.SetIO(strings.NewReader("foo bar foo\n"), out, io.Discard)
	require.NoError(t, cmd.RunContext(context.Background(), "s/foo/baz/g"))
	assert.Equal(t, "baz bar baz\n", out.String())
}

func TestEnvRunsSubcommandWithoutAssignments(t *testing.T) {
	cmd, out, _, _ := newCmd("env", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "FOO=bar", "echo", "hi"))
	assert.Equal(t, "hi\n", out.String())
}

func TestEnvUnknownCommandFails(t *testing.T) {
	cmd, _, _, _ := newCmd("env", "/")
	err := cmd.RunContext(context.Background(), "nonexistent-coreutil")
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 127, exitErr.Code)
}

func TestXargsAppendsStdinWordsAsArgs(t *testing.T) {
	cmd, out, _, _ := newCmd("xargs", "/")
	cmd.SetIO(strings.NewReader("one two three\n"), out, io.Discard)
	require.NoError(t, cmd.RunContext(context.Background(), "echo", "prefix"))
	assert.Equal(t, "prefix one two three\n", out.String())
}

func TestTimeoutPropagatesSubcommandExit(t *testing.T) {
	cmd, out, _, _ := newCmd("timeout", "/")
	require.NoError(t, cmd.RunContext(context.Background(), "1s", "echo", "done"))
	assert.Equal(t, "done\n", out.String())
}
