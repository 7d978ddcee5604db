package command

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-zhang/shellbox/vfs"
)

func runWithStdin(t *testing.T, name string, stdin string, args ...string) (string, error) {
	t.Helper()
	ctor, ok := Lookup(name)
	require.True(t, ok, "command %q not registered", name)
	cmd := ctor()
	var out, errOut bytes.Buffer
	cmd.SetIO(bytes.NewBufferString(stdin), &out, &errOut)
	cmd.SetWorkingDir("/")
	cmd.SetLookupEnv(func(string) (string, bool) { return "", false })
	cmd.SetFS(vfs.NewMemory())
	err := cmd.RunContext(context.Background(), args...)
	return out.String(), err
}

func TestWcCountsLinesWordsBytes(t *testing.T) {
	out, err := runWithStdin(t, "wc", "one two\nthree\n")
	require.NoError(t, err)
	assert.Equal(t, "      2       3      14\n", out)
}

func TestHeadLimitsLineCount(t *testing.T) {
	out, err := runWithStdin(t, "head", "1\n2\n3\n4\n", "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", out)
}

func TestTailLimitsToLastLines(t *testing.T) {
	out, err := runWithStdin(t, "tail", "1\n2\n3\n4\n", "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, "3\n4\n", out)
}

func TestSortNumericReverse(t *testing.T) {
	out, err := runWithStdin(t, "sort", "3\n1\n2\n", "-n", "-r")
	require.NoError(t, err)
	assert.Equal(t, "3\n2\n1\n", out)
}

func TestSortUniqueDedupes(t *testing.T) {
	out, err := runWithStdin(t, "sort", "b\na\na\n", "-u")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)
}

func TestUniqCountsRuns(t *testing.T) {
	out, err := runWithStdin(t, "uniq", "a\na\nb\n", "-c")
	require.NoError(t, err)
	assert.Equal(t, "      2 a\n      1 b\n", out)
}

func TestCutSelectsFields(t *testing.T) {
	out, err := runWithStdin(t, "cut", "a:b:c\n", "-d", ":", "-f", "1,3")
	require.NoError(t, err)
	assert.Equal(t, "a:c\n", out)
}

func TestTrDeletesCharacters(t *testing.T) {
	out, err := runWithStdin(t, "tr", "hello world", "-d", "lo")
	require.NoError(t, err)
	assert.Equal(t, "he wrd", out)
}

func TestTrTranslatesRanges(t *testing.T) {
	out, err := runWithStdin(t, "tr", "abc", "a-c", "A-C")
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}

func TestGrepFiltersMatchingLines(t *testing.T) {
	out, err := runWithStdin(t, "grep", "apple\nbanana\ncherry\n", "an")
	require.NoError(t, err)
	assert.Equal(t, "banana\n", out)
}

func TestGrepInvertMatch(t *testing.T) {
	out, err := runWithStdin(t, "grep", "apple\nbanana\ncherry\n", "-v", "an")
	require.NoError(t, err)
	assert.Equal(t, "apple\ncherry\n", out)
}

func TestGrepNoMatchReturnsExitError(t *testing.T) {
	_, err := runWithStdin(t, "grep", "apple\n", "zzz")
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
}
