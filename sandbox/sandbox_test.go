package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEchoesOutput(t *testing.T) {
	res, err := Run(context.Background(), `echo hello world`, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunExitCodePropagates(t *testing.T) {
	res, err := Run(context.Background(), `exit 7`, Options{})
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
}

func TestRunWritesToSandboxFilesystem(t *testing.T) {
	script := `echo hi > /tmp/out.txt && cat /tmp/out.txt`
	res, err := Run(context.Background(), script, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", res.Stdout)
}

func TestRunRespectsLoopIterationBudget(t *testing.T) {
	script := `i=0; while true; do i=$((i+1)); done`
	res, err := Run(context.Background(), script, Options{MaxLoopIterations: 100})
	require.NoError(t, err)
	assert.Equal(t, 124, res.ExitCode)
}

func TestRunRespectsTimeout(t *testing.T) {
	script := `while true; do :; done`
	res, err := Run(context.Background(), script, Options{Timeout: 20 * time.Millisecond, MaxLoopIterations: 0, MaxCommands: 0})
	require.NoError(t, err)
	assert.True(t, res.TimedOut || res.ExitCode == 124)
}

func TestRunDisallowedProgram(t *testing.T) {
	res, err := Run(context.Background(), `ls /`, Options{AllowedPrograms: []string{"echo"}})
	require.NoError(t, err)
	assert.Equal(t, 127, res.ExitCode)
	assert.Contains(t, res.Stderr, "command not found")
}

func TestRunPassesEnvAndArgs(t *testing.T) {
	res, err := Run(context.Background(), `echo "$NAME $1"`, Options{
		Env:  map[string]string{"NAME": "shellbox"},
		Args: []string{"world"},
	})
	require.NoError(t, err)
	assert.Equal(t, "shellbox world\n", res.Stdout)
}
