package interp

import (
	"bytes"
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"

	"github.com/arthur-zhang/shellbox/expand"
	"github.com/arthur-zhang/shellbox/syntax"
	"github.com/arthur-zhang/shellbox/vfs"
)

// runScript parses and runs src against a fresh Runner, returning its
// stdout, stderr, and exit code.
func runScript(t *testing.T, src string, opts ...RunnerOption) (stdout, stderr string, code int) {
	t.Helper()
	file, err := syntax.NewParser("test.sh", src).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var outBuf, errBuf bytes.Buffer
	allOpts := append([]RunnerOption{
		WithStdIO(bytes.NewReader(nil), &outBuf, &errBuf),
		WithExecHandler(testExecHandler),
	}, opts...)
	r, err := New(allOpts...)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	exit, runErr := r.Run(context.Background(), file)
	if runErr != nil {
		t.Fatalf("run: %v", runErr)
	}
	return outBuf.String(), errBuf.String(), exit
}

func TestSimpleCommandAndExitCode(t *testing.T) {
	c := qt.New(t)
	out, _, code := runScript(t, `echo hi; exit 3`)
	c.Assert(out, qt.Equals, "hi\n")
	c.Assert(code, qt.Equals, 3)
}

func TestIfElseDispatch(t *testing.T) {
	c := qt.New(t)
	out, _, _ := runScript(t, `if false; then echo a; elif true; then echo b; else echo c; fi`)
	c.Assert(out, qt.Equals, "b\n")
}

func TestWhileLoopAndBreak(t *testing.T) {
	c := qt.New(t)
	out, _, _ := runScript(t, `i=0; while true; do i=$((i+1)); echo $i; if [ $i -ge 3 ]; then break; fi; done`)
	c.Assert(out, qt.Equals, "1\n2\n3\n")
}

func TestForLoopOverWords(t *testing.T) {
	c := qt.New(t)
	out, _, _ := runScript(t, `for x in a b c; do echo "item:$x"; done`)
	want := "item:a\nitem:b\nitem:c\n"
	c.Assert(out, qt.Equals, want)
}

func TestFunctionCallAndReturn(t *testing.T) {
	c := qt.New(t)
	out, _, code := runScript(t, `f() { echo in; return 5; }; f; echo "after:$?"`)
	c.Assert(out, qt.Equals, "in\nafter:5\n")
	c.Assert(code, qt.Equals, 0)
}

func TestLocalScopingRestoresOuterValue(t *testing.T) {
	c := qt.New(t)
	out, _, _ := runScript(t, `x=outer; f() { local x=inner; echo $x; }; f; echo $x`)
	c.Assert(out, qt.Equals, "inner\nouter\n")
}

func TestPipelineExitStatusAndPipestatus(t *testing.T) {
	env := expand.NewEnviron()
	out, _, code := runScript(t, `false | true | false`, WithEnv(env))
	c := qt.New(t)
	c.Assert(out, qt.Equals, "")
	c.Assert(code, qt.Equals, 1)

	got := env.ArrayValues("PIPESTATUS")
	want := []string{"1", "0", "1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("PIPESTATUS mismatch (-want +got):\n%s", diff)
	}
}

func TestErrexitStopsOnFailure(t *testing.T) {
	c := qt.New(t)
	out, _, code := runScript(t, `set -e; echo before; false; echo after`)
	c.Assert(out, qt.Equals, "before\n")
	c.Assert(code, qt.Equals, 1)
}

func TestCommandSubstitution(t *testing.T) {
	c := qt.New(t)
	out, _, _ := runScript(t, `x=$(echo nested); echo "got:$x"`)
	c.Assert(out, qt.Equals, "got:nested\n")
}

func TestRedirectionWritesToSandboxFilesystem(t *testing.T) {
	fs := vfs.NewMemory()
	c := qt.New(t)
	out, _, _ := runScript(t, `echo hello > /tmp/f.txt; cat /tmp/f.txt`, WithFS(fs))
	c.Assert(out, qt.Equals, "hello\n")
}

// testExecHandler is a minimal stand-in for the real coreutils registry,
// just enough to exercise the control-flow and redirection tests in this
// file without depending on the command package.
func testExecHandler(hc HandlerCtx, name string, args []string) (int, error) {
	switch {
	case name == "echo":
		for i, a := range args {
			if i > 0 {
				hc.Stdout.Write([]byte(" "))
			}
			hc.Stdout.Write([]byte(a))
		}
		hc.Stdout.Write([]byte("\n"))
		return 0, nil
	case name == "cat" && len(args) == 1:
		data, err := hc.FS.ReadFile(args[0])
		if err != nil {
			return 1, nil
		}
		hc.Stdout.Write(data)
		return 0, nil
	default:
		return DefaultExecHandler(hc, name, args)
	}
}

func TestGovernorStopsRunawayLoop(t *testing.T) {
	c := qt.New(t)
	gov := &Governor{MaxLoopIterations: 5}
	_, _, code := runScript(t, `while true; do :; done`, WithGovernor(gov))
	c.Assert(code, qt.Equals, 124)
}
