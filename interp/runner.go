// Package interp implements the evaluator that walks a parsed shell
// program (syntax.File) and executes it against a sandboxed filesystem
// and command set, mirroring a non-interactive bash as closely as the
// spec calls for.
package interp

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/arthur-zhang/shellbox/expand"
	"github.com/arthur-zhang/shellbox/syntax"
	"github.com/arthur-zhang/shellbox/vfs"
)

// Runner interprets one shell program. It is not safe for concurrent
// use; build one per script run via New.
type Runner struct {
	Env    *expand.Environ
	Dir    string
	Params []string
	FS     *vfs.FileSystem

	funcs   map[string]*syntax.Stmt
	aliases map[string]string
	traps   map[string]*syntax.Stmt

	Exec ExecHandlerFunc
	Call CallHandlerFunc

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *zap.Logger

	Governor *Governor

	opts shellOpts

	exit int

	fds map[int]*fdEntry

	// procSubstQueue holds >(cmd) bodies deferred until the enclosing
	// statement finishes, once the file they wrote into has content to
	// read back for the command's stdin.
	procSubstQueue []func(ctx context.Context)

	lastSubstExit    int
	procSubstCounter int
	localFrames      []map[string]localSaved

	inLoop bool
	inFunc bool

	ecfg *expand.Config

	// ctx holds the in-flight Run context so CmdSubstRunner/ProcSubstRunner
	// callbacks (which expand.Config invokes without a context parameter)
	// can still honor cancellation and the resource governor.
	ctx context.Context
}

// shellOpts mirrors the subset of `set`/`shopt` flags the evaluator
// consults directly (errexit, nounset, pipefail, xtrace, noexec,
// noclobber); the rest, noglob included, live on expand.Opts via ecfg.
type shellOpts struct {
	errexit   bool
	nounset   bool
	pipefail  bool
	xtrace    bool
	noexec    bool
	noClobber bool
	inCond    int // >0 while evaluating a condition position; suppresses errexit
}

// RunnerOption configures a Runner at construction time.
type RunnerOption func(*Runner) error

func New(opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		Env:     expand.NewEnviron(),
		Dir:     "/",
		FS:      vfs.NewMemory(),
		funcs:   make(map[string]*syntax.Stmt),
		aliases: make(map[string]string),
		traps:   make(map[string]*syntax.Stmt),
		Exec:    DefaultExecHandler,
		Stdin:   nilReader{},
		Stdout:  io.Discard,
		Stderr:  io.Discard,
		Logger:  zap.NewNop(),
		Governor: &Governor{
			MaxCallDepth:      1000,
			MaxLoopIterations: 1_000_000,
			MaxCommands:       2_000_000,
		},
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.ecfg = &expand.Config{
		Env:      r.Env,
		CWD:      r.Dir,
		ProgName: "shellbox",
		FS:       r.FS,
	}
	if len(r.Params) > 0 {
		r.ecfg.Positional = r.Params
	}
	r.ecfg.RunCmdSubst = r.runCmdSubst
	r.ecfg.RunProcSubst = r.runProcSubst
	return r, nil
}

func WithEnv(env *expand.Environ) RunnerOption {
	return func(r *Runner) error { r.Env = env; return nil }
}

func WithDir(dir string) RunnerOption {
	return func(r *Runner) error { r.Dir = dir; return nil }
}

func WithParams(args ...string) RunnerOption {
	return func(r *Runner) error { r.Params = args; return nil }
}

func WithFS(fs *vfs.FileSystem) RunnerOption {
	return func(r *Runner) error { r.FS = fs; return nil }
}

func WithStdIO(in io.Reader, out, err io.Writer) RunnerOption {
	return func(r *Runner) error { r.Stdin, r.Stdout, r.Stderr = in, out, err; return nil }
}

func WithExecHandler(h ExecHandlerFunc) RunnerOption {
	return func(r *Runner) error { r.Exec = h; return nil }
}

func WithCallHandler(h CallHandlerFunc) RunnerOption {
	return func(r *Runner) error { r.Call = h; return nil }
}

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) error {
		if l != nil {
			r.Logger = l
		}
		return nil
	}
}

func WithGovernor(g *Governor) RunnerOption {
	return func(r *Runner) error {
		if g != nil {
			r.Governor = g
		}
		return nil
	}
}

type nilReader struct{}

func (nilReader) Read([]byte) (int, error) { return 0, io.EOF }

// Run executes a parsed program to completion and returns its exit
// status. A resource limit being hit writes a diagnostic to stderr and
// returns status 124 with a nil error; a non-nil error is returned only
// for internal failures that aren't a normal (possibly nonzero) exit.
func (r *Runner) Run(ctx context.Context, file *syntax.File) (exitCode int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("internal error: %v", rec)
			exitCode = 2
		}
	}()
	r.ctx = ctx
	runErr := r.stmts(ctx, file.Stmts)
	if runErr == nil {
		return r.exit, nil
	}
	if code, ok := exitCodeOf(runErr); ok {
		return code, nil
	}
	if lim, ok := runErr.(execLimitJump); ok {
		fmt.Fprintln(r.Stderr, lim)
		return 124, nil
	}
	if pf, ok := runErr.(posixFatalJump); ok {
		fmt.Fprintln(r.Stderr, pf.msg)
		return 1, nil
	}
	return 1, runErr
}

func (r *Runner) hc(ctx context.Context) HandlerCtx {
	return HandlerCtx{Context: ctx, Stdin: r.Stdin, Stdout: r.Stdout, Stderr: r.Stderr, Dir: r.Dir, Env: r.Env, FS: r.FS}
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "/root"
}
