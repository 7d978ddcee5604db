// Package sandbox wires the evaluator (interp), the sandboxed
// filesystem (vfs), and the coreutils registry (command) into the
// single entry point a caller runs a script through: Run.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arthur-zhang/shellbox/command"
	"github.com/arthur-zhang/shellbox/expand"
	"github.com/arthur-zhang/shellbox/httpfetch"
	"github.com/arthur-zhang/shellbox/interp"
	"github.com/arthur-zhang/shellbox/syntax"
	"github.com/arthur-zhang/shellbox/vfs"
)

// Options configures one sandboxed run. Zero values fall back to safe
// defaults (an empty environment, an in-memory filesystem, a generous
// but finite resource budget, and no network access).
type Options struct {
	Env    map[string]string
	Args   []string
	Cwd    string
	Stdin  []byte

	Timeout           time.Duration
	MaxCommands       int
	MaxLoopIterations int
	MaxCallDepth      int

	// AllowedPrograms restricts which commands a script may invoke, the
	// allow-list concept the teacher's pureRunner variant used; nil
	// means every registered coreutil and user function is reachable.
	AllowedPrograms []string

	// AllowedHosts enables curl by constructing an httpfetch.Client
	// scoped to these hosts; nil leaves network access disabled.
	AllowedHosts  []string
	RatePerSecond float64

	Logger *zap.Logger
	FS     *vfs.FileSystem
}

// Result reports the outcome of a sandboxed run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// ErrDisallowedProgram describes a command name rejected by the
// AllowedPrograms list. Run itself does not return or print it: a
// rejected command writes "<name>: command not found" to the script's
// stderr and exits with status 127.
type ErrDisallowedProgram struct{ Name string }

func (e *ErrDisallowedProgram) Error() string {
	return fmt.Sprintf("sandbox: %q is not on the allowed-programs list", e.Name)
}

// Run parses and executes script under the given Options, returning a
// Result that never carries a Go error for ordinary script failures —
// only for inputs that couldn't be parsed or run at all.
func Run(ctx context.Context, script string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	file, err := syntax.NewParser("script", script).Parse()
	if err != nil {
		return nil, fmt.Errorf("sandbox: parse: %w", err)
	}

	env := expand.NewEnviron()
	for k, v := range opts.Env {
		if err := env.Set(k, v); err != nil {
			return nil, fmt.Errorf("sandbox: setting %s: %w", k, err)
		}
	}

	fs := opts.FS
	if fs == nil {
		fs = vfs.NewMemory()
	}

	cwd := opts.Cwd
	if cwd == "" {
		cwd = "/"
	}

	var stdout, stderr bytes.Buffer
	var stdin *bytes.Reader
	if opts.Stdin != nil {
		stdin = bytes.NewReader(opts.Stdin)
	} else {
		stdin = bytes.NewReader(nil)
	}

	governor := &interp.Governor{
		MaxCallDepth:      firstPositive(opts.MaxCallDepth, 1000),
		MaxLoopIterations: firstPositive(opts.MaxLoopIterations, 1_000_000),
		MaxCommands:       firstPositive(opts.MaxCommands, 2_000_000),
		Timeout:           opts.Timeout,
	}

	var fetcher *httpfetch.Client
	if len(opts.AllowedHosts) > 0 {
		fetcher = httpfetch.New(httpfetch.Options{
			AllowedHosts:  opts.AllowedHosts,
			RatePerSecond: opts.RatePerSecond,
		})
	}

	allow := allowSet(opts.AllowedPrograms)

	execHandler := func(hc interp.HandlerCtx, name string, args []string) (int, error) {
		if allow != nil && !allow[name] {
			fmt.Fprintf(hc.Stderr, "%s: command not found\n", name)
			return 127, nil
		}
		ctor, ok := command.Lookup(name)
		if !ok {
			return interp.DefaultExecHandler(hc, name, args)
		}
		c := ctor()
		c.SetIO(hc.Stdin, hc.Stdout, hc.Stderr)
		c.SetWorkingDir(hc.Dir)
		c.SetLookupEnv(hc.Env.Get)
		c.SetFS(hc.FS)
		if fc, ok := c.(interface{ SetFetcher(*httpfetch.Client) }); ok {
			fc.SetFetcher(fetcher)
		}
		if err := c.RunContext(hc.Context, args...); err != nil {
			if ee, ok := err.(*command.ExitError); ok {
				if ee.Msg != "" {
					fmt.Fprintln(hc.Stderr, ee.Msg)
				}
				return ee.Code, nil
			}
			fmt.Fprintln(hc.Stderr, err)
			return 1, nil
		}
		return 0, nil
	}

	r, err := interp.New(
		interp.WithEnv(env),
		interp.WithDir(cwd),
		interp.WithParams(opts.Args...),
		interp.WithFS(fs),
		interp.WithStdIO(stdin, &stdout, &stderr),
		interp.WithExecHandler(execHandler),
		interp.WithLogger(logger),
		interp.WithGovernor(governor),
	)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	code, runErr := r.Run(runCtx, file)
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: code}
	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result, nil
	}
	if runErr != nil {
		return result, fmt.Errorf("sandbox: %w", runErr)
	}
	return result, nil
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func allowSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
