package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/arthur-zhang/shellbox/expand"
	"github.com/arthur-zhang/shellbox/syntax"
)

// localSaved is one variable's state as it was before a function's
// "local" shadowed it, restored when the function returns.
type localSaved struct {
	existed bool
	val     expand.Variable
}

func (r *Runner) pushLocalFrame() {
	r.localFrames = append(r.localFrames, map[string]localSaved{})
}

func (r *Runner) popLocalFrame() {
	n := len(r.localFrames)
	if n == 0 {
		return
	}
	frame := r.localFrames[n-1]
	r.localFrames = r.localFrames[:n-1]
	for name, saved := range frame {
		if saved.existed {
			v := saved.val
			r.Env.SetAttr(name, func(dst *expand.Variable) { *dst = v })
		} else {
			r.Env.Unset(name)
		}
	}
}

// localDeclare records name's pre-local state in the innermost frame (the
// first time it's shadowed) and assigns value, for the "local" builtin.
func (r *Runner) localDeclare(name, value string) error {
	if len(r.localFrames) == 0 {
		return fmt.Errorf("local: can only be used in a function")
	}
	top := r.localFrames[len(r.localFrames)-1]
	if _, ok := top[name]; !ok {
		if v := r.Env.Raw(name); v != nil {
			top[name] = localSaved{existed: true, val: *v}
		} else {
			top[name] = localSaved{existed: false}
		}
	}
	return r.Env.Set(name, value)
}

// applyAssign evaluates one var=value (or NAME[i]=value, NAME+=value,
// NAME=(a b c)) assignment node against the current scope.
func (r *Runner) applyAssign(ctx context.Context, a *syntax.Assign) error {
	if len(a.Array) > 0 {
		next := 0
		for _, el := range a.Array {
			key := strconv.Itoa(next)
			if el.Index != nil {
				k, err := r.expandOne(ctx, el.Index)
				if err != nil {
					return err
				}
				key = k
			}
			val := ""
			if el.Value != nil {
				v, err := r.expandOne(ctx, el.Value)
				if err != nil {
					return err
				}
				val = v
			}
			if err := r.Env.ArraySet(a.Name, key, val); err != nil {
				return err
			}
			if n, err := strconv.Atoi(key); err == nil {
				next = n + 1
			} else {
				next++
			}
		}
		return nil
	}
	if a.Naked {
		if !r.Env.IsSet(a.Name) {
			return r.Env.Set(a.Name, "")
		}
		return nil
	}
	val := ""
	if a.Value != nil {
		v, err := r.expandOne(ctx, a.Value)
		if err != nil {
			return err
		}
		val = v
	}
	if a.Index != nil {
		key, err := r.expandOne(ctx, a.Index)
		if err != nil {
			return err
		}
		return r.Env.ArraySet(a.Name, key, val)
	}
	if a.Append {
		old, _ := r.Env.Get(a.Name)
		val = old + val
	}
	return r.Env.Set(a.Name, val)
}

// call runs one simple command: persistent variable assignments with no
// following words, or a temporary-environment assignment plus function,
// builtin, or external dispatch, matching bash's "FOO=bar cmd" scoping.
func (r *Runner) call(ctx context.Context, ce *syntax.CallExpr) error {
	if len(ce.Args) == 0 {
		for _, a := range ce.Assigns {
			if err := r.applyAssign(ctx, a); err != nil {
				return err
			}
		}
		r.exit = 0
		return nil
	}

	names := make([]string, len(ce.Assigns))
	prevVal := make([]string, len(ce.Assigns))
	prevSet := make([]bool, len(ce.Assigns))
	for i, a := range ce.Assigns {
		names[i] = a.Name
		prevVal[i], prevSet[i] = r.Env.Get(a.Name)
		if err := r.applyAssign(ctx, a); err != nil {
			return err
		}
	}
	restoreAssigns := func() {
		for i, n := range names {
			if prevSet[i] {
				r.Env.Set(n, prevVal[i])
			} else {
				r.Env.Unset(n)
			}
		}
	}

	args, err := r.expandWords(ctx, ce.Args)
	if err != nil {
		restoreAssigns()
		return err
	}
	if len(args) == 0 {
		restoreAssigns()
		r.exit = r.lastSubstExit
		return nil
	}
	name, rest := args[0], args[1:]
	r.traceCall(name, rest)

	if body, ok := r.funcs[name]; ok {
		err := r.callFunction(ctx, body, rest)
		restoreAssigns()
		return err
	}
	if isBuiltin(name) {
		code, err := r.runBuiltin(ctx, name, rest)
		restoreAssigns()
		if err != nil {
			return err
		}
		r.exit = code
		return nil
	}
	if r.Call != nil {
		rewritten, err := r.Call(r.hc(ctx), args)
		if err != nil {
			restoreAssigns()
			return err
		}
		if len(rewritten) > 0 {
			name, rest = rewritten[0], rewritten[1:]
		}
	}
	code, err := r.Exec(r.hc(ctx), name, rest)
	restoreAssigns()
	if err != nil {
		return err
	}
	r.exit = code
	return nil
}

// callFunction invokes a declared function body with args bound as its
// positional parameters, under the governor's call-depth budget, and
// turns a "return" jump raised inside into the function's exit status.
func (r *Runner) callFunction(ctx context.Context, body *syntax.Stmt, args []string) error {
	if err := r.Governor.enterCall(); err != nil {
		return err
	}
	defer r.Governor.exitCall()

	oldParams, oldInFunc := r.Params, r.inFunc
	r.Params = args
	r.inFunc = true
	r.pushLocalFrame()
	defer func() {
		r.popLocalFrame()
		r.Params = oldParams
		r.inFunc = oldInFunc
	}()

	err := r.stmt(ctx, body)
	if err == nil {
		return nil
	}
	if rj, ok := err.(returnJump); ok {
		r.exit = int(rj)
		return nil
	}
	return err
}

// runPipeline executes a pipeline's stages, each in its own forked
// Runner connected by in-memory pipes, the same "logical subshell"
// isolation a real pipeline stage gets: an "exit" inside one stage ends
// only that stage. PIPESTATUS is populated from every stage's exit code.
func (r *Runner) runPipeline(ctx context.Context, p *syntax.Pipeline) error {
	n := len(p.Stages)
	if n == 1 {
		err := r.stmt(ctx, p.Stages[0])
		if err != nil {
			if code, ok := exitCodeOf(err); ok {
				r.exit = code
				err = nil
			} else {
				return err
			}
		}
		r.Env.ArraySet("PIPESTATUS", "0", strconv.Itoa(r.exit))
		if p.Negate {
			if r.exit == 0 {
				r.exit = 1
			} else {
				r.exit = 0
			}
		}
		return nil
	}

	clones := make([]*Runner, n)
	readers := make([]*io.PipeReader, n-1)
	writers := make([]*io.PipeWriter, n-1)
	for i := 0; i < n-1; i++ {
		readers[i], writers[i] = io.Pipe()
	}
	for i := 0; i < n; i++ {
		c := r.forkSubshell()
		if i > 0 {
			c.Stdin = readers[i-1]
		}
		if i < n-1 {
			c.Stdout = writers[i]
		}
		clones[i] = c
	}

	statuses := make([]int, n)
	limitErrs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i > 0 {
				defer readers[i-1].Close()
			}
			if i < n-1 {
				defer writers[i].Close()
			}
			err := clones[i].stmt(ctx, p.Stages[i])
			if err != nil {
				if code, ok := exitCodeOf(err); ok {
					clones[i].exit = code
				} else if _, ok := err.(execLimitJump); ok {
					limitErrs[i] = err
				}
			}
			statuses[i] = clones[i].exit
		}()
	}
	wg.Wait()

	for i, s := range statuses {
		r.Env.ArraySet("PIPESTATUS", strconv.Itoa(i), strconv.Itoa(s))
	}
	for _, e := range limitErrs {
		if e != nil {
			return e
		}
	}

	last := statuses[n-1]
	if r.opts.pipefail {
		for _, s := range statuses {
			if s != 0 {
				last = s
			}
		}
	}
	if p.Negate {
		if last == 0 {
			last = 1
		} else {
			last = 0
		}
	}
	r.exit = last
	return nil
}

// runCmdSubst implements expand.CmdSubstRunner: run stmts in a forked
// subshell with stdout captured, trimming the trailing newlines the way
// $(...) always does.
func (r *Runner) runCmdSubst(stmts []*syntax.Stmt) (string, error) {
	clone := r.forkSubshell()
	var buf bytes.Buffer
	clone.Stdout = &buf

	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	err := clone.stmts(ctx, stmts)
	if err != nil {
		if code, ok := exitCodeOf(err); ok {
			clone.exit = code
		} else if _, ok := err.(execLimitJump); ok {
			return "", err
		}
	}
	r.lastSubstExit = clone.exit
	return strings.TrimRight(buf.String(), "\n"), nil
}

// runProcSubst implements expand.ProcSubstRunner. <(cmd) is materialized
// eagerly into a synthetic sandbox file since the evaluator has no true
// concurrent-pipe plumbing into argv; >(cmd) is deferred until the
// enclosing statement finishes so the file has something to feed it.
func (r *Runner) runProcSubst(stmts []*syntax.Stmt, out bool) (string, error) {
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	path := r.nextProcSubstPath()

	if !out {
		clone := r.forkSubshell()
		var buf bytes.Buffer
		clone.Stdout = &buf
		_ = clone.stmts(ctx, stmts)
		if err := r.FS.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return "", err
		}
		return path, nil
	}

	if err := r.FS.WriteFile(path, nil, 0o644); err != nil {
		return "", err
	}
	r.procSubstQueue = append(r.procSubstQueue, func(ctx context.Context) {
		data, _ := r.FS.ReadFile(path)
		clone := r.forkSubshell()
		clone.Stdin = bytes.NewReader(data)
		clone.stmts(ctx, stmts)
	})
	return path, nil
}

func (r *Runner) nextProcSubstPath() string {
	r.procSubstCounter++
	return fmt.Sprintf("/tmp/.procsubst-%d", r.procSubstCounter)
}
