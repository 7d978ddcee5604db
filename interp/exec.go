package interp

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/arthur-zhang/shellbox/expand"
	"github.com/arthur-zhang/shellbox/syntax"
)

// stmts runs a statement list in sequence, stopping and propagating the
// first non-local jump any statement raises.
func (r *Runner) stmts(ctx context.Context, list []*syntax.Stmt) error {
	for _, s := range list {
		if err := r.stmt(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// stmt runs one statement: apply its redirections for the duration of
// the command, dispatch the command, then enforce errexit if it's armed
// and we're not inside a condition position.
func (r *Runner) stmt(ctx context.Context, s *syntax.Stmt) error {
	if err := ctx.Err(); err != nil {
		return execLimitJump{reason: "context cancelled"}
	}
	if err := r.Governor.tickCommand(); err != nil {
		return err
	}
	r.ecfg.LastExit = r.exit
	r.ecfg.Positional = r.Params
	restore, err := r.applyRedirs(ctx, s.Redirs)
	if err != nil {
		r.exit = 1
		fmt.Fprintln(r.Stderr, err)
		return r.maybeErrexit()
	}
	cmdErr := r.cmd(ctx, s.Cmd)
	restore()
	r.flushProcSubstQueue(ctx)
	if cmdErr != nil {
		if _, ok := cmdErr.(execLimitJump); ok {
			r.traceJump(cmdErr)
			return cmdErr
		}
		if isJump(cmdErr) {
			r.traceJump(cmdErr)
			return cmdErr
		}
		r.exit = 1
		fmt.Fprintln(r.Stderr, cmdErr)
		return r.maybeErrexit()
	}
	return r.maybeErrexit()
}

func isJump(err error) bool {
	switch err.(type) {
	case breakJump, continueJump, returnJump, exitJump, errexitJump, subshellExitJump, posixFatalJump:
		return true
	}
	return false
}

func (r *Runner) maybeErrexit() error {
	if r.opts.errexit && r.opts.inCond == 0 && r.exit != 0 {
		return errexitJump(r.exit)
	}
	return nil
}

func (r *Runner) flushProcSubstQueue(ctx context.Context) {
	q := r.procSubstQueue
	r.procSubstQueue = nil
	for _, f := range q {
		f(ctx)
	}
}

// cmd dispatches one Command node to its execution.
func (r *Runner) cmd(ctx context.Context, c syntax.Command) error {
	switch n := c.(type) {
	case *syntax.CallExpr:
		return r.call(ctx, n)
	case *syntax.Pipeline:
		return r.runPipeline(ctx, n)
	case *syntax.BinaryCmd:
		return r.runBinary(ctx, n)
	case *syntax.List:
		return r.stmts(ctx, n.Stmts)
	case *syntax.IfClause:
		return r.runIf(ctx, n)
	case *syntax.WhileClause:
		return r.runWhile(ctx, n)
	case *syntax.ForClause:
		return r.runFor(ctx, n)
	case *syntax.CaseClause:
		return r.runCase(ctx, n)
	case *syntax.SelectClause:
		return r.runSelect(ctx, n)
	case *syntax.Block:
		return r.stmts(ctx, n.Stmts)
	case *syntax.Subshell:
		return r.runSubshell(ctx, n)
	case *syntax.FuncDecl:
		r.funcs[n.Name] = n.Body
		r.exit = 0
		return nil
	case *syntax.ArithmCmd:
		v, err := expand.ArithEval(n.X, r.Env)
		if err != nil {
			return err
		}
		if v == 0 {
			r.exit = 1
		} else {
			r.exit = 0
		}
		return nil
	case *syntax.TestClause:
		ok, err := r.evalTest(ctx, n.X)
		if err != nil {
			return err
		}
		if ok {
			r.exit = 0
		} else {
			r.exit = 1
		}
		return nil
	}
	return fmt.Errorf("unhandled command node: %T", c)
}

func (r *Runner) runBinary(ctx context.Context, b *syntax.BinaryCmd) error {
	oldCond := r.opts.inCond
	r.opts.inCond++
	err := r.stmt(ctx, b.X)
	r.opts.inCond = oldCond
	if err != nil {
		return err
	}
	switch b.Op {
	case syntax.AndAnd:
		if r.exit != 0 {
			return nil
		}
	case syntax.OrOr:
		if r.exit == 0 {
			return nil
		}
	}
	return r.stmt(ctx, b.Y)
}

func (r *Runner) runIf(ctx context.Context, ic *syntax.IfClause) error {
	oldCond := r.opts.inCond
	r.opts.inCond++
	err := r.stmts(ctx, ic.Cond)
	r.opts.inCond = oldCond
	if err != nil {
		return err
	}
	if r.exit == 0 {
		return r.stmts(ctx, ic.Then)
	}
	for _, el := range ic.Elifs {
		r.opts.inCond++
		err := r.stmts(ctx, el.Cond)
		r.opts.inCond--
		if err != nil {
			return err
		}
		if r.exit == 0 {
			return r.stmts(ctx, el.Then)
		}
	}
	if ic.Else != nil {
		return r.stmts(ctx, ic.Else)
	}
	r.exit = 0
	return nil
}

func (r *Runner) runWhile(ctx context.Context, w *syntax.WhileClause) error {
	oldInLoop := r.inLoop
	r.inLoop = true
	defer func() { r.inLoop = oldInLoop }()
	for {
		if err := r.Governor.tickLoop(); err != nil {
			return err
		}
		oldCond := r.opts.inCond
		r.opts.inCond++
		err := r.stmts(ctx, w.Cond)
		r.opts.inCond = oldCond
		if err != nil {
			return err
		}
		match := r.exit == 0
		if w.Until {
			match = !match
		}
		if !match {
			r.exit = 0
			return nil
		}
		if err := r.stmts(ctx, w.Do); err != nil {
			if stop, rerr := r.absorbLoopJump(err); stop {
				return rerr
			} else if rerr != nil {
				return rerr
			} else {
				return nil
			}
		}
	}
}

// absorbLoopJump classifies a jump raised from a loop body: (stop=true,
// err) to propagate further up, (false, err) to keep looping after
// "continue", or (false, nil) to stop this loop cleanly after "break".
func (r *Runner) absorbLoopJump(err error) (bool, error) {
	switch j := err.(type) {
	case breakJump:
		if j > 1 {
			return true, breakJump(j - 1)
		}
		return false, nil
	case continueJump:
		if j > 1 {
			return true, continueJump(j - 1)
		}
		return false, nil
	default:
		return true, err
	}
}

func (r *Runner) runFor(ctx context.Context, f *syntax.ForClause) error {
	oldInLoop := r.inLoop
	r.inLoop = true
	defer func() { r.inLoop = oldInLoop }()

	runBody := func() (stopLoop bool, err error) {
		if bodyErr := r.stmts(ctx, f.Do); bodyErr != nil {
			stop, rerr := r.absorbLoopJump(bodyErr)
			return stop, rerr
		}
		return false, nil
	}

	if !f.CStyle {
		items, err := r.expandWords(ctx, f.Items)
		if err != nil {
			return err
		}
		for _, v := range items {
			if err := r.Governor.tickLoop(); err != nil {
				return err
			}
			if err := r.Env.Set(f.Name, v); err != nil {
				return err
			}
			stop, err := runBody()
			if err != nil {
				if stop {
					return err
				}
				return nil
			}
		}
		r.exit = 0
		return nil
	}

	if f.Init != nil {
		if _, err := expand.ArithEval(f.Init, r.Env); err != nil {
			return err
		}
	}
	for {
		if f.Cond != nil {
			v, err := expand.ArithEval(f.Cond, r.Env)
			if err != nil {
				return err
			}
			if v == 0 {
				break
			}
		}
		if err := r.Governor.tickLoop(); err != nil {
			return err
		}
		stop, err := runBody()
		if err != nil {
			if stop {
				return err
			}
			break
		}
		if f.Post != nil {
			if _, err := expand.ArithEval(f.Post, r.Env); err != nil {
				return err
			}
		}
	}
	r.exit = 0
	return nil
}

func (r *Runner) runSelect(ctx context.Context, s *syntax.SelectClause) error {
	items, err := r.expandWords(ctx, s.Items)
	if err != nil {
		return err
	}
	ps3, _ := r.Env.Get("PS3")
	if ps3 == "" {
		ps3 = "#? "
	}
	buf := make([]byte, 0, 64)
	for {
		for i, it := range items {
			fmt.Fprintf(r.Stdout, "%d) %s\n", i+1, it)
		}
		fmt.Fprint(r.Stdout, ps3)
		line, err := readLine(r.Stdin, buf)
		if err != nil {
			r.exit = 1
			return nil
		}
		_ = r.Env.Set("REPLY", line)
		idx, convErr := strconv.Atoi(line)
		val := ""
		if convErr == nil && idx >= 1 && idx <= len(items) {
			val = items[idx-1]
		}
		if err := r.Env.Set(s.Name, val); err != nil {
			return err
		}
		if err := r.stmts(ctx, s.Do); err != nil {
			stop, rerr := r.absorbLoopJump(err)
			if stop {
				return rerr
			}
			if rerr != nil {
				return nil
			}
		}
		if val == "" && line == "" {
			return nil
		}
	}
}

func (r *Runner) runCase(ctx context.Context, c *syntax.CaseClause) error {
	word, err := r.expandOne(ctx, c.Word)
	if err != nil {
		return err
	}
	matched := false
	for _, item := range c.Items {
		if !matched {
			for _, pat := range item.Patterns {
				patStr, err := r.expandOne(ctx, pat)
				if err != nil {
					return err
				}
				ok, err := matchesPattern(word, patStr, r.ecfg.Opts.ExtGlob)
				if err != nil {
					return err
				}
				if ok {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		if err := r.stmts(ctx, item.Body); err != nil {
			return err
		}
		switch item.Op {
		case syntax.CaseBreak:
			return nil
		case syntax.CaseFallThru:
			matched = true
			continue
		case syntax.CaseContinue:
			matched = false
			continue
		}
	}
	if !matched {
		r.exit = 0
	}
	return nil
}

func (r *Runner) runSubshell(ctx context.Context, s *syntax.Subshell) error {
	clone := r.forkSubshell()
	err := clone.stmts(ctx, s.Stmts)
	r.exit = clone.exit
	if err == nil {
		return nil
	}
	if code, ok := exitCodeOf(err); ok {
		r.exit = code
		return nil
	}
	if _, ok := err.(execLimitJump); ok {
		return err
	}
	return nil
}

// forkSubshell clones variable and function state into a fresh Runner
// that shares the sandbox filesystem and streams, the "logical subshell"
// spec.md calls for: writes to the clone's variables never leak back.
func (r *Runner) forkSubshell() *Runner {
	clone := *r
	clone.Env = r.Env.Clone()
	clone.funcs = make(map[string]*syntax.Stmt, len(r.funcs))
	for k, v := range r.funcs {
		clone.funcs[k] = v
	}
	clone.fds = nil
	clone.procSubstQueue = nil
	cfg := *r.ecfg
	cfg.Env = clone.Env
	clone.ecfg = &cfg
	return &clone
}

func (r *Runner) expandWords(ctx context.Context, words []*syntax.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		fs, err := r.ecfg.ExpandWord(w, expand.ForCommand)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

func readLine(rd interface{ Read([]byte) (int, error) }, _ []byte) (string, error) {
	var buf bytes.Buffer
	one := make([]byte, 1)
	for {
		n, err := rd.Read(one)
		if n > 0 {
			if one[0] == '\n' {
				return buf.String(), nil
			}
			buf.WriteByte(one[0])
		}
		if err != nil {
			if buf.Len() > 0 {
				return buf.String(), nil
			}
			return "", err
		}
	}
}
