package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/arthur-zhang/shellbox/expand"
	"github.com/arthur-zhang/shellbox/syntax"
)

// fdEntry is one descriptor slot: readers and writers are tracked
// separately so "N<&M" and "N>&M" duplication only ever have to copy the
// half that direction cares about.
type fdEntry struct {
	r      io.Reader
	w      io.Writer
	closer io.Closer
}

// redirState snapshots the descriptor table entries a Stmt's
// redirections touched, so they can be restored once the statement (and
// anything it execs) finishes.
type redirState struct {
	saved map[int]*fdEntry
}

func (r *Runner) fdTable() map[int]*fdEntry {
	if r.fds == nil {
		r.fds = map[int]*fdEntry{
			0: {r: r.Stdin},
			1: {w: r.Stdout},
			2: {w: r.Stderr},
		}
	}
	return r.fds
}

func (r *Runner) fdReader(n int) io.Reader {
	if e, ok := r.fdTable()[n]; ok && e.r != nil {
		return e.r
	}
	return nilReader{}
}

func (r *Runner) fdWriter(n int) io.Writer {
	if e, ok := r.fdTable()[n]; ok && e.w != nil {
		return e.w
	}
	return io.Discard
}

func (r *Runner) setFd(n int, e *fdEntry, saved *redirState) {
	tbl := r.fdTable()
	if _, ok := saved.saved[n]; !ok {
		if old, exists := tbl[n]; exists {
			saved.saved[n] = old
		} else {
			saved.saved[n] = &fdEntry{}
		}
	}
	tbl[n] = e
	r.syncStdFds()
}

// syncStdFds keeps the Stdin/Stdout/Stderr convenience fields in lock
// step with fd table slots 0/1/2, since most of the evaluator reads
// those fields directly rather than going through the table.
func (r *Runner) syncStdFds() {
	tbl := r.fdTable()
	if e, ok := tbl[0]; ok {
		if e.r != nil {
			r.Stdin = e.r
		}
	}
	if e, ok := tbl[1]; ok && e.w != nil {
		r.Stdout = e.w
	}
	if e, ok := tbl[2]; ok && e.w != nil {
		r.Stderr = e.w
	}
}

// applyRedirs opens every redirect target against the sandbox filesystem
// and installs it into the descriptor table, returning a restore
// function that undoes exactly what it changed.
func (r *Runner) applyRedirs(ctx context.Context, redirs []*syntax.Redirect) (func(), error) {
	if len(redirs) == 0 {
		return func() {}, nil
	}
	state := &redirState{saved: make(map[int]*fdEntry)}
	var opened []io.Closer
	restore := func() {
		for _, c := range opened {
			c.Close()
		}
		for fd, e := range state.saved {
			r.fdTable()[fd] = e
		}
		r.syncStdFds()
	}
	for _, rd := range redirs {
		if err := r.applyOneRedir(ctx, rd, state, &opened); err != nil {
			restore()
			return nil, err
		}
	}
	return restore, nil
}

func (r *Runner) applyOneRedir(ctx context.Context, rd *syntax.Redirect, state *redirState, opened *[]io.Closer) error {
	fd := 1
	switch rd.Op {
	case syntax.RedirRead, syntax.RedirReadWrite, syntax.RedirHeredoc, syntax.RedirHeredocTab, syntax.RedirHeredocStr, syntax.RedirDupIn, syntax.RedirProcIn:
		fd = 0
	}
	if rd.HasFd {
		fd = rd.Fd
	}

	switch rd.Op {
	case syntax.RedirRead, syntax.RedirProcIn:
		path, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		f, err := r.FS.Open(path)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.setFd(fd, &fdEntry{r: f, closer: f}, state)

	case syntax.RedirWrite, syntax.RedirProcOut:
		path, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		if r.opts.noClobber {
			if _, err := r.FS.Stat(path); err == nil {
				return fmt.Errorf("%s: cannot overwrite existing file", path)
			}
		}
		f, err := r.FS.Create(path)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.setFd(fd, &fdEntry{w: f, closer: f}, state)

	case syntax.RedirClobber:
		path, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		f, err := r.FS.Create(path)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.setFd(fd, &fdEntry{w: f, closer: f}, state)

	case syntax.RedirAppend:
		path, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		f, err := r.FS.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.setFd(fd, &fdEntry{w: f, closer: f}, state)

	case syntax.RedirReadWrite:
		path, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		f, err := r.FS.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.setFd(fd, &fdEntry{r: f, w: f, closer: f}, state)

	case syntax.RedirHeredoc, syntax.RedirHeredocTab:
		body, err := r.heredocBody(ctx, rd)
		if err != nil {
			return err
		}
		r.setFd(fd, &fdEntry{r: bytes.NewReader([]byte(body))}, state)

	case syntax.RedirHeredocStr:
		s, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		r.setFd(fd, &fdEntry{r: bytes.NewReader([]byte(s + "\n"))}, state)

	case syntax.RedirDupIn:
		target, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		if target == "-" {
			r.setFd(fd, &fdEntry{}, state)
			return nil
		}
		n, err := fdNumber(target)
		if err != nil {
			return err
		}
		r.setFd(fd, &fdEntry{r: r.fdReader(n)}, state)

	case syntax.RedirDupOut:
		target, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		if target == "-" {
			r.setFd(fd, &fdEntry{}, state)
			return nil
		}
		n, err := fdNumber(target)
		if err != nil {
			return err
		}
		r.setFd(fd, &fdEntry{w: r.fdWriter(n)}, state)

	case syntax.RedirBoth:
		path, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		f, err := r.FS.Create(path)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.setFd(1, &fdEntry{w: f, closer: f}, state)
		r.setFd(2, &fdEntry{w: f}, state)

	case syntax.RedirBothAppend:
		path, err := r.expandOne(ctx, rd.Word)
		if err != nil {
			return err
		}
		f, err := r.FS.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		*opened = append(*opened, f)
		r.setFd(1, &fdEntry{w: f, closer: f}, state)
		r.setFd(2, &fdEntry{w: f}, state)

	default:
		return fmt.Errorf("unhandled redirect op: %v", rd.Op)
	}
	return nil
}

// heredocBody resolves a heredoc's already-delimited body: literal if the
// delimiter was quoted, otherwise expanded (without splitting or
// globbing, matching here-doc word-expansion mode).
func (r *Runner) heredocBody(ctx context.Context, rd *syntax.Redirect) (string, error) {
	if rd.Hdoc == nil {
		return "", nil
	}
	if rd.HdocQuoted {
		if lit, ok := rd.Hdoc.Lit(); ok {
			return lit, nil
		}
	}
	fields, err := r.ecfg.ExpandWord(rd.Hdoc, expand.ForHereDoc)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

func fdNumber(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("invalid file descriptor: %q", s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid file descriptor: %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
