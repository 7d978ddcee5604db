// Package command implements the sandbox's coreutils set: a registry of
// small, self-contained utilities that the evaluator dispatches simple
// commands to instead of falling through to "command not found".
//
// Every utility here operates exclusively against a vfs.FileSystem —
// never the host filesystem — which is why these are native
// reimplementations rather than a wrapper around an existing coreutils
// package (see DESIGN.md for why github.com/u-root/u-root, the
// teacher's own middleware dependency for this concern, couldn't be
// reused directly).
package command

import (
	"context"
	"io"

	"github.com/arthur-zhang/shellbox/vfs"
)

// Command is one coreutil. The shape mirrors the SetIO/SetWorkingDir/
// SetLookupEnv/RunContext interface moreinterp/coreutils used to adapt
// u-root commands into the evaluator's exec handler; SetFS additionally
// binds the sandbox filesystem each command must run against.
type Command interface {
	SetIO(stdin io.Reader, stdout, stderr io.Writer)
	SetWorkingDir(dir string)
	SetLookupEnv(func(string) (string, bool))
	SetFS(fs *vfs.FileSystem)
	RunContext(ctx context.Context, args ...string) error
}

// ExitError reports a coreutil's intended nonzero exit status without
// treating it as an internal failure the evaluator should print "exec:"
// diagnostics for.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string { return e.Msg }

// Registry maps a program name to a constructor for its Command. New
// utilities register themselves here via init() in their own file.
var Registry = map[string]func() Command{}

func register(name string, ctor func() Command) {
	Registry[name] = ctor
}

// Lookup reports whether name is a known coreutil.
func Lookup(name string) (func() Command, bool) {
	c, ok := Registry[name]
	return c, ok
}
