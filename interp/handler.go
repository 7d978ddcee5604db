package interp

import (
	"context"
	"io"

	"github.com/arthur-zhang/shellbox/expand"
	"github.com/arthur-zhang/shellbox/vfs"
)

// HandlerCtx is the information a simple command dispatched outside the
// builtin surface (functions, coreutils, the fallback "command not
// found" path) needs: its standard streams, working directory, the
// variable table it can read, and the sandbox filesystem it runs
// against. Grounded on the handler-context pattern shells use to avoid
// threading a dozen parameters through every exec call.
type HandlerCtx struct {
	Context context.Context

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Dir string
	Env *expand.Environ
	FS  *vfs.FileSystem
}

// ExecHandlerFunc runs a resolved external command (name + args, after
// expansion) and returns its exit code. The default, set by
// DefaultExecHandler, reports "command not found" for everything, since
// a bare interpreter has no coreutils of its own; sandbox wires in the
// command package's registry.
type ExecHandlerFunc func(hc HandlerCtx, name string, args []string) (int, error)

// DefaultExecHandler always reports "command not found" (exit 127),
// bash's own behavior for a name matching no function, builtin, or
// entry on $PATH.
func DefaultExecHandler(hc HandlerCtx, name string, args []string) (int, error) {
	io.WriteString(hc.Stderr, name+": command not found\n")
	return 127, nil
}

// CallHandlerFunc lets a caller rewrite a simple command's argv before
// dispatch, the hook [moreinterp] style wrappers (coreutils middleware,
// tracing) are built from.
type CallHandlerFunc func(hc HandlerCtx, args []string) ([]string, error)
