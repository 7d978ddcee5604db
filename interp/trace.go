package interp

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// traceCall logs one simple command dispatch at debug level, and mirrors
// it to stderr with a "+ " prefix when "set -x" (xtrace) is armed,
// matching bash's own xtrace format.
func (r *Runner) traceCall(name string, args []string) {
	if r.opts.xtrace {
		line := name
		if len(args) > 0 {
			line += " " + strings.Join(args, " ")
		}
		fmt.Fprintln(r.Stderr, "+ "+line)
	}
	if ce := r.Logger.Check(zap.DebugLevel, "exec"); ce != nil {
		ce.Write(zap.String("name", name), zap.Strings("args", args), zap.String("dir", r.Dir))
	}
}

// traceJump logs a non-local jump (break/continue/return/exit/errexit/
// resource-limit) unwinding through the evaluator, the ambient
// observability spec.md's logging section calls for around control flow.
func (r *Runner) traceJump(err error) {
	if ce := r.Logger.Check(zap.DebugLevel, "jump"); ce != nil {
		ce.Write(zap.String("kind", jumpKind(err)), zap.Error(err))
	}
}

func jumpKind(err error) string {
	switch err.(type) {
	case breakJump:
		return "break"
	case continueJump:
		return "continue"
	case returnJump:
		return "return"
	case exitJump:
		return "exit"
	case errexitJump:
		return "errexit"
	case execLimitJump:
		return "limit"
	case subshellExitJump:
		return "subshell-exit"
	case posixFatalJump:
		return "fatal"
	default:
		return "error"
	}
}
