package interp

import (
	"context"
	"os"
	"regexp"
	"strconv"

	"github.com/arthur-zhang/shellbox/expand"
	"github.com/arthur-zhang/shellbox/syntax"
)

// evalTest evaluates a "[[ ... ]]" expression tree (spec.md's conditional
// grammar): bare words are true iff non-empty, unary file/string tests
// consult the sandbox filesystem, binary tests cover string/numeric
// comparison, glob/regex matching, and file comparisons.
func (r *Runner) evalTest(ctx context.Context, x *syntax.TestExpr) (bool, error) {
	if x == nil {
		return true, nil
	}
	switch x.Kind {
	case syntax.TestParen:
		return r.evalTest(ctx, x.X)
	case syntax.TestNot:
		v, err := r.evalTest(ctx, x.X)
		return !v, err
	case syntax.TestAnd:
		v, err := r.evalTest(ctx, x.X)
		if err != nil || !v {
			return false, err
		}
		return r.evalTest(ctx, x.Y)
	case syntax.TestOr:
		v, err := r.evalTest(ctx, x.X)
		if err != nil || v {
			return v, err
		}
		return r.evalTest(ctx, x.Y)
	case syntax.TestWord:
		v, err := r.expandOne(ctx, x.Word)
		if err != nil {
			return false, err
		}
		return v != "", nil
	case syntax.TestUnary:
		return r.evalTestUnary(ctx, x)
	case syntax.TestBinary:
		return r.evalTestBinary(ctx, x)
	}
	return false, nil
}

func (r *Runner) expandOne(ctx context.Context, w *syntax.Word) (string, error) {
	fs, err := r.ecfg.ExpandWord(w, expand.ForConditional)
	if err != nil {
		return "", err
	}
	if len(fs) == 0 {
		return "", nil
	}
	return fs[0], nil
}

func (r *Runner) evalTestUnary(ctx context.Context, x *syntax.TestExpr) (bool, error) {
	operand, err := r.expandOne(ctx, x.Word)
	if err != nil {
		return false, err
	}
	switch x.Op {
	case "-z":
		return operand == "", nil
	case "-n":
		return operand != "", nil
	case "-v":
		return r.Env.IsSet(operand), nil
	case "-o":
		return r.optionSet(operand), nil
	case "-t":
		return false, nil
	}
	info, statErr := r.FS.Stat(operand)
	switch x.Op {
	case "-e", "-a":
		return statErr == nil, nil
	case "-f":
		return statErr == nil && !info.IsDir(), nil
	case "-d":
		return statErr == nil && info.IsDir(), nil
	case "-r", "-w", "-x":
		return statErr == nil, nil
	case "-s":
		return statErr == nil && info.Size() > 0, nil
	case "-L", "-h":
		_, lerr := r.FS.Readlink(operand)
		return lerr == nil, nil
	case "-p", "-S", "-b", "-c":
		return false, nil
	case "-g", "-u", "-k":
		return false, nil
	case "-G", "-O":
		return statErr == nil, nil
	case "-R":
		return statErr == nil, nil
	}
	return false, nil
}

func (r *Runner) evalTestBinary(ctx context.Context, x *syntax.TestExpr) (bool, error) {
	lhs, err := r.expandOne(ctx, x.X.Word)
	if err != nil {
		return false, err
	}
	switch x.Op {
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		return r.evalTestNumeric(ctx, lhs, x.Op, x.Y.Word)
	case "-ef", "-nt", "-ot":
		rhs, err := r.expandOne(ctx, x.Y.Word)
		if err != nil {
			return false, err
		}
		return r.evalTestFileCompare(lhs, x.Op, rhs)
	}
	rhs, err := r.expandOne(ctx, x.Y.Word)
	if err != nil {
		return false, err
	}
	switch x.Op {
	case "=", "==":
		return matchesPattern(lhs, rhs, r.ecfg.Opts.ExtGlob)
	case "!=":
		ok, err := matchesPattern(lhs, rhs, r.ecfg.Opts.ExtGlob)
		return !ok, err
	case "<":
		return lhs < rhs, nil
	case ">":
		return lhs > rhs, nil
	case "=~":
		re, err := regexp.Compile(rhs)
		if err != nil {
			return false, err
		}
		return re.MatchString(lhs), nil
	}
	return false, nil
}

func matchesPattern(s, pat string, extglob bool) (bool, error) {
	re, err := syntax.CompilePattern(pat, syntax.PatternOpts{ExtGlob: extglob})
	if err != nil {
		return s == pat, nil
	}
	return re.MatchString(s), nil
}

func (r *Runner) evalTestNumeric(ctx context.Context, lhs, op string, rhsWord *syntax.Word) (bool, error) {
	rhs, err := r.expandOne(ctx, rhsWord)
	if err != nil {
		return false, err
	}
	lv, lerr := strconv.ParseInt(lhs, 10, 64)
	rv, rerr := strconv.ParseInt(rhs, 10, 64)
	if lerr != nil || rerr != nil {
		return false, nil
	}
	switch op {
	case "-eq":
		return lv == rv, nil
	case "-ne":
		return lv != rv, nil
	case "-lt":
		return lv < rv, nil
	case "-le":
		return lv <= rv, nil
	case "-gt":
		return lv > rv, nil
	case "-ge":
		return lv >= rv, nil
	}
	return false, nil
}

func (r *Runner) evalTestFileCompare(lhs, op, rhs string) (bool, error) {
	li, lerr := r.FS.Stat(lhs)
	ri, rerr := r.FS.Stat(rhs)
	switch op {
	case "-ef":
		return lerr == nil && rerr == nil && os.SameFile(li, ri), nil
	case "-nt":
		return lerr == nil && (rerr != nil || li.ModTime().After(ri.ModTime())), nil
	case "-ot":
		return rerr == nil && (lerr != nil || li.ModTime().Before(ri.ModTime())), nil
	}
	return false, nil
}

func (r *Runner) optionSet(name string) bool {
	switch name {
	case "errexit":
		return r.opts.errexit
	case "nounset":
		return r.opts.nounset
	case "pipefail":
		return r.opts.pipefail
	case "xtrace":
		return r.opts.xtrace
	case "noexec":
		return r.opts.noexec
	case "noclobber":
		return r.opts.noClobber
	}
	return false
}
