package interp

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/arthur-zhang/shellbox/expand"
	"github.com/arthur-zhang/shellbox/syntax"
)

var builtinNames = map[string]bool{
	"cd": true, "pwd": true, "export": true, "declare": true, "typeset": true,
	"local": true, "readonly": true, "unset": true, "set": true, "shift": true,
	"read": true, "eval": true, "source": true, ".": true, "break": true,
	"continue": true, "return": true, "exit": true, ":": true, "true": true,
	"false": true, "trap": true, "type": true, "hash": true, "getopts": true,
	"let": true, "alias": true, "unalias": true, "history": true, "times": true,
	"wait": true,
}

func isBuiltin(name string) bool { return builtinNames[name] }

// runBuiltin dispatches one builtin invocation (spec.md §4.5's Builtin
// Surface). Control-flow builtins (break, continue, return, exit) signal
// via the typed jump errors rather than a return code, same as any other
// non-local exit the evaluator has to unwind through.
func (r *Runner) runBuiltin(ctx context.Context, name string, args []string) (int, error) {
	switch name {
	case ":", "true":
		return 0, nil
	case "false":
		return 1, nil
	case "exit":
		code := r.exit
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Fprintf(r.Stderr, "exit: %s: numeric argument required\n", args[0])
				code = 2
			} else {
				code = n
			}
		}
		return 0, exitJump(code & 0xff)
	case "return":
		code := r.exit
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err == nil {
				code = n
			}
		}
		if !r.inFunc {
			return code, nil
		}
		return 0, returnJump(code & 0xff)
	case "break":
		n := 1
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
				n = v
			}
		}
		if !r.inLoop {
			return 0, nil
		}
		return 0, breakJump(n)
	case "continue":
		n := 1
		if len(args) > 0 {
			if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
				n = v
			}
		}
		if !r.inLoop {
			return 0, nil
		}
		return 0, continueJump(n)

	case "cd":
		return r.builtinCd(args)
	case "pwd":
		fmt.Fprintln(r.Stdout, r.Dir)
		return 0, nil

	case "export":
		return r.builtinExport(args)
	case "declare", "typeset":
		return r.builtinDeclare(args)
	case "local":
		return r.builtinLocal(args)
	case "readonly":
		return r.builtinReadonly(args)
	case "unset":
		return r.builtinUnset(args)

	case "set":
		return r.builtinSet(args)
	case "shift":
		return r.builtinShift(args)

	case "read":
		return r.builtinRead(ctx, args)
	case "let":
		return r.builtinLet(args)

	case "eval":
		return r.builtinEval(ctx, args)
	case "source", ".":
		return r.builtinSource(ctx, args)

	case "alias":
		return r.builtinAlias(args)
	case "unalias":
		for _, a := range args {
			delete(r.aliases, a)
		}
		return 0, nil

	case "type":
		return r.builtinType(args)
	case "hash":
		return 0, nil
	case "times":
		fmt.Fprintln(r.Stdout, "0m0.000s 0m0.000s")
		fmt.Fprintln(r.Stdout, "0m0.000s 0m0.000s")
		return 0, nil
	case "wait":
		return 0, nil
	case "trap":
		return r.builtinTrap(args)
	case "getopts":
		return r.builtinGetopts(args)
	}
	fmt.Fprintf(r.Stderr, "%s: builtin not implemented\n", name)
	return 2, nil
}

func (r *Runner) builtinCd(args []string) (int, error) {
	target := homeDir()
	if len(args) > 0 {
		target = args[0]
	}
	if !strings.HasPrefix(target, "/") {
		target = joinPath(r.Dir, target)
	}
	info, err := r.FS.Stat(target)
	if err != nil {
		fmt.Fprintf(r.Stderr, "cd: %s: No such file or directory\n", args[0])
		return 1, nil
	}
	if !info.IsDir() {
		fmt.Fprintf(r.Stderr, "cd: %s: Not a directory\n", args[0])
		return 1, nil
	}
	old := r.Dir
	r.Dir = cleanJoin(target)
	r.Env.Set("OLDPWD", old)
	r.Env.Set("PWD", r.Dir)
	r.ecfg.CWD = r.Dir
	return 0, nil
}

func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	if strings.HasPrefix(rel, "/") {
		return rel
	}
	return base + "/" + rel
}

func cleanJoin(p string) string {
	parts := strings.Split(p, "/")
	var out []string
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	return "/" + strings.Join(out, "/")
}

func (r *Runner) builtinExport(args []string) (int, error) {
	if len(args) == 0 {
		for _, name := range r.Env.Names() {
			if v := r.Env.Raw(name); v != nil && v.Exported {
				fmt.Fprintf(r.Stdout, "declare -x %s=%q\n", name, v.Value)
			}
		}
		return 0, nil
	}
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		if hasVal {
			if err := r.Env.Set(name, val); err != nil {
				fmt.Fprintln(r.Stderr, "export: "+err.Error())
				return 1, nil
			}
		}
		r.Env.SetAttr(name, func(v *expand.Variable) { v.Exported = true })
	}
	return 0, nil
}

func (r *Runner) builtinDeclare(args []string) (int, error) {
	var lower, upper, integer, array, assoc, export, readonly bool
	var rest []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") && len(a) > 1 && a != "--" {
			for _, f := range a[1:] {
				switch f {
				case 'l':
					lower = true
				case 'u':
					upper = true
				case 'i':
					integer = true
				case 'a':
					array = true
				case 'A':
					assoc = true
				case 'x':
					export = true
				case 'r':
					readonly = true
				case 'p':
					// accepted and ignored: the listing below runs only
					// when no names are given
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) == 0 {
		for _, name := range r.Env.Names() {
			if v := r.Env.Raw(name); v != nil {
				fmt.Fprintf(r.Stdout, "declare -- %s=%q\n", name, v.Value)
			}
		}
		return 0, nil
	}
	for _, a := range rest {
		name, val, hasVal := strings.Cut(a, "=")
		if hasVal {
			if err := r.Env.Set(name, val); err != nil {
				fmt.Fprintln(r.Stderr, "declare: "+err.Error())
				return 1, nil
			}
		} else if !r.Env.IsSet(name) {
			r.Env.Set(name, "")
		}
		r.Env.SetAttr(name, func(v *expand.Variable) {
			if lower {
				v.Lower = true
			}
			if upper {
				v.Upper = true
			}
			if integer {
				v.Integer = true
			}
			if array {
				v.IsArray = true
			}
			if assoc {
				v.IsAssoc = true
			}
			if export {
				v.Exported = true
			}
			if readonly {
				v.ReadOnly = true
			}
		})
	}
	return 0, nil
}

func (r *Runner) builtinLocal(args []string) (int, error) {
	for _, a := range args {
		name, val, _ := strings.Cut(a, "=")
		if err := r.localDeclare(name, val); err != nil {
			fmt.Fprintln(r.Stderr, "local: "+err.Error())
			return 1, nil
		}
	}
	return 0, nil
}

func (r *Runner) builtinReadonly(args []string) (int, error) {
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		if hasVal {
			if err := r.Env.Set(name, val); err != nil {
				fmt.Fprintln(r.Stderr, "readonly: "+err.Error())
				return 1, nil
			}
		}
		r.Env.SetAttr(name, func(v *expand.Variable) { v.ReadOnly = true })
	}
	return 0, nil
}

func (r *Runner) builtinUnset(args []string) (int, error) {
	for _, a := range args {
		if r.Env.IsReadonly(a) {
			fmt.Fprintf(r.Stderr, "unset: %s: readonly variable\n", a)
			return 1, nil
		}
		r.Env.Unset(a)
		delete(r.funcs, a)
	}
	return 0, nil
}

func (r *Runner) builtinSet(args []string) (int, error) {
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if strings.HasPrefix(a, "-o") || strings.HasPrefix(a, "+o") {
			enable := a[0] == '-'
			var opt string
			if a == "-o" || a == "+o" {
				i++
				if i < len(args) {
					opt = args[i]
				}
			} else {
				opt = a[2:]
			}
			r.setOpt(opt, enable)
			continue
		}
		if strings.HasPrefix(a, "-") || strings.HasPrefix(a, "+") {
			enable := a[0] == '-'
			for _, f := range a[1:] {
				r.setFlag(f, enable)
			}
			continue
		}
		positional = append(positional, args[i:]...)
		break
	}
	if positional != nil {
		r.Params = positional
	}
	return 0, nil
}

func (r *Runner) setOpt(name string, enable bool) {
	switch name {
	case "errexit":
		r.opts.errexit = enable
	case "nounset":
		r.opts.nounset = enable
	case "pipefail":
		r.opts.pipefail = enable
	case "xtrace":
		r.opts.xtrace = enable
	case "noexec":
		r.opts.noexec = enable
	case "noclobber":
		r.opts.noClobber = enable
	case "extglob":
		r.ecfg.Opts.ExtGlob = enable
	case "nullglob":
		r.ecfg.Opts.NullGlob = enable
	case "failglob":
		r.ecfg.Opts.FailGlob = enable
	case "dotglob":
		r.ecfg.Opts.DotGlob = enable
	case "globstar":
		r.ecfg.Opts.GlobStar = enable
	case "nocaseglob":
		r.ecfg.Opts.NoCaseGlob = enable
	case "nocasematch":
		r.ecfg.Opts.NoCaseMatch = enable
	case "noglob":
		r.ecfg.Opts.NoGlob = enable
	}
}

func (r *Runner) setFlag(f rune, enable bool) {
	switch f {
	case 'e':
		r.opts.errexit = enable
	case 'u':
		r.opts.nounset = enable
		r.ecfg.Opts.NoUnset = enable
	case 'x':
		r.opts.xtrace = enable
	case 'n':
		r.opts.noexec = enable
	case 'f':
		r.ecfg.Opts.NoGlob = enable
		r.opts.noexec = r.opts.noexec
	case 'C':
		r.opts.noClobber = enable
	}
}

func (r *Runner) builtinShift(args []string) (int, error) {
	n := 1
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = v
		}
	}
	if n > len(r.Params) {
		return 1, nil
	}
	r.Params = r.Params[n:]
	return 0, nil
}

func (r *Runner) builtinRead(ctx context.Context, args []string) (int, error) {
	name := "REPLY"
	raw := false
	var names []string
	for _, a := range args {
		if a == "-r" {
			raw = true
			continue
		}
		names = append(names, a)
	}
	if len(names) > 0 {
		name = names[0]
	}
	br := bufio.NewReader(r.Stdin)
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return 1, nil
	}
	line = strings.TrimSuffix(line, "\n")
	if !raw {
		line = strings.ReplaceAll(line, "\\", "")
	}
	if len(names) > 1 {
		fields := strings.Fields(line)
		for i, n := range names {
			v := ""
			if i < len(fields) {
				v = fields[i]
			}
			if i == len(names)-1 && len(fields) > len(names) {
				v = strings.Join(fields[i:], " ")
			}
			r.Env.Set(n, v)
		}
		return 0, nil
	}
	return 0, r.Env.Set(name, line)
}

func (r *Runner) builtinLet(args []string) (int, error) {
	expr := strings.Join(args, " ")
	ax, err := syntax.ParseArithm(expr)
	if err != nil {
		fmt.Fprintln(r.Stderr, "let: "+err.Error())
		return 2, nil
	}
	v, err := expand.ArithEval(ax, r.Env)
	if err != nil {
		fmt.Fprintln(r.Stderr, "let: "+err.Error())
		return 1, nil
	}
	if v == 0 {
		return 1, nil
	}
	return 0, nil
}

func (r *Runner) builtinEval(ctx context.Context, args []string) (int, error) {
	src := strings.Join(args, " ")
	p := syntax.NewParser("eval", src)
	file, err := p.Parse()
	if err != nil {
		fmt.Fprintln(r.Stderr, "eval: "+err.Error())
		return 2, nil
	}
	if err := r.stmts(ctx, file.Stmts); err != nil {
		if code, ok := exitCodeOf(err); ok {
			return code, nil
		}
		return 0, err
	}
	return r.exit, nil
}

func (r *Runner) builtinSource(ctx context.Context, args []string) (int, error) {
	if len(args) == 0 {
		fmt.Fprintln(r.Stderr, "source: filename argument required")
		return 2, nil
	}
	path := args[0]
	data, err := r.FS.ReadFile(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "source: %s: No such file or directory\n", path)
		return 1, nil
	}
	p := syntax.NewParser(path, string(data))
	file, err := p.Parse()
	if err != nil {
		fmt.Fprintln(r.Stderr, "source: "+err.Error())
		return 2, nil
	}
	oldParams := r.Params
	if len(args) > 1 {
		r.Params = args[1:]
	}
	defer func() { r.Params = oldParams }()
	if err := r.stmts(ctx, file.Stmts); err != nil {
		if code, ok := exitCodeOf(err); ok {
			return code, nil
		}
		return 0, err
	}
	return r.exit, nil
}

func (r *Runner) builtinAlias(args []string) (int, error) {
	if len(args) == 0 {
		names := make([]string, 0, len(r.aliases))
		for k := range r.aliases {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(r.Stdout, "alias %s=%q\n", k, r.aliases[k])
		}
		return 0, nil
	}
	for _, a := range args {
		name, val, ok := strings.Cut(a, "=")
		if !ok {
			if v, ok := r.aliases[name]; ok {
				fmt.Fprintf(r.Stdout, "alias %s=%q\n", name, v)
			}
			continue
		}
		r.aliases[name] = val
	}
	return 0, nil
}

func (r *Runner) builtinType(args []string) (int, error) {
	status := 0
	for _, name := range args {
		switch {
		case isBuiltin(name):
			fmt.Fprintf(r.Stdout, "%s is a shell builtin\n", name)
		default:
			if _, ok := r.funcs[name]; ok {
				fmt.Fprintf(r.Stdout, "%s is a function\n", name)
			} else {
				fmt.Fprintf(r.Stdout, "%s: not found\n", name)
				status = 1
			}
		}
	}
	return status, nil
}

func (r *Runner) builtinTrap(args []string) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	body := args[0]
	for _, sig := range args[1:] {
		p := syntax.NewParser("trap", body)
		file, err := p.Parse()
		if err != nil {
			continue
		}
		if len(file.Stmts) > 0 {
			r.traps[sig] = &syntax.Stmt{Cmd: &syntax.Block{Stmts: file.Stmts}}
		}
	}
	return 0, nil
}

func (r *Runner) builtinGetopts(args []string) (int, error) {
	if len(args) < 2 {
		return 2, nil
	}
	optstring, varname := args[0], args[1]
	optind := 1
	if v, ok := r.Env.Get("OPTIND"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			optind = n
		}
	}
	params := args[2:]
	if len(params) == 0 {
		params = r.Params
	}
	if optind-1 >= len(params) {
		r.Env.Set(varname, "?")
		return 1, nil
	}
	cur := params[optind-1]
	if !strings.HasPrefix(cur, "-") || cur == "-" {
		r.Env.Set(varname, "?")
		return 1, nil
	}
	opt := string(cur[1])
	idx := strings.IndexByte(optstring, opt[0])
	if idx < 0 {
		r.Env.Set(varname, "?")
		r.Env.Set("OPTIND", strconv.Itoa(optind+1))
		return 0, nil
	}
	r.Env.Set(varname, opt)
	if idx+1 < len(optstring) && optstring[idx+1] == ':' {
		if optind < len(params) {
			r.Env.Set("OPTARG", params[optind])
			optind++
		}
	}
	optind++
	r.Env.Set("OPTIND", strconv.Itoa(optind))
	return 0, nil
}
