// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/arthur-zhang/shellbox/syntax"
)

// Mode selects which later pipeline stages apply to a word's expansion,
// per the expand_word(state, node, mode) contract: splitting/globbing
// run only ForCommand; ForAssignment/ForCase/ForHereDoc never split or
// glob; ForConditional never globs.
type Mode int

const (
	ForCommand Mode = iota
	ForAssignment
	ForConditional
	ForCase
	ForHereDoc
)

// Opts mirrors the shopt/set flags that alter expansion.
type Opts struct {
	ExtGlob     bool
	NullGlob    bool
	FailGlob    bool
	DotGlob     bool
	GlobStar    bool
	NoCaseGlob  bool
	NoCaseMatch bool
	NoGlob      bool
	NoUnset     bool
}

// FilePaths is the minimal filesystem contract expansion needs for
// pathname expansion: every path reachable from the root, used to filter
// glob candidates instead of doing directory-by-directory walks.
type FilePaths interface {
	AllPaths() ([]string, error)
}

// CmdSubstRunner executes a parsed command list and returns its captured
// stdout, implementing the "notional subshell" side of command
// substitution; ProcSubstRunner does the same but returns a synthesized
// path backing the virtual file process substitution reads from.
type CmdSubstRunner func(stmts []*syntax.Stmt) (stdout string, err error)
type ProcSubstRunner func(stmts []*syntax.Stmt, out bool) (path string, err error)

// Config bundles everything expansion needs beyond the AST node itself.
type Config struct {
	Env         *Environ
	IFS         string
	CWD         string
	Positional  []string
	ProgName    string
	LastExit    int
	Pid         int
	LastBgPid   string
	OptionFlags string
	Opts        Opts
	FS          FilePaths
	RunCmdSubst CmdSubstRunner
	RunProcSubst ProcSubstRunner
}

func (c *Config) ifsOrDefault() string {
	if v, ok := c.Env.Get("IFS"); ok {
		return v
	}
	return " \t\n"
}

// ExpandWord runs the expansion pipeline (tilde through quote removal)
// on a single already brace-expanded word, per mode.
func (c *Config) ExpandWord(w *syntax.Word, mode Mode) ([]string, error) {
	fs, err := c.expandWordParts(w.Parts, mode)
	if err != nil {
		return nil, err
	}
	words := c.splitFields(fs, mode)
	if mode != ForCommand || c.Opts.NoGlob {
		return words, nil
	}
	var out []string
	for _, word := range words {
		matches, expanded, err := c.maybeGlob(word)
		if err != nil {
			return nil, err
		}
		if !expanded {
			out = append(out, word)
			continue
		}
		if len(matches) == 0 {
			if c.Opts.FailGlob {
				return nil, &globNoMatchError{pattern: word}
			}
			if c.Opts.NullGlob {
				continue
			}
			out = append(out, word)
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}

type globNoMatchError struct{ pattern string }

func (e *globNoMatchError) Error() string { return "no match: " + e.pattern }

// expandWordParts walks a word's parts left to right, applying tilde
// expansion (only to a leading *Tilde part, already isolated by the
// parser) and expanding every other part into fields, concatenating
// adjacent fields the way bash joins "foo"$bar"baz" into one field.
func (c *Config) expandWordParts(parts []syntax.WordPart, mode Mode) ([]field, error) {
	var fields []field
	for _, p := range parts {
		pf, err := c.expandPart(p, mode)
		if err != nil {
			return nil, err
		}
		fields = joinAdjacent(fields, pf)
	}
	return fields, nil
}

// joinAdjacent concatenates the trailing field of acc with the leading
// field of next when neither forms an array-expansion boundary, so that
// "a${x}b" and a$b stay one field instead of splitting prematurely.
func joinAdjacent(acc, next []field) []field {
	if len(acc) == 0 {
		return next
	}
	if len(next) == 0 {
		return acc
	}
	if len(next) == 1 {
		last := acc[len(acc)-1]
		acc[len(acc)-1] = field{val: last.val + next[0].val, quoted: last.quoted || next[0].quoted}
		return acc
	}
	last := acc[len(acc)-1]
	merged := field{val: last.val + next[0].val, quoted: last.quoted || next[0].quoted}
	out := append(acc[:len(acc)-1:len(acc)-1], merged)
	out = append(out, next[1:]...)
	return out
}

func (c *Config) expandPart(p syntax.WordPart, mode Mode) ([]field, error) {
	switch n := p.(type) {
	case *syntax.Lit:
		return lit(n.Value, false), nil
	case *syntax.SglQuoted:
		return lit(n.Value, true), nil
	case *syntax.Tilde:
		return lit(c.expandTilde(n), true), nil
	case *syntax.DblQuoted:
		return c.expandDblQuoted(n.Parts, mode)
	case *syntax.ParamExp:
		return c.expandParam(n)
	case *syntax.ArithmExp:
		v, err := ArithEval(n.X, c.Env)
		if err != nil {
			return nil, err
		}
		return lit(strconv.FormatInt(v, 10), false), nil
	case *syntax.CmdSubst:
		if c.RunCmdSubst == nil {
			return lit("", false), nil
		}
		out, err := c.RunCmdSubst(n.Stmts)
		if err != nil {
			return nil, err
		}
		return lit(strings.TrimRight(out, "\n"), false), nil
	case *syntax.ProcSubst:
		if c.RunProcSubst == nil {
			return lit("", true), nil
		}
		pth, err := c.RunProcSubst(n.Stmts, n.Out)
		if err != nil {
			return nil, err
		}
		return lit(pth, true), nil
	case *syntax.ExtGlob:
		return lit(renderExtGlobLiteral(n), true), nil
	}
	return nil, nil
}

// renderExtGlobLiteral reproduces the source text of an extglob atom so
// it can be handed whole to the pattern compiler at glob/match time
// instead of being expanded as ordinary text.
func renderExtGlobLiteral(e *syntax.ExtGlob) string {
	var sb strings.Builder
	sb.WriteByte(e.Op)
	sb.WriteByte('(')
	for i, p := range e.Patterns {
		if i > 0 {
			sb.WriteByte('|')
		}
		if lv, ok := p.Lit(); ok {
			sb.WriteString(lv)
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// expandDblQuoted expands the parts inside "..." with splitting
// suppressed; an unquoted-inside-quotes "$@" still vectorizes into
// multiple quoted fields (spec.md's array-in-double-quotes rule), which
// is why this returns potentially >1 field rather than joining to one.
func (c *Config) expandDblQuoted(parts []syntax.WordPart, mode Mode) ([]field, error) {
	var out []field
	for _, p := range parts {
		pf, err := c.expandPart(p, mode)
		if err != nil {
			return nil, err
		}
		for i := range pf {
			pf[i].quoted = true
		}
		out = joinAdjacent(out, pf)
	}
	return out, nil
}

func (c *Config) expandTilde(t *syntax.Tilde) string {
	if t.User == "" {
		if home, ok := c.Env.Get("HOME"); ok {
			return home
		}
		return "~"
	}
	if t.User == "root" {
		return "/root"
	}
	return "~" + t.User
}

// splitFields applies IFS word-splitting to unquoted field material,
// per mode: assignment/case/heredoc/conditional contexts never split.
func (c *Config) splitFields(fs []field, mode Mode) []string {
	if mode != ForCommand {
		var sb strings.Builder
		for _, f := range fs {
			sb.WriteString(f.val)
		}
		if sb.Len() == 0 && len(fs) == 0 {
			return nil
		}
		return []string{sb.String()}
	}
	ifs := c.ifsOrDefault()
	var words []string
	var cur strings.Builder
	hasCur := false
	flush := func() {
		if hasCur {
			words = append(words, cur.String())
			cur.Reset()
			hasCur = false
		}
	}
	for _, f := range fs {
		if f.quoted {
			cur.WriteString(f.val)
			hasCur = true
			continue
		}
		start := 0
		runes := []rune(f.val)
		i := 0
		for i < len(runes) {
			if strings.ContainsRune(ifs, runes[i]) {
				cur.WriteString(string(runes[start:i]))
				hasCur = true
				flush()
				j := i
				for j < len(runes) && strings.ContainsRune(ifs, runes[j]) && isIFSWhite(runes[j], ifs) {
					j++
				}
				if j == i {
					j++
				}
				i = j
				start = i
				continue
			}
			i++
		}
		cur.WriteString(string(runes[start:]))
		if len(runes) > 0 {
			hasCur = true
		}
	}
	flush()
	if len(words) == 0 && len(fs) > 0 {
		return []string{""}
	}
	return words
}

func isIFSWhite(r rune, ifs string) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

// maybeGlob reports whether word contains glob metacharacters and, if
// so, returns its matches against c.FS.
func (c *Config) maybeGlob(word string) (matches []string, isPattern bool, err error) {
	popt := syntax.PatternOpts{ExtGlob: c.Opts.ExtGlob, NoCaseGlob: c.Opts.NoCaseGlob, GlobStar: c.Opts.GlobStar, Filename: true}
	if !syntax.HasMeta(word, popt) {
		return nil, false, nil
	}
	if c.FS == nil {
		return nil, true, nil
	}
	all, err := c.FS.AllPaths()
	if err != nil {
		return nil, true, err
	}
	abs := word
	if !path.IsAbs(abs) {
		abs = path.Join(c.CWD, word)
	}
	re, err := syntax.CompilePattern(abs, popt)
	if err != nil {
		return nil, true, err
	}
	var hits []string
	for _, p := range all {
		base := path.Base(p)
		if !c.Opts.DotGlob && strings.HasPrefix(base, ".") && !strings.HasPrefix(path.Base(word), ".") {
			continue
		}
		if re.MatchString(p) {
			hits = append(hits, p)
		}
	}
	sort.Strings(hits)
	if !path.IsAbs(word) {
		for i, h := range hits {
			if rel, err := relPath(c.CWD, h); err == nil {
				hits[i] = rel
			}
		}
	}
	return hits, true, nil
}

func relPath(base, target string) (string, error) {
	if !strings.HasPrefix(target, base) {
		return target, nil
	}
	rest := strings.TrimPrefix(target, base)
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return ".", nil
	}
	return rest, nil
}
