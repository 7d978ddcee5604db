// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/arthur-zhang/shellbox/syntax"
)

// field is one expansion result carrying whether it came from quoted
// material, which gates word splitting and globbing downstream.
type field struct {
	val    string
	quoted bool
}

func lit(s string, quoted bool) []field { return []field{{val: s, quoted: quoted}} }

// lookupScalar resolves a bare name against positional parameters,
// special parameters, and the variable table, in that order.
func (c *Config) lookupScalar(name string) (string, bool) {
	if n, err := strconv.Atoi(name); err == nil {
		if n == 0 {
			return c.ProgName, true
		}
		if n >= 1 && n <= len(c.Positional) {
			return c.Positional[n-1], true
		}
		return "", false
	}
	switch name {
	case "#":
		return strconv.Itoa(len(c.Positional)), true
	case "?":
		return strconv.Itoa(c.LastExit), true
	case "$":
		return strconv.Itoa(c.Pid), true
	case "!":
		return c.LastBgPid, true
	case "-":
		return c.OptionFlags, true
	case "@", "*":
		return strings.Join(c.Positional, " "), len(c.Positional) > 0
	}
	return c.Env.Get(name)
}

func (c *Config) isArraySubscript(idx *syntax.Word) (string, bool) {
	if idx == nil {
		return "", false
	}
	s, _ := c.literalIndex(idx)
	return s, s == "@" || s == "*"
}

// literalIndex renders an index word as text for either array-all
// markers ("@"/"*") or an arithmetic subscript.
func (c *Config) literalIndex(w *syntax.Word) (string, error) {
	if lv, ok := w.Lit(); ok {
		return lv, nil
	}
	fs, err := c.expandWordParts(w.Parts, ForCommand)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, f := range fs {
		sb.WriteString(f.val)
	}
	return sb.String(), nil
}

// expandParam implements the "${...}" operator family (spec.md §4.3.3).
// It returns one field per result; array-vectorizing operators ("@"/"*"
// subscript) return one field per element.
func (c *Config) expandParam(pe *syntax.ParamExp) ([]field, error) {
	if pe.Short {
		if pe.Name == "@" {
			return c.expandArrayAll(pe, false)
		}
		v, ok := c.lookupScalar(pe.Name)
		if !ok {
			return c.unsetResult(pe.Name)
		}
		return lit(v, false), nil
	}

	if pe.Index != nil {
		all, isAll := c.isArraySubscript(pe.Index)
		if isAll && pe.Op != syntax.ParExpLen && pe.Op != syntax.ParExpKeys {
			return c.expandArrayAll(pe, all == "*")
		}
	}

	switch pe.Op {
	case syntax.ParExpLen:
		return c.expandLen(pe)
	case syntax.ParExpKeys:
		idxs := c.Env.ArrayIndices(pe.Name)
		out := make([]field, 0, len(idxs))
		for _, i := range idxs {
			out = append(out, field{val: i})
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	case syntax.ParExpIndirect:
		target, _ := c.lookupScalar(pe.Name)
		v, ok := c.lookupScalar(target)
		if !ok {
			return nil, nil
		}
		return lit(v, false), nil
	case syntax.ParExpPrefixNames:
		var names []string
		for _, n := range c.Env.Names() {
			if strings.HasPrefix(n, pe.Name) {
				names = append(names, n)
			}
		}
		sort.Strings(names)
		out := make([]field, 0, len(names))
		for _, n := range names {
			out = append(out, field{val: n})
		}
		return out, nil
	}

	v, isSet := c.resolveOperand(pe)

	switch pe.Op {
	case syntax.ParExpDefault:
		if !isSet || v == "" {
			return c.expandArg(pe.Arg)
		}
		return lit(v, false), nil
	case syntax.ParExpAssign:
		if !isSet || v == "" {
			fs, err := c.expandArg(pe.Arg)
			if err != nil {
				return nil, err
			}
			val := joinFields(fs)
			if err := c.Env.Set(pe.Name, val); err != nil {
				return nil, err
			}
			return lit(val, false), nil
		}
		return lit(v, false), nil
	case syntax.ParExpError:
		if !isSet || v == "" {
			fs, _ := c.expandArg(pe.Arg)
			msg := joinFields(fs)
			if msg == "" {
				msg = "parameter null or not set"
			}
			return nil, fmt.Errorf("%s: %s", pe.Name, msg)
		}
		return lit(v, false), nil
	case syntax.ParExpAlt:
		if isSet && v != "" {
			return c.expandArg(pe.Arg)
		}
		return lit("", false), nil
	case syntax.ParExpRemSmallPrefix, syntax.ParExpRemLargePrefix,
		syntax.ParExpRemSmallSuffix, syntax.ParExpRemLargeSuffix:
		pat := c.argLiteral(pe.Arg)
		return lit(trimPattern(v, pat, pe.Op, c.Opts), false), nil
	case syntax.ParExpReplace, syntax.ParExpReplaceAll, syntax.ParExpReplaceStart, syntax.ParExpReplaceEnd:
		pat := c.argLiteral(pe.Arg)
		repl := c.argLiteral(pe.Arg2)
		return lit(replacePattern(v, pat, repl, pe.Op, c.Opts), false), nil
	case syntax.ParExpSubstr:
		return lit(substr(v, c.argLiteral(pe.Arg), c.argLiteral(pe.Arg2)), false), nil
	case syntax.ParExpUpperFirst:
		return lit(caseConvert(v, c.argLiteralOpt(pe.Arg), true, false), false), nil
	case syntax.ParExpUpperAll:
		return lit(caseConvert(v, c.argLiteralOpt(pe.Arg), true, true), false), nil
	case syntax.ParExpLowerFirst:
		return lit(caseConvert(v, c.argLiteralOpt(pe.Arg), false, false), false), nil
	case syntax.ParExpLowerAll:
		return lit(caseConvert(v, c.argLiteralOpt(pe.Arg), false, true), false), nil
	case syntax.ParExpTransform:
		return lit(transform(v, pe.TransformLetter), false), nil
	}
	if !isSet {
		return c.unsetResult(pe.Name)
	}
	return lit(v, false), nil
}

func (c *Config) unsetResult(name string) ([]field, error) {
	if c.Opts.NoUnset {
		return nil, fmt.Errorf("%s: unbound variable", name)
	}
	return nil, nil
}

func (c *Config) resolveOperand(pe *syntax.ParamExp) (string, bool) {
	if pe.Index != nil {
		idxStr, _ := c.literalIndex(pe.Index)
		return c.Env.ArrayGet(pe.Name, idxStr)
	}
	if c.Env.Raw(pe.Name) != nil && c.Env.Raw(pe.Name).IsArray {
		return c.Env.ArrayGet(pe.Name, "0")
	}
	return c.lookupScalar(pe.Name)
}

func (c *Config) expandArrayAll(pe *syntax.ParamExp, star bool) ([]field, error) {
	var vals []string
	if pe.Name == "@" || pe.Name == "*" {
		vals = c.Positional
	} else {
		vals = c.Env.ArrayValues(pe.Name)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	out := make([]field, 0, len(vals))
	for _, v := range vals {
		out = append(out, field{val: v, quoted: star})
	}
	return out, nil
}

func (c *Config) expandLen(pe *syntax.ParamExp) ([]field, error) {
	switch pe.Name {
	case "@", "*":
		return lit(strconv.Itoa(len(c.Positional)), false), nil
	}
	if pe.Index != nil {
		if all, isAll := c.isArraySubscript(pe.Index); isAll {
			_ = all
			return lit(strconv.Itoa(c.Env.ArrayLen(pe.Name)), false), nil
		}
	}
	if r := c.Env.Raw(pe.Name); r != nil && r.IsArray {
		return lit(strconv.Itoa(c.Env.ArrayLen(pe.Name)), false), nil
	}
	v, _ := c.lookupScalar(pe.Name)
	return lit(strconv.Itoa(len([]rune(v))), false), nil
}

func (c *Config) expandArg(w *syntax.Word) ([]field, error) {
	if w == nil {
		return nil, nil
	}
	return c.expandWordParts(w.Parts, ForCommand)
}

func (c *Config) argLiteral(w *syntax.Word) string {
	fs, _ := c.expandArg(w)
	return joinFields(fs)
}

func (c *Config) argLiteralOpt(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	return c.argLiteral(w)
}

func joinFields(fs []field) string {
	var sb strings.Builder
	for _, f := range fs {
		sb.WriteString(f.val)
	}
	return sb.String()
}

// trimPattern implements #, ##, %, %% by trying match lengths from the
// appropriate end: small variants stop at the first match, large
// variants keep extending to find the longest.
func trimPattern(v, pat string, op syntax.ParExpOp, opts Opts) string {
	if pat == "" {
		return v
	}
	prefix := op == syntax.ParExpRemSmallPrefix || op == syntax.ParExpRemLargePrefix
	large := op == syntax.ParExpRemLargePrefix || op == syntax.ParExpRemLargeSuffix
	r := []rune(v)
	best := -1
	if prefix {
		for end := 0; end <= len(r); end++ {
			if matchesWhole(string(r[:end]), pat, opts) {
				best = end
				if !large {
					break
				}
			}
		}
		if best < 0 {
			return v
		}
		return string(r[best:])
	}
	for start := len(r); start >= 0; start-- {
		if matchesWhole(string(r[start:]), pat, opts) {
			best = start
			if !large {
				break
			}
		}
	}
	if best < 0 {
		return v
	}
	return string(r[:best])
}

func matchesWhole(s, pat string, opts Opts) bool {
	re, err := syntax.CompilePattern(pat, syntax.PatternOpts{ExtGlob: opts.ExtGlob, NoCaseGlob: opts.NoCaseMatch})
	if err != nil {
		return s == pat
	}
	return re.MatchString(s)
}

func globToRegexp(pat string, opts Opts) (*regexp.Regexp, error) {
	return syntax.CompilePattern(pat, syntax.PatternOpts{ExtGlob: opts.ExtGlob, NoCaseGlob: opts.NoCaseMatch})
}

func replacePattern(v, pat, repl string, op syntax.ParExpOp, opts Opts) string {
	if pat == "" {
		return v
	}
	anchored := pat
	switch op {
	case syntax.ParExpReplaceStart:
		anchored = "^(?:" + "" + pat + ")"
	case syntax.ParExpReplaceEnd:
		anchored = pat + "$"
	}
	src, err := rawPatternRegexp(anchored, opts)
	if err != nil {
		return v
	}
	if op == syntax.ParExpReplaceAll {
		return src.ReplaceAllString(v, regexp.QuoteMeta(repl))
	}
	loc := src.FindStringIndex(v)
	if loc == nil {
		return v
	}
	return v[:loc[0]] + repl + v[loc[1]:]
}

// rawPatternRegexp compiles a glob pattern to an *unanchored* matcher for
// substring search, unlike CompilePattern's whole-string anchors.
func rawPatternRegexp(pat string, opts Opts) (*regexp.Regexp, error) {
	full, err := globToRegexp(pat, opts)
	if err != nil {
		return nil, err
	}
	src := full.String()
	src = strings.TrimPrefix(src, "(?s)^")
	src = strings.TrimSuffix(src, "$")
	return regexp.Compile(src)
}

func substr(v, offStr, lenStr string) string {
	r := []rune(v)
	n := len(r)
	off, err := strconv.Atoi(strings.TrimSpace(offStr))
	if err != nil {
		return ""
	}
	if off < 0 {
		off += n
		if off < 0 {
			off = 0
		}
	}
	if off > n {
		off = n
	}
	if lenStr == "" {
		return string(r[off:])
	}
	length, err := strconv.Atoi(strings.TrimSpace(lenStr))
	if err != nil {
		return ""
	}
	end := off + length
	if length < 0 {
		end = n + length
	}
	if end > n {
		end = n
	}
	if end < off {
		return ""
	}
	return string(r[off:end])
}

func caseConvert(v, pat string, upper, all bool) string {
	conv := func(s string) string {
		if upper {
			return strings.ToUpper(s)
		}
		return strings.ToLower(s)
	}
	if v == "" {
		return v
	}
	r := []rune(v)
	matches := func(s string) bool {
		if pat == "" {
			return true
		}
		return matchesWhole(s, pat, Opts{})
	}
	if !all {
		first := string(r[0])
		if matches(first) {
			return conv(first) + string(r[1:])
		}
		return v
	}
	var sb strings.Builder
	for _, c := range r {
		s := string(c)
		if matches(s) {
			sb.WriteString(conv(s))
		} else {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func transform(v, letter string) string {
	switch letter {
	case "Q":
		return shellQuote(v)
	case "E":
		return unescapeBackslashes(v)
	case "U":
		return strings.ToUpper(v)
	case "L":
		return strings.ToLower(v)
	case "A", "a", "P", "K":
		return v
	}
	return v
}

func shellQuote(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, "'\"\\ \t\n$`!*?[](){}|&;<>~#") {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

func unescapeBackslashes(v string) string {
	var sb strings.Builder
	r := []rune(v)
	for i := 0; i < len(r); i++ {
		if r[i] == '\\' && i+1 < len(r) {
			i++
			switch r[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteRune(r[i])
			}
			continue
		}
		sb.WriteRune(r[i])
	}
	return sb.String()
}
