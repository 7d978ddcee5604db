package syntax

import (
	"regexp"
	"strings"
)

// PatternOpts controls how CompilePattern treats metacharacters, mirroring
// the shopt state spec.md §4.5 says affects matching.
type PatternOpts struct {
	ExtGlob   bool // @(...) *(...) +(...) ?(...) !(...)
	NoCaseGlob bool
	GlobStar  bool // ** matches across "/" in filename globbing contexts
	Filename  bool // true for pathname expansion: "*" and "?" never match "/"
}

// CompilePattern turns a shell glob pattern into a Go regexp anchored at
// both ends, implementing spec.md's pattern-matching rules: "*" and "?"
// and "[...]" bracket expressions, plus extglob atoms when enabled.
func CompilePattern(pat string, opts PatternOpts) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?s)")
	if err := translate(&sb, []rune(pat), opts); err != nil {
		return nil, err
	}
	reSrc := "^" + sb.String() + "$"
	if opts.NoCaseGlob {
		reSrc = "(?i)" + reSrc
	}
	return regexp.Compile(reSrc)
}

func translate(sb *strings.Builder, r []rune, opts PatternOpts) error {
	i := 0
	for i < len(r) {
		c := r[i]
		switch {
		case c == '*':
			if opts.GlobStar && i+1 < len(r) && r[i+1] == '*' {
				sb.WriteString(".*")
				i += 2
				continue
			}
			if opts.Filename {
				sb.WriteString("[^/]*")
			} else {
				sb.WriteString(".*")
			}
			i++
		case c == '?':
			if opts.Filename {
				sb.WriteString("[^/]")
			} else {
				sb.WriteString(".")
			}
			i++
		case c == '[':
			j, cls := scanBracketClass(r, i)
			if cls == "" {
				sb.WriteString(regexp.QuoteMeta(string(c)))
				i++
				continue
			}
			sb.WriteString(cls)
			i = j
		case opts.ExtGlob && strings.ContainsRune("@*+?!", c) && i+1 < len(r) && r[i+1] == '(':
			j, alts := scanExtGlobAlts(r, i+2)
			if err := writeExtGlob(sb, c, alts, opts); err != nil {
				return err
			}
			i = j
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return nil
}

// scanBracketClass translates a "[...]" bracket expression starting at
// r[i]=='[' into an equivalent RE2 class, or returns "" if unterminated
// (treated as a literal "[").
func scanBracketClass(r []rune, i int) (int, string) {
	start := i
	i++
	if i >= len(r) {
		return start, ""
	}
	var sb strings.Builder
	sb.WriteByte('[')
	if i < len(r) && (r[i] == '^' || r[i] == '!') {
		sb.WriteByte('^')
		i++
	}
	if i < len(r) && r[i] == ']' {
		sb.WriteString(`\]`)
		i++
	}
	closed := false
	for i < len(r) {
		if r[i] == ']' {
			closed = true
			i++
			break
		}
		if r[i] == '[' && i+1 < len(r) && r[i+1] == ':' {
			end := strings.Index(string(r[i:]), ":]")
			if end >= 0 {
				sb.WriteString(string(r[i : i+end+2]))
				i += end + 2
				continue
			}
		}
		switch r[i] {
		case '\\':
			sb.WriteString(`\\`)
		default:
			sb.WriteRune(r[i])
		}
		i++
	}
	if !closed {
		return start, ""
	}
	sb.WriteByte(']')
	return i, sb.String()
}

// scanExtGlobAlts splits the "|"-delimited alternatives inside an extglob
// atom's parens, honoring nested parens, returning the index just past
// the matching ")".
func scanExtGlobAlts(r []rune, start int) (int, []string) {
	depth := 1
	i := start
	var alts []string
	segStart := start
	for i < len(r) && depth > 0 {
		switch r[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				alts = append(alts, string(r[segStart:i]))
				return i + 1, alts
			}
		case '|':
			if depth == 1 {
				alts = append(alts, string(r[segStart:i]))
				segStart = i + 1
			}
		}
		i++
	}
	alts = append(alts, string(r[segStart:]))
	return i, alts
}

func writeExtGlob(sb *strings.Builder, op rune, alts []string, opts PatternOpts) error {
	var inner strings.Builder
	for i, alt := range alts {
		if i > 0 {
			inner.WriteByte('|')
		}
		if err := translate(&inner, []rune(alt), opts); err != nil {
			return err
		}
	}
	switch op {
	case '@':
		sb.WriteString("(?:" + inner.String() + ")")
	case '*':
		sb.WriteString("(?:" + inner.String() + ")*")
	case '+':
		sb.WriteString("(?:" + inner.String() + ")+")
	case '?':
		sb.WriteString("(?:" + inner.String() + ")?")
	case '!':
		// Negative match has no direct RE2 equivalent; approximate with
		// "anything that doesn't equal one of the alternatives outright"
		// by matching any run of non-separator runes. Exact negative
		// extglob matching is not provided.
		if opts.Filename {
			sb.WriteString("[^/]*")
		} else {
			sb.WriteString(".*")
		}
	}
	return nil
}

// HasMeta reports whether s contains any unescaped glob metacharacter,
// letting callers skip pattern compilation for plain literals.
func HasMeta(s string, opts PatternOpts) bool {
	r := []rune(s)
	for i := 0; i < len(r); i++ {
		switch r[i] {
		case '*', '?', '[':
			return true
		case '\\':
			i++
		default:
			if opts.ExtGlob && strings.ContainsRune("@*+?!", r[i]) && i+1 < len(r) && r[i+1] == '(' {
				return true
			}
		}
	}
	return false
}
