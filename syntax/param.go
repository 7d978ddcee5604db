package syntax

import "strings"

// parseParamExp parses the body of "${...}" (braces already stripped)
// into the operator-language ParamExp described in spec.md §4.3.3.
func parseParamExp(body string, pos Pos) (*ParamExp, error) {
	pe := &ParamExp{Position: pos}
	r := []rune(body)
	i := 0

	if i < len(r) && r[i] == '#' && len(r) > 1 && !isLenAmbiguous(r) {
		pe.Op = ParExpLen
		name, idx, j := scanNameAndIndex(r, i+1)
		pe.Name, pe.Index = name, idx
		_ = j
		return pe, nil
	}
	if i < len(r) && r[i] == '!' {
		pe.Excl = true
		i++
	}

	name, idx, j := scanNameAndIndex(r, i)
	pe.Name = name
	pe.Index = idx
	i = j

	if pe.Excl {
		switch {
		case i < len(r) && (r[i] == '*' || r[i] == '@') && idx == nil:
			pe.Op = ParExpPrefixNames
			return pe, nil
		case idx != nil:
			pe.Op = ParExpKeys
			return pe, nil
		default:
			pe.Op = ParExpIndirect
			return pe, nil
		}
	}

	if i >= len(r) {
		return pe, nil
	}

	switch {
	case r[i] == '@' && i+1 < len(r):
		pe.Op = ParExpTransform
		pe.TransformLetter = string(r[i+1:])
		return pe, nil
	case strings.HasPrefix(string(r[i:]), ":-"):
		pe.Op = ParExpDefault
		pe.Arg = rawWord(string(r[i+2:]), pos)
	case strings.HasPrefix(string(r[i:]), ":="):
		pe.Op = ParExpAssign
		pe.Arg = rawWord(string(r[i+2:]), pos)
	case strings.HasPrefix(string(r[i:]), ":?"):
		pe.Op = ParExpError
		pe.Arg = rawWord(string(r[i+2:]), pos)
	case strings.HasPrefix(string(r[i:]), ":+"):
		pe.Op = ParExpAlt
		pe.Arg = rawWord(string(r[i+2:]), pos)
	case r[i] == ':':
		pe.Op = ParExpSubstr
		rest := string(r[i+1:])
		off, length, hasLen := splitOnTopColon(rest)
		pe.Arg = rawWord(off, pos)
		if hasLen {
			pe.Arg2 = rawWord(length, pos)
		}
	case strings.HasPrefix(string(r[i:]), "##"):
		pe.Op = ParExpRemLargePrefix
		pe.Arg = rawWord(string(r[i+2:]), pos)
	case r[i] == '#':
		pe.Op = ParExpRemSmallPrefix
		pe.Arg = rawWord(string(r[i+1:]), pos)
	case strings.HasPrefix(string(r[i:]), "%%"):
		pe.Op = ParExpRemLargeSuffix
		pe.Arg = rawWord(string(r[i+2:]), pos)
	case r[i] == '%':
		pe.Op = ParExpRemSmallSuffix
		pe.Arg = rawWord(string(r[i+1:]), pos)
	case strings.HasPrefix(string(r[i:]), "//"):
		pat, repl := splitReplace(string(r[i+2:]))
		pe.Op = ParExpReplaceAll
		pe.Arg, pe.Arg2 = rawWord(pat, pos), rawWord(repl, pos)
	case strings.HasPrefix(string(r[i:]), "/#"):
		pat, repl := splitReplace(string(r[i+2:]))
		pe.Op = ParExpReplaceStart
		pe.Arg, pe.Arg2 = rawWord(pat, pos), rawWord(repl, pos)
	case strings.HasPrefix(string(r[i:]), "/%"):
		pat, repl := splitReplace(string(r[i+2:]))
		pe.Op = ParExpReplaceEnd
		pe.Arg, pe.Arg2 = rawWord(pat, pos), rawWord(repl, pos)
	case r[i] == '/':
		pat, repl := splitReplace(string(r[i+1:]))
		pe.Op = ParExpReplace
		pe.Arg, pe.Arg2 = rawWord(pat, pos), rawWord(repl, pos)
	case strings.HasPrefix(string(r[i:]), "^^"):
		pe.Op = ParExpUpperAll
		pe.Arg = rawWordOpt(string(r[i+2:]), pos)
	case r[i] == '^':
		pe.Op = ParExpUpperFirst
		pe.Arg = rawWordOpt(string(r[i+1:]), pos)
	case strings.HasPrefix(string(r[i:]), ",,"):
		pe.Op = ParExpLowerAll
		pe.Arg = rawWordOpt(string(r[i+2:]), pos)
	case r[i] == ',':
		pe.Op = ParExpLowerFirst
		pe.Arg = rawWordOpt(string(r[i+1:]), pos)
	}
	return pe, nil
}

// isLenAmbiguous reports whether a leading "#" is the start of an
// operator (${#}, the length of the positional-parameter count, is
// legitimate; but "${#-x}" etc never occur because "#" as length only
// ever appears with nothing else following the name).
func isLenAmbiguous(r []rune) bool { return false }

func rawWord(raw string, pos Pos) *Word {
	p := NewParser("", "")
	w, err := p.wordFromRaw(raw, pos, true)
	if err != nil {
		return &Word{Parts: []WordPart{&Lit{Position: pos, Value: raw}}}
	}
	return w
}

func rawWordOpt(raw string, pos Pos) *Word {
	if raw == "" {
		return nil
	}
	return rawWord(raw, pos)
}

// scanNameAndIndex reads a parameter name (or special parameter char)
// optionally followed by "[index]", returning the index just past it.
func scanNameAndIndex(r []rune, i int) (string, *Word, int) {
	start := i
	if i < len(r) && (r[i] >= '0' && r[i] <= '9') {
		j := i
		for j < len(r) && r[j] >= '0' && r[j] <= '9' {
			j++
		}
		return string(r[start:j]), nil, j
	}
	if i < len(r) && strings.ContainsRune("@*#?$!-_", r[i]) && !isNameStart(r[i]) {
		return string(r[i]), nil, i + 1
	}
	for i < len(r) && isNameCont(r[i]) {
		i++
	}
	name := string(r[start:i])
	if i < len(r) && r[i] == '[' {
		depth := 1
		j := i + 1
		start2 := j
		for j < len(r) && depth > 0 {
			switch r[j] {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth == 0 {
				break
			}
			j++
		}
		idx := rawWord(string(r[start2:j]), Pos{})
		return name, idx, j + 1
	}
	return name, nil, i
}

// splitOnTopColon splits "${name:off:len}"'s "off:len" tail on the first
// unescaped, unparenthesized ":" not immediately preceded by whitespace
// serving as a negative-offset marker (spec.md's "space after : required
// to disambiguate from :-" is handled by the caller treating " -3" as an
// arithmetic expression, which parses the unary minus fine either way).
func splitOnTopColon(s string) (off, length string, hasLen bool) {
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ':':
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}

// splitReplace splits a "pat/repl" operand on the first top-level "/".
func splitReplace(s string) (pat, repl string) {
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case '/':
			if depth == 0 {
				return s[:i], s[i+1:]
			}
		}
	}
	return s, ""
}
