package syntax

import (
	"strconv"
	"strings"
)

// ExpandBraceText implements spec.md §4.3.1 brace expansion as a purely
// lexical, quote-aware rewrite of one word's raw source text into one or
// more raw source texts, each later parsed independently into word parts.
// It runs before parameter/tilde/command/arithmetic expansion, matching
// bash: brace expansion never looks inside "$(...)" or parameter names.
func ExpandBraceText(raw string) []string {
	if !strings.ContainsAny(raw, "{") {
		return []string{raw}
	}
	open, close, ok := findBraceSpan(raw)
	if !ok {
		return []string{raw}
	}
	inner := raw[open+1 : close]
	prefix, suffix := raw[:open], raw[close+1:]

	items := splitBraceItems(inner)
	var expansions []string
	if len(items) == 1 {
		if seq := sequenceItems(items[0]); seq != nil {
			expansions = seq
		} else {
			return []string{raw}
		}
	} else {
		expansions = items
	}

	var out []string
	for _, mid := range expansions {
		for _, tail := range ExpandBraceText(suffix) {
			for _, head := range ExpandBraceText(prefix) {
				out = append(out, head+mid+tail)
			}
		}
	}
	if len(out) == 0 {
		return []string{raw}
	}
	return out
}

// findBraceSpan finds the first top-level "{" and its matching "}",
// skipping single/double-quoted spans and backslash escapes. Returns
// ok=false if there is no balanced brace group.
func findBraceSpan(s string) (open, close int, ok bool) {
	depth := 0
	open = -1
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && !inSingle:
			i++
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
			// skip
		case c == '{':
			if depth == 0 {
				open = i
			}
			depth++
		case c == '}':
			depth--
			if depth == 0 && open >= 0 {
				return open, i, true
			}
		}
	}
	return 0, 0, false
}

// splitBraceItems splits the inner text of a {...} group on top-level
// commas, respecting nested braces and quoting.
func splitBraceItems(s string) []string {
	var items []string
	depth := 0
	start := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && !inSingle:
			i++
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
		case c == '{':
			depth++
		case c == '}':
			depth--
		case c == ',' && depth == 0:
			items = append(items, s[start:i])
			start = i + 1
		}
	}
	items = append(items, s[start:])
	return items
}

// sequenceItems recognizes "{from..to[..step]}" numeric or alphabetic
// sequences. Returns nil if item isn't a two/three-part ".."-separated
// sequence of matching kind.
func sequenceItems(item string) []string {
	parts := strings.Split(item, "..")
	if len(parts) != 2 && len(parts) != 3 {
		return nil
	}
	from, to := parts[0], parts[1]
	step := "1"
	if len(parts) == 3 {
		step = parts[2]
	}
	stepN, err := strconv.Atoi(step)
	if err != nil || stepN == 0 {
		return nil
	}

	if len(from) == 1 && len(to) == 1 && isAlpha(from[0]) && isAlpha(to[0]) {
		return charSequence(from[0], to[0], stepN)
	}
	fn, err1 := strconv.Atoi(from)
	tn, err2 := strconv.Atoi(to)
	if err1 != nil || err2 != nil {
		return nil
	}
	width := 0
	if hasLeadingZero(from) || hasLeadingZero(to) {
		width = maxInt(len(strings.TrimPrefix(from, "-")), len(strings.TrimPrefix(to, "-")))
	}
	return numSequence(fn, tn, stepN, width)
}

func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0'
}

func numSequence(from, to, step, width int) []string {
	if step < 0 {
		step = -step
	}
	var out []string
	if from <= to {
		for v := from; v <= to; v += step {
			out = append(out, padNum(v, width))
		}
	} else {
		for v := from; v >= to; v -= step {
			out = append(out, padNum(v, width))
		}
	}
	return out
}

func padNum(v, width int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	for len(digits) < width {
		digits = "0" + digits
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func charSequence(from, to byte, step int) []string {
	if step < 0 {
		step = -step
	}
	var out []string
	if from <= to {
		for v := int(from); v <= int(to); v += step {
			out = append(out, string(rune(v)))
		}
	} else {
		for v := int(from); v >= int(to); v -= step {
			out = append(out, string(rune(v)))
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
