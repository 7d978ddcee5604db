package vfs

import "regexp"

var shebangRe = regexp.MustCompile(`^#!\s?/(usr/)?bin/(env\s+)?(sh|bash)\b`)

// LooksLikeScript reports whether data begins with a recognizable sh/bash
// shebang line. Nothing in this module calls it; the `source`/`.`
// builtin runs a sourced file without checking it.
func LooksLikeScript(data []byte) bool {
	return shebangRe.Match(data)
}
