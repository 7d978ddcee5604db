// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"fmt"
	"sort"
	"strings"
)

// Variable carries one shell variable's attributes, mirroring the
// attribute sets that hang off InterpreterState (exported_vars,
// readonly_vars, integer_vars, namerefs, associative_arrays) but
// collapsed onto the cell itself for locality.
type Variable struct {
	Value    string
	Exported bool
	ReadOnly bool
	Integer  bool
	Nameref  bool
	Lower    bool
	Upper    bool
	IsArray  bool
	IsAssoc  bool
	Unset    bool // tombstone: declared-but-unset, used by local-scope snapshots
}

// Environ is the flat name->cell store backing InterpreterState.env.
// Arrays are never stored under their base name directly; elements live
// at "base_<index>" cells with a "base__length" marker, matching the
// invariant that a bare array reference is equivalent to element 0.
type Environ struct {
	cells map[string]*Variable
}

func NewEnviron() *Environ {
	return &Environ{cells: make(map[string]*Variable)}
}

func (e *Environ) cell(name string) (*Variable, bool) {
	v, ok := e.cells[name]
	if !ok || v.Unset {
		return nil, false
	}
	return v, true
}

// Get returns a scalar variable's value, or ("", false) if unset.
func (e *Environ) Get(name string) (string, bool) {
	v, ok := e.cell(name)
	if !ok {
		return "", false
	}
	return v.Value, true
}

// Raw returns the Variable struct itself (nil if unset), for callers that
// need attributes (declare -p, readonly checks).
func (e *Environ) Raw(name string) *Variable {
	v, ok := e.cell(name)
	if !ok {
		return nil
	}
	return v
}

func applyCase(v *Variable, s string) string {
	switch {
	case v.Lower:
		return strings.ToLower(s)
	case v.Upper:
		return strings.ToUpper(s)
	default:
		return s
	}
}

// Set assigns a scalar value, honoring readonly and the -l/-u case
// attributes already declared on the cell. The error names the variable
// when it is readonly, for the builtin layer to translate into the
// "<name>: readonly variable" diagnostic.
func (e *Environ) Set(name, value string) error {
	v, exists := e.cells[name]
	if exists && v.ReadOnly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	if !exists {
		v = &Variable{}
		e.cells[name] = v
	}
	v.Unset = false
	v.Value = applyCase(v, value)
	return nil
}

// SetAttr creates the cell if missing (value "") and applies f, without
// touching an existing value — used by declare/export/readonly/local
// when only attributes, not a value, are being set.
func (e *Environ) SetAttr(name string, f func(v *Variable)) {
	v, ok := e.cells[name]
	if !ok {
		v = &Variable{}
		e.cells[name] = v
	}
	v.Unset = false
	f(v)
}

func (e *Environ) Unset(name string) {
	if v, ok := e.cells[name]; ok {
		v.Unset = true
		v.Value = ""
	}
	prefix := name + "_"
	for k := range e.cells {
		if strings.HasPrefix(k, prefix) || k == name+"__length" {
			delete(e.cells, k)
		}
	}
}

func (e *Environ) IsReadonly(name string) bool {
	v, ok := e.cell(name)
	return ok && v.ReadOnly
}

func (e *Environ) IsSet(name string) bool {
	_, ok := e.cell(name)
	return ok
}

// Clone returns an independent copy whose cells can be mutated (e.g. by
// a subshell or function local scope) without affecting the original.
func (e *Environ) Clone() *Environ {
	out := &Environ{cells: make(map[string]*Variable, len(e.cells))}
	for k, v := range e.cells {
		cp := *v
		out.cells[k] = &cp
	}
	return out
}

// ---- array helpers: base_<index> cells + base__length marker ----

func arrKey(base, index string) string { return base + "_" + index }
func arrLenKey(base string) string     { return base + "__length" }

func (e *Environ) ArrayGet(base, index string) (string, bool) {
	return e.Get(arrKey(base, index))
}

func (e *Environ) ArraySet(base, index, value string) error {
	if e.IsReadonly(base) {
		return fmt.Errorf("%s: readonly variable", base)
	}
	if err := e.Set(arrKey(base, index), value); err != nil {
		return err
	}
	e.SetAttr(base, func(v *Variable) { v.IsArray = true })
	e.bumpLength(base)
	return nil
}

// bumpLength recomputes base__length as (max numeric index seen)+1, the
// convention for flat array encoding. Associative arrays instead store
// the count of live keys.
func (e *Environ) bumpLength(base string) {
	isAssoc := false
	if v, ok := e.cells[base]; ok {
		isAssoc = v.IsAssoc
	}
	prefix := base + "_"
	maxIdx := -1
	count := 0
	for k, v := range e.cells {
		if v.Unset || !strings.HasPrefix(k, prefix) || strings.HasSuffix(k, "__length") {
			continue
		}
		count++
		if !isAssoc {
			idxStr := strings.TrimPrefix(k, prefix)
			if n, err := parseNonNegInt(idxStr); err == nil && n > maxIdx {
				maxIdx = n
			}
		}
	}
	if isAssoc {
		e.cells[arrLenKey(base)] = &Variable{Value: fmt.Sprint(count)}
		return
	}
	e.cells[arrLenKey(base)] = &Variable{Value: fmt.Sprint(maxIdx + 1)}
}

func parseNonNegInt(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not numeric")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// ArrayIndices returns the set array's indices in ascending key order
// (numeric order for indexed arrays, lexical for associative ones).
func (e *Environ) ArrayIndices(base string) []string {
	prefix := base + "_"
	var idx []string
	for k, v := range e.cells {
		if v.Unset || !strings.HasPrefix(k, prefix) || strings.HasSuffix(k, "__length") {
			continue
		}
		idx = append(idx, strings.TrimPrefix(k, prefix))
	}
	isAssoc := false
	if v, ok := e.cells[base]; ok {
		isAssoc = v.IsAssoc
	}
	if isAssoc {
		sort.Strings(idx)
		return idx
	}
	sort.Slice(idx, func(i, j int) bool {
		ni, _ := parseNonNegInt(idx[i])
		nj, _ := parseNonNegInt(idx[j])
		return ni < nj
	})
	return idx
}

func (e *Environ) ArrayValues(base string) []string {
	idxs := e.ArrayIndices(base)
	out := make([]string, 0, len(idxs))
	for _, i := range idxs {
		v, _ := e.ArrayGet(base, i)
		out = append(out, v)
	}
	return out
}

func (e *Environ) ArrayLen(base string) int {
	if v, ok := e.Get(arrLenKey(base)); ok {
		n, _ := parseNonNegInt(v)
		return n
	}
	return 0
}

func (e *Environ) UnsetArrayElem(base, index string) {
	delete(e.cells, arrKey(base, index))
	e.bumpLength(base)
}

// Names returns every visible scalar/array-base name, sorted, for `set`
// and `export -p`/`declare -p` with no arguments.
func (e *Environ) Names() []string {
	seen := make(map[string]bool)
	for k, v := range e.cells {
		if v.Unset {
			continue
		}
		if strings.HasSuffix(k, "__length") {
			seen[strings.TrimSuffix(k, "__length")] = true
			continue
		}
		if v.IsArray {
			seen[k] = true
			continue
		}
		if _, isElem := e.cells[arrLenKey(baseOf(k))]; isElem && baseOf(k) != k {
			continue
		}
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// baseOf strips a trailing "_<index>" suffix, best-effort, for Names'
// array-element filtering.
func baseOf(k string) string {
	i := strings.LastIndex(k, "_")
	if i <= 0 {
		return k
	}
	return k[:i]
}

// WriteEnviron exports the process-visible view: every exported scalar
// cell formatted "NAME=value" (arrays are not exportable in real bash
// either, so only scalars with Exported surface here).
func WriteEnviron(e *Environ) []string {
	var out []string
	for name, v := range e.cells {
		if v.Unset || !v.Exported || v.IsArray {
			continue
		}
		out = append(out, name+"="+v.Value)
	}
	sort.Strings(out)
	return out
}
