// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/arthur-zhang/shellbox/syntax"
)

// parseWord parses "echo <src>" and returns the argument word, so tests
// exercise the real lexer/parser path instead of hand-built AST nodes.
func parseWord(t *testing.T, src string) *syntax.Word {
	t.Helper()
	p := syntax.NewParser("test.sh", "echo "+src)
	f, err := p.Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	call := f.Stmts[0].Cmd.(*syntax.CallExpr)
	return call.Args[1]
}

func newConfig() *Config {
	env := NewEnviron()
	_ = env.Set("HOME", "/home/user")
	_ = env.Set("foo", "bar baz")
	_ = env.Set("IFS", " \t\n")
	return &Config{Env: env, CWD: "/home/user", IFS: " \t\n"}
}

func TestExpandWordLiteral(t *testing.T) {
	c := qt.New(t)
	cfg := newConfig()
	w := parseWord(t, "hello")
	got, err := cfg.ExpandWord(w, ForCommand)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"hello"})
}

func TestExpandWordSplitting(t *testing.T) {
	c := qt.New(t)
	cfg := newConfig()
	w := parseWord(t, "$foo")
	got, err := cfg.ExpandWord(w, ForCommand)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"bar", "baz"})
}

func TestExpandWordQuotedNoSplit(t *testing.T) {
	c := qt.New(t)
	cfg := newConfig()
	w := parseWord(t, `"$foo"`)
	got, err := cfg.ExpandWord(w, ForCommand)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"bar baz"})
}

func TestExpandWordTilde(t *testing.T) {
	c := qt.New(t)
	cfg := newConfig()
	w := parseWord(t, "~/docs")
	got, err := cfg.ExpandWord(w, ForCommand)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"/home/user/docs"})
}

func TestExpandWordArithm(t *testing.T) {
	c := qt.New(t)
	cfg := newConfig()
	w := parseWord(t, "$((1+2*3))")
	got, err := cfg.ExpandWord(w, ForCommand)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"7"})
}

func TestExpandWordDefaultValue(t *testing.T) {
	c := qt.New(t)
	cfg := newConfig()
	w := parseWord(t, "${missing:-fallback}")
	got, err := cfg.ExpandWord(w, ForCommand)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"fallback"})
}

func TestExpandWordLength(t *testing.T) {
	c := qt.New(t)
	cfg := newConfig()
	w := parseWord(t, "${#foo}")
	got, err := cfg.ExpandWord(w, ForCommand)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"7"})
}
