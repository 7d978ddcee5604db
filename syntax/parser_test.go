// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func parse(t *testing.T, src string) *File {
	t.Helper()
	f, err := NewParser("test.sh", src).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return f
}

func TestParseSimpleCommand(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "echo hello world\n")
	c.Assert(f.Stmts, qt.HasLen, 1)
	call, ok := f.Stmts[0].Cmd.(*CallExpr)
	c.Assert(ok, qt.IsTrue)
	c.Assert(call.Args, qt.HasLen, 3)
	lit, _ := call.Args[0].Lit()
	c.Assert(lit, qt.Equals, "echo")
}

func TestParsePipeline(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "a | b | c\n")
	pl, ok := f.Stmts[0].Cmd.(*Pipeline)
	c.Assert(ok, qt.IsTrue)
	c.Assert(pl.Stages, qt.HasLen, 3)
}

func TestParseAndOr(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "a && b || c\n")
	c.Assert(f.Stmts, qt.HasLen, 1)
	bc, ok := f.Stmts[0].Cmd.(*BinaryCmd)
	c.Assert(ok, qt.IsTrue)
	c.Assert(bc.Op, qt.Equals, OrOr)
}

func TestParseIf(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "if true; then echo yes; elif false; then echo maybe; else echo no; fi\n")
	ic, ok := f.Stmts[0].Cmd.(*IfClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(ic.Elifs, qt.HasLen, 1)
	c.Assert(ic.Else, qt.Not(qt.IsNil))
}

func TestParseForWordList(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "for x in a b c; do echo $x; done\n")
	fc, ok := f.Stmts[0].Cmd.(*ForClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(fc.CStyle, qt.IsFalse)
	c.Assert(fc.Items, qt.HasLen, 3)
}

func TestParseForCStyle(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "for ((i=0; i<10; i++)); do echo $i; done\n")
	fc, ok := f.Stmts[0].Cmd.(*ForClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(fc.CStyle, qt.IsTrue)
}

func TestParseCase(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "case $x in a) echo a ;; b|c) echo bc ;; *) echo other ;; esac\n")
	cc, ok := f.Stmts[0].Cmd.(*CaseClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(cc.Items, qt.HasLen, 3)
	c.Assert(cc.Items[1].Patterns, qt.HasLen, 2)
}

func TestParseBlock(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "{ echo a; echo b; }\n")
	bl, ok := f.Stmts[0].Cmd.(*Block)
	c.Assert(ok, qt.IsTrue)
	c.Assert(bl.Stmts, qt.HasLen, 2)
}

func TestParseSubshell(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "(echo a; echo b)\n")
	_, ok := f.Stmts[0].Cmd.(*Subshell)
	c.Assert(ok, qt.IsTrue)
}

func TestParseFuncDecl(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "foo() { echo bar; }\n")
	fd, ok := f.Stmts[0].Cmd.(*FuncDecl)
	c.Assert(ok, qt.IsTrue)
	c.Assert(fd.Name, qt.Equals, "foo")
}

func TestParseArithmCmd(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "(( (1+2)*3 ))\n")
	ac, ok := f.Stmts[0].Cmd.(*ArithmCmd)
	c.Assert(ok, qt.IsTrue)
	c.Assert(ac.X.Op, qt.Equals, ArMul)
}

func TestParseTestClause(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "[[ -f foo.txt && -n $bar ]]\n")
	tc, ok := f.Stmts[0].Cmd.(*TestClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(tc.X.Kind, qt.Equals, TestAnd)
}

func TestParseRedirect(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "echo hi > out.txt 2>&1\n")
	c.Assert(f.Stmts[0].Redirs, qt.HasLen, 2)
	c.Assert(f.Stmts[0].Redirs[0].Op, qt.Equals, RedirWrite)
	c.Assert(f.Stmts[0].Redirs[1].Op, qt.Equals, DupOut)
}

func TestParseHeredoc(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "cat <<EOF\nhello\nEOF\n")
	c.Assert(f.Stmts[0].Redirs, qt.HasLen, 1)
	c.Assert(f.Stmts[0].Redirs[0].Op, qt.Equals, Heredoc)
}

func TestParseNegatedPipeline(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "! grep foo bar.txt\n")
	pl, ok := f.Stmts[0].Cmd.(*Pipeline)
	c.Assert(ok, qt.IsTrue)
	c.Assert(pl.Negate, qt.IsTrue)
}

func TestParseBraceExpansion(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "echo a{1,2,3}b\n")
	call := f.Stmts[0].Cmd.(*CallExpr)
	c.Assert(call.Args, qt.HasLen, 4)
}
