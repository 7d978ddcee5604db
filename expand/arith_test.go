// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/arthur-zhang/shellbox/syntax"
)

func evalArith(t *testing.T, env *Environ, src string) int64 {
	t.Helper()
	x, err := syntax.ParseArithm(src)
	if err != nil {
		t.Fatalf("ParseArithm(%q): %v", src, err)
	}
	v, err := ArithEval(x, env)
	if err != nil {
		t.Fatalf("ArithEval(%q): %v", src, err)
	}
	return v
}

func TestArithBasic(t *testing.T) {
	c := qt.New(t)
	env := NewEnviron()
	c.Assert(evalArith(t, env, "1+2*3"), qt.Equals, int64(7))
	c.Assert(evalArith(t, env, "(1+2)*3"), qt.Equals, int64(9))
	c.Assert(evalArith(t, env, "10%3"), qt.Equals, int64(1))
	c.Assert(evalArith(t, env, "2**10"), qt.Equals, int64(1024))
}

func TestArithVarsAndAssign(t *testing.T) {
	c := qt.New(t)
	env := NewEnviron()
	_ = env.Set("x", "5")
	c.Assert(evalArith(t, env, "x+1"), qt.Equals, int64(6))
	c.Assert(evalArith(t, env, "x+=10"), qt.Equals, int64(15))
	v, _ := env.Get("x")
	c.Assert(v, qt.Equals, "15")
}

func TestArithIncDec(t *testing.T) {
	c := qt.New(t)
	env := NewEnviron()
	_ = env.Set("i", "0")
	c.Assert(evalArith(t, env, "i++"), qt.Equals, int64(0))
	v, _ := env.Get("i")
	c.Assert(v, qt.Equals, "1")
	c.Assert(evalArith(t, env, "++i"), qt.Equals, int64(2))
}

func TestArithTernaryAndCompare(t *testing.T) {
	c := qt.New(t)
	env := NewEnviron()
	c.Assert(evalArith(t, env, "1 ? 2 : 3"), qt.Equals, int64(2))
	c.Assert(evalArith(t, env, "0 ? 2 : 3"), qt.Equals, int64(3))
	c.Assert(evalArith(t, env, "3 > 2"), qt.Equals, int64(1))
	c.Assert(evalArith(t, env, "3 < 2"), qt.Equals, int64(0))
}

func TestArithDivisionByZero(t *testing.T) {
	c := qt.New(t)
	env := NewEnviron()
	x, err := syntax.ParseArithm("1/0")
	c.Assert(err, qt.IsNil)
	_, err = ArithEval(x, env)
	c.Assert(err, qt.ErrorMatches, "division by zero")
}

func TestArithChainedVariable(t *testing.T) {
	c := qt.New(t)
	env := NewEnviron()
	_ = env.Set("a", "2+3")
	c.Assert(evalArith(t, env, "a*2"), qt.Equals, int64(10))
}
