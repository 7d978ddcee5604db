// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestEnvironScalar(t *testing.T) {
	c := qt.New(t)
	e := NewEnviron()
	c.Assert(e.Set("foo", "bar"), qt.IsNil)
	v, ok := e.Get("foo")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "bar")

	e.SetAttr("foo", func(v *Variable) { v.ReadOnly = true })
	err := e.Set("foo", "baz")
	c.Assert(err, qt.ErrorMatches, "foo: readonly variable")
}

func TestEnvironArray(t *testing.T) {
	c := qt.New(t)
	e := NewEnviron()
	c.Assert(e.ArraySet("arr", "0", "hello"), qt.IsNil)
	c.Assert(e.ArraySet("arr", "1", "world"), qt.IsNil)
	c.Assert(e.ArrayLen("arr"), qt.Equals, 2)
	c.Assert(e.ArrayValues("arr"), qt.DeepEquals, []string{"hello", "world"})

	e.UnsetArrayElem("arr", "0")
	c.Assert(e.ArrayValues("arr"), qt.DeepEquals, []string{"world"})
}

func TestEnvironUnset(t *testing.T) {
	c := qt.New(t)
	e := NewEnviron()
	_ = e.Set("x", "1")
	e.Unset("x")
	_, ok := e.Get("x")
	c.Assert(ok, qt.IsFalse)
}

func TestWriteEnviron(t *testing.T) {
	c := qt.New(t)
	e := NewEnviron()
	_ = e.Set("A", "1")
	e.SetAttr("A", func(v *Variable) { v.Exported = true })
	_ = e.Set("B", "2")
	c.Assert(WriteEnviron(e), qt.DeepEquals, []string{"A=1"})
}
