// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arthur-zhang/shellbox/syntax"
)

// ArithEval evaluates an arithmetic expression tree against env,
// implementing the C-like integer language: variable references resolve
// through env and, if the value is itself an arithmetic expression,
// recursively evaluate (bash's "arithmetic variables are chained" rule).
func ArithEval(x *syntax.ArithmExpr, env *Environ) (int64, error) {
	if x == nil {
		return 0, nil
	}
	switch x.Op {
	case syntax.ArNum:
		return parseArithLit(x.Lit)
	case syntax.ArVar:
		return evalArithVar(x.Lit, env)
	case syntax.ArIndex:
		idx, err := ArithEval(x.Index, env)
		if err != nil {
			return 0, err
		}
		v, _ := env.ArrayGet(x.Lit, strconv.FormatInt(idx, 10))
		return parseArithLoose(v, env)
	case syntax.ArComma:
		if _, err := ArithEval(x.X, env); err != nil {
			return 0, err
		}
		return ArithEval(x.Y, env)
	case syntax.ArTernary:
		cond, err := ArithEval(x.Z, env)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return ArithEval(x.X, env)
		}
		return ArithEval(x.Y, env)
	case syntax.ArPreInc, syntax.ArPreDec, syntax.ArPostInc, syntax.ArPostDec:
		return evalArithIncDec(x, env)
	case syntax.ArAssign, syntax.ArAddAssign, syntax.ArSubAssign, syntax.ArMulAssign,
		syntax.ArQuoAssign, syntax.ArRemAssign, syntax.ArAndAssign, syntax.ArOrAssign,
		syntax.ArXorAssign, syntax.ArShlAssign, syntax.ArShrAssign, syntax.ArPowAssign:
		return evalArithAssign(x, env)
	case syntax.ArUnaryMinus:
		v, err := ArithEval(x.X, env)
		return -v, err
	case syntax.ArUnaryPlus:
		return ArithEval(x.X, env)
	case syntax.ArNot:
		v, err := ArithEval(x.X, env)
		if err != nil {
			return 0, err
		}
		return boolInt(v == 0), nil
	case syntax.ArBitNot:
		v, err := ArithEval(x.X, env)
		return ^v, err
	}
	xv, err := ArithEval(x.X, env)
	if err != nil {
		return 0, err
	}
	yv, err := ArithEval(x.Y, env)
	if err != nil {
		return 0, err
	}
	switch x.Op {
	case syntax.ArAdd:
		return xv + yv, nil
	case syntax.ArSub:
		return xv - yv, nil
	case syntax.ArMul:
		return xv * yv, nil
	case syntax.ArQuo:
		if yv == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return xv / yv, nil
	case syntax.ArRem:
		if yv == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return xv % yv, nil
	case syntax.ArPow:
		return intPow(xv, yv), nil
	case syntax.ArBitAnd:
		return xv & yv, nil
	case syntax.ArBitOr:
		return xv | yv, nil
	case syntax.ArBitXor:
		return xv ^ yv, nil
	case syntax.ArShl:
		return xv << uint(yv), nil
	case syntax.ArShr:
		return xv >> uint(yv), nil
	case syntax.ArLand:
		return boolInt(xv != 0 && yv != 0), nil
	case syntax.ArLor:
		return boolInt(xv != 0 || yv != 0), nil
	case syntax.ArEq:
		return boolInt(xv == yv), nil
	case syntax.ArNeq:
		return boolInt(xv != yv), nil
	case syntax.ArLss:
		return boolInt(xv < yv), nil
	case syntax.ArLeq:
		return boolInt(xv <= yv), nil
	case syntax.ArGtr:
		return boolInt(xv > yv), nil
	case syntax.ArGeq:
		return boolInt(xv >= yv), nil
	}
	return 0, fmt.Errorf("unsupported arithmetic operator")
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func intPow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	var result int64 = 1
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}

func evalArithVar(name string, env *Environ) (int64, error) {
	v, ok := env.Get(name)
	if !ok || v == "" {
		return 0, nil
	}
	return parseArithLoose(v, env)
}

// parseArithLoose lets a variable's value be either a plain number or a
// nested arithmetic expression, re-parsing and recursing when it is not
// a bare numeric literal — bash's "integer variables chain" behavior.
func parseArithLoose(v string, env *Environ) (int64, error) {
	if n, err := parseArithLit(v); err == nil {
		return n, nil
	}
	ax, err := syntax.ParseArithm(v)
	if err != nil || ax == nil {
		return 0, nil
	}
	return ArithEval(ax, env)
}

func parseArithLit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	if idx := strings.Index(s, "#"); idx > 0 {
		base, err := strconv.Atoi(s[:idx])
		if err != nil {
			return 0, err
		}
		return strconv.ParseInt(s[idx+1:], base, 64)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	if len(s) > 1 && s[0] == '0' {
		return strconv.ParseInt(s, 8, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

func evalArithIncDec(x *syntax.ArithmExpr, env *Environ) (int64, error) {
	if x.X.Op != syntax.ArVar {
		return 0, fmt.Errorf("invalid increment/decrement target")
	}
	name := x.X.Lit
	cur, err := evalArithVar(name, env)
	if err != nil {
		return 0, err
	}
	var next int64
	switch x.Op {
	case syntax.ArPreInc, syntax.ArPostInc:
		next = cur + 1
	default:
		next = cur - 1
	}
	if err := env.Set(name, strconv.FormatInt(next, 10)); err != nil {
		return 0, err
	}
	if x.Op == syntax.ArPreInc || x.Op == syntax.ArPreDec {
		return next, nil
	}
	return cur, nil
}

func evalArithAssign(x *syntax.ArithmExpr, env *Environ) (int64, error) {
	if x.X.Op != syntax.ArVar && x.X.Op != syntax.ArIndex {
		return 0, fmt.Errorf("invalid assignment target")
	}
	rhs, err := ArithEval(x.Y, env)
	if err != nil {
		return 0, err
	}
	if x.Op != syntax.ArAssign {
		cur, err := ArithEval(x.X, env)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case syntax.ArAddAssign:
			rhs = cur + rhs
		case syntax.ArSubAssign:
			rhs = cur - rhs
		case syntax.ArMulAssign:
			rhs = cur * rhs
		case syntax.ArQuoAssign:
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			rhs = cur / rhs
		case syntax.ArRemAssign:
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			rhs = cur % rhs
		case syntax.ArAndAssign:
			rhs = cur & rhs
		case syntax.ArOrAssign:
			rhs = cur | rhs
		case syntax.ArXorAssign:
			rhs = cur ^ rhs
		case syntax.ArShlAssign:
			rhs = cur << uint(rhs)
		case syntax.ArShrAssign:
			rhs = cur >> uint(rhs)
		case syntax.ArPowAssign:
			rhs = intPow(cur, rhs)
		}
	}
	if x.X.Op == syntax.ArIndex {
		idx, err := ArithEval(x.X.Index, env)
		if err != nil {
			return 0, err
		}
		if err := env.ArraySet(x.X.Lit, strconv.FormatInt(idx, 10), strconv.FormatInt(rhs, 10)); err != nil {
			return 0, err
		}
		return rhs, nil
	}
	if err := env.Set(x.X.Lit, strconv.FormatInt(rhs, 10)); err != nil {
		return 0, err
	}
	return rhs, nil
}
