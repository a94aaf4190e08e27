// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

// Canonicalize normalizes an expression list into a form stable across
// structurally equal inputs, for cache-key purposes. It is pure and
// deterministic and never fails: an expression it does not know how to
// normalize passes through unchanged.
//
// Normalizations applied:
//   - output field aliases are stripped (naming does not affect the code),
//   - operands of commutative operators are ordered by textual form,
//   - double negation is collapsed,
//   - nested coalesce and concat are flattened.
func Canonicalize(exprs []Expr) []Expr {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = canonicalize(e)
	}
	return out
}

func canonicalize(e Expr) Expr {
	switch n := e.(type) {
	case *alias:
		return canonicalize(n.child)
	case *binary:
		left, right := canonicalize(n.left), canonicalize(n.right)
		if commutative[n.op] && right.String() < left.String() {
			left, right = right, left
		}
		return &binary{op: n.op, left: left, right: right}
	case *unary:
		child := canonicalize(n.child)
		if n.op == opNot {
			if inner, ok := child.(*unary); ok && inner.op == opNot {
				return inner.child
			}
		}
		return &unary{op: n.op, child: child}
	case *nary:
		var args []Expr
		for _, a := range n.args {
			a = canonicalize(a)
			if inner, ok := a.(*nary); ok && inner.fn == n.fn {
				args = append(args, inner.args...)
				continue
			}
			args = append(args, a)
		}
		return &nary{fn: n.fn, args: args}
	case *cast:
		return &cast{child: canonicalize(n.child), to: n.to}
	case *match:
		return &match{child: canonicalize(n.child), pattern: n.pattern}
	}
	// Already canonical: references, literals, unknown shapes.
	return e
}
