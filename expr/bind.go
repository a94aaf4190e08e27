// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/saurfang/spark/internal/codegen"
	"github.com/saurfang/spark/types"
)

// BindingError reports a column reference that could not be resolved against
// the input schema, or whose declared type disagrees with the schema.
type BindingError struct {
	Name   string
	Reason string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("cannot bind reference %q: %s", e.Name, e.Reason)
}

// CodeGenError reports an expression whose evaluation logic cannot be
// generated, e.g. an unsupported operand type combination. Expr holds the
// textual form of the implicated expression.
type CodeGenError struct {
	Expr   string
	Reason string
}

func (e *CodeGenError) Error() string {
	return fmt.Sprintf("cannot generate code for %s: %s", e.Expr, e.Reason)
}

// Bound is a position and type resolved expression, ready to emit its
// evaluation logic into a shared generation context.
type Bound interface {
	// DataType is the type of the expression's result.
	DataType() types.DataType
	// CodeGen emits the expression's evaluation logic into ctx and returns
	// the fragment holding its result.
	CodeGen(ctx *codegen.Context) (codegen.Fragment, error)
	// String returns the textual form of the bound expression.
	String() string
}

// Bind resolves every column reference in exprs against schema and infers
// result types, producing the bound expression list and the output fields it
// projects. Output fields take their names from As aliases where present and
// are generated positionally otherwise.
//
// Reference failures (unknown column, ambiguous column, declared type
// mismatch) surface as *BindingError; unsupported operator and operand
// combinations surface as *CodeGenError. Bind has no side effects outside the
// returned trees.
func Bind(exprs []Expr, schema types.Schema) ([]Bound, []types.Field, error) {
	bound := make([]Bound, len(exprs))
	fields := make([]types.Field, len(exprs))
	for i, e := range exprs {
		name := "col_" + strconv.Itoa(i)
		if a, ok := e.(*alias); ok {
			name = a.name
			e = a.child
		}
		b, err := bind(e, schema)
		if err != nil {
			return nil, nil, err
		}
		bound[i] = b
		fields[i] = types.Field{Name: name, Type: b.DataType()}
	}
	return bound, fields, nil
}

func bind(e Expr, schema types.Schema) (Bound, error) {
	switch n := e.(type) {
	case *colRef:
		return bindRef(n, schema)
	case *literal:
		if n.k.Typ == types.Invalid {
			return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("unsupported literal type %T", n.goVal)}
		}
		return &boundLit{k: n.k}, nil
	case *binary:
		return bindBinary(n, schema)
	case *unary:
		return bindUnary(n, schema)
	case *nary:
		return bindNary(n, schema)
	case *cast:
		child, err := bind(n.child, schema)
		if err != nil {
			return nil, err
		}
		if !castable(child.DataType(), n.to) {
			return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("cannot cast %s to %s", child.DataType(), n.to)}
		}
		return &boundCast{from: child.DataType(), to: n.to, child: child}, nil
	case *match:
		child, err := bind(n.child, schema)
		if err != nil {
			return nil, err
		}
		if child.DataType() != types.String {
			return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("match needs a string operand, got %s", child.DataType())}
		}
		if _, err := regexp.Compile(n.pattern); err != nil {
			return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("invalid pattern: %s", err)}
		}
		return &boundMatch{child: child, pattern: n.pattern}, nil
	case *alias:
		// Aliases below the top level only rename; the name is dropped.
		return bind(n.child, schema)
	}
	return nil, &CodeGenError{Expr: e.String(), Reason: fmt.Sprintf("unknown expression node %T", e)}
}

// bindRef resolves a column reference to a schema position. The resolved type
// must agree with a declared type, if any.
func bindRef(ref *colRef, schema types.Schema) (Bound, error) {
	pos := -1
	for i, f := range schema {
		if f.Name != ref.name {
			continue
		}
		if pos >= 0 {
			return nil, &BindingError{Name: ref.name, Reason: fmt.Sprintf("ambiguous, schema %s has multiple matches", schema)}
		}
		pos = i
	}
	if pos < 0 {
		return nil, &BindingError{Name: ref.name, Reason: fmt.Sprintf("not found in schema %s", schema)}
	}
	typ := schema[pos].Type
	if ref.typ != types.Invalid && ref.typ != typ {
		return nil, &BindingError{Name: ref.name, Reason: fmt.Sprintf("declared type %s does not match schema type %s", ref.typ, typ)}
	}
	return &boundRef{name: ref.name, pos: pos, typ: typ}, nil
}

func bindBinary(n *binary, schema types.Schema) (Bound, error) {
	left, err := bind(n.left, schema)
	if err != nil {
		return nil, err
	}
	right, err := bind(n.right, schema)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case opAdd, opSub, opMul, opDiv:
		left, right, operand, err := widen(n, left, right)
		if err != nil {
			return nil, err
		}
		if !operand.Numeric() {
			return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("arithmetic needs numeric operands, got %s", operand)}
		}
		return &boundBin{op: n.op, operand: operand, typ: operand, left: left, right: right}, nil
	case opEq, opNe, opLt, opLe, opGt, opGe:
		left, right, operand, err := widen(n, left, right)
		if err != nil {
			return nil, err
		}
		if operand == types.Bool && n.op != opEq && n.op != opNe {
			return nil, &CodeGenError{Expr: n.String(), Reason: "booleans are only comparable with = and !="}
		}
		return &boundBin{op: n.op, operand: operand, typ: types.Bool, left: left, right: right}, nil
	case opAnd, opOr:
		if left.DataType() != types.Bool || right.DataType() != types.Bool {
			return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("logical operator needs boolean operands, got %s and %s", left.DataType(), right.DataType())}
		}
		return &boundBin{op: n.op, operand: types.Bool, typ: types.Bool, left: left, right: right}, nil
	}
	return nil, &CodeGenError{Expr: n.String(), Reason: "unknown binary operator"}
}

func bindUnary(n *unary, schema types.Schema) (Bound, error) {
	child, err := bind(n.child, schema)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case opNeg:
		if !child.DataType().Numeric() {
			return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("negation needs a numeric operand, got %s", child.DataType())}
		}
		return &boundUnary{op: n.op, typ: child.DataType(), child: child}, nil
	case opNot:
		if child.DataType() != types.Bool {
			return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("not needs a boolean operand, got %s", child.DataType())}
		}
		return &boundUnary{op: n.op, typ: types.Bool, child: child}, nil
	case opIsNull, opIsNotNull:
		return &boundUnary{op: n.op, typ: types.Bool, child: child}, nil
	}
	return nil, &CodeGenError{Expr: n.String(), Reason: "unknown unary operator"}
}

func bindNary(n *nary, schema types.Schema) (Bound, error) {
	if len(n.args) == 0 {
		return nil, &CodeGenError{Expr: n.String(), Reason: n.fn + " needs at least one argument"}
	}
	args := make([]Bound, len(n.args))
	for i, a := range n.args {
		b, err := bind(a, schema)
		if err != nil {
			return nil, err
		}
		args[i] = b
	}

	switch n.fn {
	case "concat":
		for _, a := range args {
			if a.DataType() != types.String {
				return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("concat needs string arguments, got %s", a.DataType())}
			}
		}
		return &boundConcat{args: args}, nil
	case "coalesce":
		typ := args[0].DataType()
		for _, a := range args[1:] {
			switch {
			case a.DataType() == typ:
			case a.DataType().Numeric() && typ.Numeric():
				typ = types.Float64
			default:
				return nil, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("coalesce arguments mix %s and %s", typ, a.DataType())}
			}
		}
		for i, a := range args {
			if a.DataType() != typ {
				args[i] = &boundCast{from: a.DataType(), to: typ, child: a}
			}
		}
		return &boundCoalesce{typ: typ, args: args}, nil
	}
	return nil, &CodeGenError{Expr: n.String(), Reason: "unknown function " + n.fn}
}

// widen reconciles the operand types of a binary operator, inserting an
// implicit Int64 to Float64 cast for mixed numeric operands.
func widen(n *binary, left, right Bound) (Bound, Bound, types.DataType, error) {
	lt, rt := left.DataType(), right.DataType()
	switch {
	case lt == rt:
		return left, right, lt, nil
	case lt == types.Int64 && rt == types.Float64:
		return &boundCast{from: lt, to: rt, child: left}, right, types.Float64, nil
	case lt == types.Float64 && rt == types.Int64:
		return left, &boundCast{from: rt, to: lt, child: right}, types.Float64, nil
	}
	return nil, nil, types.Invalid, &CodeGenError{Expr: n.String(), Reason: fmt.Sprintf("mismatched operand types %s and %s", lt, rt)}
}

// castable reports whether values of type from can be converted to type to.
func castable(from, to types.DataType) bool {
	if from == to {
		return true
	}
	if from.Numeric() && to.Numeric() {
		return true
	}
	return to == types.String
}
