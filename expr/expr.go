// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package expr provides the scalar expression trees the projection compiler
// consumes: column references, literals and the operators over them.
//
// Expressions are immutable once built. Each expression has a deterministic
// textual form used in diagnostics and, after canonicalization, as part of
// the compilation cache key.
package expr

import (
	"fmt"
	"strings"

	"github.com/saurfang/spark/internal/codegen"
	"github.com/saurfang/spark/types"
)

// Expr is a node in a scalar expression tree.
type Expr interface {
	// String returns the textual form of the expression for debugging,
	// diagnostics and cache keys.
	String() string

	// expr is a marker method.
	expr()
}

// colRef is a symbolic reference to a schema column. A zero typ leaves the
// type to be taken from the schema; a set typ must agree with it.
type colRef struct {
	name string
	typ  types.DataType
}

// Col references the schema column with the given name. Its type is resolved
// from the schema during binding.
func Col(name string) Expr { return &colRef{name: name} }

// ColT references the schema column with the given name and declares its
// expected type. Binding fails if the schema disagrees.
func ColT(name string, typ types.DataType) Expr { return &colRef{name: name, typ: typ} }

func (e *colRef) String() string {
	if e.typ == types.Invalid {
		return fmt.Sprintf("col(%s)", e.name)
	}
	return fmt.Sprintf("col(%s:%s)", e.name, e.typ)
}

func (e *colRef) expr() {}

// literal is a constant value. An Invalid type with goVal set marks an
// unsupported literal, rejected during binding.
type literal struct {
	k     codegen.Const
	goVal any
}

// Lit builds a literal from a Go value. Supported types are int, int64,
// float64, string and bool; anything else is rejected when the expression is
// compiled.
func Lit(v any) Expr {
	switch x := v.(type) {
	case int:
		return &literal{k: codegen.Const{Typ: types.Int64, I: int64(x)}}
	case int64:
		return &literal{k: codegen.Const{Typ: types.Int64, I: x}}
	case float64:
		return &literal{k: codegen.Const{Typ: types.Float64, F: x}}
	case string:
		return &literal{k: codegen.Const{Typ: types.String, S: x}}
	case bool:
		return &literal{k: codegen.Const{Typ: types.Bool, B: x}}
	}
	return &literal{goVal: v}
}

// NullLit builds the null literal of the given type.
func NullLit(typ types.DataType) Expr {
	return &literal{k: codegen.Const{Typ: typ, Null: true}}
}

func (e *literal) String() string {
	if e.k.Typ == types.Invalid {
		return fmt.Sprintf("lit(%T)", e.goVal)
	}
	return e.k.String()
}

func (e *literal) expr() {}

// binOpKind enumerates the binary operators.
type binOpKind uint8

const (
	opAdd binOpKind = iota + 1
	opSub
	opMul
	opDiv
	opEq
	opNe
	opLt
	opLe
	opGt
	opGe
	opAnd
	opOr
)

var binOpSymbols = map[binOpKind]string{
	opAdd: "+", opSub: "-", opMul: "*", opDiv: "/",
	opEq: "=", opNe: "!=", opLt: "<", opLe: "<=", opGt: ">", opGe: ">=",
	opAnd: "and", opOr: "or",
}

// commutative binary operators may have their operands reordered during
// canonicalization without changing the program's results.
var commutative = map[binOpKind]bool{
	opAdd: true, opMul: true, opEq: true, opNe: true, opAnd: true, opOr: true,
}

type binary struct {
	op          binOpKind
	left, right Expr
}

func (e *binary) String() string {
	return fmt.Sprintf("(%s %s %s)", e.left, binOpSymbols[e.op], e.right)
}

func (e *binary) expr() {}

// Add returns a + b. Operands must be numeric; mixed integer and float
// operands are widened to float.
func Add(a, b Expr) Expr { return &binary{op: opAdd, left: a, right: b} }

// Sub returns a - b.
func Sub(a, b Expr) Expr { return &binary{op: opSub, left: a, right: b} }

// Mul returns a * b.
func Mul(a, b Expr) Expr { return &binary{op: opMul, left: a, right: b} }

// Div returns a / b. Integer division by zero evaluates to null.
func Div(a, b Expr) Expr { return &binary{op: opDiv, left: a, right: b} }

// Eq returns a = b.
func Eq(a, b Expr) Expr { return &binary{op: opEq, left: a, right: b} }

// Ne returns a != b.
func Ne(a, b Expr) Expr { return &binary{op: opNe, left: a, right: b} }

// Lt returns a < b.
func Lt(a, b Expr) Expr { return &binary{op: opLt, left: a, right: b} }

// Le returns a <= b.
func Le(a, b Expr) Expr { return &binary{op: opLe, left: a, right: b} }

// Gt returns a > b.
func Gt(a, b Expr) Expr { return &binary{op: opGt, left: a, right: b} }

// Ge returns a >= b.
func Ge(a, b Expr) Expr { return &binary{op: opGe, left: a, right: b} }

// And returns a and b with three-valued null semantics.
func And(a, b Expr) Expr { return &binary{op: opAnd, left: a, right: b} }

// Or returns a or b with three-valued null semantics.
func Or(a, b Expr) Expr { return &binary{op: opOr, left: a, right: b} }

type unaryOpKind uint8

const (
	opNeg unaryOpKind = iota + 1
	opNot
	opIsNull
	opIsNotNull
)

type unary struct {
	op    unaryOpKind
	child Expr
}

func (e *unary) String() string {
	switch e.op {
	case opNeg:
		return fmt.Sprintf("(- %s)", e.child)
	case opNot:
		return fmt.Sprintf("(not %s)", e.child)
	case opIsNull:
		return fmt.Sprintf("isnull(%s)", e.child)
	case opIsNotNull:
		return fmt.Sprintf("isnotnull(%s)", e.child)
	}
	return "invalid unary"
}

func (e *unary) expr() {}

// Neg returns -x.
func Neg(x Expr) Expr { return &unary{op: opNeg, child: x} }

// Not returns not x.
func Not(x Expr) Expr { return &unary{op: opNot, child: x} }

// IsNull reports whether x evaluates to null. The result is never null.
func IsNull(x Expr) Expr { return &unary{op: opIsNull, child: x} }

// IsNotNull reports whether x evaluates to a value. The result is never null.
func IsNotNull(x Expr) Expr { return &unary{op: opIsNotNull, child: x} }

type nary struct {
	fn   string // "coalesce" or "concat"
	args []Expr
}

func (e *nary) String() string {
	parts := make([]string, len(e.args))
	for i, a := range e.args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.fn, strings.Join(parts, ", "))
}

func (e *nary) expr() {}

// Coalesce returns the first non-null argument, or null when all arguments
// are null. All arguments must share one type, after numeric widening.
func Coalesce(args ...Expr) Expr { return &nary{fn: "coalesce", args: args} }

// Concat joins string arguments.
func Concat(args ...Expr) Expr { return &nary{fn: "concat", args: args} }

type cast struct {
	child Expr
	to    types.DataType
}

func (e *cast) String() string {
	return fmt.Sprintf("cast(%s as %s)", e.child, e.to)
}

func (e *cast) expr() {}

// Cast converts x to the given type. Supported conversions are between the
// numeric types and from any type to string.
func Cast(x Expr, to types.DataType) Expr { return &cast{child: x, to: to} }

type match struct {
	child   Expr
	pattern string
}

func (e *match) String() string {
	return fmt.Sprintf("match(%s, %q)", e.child, e.pattern)
}

func (e *match) expr() {}

// Match reports whether the string value of x matches the regular expression
// pattern. The compiled pattern is held in a per-transformer state slot,
// built once at construction and reused across apply calls.
func Match(x Expr, pattern string) Expr { return &match{child: x, pattern: pattern} }

type alias struct {
	child Expr
	name  string
}

func (e *alias) String() string {
	return fmt.Sprintf("%s as %s", e.child, e.name)
}

func (e *alias) expr() {}

// As names the output field produced by x. Field names do not affect the
// generated code: canonicalization strips them, so differently named but
// otherwise identical projections share one compiled artifact.
func As(x Expr, name string) Expr { return &alias{child: x, name: name} }
