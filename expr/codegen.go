// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/saurfang/spark/internal/codegen"
	"github.com/saurfang/spark/types"
)

// The bound node types below carry their schema resolution and emit
// straight-line evaluation logic into the shared generation context.
// Emission computes a local result only: the sole externally visible writes
// are to registers the node allocates itself and, for boundMatch, the state
// slot it declares.

type boundRef struct {
	name string
	pos  int
	typ  types.DataType
}

func (b *boundRef) DataType() types.DataType { return b.typ }

func (b *boundRef) String() string {
	return fmt.Sprintf("col(%s@%d:%s)", b.name, b.pos, b.typ)
}

func (b *boundRef) CodeGen(ctx *codegen.Context) (codegen.Fragment, error) {
	dst := ctx.Reg()
	ctx.Emit(codegen.Instr{Op: codegen.OpLoadCol, Dst: dst, Col: b.pos, Typ: b.typ})
	return codegen.Fragment{Result: dst}, nil
}

type boundLit struct {
	k codegen.Const
}

func (b *boundLit) DataType() types.DataType { return b.k.Typ }

func (b *boundLit) String() string { return b.k.String() }

func (b *boundLit) CodeGen(ctx *codegen.Context) (codegen.Fragment, error) {
	dst := ctx.Reg()
	ctx.Emit(codegen.Instr{Op: codegen.OpLoadConst, Dst: dst, Idx: ctx.Const(b.k)})
	return codegen.Fragment{Result: dst}, nil
}

var binOpCode = map[binOpKind]codegen.Op{
	opAdd: codegen.OpAdd, opSub: codegen.OpSub, opMul: codegen.OpMul, opDiv: codegen.OpDiv,
	opEq: codegen.OpEq, opNe: codegen.OpNe, opLt: codegen.OpLt, opLe: codegen.OpLe,
	opGt: codegen.OpGt, opGe: codegen.OpGe,
	opAnd: codegen.OpAnd, opOr: codegen.OpOr,
}

type boundBin struct {
	op      binOpKind
	operand types.DataType // reconciled operand type
	typ     types.DataType // result type
	left    Bound
	right   Bound
}

func (b *boundBin) DataType() types.DataType { return b.typ }

func (b *boundBin) String() string {
	return fmt.Sprintf("(%s %s %s)", b.left, binOpSymbols[b.op], b.right)
}

func (b *boundBin) CodeGen(ctx *codegen.Context) (codegen.Fragment, error) {
	lf, err := b.left.CodeGen(ctx)
	if err != nil {
		return codegen.Fragment{}, err
	}
	rf, err := b.right.CodeGen(ctx)
	if err != nil {
		return codegen.Fragment{}, err
	}
	op, ok := binOpCode[b.op]
	if !ok {
		return codegen.Fragment{}, &CodeGenError{Expr: b.String(), Reason: "unknown binary operator"}
	}
	dst := ctx.Reg()
	ctx.Emit(codegen.Instr{Op: op, Dst: dst, A: lf.Result, B: rf.Result, Typ: b.operand})
	return codegen.Fragment{Result: dst}, nil
}

type boundUnary struct {
	op    unaryOpKind
	typ   types.DataType
	child Bound
}

func (b *boundUnary) DataType() types.DataType { return b.typ }

func (b *boundUnary) String() string {
	switch b.op {
	case opNeg:
		return fmt.Sprintf("(- %s)", b.child)
	case opNot:
		return fmt.Sprintf("(not %s)", b.child)
	case opIsNull:
		return fmt.Sprintf("isnull(%s)", b.child)
	case opIsNotNull:
		return fmt.Sprintf("isnotnull(%s)", b.child)
	}
	return "invalid unary"
}

func (b *boundUnary) CodeGen(ctx *codegen.Context) (codegen.Fragment, error) {
	cf, err := b.child.CodeGen(ctx)
	if err != nil {
		return codegen.Fragment{}, err
	}
	dst := ctx.Reg()
	switch b.op {
	case opNeg:
		ctx.Emit(codegen.Instr{Op: codegen.OpNeg, Dst: dst, A: cf.Result, Typ: b.typ})
	case opNot:
		ctx.Emit(codegen.Instr{Op: codegen.OpNot, Dst: dst, A: cf.Result})
	case opIsNull:
		ctx.Emit(codegen.Instr{Op: codegen.OpIsNull, Dst: dst, A: cf.Result})
	case opIsNotNull:
		ctx.Emit(codegen.Instr{Op: codegen.OpIsNull, Dst: dst, A: cf.Result})
		inv := ctx.Reg()
		ctx.Emit(codegen.Instr{Op: codegen.OpNot, Dst: inv, A: dst})
		dst = inv
	default:
		return codegen.Fragment{}, &CodeGenError{Expr: b.String(), Reason: "unknown unary operator"}
	}
	return codegen.Fragment{Result: dst}, nil
}

type boundCoalesce struct {
	typ  types.DataType
	args []Bound
}

func (b *boundCoalesce) DataType() types.DataType { return b.typ }

func (b *boundCoalesce) String() string { return naryString("coalesce", b.args) }

func (b *boundCoalesce) CodeGen(ctx *codegen.Context) (codegen.Fragment, error) {
	acc, err := b.args[0].CodeGen(ctx)
	if err != nil {
		return codegen.Fragment{}, err
	}
	for _, a := range b.args[1:] {
		af, err := a.CodeGen(ctx)
		if err != nil {
			return codegen.Fragment{}, err
		}
		dst := ctx.Reg()
		ctx.Emit(codegen.Instr{Op: codegen.OpCoalesce, Dst: dst, A: acc.Result, B: af.Result})
		acc = codegen.Fragment{Result: dst}
	}
	return acc, nil
}

type boundConcat struct {
	args []Bound
}

func (b *boundConcat) DataType() types.DataType { return types.String }

func (b *boundConcat) String() string { return naryString("concat", b.args) }

func (b *boundConcat) CodeGen(ctx *codegen.Context) (codegen.Fragment, error) {
	acc, err := b.args[0].CodeGen(ctx)
	if err != nil {
		return codegen.Fragment{}, err
	}
	for _, a := range b.args[1:] {
		af, err := a.CodeGen(ctx)
		if err != nil {
			return codegen.Fragment{}, err
		}
		dst := ctx.Reg()
		ctx.Emit(codegen.Instr{Op: codegen.OpConcat, Dst: dst, A: acc.Result, B: af.Result})
		acc = codegen.Fragment{Result: dst}
	}
	return acc, nil
}

type boundCast struct {
	from  types.DataType
	to    types.DataType
	child Bound
}

func (b *boundCast) DataType() types.DataType { return b.to }

func (b *boundCast) String() string {
	return fmt.Sprintf("cast(%s as %s)", b.child, b.to)
}

func (b *boundCast) CodeGen(ctx *codegen.Context) (codegen.Fragment, error) {
	cf, err := b.child.CodeGen(ctx)
	if err != nil {
		return codegen.Fragment{}, err
	}
	if b.from == b.to {
		return cf, nil
	}
	dst := ctx.Reg()
	ctx.Emit(codegen.Instr{Op: codegen.OpCast, Dst: dst, A: cf.Result, From: b.from, Typ: b.to})
	return codegen.Fragment{Result: dst}, nil
}

type boundMatch struct {
	child   Bound
	pattern string
}

func (b *boundMatch) DataType() types.DataType { return types.Bool }

func (b *boundMatch) String() string {
	return fmt.Sprintf("match(%s, %q)", b.child, b.pattern)
}

func (b *boundMatch) CodeGen(ctx *codegen.Context) (codegen.Fragment, error) {
	cf, err := b.child.CodeGen(ctx)
	if err != nil {
		return codegen.Fragment{}, err
	}
	// The pattern was validated during binding; each transformer instance
	// compiles its own copy once, at construction.
	pattern := b.pattern
	slot := ctx.DeclareSlot("regexp", func() any { return regexp.MustCompile(pattern) })
	dst := ctx.Reg()
	ctx.Emit(codegen.Instr{Op: codegen.OpMatch, Dst: dst, A: cf.Result, Idx: slot})
	return codegen.Fragment{Result: dst}, nil
}

func naryString(fn string, args []Bound) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(parts, ", "))
}
