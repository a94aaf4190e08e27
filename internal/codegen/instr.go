// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package codegen

import (
	"fmt"
	"strconv"

	"github.com/saurfang/spark/types"
)

// Reg identifies one cell of a transformer instance's register file. Registers
// are written before they are read within a single straight-line block; each
// cell carries the value together with its null flag.
type Reg int

func (r Reg) String() string {
	return "r" + strconv.Itoa(int(r))
}

// Op is the operation of a single emitted instruction.
type Op uint8

const (
	// OpLoadCol loads input field Col into Dst, null flag included.
	OpLoadCol Op = iota + 1
	// OpLoadConst loads program constant Idx into Dst.
	OpLoadConst

	// Arithmetic over Typ (i64 or f64). A null operand yields null.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg

	// Comparisons over operand type Typ, producing bool.
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Three-valued boolean logic.
	OpAnd
	OpOr
	OpNot

	// OpIsNull tests A's null flag; the result is never null.
	OpIsNull
	// OpCoalesce copies A into Dst, or B when A is null.
	OpCoalesce
	// OpCast converts A from From to Typ.
	OpCast
	// OpConcat joins two strings.
	OpConcat
	// OpMatch applies the regular expression held in state slot Idx to A.
	OpMatch

	// OpWriteCol ends a block: it writes A into output field Col using the
	// typed writer for Typ, or marks the field null when A is null.
	OpWriteCol
)

var opNames = map[Op]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpNeg: "neg",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpAnd: "and", OpOr: "or", OpNot: "not",
	OpIsNull: "isnull", OpCoalesce: "coalesce", OpConcat: "concat",
}

// Instr is one emitted low-level operation. The meaning of Typ, From, Col and
// Idx depends on Op; unused fields are zero.
type Instr struct {
	Op   Op
	Typ  types.DataType
	From types.DataType
	Dst  Reg
	A    Reg
	B    Reg
	Col  int
	Idx  int
}

// String renders the instruction in the program's textual form. The rendered
// length is also the instruction's serialized-size estimate used by the
// partitioner.
func (in Instr) String() string {
	switch in.Op {
	case OpLoadCol:
		return fmt.Sprintf("%s = col %d %s", in.Dst, in.Col, in.Typ)
	case OpLoadConst:
		return fmt.Sprintf("%s = const #%d", in.Dst, in.Idx)
	case OpAdd, OpSub, OpMul, OpDiv:
		return fmt.Sprintf("%s = %s.%s %s, %s", in.Dst, opNames[in.Op], in.Typ, in.A, in.B)
	case OpNeg:
		return fmt.Sprintf("%s = neg.%s %s", in.Dst, in.Typ, in.A)
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return fmt.Sprintf("%s = %s.%s %s, %s", in.Dst, opNames[in.Op], in.Typ, in.A, in.B)
	case OpAnd, OpOr, OpCoalesce, OpConcat:
		return fmt.Sprintf("%s = %s %s, %s", in.Dst, opNames[in.Op], in.A, in.B)
	case OpNot, OpIsNull:
		return fmt.Sprintf("%s = %s %s", in.Dst, opNames[in.Op], in.A)
	case OpCast:
		return fmt.Sprintf("%s = cast.%s.%s %s", in.Dst, in.From, in.Typ, in.A)
	case OpMatch:
		return fmt.Sprintf("%s = match @%d %s", in.Dst, in.Idx, in.A)
	case OpWriteCol:
		return fmt.Sprintf("write %d, %s %s", in.Col, in.A, in.Typ)
	}
	return fmt.Sprintf("invalid op %d", in.Op)
}

// Const is one entry of a program's constant pool. A set Null flag denotes
// the typed null literal; the value fields are then zero.
type Const struct {
	Typ  types.DataType
	Null bool
	I    int64
	F    float64
	S    string
	B    bool
}

func (c Const) String() string {
	if c.Null {
		return fmt.Sprintf("null:%s", c.Typ)
	}
	switch c.Typ {
	case types.Int64:
		return fmt.Sprintf("%d:%s", c.I, c.Typ)
	case types.Float64:
		return fmt.Sprintf("%v:%s", c.F, c.Typ)
	case types.String:
		return fmt.Sprintf("%q:%s", c.S, c.Typ)
	case types.Bool:
		return fmt.Sprintf("%v:%s", c.B, c.Typ)
	}
	return "invalid const"
}
