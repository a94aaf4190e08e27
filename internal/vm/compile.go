// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package vm

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/saurfang/spark/internal/codegen"
	"github.com/saurfang/spark/types"
)

// MaxUnitSize is the hard ceiling on one callable unit's serialized size.
// The partitioner splits proactively well under this bound; a single block
// that alone exceeds it is rejected here.
const MaxUnitSize = 64 << 10

// CompilationError reports a program the backend rejected. Artifact holds the
// full rendered program for diagnosis.
type CompilationError struct {
	Reason   string
	Artifact string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("cannot load program: %s", e.Reason)
}

// Load validates p and compiles it into a loadable Artifact. Every
// instruction is checked for register, constant and slot bounds and for a
// supported operation and type combination; every partition is checked
// against MaxUnitSize. On failure no artifact is produced.
func Load(p *codegen.Program) (*Artifact, error) {
	fail := func(format string, args ...any) (*Artifact, error) {
		return nil, &CompilationError{Reason: fmt.Sprintf(format, args...), Artifact: p.String()}
	}

	consts := make([]value, len(p.Consts))
	for i, k := range p.Consts {
		consts[i] = constValue(k)
	}

	a := &Artifact{nregs: p.NumRegs, slots: p.Slots}
	for _, part := range p.Parts {
		if size := part.Size(); size > MaxUnitSize {
			return fail("unit %s has serialized size %d, above the %d ceiling", part.Name, size, MaxUnitSize)
		}
		var steps []step
		for _, in := range part.Instrs() {
			fn, err := compile(in, p, consts)
			if err != nil {
				return fail("unit %s: %s: %s", part.Name, in, err)
			}
			steps = append(steps, fn)
		}
		a.parts = append(a.parts, steps)
	}
	return a, nil
}

func constValue(k codegen.Const) value {
	if k.Null {
		return value{null: true}
	}
	switch k.Typ {
	case types.Int64:
		return value{i: k.I}
	case types.Float64:
		return value{f: k.F}
	case types.String:
		return value{s: k.S}
	case types.Bool:
		return value{b: k.B}
	}
	return value{null: true}
}

// compile turns one instruction into a closure. All operands are resolved
// here; the closure does no dispatch of its own.
func compile(in codegen.Instr, p *codegen.Program, consts []value) (step, error) {
	checkReg := func(rs ...codegen.Reg) error {
		for _, r := range rs {
			if r < 0 || int(r) >= p.NumRegs {
				return fmt.Errorf("register %s out of range", r)
			}
		}
		return nil
	}

	switch in.Op {
	case codegen.OpLoadCol:
		if err := checkReg(in.Dst); err != nil {
			return nil, err
		}
		return compileLoadCol(in)
	case codegen.OpLoadConst:
		if err := checkReg(in.Dst); err != nil {
			return nil, err
		}
		if in.Idx < 0 || in.Idx >= len(consts) {
			return nil, fmt.Errorf("constant #%d out of range", in.Idx)
		}
		dst, k := in.Dst, consts[in.Idx]
		return func(m *machine) { m.regs[dst] = k }, nil
	case codegen.OpAdd, codegen.OpSub, codegen.OpMul, codegen.OpDiv:
		if err := checkReg(in.Dst, in.A, in.B); err != nil {
			return nil, err
		}
		return compileArith(in)
	case codegen.OpNeg:
		if err := checkReg(in.Dst, in.A); err != nil {
			return nil, err
		}
		dst, a := in.Dst, in.A
		switch in.Typ {
		case types.Int64:
			return func(m *machine) {
				x := m.regs[a]
				m.regs[dst] = value{null: x.null, i: -x.i}
			}, nil
		case types.Float64:
			return func(m *machine) {
				x := m.regs[a]
				m.regs[dst] = value{null: x.null, f: -x.f}
			}, nil
		}
		return nil, fmt.Errorf("negation unsupported for %s", in.Typ)
	case codegen.OpEq, codegen.OpNe, codegen.OpLt, codegen.OpLe, codegen.OpGt, codegen.OpGe:
		if err := checkReg(in.Dst, in.A, in.B); err != nil {
			return nil, err
		}
		return compileCompare(in)
	case codegen.OpAnd:
		if err := checkReg(in.Dst, in.A, in.B); err != nil {
			return nil, err
		}
		dst, a, b := in.Dst, in.A, in.B
		return func(m *machine) {
			x, y := m.regs[a], m.regs[b]
			switch {
			case !x.null && !x.b, !y.null && !y.b:
				m.regs[dst] = value{b: false}
			case x.null || y.null:
				m.regs[dst] = value{null: true}
			default:
				m.regs[dst] = value{b: true}
			}
		}, nil
	case codegen.OpOr:
		if err := checkReg(in.Dst, in.A, in.B); err != nil {
			return nil, err
		}
		dst, a, b := in.Dst, in.A, in.B
		return func(m *machine) {
			x, y := m.regs[a], m.regs[b]
			switch {
			case !x.null && x.b, !y.null && y.b:
				m.regs[dst] = value{b: true}
			case x.null || y.null:
				m.regs[dst] = value{null: true}
			default:
				m.regs[dst] = value{b: false}
			}
		}, nil
	case codegen.OpNot:
		if err := checkReg(in.Dst, in.A); err != nil {
			return nil, err
		}
		dst, a := in.Dst, in.A
		return func(m *machine) {
			x := m.regs[a]
			m.regs[dst] = value{null: x.null, b: !x.b}
		}, nil
	case codegen.OpIsNull:
		if err := checkReg(in.Dst, in.A); err != nil {
			return nil, err
		}
		dst, a := in.Dst, in.A
		return func(m *machine) {
			m.regs[dst] = value{b: m.regs[a].null}
		}, nil
	case codegen.OpCoalesce:
		if err := checkReg(in.Dst, in.A, in.B); err != nil {
			return nil, err
		}
		dst, a, b := in.Dst, in.A, in.B
		return func(m *machine) {
			if m.regs[a].null {
				m.regs[dst] = m.regs[b]
			} else {
				m.regs[dst] = m.regs[a]
			}
		}, nil
	case codegen.OpCast:
		if err := checkReg(in.Dst, in.A); err != nil {
			return nil, err
		}
		return compileCast(in)
	case codegen.OpConcat:
		if err := checkReg(in.Dst, in.A, in.B); err != nil {
			return nil, err
		}
		dst, a, b := in.Dst, in.A, in.B
		return func(m *machine) {
			x, y := m.regs[a], m.regs[b]
			if x.null || y.null {
				m.regs[dst] = value{null: true}
				return
			}
			m.regs[dst] = value{s: x.s + y.s}
		}, nil
	case codegen.OpMatch:
		if err := checkReg(in.Dst, in.A); err != nil {
			return nil, err
		}
		if in.Idx < 0 || in.Idx >= len(p.Slots) {
			return nil, fmt.Errorf("state slot @%d out of range", in.Idx)
		}
		dst, a, slot := in.Dst, in.A, in.Idx
		return func(m *machine) {
			x := m.regs[a]
			if x.null {
				m.regs[dst] = value{null: true}
				return
			}
			re := m.slots[slot].(*regexp.Regexp)
			m.regs[dst] = value{b: re.MatchString(x.s)}
		}, nil
	case codegen.OpWriteCol:
		if err := checkReg(in.A); err != nil {
			return nil, err
		}
		return compileWriteCol(in)
	}
	return nil, fmt.Errorf("unknown operation %d", in.Op)
}

func compileLoadCol(in codegen.Instr) (step, error) {
	dst, col := in.Dst, in.Col
	switch in.Typ {
	case types.Int64:
		return func(m *machine) {
			if m.in.IsNullAt(col) {
				m.regs[dst] = value{null: true}
				return
			}
			m.regs[dst] = value{i: m.in.Int64At(col)}
		}, nil
	case types.Float64:
		return func(m *machine) {
			if m.in.IsNullAt(col) {
				m.regs[dst] = value{null: true}
				return
			}
			m.regs[dst] = value{f: m.in.Float64At(col)}
		}, nil
	case types.String:
		return func(m *machine) {
			if m.in.IsNullAt(col) {
				m.regs[dst] = value{null: true}
				return
			}
			m.regs[dst] = value{s: m.in.StringAt(col)}
		}, nil
	case types.Bool:
		return func(m *machine) {
			if m.in.IsNullAt(col) {
				m.regs[dst] = value{null: true}
				return
			}
			m.regs[dst] = value{b: m.in.BoolAt(col)}
		}, nil
	}
	return nil, fmt.Errorf("column load unsupported for %s", in.Typ)
}

func compileArith(in codegen.Instr) (step, error) {
	dst, a, b := in.Dst, in.A, in.B
	switch in.Typ {
	case types.Int64:
		var fn func(x, y int64) int64
		switch in.Op {
		case codegen.OpAdd:
			fn = func(x, y int64) int64 { return x + y }
		case codegen.OpSub:
			fn = func(x, y int64) int64 { return x - y }
		case codegen.OpMul:
			fn = func(x, y int64) int64 { return x * y }
		case codegen.OpDiv:
			// Handled below: division by zero yields null.
			return func(m *machine) {
				x, y := m.regs[a], m.regs[b]
				if x.null || y.null || y.i == 0 {
					m.regs[dst] = value{null: true}
					return
				}
				m.regs[dst] = value{i: x.i / y.i}
			}, nil
		}
		return func(m *machine) {
			x, y := m.regs[a], m.regs[b]
			if x.null || y.null {
				m.regs[dst] = value{null: true}
				return
			}
			m.regs[dst] = value{i: fn(x.i, y.i)}
		}, nil
	case types.Float64:
		var fn func(x, y float64) float64
		switch in.Op {
		case codegen.OpAdd:
			fn = func(x, y float64) float64 { return x + y }
		case codegen.OpSub:
			fn = func(x, y float64) float64 { return x - y }
		case codegen.OpMul:
			fn = func(x, y float64) float64 { return x * y }
		case codegen.OpDiv:
			fn = func(x, y float64) float64 { return x / y }
		}
		return func(m *machine) {
			x, y := m.regs[a], m.regs[b]
			if x.null || y.null {
				m.regs[dst] = value{null: true}
				return
			}
			m.regs[dst] = value{f: fn(x.f, y.f)}
		}, nil
	}
	return nil, fmt.Errorf("arithmetic unsupported for %s", in.Typ)
}

func compileCompare(in codegen.Instr) (step, error) {
	dst, a, b := in.Dst, in.A, in.B
	var fn func(x, y value) bool
	switch in.Typ {
	case types.Int64:
		switch in.Op {
		case codegen.OpEq:
			fn = func(x, y value) bool { return x.i == y.i }
		case codegen.OpNe:
			fn = func(x, y value) bool { return x.i != y.i }
		case codegen.OpLt:
			fn = func(x, y value) bool { return x.i < y.i }
		case codegen.OpLe:
			fn = func(x, y value) bool { return x.i <= y.i }
		case codegen.OpGt:
			fn = func(x, y value) bool { return x.i > y.i }
		case codegen.OpGe:
			fn = func(x, y value) bool { return x.i >= y.i }
		}
	case types.Float64:
		switch in.Op {
		case codegen.OpEq:
			fn = func(x, y value) bool { return x.f == y.f }
		case codegen.OpNe:
			fn = func(x, y value) bool { return x.f != y.f }
		case codegen.OpLt:
			fn = func(x, y value) bool { return x.f < y.f }
		case codegen.OpLe:
			fn = func(x, y value) bool { return x.f <= y.f }
		case codegen.OpGt:
			fn = func(x, y value) bool { return x.f > y.f }
		case codegen.OpGe:
			fn = func(x, y value) bool { return x.f >= y.f }
		}
	case types.String:
		switch in.Op {
		case codegen.OpEq:
			fn = func(x, y value) bool { return x.s == y.s }
		case codegen.OpNe:
			fn = func(x, y value) bool { return x.s != y.s }
		case codegen.OpLt:
			fn = func(x, y value) bool { return x.s < y.s }
		case codegen.OpLe:
			fn = func(x, y value) bool { return x.s <= y.s }
		case codegen.OpGt:
			fn = func(x, y value) bool { return x.s > y.s }
		case codegen.OpGe:
			fn = func(x, y value) bool { return x.s >= y.s }
		}
	case types.Bool:
		switch in.Op {
		case codegen.OpEq:
			fn = func(x, y value) bool { return x.b == y.b }
		case codegen.OpNe:
			fn = func(x, y value) bool { return x.b != y.b }
		}
	}
	if fn == nil {
		return nil, fmt.Errorf("comparison unsupported for %s", in.Typ)
	}
	return func(m *machine) {
		x, y := m.regs[a], m.regs[b]
		if x.null || y.null {
			m.regs[dst] = value{null: true}
			return
		}
		m.regs[dst] = value{b: fn(x, y)}
	}, nil
}

func compileCast(in codegen.Instr) (step, error) {
	dst, a := in.Dst, in.A
	switch {
	case in.From == types.Int64 && in.Typ == types.Float64:
		return func(m *machine) {
			x := m.regs[a]
			m.regs[dst] = value{null: x.null, f: float64(x.i)}
		}, nil
	case in.From == types.Float64 && in.Typ == types.Int64:
		return func(m *machine) {
			x := m.regs[a]
			m.regs[dst] = value{null: x.null, i: int64(x.f)}
		}, nil
	case in.From == types.Int64 && in.Typ == types.String:
		return func(m *machine) {
			x := m.regs[a]
			m.regs[dst] = value{null: x.null, s: strconv.FormatInt(x.i, 10)}
		}, nil
	case in.From == types.Float64 && in.Typ == types.String:
		return func(m *machine) {
			x := m.regs[a]
			m.regs[dst] = value{null: x.null, s: strconv.FormatFloat(x.f, 'g', -1, 64)}
		}, nil
	case in.From == types.Bool && in.Typ == types.String:
		return func(m *machine) {
			x := m.regs[a]
			m.regs[dst] = value{null: x.null, s: strconv.FormatBool(x.b)}
		}, nil
	}
	return nil, fmt.Errorf("cast from %s to %s unsupported", in.From, in.Typ)
}

func compileWriteCol(in codegen.Instr) (step, error) {
	col, a := in.Col, in.A
	switch in.Typ {
	case types.Int64:
		return func(m *machine) {
			if x := m.regs[a]; x.null {
				m.out.SetNullAt(col)
			} else {
				m.out.SetInt64(col, x.i)
			}
		}, nil
	case types.Float64:
		return func(m *machine) {
			if x := m.regs[a]; x.null {
				m.out.SetNullAt(col)
			} else {
				m.out.SetFloat64(col, x.f)
			}
		}, nil
	case types.String:
		return func(m *machine) {
			if x := m.regs[a]; x.null {
				m.out.SetNullAt(col)
			} else {
				m.out.SetString(col, x.s)
			}
		}, nil
	case types.Bool:
		return func(m *machine) {
			if x := m.regs[a]; x.null {
				m.out.SetNullAt(col)
			} else {
				m.out.SetBool(col, x.b)
			}
		}, nil
	}
	return nil, fmt.Errorf("field write unsupported for %s", in.Typ)
}
