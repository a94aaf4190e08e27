// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package codegen

import (
	"fmt"
	"strings"

	"github.com/saurfang/spark/types"
)

// Program is the assembled, self-contained description of one projection:
// everything the backend needs to produce a loadable artifact. A Program is
// immutable once assembled.
type Program struct {
	// NumRegs is the size of the register file each instance needs.
	NumRegs int
	// Consts is the interned constant pool.
	Consts []Const
	// Slots are the persistent state slots declared during emission,
	// instantiated once per instance.
	Slots []StateSlot
	// Parts are the partitioned callable units, in invocation order.
	Parts []Part
	// Fields is the output record's schema, index-aligned with the original
	// expression list.
	Fields []types.Field
}

// Assemble collects the context's accumulated state and the partitioned code
// into a Program. The context must not be used afterwards.
func Assemble(ctx *Context, parts []Part, fields []types.Field) *Program {
	return &Program{
		NumRegs: ctx.nregs,
		Consts:  ctx.consts,
		Slots:   ctx.slots,
		Parts:   parts,
		Fields:  fields,
	}
}

// String renders the whole program in its textual form. This is the artifact
// text attached to compilation failures for diagnosis.
func (p *Program) String() string {
	var sb strings.Builder
	sb.WriteString("program ")
	sb.WriteString(types.Schema(p.Fields).String())
	sb.WriteString("\n")
	for i, k := range p.Consts {
		fmt.Fprintf(&sb, "const #%d = %s\n", i, k)
	}
	for i, s := range p.Slots {
		fmt.Fprintf(&sb, "state @%d = %s (%s)\n", i, s.Name, s.Kind)
	}
	for _, part := range p.Parts {
		sb.WriteString(part.Name)
		sb.WriteString(":\n")
		for _, in := range part.Instrs() {
			sb.WriteString("\t")
			sb.WriteString(in.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
