// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package codegen holds the shared generation context that expressions emit
// evaluation logic into, the emitted instruction form, and the assembly of
// emitted code into a self-contained, loadable program.
package codegen

import (
	"strconv"

	"github.com/saurfang/spark/types"
)

// StateSlot declares one persistent field of a transformer instance. The
// initializer runs exactly once per instance, at construction, and the
// resulting value survives across apply calls.
type StateSlot struct {
	// Name is unique within one program.
	Name string
	// Kind describes the slot's contents for diagnostics, e.g. "regexp".
	Kind string
	// Init builds the slot's value for a new instance.
	Init func() any
}

// Fragment is the result of one expression's emission: the register holding
// the computed value. The register's null flag doubles as the expression's
// null indicator.
type Fragment struct {
	Result Reg
}

// Context is the mutable scratch state shared by all expressions during one
// compilation. It owns the register counter, the deduplicated constant pool,
// the declared state slots and the instruction buffer of the block currently
// being emitted. A Context belongs to exactly one compilation and is
// discarded after assembly.
type Context struct {
	nregs    int
	nnames   int
	consts   []Const
	constIdx map[Const]int
	slots    []StateSlot
	code     []Instr
}

func NewContext() *Context {
	return &Context{constIdx: make(map[Const]int)}
}

// Reg allocates a fresh register.
func (c *Context) Reg() Reg {
	r := Reg(c.nregs)
	c.nregs++
	return r
}

// FreshName returns a new identifier with the given prefix, unique within
// this compilation.
func (c *Context) FreshName(prefix string) string {
	name := prefix + "_" + strconv.Itoa(c.nnames)
	c.nnames++
	return name
}

// Const interns k in the constant pool and returns its index.
func (c *Context) Const(k Const) int {
	if idx, ok := c.constIdx[k]; ok {
		return idx
	}
	idx := len(c.consts)
	c.consts = append(c.consts, k)
	c.constIdx[k] = idx
	return idx
}

// DeclareSlot registers a persistent state slot and returns its index. The
// slot's name is generated from kind.
func (c *Context) DeclareSlot(kind string, init func() any) int {
	idx := len(c.slots)
	c.slots = append(c.slots, StateSlot{
		Name: c.FreshName(kind),
		Kind: kind,
		Init: init,
	})
	return idx
}

// Emit appends an instruction to the current block.
func (c *Context) Emit(in Instr) {
	c.code = append(c.code, in)
}

// CloseBlock terminates the current block with the write of the fragment's
// result into output field i, drains the instruction buffer, and returns the
// completed block. The closing instruction writes field i or marks it null,
// exactly once per apply call.
func (c *Context) CloseBlock(i int, frag Fragment, typ types.DataType) Block {
	c.Emit(Instr{Op: OpWriteCol, Col: i, A: frag.Result, Typ: typ})
	b := Block{Field: i, Code: c.code}
	c.code = nil
	return b
}

// NumRegs returns the number of registers allocated so far.
func (c *Context) NumRegs() int { return c.nregs }
