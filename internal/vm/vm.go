// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package vm is the compile-and-load backend of the projection compiler. It
// accepts an assembled program description and turns each partition into a
// fused sequence of closures over a small register machine. Loading validates
// the whole program up front so that a loaded artifact can run without any
// per-instruction checks.
package vm

import (
	"github.com/saurfang/spark/internal/codegen"
	"github.com/saurfang/spark/row"
)

// value is one register cell: a scalar of the register's compile-time type
// together with its null flag. A set null flag shadows the scalar fields.
type value struct {
	null bool
	i    int64
	f    float64
	s    string
	b    bool
}

// machine is the mutable evaluation state of one instance during a single
// run: the register file, the persistent state slots and the current input
// and output records.
type machine struct {
	regs  []value
	slots []any
	in    row.Row
	out   row.Writer
}

// step is one compiled instruction.
type step func(m *machine)

// Artifact is a loaded program: an immutable factory for independent
// instances. An Artifact is safe for concurrent use; the instances it
// produces are not.
type Artifact struct {
	nregs int
	slots []codegen.StateSlot
	parts [][]step
}

// New constructs a fresh instance. Every state slot's initializer runs
// exactly once, here; the resulting values survive across Run calls.
func (a *Artifact) New() *Instance {
	slots := make([]any, len(a.slots))
	for i, s := range a.slots {
		slots[i] = s.Init()
	}
	return &Instance{
		m:     machine{regs: make([]value, a.nregs), slots: slots},
		parts: a.parts,
	}
}

// Instance is one stateful evaluator produced by an Artifact. An Instance
// must be confined to one goroutine at a time.
type Instance struct {
	m     machine
	parts [][]step
}

// Run evaluates the program against in, writing every output field of out
// exactly once. Each partition's fused closure sequence executes once, in
// partition order.
func (inst *Instance) Run(in row.Row, out row.Writer) {
	inst.m.in, inst.m.out = in, out
	for _, part := range inst.parts {
		for _, fn := range part {
			fn(&inst.m)
		}
	}
	inst.m.in, inst.m.out = nil, nil
}
