// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package codegen

import (
	"strconv"
)

// Block is one output field's complete update logic: the field's evaluation
// instructions followed by the closing OpWriteCol. Blocks are index-aligned
// with the expression list and are the unit the partitioner packs; a block is
// never split and blocks are never reordered.
type Block struct {
	Field int
	Code  []Instr
}

// Size is the block's serialized-size estimate: the length of its rendered
// text. The estimate is deliberately conservative; the backend enforces the
// real ceiling at load time.
func (b Block) Size() int {
	n := 0
	for _, in := range b.Code {
		n += len(in.String()) + 1
	}
	return n
}

// Part is an ordered group of blocks compiled into one callable unit. Parts
// are named deterministically by position and invoked once each, in order,
// per apply call.
type Part struct {
	Name   string
	Blocks []Block
}

// Size returns the part's estimated serialized size.
func (p Part) Size() int {
	n := 0
	for _, b := range p.Blocks {
		n += b.Size()
	}
	return n
}

// Instrs returns the part's instructions in block order.
func (p Part) Instrs() []Instr {
	var code []Instr
	for _, b := range p.Blocks {
		code = append(code, b.Code...)
	}
	return code
}

// Partition packs blocks, in order, into parts whose estimated size stays
// under threshold. A block whose own size reaches the threshold becomes the
// sole member of its part; the backend's hard ceiling then decides whether it
// is loadable at all. The concatenation of all parts' blocks is exactly the
// input block sequence.
func Partition(blocks []Block, threshold int) []Part {
	var parts []Part
	var run []Block
	size := 0
	for _, b := range blocks {
		if len(run) > 0 && size+b.Size() >= threshold {
			parts = append(parts, newPart(len(parts), run))
			run, size = nil, 0
		}
		run = append(run, b)
		size += b.Size()
	}
	if len(run) > 0 {
		parts = append(parts, newPart(len(parts), run))
	}
	return parts
}

func newPart(idx int, blocks []Block) Part {
	return Part{Name: "project_" + strconv.Itoa(idx), Blocks: blocks}
}
