// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package row defines the record capability consumed and produced by compiled
// projections: positional, typed access to field values plus a null mark per
// field.
//
// Generated code calls the typed readers and writers directly, selected at
// compile time from each expression's data type. No reader may be called for
// a field whose null mark is set; callers checking IsNullAt first is part of
// the contract.
package row

import (
	"fmt"
	"strings"
)

// Row is the read capability over a positional record.
type Row interface {
	// Len returns the number of fields in the record.
	Len() int
	// IsNullAt reports whether field i holds no value.
	IsNullAt(i int) bool

	Int64At(i int) int64
	Float64At(i int) float64
	StringAt(i int) string
	BoolAt(i int) bool
}

// Writer is the write capability over a positional record. A projection's
// output target must satisfy Writer.
type Writer interface {
	Row

	SetInt64(i int, v int64)
	SetFloat64(i int, v float64)
	SetString(i int, v string)
	SetBool(i int, v bool)
	// SetNullAt marks field i as holding no value.
	SetNullAt(i int)
}

// cell is one field of a Generic row. A set null flag shadows whatever value
// the cell last held.
type cell struct {
	null bool
	v    any
}

// Generic is a boxed implementation of Writer backed by a slice of cells.
// It is the default output target of a fresh transformer and the usual input
// carrier in tests.
type Generic struct {
	cells []cell
}

// NewGeneric returns a Generic row with n fields, all marked null.
func NewGeneric(n int) *Generic {
	g := &Generic{cells: make([]cell, n)}
	for i := range g.cells {
		g.cells[i].null = true
	}
	return g
}

// Of builds a Generic row from the given values. A nil value marks the field
// null. Untyped Go ints are stored as int64.
func Of(vals ...any) *Generic {
	g := &Generic{cells: make([]cell, len(vals))}
	for i, v := range vals {
		if v == nil {
			g.cells[i].null = true
			continue
		}
		if n, ok := v.(int); ok {
			v = int64(n)
		}
		g.cells[i].v = v
	}
	return g
}

func (g *Generic) Len() int           { return len(g.cells) }
func (g *Generic) IsNullAt(i int) bool { return g.cells[i].null }

func (g *Generic) Int64At(i int) int64     { return g.cells[i].v.(int64) }
func (g *Generic) Float64At(i int) float64 { return g.cells[i].v.(float64) }
func (g *Generic) StringAt(i int) string   { return g.cells[i].v.(string) }
func (g *Generic) BoolAt(i int) bool       { return g.cells[i].v.(bool) }

func (g *Generic) set(i int, v any) {
	g.cells[i].null = false
	g.cells[i].v = v
}

func (g *Generic) SetInt64(i int, v int64)     { g.set(i, v) }
func (g *Generic) SetFloat64(i int, v float64) { g.set(i, v) }
func (g *Generic) SetString(i int, v string)   { g.set(i, v) }
func (g *Generic) SetBool(i int, v bool)       { g.set(i, v) }

func (g *Generic) SetNullAt(i int) {
	g.cells[i].null = true
	g.cells[i].v = nil
}

// Values returns the row as a slice of boxed values, nil for null fields.
// It is a convenience for tests and debugging.
func (g *Generic) Values() []any {
	vals := make([]any, len(g.cells))
	for i, c := range g.cells {
		if !c.null {
			vals[i] = c.v
		}
	}
	return vals
}

// String returns a textual form of the row for debugging and test failure
// messages.
func (g *Generic) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, c := range g.cells {
		if i > 0 {
			sb.WriteString(", ")
		}
		if c.null {
			sb.WriteString("null")
		} else {
			fmt.Fprintf(&sb, "%v", c.v)
		}
	}
	sb.WriteString(")")
	return sb.String()
}
