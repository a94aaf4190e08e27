// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package types defines the scalar data types understood by the projection
// compiler and the schema of positional records.
package types

import (
	"fmt"
	"strings"
)

// DataType identifies one of the scalar types a record field or expression
// can take.
type DataType uint8

const (
	// Invalid is the zero DataType. It is never valid in a schema.
	Invalid DataType = iota
	Int64
	Float64
	String
	Bool
)

// String returns the name of the data type used in schemas, cache keys and
// generated code.
func (t DataType) String() string {
	switch t {
	case Int64:
		return "i64"
	case Float64:
		return "f64"
	case String:
		return "str"
	case Bool:
		return "bool"
	}
	return fmt.Sprintf("invalid(%d)", uint8(t))
}

// Numeric reports whether t is an arithmetic type.
func (t DataType) Numeric() bool {
	return t == Int64 || t == Float64
}

// Field is a single named, typed attribute of a schema.
type Field struct {
	Name string
	Type DataType
}

// Schema is an ordered sequence of attributes describing the layout of a
// positional record.
type Schema []Field

// String returns a stable textual form of the schema. It is part of the
// compilation cache key: two schemas with the same String bind expressions
// identically.
func (s Schema) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, f := range s {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(":")
		sb.WriteString(f.Type.String())
	}
	sb.WriteString(")")
	return sb.String()
}
