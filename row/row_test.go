// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package row_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saurfang/spark/row"
)

func TestNewGenericAllNull(t *testing.T) {
	g := row.NewGeneric(3)
	assert.Equal(t, 3, g.Len())
	for i := 0; i < 3; i++ {
		assert.True(t, g.IsNullAt(i))
	}
	assert.Equal(t, []any{nil, nil, nil}, g.Values())
}

func TestOf(t *testing.T) {
	g := row.Of(1, 2.5, "x", true, nil)
	assert.Equal(t, 5, g.Len())
	assert.Equal(t, int64(1), g.Int64At(0))
	assert.Equal(t, 2.5, g.Float64At(1))
	assert.Equal(t, "x", g.StringAt(2))
	assert.Equal(t, true, g.BoolAt(3))
	assert.True(t, g.IsNullAt(4))
	assert.False(t, g.IsNullAt(0))
}

func TestSettersClearNull(t *testing.T) {
	g := row.NewGeneric(4)
	g.SetInt64(0, 7)
	g.SetFloat64(1, 0.5)
	g.SetString(2, "s")
	g.SetBool(3, false)
	assert.Equal(t, []any{int64(7), 0.5, "s", false}, g.Values())

	g.SetNullAt(2)
	assert.True(t, g.IsNullAt(2))
	assert.Equal(t, []any{int64(7), 0.5, nil, false}, g.Values())
}

func TestString(t *testing.T) {
	assert.Equal(t, "(1, null, x)", row.Of(1, nil, "x").String())
	assert.Equal(t, "()", row.Of().String())
}
