// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr_test

import (
	"errors"

	. "gopkg.in/check.v1"

	"github.com/saurfang/spark/expr"
	"github.com/saurfang/spark/types"
)

type BindSuite struct{}

var _ = Suite(&BindSuite{})

var bindSchema = types.Schema{
	{Name: "id", Type: types.Int64},
	{Name: "ratio", Type: types.Float64},
	{Name: "name", Type: types.String},
	{Name: "ok", Type: types.Bool},
}

func (s *BindSuite) TestResultTypes(c *C) {
	tests := []struct {
		summary string
		input   expr.Expr
		typ     types.DataType
	}{{
		"reference takes schema type",
		expr.Col("ratio"),
		types.Float64,
	}, {
		"matching declared type",
		expr.ColT("id", types.Int64),
		types.Int64,
	}, {
		"integer arithmetic stays integer",
		expr.Add(expr.Col("id"), expr.Lit(2)),
		types.Int64,
	}, {
		"mixed arithmetic widens to float",
		expr.Mul(expr.Col("id"), expr.Col("ratio")),
		types.Float64,
	}, {
		"comparison produces bool",
		expr.Lt(expr.Col("id"), expr.Lit(10)),
		types.Bool,
	}, {
		"mixed comparison widens",
		expr.Ge(expr.Col("ratio"), expr.Col("id")),
		types.Bool,
	}, {
		"isnull of any type",
		expr.IsNull(expr.Col("name")),
		types.Bool,
	}, {
		"coalesce of mixed numerics widens",
		expr.Coalesce(expr.Col("id"), expr.Col("ratio")),
		types.Float64,
	}, {
		"concat produces string",
		expr.Concat(expr.Col("name"), expr.Lit("!")),
		types.String,
	}, {
		"cast to string",
		expr.Cast(expr.Col("ok"), types.String),
		types.String,
	}, {
		"match produces bool",
		expr.Match(expr.Col("name"), "^z"),
		types.Bool,
	}, {
		"negation keeps type",
		expr.Neg(expr.Col("ratio")),
		types.Float64,
	}}

	for _, t := range tests {
		c.Logf("test: %s", t.summary)
		bound, fields, err := expr.Bind([]expr.Expr{t.input}, bindSchema)
		c.Assert(err, IsNil)
		c.Assert(bound, HasLen, 1)
		c.Check(bound[0].DataType(), Equals, t.typ)
		c.Check(fields[0].Type, Equals, t.typ)
	}
}

func (s *BindSuite) TestFieldNames(c *C) {
	_, fields, err := expr.Bind([]expr.Expr{
		expr.As(expr.Col("id"), "order_id"),
		expr.Col("ratio"),
	}, bindSchema)
	c.Assert(err, IsNil)
	c.Assert(fields, DeepEquals, []types.Field{
		{Name: "order_id", Type: types.Int64},
		{Name: "col_1", Type: types.Float64},
	})
}

func (s *BindSuite) TestBindingErrors(c *C) {
	dupSchema := types.Schema{
		{Name: "id", Type: types.Int64},
		{Name: "id", Type: types.String},
	}
	tests := []struct {
		summary string
		schema  types.Schema
		input   expr.Expr
		err     string
	}{{
		"unknown reference",
		bindSchema,
		expr.Col("nope"),
		`cannot bind reference "nope": not found in schema \(id:i64, ratio:f64, name:str, ok:bool\)`,
	}, {
		"unknown reference nested",
		bindSchema,
		expr.Add(expr.Lit(1), expr.Col("nope")),
		`cannot bind reference "nope": not found in schema .*`,
	}, {
		"ambiguous reference",
		dupSchema,
		expr.Col("id"),
		`cannot bind reference "id": ambiguous, schema .* has multiple matches`,
	}, {
		"declared type mismatch",
		bindSchema,
		expr.ColT("ratio", types.String),
		`cannot bind reference "ratio": declared type str does not match schema type f64`,
	}}

	for _, t := range tests {
		c.Logf("test: %s", t.summary)
		_, _, err := expr.Bind([]expr.Expr{t.input}, t.schema)
		c.Assert(err, ErrorMatches, t.err)
		var berr *expr.BindingError
		c.Assert(errors.As(err, &berr), Equals, true)
	}
}

func (s *BindSuite) TestCodeGenErrors(c *C) {
	tests := []struct {
		summary string
		input   expr.Expr
		err     string
	}{{
		"arithmetic on strings",
		expr.Add(expr.Col("name"), expr.Col("name")),
		`cannot generate code for .*: arithmetic needs numeric operands, got str`,
	}, {
		"arithmetic on bools",
		expr.Sub(expr.Col("ok"), expr.Col("ok")),
		`cannot generate code for .*: arithmetic needs numeric operands, got bool`,
	}, {
		"ordering bools",
		expr.Lt(expr.Col("ok"), expr.Col("ok")),
		`cannot generate code for .*: booleans are only comparable with = and !=`,
	}, {
		"logic on non-bools",
		expr.And(expr.Col("ok"), expr.Col("id")),
		`cannot generate code for .*: logical operator needs boolean operands, got bool and i64`,
	}, {
		"not of non-bool",
		expr.Not(expr.Col("id")),
		`cannot generate code for .*: not needs a boolean operand, got i64`,
	}, {
		"negation of string",
		expr.Neg(expr.Col("name")),
		`cannot generate code for .*: negation needs a numeric operand, got str`,
	}, {
		"empty coalesce",
		expr.Coalesce(),
		`cannot generate code for coalesce\(\): coalesce needs at least one argument`,
	}, {
		"coalesce mixing types",
		expr.Coalesce(expr.Col("name"), expr.Col("id")),
		`cannot generate code for .*: coalesce arguments mix str and i64`,
	}, {
		"concat of non-string",
		expr.Concat(expr.Col("name"), expr.Col("id")),
		`cannot generate code for .*: concat needs string arguments, got i64`,
	}, {
		"cast string to bool",
		expr.Cast(expr.Col("name"), types.Bool),
		`cannot generate code for .*: cannot cast str to bool`,
	}, {
		"match on non-string",
		expr.Match(expr.Col("id"), "^1"),
		`cannot generate code for .*: match needs a string operand, got i64`,
	}, {
		"invalid match pattern",
		expr.Match(expr.Col("name"), "("),
		`cannot generate code for .*: invalid pattern: .*`,
	}, {
		"unsupported literal",
		expr.Lit(struct{}{}),
		`cannot generate code for lit\(struct \{\}\): unsupported literal type struct \{\}`,
	}}

	for _, t := range tests {
		c.Logf("test: %s", t.summary)
		_, _, err := expr.Bind([]expr.Expr{t.input}, bindSchema)
		c.Assert(err, ErrorMatches, t.err)
		var gerr *expr.CodeGenError
		c.Assert(errors.As(err, &gerr), Equals, true)
	}
}

func (s *BindSuite) TestMixedComparisonWidens(c *C) {
	bound, _, err := expr.Bind([]expr.Expr{
		expr.Eq(expr.Col("id"), expr.Col("ratio")),
	}, bindSchema)
	c.Assert(err, IsNil)
	c.Assert(bound[0].String(), Equals, "(cast(col(id@0:i64) as f64) = col(ratio@1:f64))")
}
