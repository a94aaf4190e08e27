// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package spark compiles fixed lists of scalar expressions into specialized,
reusable transformers for a query engine's row processing hot path, replacing
per-row virtual dispatch over expression trees with compiled, straight-line
evaluation.

# Basics

A projection evaluates N independent expressions against one input record and
writes N results into one output record. Expressions are built with the expr
package, records satisfy the row package's capability interfaces, and the
input layout is described by a types.Schema:

	schema := types.Schema{
		{Name: "price", Type: types.Float64},
		{Name: "qty", Type: types.Int64},
	}
	proj, err := spark.Compile(schema, []expr.Expr{
		expr.As(expr.Mul(expr.Col("price"), expr.Cast(expr.Col("qty"), types.Float64)), "total"),
		expr.IsNull(expr.Col("qty")),
	})

Compile canonicalizes and binds the expressions, generates evaluation logic
per output field, packs the generated blocks into size-bounded callable
units, and loads the result into an immutable factory. Structurally identical
projections share one factory through a process-wide, single-flight cache.

Each factory invocation yields an independent, stateful transformer:

	t := proj.New()
	out := t.Apply(row.Of(9.99, 3))

A transformer may be retargeted at a caller-owned output record without
recompilation:

	buf := row.NewGeneric(2)
	t.Target(buf).Apply(in)

# Concurrency

Projections and the compilation cache are safe for concurrent use. A
Transformer is not: confine each instance to one goroutine at a time and
build one per concurrent user.

# Errors

Compilation fails with a BindingError for unresolved or mistyped column
references, a CodeGenError for unsupported operator and operand combinations,
or a CompilationError when the backend rejects the assembled program. Failed
compilations are never cached, so a corrected request recompiles. Runtime
evaluation follows SQL-style null semantics; evaluation itself does not fail.
*/
package spark
