// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package spark

import (
	"fmt"

	"github.com/saurfang/spark/expr"
	"github.com/saurfang/spark/internal/codegen"
	"github.com/saurfang/spark/internal/vm"
	"github.com/saurfang/spark/row"
	"github.com/saurfang/spark/types"
)

// BindingError reports a column reference that could not be resolved against
// the input schema. Match with errors.As.
type BindingError = expr.BindingError

// CodeGenError reports an expression whose evaluation logic could not be
// generated.
type CodeGenError = expr.CodeGenError

// CompilationError reports an assembled program the backend rejected. It
// carries the full rendered artifact for diagnosis.
type CompilationError = vm.CompilationError

// DefaultSplitThreshold is the default partition size threshold, in
// serialized characters. It sits well under the backend's hard per-unit
// ceiling so that routine projections never approach it.
const DefaultSplitThreshold = 1024

type options struct {
	splitThreshold int
}

// Option adjusts compilation. Options are part of the cache key: the same
// expressions compiled under different options yield distinct artifacts.
type Option func(*options)

// WithSplitThreshold overrides the partition size threshold. It is chiefly
// useful in tests, to force a projection into many partitions or exactly one.
func WithSplitThreshold(n int) Option {
	return func(o *options) { o.splitThreshold = n }
}

// Projection is a compiled transformer factory: the immutable product of
// compiling one expression list against one input schema. A Projection is
// safe for concurrent use; each call to [Projection.New] yields a fresh,
// independent transformer.
type Projection struct {
	key      string
	exprs    []expr.Expr
	schema   types.Schema
	fields   []types.Field
	artifact *vm.Artifact
}

// Compile compiles the expression list against the input schema using the
// process-wide cache: structurally identical projections compile once and
// share the returned factory.
func Compile(schema types.Schema, exprs []expr.Expr, opts ...Option) (*Projection, error) {
	return projCache.Compile(schema, exprs, opts...)
}

// MustCompile is the same as [Compile] except that it panics on error.
func MustCompile(schema types.Schema, exprs []expr.Expr, opts ...Option) *Projection {
	p, err := Compile(schema, exprs, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// compileProjection runs the full pipeline for one cache miss: bind, emit,
// partition, assemble, load.
func compileProjection(schema types.Schema, exprs []expr.Expr, o options) (p *Projection, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot compile projection: %w", err)
		}
	}()

	bound, fields, err := expr.Bind(exprs, schema)
	if err != nil {
		return nil, err
	}

	ctx := codegen.NewContext()
	blocks := make([]codegen.Block, 0, len(bound))
	for i, b := range bound {
		frag, err := b.CodeGen(ctx)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, ctx.CloseBlock(i, frag, b.DataType()))
	}

	parts := codegen.Partition(blocks, o.splitThreshold)
	artifact, err := vm.Load(codegen.Assemble(ctx, parts, fields))
	if err != nil {
		return nil, err
	}

	return &Projection{
		exprs:    exprs,
		schema:   schema,
		fields:   fields,
		artifact: artifact,
	}, nil
}

// New constructs a transformer from the factory. The transformer's persistent
// state is initialized here, once, and its initial output target is a fresh
// generic row.
func (p *Projection) New() *Transformer {
	return &Transformer{
		proj: p,
		inst: p.artifact.New(),
		out:  row.NewGeneric(len(p.fields)),
	}
}

// Schema returns the input schema the projection was compiled against.
func (p *Projection) Schema() types.Schema { return p.schema }

// Fields returns the output fields of the projection, index-aligned with the
// expression list.
func (p *Projection) Fields() []types.Field { return p.fields }

// Exprs returns the original expression list, for introspection and
// debugging.
func (p *Projection) Exprs() []expr.Expr { return p.exprs }

// Transformer applies one compiled projection repeatedly. It is stateful: it
// holds the persistent state slots declared during code generation and the
// current output target. A Transformer must be confined to one goroutine at a
// time; build one per concurrent user from the shared [Projection].
type Transformer struct {
	proj *Projection
	inst *vm.Instance
	out  row.Writer
}

// Apply evaluates every expression against in and writes each result into
// the corresponding field of the current target, which it returns. Every
// field of the target is written, or marked null, exactly once per call;
// values from a prior call are fully overwritten.
func (t *Transformer) Apply(in row.Row) row.Writer {
	t.inst.Run(in, t.out)
	return t.out
}

// Target redirects subsequent [Transformer.Apply] calls to write into out.
// Records returned by prior Apply calls are unaffected. Target returns the
// transformer itself, so a caller can write t.Target(r).Apply(in).
func (t *Transformer) Target(out row.Writer) *Transformer {
	t.out = out
	return t
}

// Current returns the last target without re-evaluating anything.
func (t *Transformer) Current() row.Writer { return t.out }
