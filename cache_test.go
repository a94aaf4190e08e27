// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package spark

import (
	"sync"
	"sync/atomic"

	. "gopkg.in/check.v1"

	"github.com/saurfang/spark/expr"
	"github.com/saurfang/spark/row"
	"github.com/saurfang/spark/types"
)

type CacheSuite struct {
	compiles int32
}

var _ = Suite(&CacheSuite{})

var cacheSchema = types.Schema{
	{Name: "a", Type: types.Int64},
	{Name: "b", Type: types.Int64},
}

// SetUpTest swaps in a counting compile function so tests can observe how
// often a cache actually compiles.
func (s *CacheSuite) SetUpTest(c *C) {
	atomic.StoreInt32(&s.compiles, 0)
	compileFn = func(schema types.Schema, exprs []expr.Expr, o options) (*Projection, error) {
		atomic.AddInt32(&s.compiles, 1)
		return compileProjection(schema, exprs, o)
	}
}

func (s *CacheSuite) TearDownTest(c *C) {
	compileFn = compileProjection
}

func (s *CacheSuite) TestHitSkipsCompile(c *C) {
	cache := NewCache()
	exprs := []expr.Expr{expr.Add(expr.Col("a"), expr.Lit(1))}

	p1, err := cache.Compile(cacheSchema, exprs)
	c.Assert(err, IsNil)
	p2, err := cache.Compile(cacheSchema, exprs)
	c.Assert(err, IsNil)

	c.Assert(p2, Equals, p1)
	c.Assert(atomic.LoadInt32(&s.compiles), Equals, int32(1))
	c.Assert(cache.Len(), Equals, 1)
}

func (s *CacheSuite) TestCanonicallyEqualShareFactory(c *C) {
	cache := NewCache()

	// Aliases and commuted operands are canonicalization artifacts: all of
	// these are one projection.
	lists := [][]expr.Expr{
		{expr.Add(expr.Col("a"), expr.Col("b"))},
		{expr.Add(expr.Col("b"), expr.Col("a"))},
		{expr.As(expr.Add(expr.Col("a"), expr.Col("b")), "sum")},
	}

	var first *Projection
	for i, exprs := range lists {
		p, err := cache.Compile(cacheSchema, exprs)
		c.Assert(err, IsNil)
		if i == 0 {
			first = p
		} else {
			c.Check(p, Equals, first)
		}
	}
	c.Assert(atomic.LoadInt32(&s.compiles), Equals, int32(1))

	// A structurally different list must not share.
	p, err := cache.Compile(cacheSchema, []expr.Expr{expr.Sub(expr.Col("a"), expr.Col("b"))})
	c.Assert(err, IsNil)
	c.Assert(p, Not(Equals), first)
	c.Assert(cache.Len(), Equals, 2)
}

func (s *CacheSuite) TestDistinctOptionsDistinctFactories(c *C) {
	cache := NewCache()
	exprs := []expr.Expr{expr.Add(expr.Col("a"), expr.Lit(1))}

	p1, err := cache.Compile(cacheSchema, exprs, WithSplitThreshold(1))
	c.Assert(err, IsNil)
	p2, err := cache.Compile(cacheSchema, exprs, WithSplitThreshold(1<<20))
	c.Assert(err, IsNil)
	c.Assert(p1, Not(Equals), p2)
	c.Assert(cache.Len(), Equals, 2)
}

func (s *CacheSuite) TestSingleFlight(c *C) {
	cache := NewCache()
	exprs := []expr.Expr{expr.Mul(expr.Col("a"), expr.Col("b"))}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]*Projection, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			p, err := cache.Compile(cacheSchema, exprs)
			c.Check(err, IsNil)
			results[i] = p
		}(i)
	}
	close(start)
	wg.Wait()

	for _, p := range results[1:] {
		c.Check(p, Equals, results[0])
	}
	// At most one compilation may have been observed for the key; with the
	// cache fast path this can only be exactly one.
	c.Assert(atomic.LoadInt32(&s.compiles), Equals, int32(1))
	c.Assert(cache.Len(), Equals, 1)
}

func (s *CacheSuite) TestFailureNotCached(c *C) {
	cache := NewCache()
	exprs := []expr.Expr{expr.Col("missing")}

	_, err := cache.Compile(cacheSchema, exprs)
	c.Assert(err, ErrorMatches, `cannot compile projection: cannot bind reference "missing": .*`)
	c.Assert(cache.Len(), Equals, 0)

	// A retry compiles again rather than observing a cached failure.
	_, err = cache.Compile(cacheSchema, exprs)
	c.Assert(err, NotNil)
	c.Assert(atomic.LoadInt32(&s.compiles), Equals, int32(2))
}

func (s *CacheSuite) TestSeparateCachesAreIsolated(c *C) {
	c1, c2 := NewCache(), NewCache()
	exprs := []expr.Expr{expr.Col("a")}

	p1, err := c1.Compile(cacheSchema, exprs)
	c.Assert(err, IsNil)
	p2, err := c2.Compile(cacheSchema, exprs)
	c.Assert(err, IsNil)

	c.Assert(p1, Not(Equals), p2)
	c.Assert(atomic.LoadInt32(&s.compiles), Equals, int32(2))

	// Both factories still behave identically.
	out1 := p1.New().Apply(row.Of(41, 0)).(*row.Generic)
	out2 := p2.New().Apply(row.Of(41, 0)).(*row.Generic)
	c.Assert(out1.Values(), DeepEquals, out2.Values())
}
