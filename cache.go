// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package spark

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/saurfang/spark/expr"
	"github.com/saurfang/spark/types"
)

// projCache is the process-wide compilation cache used by the package-level
// Compile.
var projCache = NewCache()

// compileFn is swapped out by tests to observe compilation counts.
var compileFn = compileProjection

// Cache memoizes compiled projection factories, keyed by the canonical form
// of the expression list together with the input schema and the compilation
// options. It is safe for concurrent use.
//
// A miss compiles under single-flight: concurrent requests for one key
// observe at most one compilation in flight and all receive the same factory
// once ready. Failures are surfaced to every waiter and are not cached, so a
// later request retries. The cache is unbounded; entries live for the
// process lifetime.
type Cache struct {
	group     singleflight.Group
	mutex     sync.RWMutex
	factories map[string]*Projection
}

// NewCache returns an empty compilation cache. Most callers want the
// package-level [Compile] instead, which shares one process-wide cache;
// NewCache exists for systems that need to isolate or bound compilation
// state themselves.
func NewCache() *Cache {
	return &Cache{factories: make(map[string]*Projection)}
}

// Compile returns the cached factory for the canonicalized expression list,
// compiling it first if needed.
func (c *Cache) Compile(schema types.Schema, exprs []expr.Expr, opts ...Option) (*Projection, error) {
	o := options{splitThreshold: DefaultSplitThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	key := cacheKey(schema, expr.Canonicalize(exprs), o)

	c.mutex.RLock()
	p, ok := c.factories[key]
	c.mutex.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Check if a factory has been inserted by someone else since we
		// last checked.
		c.mutex.RLock()
		p, ok := c.factories[key]
		c.mutex.RUnlock()
		if ok {
			return p, nil
		}
		p, err := compileFn(schema, exprs, o)
		if err != nil {
			return nil, err
		}
		p.key = key
		c.mutex.Lock()
		c.factories[key] = p
		c.mutex.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Projection), nil
}

// Len returns the number of cached factories.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.factories)
}

// cacheKey builds the canonical cache key. Two compilations with equal keys
// produce behaviorally identical transformers; the expression list must
// already be canonicalized.
func cacheKey(schema types.Schema, canonical []expr.Expr, o options) string {
	var sb strings.Builder
	for i, e := range canonical {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(e.String())
	}
	sb.WriteString(" | ")
	sb.WriteString(schema.String())
	sb.WriteString(" | split=")
	sb.WriteString(strconv.Itoa(o.splitThreshold))
	return sb.String()
}
