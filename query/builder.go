package query

import (
	"context"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zentient/sift/errors"
)

// DefaultCacheSize bounds the per-builder compiled-matcher cache.
const DefaultCacheSize = 256

// Option configures a Builder.
type Option func(*options)

type options struct {
	cacheSize int
}

// WithCacheSize sets the compiled-matcher LRU capacity for a builder.
// Values below 1 fall back to DefaultCacheSize.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// clause is one entry in the ordered predicate list. Expression clauses keep
// their Expr so providers can translate them; func clauses are opaque.
type clause[T any] struct {
	expr  Expr
	match matcher[T]
}

// Builder accumulates a query specification for entities of type T.
// Mutation methods return the builder for chaining. Build() snapshots the
// current state into an immutable Query; the builder remains mutable and can
// be built again.
//
// Builder is not safe for concurrent mutation. The matcher cache tolerates
// concurrent Where calls, but sharing a builder across goroutines is not an
// intended usage pattern.
type Builder[T any] struct {
	clauses  []clause[T]
	order    *orderSpec
	group    *groupSpec
	skip     *int
	take     *int
	includes []string

	cache *lru.Cache[string, matcher[T]]
	err   error // first compile failure, surfaced at apply time
}

type orderSpec struct {
	field string
	desc  bool
	get   getter
}

type groupSpec struct {
	field string
	get   getter
}

// NewBuilder creates an empty builder for entities of type T.
func NewBuilder[T any](opts ...Option) *Builder[T] {
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize < 1 {
		o.cacheSize = DefaultCacheSize
	}
	// lru.New only fails on a non-positive size, which is excluded above.
	cache, _ := lru.New[string, matcher[T]](o.cacheSize)
	return &Builder[T]{cache: cache}
}

// Where appends a filter expression to the ordered predicate list. All
// predicates are ANDed at apply time. The matcher is compiled immediately
// and cached per builder, keyed by the expression fingerprint; a cache hit
// reuses the matcher but still appends a clause, so repeating an expression
// never silently drops a filter.
func (b *Builder[T]) Where(e Expr) *Builder[T] {
	if e == nil {
		b.setErr(errors.Wrap(errors.ErrInvalidExpr, "Where called with nil expression"))
		return b
	}
	key := e.Fingerprint()
	match, ok := b.cache.Get(key)
	if !ok {
		var err error
		match, err = compileMatcher[T](e)
		if err != nil {
			b.setErr(err)
			return b
		}
		b.cache.Add(key, match)
	}
	b.clauses = append(b.clauses, clause[T]{expr: e, match: match})
	return b
}

// WhereFunc appends an opaque predicate function. Func clauses cannot be
// pushed down to SQL providers; they always evaluate in memory.
func (b *Builder[T]) WhereFunc(fn func(entity T, p Params) bool) *Builder[T] {
	if fn == nil {
		b.setErr(errors.Wrap(errors.ErrInvalidExpr, "WhereFunc called with nil predicate"))
		return b
	}
	b.clauses = append(b.clauses, clause[T]{
		match: func(entity T, p Params) (bool, error) {
			return fn(entity, p), nil
		},
	})
	return b
}

// OrderBy sets the ordering clause. Repeated calls replace the previous
// ordering: last write wins.
func (b *Builder[T]) OrderBy(field string, desc bool) *Builder[T] {
	if field == "" {
		b.setErr(errors.Wrap(errors.ErrInvalidExpr, "OrderBy called with empty field"))
		return b
	}
	get, err := compileGetter(reflect.TypeOf((*T)(nil)).Elem(), field)
	if err != nil {
		b.setErr(err)
		return b
	}
	b.order = &orderSpec{field: field, desc: desc, get: get}
	return b
}

// GroupBy sets the grouping clause. Repeated calls replace the previous
// grouping: last write wins. Built queries group and then flatten back to a
// flat sequence ordered by group key, preserving each group's input order;
// the grouping structure itself is not returned.
func (b *Builder[T]) GroupBy(field string) *Builder[T] {
	if field == "" {
		b.setErr(errors.Wrap(errors.ErrInvalidExpr, "GroupBy called with empty field"))
		return b
	}
	get, err := compileGetter(reflect.TypeOf((*T)(nil)).Elem(), field)
	if err != nil {
		b.setErr(err)
		return b
	}
	b.group = &groupSpec{field: field, get: get}
	return b
}

// Skip sets the number of leading entities to drop. No validation happens
// here; a negative value fails when the built query is applied.
func (b *Builder[T]) Skip(n int) *Builder[T] {
	b.skip = &n
	return b
}

// Take caps the number of entities returned. No validation happens here; a
// negative value fails when the built query is applied.
func (b *Builder[T]) Take(n int) *Builder[T] {
	b.take = &n
	return b
}

// Include appends an eager-load path. Unlike OrderBy and GroupBy, repeated
// calls accumulate.
func (b *Builder[T]) Include(path string) *Builder[T] {
	if path != "" {
		b.includes = append(b.includes, path)
	}
	return b
}

// Err reports the first clause-compilation failure, if any. Applying a query
// built from a failed builder returns the same error.
func (b *Builder[T]) Err() error {
	return b.err
}

// Build snapshots the current specification into an immutable Query.
// Mutating the builder afterwards does not affect the returned query, and
// the builder can be built again for an independent snapshot.
func (b *Builder[T]) Build() *Query[T] {
	q := &Query[T]{
		clauses:  make([]clause[T], len(b.clauses)),
		includes: make([]string, len(b.includes)),
		err:      b.err,
	}
	copy(q.clauses, b.clauses)
	copy(q.includes, b.includes)
	if b.order != nil {
		o := *b.order
		q.order = &o
	}
	if b.group != nil {
		g := *b.group
		q.group = &g
	}
	if b.skip != nil {
		n := *b.skip
		q.skip = &n
	}
	if b.take != nil {
		n := *b.take
		q.take = &n
	}
	return q
}

// Count returns a deferred aggregate over the current snapshot: applying it
// yields the number of entities the query selects.
func (b *Builder[T]) Count() func(ctx context.Context, src []T, p Params) (int, error) {
	q := b.Build()
	return q.Count
}

// Any returns a deferred aggregate over the current snapshot: applying it
// reports whether the query selects at least one entity.
func (b *Builder[T]) Any() func(ctx context.Context, src []T, p Params) (bool, error) {
	q := b.Build()
	return q.Any
}

func (b *Builder[T]) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}
