package query

import (
	"context"
	"reflect"
	"sort"

	"github.com/zentient/sift/errors"
)

// Query is an immutable snapshot of a builder's specification. Applying it
// runs the clauses in a fixed order: filter, order, skip, take, group-and-
// flatten. Eager-load paths are hints for providers and do not alter the
// in-memory result.
type Query[T any] struct {
	clauses  []clause[T]
	order    *orderSpec
	group    *groupSpec
	skip     *int
	take     *int
	includes []string
	err      error
}

// Apply runs the query against src. p must not be nil, even when no clause
// references a parameter. The input slice is never mutated.
func (q *Query[T]) Apply(ctx context.Context, src []T, p Params) ([]T, error) {
	if p == nil {
		return nil, errors.WithStack(errors.ErrNilParams)
	}
	if q.err != nil {
		return nil, q.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Filter: every clause must match, in insertion order.
	out := make([]T, 0, len(src))
	for _, entity := range src {
		keep := true
		for _, c := range q.clauses {
			ok, err := c.match(entity, p)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, entity)
		}
	}

	if q.order != nil {
		if err := sortByKey(out, q.order.get, q.order.desc); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if q.skip != nil {
		n := *q.skip
		if n < 0 {
			return nil, errors.Wrapf(errors.ErrInvalidPage, "skip(%d)", n)
		}
		if n >= len(out) {
			out = out[:0]
		} else {
			out = out[n:]
		}
	}
	if q.take != nil {
		n := *q.take
		if n < 0 {
			return nil, errors.Wrapf(errors.ErrInvalidPage, "take(%d)", n)
		}
		if n < len(out) {
			out = out[:n]
		}
	}

	// Group-and-flatten: cluster by key, ordered by key ascending, keeping
	// each group's input order. The grouping structure is discarded.
	if q.group != nil {
		if err := sortByKey(out, q.group.get, false); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Err reports the builder failure carried into this snapshot, if any. Apply
// returns the same error; providers must check it before translating the
// query, since a failed Where appends no clause.
func (q *Query[T]) Err() error {
	return q.err
}

// WithoutPaging returns a copy of the query with the Skip and Take bounds
// cleared. Providers that control paging themselves evaluate the rest of the
// specification through the copy.
func (q *Query[T]) WithoutPaging() *Query[T] {
	c := *q
	c.skip = nil
	c.take = nil
	return &c
}

// Count applies the query and returns the number of selected entities.
func (q *Query[T]) Count(ctx context.Context, src []T, p Params) (int, error) {
	result, err := q.Apply(ctx, src, p)
	if err != nil {
		return 0, err
	}
	return len(result), nil
}

// Any applies the query and reports whether it selects at least one entity.
func (q *Query[T]) Any(ctx context.Context, src []T, p Params) (bool, error) {
	result, err := q.Apply(ctx, src, p)
	if err != nil {
		return false, err
	}
	return len(result) > 0, nil
}

// Includes returns the eager-load paths for this query merged with any
// carried by p (IncludeArgs). Providers that can prefetch associations read
// these; the in-memory engine ignores them.
func (q *Query[T]) Includes(p Params) []string {
	merged := make([]string, 0, len(q.includes))
	merged = append(merged, q.includes...)
	merged = append(merged, paramIncludes(p)...)
	return merged
}

// Expr returns the conjunction of all expression clauses, or nil when the
// query has no expression clauses. Func clauses are not representable; see
// HasFuncClauses.
func (q *Query[T]) Expr() Expr {
	exprs := make([]Expr, 0, len(q.clauses))
	for _, c := range q.clauses {
		if c.expr != nil {
			exprs = append(exprs, c.expr)
		}
	}
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		return AndExpr{Exprs: exprs}
	}
}

// HasFuncClauses reports whether the query contains opaque func predicates
// that providers cannot translate.
func (q *Query[T]) HasFuncClauses() bool {
	for _, c := range q.clauses {
		if c.expr == nil {
			return true
		}
	}
	return false
}

// Order returns the ordering clause, if set.
func (q *Query[T]) Order() (field string, desc bool, ok bool) {
	if q.order == nil {
		return "", false, false
	}
	return q.order.field, q.order.desc, true
}

// Group returns the grouping field, if set.
func (q *Query[T]) Group() (field string, ok bool) {
	if q.group == nil {
		return "", false
	}
	return q.group.field, true
}

// Skip returns the skip bound, if set.
func (q *Query[T]) Skip() (int, bool) {
	if q.skip == nil {
		return 0, false
	}
	return *q.skip, true
}

// Take returns the take bound, if set.
func (q *Query[T]) Take() (int, bool) {
	if q.take == nil {
		return 0, false
	}
	return *q.take, true
}

// sortByKey stable-sorts items by an extracted key. Keys are extracted once
// up front so extraction errors surface before any reordering happens.
func sortByKey[T any](items []T, get getter, desc bool) error {
	if len(items) < 2 {
		return nil
	}
	keys := make([]any, len(items))
	for i, item := range items {
		key, ok := get(reflect.ValueOf(item))
		if !ok {
			key = nil
		}
		keys[i] = key
	}

	var sortErr error
	indexes := make([]int, len(items))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		if sortErr != nil {
			return false
		}
		rel, err := cmpKeys(keys[indexes[a]], keys[indexes[b]])
		if err != nil {
			sortErr = err
			return false
		}
		if desc {
			return rel > 0
		}
		return rel < 0
	})
	if sortErr != nil {
		return sortErr
	}

	sorted := make([]T, len(items))
	for i, idx := range indexes {
		sorted[i] = items[idx]
	}
	copy(items, sorted)
	return nil
}

// cmpKeys orders sort keys: nil keys first, then loose scalar comparison.
func cmpKeys(ka, kb any) (int, error) {
	switch {
	case ka == nil && kb == nil:
		return 0, nil
	case ka == nil:
		return -1, nil
	case kb == nil:
		return 1, nil
	}
	return looseCompare(ka, kb)
}
