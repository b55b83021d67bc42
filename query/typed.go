package query

import (
	"context"
	"reflect"

	"github.com/zentient/sift/errors"
)

// TypedQuery binds a built query to a specific parameter carrier type, so
// the usual call path is checked at compile time. The dynamic ApplyParams
// path remains for callers that only hold a Params value; it verifies the
// carrier type at runtime and reports both the expected and actual types on
// mismatch.
type TypedQuery[T any, P Params] struct {
	q *Query[T]
}

// Typed builds the current specification into a query expecting parameters
// of type P.
func Typed[T any, P Params](b *Builder[T]) *TypedQuery[T, P] {
	return &TypedQuery[T, P]{q: b.Build()}
}

// Apply runs the query with a statically typed parameter carrier.
func (tq *TypedQuery[T, P]) Apply(ctx context.Context, src []T, p P) ([]T, error) {
	return tq.q.Apply(ctx, src, p)
}

// ApplyParams runs the query with a dynamically typed carrier. It fails with
// a ParamTypeError when p is not a P, and with ErrNilParams when p is nil.
func (tq *TypedQuery[T, P]) ApplyParams(ctx context.Context, src []T, p Params) ([]T, error) {
	if p == nil {
		return nil, errors.WithStack(errors.ErrNilParams)
	}
	typed, ok := p.(P)
	if !ok {
		return nil, errors.NewParamTypeError(reflect.TypeOf((*P)(nil)).Elem(), p)
	}
	return tq.q.Apply(ctx, src, typed)
}

// Count applies the query and returns the number of selected entities.
func (tq *TypedQuery[T, P]) Count(ctx context.Context, src []T, p P) (int, error) {
	return tq.q.Count(ctx, src, p)
}

// Any applies the query and reports whether it selects at least one entity.
func (tq *TypedQuery[T, P]) Any(ctx context.Context, src []T, p P) (bool, error) {
	return tq.q.Any(ctx, src, p)
}

// Query returns the underlying untyped snapshot.
func (tq *TypedQuery[T, P]) Query() *Query[T] {
	return tq.q
}
