package query

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/zentient/sift/errors"
)

// matcher is a compiled predicate: entity plus runtime parameters to a
// boolean verdict.
type matcher[T any] func(entity T, p Params) (bool, error)

// compileMatcher turns a filter expression into a matcher closure for T.
// Field lookups are resolved against T once, here, not per entity.
func compileMatcher[T any](e Expr) (matcher[T], error) {
	switch node := e.(type) {
	case nil:
		return nil, errors.Wrap(errors.ErrInvalidExpr, "nil expression")
	case Cmp:
		return compileCmp[T](node)
	case AndExpr:
		children, err := compileChildren[T](node.Exprs)
		if err != nil {
			return nil, err
		}
		return func(entity T, p Params) (bool, error) {
			for _, child := range children {
				ok, err := child(entity, p)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		}, nil
	case OrExpr:
		children, err := compileChildren[T](node.Exprs)
		if err != nil {
			return nil, err
		}
		return func(entity T, p Params) (bool, error) {
			for _, child := range children {
				ok, err := child(entity, p)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		}, nil
	case NotExpr:
		child, err := compileMatcher[T](node.Expr)
		if err != nil {
			return nil, err
		}
		return func(entity T, p Params) (bool, error) {
			ok, err := child(entity, p)
			if err != nil {
				return false, err
			}
			return !ok, nil
		}, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidExpr, "unknown expression node %T", e)
	}
}

func compileChildren[T any](exprs []Expr) ([]matcher[T], error) {
	children := make([]matcher[T], 0, len(exprs))
	for _, e := range exprs {
		child, err := compileMatcher[T](e)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func compileCmp[T any](c Cmp) (matcher[T], error) {
	get, err := compileGetter(reflect.TypeOf((*T)(nil)).Elem(), c.Field)
	if err != nil {
		return nil, err
	}
	op := c.Op
	condValue := c.Value

	return func(entity T, p Params) (bool, error) {
		cond, err := resolveValue(condValue, p)
		if err != nil {
			return false, err
		}
		fieldVal, ok := get(reflect.ValueOf(entity))
		if !ok {
			// Nil pointer along the path: nothing to compare against.
			return op == OpNe, nil
		}
		return compare(op, fieldVal, cond)
	}, nil
}

// getter extracts a field value from an entity. ok is false when a nil
// pointer interrupts the path.
type getter func(entity reflect.Value) (value any, ok bool)

// compileGetter resolves a dotted field path against t. Struct fields match
// exactly or case-insensitively; map entities are indexed by key at access
// time.
func compileGetter(t reflect.Type, path string) (getter, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrInvalidExpr, "empty field path")
	}
	if t == nil {
		return nil, errors.Wrap(errors.ErrInvalidExpr, "cannot resolve field on interface entity type")
	}

	segments := strings.Split(path, ".")

	type step struct {
		index  []int  // struct field index chain
		mapKey string // map lookup when index is nil
	}
	steps := make([]step, 0, len(segments))

	cur := t
	for _, segment := range segments {
		for cur.Kind() == reflect.Pointer {
			cur = cur.Elem()
		}
		switch cur.Kind() {
		case reflect.Struct:
			field, ok := cur.FieldByNameFunc(func(name string) bool {
				return strings.EqualFold(name, segment)
			})
			if !ok || !field.IsExported() {
				return nil, errors.Wrapf(errors.ErrInvalidExpr,
					"type %s has no exported field %q", cur, segment)
			}
			steps = append(steps, step{index: field.Index})
			cur = field.Type
		case reflect.Map:
			if cur.Key().Kind() != reflect.String {
				return nil, errors.Wrapf(errors.ErrInvalidExpr,
					"map entity type %s must have string keys", cur)
			}
			steps = append(steps, step{mapKey: segment})
			cur = cur.Elem()
		default:
			return nil, errors.Wrapf(errors.ErrInvalidExpr,
				"cannot descend into %s at %q", cur, segment)
		}
	}

	return func(entity reflect.Value) (any, bool) {
		v := entity
		for _, s := range steps {
			for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
				if v.IsNil() {
					return nil, false
				}
				v = v.Elem()
			}
			if s.index != nil {
				v = v.FieldByIndex(s.index)
			} else {
				v = v.MapIndex(reflect.ValueOf(s.mapKey))
				if !v.IsValid() {
					return nil, false
				}
			}
		}
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, false
			}
			v = v.Elem()
		}
		return v.Interface(), true
	}, nil
}

// compare evaluates op between a field value and a (resolved) condition
// value, coercing scalars loosely: numbers compare numerically, times
// chronologically, everything else as strings.
func compare(op Op, field, cond any) (bool, error) {
	switch op {
	case OpEq:
		return looseEqual(field, cond)
	case OpNe:
		eq, err := looseEqual(field, cond)
		return !eq, err
	case OpGt, OpGte, OpLt, OpLte:
		rel, err := looseCompare(field, cond)
		if err != nil {
			return false, err
		}
		switch op {
		case OpGt:
			return rel > 0, nil
		case OpGte:
			return rel >= 0, nil
		case OpLt:
			return rel < 0, nil
		default:
			return rel <= 0, nil
		}
	case OpContains:
		haystack, err := cast.ToStringE(field)
		if err != nil {
			return false, errors.Wrapf(errors.ErrInvalidExpr, "contains over non-text value %T", field)
		}
		needle, err := cast.ToStringE(cond)
		if err != nil {
			return false, errors.Wrapf(errors.ErrInvalidExpr, "contains with non-text operand %T", cond)
		}
		return strings.Contains(haystack, needle), nil
	case OpIn:
		values, ok := cond.([]any)
		if !ok {
			rv := reflect.ValueOf(cond)
			if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
				return false, errors.Wrapf(errors.ErrInvalidExpr, "in operand must be a slice, got %T", cond)
			}
			values = make([]any, rv.Len())
			for i := range values {
				values[i] = rv.Index(i).Interface()
			}
		}
		for _, candidate := range values {
			eq, err := looseEqual(field, candidate)
			if err != nil {
				return false, err
			}
			if eq {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, errors.Wrapf(errors.ErrInvalidExpr, "unknown operator %s", op)
	}
}

func looseEqual(field, cond any) (bool, error) {
	if field == nil || cond == nil {
		return field == nil && cond == nil, nil
	}
	if isNumeric(field) && isNumeric(cond) {
		return cast.ToFloat64(field) == cast.ToFloat64(cond), nil
	}
	if ft, ok := field.(time.Time); ok {
		ct, err := cast.ToTimeE(cond)
		if err != nil {
			return false, errors.Wrapf(errors.ErrInvalidExpr, "cannot compare time with %T", cond)
		}
		return ft.Equal(ct), nil
	}
	fs, err := cast.ToStringE(field)
	if err != nil {
		return reflect.DeepEqual(field, cond), nil
	}
	cs, err := cast.ToStringE(cond)
	if err != nil {
		return false, nil
	}
	return fs == cs, nil
}

// looseCompare returns -1, 0, or 1. The field value's type picks the
// comparison domain so that "10" in a numeric column still sorts numerically.
func looseCompare(field, cond any) (int, error) {
	if ft, ok := field.(time.Time); ok {
		ct, err := cast.ToTimeE(cond)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrInvalidExpr, "cannot order time against %T", cond)
		}
		return ft.Compare(ct), nil
	}
	if isNumeric(field) {
		cf, err := cast.ToFloat64E(cond)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrInvalidExpr, "cannot order %T against %T", field, cond)
		}
		ff := cast.ToFloat64(field)
		switch {
		case ff < cf:
			return -1, nil
		case ff > cf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	fs, err := cast.ToStringE(field)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidExpr, "cannot order value of type %T", field)
	}
	cs, err := cast.ToStringE(cond)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidExpr, "cannot order against value of type %T", cond)
	}
	return strings.Compare(fs, cs), nil
}

func isNumeric(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
