// Package sqlgen translates query expressions into SQL fragments so
// providers can push filtering, ordering, and paging down to the database.
//
// Only expression clauses translate; queries carrying func predicates or a
// grouping clause report ErrUnsupported and the caller falls back to
// in-memory evaluation.
package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zentient/sift/errors"
	"github.com/zentient/sift/query"
)

// ColumnFunc maps an expression field path to a SQL column name. It must
// reject anything that is not a plain identifier.
type ColumnFunc func(field string) (string, error)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SnakeCase is the default ColumnFunc: exported Go field names become
// snake_case column names ("OwnerID" -> "owner_id").
func SnakeCase(field string) (string, error) {
	var b strings.Builder
	prevLower := false
	for _, r := range field {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper {
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			prevLower = false
			continue
		}
		b.WriteRune(r)
		prevLower = r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
	}
	column := b.String()
	if !identifierPattern.MatchString(column) {
		return "", errors.Wrapf(errors.ErrInvalidExpr, "field %q does not map to a column identifier", field)
	}
	return column, nil
}

// Fragment is a generated SQL tail: an optional WHERE clause with positional
// args, an optional ORDER BY, and optional LIMIT/OFFSET.
type Fragment struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int

	HasLimit  bool
	HasOffset bool
}

// SQL renders the fragment for appending after "SELECT ... FROM table".
func (f *Fragment) SQL() string {
	var b strings.Builder
	if f.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(f.Where)
	}
	if f.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(f.OrderBy)
	}
	if f.HasLimit {
		fmt.Fprintf(&b, " LIMIT %d", f.Limit)
	}
	if f.HasOffset {
		fmt.Fprintf(&b, " OFFSET %d", f.Offset)
	}
	return b.String()
}

// FromQuery generates the SQL tail for a built query, resolving parameter
// references against p. Column names come from col (SnakeCase when nil).
func FromQuery[T any](q *query.Query[T], p query.Params, col ColumnFunc) (*Fragment, error) {
	if err := q.Err(); err != nil {
		return nil, err
	}
	if q.HasFuncClauses() {
		return nil, errors.Wrap(errors.ErrUnsupported, "query contains func predicates")
	}
	if _, grouped := q.Group(); grouped {
		return nil, errors.Wrap(errors.ErrUnsupported, "group-and-flatten is evaluated in memory")
	}
	if col == nil {
		col = SnakeCase
	}

	frag := &Fragment{}

	if e := q.Expr(); e != nil {
		where, args, err := translate(e, p, col)
		if err != nil {
			return nil, err
		}
		frag.Where = where
		frag.Args = args
	}

	if field, desc, ok := q.Order(); ok {
		column, err := col(field)
		if err != nil {
			return nil, err
		}
		frag.OrderBy = column
		if desc {
			frag.OrderBy += " DESC"
		}
	}

	if take, ok := q.Take(); ok {
		if take < 0 {
			return nil, errors.Wrapf(errors.ErrInvalidPage, "take(%d)", take)
		}
		frag.Limit = take
		frag.HasLimit = true
	}
	if skip, ok := q.Skip(); ok {
		if skip < 0 {
			return nil, errors.Wrapf(errors.ErrInvalidPage, "skip(%d)", skip)
		}
		// SQLite requires LIMIT when OFFSET is present.
		if !frag.HasLimit {
			frag.Limit = -1
			frag.HasLimit = true
		}
		frag.Offset = skip
		frag.HasOffset = true
	}

	return frag, nil
}

// Where generates just the WHERE clause body and args for an expression.
func Where(e query.Expr, p query.Params, col ColumnFunc) (string, []any, error) {
	if col == nil {
		col = SnakeCase
	}
	return translate(e, p, col)
}

func translate(e query.Expr, p query.Params, col ColumnFunc) (string, []any, error) {
	switch node := e.(type) {
	case query.Cmp:
		return translateCmp(node, p, col)
	case query.AndExpr:
		return translateJoin(node.Exprs, " AND ", p, col)
	case query.OrExpr:
		return translateJoin(node.Exprs, " OR ", p, col)
	case query.NotExpr:
		inner, args, err := translate(node.Expr, p, col)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + inner + ")", args, nil
	default:
		return "", nil, errors.Wrapf(errors.ErrInvalidExpr, "unknown expression node %T", e)
	}
}

func translateJoin(exprs []query.Expr, sep string, p query.Params, col ColumnFunc) (string, []any, error) {
	if len(exprs) == 0 {
		return "", nil, errors.Wrap(errors.ErrInvalidExpr, "empty logical expression")
	}
	parts := make([]string, 0, len(exprs))
	var args []any
	for _, e := range exprs {
		part, partArgs, err := translate(e, p, col)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+part+")")
		args = append(args, partArgs...)
	}
	return strings.Join(parts, sep), args, nil
}

func translateCmp(c query.Cmp, p query.Params, col ColumnFunc) (string, []any, error) {
	column, err := col(c.Field)
	if err != nil {
		return "", nil, err
	}
	value, err := query.Resolve(c.Value, p)
	if err != nil {
		return "", nil, err
	}

	switch c.Op {
	case query.OpEq:
		if value == nil {
			return column + " IS NULL", nil, nil
		}
		return column + " = ?", []any{value}, nil
	case query.OpNe:
		if value == nil {
			return column + " IS NOT NULL", nil, nil
		}
		return column + " <> ?", []any{value}, nil
	case query.OpGt:
		return column + " > ?", []any{value}, nil
	case query.OpGte:
		return column + " >= ?", []any{value}, nil
	case query.OpLt:
		return column + " < ?", []any{value}, nil
	case query.OpLte:
		return column + " <= ?", []any{value}, nil
	case query.OpContains:
		return "instr(" + column + ", ?) > 0", []any{value}, nil
	case query.OpIn:
		values, ok := value.([]any)
		if !ok {
			return "", nil, errors.Wrapf(errors.ErrInvalidExpr, "in operand must be a slice, got %T", value)
		}
		if len(values) == 0 {
			// IN over nothing matches nothing.
			return "1 = 0", nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return column + " IN (" + placeholders + ")", values, nil
	default:
		return "", nil, errors.Wrapf(errors.ErrInvalidExpr, "unknown operator %s", c.Op)
	}
}
