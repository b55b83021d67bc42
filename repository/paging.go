package repository

import (
	"context"
	"sort"

	"github.com/zentient/sift/errors"
	"github.com/zentient/sift/query"
	"github.com/zentient/sift/query/sqlgen"
)

// Page is one offset-paged slice of a result set.
type Page[T any] struct {
	Items      []T
	TotalCount int
	Page       int
	PerPage    int
}

// CursorPage is one cursor-paged slice of a result set. NextCursor is empty
// when no further page exists.
type CursorPage[T any] struct {
	Items      []T
	NextCursor string
}

// GetPaged returns page (1-based) of the entities selected by q, perPage at
// a time, along with the total matching count. The query's own Skip/Take
// bounds are ignored; paging is controlled by the arguments.
func (r *Repository[T]) GetPaged(ctx context.Context, q *query.Query[T], p query.Params, page, perPage int) (*Page[T], error) {
	if p == nil {
		return nil, errors.WithStack(errors.ErrNilParams)
	}
	if page < 1 || perPage < 1 {
		return nil, errors.Wrapf(errors.ErrInvalidPage, "page %d, per-page %d", page, perPage)
	}

	frag, err := sqlgen.FromQuery(q, p, r.columns)
	if err != nil {
		if !errors.Is(err, errors.ErrUnsupported) {
			return nil, err
		}
		return r.pagedInMemory(ctx, q, p, page, perPage)
	}

	total, err := r.countWhere(ctx, frag)
	if err != nil {
		return nil, err
	}

	frag.Limit = perPage
	frag.HasLimit = true
	frag.Offset = (page - 1) * perPage
	frag.HasOffset = true

	items, err := r.queryRows(ctx, r.selectPrefix()+frag.SQL(), frag.Args...)
	if err != nil {
		return nil, err
	}

	return &Page[T]{Items: items, TotalCount: total, Page: page, PerPage: perPage}, nil
}

// GetPagedByCursor returns up to limit entities selected by q whose ID sorts
// after cursor, ordered by ID. An empty cursor starts from the beginning. As
// with GetPaged, the query's own Skip/Take bounds are ignored.
func (r *Repository[T]) GetPagedByCursor(ctx context.Context, q *query.Query[T], p query.Params, cursor string, limit int) (*CursorPage[T], error) {
	if p == nil {
		return nil, errors.WithStack(errors.ErrNilParams)
	}
	if limit < 1 {
		return nil, errors.Wrapf(errors.ErrInvalidPage, "cursor limit %d", limit)
	}

	frag, err := sqlgen.FromQuery(q, p, r.columns)
	if err != nil {
		if !errors.Is(err, errors.ErrUnsupported) {
			return nil, err
		}
		return r.cursorInMemory(ctx, q, p, cursor, limit)
	}

	idCol := r.idColumn()
	where := frag.Where
	args := frag.Args
	if cursor != "" {
		clause := idCol + " > ?"
		if where == "" {
			where = clause
		} else {
			where = "(" + where + ") AND " + clause
		}
		args = append(args, cursor)
	}

	stmt := r.selectPrefix()
	if where != "" {
		stmt += " WHERE " + where
	}
	stmt += " ORDER BY " + idCol + " LIMIT ?"
	args = append(args, limit)

	items, err := r.queryRows(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}

	next := ""
	if len(items) == limit {
		next = r.mapper.ID(items[len(items)-1])
	}
	return &CursorPage[T]{Items: items, NextCursor: next}, nil
}

// Count returns the number of entities q selects, ignoring its Skip/Take
// bounds.
func (r *Repository[T]) Count(ctx context.Context, q *query.Query[T], p query.Params) (int, error) {
	if p == nil {
		return 0, errors.WithStack(errors.ErrNilParams)
	}
	frag, err := sqlgen.FromQuery(q, p, r.columns)
	if err != nil {
		if !errors.Is(err, errors.ErrUnsupported) {
			return 0, err
		}
		all, err := r.queryRows(ctx, r.selectPrefix())
		if err != nil {
			return 0, err
		}
		return q.WithoutPaging().Count(ctx, all, p)
	}
	return r.countWhere(ctx, frag)
}

func (r *Repository[T]) countWhere(ctx context.Context, frag *sqlgen.Fragment) (int, error) {
	stmt := "SELECT COUNT(*) FROM " + r.mapper.Table()
	if frag.Where != "" {
		stmt += " WHERE " + frag.Where
	}
	var total int
	if err := r.db.QueryRowContext(ctx, stmt, frag.Args...).Scan(&total); err != nil {
		return 0, errors.Wrapf(err, "failed to count %s", r.mapper.Table())
	}
	return total, nil
}

func (r *Repository[T]) pagedInMemory(ctx context.Context, q *query.Query[T], p query.Params, page, perPage int) (*Page[T], error) {
	all, err := r.queryRows(ctx, r.selectPrefix())
	if err != nil {
		return nil, err
	}
	matched, err := q.WithoutPaging().Apply(ctx, all, p)
	if err != nil {
		return nil, err
	}

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return &Page[T]{Items: matched[start:end], TotalCount: total, Page: page, PerPage: perPage}, nil
}

func (r *Repository[T]) cursorInMemory(ctx context.Context, q *query.Query[T], p query.Params, cursor string, limit int) (*CursorPage[T], error) {
	all, err := r.queryRows(ctx, r.selectPrefix()+" ORDER BY "+r.idColumn())
	if err != nil {
		return nil, err
	}
	matched, err := q.WithoutPaging().Apply(ctx, all, p)
	if err != nil {
		return nil, err
	}
	// Cursor paging is keyed on the ID column; any ordering or page bounds
	// the query itself carries are overridden, matching the pushdown path.
	sort.Slice(matched, func(a, b int) bool {
		return r.mapper.ID(matched[a]) < r.mapper.ID(matched[b])
	})

	items := make([]T, 0, limit)
	for _, entity := range matched {
		if cursor != "" && r.mapper.ID(entity) <= cursor {
			continue
		}
		items = append(items, entity)
		if len(items) == limit {
			break
		}
	}

	next := ""
	if len(items) == limit {
		next = r.mapper.ID(items[len(items)-1])
	}
	return &CursorPage[T]{Items: items, NextCursor: next}, nil
}
