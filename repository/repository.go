// Package repository provides generic CRUD and paging over a SQL database,
// consuming the same query specifications as the in-memory engine. Filters,
// ordering, and paging push down to SQL when the query allows it and fall
// back to in-memory evaluation when it does not.
package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zentient/sift/errors"
	"github.com/zentient/sift/query"
	"github.com/zentient/sift/query/sqlgen"
)

// Mapper binds an entity type to its table. The first column is the primary
// key and must hold the entity ID.
type Mapper[T any] interface {
	Table() string
	Columns() []string
	Values(entity T) []any
	Scan(rows *sql.Rows) (T, error)
	ID(entity T) string
	WithID(entity T, id string) T
}

// Repository is a generic store for entities of type T.
type Repository[T any] struct {
	db     *sql.DB
	mapper Mapper[T]
	logger *zap.SugaredLogger

	columns ColumnFunc
}

// ColumnFunc re-exported for callers that customize pushdown column naming.
type ColumnFunc = sqlgen.ColumnFunc

// New creates a repository for entities mapped by m. A nil logger disables
// logging.
func New[T any](db *sql.DB, m Mapper[T], logger *zap.SugaredLogger) *Repository[T] {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Repository[T]{db: db, mapper: m, logger: logger, columns: sqlgen.SnakeCase}
}

// WithColumnFunc overrides how expression fields map to column names.
func (r *Repository[T]) WithColumnFunc(col ColumnFunc) *Repository[T] {
	r.columns = col
	return r
}

func (r *Repository[T]) idColumn() string {
	return r.mapper.Columns()[0]
}

func (r *Repository[T]) selectPrefix() string {
	return "SELECT " + strings.Join(r.mapper.Columns(), ", ") + " FROM " + r.mapper.Table()
}

// Get fetches a single entity by ID.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	rows, err := r.db.QueryContext(ctx,
		r.selectPrefix()+" WHERE "+r.idColumn()+" = ?", id)
	if err != nil {
		return zero, errors.Wrapf(err, "failed to query %s", r.mapper.Table())
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, errors.Wrapf(err, "failed to read %s", r.mapper.Table())
		}
		return zero, errors.NewNotFoundError("%s %q", r.mapper.Table(), id)
	}
	entity, err := r.mapper.Scan(rows)
	if err != nil {
		return zero, errors.Wrapf(err, "failed to scan %s row", r.mapper.Table())
	}
	return entity, nil
}

// Insert stores a new entity. An empty ID is assigned a fresh UUID. The
// stored entity is returned.
func (r *Repository[T]) Insert(ctx context.Context, entity T) (T, error) {
	if r.mapper.ID(entity) == "" {
		entity = r.mapper.WithID(entity, uuid.NewString())
	}

	columns := r.mapper.Columns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO "+r.mapper.Table()+" ("+strings.Join(columns, ", ")+") VALUES ("+placeholders+")",
		r.mapper.Values(entity)...)
	if err != nil {
		var zero T
		if isConstraintViolation(err) {
			return zero, errors.Wrapf(errors.ErrConflict, "%s %q already exists", r.mapper.Table(), r.mapper.ID(entity))
		}
		return zero, errors.Wrapf(err, "failed to insert into %s", r.mapper.Table())
	}

	r.logger.Debugw("Inserted entity",
		"table", r.mapper.Table(),
		"id", r.mapper.ID(entity),
	)
	return entity, nil
}

// Update rewrites all columns of an existing entity.
func (r *Repository[T]) Update(ctx context.Context, entity T) error {
	columns := r.mapper.Columns()
	assignments := make([]string, 0, len(columns)-1)
	for _, column := range columns[1:] {
		assignments = append(assignments, column+" = ?")
	}

	values := r.mapper.Values(entity)
	args := append(append([]any{}, values[1:]...), values[0])
	result, err := r.db.ExecContext(ctx,
		"UPDATE "+r.mapper.Table()+" SET "+strings.Join(assignments, ", ")+
			" WHERE "+r.idColumn()+" = ?", args...)
	if err != nil {
		return errors.Wrapf(err, "failed to update %s", r.mapper.Table())
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to read update result for %s", r.mapper.Table())
	}
	if affected == 0 {
		return errors.NewNotFoundError("%s %q", r.mapper.Table(), r.mapper.ID(entity))
	}
	return nil
}

// Delete removes an entity by ID.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM "+r.mapper.Table()+" WHERE "+r.idColumn()+" = ?", id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete from %s", r.mapper.Table())
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to read delete result for %s", r.mapper.Table())
	}
	if affected == 0 {
		return errors.NewNotFoundError("%s %q", r.mapper.Table(), id)
	}
	return nil
}

// List applies a query specification. When every clause translates to SQL
// the whole query runs in the database; otherwise all rows are scanned and
// the query applies in memory.
func (r *Repository[T]) List(ctx context.Context, q *query.Query[T], p query.Params) ([]T, error) {
	if p == nil {
		return nil, errors.WithStack(errors.ErrNilParams)
	}

	frag, err := sqlgen.FromQuery(q, p, r.columns)
	if err == nil {
		items, qerr := r.queryRows(ctx, r.selectPrefix()+frag.SQL(), frag.Args...)
		if qerr != nil {
			return nil, qerr
		}
		return items, nil
	}
	if !errors.Is(err, errors.ErrUnsupported) {
		return nil, err
	}

	r.logger.Debugw("Query not pushable, evaluating in memory",
		"table", r.mapper.Table(),
	)
	all, err := r.queryRows(ctx, r.selectPrefix())
	if err != nil {
		return nil, err
	}
	return q.Apply(ctx, all, p)
}

func (r *Repository[T]) queryRows(ctx context.Context, stmt string, args ...any) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", r.mapper.Table())
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		entity, err := r.mapper.Scan(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan %s row", r.mapper.Table())
		}
		items = append(items, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s rows", r.mapper.Table())
	}
	return items, nil
}

func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
