package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zentient/sift/errors"
	"github.com/zentient/sift/query"
)

func seedMany(t *testing.T, repo *Repository[framework], n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		_, err := repo.Insert(ctx, framework{
			ID:    fmt.Sprintf("%02d", i),
			Name:  fmt.Sprintf("framework-%02d", i),
			Score: i % 5,
		})
		require.NoError(t, err)
	}
}

func TestGetPaged(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedMany(t, repo, 10)

	q := query.NewBuilder[framework]().OrderBy("ID", false).Build()

	first, err := repo.GetPaged(ctx, q, query.Args{}, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, first.TotalCount)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 4, first.PerPage)
	require.Len(t, first.Items, 4)
	assert.Equal(t, "01", first.Items[0].ID)

	last, err := repo.GetPaged(ctx, q, query.Args{}, 3, 4)
	require.NoError(t, err)
	require.Len(t, last.Items, 2)
	assert.Equal(t, "09", last.Items[0].ID)
	assert.Equal(t, 10, last.TotalCount)
}

func TestGetPagedWithFilter(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedMany(t, repo, 10)

	q := query.NewBuilder[framework]().
		Where(query.Gte("Score", 3)).
		OrderBy("ID", false).
		Build()

	page, err := repo.GetPaged(ctx, q, query.Args{}, 1, 10)
	require.NoError(t, err)
	// Scores cycle 1,2,3,4,0,...; ids 03,04,08,09 score >= 3.
	assert.Equal(t, 4, page.TotalCount)
	assert.Len(t, page.Items, 4)
}

func TestGetPagedInMemoryFallback(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedMany(t, repo, 10)

	q := query.NewBuilder[framework]().
		WhereFunc(func(f framework, p query.Params) bool { return f.Score >= 3 }).
		Build()

	page, err := repo.GetPaged(ctx, q, query.Args{}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalCount)
	assert.Len(t, page.Items, 1)
}

func TestGetPagedIgnoresQueryBounds(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedMany(t, repo, 10)

	// The same specification, pushable and not. GetPaged controls paging via
	// its arguments, so the query's own Take must not change the page on
	// either path.
	pushdown := query.NewBuilder[framework]().
		Where(query.Gte("Score", 3)).
		Take(1).
		Build()
	fallback := query.NewBuilder[framework]().
		WhereFunc(func(f framework, p query.Params) bool { return f.Score >= 3 }).
		Take(1).
		Build()

	for _, q := range []*query.Query[framework]{pushdown, fallback} {
		page, err := repo.GetPaged(ctx, q, query.Args{}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 4, page.TotalCount)
		assert.Len(t, page.Items, 4)

		n, err := repo.Count(ctx, q, query.Args{})
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		cursorPage, err := repo.GetPagedByCursor(ctx, q, query.Args{}, "", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"03", "04", "08", "09"}, idsOf(cursorPage.Items))
	}
}

func TestGetPagedInvalidBounds(t *testing.T) {
	repo := setupRepo(t)
	q := query.NewBuilder[framework]().Build()

	_, err := repo.GetPaged(context.Background(), q, query.Args{}, 0, 10)
	assert.True(t, errors.Is(err, errors.ErrInvalidPage))

	_, err = repo.GetPaged(context.Background(), q, query.Args{}, 1, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidPage))

	_, err = repo.GetPaged(context.Background(), q, nil, 1, 10)
	assert.True(t, errors.Is(err, errors.ErrNilParams))
}

func TestGetPagedByCursorWalk(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedMany(t, repo, 7)

	q := query.NewBuilder[framework]().Build()

	var seen []string
	cursor := ""
	for {
		page, err := repo.GetPagedByCursor(ctx, q, query.Args{}, cursor, 3)
		require.NoError(t, err)
		for _, f := range page.Items {
			seen = append(seen, f.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, []string{"01", "02", "03", "04", "05", "06", "07"}, seen)
}

func TestGetPagedByCursorWithFilter(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedMany(t, repo, 10)

	q := query.NewBuilder[framework]().Where(query.Gte("Score", 3)).Build()

	page, err := repo.GetPagedByCursor(ctx, q, query.Args{}, "03", 10)
	require.NoError(t, err)
	// Matching ids are 03,04,08,09; the cursor excludes 03 itself.
	assert.Equal(t, []string{"04", "08", "09"}, idsOf(page.Items))
	assert.Empty(t, page.NextCursor)
}

func TestGetPagedByCursorInMemoryFallback(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedMany(t, repo, 10)

	q := query.NewBuilder[framework]().
		WhereFunc(func(f framework, p query.Params) bool { return f.Score >= 3 }).
		Build()

	page, err := repo.GetPagedByCursor(ctx, q, query.Args{}, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"03", "04"}, idsOf(page.Items))
	assert.Equal(t, "04", page.NextCursor)

	page, err = repo.GetPagedByCursor(ctx, q, query.Args{}, page.NextCursor, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"08", "09"}, idsOf(page.Items))
}

func TestGetPagedByCursorInvalidLimit(t *testing.T) {
	repo := setupRepo(t)
	q := query.NewBuilder[framework]().Build()

	_, err := repo.GetPagedByCursor(context.Background(), q, query.Args{}, "", 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidPage))
}

func idsOf(fs []framework) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}
