package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zentient/sift/errors"
)

// The canonical paging scenario: filter disabled by an empty id, sort by
// name, skip one, take one.
func TestPagingScenario(t *testing.T) {
	src := testFrameworks()

	q := NewBuilder[framework]().
		WhereFunc(func(e framework, p Params) bool {
			id := ""
			if args, ok := p.(Args); ok {
				id = args.ID
			}
			return id == "" || e.ID == id
		}).
		OrderBy("Name", false).
		Skip(1).
		Take(1).
		Build()

	got, err := q.Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	// Alphabetical order is MSTest, Test 101, XUnit; skipping one and taking
	// one lands exactly on Test 101.
	assert.Equal(t, "Test 101", got[0].Name)
}

func TestNilParamsAlwaysFails(t *testing.T) {
	ctx := context.Background()
	src := testFrameworks()

	// Even a clause-free query refuses nil params.
	empty := NewBuilder[framework]().Build()
	_, err := empty.Apply(ctx, src, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNilParams))

	withClauses := NewBuilder[framework]().Where(Gt("Rank", 0)).Build()
	_, err = withClauses.Apply(ctx, src, nil)
	assert.True(t, errors.Is(err, errors.ErrNilParams))

	_, err = withClauses.Count(ctx, src, nil)
	assert.True(t, errors.Is(err, errors.ErrNilParams))
}

func TestEmptyBuilderIsIdentity(t *testing.T) {
	src := testFrameworks()
	got, err := NewBuilder[framework]().Build().Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestOrderWithPagingIsStable(t *testing.T) {
	// Entities sharing a sort key must keep their input order, so identical
	// input always yields identical output.
	src := []framework{
		{ID: "a", Name: "dup", Rank: 1},
		{ID: "b", Name: "dup", Rank: 2},
		{ID: "c", Name: "dup", Rank: 3},
		{ID: "d", Name: "aaa", Rank: 4},
	}

	q := NewBuilder[framework]().OrderBy("Name", false).Skip(1).Take(2).Build()

	first, err := q.Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(first))

	for i := 0; i < 5; i++ {
		again, err := q.Apply(context.Background(), src, Args{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestOrderByDescending(t *testing.T) {
	src := testFrameworks()
	q := NewBuilder[framework]().OrderBy("Rank", true).Build()
	got, err := q.Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{"XUnit", "Test 101", "MSTest"}, names(got))
}

func TestGroupByFlattens(t *testing.T) {
	src := []framework{
		{ID: "1", Name: "b-second", Rank: 2},
		{ID: "2", Name: "a-first", Rank: 1},
		{ID: "3", Name: "b-first", Rank: 2},
		{ID: "4", Name: "a-second", Rank: 1},
		{ID: "5", Name: "c-only", Rank: 3},
	}

	q := NewBuilder[framework]().GroupBy("Rank").Build()
	got, err := q.Apply(context.Background(), src, Args{})
	require.NoError(t, err)

	// Flat sequence clustered by key, keys ascending, input order preserved
	// inside each cluster. No grouping structure survives.
	assert.Equal(t, []string{"2", "4", "1", "3", "5"}, ids(got))
}

func TestGroupByLastWriteWins(t *testing.T) {
	src := testFrameworks()
	q := NewBuilder[framework]().GroupBy("Name").GroupBy("Rank").Build()
	got, err := q.Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{"MSTest", "Test 101", "XUnit"}, names(got))
}

func TestGroupByRunsAfterPaging(t *testing.T) {
	src := testFrameworks()
	q := NewBuilder[framework]().
		OrderBy("Name", false). // MSTest(1), Test 101(2), XUnit(3)
		Take(2).
		GroupBy("Rank").
		Build()

	got, err := q.Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	// Paging keeps MSTest and Test 101; grouping then orders by rank.
	assert.Equal(t, []string{"MSTest", "Test 101"}, names(got))
}

func TestNegativePageBoundsFailAtApply(t *testing.T) {
	ctx := context.Background()
	src := testFrameworks()

	_, err := NewBuilder[framework]().Skip(-1).Build().Apply(ctx, src, Args{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPage))

	_, err = NewBuilder[framework]().Take(-1).Build().Apply(ctx, src, Args{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPage))
}

func TestSkipPastEnd(t *testing.T) {
	got, err := NewBuilder[framework]().Skip(10).Build().
		Apply(context.Background(), testFrameworks(), Args{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestApplyDoesNotMutateSource(t *testing.T) {
	src := testFrameworks()
	original := testFrameworks()

	_, err := NewBuilder[framework]().OrderBy("Name", true).Build().
		Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	assert.Equal(t, original, src)
}

func TestApplyHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder[framework]().Build().Apply(ctx, testFrameworks(), Args{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParamRefResolution(t *testing.T) {
	src := testFrameworks()
	ctx := context.Background()

	q := NewBuilder[framework]().Where(Eq("ID", Param("id"))).Build()
	got, err := q.Apply(ctx, src, Args{ID: "2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "MSTest", got[0].Name)

	named := NewBuilder[framework]().Where(Eq("Name", Param("name"))).Build()
	got, err = named.Apply(ctx, src, NamedArgs{Name: "XUnit"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	// Name parameter against a bare Args carrier is a usage error.
	_, err = named.Apply(ctx, src, Args{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidExpr))
}

func TestArgRefResolution(t *testing.T) {
	src := testFrameworks()
	ctx := context.Background()

	q := NewBuilder[framework]().Where(Gte("Rank", Arg(0))).Build()
	got, err := q.Apply(ctx, src, Args{Values: []any{2}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = q.Apply(ctx, src, Args{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestNestedFieldAndNilPointer(t *testing.T) {
	src := testFrameworks()
	q := NewBuilder[framework]().Where(Eq("Meta.Tier", "gold")).Build()
	got, err := q.Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "XUnit", got[0].Name)

	// Test 101 has a nil Meta; Ne treats the missing value as not-equal.
	ne := NewBuilder[framework]().Where(Ne("Meta.Tier", "gold")).Build()
	got, err = ne.Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{"MSTest", "Test 101"}, names(got))
}

func TestMapEntities(t *testing.T) {
	src := []map[string]any{
		{"id": "1", "name": "XUnit", "rank": int64(3)},
		{"id": "2", "name": "MSTest", "rank": int64(1)},
		{"id": "3", "name": "Test 101", "rank": int64(2)},
	}

	q := NewBuilder[map[string]any]().
		Where(Gt("rank", 1)).
		OrderBy("name", false).
		Build()

	got, err := q.Apply(context.Background(), src, Args{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Test 101", got[0]["name"])
	assert.Equal(t, "XUnit", got[1]["name"])
}

func TestInAndOrAndNot(t *testing.T) {
	src := testFrameworks()
	ctx := context.Background()

	in := NewBuilder[framework]().Where(In("ID", "1", "3")).Build()
	got, err := in.Apply(ctx, src, Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids(got))

	or := NewBuilder[framework]().
		Where(Or(Eq("Name", "MSTest"), Eq("Name", "XUnit"))).
		Build()
	got, err = or.Apply(ctx, src, Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(got))

	not := NewBuilder[framework]().Where(Not(Contains("Name", "Test"))).Build()
	got, err = not.Apply(ctx, src, Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestQueryIntrospection(t *testing.T) {
	b := NewBuilder[framework]().
		Where(Eq("Name", "XUnit")).
		Where(Gt("Rank", 0)).
		OrderBy("Name", true).
		GroupBy("Rank").
		Skip(2).
		Take(5)
	q := b.Build()

	expr := q.Expr()
	require.NotNil(t, expr)
	and, ok := expr.(AndExpr)
	require.True(t, ok)
	assert.Len(t, and.Exprs, 2)

	field, desc, ok := q.Order()
	require.True(t, ok)
	assert.Equal(t, "Name", field)
	assert.True(t, desc)

	group, ok := q.Group()
	require.True(t, ok)
	assert.Equal(t, "Rank", group)

	skip, ok := q.Skip()
	require.True(t, ok)
	assert.Equal(t, 2, skip)

	take, ok := q.Take()
	require.True(t, ok)
	assert.Equal(t, 5, take)

	assert.False(t, q.HasFuncClauses())
	b.WhereFunc(func(framework, Params) bool { return true })
	assert.True(t, b.Build().HasFuncClauses())

	single := NewBuilder[framework]().Where(Eq("ID", "1")).Build()
	_, isCmp := single.Expr().(Cmp)
	assert.True(t, isCmp)

	assert.Nil(t, NewBuilder[framework]().Build().Expr())
}

func ids(fs []framework) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}
