package planner

import (
	"context"
	"strings"
	"testing"
	"time"

	"eventbot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _, _, clk := newPlanner(t, time.Hour)

	_, err := p.AddMemo(ctx, MemoInput{ScopeID: scope, OwnerID: 7, Kind: " ", Title: "x"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = p.AddMemo(ctx, MemoInput{ScopeID: scope, OwnerID: 7, Kind: "task", Title: "x", Due: "someday"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = p.AddMemo(ctx, MemoInput{ScopeID: scope, OwnerID: 7, Kind: "task", Title: strings.Repeat("x", 257)})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = p.AddMemo(ctx, MemoInput{ScopeID: scope, OwnerID: 7, Kind: "task", Title: "x", Note: strings.Repeat("n", 2049)})
	assert.ErrorIs(t, err, ErrValidation)

	m, err := p.AddMemo(ctx, MemoInput{ScopeID: scope, OwnerID: 7, Kind: "BOOK", Title: " Dune ", Due: "2026-01-10"})
	require.NoError(t, err)
	assert.Equal(t, "book", m.Kind)
	assert.Equal(t, "Dune", m.Title)
	require.NotNil(t, m.RemindAt, "remind defaults to due")
	assert.True(t, m.RemindAt.Equal(*m.DueAt))

	open, err := p.ListMemos(ctx, scope, 7, "", 0)
	require.NoError(t, err)
	require.Len(t, open, 1)
	_, err = p.ListMemos(ctx, scope, 7, "archived", 0)
	assert.ErrorIs(t, err, ErrValidation)

	ok, err := p.RescheduleMemo(ctx, scope, 7, m.ID, "2026-01-12 08:00", "2026-01-11")
	require.NoError(t, err)
	assert.True(t, ok)
	got, ok, err := p.ShowMemo(ctx, scope, 7, m.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.DueAt.Equal(time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)))
	assert.True(t, got.RemindAt.Equal(time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)))

	neg := -time.Second
	_, err = p.CompleteMemo(ctx, scope, 7, m.ID, &neg, "")
	assert.ErrorIs(t, err, ErrValidation)

	clk.Advance(time.Hour)
	d := 90 * time.Minute
	ok, err = p.CompleteMemo(ctx, scope, 7, m.ID, &d, "great read")
	require.NoError(t, err)
	assert.True(t, ok)

	got, _, err = p.ShowMemo(ctx, scope, 7, m.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.MemoDone, got.Status)
	require.NotNil(t, got.DoneAt)
	assert.True(t, got.DoneAt.Equal(t0.Add(time.Hour)))
	assert.Equal(t, "great read", got.Reflection)

	// Terminal: no further transitions.
	ok, err = p.RescheduleMemo(ctx, scope, 7, m.ID, "2026-02-01", "")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = p.CancelMemo(ctx, scope, 7, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	done, err := p.ListMemos(ctx, scope, 7, "DONE", 5)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func TestMemosAreOwnerScoped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _, _, _ := newPlanner(t, time.Hour)

	m, err := p.AddMemo(ctx, MemoInput{ScopeID: scope, OwnerID: 7, Kind: "task", Title: "x"})
	require.NoError(t, err)

	ok, err := p.CancelMemo(ctx, scope, 8, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = p.ShowMemo(ctx, scope, 8, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.CancelMemo(ctx, scope, 7, m.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCategories(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _, _, _ := newPlanner(t, time.Hour)

	_, err := p.AddCategory(ctx, scope, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	ok, err := p.AddCategory(ctx, scope, "games")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.AddCategory(ctx, scope, " games ")
	require.NoError(t, err)
	assert.False(t, ok, "duplicate")

	n, err := p.SyncCategories(ctx, scope, []string{"games", "music", "", "study"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	has, err := p.HasCategory(ctx, scope, "music")
	require.NoError(t, err)
	assert.True(t, has)

	list, err := p.ListCategories(ctx, scope, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "games", list[0].Name)

	ok, err = p.RemoveCategory(ctx, scope, "music")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.RemoveCategory(ctx, scope, "music")
	require.NoError(t, err)
	assert.False(t, ok)

	purged, err := p.PurgeCategories(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)
}

func TestMedia(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _, _, _ := newPlanner(t, time.Hour)

	_, _, err := p.AddMedia(ctx, scope, 1, "podcast", "x")
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = p.AddMedia(ctx, scope, 1, "movie", " ")
	assert.ErrorIs(t, err, ErrValidation)

	item, created, err := p.AddMedia(ctx, scope, 1, "Movie", "Dune")
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := p.AddMedia(ctx, scope, 2, "movie", "dune")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, item.ID, again.ID)

	v, ok, err := p.WatchMedia(ctx, scope, item.ID, 5, true, "  ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "-", v.Review)
	require.NotNil(t, v.WatchedAt)

	_, ok, err = p.WatchMedia(ctx, scope, 999, 5, true, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = p.WatchMedia(ctx, scope, item.ID, 6, false, "ignored")
	require.NoError(t, err)

	watched := true
	mine, err := p.MyMedia(ctx, scope, 5, &watched, 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, item.ID, mine[0].Item.ID)

	_, views, ok, err := p.MediaStats(ctx, scope, item.ID, 0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, views, 2)

	ok, err = p.UnwatchMedia(ctx, scope, item.ID, 6)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = p.UpdateMedia(ctx, scope, item.ID, "", "")
	assert.ErrorIs(t, err, ErrValidation)
	ok, err = p.UpdateMedia(ctx, scope, item.ID, "tv", "")
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := p.ListMedia(ctx, scope, "tv", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	nviews, found, err := p.DeleteMedia(ctx, scope, item.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 1, nviews)

	_, _, ok, err = p.MediaStats(ctx, scope, item.ID, 0, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}
