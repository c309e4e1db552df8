package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	due := t0.Add(24 * time.Hour)
	m, err := st.CreateMemo(ctx, NewMemo{
		ScopeID: 1, OwnerID: 5, Kind: "book", Title: "Dune", Note: "part one",
		DueAt: &due, RemindAt: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, MemoOpen, m.Status)
	assert.True(t, m.CreatedAt.Equal(t0))

	got, ok, err := st.GetMemo(ctx, 1, 5, m.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, "part one", got.Note)
	require.NotNil(t, got.DueAt)
	assert.True(t, got.DueAt.Equal(due))

	_, ok, err = st.GetMemo(ctx, 1, 6, m.ID)
	require.NoError(t, err)
	assert.False(t, ok, "other owners cannot see the memo")

	later := due.Add(time.Hour)
	n, err := st.RescheduleMemo(ctx, 1, 5, m.ID, &later, &later)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	dur := 95 * time.Minute
	n, err = st.MarkMemoDone(ctx, 1, 5, m.ID, MemoCompletion{DoneAt: t0, Duration: &dur, Reflection: "great"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _, err = st.GetMemo(ctx, 1, 5, m.ID)
	require.NoError(t, err)
	assert.Equal(t, MemoDone, got.Status)
	require.NotNil(t, got.Duration)
	assert.Equal(t, dur, *got.Duration)
	assert.Equal(t, "great", got.Reflection)

	// Terminal states reject further transitions.
	n, err = st.RescheduleMemo(ctx, 1, 5, m.ID, &later, &later)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = st.CancelMemo(ctx, 1, 5, m.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = st.MarkMemoDone(ctx, 1, 5, m.ID, MemoCompletion{DoneAt: t0})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancelMemoOnlyWhileOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	m, err := st.CreateMemo(ctx, NewMemo{ScopeID: 1, OwnerID: 5, Kind: "task", Title: "call"})
	require.NoError(t, err)

	n, err := st.CancelMemo(ctx, 1, 5, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = st.CancelMemo(ctx, 1, 5, m.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	remind := t0
	n, err = st.RescheduleMemo(ctx, 1, 5, m.ID, nil, &remind)
	require.NoError(t, err)
	assert.Zero(t, n)

	canceled, err := st.ListMemos(ctx, 1, 5, MemoCanceled, 10, 0)
	require.NoError(t, err)
	require.Len(t, canceled, 1)
	open, err := st.ListMemos(ctx, 1, 5, MemoOpen, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestListMemosOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	soon, later := t0.Add(time.Hour), t0.Add(48*time.Hour)
	for _, in := range []NewMemo{
		{ScopeID: 1, OwnerID: 5, Kind: "task", Title: "no due"},
		{ScopeID: 1, OwnerID: 5, Kind: "task", Title: "later", DueAt: &later},
		{ScopeID: 1, OwnerID: 5, Kind: "task", Title: "soon", DueAt: &soon},
	} {
		_, err := st.CreateMemo(ctx, in)
		require.NoError(t, err)
	}

	list, err := st.ListMemos(ctx, 1, 5, MemoOpen, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"soon", "later", "no due"}, []string{list[0].Title, list[1].Title, list[2].Title})

	page, err := st.ListMemos(ctx, 1, 5, MemoOpen, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "later", page[0].Title)
}

func TestMemoReminders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	r1, r2 := t0.Add(-time.Minute), t0.Add(-2*time.Minute)
	a, err := st.CreateMemo(ctx, NewMemo{ScopeID: 1, OwnerID: 5, Kind: "task", Title: "a", RemindAt: &r1})
	require.NoError(t, err)
	b, err := st.CreateMemo(ctx, NewMemo{ScopeID: 1, OwnerID: 6, Kind: "task", Title: "b", RemindAt: &r2})
	require.NoError(t, err)
	future := t0.Add(time.Hour)
	_, err = st.CreateMemo(ctx, NewMemo{ScopeID: 1, OwnerID: 5, Kind: "task", Title: "future", RemindAt: &future})
	require.NoError(t, err)

	due, err := st.FetchDueMemoReminders(ctx, t0, 25)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, b.ID, due[0].ID)
	assert.Equal(t, a.ID, due[1].ID)

	n, err := st.MarkMemoReminded(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = st.CancelMemo(ctx, 1, 5, a.ID)
	require.NoError(t, err)

	due, err = st.FetchDueMemoReminders(ctx, t0, 25)
	require.NoError(t, err)
	assert.Empty(t, due, "sent and canceled memos are not due")

	won, err := st.ClaimMemoReminder(ctx, a.ID, t0)
	require.NoError(t, err)
	assert.False(t, won, "canceled memo cannot be claimed")
}

func TestClaimMemoReminder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	r := t0
	m, err := st.CreateMemo(ctx, NewMemo{ScopeID: 1, OwnerID: 5, Kind: "task", Title: "a", RemindAt: &r})
	require.NoError(t, err)

	won, err := st.ClaimMemoReminder(ctx, m.ID, t0)
	require.NoError(t, err)
	require.True(t, won)
	won, err = st.ClaimMemoReminder(ctx, m.ID, t0)
	require.NoError(t, err)
	assert.False(t, won)

	n, err := st.ReleaseMemoReminder(ctx, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	due, err := st.FetchDueMemoReminders(ctx, t0, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestRecoverMemoClaims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	r := t0
	m, err := st.CreateMemo(ctx, NewMemo{ScopeID: 1, OwnerID: 5, Kind: "task", Title: "a", RemindAt: &r})
	require.NoError(t, err)
	won, err := st.ClaimMemoReminder(ctx, m.ID, t0)
	require.NoError(t, err)
	require.True(t, won)

	n, err := st.RecoverMemoClaims(ctx, t0.Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, n, "claim newer than cutoff")

	n, err = st.RecoverMemoClaims(ctx, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	due, err := st.FetchDueMemoReminders(ctx, t0, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}
