package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"eventbot/internal/clock"
	"eventbot/internal/reminder"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scope = int64(-1001)

var (
	t0    = time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)
	paris = time.FixedZone("CET", 3600)
)

type fakeChannels struct {
	created []string
	deleted []string
	next    int64
	err     error
}

func (f *fakeChannels) CreateChannel(_ context.Context, _ int64, name string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.next++
	f.created = append(f.created, name)
	return 100 + f.next, nil
}

func (f *fakeChannels) DeleteByName(_ context.Context, _ int64, name string) (bool, error) {
	f.deleted = append(f.deleted, name)
	return true, nil
}

func newPlanner(t *testing.T, window time.Duration) (*Planner, *storage.SQLite, *fakeChannels, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(t0)
	st, err := storage.Open(context.Background(), storage.Config{Path: ":memory:"}, logx.Nop(), storage.WithNow(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ch := &fakeChannels{}
	p := New(st, ch, clk, Config{Location: paris, EventWindow: window})
	return p, st, ch, clk
}

func TestParseLocal(t *testing.T) {
	t.Parallel()
	got, err := ParseLocal("2026-01-08 20:30", paris)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 1, 8, 19, 30, 0, 0, time.UTC)))

	_, err = ParseLocal("08/01/2026 20:30", paris)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseMemoTime(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-01-08", time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)},
		{"2026-01-08 09:15", time.Date(2026, 1, 8, 9, 15, 0, 0, time.UTC)},
		{"2026-01-08T09:15:30", time.Date(2026, 1, 8, 9, 15, 30, 0, time.UTC)},
		{"2026-01-08T09:15:30+02:00", time.Date(2026, 1, 8, 7, 15, 30, 0, time.UTC)},
		{"2026-01-08T09:15:30.9Z", time.Date(2026, 1, 8, 9, 15, 30, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseMemoTime(tc.in)
		require.NoError(t, err, tc.in)
		require.NotNil(t, got, tc.in)
		assert.True(t, got.Equal(tc.want), "%s: got %s", tc.in, got)
	}

	got, err := ParseMemoTime("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseMemoTime("tomorrow")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateEventDefaultWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, st, _, clk := newPlanner(t, 10*time.Minute)

	ev, err := p.CreateEvent(ctx, EventInput{
		ScopeID: scope, ChannelID: 3, CreatedBy: 42,
		Title: "  Raid  ", Start: "2026-01-08 20:30", Description: "bring snacks",
	})
	require.NoError(t, err)
	assert.Equal(t, "Raid", ev.Title)
	assert.True(t, ev.ExpiresAt.Equal(time.Date(2026, 1, 8, 19, 40, 0, 0, time.UTC)))
	assert.Empty(t, ev.ChannelName)

	clk.Set(time.Date(2026, 1, 8, 19, 39, 0, 0, time.UTC))
	active, err := p.ListEvents(ctx, scope, 3, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)

	expired, err := st.FetchExpiredEvents(ctx, time.Date(2026, 1, 8, 19, 41, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, ev.ID, expired[0].ID)
}

func TestCreateEventValidation(t *testing.T) {
	t.Parallel()
	p, _, ch, _ := newPlanner(t, time.Hour)
	limit0, limit100 := 0, 100

	cases := map[string]EventInput{
		"short title":          {Title: "x", Start: "2026-01-08 20:30"},
		"bad start":            {Title: "Raid", Start: "soon"},
		"end before start":     {Title: "Raid", Start: "2026-01-08 20:30", End: "2026-01-08 20:30"},
		"limit too low":        {Title: "Raid", Start: "2026-01-08 20:30", CreateChannel: true, Category: "games", MemberLimit: &limit0},
		"limit too high":       {Title: "Raid", Start: "2026-01-08 20:30", CreateChannel: true, Category: "games", MemberLimit: &limit100},
		"category w/o channel": {Title: "Raid", Start: "2026-01-08 20:30", Category: "games"},
		"missing category":     {Title: "Raid", Start: "2026-01-08 20:30", CreateChannel: true},
		"unknown category":     {Title: "Raid", Start: "2026-01-08 20:30", CreateChannel: true, Category: "games"},
		"title too long":       {Title: strings.Repeat("r", 129), Start: "2026-01-08 20:30"},
		"description too long": {Title: "Raid", Start: "2026-01-08 20:30", Description: strings.Repeat("d", 1025)},
		"channel name too long": {
			Title: "Raid", Start: "2026-01-08 20:30",
			CreateChannel: true, Category: "games", ChannelName: strings.Repeat("c", 129),
		},
	}
	for name, in := range cases {
		in.ScopeID = scope
		_, err := p.CreateEvent(context.Background(), in)
		assert.ErrorIs(t, err, ErrValidation, name)
	}
	assert.Empty(t, ch.created)
}

func TestCreateEventWithChannel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, st, ch, _ := newPlanner(t, time.Hour)
	_, err := p.AddCategory(ctx, scope, "games")
	require.NoError(t, err)
	limit := 5

	ev, err := p.CreateEvent(ctx, EventInput{
		ScopeID: scope, ChannelID: 3, CreatedBy: 42,
		Title: "Raid", Start: "2026-01-08 20:30", End: "2026-01-08 22:00",
		CreateChannel: true, Category: "games", MemberLimit: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Raid"}, ch.created)
	assert.EqualValues(t, 101, ev.ChannelID)
	assert.Equal(t, "Raid", ev.ChannelName)
	assert.True(t, ev.ExpiresAt.Equal(time.Date(2026, 1, 8, 21, 0, 0, 0, time.UTC)))

	got, ok, err := st.GetEvent(ctx, scope, ev.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.MemberLimit)
	assert.Equal(t, 5, *got.MemberLimit)
}

func TestCreateEventChannelFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, st, ch, _ := newPlanner(t, time.Hour)
	_, err := p.AddCategory(ctx, scope, "games")
	require.NoError(t, err)
	ch.err = errors.New("not enough rights")

	_, err = p.CreateEvent(ctx, EventInput{
		ScopeID: scope, Title: "Raid", Start: "2026-01-08 20:30",
		CreateChannel: true, Category: "games", ChannelName: "raid-room",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)

	dash, err := st.ScopeDashboard(ctx, scope, t0)
	require.NoError(t, err)
	assert.Zero(t, dash.EventsTotal)
}

func TestLongestEventFitsOneMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _, _, _ := newPlanner(t, time.Hour)
	_, err := p.AddCategory(ctx, scope, "games")
	require.NoError(t, err)

	ev, err := p.CreateEvent(ctx, EventInput{
		ScopeID: scope, CreatedBy: 42,
		Title: strings.Repeat("<", 128), Start: "2026-01-08 20:30", End: "2026-01-08 23:30",
		Description:   strings.Repeat("d", 1024),
		CreateChannel: true, Category: "games", ChannelName: strings.Repeat("&", 128),
	})
	require.NoError(t, err)

	text := reminder.ChannelReminderText(ev, paris)
	assert.Less(t, utf8.RuneCountInString(text), 4000)
}

func TestCreateEventTakenChannelName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, st, ch, _ := newPlanner(t, time.Hour)
	_, err := p.AddCategory(ctx, scope, "games")
	require.NoError(t, err)
	ch.err = fmt.Errorf("create topic %q: %w", "Raid", storage.ErrChannelNameTaken)

	_, err = p.CreateEvent(ctx, EventInput{
		ScopeID: scope, Title: "Raid", Start: "2026-01-08 20:30",
		CreateChannel: true, Category: "games",
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), `"Raid"`)

	dash, err := st.ScopeDashboard(ctx, scope, t0)
	require.NoError(t, err)
	assert.Zero(t, dash.EventsTotal)
}

func TestEventReminderBoundary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _, _, _ := newPlanner(t, time.Hour)

	ev, err := p.CreateEvent(ctx, EventInput{ScopeID: scope, CreatedBy: 42, Title: "Raid", Start: "2026-01-08 20:30"})
	require.NoError(t, err)

	_, _, err = p.SetEventReminder(ctx, scope, ev.ID, "2026-01-08 21:30", true)
	assert.ErrorIs(t, err, ErrValidation, "at expiry")

	_, ok, err := p.SetEventReminder(ctx, scope+1, ev.ID, "2026-01-08 20:00", true)
	require.NoError(t, err)
	assert.False(t, ok, "other scope")

	got, ok, err := p.SetEventReminder(ctx, scope, ev.ID, "2026-01-08 20:00", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.RemindAt)
	assert.True(t, got.RemindAt.Equal(time.Date(2026, 1, 8, 19, 0, 0, 0, time.UTC)))
	assert.False(t, got.RemindInChannel)

	pending, err := p.ListPendingReminders(ctx, scope, 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ok, err = p.CancelEventReminder(ctx, scope, ev.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.CancelEventReminder(ctx, scope, ev.ID)
	require.NoError(t, err)
	assert.False(t, ok, "nothing left to cancel")

	pending, err = p.ListPendingReminders(ctx, scope, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDashboards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _, _, _ := newPlanner(t, time.Hour)

	_, err := p.CreateEvent(ctx, EventInput{ScopeID: scope, CreatedBy: 42, Title: "Raid", Start: "2026-01-08 20:30"})
	require.NoError(t, err)
	_, err = p.AddMemo(ctx, MemoInput{ScopeID: scope, OwnerID: 42, Kind: "task", Title: "pack"})
	require.NoError(t, err)

	sd, err := p.ScopeDashboard(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sd.EventsTotal)
	assert.EqualValues(t, 1, sd.MemoOpen)

	ud, err := p.UserDashboard(ctx, scope, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ud.EventsCreated)
	assert.EqualValues(t, 1, ud.MemoOpen)
}
