package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventbot/internal/clock"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type post struct {
	scope, thread int64
	text          string
}

type fakeSender struct {
	posts []post
	fail  map[int64]error
}

func (f *fakeSender) SendToChannel(_ context.Context, scopeID, channelID int64, text string) error {
	if err := f.fail[scopeID]; err != nil {
		return err
	}
	f.posts = append(f.posts, post{scopeID, channelID, text})
	return nil
}

func TestNewRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	_, err := New(nil, nil, nil, Config{Schedule: "every morning"})
	require.Error(t, err)
}

func TestNextUsesLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+7", 7*3600)
	d, err := New(nil, nil, nil, Config{Location: loc})
	require.NoError(t, err)

	next := d.Next(time.Date(2026, 1, 8, 3, 0, 0, 0, time.UTC)) // 10:00 local
	assert.True(t, next.Equal(time.Date(2026, 1, 9, 2, 0, 0, 0, time.UTC)), next)
}

func TestSendListsTodaysActiveEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	loc := time.FixedZone("UTC+7", 7*3600)
	now := time.Date(2026, 1, 8, 2, 0, 0, 0, time.UTC) // 09:00 local

	st, err := storage.Open(ctx, storage.Config{Path: ":memory:"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	add := func(scope int64, title string, start time.Time, expires time.Time) {
		_, err := st.CreateEvent(ctx, storage.NewEvent{ScopeID: scope, Title: title, StartAt: start, ExpiresAt: expires, CreatedBy: 1})
		require.NoError(t, err)
	}
	add(1, "Lunch <3", time.Date(2026, 1, 8, 5, 0, 0, 0, time.UTC), now.Add(24*time.Hour))
	add(1, "Already over", time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC), now)
	add(1, "Tomorrow", time.Date(2026, 1, 8, 17, 30, 0, 0, time.UTC), now.Add(48*time.Hour))
	add(2, "Other group", time.Date(2026, 1, 8, 5, 0, 0, 0, time.UTC), now.Add(24*time.Hour))

	sender := &fakeSender{}
	d, err := New(st, sender, clock.NewManual(now), Config{
		Location: loc,
		Targets:  []Target{{ScopeID: 1, ThreadID: 4}, {ScopeID: 3}},
		Blessing: "have fun",
	})
	require.NoError(t, err)

	n, err := d.Send(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sender.posts, 2)

	first := sender.posts[0]
	assert.EqualValues(t, 4, first.thread)
	assert.Contains(t, first.text, "2026-01-08")
	assert.Contains(t, first.text, "Lunch &lt;3</b> • 12:00")
	assert.NotContains(t, first.text, "Already over")
	assert.NotContains(t, first.text, "Tomorrow")
	assert.NotContains(t, first.text, "Other group")
	assert.Contains(t, first.text, "✨ have fun")

	assert.Contains(t, sender.posts[1].text, "No events scheduled today")
}

func TestSendSkipsFailedTargets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{Path: ":memory:"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sender := &fakeSender{fail: map[int64]error{1: errors.New("chat not found")}}
	d, err := New(st, sender, clock.NewManual(time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC)), Config{
		Targets: []Target{{ScopeID: 1}, {ScopeID: 2}},
	})
	require.NoError(t, err)

	n, err := d.Send(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.posts, 1)
	assert.EqualValues(t, 2, sender.posts[0].scope)
}

func TestTextMentionsTopicAndLimit(t *testing.T) {
	t.Parallel()
	limit := 8
	text := Text(time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC), []storage.Event{{
		Title:       "Raid",
		StartAt:     time.Date(2026, 1, 8, 20, 0, 0, 0, time.UTC),
		ChannelName: "raid-room",
		MemberLimit: &limit,
	}}, time.UTC, "")
	assert.Contains(t, text, "(topic: raid-room, max 8)")
	assert.NotContains(t, text, "✨")
}
