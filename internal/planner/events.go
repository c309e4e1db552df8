package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

type EventInput struct {
	ScopeID   int64
	ChannelID int64
	CreatedBy int64

	Title       string
	Start       string
	End         string
	Description string

	// CreateChannel opens a dedicated topic for the event, named ChannelName
	// or the title. Category must be a known category option.
	CreateChannel bool
	Category      string
	ChannelName   string
	MemberLimit   *int
}

func (p *Planner) CreateEvent(ctx context.Context, in EventInput) (storage.Event, error) {
	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) < 2 {
		return storage.Event{}, invalid("title too short")
	}
	description := strings.TrimSpace(in.Description)
	if err := errors.Join(
		tooLong("title", title, maxTitleRunes),
		tooLong("description", description, maxDescriptionRunes),
		tooLong("channel name", strings.TrimSpace(in.ChannelName), maxChannelNameRunes),
	); err != nil {
		return storage.Event{}, err
	}
	if in.MemberLimit != nil && (*in.MemberLimit < 1 || *in.MemberLimit > 99) {
		return storage.Event{}, invalid("member limit must be between 1 and 99")
	}
	category := strings.TrimSpace(in.Category)
	channelName := strings.TrimSpace(in.ChannelName)
	if !in.CreateChannel && (category != "" || channelName != "" || in.MemberLimit != nil) {
		return storage.Event{}, invalid("category, channel name and member limit need a dedicated channel")
	}

	start, err := ParseLocal(in.Start, p.loc)
	if err != nil {
		return storage.Event{}, err
	}
	var end *time.Time
	if strings.TrimSpace(in.End) != "" {
		e, err := ParseLocal(in.End, p.loc)
		if err != nil {
			return storage.Event{}, err
		}
		if !e.After(start) {
			return storage.Event{}, invalid("end must be after start")
		}
		end = &e
	}
	expires := start.Add(p.window)
	if end != nil {
		expires = *end
	}

	ne := storage.NewEvent{
		ScopeID:     in.ScopeID,
		ChannelID:   in.ChannelID,
		Title:       title,
		StartAt:     start,
		EndAt:       end,
		Description: description,
		CreatedBy:   in.CreatedBy,
		ExpiresAt:   expires,
		MemberLimit: in.MemberLimit,
	}

	if in.CreateChannel {
		if category == "" {
			return storage.Event{}, invalid("category is required for a dedicated channel")
		}
		ok, err := p.store.HasCategoryOption(ctx, in.ScopeID, category)
		if err != nil {
			return storage.Event{}, err
		}
		if !ok {
			return storage.Event{}, invalid("unknown category %q", category)
		}
		if p.channels == nil {
			return storage.Event{}, errors.New("channel creation is not available")
		}
		if channelName == "" {
			channelName = title
		}
		threadID, err := p.channels.CreateChannel(ctx, in.ScopeID, channelName)
		if errors.Is(err, storage.ErrChannelNameTaken) {
			return storage.Event{}, invalid("channel %q is already used by another event", channelName)
		}
		if err != nil {
			return storage.Event{}, fmt.Errorf("create channel: %w", err)
		}
		ne.ChannelID = threadID
		ne.ChannelName = channelName
	}

	ev, err := p.store.CreateEvent(ctx, ne)
	if err != nil {
		if ne.ChannelName != "" {
			if _, derr := p.channels.DeleteByName(ctx, in.ScopeID, ne.ChannelName); derr != nil {
				p.log.Warn("rollback channel failed", logx.String("channel", ne.ChannelName), logx.Err(derr))
			}
		}
		return storage.Event{}, err
	}
	p.log.Info("event created",
		logx.Int64("event_id", ev.ID),
		logx.Int64("scope_id", ev.ScopeID),
		logx.Time("expires_at", ev.ExpiresAt),
	)
	return ev, nil
}

// ListEvents returns the channel's active events, soonest first.
func (p *Planner) ListEvents(ctx context.Context, scopeID, channelID int64, limit int) ([]storage.Event, error) {
	return p.store.ListActiveEvents(ctx, scopeID, channelID, p.clock.Now(), pageSize(limit, 10, 50))
}

// SetEventReminder arms the event's reminder. It reports false when the
// event does not exist in the scope. The reminder must fire before the event
// expires, otherwise reaping would make it unreachable.
func (p *Planner) SetEventReminder(ctx context.Context, scopeID, eventID int64, when string, inChannel bool) (storage.Event, bool, error) {
	at, err := ParseLocal(when, p.loc)
	if err != nil {
		return storage.Event{}, false, err
	}
	ev, ok, err := p.store.GetEvent(ctx, scopeID, eventID)
	if err != nil || !ok {
		return storage.Event{}, false, err
	}
	if !at.Before(ev.ExpiresAt) {
		return storage.Event{}, false, invalid("reminder must be before the event expires at %s", ev.ExpiresAt.In(p.loc).Format(LocalLayout))
	}
	n, err := p.store.SetEventReminder(ctx, scopeID, eventID, at, inChannel)
	if err != nil || n == 0 {
		return storage.Event{}, false, err
	}
	ev.RemindAt = &at
	ev.Reminded = false
	ev.RemindInChannel = inChannel
	return ev, true, nil
}

// CancelEventReminder clears a pending or sent reminder. It reports false
// when the event is missing or has no reminder.
func (p *Planner) CancelEventReminder(ctx context.Context, scopeID, eventID int64) (bool, error) {
	ev, ok, err := p.store.GetEvent(ctx, scopeID, eventID)
	if err != nil || !ok || ev.RemindAt == nil {
		return false, err
	}
	n, err := p.store.CancelEventReminder(ctx, scopeID, eventID)
	return n > 0, err
}

func (p *Planner) ListPendingReminders(ctx context.Context, scopeID int64, limit int) ([]storage.Event, error) {
	return p.store.ListPendingReminders(ctx, scopeID, p.clock.Now(), pageSize(limit, 10, 20))
}
