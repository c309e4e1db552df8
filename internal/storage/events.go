package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const eventColumns = `id, scope_id, channel_id, title, start_at, end_at, description, created_by,
	expires_at, channel_name, member_limit, remind_at, reminded, remind_in_channel`

type eventRow struct {
	ID              int64          `db:"id"`
	ScopeID         int64          `db:"scope_id"`
	ChannelID       int64          `db:"channel_id"`
	Title           string         `db:"title"`
	StartAt         string         `db:"start_at"`
	EndAt           sql.NullString `db:"end_at"`
	Description     sql.NullString `db:"description"`
	CreatedBy       int64          `db:"created_by"`
	ExpiresAt       string         `db:"expires_at"`
	ChannelName     sql.NullString `db:"channel_name"`
	MemberLimit     sql.NullInt64  `db:"member_limit"`
	RemindAt        sql.NullString `db:"remind_at"`
	Reminded        int            `db:"reminded"`
	RemindInChannel int            `db:"remind_in_channel"`
}

func (r eventRow) toEvent() (Event, error) {
	ev := Event{
		ID:              r.ID,
		ScopeID:         r.ScopeID,
		ChannelID:       r.ChannelID,
		Title:           r.Title,
		Description:     r.Description.String,
		CreatedBy:       r.CreatedBy,
		ChannelName:     r.ChannelName.String,
		Reminded:        r.Reminded != 0,
		RemindInChannel: r.RemindInChannel != 0,
	}
	var err error
	if ev.StartAt, err = scanTS(r.StartAt); err != nil {
		return Event{}, err
	}
	if ev.ExpiresAt, err = scanTS(r.ExpiresAt); err != nil {
		return Event{}, err
	}
	if ev.EndAt, err = scanTSPtr(r.EndAt); err != nil {
		return Event{}, err
	}
	if ev.RemindAt, err = scanTSPtr(r.RemindAt); err != nil {
		return Event{}, err
	}
	if r.MemberLimit.Valid {
		n := int(r.MemberLimit.Int64)
		ev.MemberLimit = &n
	}
	return ev, nil
}

func toEvents(rows []eventRow) ([]Event, error) {
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toEvent()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", r.ID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *SQLite) selectEvents(ctx context.Context, op, query string, args ...any) ([]Event, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var rows []eventRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return toEvents(rows)
}

// CreateEvent inserts one event and returns it with its assigned id.
// The returned snapshot carries the normalized (UTC, whole-second) times.
func (s *SQLite) CreateEvent(ctx context.Context, in NewEvent) (Event, error) {
	db, err := s.conn()
	if err != nil {
		return Event{}, err
	}
	var limit any
	if in.MemberLimit != nil {
		limit = *in.MemberLimit
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO events (scope_id, channel_id, title, start_at, end_at, description, created_by,
			expires_at, channel_name, member_limit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ScopeID, in.ChannelID, in.Title, tsArg(in.StartAt), tsArgPtr(in.EndAt), nullStr(in.Description),
		in.CreatedBy, tsArg(in.ExpiresAt), nullStr(in.ChannelName), limit, s.stamp(),
	)
	if err != nil {
		return Event{}, fmt.Errorf("create event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Event{}, fmt.Errorf("create event: last insert id: %w", err)
	}

	ev := Event{
		ID:          id,
		ScopeID:     in.ScopeID,
		ChannelID:   in.ChannelID,
		Title:       in.Title,
		StartAt:     normalize(in.StartAt),
		EndAt:       normalizePtr(in.EndAt),
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		ExpiresAt:   normalize(in.ExpiresAt),
		ChannelName: in.ChannelName,
	}
	if in.MemberLimit != nil {
		n := *in.MemberLimit
		ev.MemberLimit = &n
	}
	return ev, nil
}

func (s *SQLite) GetEvent(ctx context.Context, scopeID, eventID int64) (Event, bool, error) {
	db, err := s.conn()
	if err != nil {
		return Event{}, false, err
	}
	var r eventRow
	err = db.GetContext(ctx, &r, `SELECT `+eventColumns+` FROM events WHERE scope_id = ? AND id = ?`, scopeID, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("get event: %w", err)
	}
	ev, err := r.toEvent()
	if err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}

// ListActiveEvents returns events in one channel that have not expired yet,
// earliest start first.
func (s *SQLite) ListActiveEvents(ctx context.Context, scopeID, channelID int64, now time.Time, limit int) ([]Event, error) {
	return s.selectEvents(ctx, "list active events", `
		SELECT `+eventColumns+`
		FROM events
		WHERE scope_id = ? AND channel_id = ? AND expires_at > ?
		ORDER BY start_at ASC, id ASC
		LIMIT ?`,
		scopeID, channelID, tsArg(now), clampLimit(limit, 10, 500),
	)
}

// ListEventsForDay returns the scope's events starting in [dayStart, dayEnd)
// that are still active at now.
func (s *SQLite) ListEventsForDay(ctx context.Context, scopeID int64, dayStart, dayEnd, now time.Time) ([]Event, error) {
	return s.selectEvents(ctx, "list events for day", `
		SELECT `+eventColumns+`
		FROM events
		WHERE scope_id = ? AND start_at >= ? AND start_at < ? AND expires_at > ?
		ORDER BY start_at ASC, id ASC`,
		scopeID, tsArg(dayStart), tsArg(dayEnd), tsArg(now),
	)
}

// FetchExpiredEvents returns every event, across scopes, with expires_at <= now.
func (s *SQLite) FetchExpiredEvents(ctx context.Context, now time.Time) ([]Event, error) {
	return s.selectEvents(ctx, "fetch expired events", `
		SELECT `+eventColumns+`
		FROM events
		WHERE expires_at <= ?
		ORDER BY expires_at ASC, id ASC`,
		tsArg(now),
	)
}

func (s *SQLite) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.exec(ctx, "delete expired events", `DELETE FROM events WHERE expires_at <= ?`, tsArg(now))
}

func normalize(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

func normalizePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := normalize(*t)
	return &n
}
