package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (s *SQLite) ScopeDashboard(ctx context.Context, scopeID int64, now time.Time) (ScopeDashboard, error) {
	db, err := s.conn()
	if err != nil {
		return ScopeDashboard{}, err
	}
	ts := tsArg(now)

	var d ScopeDashboard
	err = db.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM events WHERE scope_id = ?),
			(SELECT COUNT(1) FROM events WHERE scope_id = ? AND expires_at > ?),
			(SELECT COUNT(1) FROM events WHERE scope_id = ? AND remind_at IS NOT NULL AND reminded = 0 AND expires_at > ?),
			(SELECT COUNT(1) FROM memo_items WHERE scope_id = ? AND status = 'open'),
			(SELECT COUNT(DISTINCT owner_id) FROM memo_items WHERE scope_id = ? AND status = 'open'),
			(SELECT COUNT(1) FROM memo_items WHERE scope_id = ? AND status = 'open' AND due_at IS NOT NULL AND due_at <= ?),
			(SELECT COUNT(1) FROM multimedia_items WHERE scope_id = ?),
			(SELECT COUNT(1) FROM multimedia_views WHERE scope_id = ?)`,
		scopeID,
		scopeID, ts,
		scopeID, ts,
		scopeID,
		scopeID,
		scopeID, ts,
		scopeID,
		scopeID,
	).Scan(
		&d.EventsTotal, &d.EventsActive, &d.RemindersPending,
		&d.MemoOpen, &d.MemoActiveUsers, &d.MemoDueOrOverdue,
		&d.MediaItems, &d.MediaViews,
	)
	if err != nil {
		return ScopeDashboard{}, fmt.Errorf("scope dashboard: %w", err)
	}
	return d, nil
}

func (s *SQLite) UserDashboard(ctx context.Context, scopeID, userID int64, now time.Time) (UserDashboard, error) {
	db, err := s.conn()
	if err != nil {
		return UserDashboard{}, err
	}
	ts := tsArg(now)

	var (
		d   UserDashboard
		avg sql.NullFloat64
	)
	err = db.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM events WHERE scope_id = ? AND created_by = ?),
			(SELECT COUNT(1) FROM events WHERE scope_id = ? AND created_by = ? AND expires_at > ?),
			(SELECT COUNT(1) FROM events WHERE scope_id = ? AND created_by = ? AND remind_at IS NOT NULL AND reminded = 0 AND expires_at > ?),
			(SELECT COUNT(1) FROM memo_items WHERE scope_id = ? AND owner_id = ? AND status = 'open'),
			(SELECT COUNT(1) FROM memo_items WHERE scope_id = ? AND owner_id = ? AND status = 'open' AND due_at IS NOT NULL AND due_at < ?),
			(SELECT COUNT(1) FROM memo_items WHERE scope_id = ? AND owner_id = ? AND status = 'done'),
			(SELECT COUNT(1) FROM memo_items WHERE scope_id = ? AND owner_id = ? AND status = 'canceled'),
			(SELECT AVG(duration_sec) FROM memo_items WHERE scope_id = ? AND owner_id = ? AND status = 'done' AND duration_sec IS NOT NULL),
			(SELECT COUNT(1) FROM multimedia_views WHERE scope_id = ? AND viewer_id = ?),
			(SELECT COUNT(1) FROM multimedia_views WHERE scope_id = ? AND viewer_id = ? AND watched = 1),
			(SELECT COUNT(1) FROM multimedia_views WHERE scope_id = ? AND viewer_id = ? AND watched = 0),
			(SELECT COUNT(1) FROM multimedia_views WHERE scope_id = ? AND viewer_id = ? AND review IS NOT NULL AND review <> '' AND review <> '-')`,
		scopeID, userID,
		scopeID, userID, ts,
		scopeID, userID, ts,
		scopeID, userID,
		scopeID, userID, ts,
		scopeID, userID,
		scopeID, userID,
		scopeID, userID,
		scopeID, userID,
		scopeID, userID,
		scopeID, userID,
		scopeID, userID,
	).Scan(
		&d.EventsCreated, &d.EventsActiveFuture, &d.RemindersPending,
		&d.MemoOpen, &d.MemoOverdue, &d.MemoDone, &d.MemoCanceled, &avg,
		&d.MediaRecords, &d.MediaWatched, &d.MediaUnwatched, &d.MediaReviews,
	)
	if err != nil {
		return UserDashboard{}, fmt.Errorf("user dashboard: %w", err)
	}
	if avg.Valid {
		dur := time.Duration(avg.Float64 * float64(time.Second)).Round(time.Second)
		d.MemoAvgDuration = &dur
	}
	return d, nil
}
