package storage

import (
	"context"
	"time"
)

// SetEventReminder (re)arms the reminder. A previously sent reminder becomes
// pending again.
func (s *SQLite) SetEventReminder(ctx context.Context, scopeID, eventID int64, remindAt time.Time, inChannel bool) (int64, error) {
	return s.exec(ctx, "set event reminder", `
		UPDATE events
		SET remind_at = ?, reminded = 0, remind_in_channel = ?, remind_claimed_at = NULL
		WHERE scope_id = ? AND id = ?`,
		tsArg(remindAt), boolInt(inChannel), scopeID, eventID,
	)
}

func (s *SQLite) CancelEventReminder(ctx context.Context, scopeID, eventID int64) (int64, error) {
	return s.exec(ctx, "cancel event reminder", `
		UPDATE events
		SET remind_at = NULL, reminded = 0, remind_claimed_at = NULL
		WHERE scope_id = ? AND id = ?`,
		scopeID, eventID,
	)
}

// MarkEventReminded flips the sent flag and settles any claim on it. It
// affects zero rows only when the event no longer exists; it does not look at
// the current flag.
func (s *SQLite) MarkEventReminded(ctx context.Context, eventID int64) (int64, error) {
	return s.exec(ctx, "mark event reminded",
		`UPDATE events SET reminded = 1, remind_claimed_at = NULL WHERE id = ?`, eventID)
}

// FetchDueReminders returns pending reminders due at or before now on events
// that have not expired, oldest due first.
func (s *SQLite) FetchDueReminders(ctx context.Context, now time.Time, limit int) ([]Event, error) {
	ts := tsArg(now)
	return s.selectEvents(ctx, "fetch due reminders", `
		SELECT `+eventColumns+`
		FROM events
		WHERE remind_at IS NOT NULL
		  AND reminded = 0
		  AND remind_at <= ?
		  AND expires_at > ?
		ORDER BY remind_at ASC, id ASC
		LIMIT ?`,
		ts, ts, clampLimit(limit, 50, 500),
	)
}

// ListPendingReminders lists the scope's reminders that have not fired and
// are scheduled at or after now.
func (s *SQLite) ListPendingReminders(ctx context.Context, scopeID int64, now time.Time, limit int) ([]Event, error) {
	return s.selectEvents(ctx, "list pending reminders", `
		SELECT `+eventColumns+`
		FROM events
		WHERE scope_id = ?
		  AND remind_at IS NOT NULL
		  AND reminded = 0
		  AND remind_at >= ?
		  AND expires_at > ?
		ORDER BY remind_at ASC, id ASC
		LIMIT ?`,
		scopeID, tsArg(now), tsArg(now), clampLimit(limit, 10, 100),
	)
}

// ClaimEventReminder atomically moves a pending reminder to sent and stamps
// the claim with now. Only one caller can win the claim for a given arming of
// the reminder. A claim is settled by MarkEventReminded or
// ReleaseEventReminder; RecoverEventClaims returns unsettled ones to pending.
func (s *SQLite) ClaimEventReminder(ctx context.Context, eventID int64, now time.Time) (bool, error) {
	n, err := s.exec(ctx, "claim event reminder", `
		UPDATE events SET reminded = 1, remind_claimed_at = ?
		WHERE id = ? AND reminded = 0 AND remind_at IS NOT NULL`,
		tsArg(now), eventID,
	)
	return n > 0, err
}

// ReleaseEventReminder returns a claimed reminder to pending.
func (s *SQLite) ReleaseEventReminder(ctx context.Context, eventID int64) (int64, error) {
	return s.exec(ctx, "release event reminder", `
		UPDATE events SET reminded = 0, remind_claimed_at = NULL
		WHERE id = ? AND reminded = 1 AND remind_at IS NOT NULL`,
		eventID,
	)
}

// RecoverEventClaims returns claims taken at or before cutoff and never
// settled to pending. Such claims belong to a dispatcher that stopped between
// claiming and sending.
func (s *SQLite) RecoverEventClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.exec(ctx, "recover event claims", `
		UPDATE events SET reminded = 0, remind_claimed_at = NULL
		WHERE reminded = 1
		  AND remind_claimed_at IS NOT NULL
		  AND remind_claimed_at <= ?`,
		tsArg(cutoff),
	)
}
