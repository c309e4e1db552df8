package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const memoColumns = `id, scope_id, owner_id, kind, title, note, status, due_at, remind_at, reminded,
	done_at, duration_sec, reflection, created_at`

type memoRow struct {
	ID          int64          `db:"id"`
	ScopeID     int64          `db:"scope_id"`
	OwnerID     int64          `db:"owner_id"`
	Kind        string         `db:"kind"`
	Title       string         `db:"title"`
	Note        sql.NullString `db:"note"`
	Status      string         `db:"status"`
	DueAt       sql.NullString `db:"due_at"`
	RemindAt    sql.NullString `db:"remind_at"`
	Reminded    int            `db:"reminded"`
	DoneAt      sql.NullString `db:"done_at"`
	DurationSec sql.NullInt64  `db:"duration_sec"`
	Reflection  sql.NullString `db:"reflection"`
	CreatedAt   string         `db:"created_at"`
}

func (r memoRow) toMemo() (MemoItem, error) {
	m := MemoItem{
		ID:         r.ID,
		ScopeID:    r.ScopeID,
		OwnerID:    r.OwnerID,
		Kind:       r.Kind,
		Title:      r.Title,
		Note:       r.Note.String,
		Status:     MemoStatus(r.Status),
		Reminded:   r.Reminded != 0,
		Reflection: r.Reflection.String,
	}
	var err error
	if m.DueAt, err = scanTSPtr(r.DueAt); err != nil {
		return MemoItem{}, err
	}
	if m.RemindAt, err = scanTSPtr(r.RemindAt); err != nil {
		return MemoItem{}, err
	}
	if m.DoneAt, err = scanTSPtr(r.DoneAt); err != nil {
		return MemoItem{}, err
	}
	if m.CreatedAt, err = scanTS(r.CreatedAt); err != nil {
		return MemoItem{}, err
	}
	if r.DurationSec.Valid {
		d := time.Duration(r.DurationSec.Int64) * time.Second
		m.Duration = &d
	}
	return m, nil
}

func (s *SQLite) selectMemos(ctx context.Context, op, query string, args ...any) ([]MemoItem, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var rows []memoRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]MemoItem, 0, len(rows))
	for _, r := range rows {
		m, err := r.toMemo()
		if err != nil {
			return nil, fmt.Errorf("memo %d: %w", r.ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *SQLite) CreateMemo(ctx context.Context, in NewMemo) (MemoItem, error) {
	db, err := s.conn()
	if err != nil {
		return MemoItem{}, err
	}
	now := s.now()
	stamp := FormatTimestamp(now)
	res, err := db.ExecContext(ctx, `
		INSERT INTO memo_items (scope_id, owner_id, kind, title, note, status, due_at, remind_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'open', ?, ?, ?, ?)`,
		in.ScopeID, in.OwnerID, in.Kind, in.Title, nullStr(in.Note),
		tsArgPtr(in.DueAt), tsArgPtr(in.RemindAt), stamp, stamp,
	)
	if err != nil {
		return MemoItem{}, fmt.Errorf("create memo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return MemoItem{}, fmt.Errorf("create memo: last insert id: %w", err)
	}
	return MemoItem{
		ID:        id,
		ScopeID:   in.ScopeID,
		OwnerID:   in.OwnerID,
		Kind:      in.Kind,
		Title:     in.Title,
		Note:      in.Note,
		Status:    MemoOpen,
		DueAt:     normalizePtr(in.DueAt),
		RemindAt:  normalizePtr(in.RemindAt),
		CreatedAt: normalize(now),
	}, nil
}

func (s *SQLite) GetMemo(ctx context.Context, scopeID, ownerID, memoID int64) (MemoItem, bool, error) {
	db, err := s.conn()
	if err != nil {
		return MemoItem{}, false, err
	}
	var r memoRow
	err = db.GetContext(ctx, &r, `SELECT `+memoColumns+` FROM memo_items
		WHERE scope_id = ? AND owner_id = ? AND id = ?`, scopeID, ownerID, memoID)
	if errors.Is(err, sql.ErrNoRows) {
		return MemoItem{}, false, nil
	}
	if err != nil {
		return MemoItem{}, false, fmt.Errorf("get memo: %w", err)
	}
	m, err := r.toMemo()
	if err != nil {
		return MemoItem{}, false, err
	}
	return m, true, nil
}

// ListMemos lists one owner's memos with the given status. Items with a due
// time come first, soonest due first; the rest newest first.
func (s *SQLite) ListMemos(ctx context.Context, scopeID, ownerID int64, status MemoStatus, limit, offset int) ([]MemoItem, error) {
	if offset < 0 {
		offset = 0
	}
	return s.selectMemos(ctx, "list memos", `
		SELECT `+memoColumns+`
		FROM memo_items
		WHERE scope_id = ? AND owner_id = ? AND status = ?
		ORDER BY (due_at IS NULL) ASC, due_at ASC, id DESC
		LIMIT ? OFFSET ?`,
		scopeID, ownerID, string(status), clampLimit(limit, 10, 100), offset,
	)
}

// MarkMemoDone moves an open memo to done. Zero rows means missing or not open.
func (s *SQLite) MarkMemoDone(ctx context.Context, scopeID, ownerID, memoID int64, c MemoCompletion) (int64, error) {
	var dur any
	if c.Duration != nil {
		dur = int64(c.Duration.Round(time.Second) / time.Second)
	}
	return s.exec(ctx, "mark memo done", `
		UPDATE memo_items
		SET status = 'done', done_at = ?, duration_sec = ?, reflection = ?, updated_at = ?
		WHERE scope_id = ? AND owner_id = ? AND id = ? AND status = 'open'`,
		tsArg(c.DoneAt), dur, nullStr(c.Reflection), s.stamp(), scopeID, ownerID, memoID,
	)
}

// CancelMemo moves an open memo to canceled. Zero rows means missing or not open.
func (s *SQLite) CancelMemo(ctx context.Context, scopeID, ownerID, memoID int64) (int64, error) {
	return s.exec(ctx, "cancel memo", `
		UPDATE memo_items
		SET status = 'canceled', updated_at = ?
		WHERE scope_id = ? AND owner_id = ? AND id = ? AND status = 'open'`,
		s.stamp(), scopeID, ownerID, memoID,
	)
}

// RescheduleMemo replaces due/remind times of an open memo and re-arms its
// reminder. Zero rows means missing or not open.
func (s *SQLite) RescheduleMemo(ctx context.Context, scopeID, ownerID, memoID int64, dueAt, remindAt *time.Time) (int64, error) {
	return s.exec(ctx, "reschedule memo", `
		UPDATE memo_items
		SET due_at = ?, remind_at = ?, reminded = 0, claimed_at = NULL, updated_at = ?
		WHERE scope_id = ? AND owner_id = ? AND id = ? AND status = 'open'`,
		tsArgPtr(dueAt), tsArgPtr(remindAt), s.stamp(), scopeID, ownerID, memoID,
	)
}

// FetchDueMemoReminders returns open memos whose reminder is due, oldest first.
func (s *SQLite) FetchDueMemoReminders(ctx context.Context, now time.Time, limit int) ([]MemoItem, error) {
	return s.selectMemos(ctx, "fetch due memo reminders", `
		SELECT `+memoColumns+`
		FROM memo_items
		WHERE status = 'open'
		  AND remind_at IS NOT NULL
		  AND reminded = 0
		  AND remind_at <= ?
		ORDER BY remind_at ASC, id ASC
		LIMIT ?`,
		tsArg(now), clampLimit(limit, 25, 500),
	)
}

func (s *SQLite) MarkMemoReminded(ctx context.Context, memoID int64) (int64, error) {
	return s.exec(ctx, "mark memo reminded",
		`UPDATE memo_items SET reminded = 1, claimed_at = NULL WHERE id = ?`, memoID)
}

func (s *SQLite) ClaimMemoReminder(ctx context.Context, memoID int64, now time.Time) (bool, error) {
	n, err := s.exec(ctx, "claim memo reminder", `
		UPDATE memo_items SET reminded = 1, claimed_at = ?
		WHERE id = ? AND reminded = 0 AND status = 'open' AND remind_at IS NOT NULL`,
		tsArg(now), memoID,
	)
	return n > 0, err
}

func (s *SQLite) ReleaseMemoReminder(ctx context.Context, memoID int64) (int64, error) {
	return s.exec(ctx, "release memo reminder", `
		UPDATE memo_items SET reminded = 0, claimed_at = NULL
		WHERE id = ? AND reminded = 1 AND status = 'open'`,
		memoID,
	)
}

// RecoverMemoClaims returns open memos claimed at or before cutoff and never
// settled to pending.
func (s *SQLite) RecoverMemoClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.exec(ctx, "recover memo claims", `
		UPDATE memo_items SET reminded = 0, claimed_at = NULL
		WHERE status = 'open'
		  AND reminded = 1
		  AND claimed_at IS NOT NULL
		  AND claimed_at <= ?`,
		tsArg(cutoff),
	)
}
