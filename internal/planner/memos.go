package planner

import (
	"context"
	"errors"
	"strings"
	"time"

	"eventbot/internal/storage"
)

type MemoInput struct {
	ScopeID int64
	OwnerID int64
	Kind    string
	Title   string
	Note    string
	Due     string
	// Remind defaults to Due when empty.
	Remind string
}

func (p *Planner) AddMemo(ctx context.Context, in MemoInput) (storage.MemoItem, error) {
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	title := strings.TrimSpace(in.Title)
	if kind == "" || title == "" {
		return storage.MemoItem{}, invalid("type and title are required")
	}
	note := strings.TrimSpace(in.Note)
	if err := errors.Join(
		tooLong("type", kind, maxMemoKindRunes),
		tooLong("title", title, maxMemoTitleRunes),
		tooLong("note", note, maxMemoNoteRunes),
	); err != nil {
		return storage.MemoItem{}, err
	}
	due, remind, err := memoTimes(in.Due, in.Remind)
	if err != nil {
		return storage.MemoItem{}, err
	}
	return p.store.CreateMemo(ctx, storage.NewMemo{
		ScopeID:  in.ScopeID,
		OwnerID:  in.OwnerID,
		Kind:     kind,
		Title:    title,
		Note:     note,
		DueAt:    due,
		RemindAt: remind,
	})
}

func memoTimes(dueIn, remindIn string) (due, remind *time.Time, err error) {
	if due, err = ParseMemoTime(dueIn); err != nil {
		return nil, nil, err
	}
	if remind, err = ParseMemoTime(remindIn); err != nil {
		return nil, nil, err
	}
	if remind == nil && due != nil {
		r := *due
		remind = &r
	}
	return due, remind, nil
}

// ListMemos lists the owner's memos in one status; an empty status means open.
func (p *Planner) ListMemos(ctx context.Context, scopeID, ownerID int64, status string, limit int) ([]storage.MemoItem, error) {
	st := storage.MemoStatus(strings.ToLower(strings.TrimSpace(status)))
	if st == "" {
		st = storage.MemoOpen
	}
	if !st.Valid() {
		return nil, invalid("status must be open, done or canceled")
	}
	return p.store.ListMemos(ctx, scopeID, ownerID, st, pageSize(limit, 10, 20), 0)
}

func (p *Planner) ShowMemo(ctx context.Context, scopeID, ownerID, memoID int64) (storage.MemoItem, bool, error) {
	return p.store.GetMemo(ctx, scopeID, ownerID, memoID)
}

// CompleteMemo marks an open memo done. duration is optional; reflection is
// free text. It reports false when the memo is missing or not open.
func (p *Planner) CompleteMemo(ctx context.Context, scopeID, ownerID, memoID int64, duration *time.Duration, reflection string) (bool, error) {
	if duration != nil && *duration < 0 {
		return false, invalid("duration must be >= 0")
	}
	n, err := p.store.MarkMemoDone(ctx, scopeID, ownerID, memoID, storage.MemoCompletion{
		DoneAt:     p.clock.Now(),
		Duration:   duration,
		Reflection: strings.TrimSpace(reflection),
	})
	return n > 0, err
}

// RescheduleMemo replaces due and remind times of an open memo.
func (p *Planner) RescheduleMemo(ctx context.Context, scopeID, ownerID, memoID int64, due, remind string) (bool, error) {
	dueAt, remindAt, err := memoTimes(due, remind)
	if err != nil {
		return false, err
	}
	n, err := p.store.RescheduleMemo(ctx, scopeID, ownerID, memoID, dueAt, remindAt)
	return n > 0, err
}

func (p *Planner) CancelMemo(ctx context.Context, scopeID, ownerID, memoID int64) (bool, error) {
	n, err := p.store.CancelMemo(ctx, scopeID, ownerID, memoID)
	return n > 0, err
}
