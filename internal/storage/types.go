package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// ErrChannelNameTaken is returned when a side-effect channel name is already
// registered in the scope. Names identify the channel at reap time, so each
// one belongs to at most one live event.
var ErrChannelNameTaken = errors.New("channel name already in use")

// Config configures storage.
//
// Path is a SQLite database file; ":memory:" opens a private in-memory
// database (tests).
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Event is a scheduled event. Optional fields are nil/empty when unset.
type Event struct {
	ID              int64
	ScopeID         int64
	ChannelID       int64
	Title           string
	StartAt         time.Time
	EndAt           *time.Time
	Description     string
	CreatedBy       int64
	ExpiresAt       time.Time
	ChannelName     string
	MemberLimit     *int
	RemindAt        *time.Time
	Reminded        bool
	RemindInChannel bool
}

// ReminderPending reports whether the event still has a reminder to send.
func (e Event) ReminderPending() bool { return e.RemindAt != nil && !e.Reminded }

// NewEvent carries the caller-supplied fields of an event.
type NewEvent struct {
	ScopeID     int64
	ChannelID   int64
	Title       string
	StartAt     time.Time
	EndAt       *time.Time
	Description string
	CreatedBy   int64
	ExpiresAt   time.Time
	ChannelName string
	MemberLimit *int
}

type MemoStatus string

const (
	MemoOpen     MemoStatus = "open"
	MemoDone     MemoStatus = "done"
	MemoCanceled MemoStatus = "canceled"
)

func (s MemoStatus) Valid() bool {
	switch s {
	case MemoOpen, MemoDone, MemoCanceled:
		return true
	}
	return false
}

// MemoItem is a personal to-do item owned by one user inside a scope.
type MemoItem struct {
	ID         int64
	ScopeID    int64
	OwnerID    int64
	Kind       string
	Title      string
	Note       string
	Status     MemoStatus
	DueAt      *time.Time
	RemindAt   *time.Time
	Reminded   bool
	DoneAt     *time.Time
	Duration   *time.Duration
	Reflection string
	CreatedAt  time.Time
}

type NewMemo struct {
	ScopeID  int64
	OwnerID  int64
	Kind     string
	Title    string
	Note     string
	DueAt    *time.Time
	RemindAt *time.Time
}

// MemoCompletion stamps a memo as done.
type MemoCompletion struct {
	DoneAt     time.Time
	Duration   *time.Duration
	Reflection string
}

type CategoryOption struct {
	ScopeID   int64
	Name      string
	CreatedAt time.Time
}

type MultimediaItem struct {
	ID        int64
	ScopeID   int64
	MediaType string
	Title     string
	CreatedBy int64
	CreatedAt time.Time
}

type MultimediaView struct {
	ID        int64
	ScopeID   int64
	ItemID    int64
	ViewerID  int64
	Watched   bool
	WatchedAt *time.Time
	Review    string
	CreatedAt time.Time
}

// MultimediaEntry is a catalog item joined with one viewer's state.
type MultimediaEntry struct {
	Item MultimediaItem
	View MultimediaView
}

// ChannelResource maps a side-effect channel name to its thread id.
type ChannelResource struct {
	ScopeID   int64
	Name      string
	ThreadID  int64
	CreatedAt time.Time
}

// ScopeDashboard aggregates counters for one scope.
type ScopeDashboard struct {
	EventsTotal      int64
	EventsActive     int64
	RemindersPending int64
	MemoOpen         int64
	MemoActiveUsers  int64
	MemoDueOrOverdue int64
	MediaItems       int64
	MediaViews       int64
}

// UserDashboard aggregates counters for one user inside a scope.
type UserDashboard struct {
	EventsCreated      int64
	EventsActiveFuture int64
	RemindersPending   int64
	MemoOpen           int64
	MemoOverdue        int64
	MemoDone           int64
	MemoCanceled       int64
	MemoAvgDuration    *time.Duration
	MediaRecords       int64
	MediaWatched       int64
	MediaUnwatched     int64
	MediaReviews       int64
}
