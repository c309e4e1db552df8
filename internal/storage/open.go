package storage

import (
	"context"
	"time"
)

// Store is the complete persistence API. SQLite implements all of it;
// optional behavior is switched by configuration, never probed.
type Store interface {
	EventStore
	MemoStore
	CategoryStore
	MultimediaStore
	ResourceRegistry

	ScopeDashboard(ctx context.Context, scopeID int64, now time.Time) (ScopeDashboard, error)
	UserDashboard(ctx context.Context, scopeID, userID int64, now time.Time) (UserDashboard, error)

	Ping(ctx context.Context) error
	Close() error
}

type EventStore interface {
	CreateEvent(ctx context.Context, in NewEvent) (Event, error)
	GetEvent(ctx context.Context, scopeID, eventID int64) (Event, bool, error)
	ListActiveEvents(ctx context.Context, scopeID, channelID int64, now time.Time, limit int) ([]Event, error)
	ListEventsForDay(ctx context.Context, scopeID int64, dayStart, dayEnd, now time.Time) ([]Event, error)
	FetchExpiredEvents(ctx context.Context, now time.Time) ([]Event, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	SetEventReminder(ctx context.Context, scopeID, eventID int64, remindAt time.Time, inChannel bool) (int64, error)
	CancelEventReminder(ctx context.Context, scopeID, eventID int64) (int64, error)
	MarkEventReminded(ctx context.Context, eventID int64) (int64, error)
	FetchDueReminders(ctx context.Context, now time.Time, limit int) ([]Event, error)
	ListPendingReminders(ctx context.Context, scopeID int64, now time.Time, limit int) ([]Event, error)
	ClaimEventReminder(ctx context.Context, eventID int64, now time.Time) (bool, error)
	ReleaseEventReminder(ctx context.Context, eventID int64) (int64, error)
	RecoverEventClaims(ctx context.Context, cutoff time.Time) (int64, error)
}

type MemoStore interface {
	CreateMemo(ctx context.Context, in NewMemo) (MemoItem, error)
	GetMemo(ctx context.Context, scopeID, ownerID, memoID int64) (MemoItem, bool, error)
	ListMemos(ctx context.Context, scopeID, ownerID int64, status MemoStatus, limit, offset int) ([]MemoItem, error)
	MarkMemoDone(ctx context.Context, scopeID, ownerID, memoID int64, c MemoCompletion) (int64, error)
	CancelMemo(ctx context.Context, scopeID, ownerID, memoID int64) (int64, error)
	RescheduleMemo(ctx context.Context, scopeID, ownerID, memoID int64, dueAt, remindAt *time.Time) (int64, error)
	FetchDueMemoReminders(ctx context.Context, now time.Time, limit int) ([]MemoItem, error)
	MarkMemoReminded(ctx context.Context, memoID int64) (int64, error)
	ClaimMemoReminder(ctx context.Context, memoID int64, now time.Time) (bool, error)
	ReleaseMemoReminder(ctx context.Context, memoID int64) (int64, error)
	RecoverMemoClaims(ctx context.Context, cutoff time.Time) (int64, error)
}

type CategoryStore interface {
	AddCategoryOption(ctx context.Context, scopeID int64, name string) (bool, error)
	RemoveCategoryOption(ctx context.Context, scopeID int64, name string) (int64, error)
	ListCategoryOptions(ctx context.Context, scopeID int64, limit int) ([]CategoryOption, error)
	HasCategoryOption(ctx context.Context, scopeID int64, name string) (bool, error)
	PurgeCategoryOptions(ctx context.Context, scopeID int64) (int64, error)
}

type MultimediaStore interface {
	CreateOrGetMediaItem(ctx context.Context, scopeID, createdBy int64, mediaType, title string) (MultimediaItem, bool, error)
	GetMediaItem(ctx context.Context, scopeID, itemID int64) (MultimediaItem, bool, error)
	ListMediaItems(ctx context.Context, scopeID int64, mediaType string, limit, offset int) ([]MultimediaItem, error)
	UpdateMediaItem(ctx context.Context, scopeID, itemID int64, mediaType, title string) (int64, error)
	DeleteMediaItem(ctx context.Context, scopeID, itemID int64) (views, items int64, err error)
	UpsertMediaView(ctx context.Context, v MultimediaView) error
	DeleteMediaView(ctx context.Context, scopeID, itemID, viewerID int64) (int64, error)
	ListViewerMedia(ctx context.Context, scopeID, viewerID int64, watched *bool, limit, offset int) ([]MultimediaEntry, error)
	ListItemViews(ctx context.Context, scopeID, itemID int64, limit, offset int) ([]MultimediaView, error)
}

// ResourceRegistry remembers which thread a named side-effect channel maps to.
type ResourceRegistry interface {
	RecordChannelResource(ctx context.Context, scopeID int64, name string, threadID int64) (bool, error)
	LookupChannelResource(ctx context.Context, scopeID int64, name string) (ChannelResource, bool, error)
	ForgetChannelResource(ctx context.Context, scopeID int64, name string) (int64, error)
}

var _ Store = (*SQLite)(nil)
