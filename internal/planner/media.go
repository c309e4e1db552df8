package planner

import (
	"context"
	"slices"
	"strings"

	"eventbot/internal/storage"
)

// MediaTypes are the accepted catalog types.
var MediaTypes = []string{"music", "movie", "tv", "anime", "other"}

const noReview = "-"

func mediaType(s string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(MediaTypes, t) {
		return "", invalid("media type must be one of %s", strings.Join(MediaTypes, ", "))
	}
	return t, nil
}

// AddMedia returns the catalog item for (type, title), creating it when
// missing. created reports whether it is new.
func (p *Planner) AddMedia(ctx context.Context, scopeID, userID int64, kind, title string) (storage.MultimediaItem, bool, error) {
	t, err := mediaType(kind)
	if err != nil {
		return storage.MultimediaItem{}, false, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return storage.MultimediaItem{}, false, invalid("title is required")
	}
	return p.store.CreateOrGetMediaItem(ctx, scopeID, userID, t, title)
}

func (p *Planner) ListMedia(ctx context.Context, scopeID int64, kind string, limit, offset int) ([]storage.MultimediaItem, error) {
	t := ""
	if strings.TrimSpace(kind) != "" {
		var err error
		if t, err = mediaType(kind); err != nil {
			return nil, err
		}
	}
	return p.store.ListMediaItems(ctx, scopeID, t, pageSize(limit, 20, 50), max(0, offset))
}

// WatchMedia records the viewer's state for an item. An empty review is
// stored as "-". It reports false when the item does not exist.
func (p *Planner) WatchMedia(ctx context.Context, scopeID, itemID, viewerID int64, watched bool, review string) (storage.MultimediaView, bool, error) {
	item, ok, err := p.store.GetMediaItem(ctx, scopeID, itemID)
	if err != nil || !ok {
		return storage.MultimediaView{}, false, err
	}
	v := storage.MultimediaView{
		ScopeID:  scopeID,
		ItemID:   item.ID,
		ViewerID: viewerID,
		Watched:  watched,
		Review:   noReview,
	}
	if watched {
		now := p.clock.Now()
		v.WatchedAt = &now
		if r := strings.TrimSpace(review); r != "" {
			v.Review = r
		}
	}
	if err := p.store.UpsertMediaView(ctx, v); err != nil {
		return storage.MultimediaView{}, false, err
	}
	return v, true, nil
}

func (p *Planner) UnwatchMedia(ctx context.Context, scopeID, itemID, viewerID int64) (bool, error) {
	n, err := p.store.DeleteMediaView(ctx, scopeID, itemID, viewerID)
	return n > 0, err
}

// MyMedia lists the viewer's records; watched filters when non-nil.
func (p *Planner) MyMedia(ctx context.Context, scopeID, viewerID int64, watched *bool, limit, offset int) ([]storage.MultimediaEntry, error) {
	return p.store.ListViewerMedia(ctx, scopeID, viewerID, watched, pageSize(limit, 20, 50), max(0, offset))
}

// MediaStats returns the item and its viewers.
func (p *Planner) MediaStats(ctx context.Context, scopeID, itemID int64, limit, offset int) (storage.MultimediaItem, []storage.MultimediaView, bool, error) {
	item, ok, err := p.store.GetMediaItem(ctx, scopeID, itemID)
	if err != nil || !ok {
		return storage.MultimediaItem{}, nil, false, err
	}
	views, err := p.store.ListItemViews(ctx, scopeID, itemID, pageSize(limit, 20, 50), max(0, offset))
	if err != nil {
		return storage.MultimediaItem{}, nil, false, err
	}
	return item, views, true, nil
}

// UpdateMedia changes type and/or title; empty arguments keep the current
// value.
func (p *Planner) UpdateMedia(ctx context.Context, scopeID, itemID int64, kind, title string) (bool, error) {
	t := ""
	if strings.TrimSpace(kind) != "" {
		var err error
		if t, err = mediaType(kind); err != nil {
			return false, err
		}
	}
	title = strings.TrimSpace(title)
	if t == "" && title == "" {
		return false, invalid("nothing to update")
	}
	n, err := p.store.UpdateMediaItem(ctx, scopeID, itemID, t, title)
	return n > 0, err
}

// DeleteMedia removes the item and every view of it.
func (p *Planner) DeleteMedia(ctx context.Context, scopeID, itemID int64) (views int64, found bool, err error) {
	views, items, err := p.store.DeleteMediaItem(ctx, scopeID, itemID)
	return views, items > 0, err
}
