package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const mediaItemColumns = `id, scope_id, media_type, title, created_by, created_at`

type mediaItemRow struct {
	ID        int64  `db:"id"`
	ScopeID   int64  `db:"scope_id"`
	MediaType string `db:"media_type"`
	Title     string `db:"title"`
	CreatedBy int64  `db:"created_by"`
	CreatedAt string `db:"created_at"`
}

func (r mediaItemRow) toItem() (MultimediaItem, error) {
	created, err := scanTS(r.CreatedAt)
	if err != nil {
		return MultimediaItem{}, err
	}
	return MultimediaItem{
		ID:        r.ID,
		ScopeID:   r.ScopeID,
		MediaType: r.MediaType,
		Title:     r.Title,
		CreatedBy: r.CreatedBy,
		CreatedAt: created,
	}, nil
}

const mediaViewColumns = `id, scope_id, item_id, viewer_id, watched, watched_at, review, created_at`

type mediaViewRow struct {
	ID        int64          `db:"id"`
	ScopeID   int64          `db:"scope_id"`
	ItemID    int64          `db:"item_id"`
	ViewerID  int64          `db:"viewer_id"`
	Watched   int            `db:"watched"`
	WatchedAt sql.NullString `db:"watched_at"`
	Review    sql.NullString `db:"review"`
	CreatedAt string         `db:"created_at"`
}

func (r mediaViewRow) toView() (MultimediaView, error) {
	v := MultimediaView{
		ID:       r.ID,
		ScopeID:  r.ScopeID,
		ItemID:   r.ItemID,
		ViewerID: r.ViewerID,
		Watched:  r.Watched != 0,
		Review:   r.Review.String,
	}
	var err error
	if v.WatchedAt, err = scanTSPtr(r.WatchedAt); err != nil {
		return MultimediaView{}, err
	}
	if v.CreatedAt, err = scanTS(r.CreatedAt); err != nil {
		return MultimediaView{}, err
	}
	return v, nil
}

func normalizeMediaKey(mediaType, title string) (string, string) {
	return strings.ToLower(strings.TrimSpace(mediaType)), strings.TrimSpace(title)
}

// CreateOrGetMediaItem returns the catalog item for (scope, type, title),
// creating it when missing. created reports whether this call inserted it.
func (s *SQLite) CreateOrGetMediaItem(ctx context.Context, scopeID, createdBy int64, mediaType, title string) (MultimediaItem, bool, error) {
	mediaType, title = normalizeMediaKey(mediaType, title)

	var (
		item    MultimediaItem
		created bool
	)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO multimedia_items (scope_id, media_type, title, created_by, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (scope_id, media_type, title) DO NOTHING`,
			scopeID, mediaType, title, createdBy, s.stamp(),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n > 0

		var r mediaItemRow
		if err := tx.GetContext(ctx, &r, `SELECT `+mediaItemColumns+` FROM multimedia_items
			WHERE scope_id = ? AND media_type = ? AND title = ?`, scopeID, mediaType, title); err != nil {
			return err
		}
		item, err = r.toItem()
		return err
	})
	if err != nil {
		return MultimediaItem{}, false, fmt.Errorf("create or get media item: %w", err)
	}
	return item, created, nil
}

func (s *SQLite) GetMediaItem(ctx context.Context, scopeID, itemID int64) (MultimediaItem, bool, error) {
	db, err := s.conn()
	if err != nil {
		return MultimediaItem{}, false, err
	}
	var r mediaItemRow
	err = db.GetContext(ctx, &r, `SELECT `+mediaItemColumns+` FROM multimedia_items
		WHERE scope_id = ? AND id = ?`, scopeID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return MultimediaItem{}, false, nil
	}
	if err != nil {
		return MultimediaItem{}, false, fmt.Errorf("get media item: %w", err)
	}
	it, err := r.toItem()
	if err != nil {
		return MultimediaItem{}, false, err
	}
	return it, true, nil
}

// ListMediaItems lists the scope's catalog, newest first. An empty mediaType
// lists every type.
func (s *SQLite) ListMediaItems(ctx context.Context, scopeID int64, mediaType string, limit, offset int) ([]MultimediaItem, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	where := "scope_id = ?"
	args := []any{scopeID}
	if mt := strings.ToLower(strings.TrimSpace(mediaType)); mt != "" {
		where += " AND media_type = ?"
		args = append(args, mt)
	}
	args = append(args, clampLimit(limit, 20, 200), max(0, offset))

	var rows []mediaItemRow
	if err := db.SelectContext(ctx, &rows, `SELECT `+mediaItemColumns+` FROM multimedia_items
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, args...); err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	out := make([]MultimediaItem, 0, len(rows))
	for _, r := range rows {
		it, err := r.toItem()
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// UpdateMediaItem changes type and/or title; empty arguments keep the
// current value.
func (s *SQLite) UpdateMediaItem(ctx context.Context, scopeID, itemID int64, mediaType, title string) (int64, error) {
	mediaType, title = normalizeMediaKey(mediaType, title)
	var (
		sets []string
		args []any
	)
	if mediaType != "" {
		sets = append(sets, "media_type = ?")
		args = append(args, mediaType)
	}
	if title != "" {
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	args = append(args, scopeID, itemID)
	return s.exec(ctx, "update media item",
		`UPDATE multimedia_items SET `+strings.Join(sets, ", ")+` WHERE scope_id = ? AND id = ?`, args...)
}

// DeleteMediaItem removes the item and all its views in one transaction.
func (s *SQLite) DeleteMediaItem(ctx context.Context, scopeID, itemID int64) (int64, int64, error) {
	var views, items int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM multimedia_views WHERE scope_id = ? AND item_id = ?`, scopeID, itemID)
		if err != nil {
			return err
		}
		if views, err = res.RowsAffected(); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM multimedia_items WHERE scope_id = ? AND id = ?`, scopeID, itemID)
		if err != nil {
			return err
		}
		items, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("delete media item: %w", err)
	}
	return views, items, nil
}

// UpsertMediaView writes the viewer's state for an item. created_at is kept
// from the first write.
func (s *SQLite) UpsertMediaView(ctx context.Context, v MultimediaView) error {
	_, err := s.exec(ctx, "upsert media view", `
		INSERT INTO multimedia_views (scope_id, item_id, viewer_id, watched, watched_at, review, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope_id, item_id, viewer_id) DO UPDATE SET
			watched = excluded.watched,
			watched_at = excluded.watched_at,
			review = excluded.review`,
		v.ScopeID, v.ItemID, v.ViewerID, boolInt(v.Watched), tsArgPtr(v.WatchedAt), nullStr(v.Review), s.stamp(),
	)
	return err
}

func (s *SQLite) DeleteMediaView(ctx context.Context, scopeID, itemID, viewerID int64) (int64, error) {
	return s.exec(ctx, "delete media view", `
		DELETE FROM multimedia_views WHERE scope_id = ? AND item_id = ? AND viewer_id = ?`,
		scopeID, itemID, viewerID)
}

type mediaEntryRow struct {
	mediaItemRow
	VID        int64          `db:"v_id"`
	VWatched   int            `db:"v_watched"`
	VWatchedAt sql.NullString `db:"v_watched_at"`
	VReview    sql.NullString `db:"v_review"`
	VCreatedAt string         `db:"v_created_at"`
}

// ListViewerMedia lists one viewer's records, most recently watched first.
// A nil watched filter returns both watched and unwatched rows.
func (s *SQLite) ListViewerMedia(ctx context.Context, scopeID, viewerID int64, watched *bool, limit, offset int) ([]MultimediaEntry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	where := "v.scope_id = ? AND v.viewer_id = ?"
	args := []any{scopeID, viewerID}
	if watched != nil {
		where += " AND v.watched = ?"
		args = append(args, boolInt(*watched))
	}
	args = append(args, clampLimit(limit, 20, 200), max(0, offset))

	var rows []mediaEntryRow
	if err := db.SelectContext(ctx, &rows, `
		SELECT i.id, i.scope_id, i.media_type, i.title, i.created_by, i.created_at,
			v.id AS v_id, v.watched AS v_watched, v.watched_at AS v_watched_at,
			v.review AS v_review, v.created_at AS v_created_at
		FROM multimedia_views v
		JOIN multimedia_items i ON i.id = v.item_id AND i.scope_id = v.scope_id
		WHERE `+where+`
		ORDER BY COALESCE(v.watched_at, v.created_at) DESC, v.id DESC
		LIMIT ? OFFSET ?`, args...); err != nil {
		return nil, fmt.Errorf("list viewer media: %w", err)
	}

	out := make([]MultimediaEntry, 0, len(rows))
	for _, r := range rows {
		it, err := r.toItem()
		if err != nil {
			return nil, err
		}
		v, err := mediaViewRow{
			ID:        r.VID,
			ScopeID:   r.ScopeID,
			ItemID:    r.ID,
			ViewerID:  viewerID,
			Watched:   r.VWatched,
			WatchedAt: r.VWatchedAt,
			Review:    r.VReview,
			CreatedAt: r.VCreatedAt,
		}.toView()
		if err != nil {
			return nil, err
		}
		out = append(out, MultimediaEntry{Item: it, View: v})
	}
	return out, nil
}

func (s *SQLite) ListItemViews(ctx context.Context, scopeID, itemID int64, limit, offset int) ([]MultimediaView, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var rows []mediaViewRow
	if err := db.SelectContext(ctx, &rows, `SELECT `+mediaViewColumns+` FROM multimedia_views
		WHERE scope_id = ? AND item_id = ?
		ORDER BY COALESCE(watched_at, created_at) DESC, id DESC
		LIMIT ? OFFSET ?`, scopeID, itemID, clampLimit(limit, 50, 500), max(0, offset)); err != nil {
		return nil, fmt.Errorf("list item views: %w", err)
	}
	out := make([]MultimediaView, 0, len(rows))
	for _, r := range rows {
		v, err := r.toView()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
