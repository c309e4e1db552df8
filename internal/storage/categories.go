package storage

import (
	"context"
	"fmt"
)

type categoryRow struct {
	ScopeID   int64  `db:"scope_id"`
	Name      string `db:"name"`
	CreatedAt string `db:"created_at"`
}

// AddCategoryOption inserts the name if missing and reports whether it was new.
func (s *SQLite) AddCategoryOption(ctx context.Context, scopeID int64, name string) (bool, error) {
	n, err := s.exec(ctx, "add category option", `
		INSERT OR IGNORE INTO event_category_options (scope_id, name, created_at)
		VALUES (?, ?, ?)`,
		scopeID, name, s.stamp(),
	)
	return n > 0, err
}

func (s *SQLite) RemoveCategoryOption(ctx context.Context, scopeID int64, name string) (int64, error) {
	return s.exec(ctx, "remove category option",
		`DELETE FROM event_category_options WHERE scope_id = ? AND name = ?`, scopeID, name)
}

func (s *SQLite) ListCategoryOptions(ctx context.Context, scopeID int64, limit int) ([]CategoryOption, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var rows []categoryRow
	if err := db.SelectContext(ctx, &rows, `
		SELECT scope_id, name, created_at
		FROM event_category_options
		WHERE scope_id = ?
		ORDER BY name ASC
		LIMIT ?`, scopeID, clampLimit(limit, 25, 200)); err != nil {
		return nil, fmt.Errorf("list category options: %w", err)
	}
	out := make([]CategoryOption, 0, len(rows))
	for _, r := range rows {
		created, err := scanTS(r.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, CategoryOption{ScopeID: r.ScopeID, Name: r.Name, CreatedAt: created})
	}
	return out, nil
}

func (s *SQLite) HasCategoryOption(ctx context.Context, scopeID int64, name string) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	var n int
	if err := db.GetContext(ctx, &n, `
		SELECT COUNT(1) FROM event_category_options WHERE scope_id = ? AND name = ?`,
		scopeID, name); err != nil {
		return false, fmt.Errorf("has category option: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) PurgeCategoryOptions(ctx context.Context, scopeID int64) (int64, error) {
	return s.exec(ctx, "purge category options",
		`DELETE FROM event_category_options WHERE scope_id = ?`, scopeID)
}
