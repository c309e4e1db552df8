package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type resourceRow struct {
	ScopeID   int64  `db:"scope_id"`
	Name      string `db:"name"`
	ThreadID  int64  `db:"thread_id"`
	CreatedAt string `db:"created_at"`
}

// RecordChannelResource remembers the thread behind a name. An existing entry
// is never replaced: recorded=false means the name already belongs to another
// thread.
func (s *SQLite) RecordChannelResource(ctx context.Context, scopeID int64, name string, threadID int64) (recorded bool, err error) {
	n, err := s.exec(ctx, "record channel resource", `
		INSERT INTO channel_resources (scope_id, name, thread_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scope_id, name) DO NOTHING`,
		scopeID, name, threadID, s.stamp(),
	)
	return n == 1, err
}

func (s *SQLite) LookupChannelResource(ctx context.Context, scopeID int64, name string) (ChannelResource, bool, error) {
	db, err := s.conn()
	if err != nil {
		return ChannelResource{}, false, err
	}
	var r resourceRow
	err = db.GetContext(ctx, &r, `SELECT scope_id, name, thread_id, created_at FROM channel_resources
		WHERE scope_id = ? AND name = ?`, scopeID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return ChannelResource{}, false, nil
	}
	if err != nil {
		return ChannelResource{}, false, fmt.Errorf("lookup channel resource: %w", err)
	}
	created, err := scanTS(r.CreatedAt)
	if err != nil {
		return ChannelResource{}, false, err
	}
	return ChannelResource{ScopeID: r.ScopeID, Name: r.Name, ThreadID: r.ThreadID, CreatedAt: created}, true, nil
}

func (s *SQLite) ForgetChannelResource(ctx context.Context, scopeID int64, name string) (int64, error) {
	return s.exec(ctx, "forget channel resource",
		`DELETE FROM channel_resources WHERE scope_id = ? AND name = ?`, scopeID, name)
}
