package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	logx "eventbot/pkg/logx"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, driverName), logx.Nop()), mock
}

func TestDeleteExpiredWrapsDriverError(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM events WHERE expires_at <= ?`)).
		WithArgs("2026-01-08T19:30:00+00:00").
		WillReturnError(errors.New("disk I/O error"))

	_, err := st.DeleteExpired(context.Background(), t0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete expired events")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchDueRemindersQueryError(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectQuery(`FROM events\s+WHERE remind_at IS NOT NULL`).
		WillReturnError(errors.New("database is locked"))

	due, err := st.FetchDueReminders(context.Background(), t0, 10)
	require.Error(t, err)
	assert.Nil(t, due)
	assert.Contains(t, err.Error(), "fetch due reminders")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchExpiredEventsRejectsCorruptTimestamp(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "scope_id", "channel_id", "title", "start_at", "end_at", "description", "created_by",
		"expires_at", "channel_name", "member_limit", "remind_at", "reminded", "remind_in_channel",
	}).AddRow(1, 1, 0, "bad", "not-a-time", nil, nil, 42, "2026-01-08T19:00:00+00:00", nil, nil, nil, 0, 0)
	mock.ExpectQuery(`WHERE expires_at <= \?`).WillReturnRows(rows)

	_, err := st.FetchExpiredEvents(context.Background(), t0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 1")
}

func TestDeleteMediaItemRollsBack(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM multimedia_views`)).
		WithArgs(int64(1), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM multimedia_items`)).
		WithArgs(int64(1), int64(9)).
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	_, _, err := st.DeleteMediaItem(context.Background(), 1, 9)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
