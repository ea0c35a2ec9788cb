// internal/tracker/postgres_test.go
package tracker

import (
	"context"
	"errors"
	"regexp"
	"testing"

	apperrors "tender-alerts/internal/common/errors"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQuery = `
		INSERT INTO notifications (
			id, process_id, user_id, channel, recipient_id,
			matched_keywords, label, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (process_id, user_id, channel, recipient_id) DO NOTHING`
	existsQuery = `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE process_id = $1 AND user_id = $2 AND channel = $3 AND recipient_id = $4
		)`
	idsQuery = `
		SELECT process_id FROM notifications
		WHERE user_id = $1 AND channel = $2 AND recipient_id = $3`
)

func createRecord() models.NotificationRecord {
	return models.NotificationRecord{
		ProcessID:       "SECOP-2024-001",
		UserID:          "user-1",
		Channel:         models.ChannelTelegram,
		RecipientID:     "chat-42",
		MatchedKeywords: []string{"computo", "software"},
		Label:           "TI alerts",
	}
}

func TestRecordNotification_FirstInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := createRecord()
	mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
		WithArgs(sqlmock.AnyArg(), rec.ProcessID, rec.UserID, rec.Channel, rec.RecipientID,
			pq.Array(rec.MatchedKeywords), rec.Label, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tr := NewPostgresTracker(db, logger.NewNoOpLogger())
	inserted, err := tr.RecordNotification(context.Background(), rec)

	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordNotification_DuplicateKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// ON CONFLICT DO NOTHING reports zero affected rows for an existing key.
	mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tr := NewPostgresTracker(db, logger.NewNoOpLogger())
	inserted, err := tr.RecordNotification(context.Background(), createRecord())

	assert.NoError(t, err)
	assert.False(t, inserted)
}

func TestRecordNotification_StorageFaultIsNotDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
		WillReturnError(errors.New("connection reset by peer"))

	tr := NewPostgresTracker(db, logger.NewNoOpLogger())
	inserted, err := tr.RecordNotification(context.Background(), createRecord())

	assert.False(t, inserted)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTrackerPersistenceFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestWasAlreadyNotified(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{name: "recorded key", exists: true},
		{name: "fresh key", exists: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
				WithArgs("SECOP-2024-001", "user-1", models.ChannelTelegram, "chat-42").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			tr := NewPostgresTracker(db, logger.NewNoOpLogger())
			got, err := tr.WasAlreadyNotified(context.Background(),
				"SECOP-2024-001", "user-1", models.ChannelTelegram, "chat-42")

			assert.NoError(t, err)
			assert.Equal(t, tt.exists, got)
		})
	}
}

func TestWasAlreadyNotified_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WillReturnError(errors.New("server closed the connection"))

	tr := NewPostgresTracker(db, logger.NewNoOpLogger())
	_, err = tr.WasAlreadyNotified(context.Background(), "p", "u", "c", "r")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTrackerQueryFailed, apperrors.CodeOf(err))
}

func TestNotifiedProcessIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(idsQuery)).
		WithArgs("user-1", models.ChannelEmail, "user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"process_id"}).
			AddRow("SECOP-2024-001").
			AddRow("SECOP-2024-007"))

	tr := NewPostgresTracker(db, logger.NewNoOpLogger())
	ids, err := tr.NotifiedProcessIDs(context.Background(), "user-1", models.ChannelEmail, "user@example.com")

	assert.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "SECOP-2024-001")
	assert.Contains(t, ids, "SECOP-2024-007")
}

func TestNotifiedProcessIDs_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(idsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"process_id"}))

	tr := NewPostgresTracker(db, logger.NewNoOpLogger())
	ids, err := tr.NotifiedProcessIDs(context.Background(), "user-2", models.ChannelEmail, "other@example.com")

	assert.NoError(t, err)
	assert.Empty(t, ids)
}
