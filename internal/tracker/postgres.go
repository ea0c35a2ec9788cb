// internal/tracker/postgres.go
package tracker

import (
	"context"
	"database/sql"
	"time"

	"tender-alerts/internal/common/errors"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresTracker implements Tracker on a notifications table with a unique
// constraint over (process_id, user_id, channel, recipient_id). Uniqueness
// is enforced by the database, not by check-then-write, so overlapping
// cycles and multi-instance deployments cannot double-notify.
type PostgresTracker struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresTracker(db *sql.DB, log logger.Logger) *PostgresTracker {
	return &PostgresTracker{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "tracker"}),
	}
}

func (t *PostgresTracker) NotifiedProcessIDs(ctx context.Context, userID, channel, recipientID string) (map[string]struct{}, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT process_id FROM notifications
		WHERE user_id = $1 AND channel = $2 AND recipient_id = $3`,
		userID, channel, recipientID)
	if err != nil {
		return nil, errors.NewTrackerQueryError(err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewTrackerQueryError(err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTrackerQueryError(err)
	}
	return ids, nil
}

func (t *PostgresTracker) WasAlreadyNotified(ctx context.Context, processID, userID, channel, recipientID string) (bool, error) {
	var exists bool
	err := t.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE process_id = $1 AND user_id = $2 AND channel = $3 AND recipient_id = $4
		)`, processID, userID, channel, recipientID).Scan(&exists)
	if err != nil {
		return false, errors.NewTrackerQueryError(err)
	}
	return exists, nil
}

func (t *PostgresTracker) RecordNotification(ctx context.Context, rec models.NotificationRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}

	res, err := t.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, process_id, user_id, channel, recipient_id,
			matched_keywords, label, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (process_id, user_id, channel, recipient_id) DO NOTHING`,
		rec.ID,
		rec.ProcessID,
		rec.UserID,
		rec.Channel,
		rec.RecipientID,
		pq.Array(rec.MatchedKeywords),
		rec.Label,
		rec.SentAt,
	)
	if err != nil {
		return false, errors.NewTrackerPersistenceError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewTrackerPersistenceError(err)
	}
	if n == 0 {
		// Lost the race or a previous cycle already recorded this key.
		t.logger.Debug("duplicate notification suppressed", map[string]interface{}{
			"processId":   rec.ProcessID,
			"userId":      rec.UserID,
			"channel":     rec.Channel,
			"recipientId": rec.RecipientID,
		})
		return false, nil
	}
	return true, nil
}
