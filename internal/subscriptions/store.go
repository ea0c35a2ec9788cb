// internal/subscriptions/store.go
package subscriptions

import (
	"context"
	"database/sql"
	"time"

	"tender-alerts/internal/common/errors"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"

	"github.com/lib/pq"
)

// Store reads the subscriptions the dispatcher fans out to. Subscriptions
// are owned by the user-facing system; this side only reads them and stamps
// the last-sent marker after a successful send.
type Store interface {
	ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error)
	MarkNotified(ctx context.Context, subscriptionID string, at time.Time) error
}

type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "subscriptions"}),
	}
}

func (s *PostgresStore) ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, channel, recipient_id, keywords,
		       company_profile, label, last_notified_at
		FROM subscriptions
		WHERE active = TRUE
		ORDER BY created_at`)
	if err != nil {
		return nil, errors.NewSubscriptionQueryError(err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var (
			sub            models.Subscription
			companyProfile sql.NullString
			label          sql.NullString
			lastNotified   sql.NullTime
		)
		if err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.Channel,
			&sub.RecipientID,
			pq.Array(&sub.Keywords),
			&companyProfile,
			&label,
			&lastNotified,
		); err != nil {
			return nil, errors.NewSubscriptionQueryError(err)
		}
		sub.Active = true
		sub.CompanyProfile = companyProfile.String
		sub.Label = label.String
		if lastNotified.Valid {
			t := lastNotified.Time
			sub.LastNotifiedAt = &t
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewSubscriptionQueryError(err)
	}

	s.logger.Debug("loaded active subscriptions", map[string]interface{}{
		"count": len(subs),
	})
	return subs, nil
}

func (s *PostgresStore) MarkNotified(ctx context.Context, subscriptionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET last_notified_at = $2 WHERE id = $1`,
		subscriptionID, at.UTC())
	if err != nil {
		return errors.NewSubscriptionUpdateError(err)
	}
	return nil
}
