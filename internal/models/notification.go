// internal/models/notification.go
package models

import "time"

// NotificationRecord is one row of the append-only dedup ledger. The
// composite key (ProcessID, UserID, Channel, RecipientID) is unique for the
// lifetime of the system; rows are never updated or deleted.
type NotificationRecord struct {
	ID              string    `json:"id"`
	ProcessID       string    `json:"processId"`
	UserID          string    `json:"userId"`
	Channel         string    `json:"channel"`
	RecipientID     string    `json:"recipientId"`
	MatchedKeywords []string  `json:"matchedKeywords"`
	Label           string    `json:"label,omitempty"`
	SentAt          time.Time `json:"sentAt"`
}
