// internal/models/subscription.go
package models

import "time"

// Subscription is a user's keyword-based interest registration on one
// channel. Created and edited by the user-facing system; read-only here
// except for the last-sent marker.
type Subscription struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Channel        string     `json:"channel"`
	RecipientID    string     `json:"recipientId"` // chat id, phone or email
	Keywords       []string   `json:"keywords"`
	Active         bool       `json:"active"`
	CompanyProfile string     `json:"companyProfile,omitempty"`
	Label          string     `json:"label,omitempty"`
	LastNotifiedAt *time.Time `json:"lastNotifiedAt,omitempty"`
}

// Channel names
const (
	ChannelTelegram = "telegram"
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
)
