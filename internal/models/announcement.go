// internal/models/announcement.go
package models

// Announcement is a single procurement record fetched from the upstream
// source in one poll cycle. It is never persisted by the core; only its
// ProcessID ends up in the notification ledger.
type Announcement struct {
	ProcessID   string                 `json:"processId"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Entity      string                 `json:"entity"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
}

// SearchableText returns the text fields keyword matching runs against.
func (a *Announcement) SearchableText() []string {
	return []string{a.Title, a.Description, a.Entity}
}
