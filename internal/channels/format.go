// internal/channels/format.go
package channels

import (
	"fmt"
	"strings"

	"tender-alerts/internal/models"
)

// FormatAnnouncement renders the notification text shared by all channels.
func FormatAnnouncement(sub *models.Subscription, ann *models.Announcement, matchedKeywords []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Nueva convocatoria: %s\n", ann.Title)
	if ann.Entity != "" {
		fmt.Fprintf(&b, "Entidad: %s\n", ann.Entity)
	}
	fmt.Fprintf(&b, "Proceso: %s\n", ann.ProcessID)
	if ann.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", truncate(ann.Description, 400))
	}
	if len(matchedKeywords) > 0 {
		fmt.Fprintf(&b, "\nPalabras clave: %s\n", strings.Join(matchedKeywords, ", "))
	}
	if sub != nil && sub.Label != "" {
		fmt.Fprintf(&b, "Suscripcion: %s\n", sub.Label)
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatSubject renders the short form used as email subject / SMS prefix.
func FormatSubject(ann *models.Announcement) string {
	return fmt.Sprintf("Nueva convocatoria: %s", truncate(ann.Title, 120))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
