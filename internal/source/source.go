// internal/source/source.go
package source

import (
	"context"

	"tender-alerts/internal/models"
)

// Fetcher returns the current page of open procurement announcements. A
// cycle works on whatever snapshot the fetcher hands back; deduplication
// downstream makes re-fetching the same records harmless.
type Fetcher interface {
	FetchAnnouncements(ctx context.Context) ([]models.Announcement, error)
}
