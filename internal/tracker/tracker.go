// internal/tracker/tracker.go
package tracker

import (
	"context"

	"tender-alerts/internal/models"
)

// Tracker is the persistence boundary of the dedup ledger. Any storage
// engine satisfying these operations with the stated atomicity is a valid
// backing store.
type Tracker interface {
	// NotifiedProcessIDs returns exactly the set of process ids ever
	// recorded for the (user, channel, recipient) triple.
	NotifiedProcessIDs(ctx context.Context, userID, channel, recipientID string) (map[string]struct{}, error)

	// WasAlreadyNotified reports whether a record exists for the composite
	// key. Consistent with RecordNotification: true exactly when a prior
	// call for the key returned true.
	WasAlreadyNotified(ctx context.Context, processID, userID, channel, recipientID string) (bool, error)

	// RecordNotification inserts a ledger record. Returns (true, nil) on
	// first insertion for the key and (false, nil) with no mutation when
	// the key already exists. The insert is conditional at the storage
	// layer, so concurrent callers racing on one key yield exactly one
	// true. Storage faults surface as a non-nil error, never as a
	// duplicate.
	RecordNotification(ctx context.Context, rec models.NotificationRecord) (bool, error)
}
