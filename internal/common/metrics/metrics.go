// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications delivered per channel",
		},
		[]string{"channel"},
	)

	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_skipped_total",
			Help: "Total number of announcement/subscription pairs skipped",
		},
		[]string{"reason"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of failed channel sends",
		},
		[]string{"channel"},
	)

	DispatchCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "dispatch_cycle_duration_seconds",
			Help: "Duration of one full dispatch cycle",
		},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound webhook requests by outcome",
		},
		[]string{"outcome"},
	)

	InboundQueueAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbound_queue_appends_total",
			Help: "Total number of payloads appended to the inbound queue",
		},
	)
)

// Skip reasons
const (
	SkipNoMatch          = "no_match"
	SkipAlreadyNotified  = "already_notified"
	SkipChannelDisabled  = "channel_disabled"
	SkipChannelUnknown   = "channel_unknown"
	SkipDuplicateOnWrite = "duplicate_on_write"
)
