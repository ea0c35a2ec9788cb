// internal/dispatch/engine.go
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"tender-alerts/internal/audit"
	"tender-alerts/internal/channels"
	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/common/metrics"
	"tender-alerts/internal/matcher"
	"tender-alerts/internal/models"
	"tender-alerts/internal/source"
	"tender-alerts/internal/subscriptions"
	"tender-alerts/internal/tracker"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CycleStats summarizes one dispatch cycle.
type CycleStats struct {
	Announcements int
	Subscriptions int
	Sent          int
	Skipped       int
	Failed        int
	TrackerErrors int
}

// Engine runs the poll-match-send cycle. Subscriptions are processed in
// parallel up to a configured limit; announcements within one subscription
// are processed in order so a send failure never reorders later sends on
// the same recipient.
type Engine struct {
	fetcher  source.Fetcher
	subs     subscriptions.Store
	tracker  tracker.Tracker
	registry *channels.Registry
	auditor  audit.Indexer
	cfg      config.DispatchConfig
	logger   logger.Logger
}

func NewEngine(
	fetcher source.Fetcher,
	subs subscriptions.Store,
	tr tracker.Tracker,
	registry *channels.Registry,
	auditor audit.Indexer,
	cfg config.DispatchConfig,
	log logger.Logger,
) *Engine {
	if auditor == nil {
		auditor = audit.NoOpIndexer{}
	}
	return &Engine{
		fetcher:  fetcher,
		subs:     subs,
		tracker:  tr,
		registry: registry,
		auditor:  auditor,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "dispatch"}),
	}
}

type cycleCounters struct {
	sent          atomic.Int64
	skipped       atomic.Int64
	failed        atomic.Int64
	trackerErrors atomic.Int64
}

// RunCycle executes one full cycle. A fetch or subscription load failure
// aborts the cycle; per-subscription failures are counted and never stop
// the other subscriptions.
func (e *Engine) RunCycle(ctx context.Context) (CycleStats, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchCycleDuration.Observe(time.Since(start).Seconds())
	}()

	anns, err := e.fetcher.FetchAnnouncements(ctx)
	if err != nil {
		return CycleStats{}, err
	}

	subs, err := e.subs.ActiveSubscriptions(ctx)
	if err != nil {
		return CycleStats{Announcements: len(anns)}, err
	}

	counters := &cycleCounters{}
	g, gctx := errgroup.WithContext(ctx)
	limit := e.cfg.MaxParallelSubs
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			e.processSubscription(gctx, &sub, anns, counters)
			return nil
		})
	}
	g.Wait()

	stats := CycleStats{
		Announcements: len(anns),
		Subscriptions: len(subs),
		Sent:          int(counters.sent.Load()),
		Skipped:       int(counters.skipped.Load()),
		Failed:        int(counters.failed.Load()),
		TrackerErrors: int(counters.trackerErrors.Load()),
	}

	e.logger.Info("dispatch cycle finished", map[string]interface{}{
		"announcements": stats.Announcements,
		"subscriptions": stats.Subscriptions,
		"sent":          stats.Sent,
		"skipped":       stats.Skipped,
		"failed":        stats.Failed,
		"trackerErrors": stats.TrackerErrors,
		"durationMs":    time.Since(start).Milliseconds(),
	})
	return stats, nil
}

func (e *Engine) processSubscription(ctx context.Context, sub *models.Subscription, anns []models.Announcement, counters *cycleCounters) {
	ch, ok := e.registry.Get(sub.Channel)
	if !ok {
		e.logger.Warn("subscription references unknown channel", map[string]interface{}{
			"subscriptionId": sub.ID,
			"channel":        sub.Channel,
		})
		metrics.NotificationsSkipped.WithLabelValues(metrics.SkipChannelUnknown).Inc()
		counters.skipped.Add(1)
		return
	}
	if !ch.Enabled() {
		metrics.NotificationsSkipped.WithLabelValues(metrics.SkipChannelDisabled).Inc()
		counters.skipped.Add(1)
		return
	}

	notified, err := e.tracker.NotifiedProcessIDs(ctx, sub.UserID, sub.Channel, sub.RecipientID)
	if err != nil {
		e.logger.Error("ledger preload failed, skipping subscription", map[string]interface{}{
			"subscriptionId": sub.ID,
			"error":          err.Error(),
		})
		counters.trackerErrors.Add(1)
		return
	}

	sentAny := false
	for i := range anns {
		ann := &anns[i]

		res := matcher.Match(sub.Keywords, ann)
		if !res.Passes {
			metrics.NotificationsSkipped.WithLabelValues(metrics.SkipNoMatch).Inc()
			counters.skipped.Add(1)
			continue
		}
		if _, seen := notified[ann.ProcessID]; seen {
			metrics.NotificationsSkipped.WithLabelValues(metrics.SkipAlreadyNotified).Inc()
			counters.skipped.Add(1)
			continue
		}

		if e.sendOne(ctx, ch, sub, ann, res.MatchedKeywords, counters) {
			notified[ann.ProcessID] = struct{}{}
			sentAny = true
		}

		if ctx.Err() != nil {
			return
		}
	}

	if sentAny {
		if err := e.subs.MarkNotified(ctx, sub.ID, time.Now().UTC()); err != nil {
			e.logger.Warn("failed to stamp last-sent marker", map[string]interface{}{
				"subscriptionId": sub.ID,
				"error":          err.Error(),
			})
		}
	}
}

// sendOne delivers one announcement to one subscriber and records it in the
// ledger. Returns true when the announcement should be treated as handled
// for this subscription, which includes losing the insert race: someone
// delivered it, so it must not be retried.
func (e *Engine) sendOne(ctx context.Context, ch channels.Notifier, sub *models.Subscription, ann *models.Announcement, matched []string, counters *cycleCounters) bool {
	sendCtx := ctx
	if e.cfg.SendTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.SendTimeoutSeconds)*time.Second)
		defer cancel()
	}

	res := ch.SendToSubscriber(sendCtx, sub, ann, matched)
	if !res.Success {
		e.logger.Error("channel send failed", map[string]interface{}{
			"subscriptionId": sub.ID,
			"channel":        sub.Channel,
			"processId":      ann.ProcessID,
			"reason":         res.Message,
		})
		metrics.NotificationsFailed.WithLabelValues(sub.Channel).Inc()
		counters.failed.Add(1)
		return false
	}

	rec := models.NotificationRecord{
		ID:              uuid.New().String(),
		ProcessID:       ann.ProcessID,
		UserID:          sub.UserID,
		Channel:         sub.Channel,
		RecipientID:     sub.RecipientID,
		MatchedKeywords: matched,
		Label:           sub.Label,
		SentAt:          time.Now().UTC(),
	}

	inserted, err := e.tracker.RecordNotification(ctx, rec)
	if err != nil {
		// The message went out but the ledger write failed. Counted as a
		// tracker error so operators can spot potential double sends on the
		// next cycle.
		e.logger.Error("ledger write failed after send", map[string]interface{}{
			"subscriptionId": sub.ID,
			"processId":      ann.ProcessID,
			"error":          err.Error(),
		})
		counters.trackerErrors.Add(1)
		return true
	}
	if !inserted {
		metrics.NotificationsSkipped.WithLabelValues(metrics.SkipDuplicateOnWrite).Inc()
	}

	metrics.NotificationsSent.WithLabelValues(sub.Channel).Inc()
	counters.sent.Add(1)
	e.auditor.IndexNotification(ctx, rec)
	return true
}
