// internal/resolver/consumer.go
package resolver

import (
	"context"
	"time"

	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/queue"
)

// Consumer drains the inbound queue into the resolver. It is the
// guaranteed delivery path: payloads whose inline attempt failed at the
// webhook boundary are still processed here.
type Consumer struct {
	queue    *queue.InboundQueue
	resolver *CallbackResolver
	idleWait time.Duration
	logger   logger.Logger
}

func NewConsumer(q *queue.InboundQueue, r *CallbackResolver, idleWait time.Duration, log logger.Logger) *Consumer {
	if idleWait <= 0 {
		idleWait = 2 * time.Second
	}
	return &Consumer{
		queue:    q,
		resolver: r,
		idleWait: idleWait,
		logger:   log.WithFields(map[string]interface{}{"component": "consumer"}),
	}
}

// Run drains until the context is cancelled. Processing failures are
// logged and the payload is dropped; a button press is not worth a retry
// storm and the user can press again.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		payload, ok, err := c.queue.Pop(ctx)
		if err != nil {
			c.logger.Error("queue pop failed", map[string]interface{}{
				"error": err.Error(),
			})
			ok = false
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.idleWait):
			}
			continue
		}

		if err := c.resolver.ProcessPayload(ctx, payload); err != nil {
			c.logger.Error("queued payload processing failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
