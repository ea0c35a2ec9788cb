// internal/inbound/gateway.go
package inbound

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/errors"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/common/metrics"
	"tender-alerts/internal/models"
	"tender-alerts/internal/queue"

	"github.com/xeipuuv/gojsonschema"
)

const maxPayloadBytes = 1 << 20

// envelopeSchema gates the event payload shape before anything touches the
// queue. Anything that is not a recognizable provider envelope is ignored
// with a 200, never rejected, so the provider does not disable the webhook.
var envelopeSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["object"],
	"properties": {
		"object": {"type": "string"},
		"entry": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"changes": {"type": "array"}
				}
			}
		}
	}
}`)

// InlineProcessor is the best-effort synchronous hand-off target. The
// queued copy remains the guaranteed path when the inline attempt fails or
// runs out of budget.
type InlineProcessor interface {
	ProcessPayload(ctx context.Context, payload []byte) error
}

// Gateway is the webhook ingestion endpoint: handshake verification on GET
// and event intake on POST.
type Gateway struct {
	cfg       config.InboundConfig
	queue     *queue.InboundQueue
	processor InlineProcessor
	logger    logger.Logger
}

func NewGateway(cfg config.InboundConfig, q *queue.InboundQueue, processor InlineProcessor, log logger.Logger) *Gateway {
	return &Gateway{
		cfg:       cfg,
		queue:     q,
		processor: processor,
		logger:    log.WithFields(map[string]interface{}{"component": "inbound"}),
	}
}

// Routes mounts the gateway on a mux.
func (g *Gateway) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", g.HandleWebhook)
	mux.HandleFunc("/health", g.handleHealth)
}

func (g *Gateway) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleVerification(w, r)
	case http.MethodPost:
		g.handleEvent(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleVerification implements the provider handshake. All three checks
// must pass; the failure response is identical regardless of which check
// failed.
func (g *Gateway) handleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && g.cfg.VerifyToken != "" && token == g.cfg.VerifyToken {
		metrics.WebhookEvents.WithLabelValues("verified").Inc()
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	g.logger.Warn("webhook verification failed", map[string]interface{}{
		"mode": mode,
	})
	metrics.WebhookEvents.WithLabelValues("verification_failed").Inc()
	w.WriteHeader(http.StatusForbidden)
}

func (g *Gateway) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		g.respond(w, "ignored")
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		return
	}

	if !g.validEnvelope(body) {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		g.respond(w, "ignored")
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		g.respond(w, "ignored")
		return
	}

	if payload.Object != g.cfg.ExpectedObject {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		g.respond(w, "ignored")
		return
	}

	if !payload.HasMessages() {
		// Status and delivery updates: acknowledged, not queued.
		metrics.WebhookEvents.WithLabelValues("no_messages").Inc()
		g.respond(w, "ok")
		return
	}

	depth, err := g.queue.Append(r.Context(), body)
	if err != nil {
		// Even a queue fault must not surface: the inline attempt below is
		// the remaining delivery path for this payload.
		g.logger.Error("inbound queue append failed", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		metrics.InboundQueueAppends.Inc()
		g.logger.Debug("payload queued", map[string]interface{}{
			"queueDepth": depth,
		})
	}

	g.tryInline(body)

	metrics.WebhookEvents.WithLabelValues("queued").Inc()
	g.respond(w, "ok")
}

// tryInline attempts the synchronous hand-off within the configured time
// budget. The budget is detached from the request context so a provider
// disconnect cannot cancel processing mid-flight.
func (g *Gateway) tryInline(payload []byte) {
	if g.processor == nil {
		return
	}

	budget := time.Duration(g.cfg.InlineTimeoutSeconds) * time.Second
	if budget <= 0 {
		budget = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	if err := g.processor.ProcessPayload(ctx, payload); err != nil {
		wrapped := errors.NewInlineProcessingError(err)
		g.logger.Warn("inline processing failed, queued copy remains", map[string]interface{}{
			"error": wrapped.Error(),
			"cause": err.Error(),
		})
	}
}

func (g *Gateway) validEnvelope(body []byte) bool {
	result, err := gojsonschema.Validate(envelopeSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return false
	}
	return result.Valid()
}

func (g *Gateway) respond(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
