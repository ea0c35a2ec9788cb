// internal/resolver/resolver.go
package resolver

import (
	"context"
	"encoding/json"
	"fmt"

	"tender-alerts/internal/cache"
	"tender-alerts/internal/channels"
	"tender-alerts/internal/common/errors"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"
)

// DocumentFetcher retrieves the tender document for an announcement.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, ann *models.Announcement) (data []byte, filename string, err error)
}

// DocumentAnalyzer produces the analysis and compatibility texts sent back
// when a user presses the corresponding button.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, ann *models.Announcement) (string, error)
	Compatibility(ctx context.Context, ann *models.Announcement) (string, error)
}

const contextExpiredMessage = "Esta convocatoria ya no esta disponible. Espera la proxima alerta para usar los botones."

// CallbackResolver turns inbound button presses into actions: look up the
// cached announcement context, run the requested action and reply on the
// same channel the press came from.
type CallbackResolver struct {
	cache       *cache.ContextCache
	registry    *channels.Registry
	fetcher     DocumentFetcher
	analyzer    DocumentAnalyzer
	channelName string
	logger      logger.Logger
}

func New(ctxCache *cache.ContextCache, registry *channels.Registry, fetcher DocumentFetcher, analyzer DocumentAnalyzer, channelName string, log logger.Logger) *CallbackResolver {
	return &CallbackResolver{
		cache:       ctxCache,
		registry:    registry,
		fetcher:     fetcher,
		analyzer:    analyzer,
		channelName: channelName,
		logger:      log.WithFields(map[string]interface{}{"component": "resolver"}),
	}
}

// ProcessPayload handles every button press found in one raw webhook
// payload. Presses are handled independently; the first failure is
// returned after the remaining presses have been attempted.
func (r *CallbackResolver) ProcessPayload(ctx context.Context, payload []byte) error {
	var event models.WebhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return errors.NewCallbackMalformedError(err.Error())
	}

	var firstErr error
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			for i := range change.Value.Messages {
				msg := &change.Value.Messages[i]
				data := msg.CallbackData()
				if data == "" {
					continue
				}
				if err := r.HandleCallback(ctx, msg.From, data); err != nil {
					r.logger.Error("callback handling failed", map[string]interface{}{
						"recipientId": msg.From,
						"data":        data,
						"error":       err.Error(),
					})
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}
	return firstErr
}

// HandleCallback resolves one button press. An expired context is not an
// error: the user gets a polite notice and the press is considered
// handled.
func (r *CallbackResolver) HandleCallback(ctx context.Context, recipientID, data string) error {
	action, processID, ok := channels.ParseCallbackData(data)
	if !ok {
		return errors.NewCallbackMalformedError(fmt.Sprintf("data: %q", data))
	}

	ch, found := r.registry.Get(r.channelName)
	if !found {
		return errors.NewChannelUnknownError(r.channelName)
	}

	ann, err := r.cache.GetByProcessID(ctx, processID)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeContextNotFound {
			r.logger.Info("context expired before callback", map[string]interface{}{
				"processId": processID,
				"action":    action,
			})
			ch.SendMessage(ctx, recipientID, contextExpiredMessage)
			return nil
		}
		return err
	}

	switch action {
	case channels.ActionAnalyze:
		return r.sendAnalysis(ctx, ch, recipientID, ann)
	case channels.ActionDownload:
		return r.sendDocument(ctx, recipientID, ann)
	case channels.ActionCompatibility:
		return r.sendCompatibility(ctx, ch, recipientID, ann)
	default:
		return errors.NewCallbackMalformedError(fmt.Sprintf("action: %q", action))
	}
}

func (r *CallbackResolver) sendAnalysis(ctx context.Context, ch channels.Notifier, recipientID string, ann *models.Announcement) error {
	text, err := r.analyzer.Analyze(ctx, ann)
	if err != nil {
		return err
	}
	if res := ch.SendMessage(ctx, recipientID, text); !res.Success {
		return errors.NewChannelSendFailedError(r.channelName, res.Message)
	}
	return nil
}

func (r *CallbackResolver) sendCompatibility(ctx context.Context, ch channels.Notifier, recipientID string, ann *models.Announcement) error {
	text, err := r.analyzer.Compatibility(ctx, ann)
	if err != nil {
		return err
	}
	if res := ch.SendMessage(ctx, recipientID, text); !res.Success {
		return errors.NewChannelSendFailedError(r.channelName, res.Message)
	}
	return nil
}

func (r *CallbackResolver) sendDocument(ctx context.Context, recipientID string, ann *models.Announcement) error {
	interactive, ok := r.registry.GetInteractive(r.channelName)
	if !ok {
		return errors.NewChannelUnknownError(r.channelName)
	}

	data, filename, err := r.fetcher.FetchDocument(ctx, ann)
	if err != nil {
		return err
	}

	caption := fmt.Sprintf("Pliego del proceso %s", ann.ProcessID)
	if res := interactive.SendDocument(ctx, recipientID, data, filename, caption); !res.Success {
		return errors.NewDocumentSendFailedError(r.channelName, res.Message)
	}
	return nil
}
