// internal/channels/channel.go
package channels

import (
	"context"
	"fmt"

	"tender-alerts/internal/models"
)

// SendResult is the uniform boundary between the dispatch engine and every
// delivery mechanism. Channels report failures through it and never panic
// into the engine.
type SendResult struct {
	Success bool
	Message string
}

func Ok(msg string) SendResult {
	return SendResult{Success: true, Message: msg}
}

func Fail(msg string) SendResult {
	return SendResult{Success: false, Message: msg}
}

func Failf(format string, args ...interface{}) SendResult {
	return SendResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Button is one pressable action attached to a message.
type Button struct {
	Text         string
	CallbackData string
}

// Keyboard is a grid of buttons.
type Keyboard struct {
	Rows [][]Button
}

// Canonical interactive actions
const (
	ActionAnalyze       = "analyze"
	ActionDownload      = "download"
	ActionCompatibility = "compat"
)

// CallbackData encodes an action on an announcement for button payloads.
func CallbackData(action, processID string) string {
	return action + "|" + processID
}

// ParseCallbackData splits a button payload back into action and process id.
func ParseCallbackData(data string) (action, processID string, ok bool) {
	for i := 0; i < len(data); i++ {
		if data[i] == '|' {
			return data[:i], data[i+1:], i > 0 && i < len(data)-1
		}
	}
	return "", "", false
}

// DefaultKeyboard builds the three canonical actions for an announcement.
// Shared by every interactive channel.
func DefaultKeyboard(ann *models.Announcement) *Keyboard {
	if ann == nil || ann.ProcessID == "" {
		return nil
	}
	return &Keyboard{
		Rows: [][]Button{
			{
				{Text: "Analizar pliego", CallbackData: CallbackData(ActionAnalyze, ann.ProcessID)},
				{Text: "Descargar pliego", CallbackData: CallbackData(ActionDownload, ann.ProcessID)},
			},
			{
				{Text: "Ver compatibilidad", CallbackData: CallbackData(ActionCompatibility, ann.ProcessID)},
			},
		},
	}
}

// Notifier is the capability every channel must provide.
type Notifier interface {
	Name() string
	Enabled() bool
	SendMessage(ctx context.Context, recipientID, text string) SendResult
	SendMessageWithButtons(ctx context.Context, recipientID, text string, kb *Keyboard) SendResult

	// SendToSubscriber is the composed "format announcement + send" entry
	// point used by the dispatch engine.
	SendToSubscriber(ctx context.Context, sub *models.Subscription, ann *models.Announcement, matchedKeywords []string) SendResult
}

// Interactive is the optional capability of channels that can present
// action buttons, cache announcement context for later callback resolution
// and deliver documents.
type Interactive interface {
	BuildDefaultKeyboard(ann *models.Announcement) *Keyboard
	CacheAnnouncementContext(ctx context.Context, ann *models.Announcement) error
	SendDocument(ctx context.Context, recipientID string, document []byte, filename, caption string) SendResult
}
