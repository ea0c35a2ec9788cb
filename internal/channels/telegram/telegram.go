// internal/channels/telegram/telegram.go
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"tender-alerts/internal/cache"
	"tender-alerts/internal/channels"
	"tender-alerts/internal/common/config"
	commonhttp "tender-alerts/internal/common/http"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"
)

// Channel delivers notifications through the Telegram Bot API. Implements
// both the notify and the interactive capability.
type Channel struct {
	cfg     config.TelegramConfig
	http    *commonhttp.Client
	context *cache.ContextCache
	logger  logger.Logger
}

func New(cfg config.TelegramConfig, httpClient *commonhttp.Client, contextCache *cache.ContextCache, log logger.Logger) *Channel {
	return &Channel{
		cfg:     cfg,
		http:    httpClient,
		context: contextCache,
		logger:  log.WithFields(map[string]interface{}{"channel": models.ChannelTelegram}),
	}
}

func (c *Channel) Name() string {
	return models.ChannelTelegram
}

func (c *Channel) Enabled() bool {
	return c.cfg.Enabled && c.cfg.BotToken != ""
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// inlineButton and inlineKeyboard mirror the Bot API reply_markup shape.
type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func toInlineKeyboard(kb *channels.Keyboard) *inlineKeyboard {
	if kb == nil {
		return nil
	}
	rows := make([][]inlineButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		btns := make([]inlineButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, inlineButton{Text: b.Text, CallbackData: b.CallbackData})
		}
		rows = append(rows, btns)
	}
	return &inlineKeyboard{InlineKeyboard: rows}
}

func (c *Channel) SendMessage(ctx context.Context, recipientID, text string) channels.SendResult {
	return c.sendMessage(ctx, recipientID, text, nil)
}

func (c *Channel) SendMessageWithButtons(ctx context.Context, recipientID, text string, kb *channels.Keyboard) channels.SendResult {
	return c.sendMessage(ctx, recipientID, text, toInlineKeyboard(kb))
}

func (c *Channel) sendMessage(ctx context.Context, chatID, text string, markup *inlineKeyboard) channels.SendResult {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		payload["reply_markup"] = markup
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return channels.Failf("marshal sendMessage payload: %v", err)
	}

	return c.callAPI(ctx, "sendMessage", "application/json", bytes.NewReader(body))
}

func (c *Channel) SendToSubscriber(ctx context.Context, sub *models.Subscription, ann *models.Announcement, matchedKeywords []string) channels.SendResult {
	text := channels.FormatAnnouncement(sub, ann, matchedKeywords)

	kb := c.BuildDefaultKeyboard(ann)
	if kb == nil {
		return c.SendMessage(ctx, sub.RecipientID, text)
	}

	if err := c.CacheAnnouncementContext(ctx, ann); err != nil {
		// A stale cache only degrades button follow-ups; the alert itself
		// still goes out.
		c.logger.Warn("context cache write failed", map[string]interface{}{
			"processId": ann.ProcessID,
			"error":     err,
		})
	}
	return c.SendMessageWithButtons(ctx, sub.RecipientID, text, kb)
}

func (c *Channel) BuildDefaultKeyboard(ann *models.Announcement) *channels.Keyboard {
	return channels.DefaultKeyboard(ann)
}

func (c *Channel) CacheAnnouncementContext(ctx context.Context, ann *models.Announcement) error {
	return c.context.Put(ctx, ann)
}

func (c *Channel) SendDocument(ctx context.Context, recipientID string, document []byte, filename, caption string) channels.SendResult {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", recipientID); err != nil {
		return channels.Failf("build sendDocument form: %v", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return channels.Failf("build sendDocument form: %v", err)
		}
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return channels.Failf("build sendDocument form: %v", err)
	}
	if _, err := part.Write(document); err != nil {
		return channels.Failf("build sendDocument form: %v", err)
	}
	if err := w.Close(); err != nil {
		return channels.Failf("build sendDocument form: %v", err)
	}

	return c.callAPI(ctx, "sendDocument", w.FormDataContentType(), &buf)
}

func (c *Channel) callAPI(ctx context.Context, method, contentType string, body io.Reader) channels.SendResult {
	url := fmt.Sprintf("%s/bot%s/%s", c.cfg.APIBase, c.cfg.BotToken, method)

	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return channels.Failf("build %s request: %v", method, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return channels.Failf("%s request failed: %v", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return channels.Failf("decode %s response: %v", method, err)
	}
	if !apiResp.OK {
		return channels.Failf("telegram %s rejected: %s", method, apiResp.Description)
	}
	return channels.Ok("sent")
}
