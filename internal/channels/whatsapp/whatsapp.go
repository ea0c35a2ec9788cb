// internal/channels/whatsapp/whatsapp.go
package whatsapp

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

// The Cloud API caps reply buttons per message and title length.
const (
	maxButtons     = 3
	maxButtonTitle = 20
)

// Channel delivers notifications through the WhatsApp Business Cloud API.
// Implements both the notify and the interactive capability.
type Channel struct {
	cfg     config.WhatsAppConfig
	http    *commonhttp.Client
	context *cache.ContextCache
	logger  logger.Logger
}

func New(cfg config.WhatsAppConfig, httpClient *commonhttp.Client, contextCache *cache.ContextCache, log logger.Logger) *Channel {
	return &Channel{
		cfg:     cfg,
		http:    httpClient,
		context: contextCache,
		logger:  log.WithFields(map[string]interface{}{"channel": models.ChannelWhatsApp}),
	}
}

func (c *Channel) Name() string {
	return models.ChannelWhatsApp
}

func (c *Channel) Enabled() bool {
	return c.cfg.Enabled && c.cfg.AccessToken != "" && c.cfg.PhoneNumberID != ""
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (c *Channel) SendMessage(ctx context.Context, recipientID, text string) channels.SendResult {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipientID,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	return c.postMessage(ctx, payload)
}

func (c *Channel) SendMessageWithButtons(ctx context.Context, recipientID, text string, kb *channels.Keyboard) channels.SendResult {
	buttons := flattenButtons(kb)
	if len(buttons) == 0 {
		return c.SendMessage(ctx, recipientID, text)
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipientID,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": text},
			"action": map[string]interface{}{"buttons": buttons},
		},
	}
	return c.postMessage(ctx, payload)
}

// flattenButtons converts the keyboard grid into the Cloud API reply-button
// list, truncating to the API limits.
func flattenButtons(kb *channels.Keyboard) []map[string]interface{} {
	if kb == nil {
		return nil
	}
	var out []map[string]interface{}
	for _, row := range kb.Rows {
		for _, b := range row {
			if len(out) == maxButtons {
				return out
			}
			title := b.Text
			if len(title) > maxButtonTitle {
				title = title[:maxButtonTitle]
			}
			out = append(out, map[string]interface{}{
				"type": "reply",
				"reply": map[string]string{
					"id":    b.CallbackData,
					"title": title,
				},
			})
		}
	}
	return out
}

func (c *Channel) SendToSubscriber(ctx context.Context, sub *models.Subscription, ann *models.Announcement, matchedKeywords []string) channels.SendResult {
	text := channels.FormatAnnouncement(sub, ann, matchedKeywords)

	kb := c.BuildDefaultKeyboard(ann)
	if kb == nil {
		return c.SendMessage(ctx, sub.RecipientID, text)
	}

	if err := c.CacheAnnouncementContext(ctx, ann); err != nil {
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

// SendDocument uploads the file to the media endpoint, then references the
// returned media id in a document message.
func (c *Channel) SendDocument(ctx context.Context, recipientID string, document []byte, filename, caption string) channels.SendResult {
	mediaID, err := c.uploadMedia(ctx, document, filename)
	if err != nil {
		return channels.Failf("media upload failed: %v", err)
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipientID,
		"type":              "document",
		"document": map[string]string{
			"id":       mediaID,
			"filename": filename,
			"caption":  caption,
		},
	}
	return c.postMessage(ctx, payload)
}

func (c *Channel) uploadMedia(ctx context.Context, document []byte, filename string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(document); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/media", c.cfg.APIBase, c.cfg.PhoneNumberID)
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("media upload status %d: %s", resp.StatusCode, decodeAPIError(body))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("media upload returned no id")
	}
	return out.ID, nil
}

func (c *Channel) postMessage(ctx context.Context, payload map[string]interface{}) channels.SendResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return channels.Failf("marshal message payload: %v", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.APIBase, c.cfg.PhoneNumberID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return channels.Failf("build message request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return channels.Failf("message request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return channels.Failf("read message response: %v", err)
	}
	if resp.StatusCode >= 300 {
		return channels.Failf("whatsapp rejected message: %s", decodeAPIError(respBody))
	}

	var out sendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return channels.Failf("decode message response: %v", err)
	}
	if len(out.Messages) == 0 {
		return channels.Fail("whatsapp accepted request but returned no message id")
	}
	return channels.Ok(out.Messages[0].ID)
}

func decodeAPIError(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return string(body)
}
