// internal/models/webhook.go
package models

// WebhookPayload is the provider's event envelope posted to the inbound
// webhook. Only the fields the gateway and resolver act on are modeled;
// unknown fields pass through untouched in the raw payload kept on the
// queue.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	Messages []InboundMessage `json:"messages"`
}

// InboundMessage is one user-originated message inside a webhook event.
// Status and delivery updates arrive in the same envelope but carry no
// messages array.
type InboundMessage struct {
	From        string            `json:"from"`
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Text        *TextBody         `json:"text,omitempty"`
	Interactive *InteractiveReply `json:"interactive,omitempty"`
	Button      *ButtonReply      `json:"button,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

// InteractiveReply is the user's answer to an interactive button message.
type InteractiveReply struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
}

// ButtonReply carries the callback payload attached to the pressed button.
type ButtonReply struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Payload string `json:"payload,omitempty"`
}

// HasMessages reports whether any entry carries an inbound message.
func (p *WebhookPayload) HasMessages() bool {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) > 0 {
				return true
			}
		}
	}
	return false
}

// CallbackData extracts the button payload from a message, or "" when the
// message is not a button press.
func (m *InboundMessage) CallbackData() string {
	if m.Interactive != nil && m.Interactive.ButtonReply != nil {
		return m.Interactive.ButtonReply.ID
	}
	if m.Button != nil {
		if m.Button.Payload != "" {
			return m.Button.Payload
		}
		return m.Button.ID
	}
	return ""
}
