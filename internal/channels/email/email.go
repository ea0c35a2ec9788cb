// internal/channels/email/email.go
package email

import (
	"context"

	"tender-alerts/internal/channels"
	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the slice of the SES API this channel needs; defined here
// for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Channel delivers notifications over email via SES. Notify-only: email has
// no button or document-push capability, so it does not implement the
// interactive interface.
type Channel struct {
	cfg    config.EmailConfig
	ses    SESService
	logger logger.Logger
}

func New(cfg config.EmailConfig, sesClient SESService, log logger.Logger) *Channel {
	return &Channel{
		cfg:    cfg,
		ses:    sesClient,
		logger: log.WithFields(map[string]interface{}{"channel": models.ChannelEmail}),
	}
}

func (c *Channel) Name() string {
	return models.ChannelEmail
}

func (c *Channel) Enabled() bool {
	return c.cfg.Enabled && c.cfg.FromEmail != ""
}

func (c *Channel) SendMessage(ctx context.Context, recipientID, text string) channels.SendResult {
	return c.send(ctx, recipientID, "Alerta de contratacion", text)
}

// SendMessageWithButtons degrades to a plain send: the keyboard cannot be
// represented in email.
func (c *Channel) SendMessageWithButtons(ctx context.Context, recipientID, text string, _ *channels.Keyboard) channels.SendResult {
	return c.SendMessage(ctx, recipientID, text)
}

func (c *Channel) SendToSubscriber(ctx context.Context, sub *models.Subscription, ann *models.Announcement, matchedKeywords []string) channels.SendResult {
	subject := channels.FormatSubject(ann)
	body := channels.FormatAnnouncement(sub, ann, matchedKeywords)
	return c.send(ctx, sub.RecipientID, subject, body)
}

func (c *Channel) send(ctx context.Context, to, subject, body string) channels.SendResult {
	_, err := c.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(c.cfg.FromEmail),
	})
	if err != nil {
		return channels.Failf("ses send failed: %v", err)
	}
	return channels.Ok("sent")
}
