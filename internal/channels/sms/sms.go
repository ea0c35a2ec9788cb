// internal/channels/sms/sms.go
package sms

import (
	"context"
	"fmt"

	"tender-alerts/internal/channels"
	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Carriers reject long SMS bodies; keep the alert to the headline fields.
const maxSMSLength = 480

// SNSService is the slice of the SNS API this channel needs; defined here
// for mocking.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Channel delivers notifications over SMS via SNS. Notify-only.
type Channel struct {
	cfg    config.SMSConfig
	sns    SNSService
	logger logger.Logger
}

func New(cfg config.SMSConfig, snsClient SNSService, log logger.Logger) *Channel {
	return &Channel{
		cfg:    cfg,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"channel": models.ChannelSMS}),
	}
}

func (c *Channel) Name() string {
	return models.ChannelSMS
}

func (c *Channel) Enabled() bool {
	return c.cfg.Enabled
}

func (c *Channel) SendMessage(ctx context.Context, recipientID, text string) channels.SendResult {
	if len(text) > maxSMSLength {
		text = text[:maxSMSLength]
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(recipientID),
		Message:     aws.String(text),
	}
	if c.cfg.SenderID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(c.cfg.SenderID),
			},
		}
	}

	if _, err := c.sns.Publish(ctx, input); err != nil {
		return channels.Failf("sns publish failed: %v", err)
	}
	return channels.Ok("sent")
}

func (c *Channel) SendMessageWithButtons(ctx context.Context, recipientID, text string, _ *channels.Keyboard) channels.SendResult {
	return c.SendMessage(ctx, recipientID, text)
}

func (c *Channel) SendToSubscriber(ctx context.Context, sub *models.Subscription, ann *models.Announcement, matchedKeywords []string) channels.SendResult {
	text := fmt.Sprintf("%s | Proceso %s | %s",
		channels.FormatSubject(ann), ann.ProcessID, ann.Entity)
	return c.SendMessage(ctx, sub.RecipientID, text)
}
