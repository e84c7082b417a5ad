// Package notify delivers application lifecycle events over SNS and SES.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"filing-automation/internal/automation"
	commonaws "filing-automation/internal/common/aws"
	"filing-automation/internal/common/config"
	"filing-automation/internal/common/logger"
	"filing-automation/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSNotifier publishes events as JSON to a topic.
type SNSNotifier struct {
	client   *commonaws.SNSClient
	topicARN string
}

func NewSNSNotifier(client *commonaws.SNSClient, topicARN string) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN}
}

func (n *SNSNotifier) Notify(ctx context.Context, event models.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject, _ := render(event)
	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(truncate(subject, 100)),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(event.Type)},
			"status":    {DataType: aws.String("String"), StringValue: aws.String(string(event.Status))},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// SESNotifier emails the configured operations mailboxes.
type SESNotifier struct {
	client *commonaws.SESClient
	from   string
	to     []string
}

func NewSESNotifier(client *commonaws.SESClient, from string, to []string) *SESNotifier {
	return &SESNotifier{client: client, from: from, to: append([]string(nil), to...)}
}

func (n *SESNotifier) Notify(ctx context.Context, event models.NotificationEvent) error {
	if len(n.to) == 0 {
		return nil
	}
	subject, body := render(event)
	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{ToAddresses: n.to},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.from),
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []automation.Notifier

func (m Multi) Notify(ctx context.Context, event models.NotificationEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop drops every event.
type Noop struct{}

func (Noop) Notify(context.Context, models.NotificationEvent) error { return nil }

// New builds the notifier described by cfg. Disabled or empty configurations yield Noop.
func New(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (automation.Notifier, error) {
	if !cfg.Enabled || (!cfg.SNS.Enabled && !cfg.SES.Enabled) {
		return Noop{}, nil
	}

	awsCfg, err := commonaws.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	var out Multi
	if cfg.SNS.Enabled {
		out = append(out, NewSNSNotifier(commonaws.NewSNSClient(awsCfg), cfg.SNS.TopicARN))
	}
	if cfg.SES.Enabled {
		out = append(out, NewSESNotifier(commonaws.NewSESClient(awsCfg), cfg.SES.FromEmail, cfg.SES.To))
	}
	if log != nil {
		log.Info("notifications enabled", map[string]interface{}{
			"sns":    cfg.SNS.Enabled,
			"ses":    cfg.SES.Enabled,
			"region": cfg.Region,
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
