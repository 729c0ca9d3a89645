// Package alert pushes short operator notifications (new order, new message)
// to a phone or chat channel, next to the email sent through the outbox.
package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type Provider interface {
	Publish(ctx context.Context, subject string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Publish(ctx context.Context, subject string, message string) error {
	return nil
}

// SNSPublisher is the subset of the SNS client used here.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSProvider struct {
	client   SNSPublisher
	topicARN string
}

func NewSNS(client SNSPublisher, topicARN string) *SNSProvider {
	return &SNSProvider{client: client, topicARN: topicARN}
}

// Publish sends message to the configured topic. SNS caps subjects at 100
// characters.
func (p *SNSProvider) Publish(ctx context.Context, subject string, message string) error {
	if p.topicARN == "" {
		return fmt.Errorf("sns publish: empty topic arn")
	}
	subject = strings.TrimSpace(subject)
	if len([]rune(subject)) > 100 {
		subject = string([]rune(subject)[:100])
	}
	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(message),
	}
	if subject != "" {
		input.Subject = aws.String(subject)
	}
	if _, err := p.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish to %s: %w", p.topicARN, err)
	}
	return nil
}
