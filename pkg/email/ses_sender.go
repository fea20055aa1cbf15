// Package email sends transactional mail through Amazon SES.
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const charset = "UTF-8"

// ErrDisabled is returned by senders that have no mail transport configured.
var ErrDisabled = errors.New("email delivery is not configured")

// Message is a single outgoing email. HTML is optional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Config holds the SES settings. An empty FromAddress disables sending.
type Config struct {
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	FromAddress      string
	ConfigurationSet string
}

// sesAPI is the part of the SES v2 client the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesSender struct {
	client           sesAPI
	from             string
	configurationSet string
}

// NewSESSender builds a sender from the default AWS credential chain, with
// static credentials and a custom endpoint when configured.
func NewSESSender(ctx context.Context, cfg Config) (Sender, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("ses sender requires a from address")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newSESSender(client, cfg), nil
}

func newSESSender(client sesAPI, cfg Config) *sesSender {
	return &sesSender{
		client:           client,
		from:             cfg.FromAddress,
		configurationSet: cfg.ConfigurationSet,
	}
}

func (s *sesSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", fmt.Errorf("email recipient is required")
	}

	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)},
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body:    body,
			},
		},
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return aws.ToString(out.MessageId), nil
}

// NopSender drops every message and reports ErrDisabled.
type NopSender struct{}

func (NopSender) Send(ctx context.Context, msg Message) (string, error) {
	return "", ErrDisabled
}
