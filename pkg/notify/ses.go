package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// DefaultSubject is the subject line of notification e-mails
const DefaultSubject = "Site administrator deactivated"

// SESAPI is the part of the SES client the publisher uses
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESConfig configures e-mail delivery through Amazon SES
type SESConfig struct {
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	From       string
	Recipients []string
	Subject    string
}

// NewSESClient builds an SES client from the default AWS credential chain,
// or from static keys when both are configured
func NewSESClient(ctx context.Context, cfg SESConfig) (*ses.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// SESPublisher e-mails each message to a fixed recipient list
type SESPublisher struct {
	client     SESAPI
	from       string
	recipients []string
	subject    string
}

// NewSESPublisher creates an SESPublisher
func NewSESPublisher(client SESAPI, cfg SESConfig) (*SESPublisher, error) {
	if cfg.From == "" {
		return nil, errors.New("SES sender address is required")
	}
	if len(cfg.Recipients) == 0 {
		return nil, errors.New("at least one SES recipient is required")
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	return &SESPublisher{
		client:     client,
		from:       cfg.From,
		recipients: append([]string(nil), cfg.Recipients...),
		subject:    subject,
	}, nil
}

// Name implements Publisher
func (p *SESPublisher) Name() string {
	return "ses"
}

// Publish implements Publisher
func (p *SESPublisher) Publish(ctx context.Context, message string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(p.from),
		Destination: &types.Destination{
			ToAddresses: p.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(p.subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(message),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := p.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
