package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESMailer sends email through Amazon SES v2.
type SESMailer struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
}

// NewSESMailer builds an SES-backed mailer. fromEmail must be a verified
// SES identity.
func NewSESMailer(ctx context.Context, region, fromEmail, fromName string) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &SESMailer{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

func (m *SESMailer) SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	fromAddress := m.fromEmail
	if m.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send to %s: %w", to, err)
	}
	return nil
}

// DisabledMailer logs sends instead of delivering them. Used when
// SES_FROM_EMAIL is not configured, so dev environments work end to end.
type DisabledMailer struct {
	Logger *slog.Logger
}

func (m *DisabledMailer) SendEmail(ctx context.Context, to, subject, _, _ string) error {
	m.Logger.InfoContext(ctx, "email sending disabled, skipping",
		"to", to,
		"subject", subject,
	)
	return nil
}
