package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

// sesAPI is the slice of the SES v2 client we use.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends email through Amazon SES v2. When the email feature is
// disabled it logs the message instead, so local development works
// without AWS credentials.
type SESMailer struct {
	api sesAPI
	cfg config.EmailConfig
}

// NewSESMailer creates a mailer backed by the given SES client. api may
// be nil only when cfg.Enabled is false.
func NewSESMailer(api sesAPI, cfg config.EmailConfig) *SESMailer {
	return &SESMailer{api: api, cfg: cfg}
}

// Send delivers a single HTML email from the configured sender identity.
func (m *SESMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	return m.SendCampaign(ctx, m.cfg.FromName, m.cfg.FromEmail, to, subject, htmlBody)
}

// SendCampaign delivers a single HTML email with an explicit from
// identity, used by campaign sends where the from address is authored
// per campaign.
func (m *SESMailer) SendCampaign(ctx context.Context, fromName, fromEmail, to, subject, htmlBody string) error {
	if !m.cfg.Enabled {
		logger.Info("email disabled, skipping send", "to", to, "subject", subject)
		return nil
	}
	if fromEmail == "" {
		fromEmail = m.cfg.FromEmail
	}
	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}

	_, err := m.api.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", logger.RedactEmail(to), err)
	}
	return nil
}
