package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendMailer sends through the Resend API.
type ResendMailer struct {
	client    *resend.Client
	fromEmail string
	logger    *zap.Logger
}

func NewResendMailer(apiKey, fromEmail string, logger *zap.Logger) *ResendMailer {
	return &ResendMailer{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		logger:    logger,
	}
}

func (m *ResendMailer) Deliver(ctx context.Context, fromName, to, subject, html string) error {
	from := m.fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, m.fromEmail)
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.Debug("📧 email sent", zap.String("id", sent.Id), zap.String("subject", subject))
	return nil
}

// New picks Resend when an API key is configured and falls back to
// logging otherwise.
func New(apiKey, fromEmail string, logger *zap.Logger) Mailer {
	if apiKey == "" {
		logger.Warn("⚠️  RESEND_API_KEY not set, emails will only be logged")
		return NewLogMailer(logger)
	}
	return NewResendMailer(apiKey, fromEmail, logger)
}
