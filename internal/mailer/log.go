package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer implements Mailer by logging instead of sending. It stands in
// for Resend in development when no API key is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Deliver(ctx context.Context, fromName, to, subject, html string) error {
	m.logger.Info("📧 [dev mode] email not sent",
		zap.String("from", fromName),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("html_bytes", len(html)),
	)
	return nil
}
