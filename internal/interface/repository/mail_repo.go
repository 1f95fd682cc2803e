package repository

import (
	"context"
	"fmt"

	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"

	"gopkg.in/gomail.v2"
)

// SMTPMailRepository sends plain text e-mail over SMTP
type SMTPMailRepository struct {
	dialer *gomail.Dialer
	from   string
	logger logger.Logger
}

// NewSMTPMailRepository creates a new SMTP mail repository
func NewSMTPMailRepository(host string, port int, user, password, from string, logger logger.Logger) repository.MailRepository {
	return &SMTPMailRepository{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
		logger: logger,
	}
}

// Send delivers one message. gomail has no context support; ctx is checked before dialing.
func (r *SMTPMailRepository) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", r.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := r.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	r.logger.Debug("Mail sent", "to", to, "subject", subject)
	return nil
}
