package repository

import "context"

// MailRepository defines the interface for outbound e-mail
type MailRepository interface {
	Send(ctx context.Context, to, subject, body string) error
}
