package repository

import "context"

// WhatsappRepository defines the interface for WhatsApp operations
type WhatsappRepository interface {
	// SendText queues a text message and returns the messaging service task id
	SendText(ctx context.Context, phone, text string) (string, error)
}
