package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
)

// PaymentRepository defines the interface for payment storage operations
type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id string) (*entity.Payment, error)
	FindByBooking(ctx context.Context, bookingID string) ([]*entity.Payment, error)
	// FindRecentCompleted returns completed payments for the booking with exactly
	// this amount created at or after since, newest first
	FindRecentCompleted(ctx context.Context, bookingID string, amount decimal.Decimal, since time.Time) ([]*entity.Payment, error)
	// UpdateStatus moves a payment from one status to another and sets the given fields.
	// A payment not in from returns entity.ErrConcurrentModification.
	UpdateStatus(ctx context.Context, payment *entity.Payment, from entity.TransactionStatus) error
	// FindStaleProcessing returns payments in processing created before cutoff
	FindStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Payment, error)
}
