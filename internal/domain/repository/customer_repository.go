package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
)

// CustomerRepository defines the interface for customer operations
type CustomerRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Customer, error)
	// RecordCompletedTrip increments trip count, spend and loyalty points
	RecordCompletedTrip(ctx context.Context, id string, amount decimal.Decimal, points int64, at time.Time) error
}
