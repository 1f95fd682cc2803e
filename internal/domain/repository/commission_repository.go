package repository

import (
	"context"

	"tripdesk-service/internal/domain/entity"
)

// CommissionFilter narrows commission listings. Empty fields are ignored.
type CommissionFilter struct {
	AgentID string
	Status  entity.CommissionStatus
	Limit   int
	Offset  int
}

// CommissionRepository defines the interface for commission storage operations
type CommissionRepository interface {
	// Create inserts a commission. A second commission for the same booking
	// returns entity.ErrDuplicateKey.
	Create(ctx context.Context, commission *entity.Commission) error
	FindByID(ctx context.Context, id string) (*entity.Commission, error)
	FindByBookingID(ctx context.Context, bookingID string) (*entity.Commission, error)
	// UpdateStatus persists a status change if the stored status still equals from
	UpdateStatus(ctx context.Context, commission *entity.Commission, from entity.CommissionStatus) error
	List(ctx context.Context, filter CommissionFilter) ([]*entity.Commission, error)
}

// CommissionTierRepository defines the interface for commission tier lookups
type CommissionTierRepository interface {
	// ListActive returns active tiers ordered by SortOrder then MinAmount
	ListActive(ctx context.Context) ([]entity.CommissionTier, error)
}
