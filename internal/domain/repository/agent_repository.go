package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
)

// AgentRepository defines the interface for agent operations
type AgentRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Agent, error)
	// AddEarnings atomically increments the agent's cumulative earnings
	AddEarnings(ctx context.Context, id string, amount decimal.Decimal) error
}
