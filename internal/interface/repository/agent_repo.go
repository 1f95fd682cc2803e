package repository

import (
	"context"
	"errors"
	"time"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAgentRepository implements the AgentRepository interface
type GormAgentRepository struct {
	db *gorm.DB
}

// NewGormAgentRepository creates a new GORM agent repository
func NewGormAgentRepository(db *gorm.DB) repository.AgentRepository {
	return &GormAgentRepository{
		db: db,
	}
}

// Agents GORM model for database mapping
type Agents struct {
	ID             string              `gorm:"primaryKey;size:64"`
	Name           string              `gorm:"column:name"`
	Email          string              `gorm:"column:email;unique"`
	CommissionRate decimal.NullDecimal `gorm:"column:commission_rate;type:numeric(5,2)"`
	TotalEarnings  decimal.Decimal     `gorm:"column:total_earnings;type:numeric(14,2);not null;default:0"`
	Active         bool                `gorm:"column:active;default:true"`
	DeletedAt      gorm.DeletedAt      `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName overrides the default table name
func (Agents) TableName() string {
	return "m_agents"
}

// GetByID finds an agent by ID
func (r *GormAgentRepository) GetByID(ctx context.Context, id string) (*entity.Agent, error) {
	var agent Agents
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&agent)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, entity.NotFound("agent", id)
		}
		return nil, result.Error
	}

	// Convert GORM model to domain entity
	out := &entity.Agent{
		ID:            agent.ID,
		Name:          agent.Name,
		Email:         agent.Email,
		TotalEarnings: agent.TotalEarnings,
		Active:        agent.Active,
		CreatedAt:     agent.CreatedAt,
		UpdatedAt:     agent.UpdatedAt,
	}
	if agent.CommissionRate.Valid {
		rate := agent.CommissionRate.Decimal
		out.CommissionRate = &rate
	}
	return out, nil
}

// AddEarnings increments total_earnings in a single UPDATE
func (r *GormAgentRepository) AddEarnings(ctx context.Context, id string, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&Agents{}).
		Where("id = ?", id).
		Update("total_earnings", gorm.Expr("total_earnings + ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.NotFound("agent", id)
	}
	return nil
}
