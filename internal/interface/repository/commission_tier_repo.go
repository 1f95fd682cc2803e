package repository

import (
	"context"
	"time"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormCommissionTierRepository implements the CommissionTierRepository interface
type GormCommissionTierRepository struct {
	db *gorm.DB
}

// NewGormCommissionTierRepository creates a new GORM commission tier repository
func NewGormCommissionTierRepository(db *gorm.DB) repository.CommissionTierRepository {
	return &GormCommissionTierRepository{
		db: db,
	}
}

// CommissionTiers GORM model for database mapping
type CommissionTiers struct {
	ID        uint                `gorm:"primaryKey"`
	Name      string              `gorm:"column:name;unique"`
	MinAmount decimal.Decimal     `gorm:"column:min_amount;type:numeric(14,2);not null"`
	MaxAmount decimal.NullDecimal `gorm:"column:max_amount;type:numeric(14,2)"`
	Rate      decimal.Decimal     `gorm:"column:rate;type:numeric(5,2);not null"`
	SortOrder int                 `gorm:"column:sort_order"`
	Active    bool                `gorm:"column:active;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name
func (CommissionTiers) TableName() string {
	return "m_commission_tiers"
}

// ListActive returns active tiers ordered by sort order then minimum amount
func (r *GormCommissionTierRepository) ListActive(ctx context.Context) ([]entity.CommissionTier, error) {
	var rows []CommissionTiers
	result := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order ASC").
		Order("min_amount ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	tiers := make([]entity.CommissionTier, 0, len(rows))
	for _, row := range rows {
		tier := entity.CommissionTier{
			Name:      row.Name,
			MinAmount: row.MinAmount,
			Rate:      row.Rate,
			SortOrder: row.SortOrder,
		}
		if row.MaxAmount.Valid {
			upper := row.MaxAmount.Decimal
			tier.MaxAmount = &upper
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

// MigrateMasterData creates the master tables and seeds the default tiers into an empty tier table
func MigrateMasterData(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&Agents{}, &CommissionTiers{}); err != nil {
		return err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&CommissionTiers{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, tier := range entity.DefaultCommissionTiers() {
		row := CommissionTiers{
			Name:      tier.Name,
			MinAmount: tier.MinAmount,
			Rate:      tier.Rate,
			SortOrder: tier.SortOrder,
			Active:    true,
		}
		if tier.MaxAmount != nil {
			row.MaxAmount = decimal.NewNullDecimal(*tier.MaxAmount)
		}
		if err := db.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
