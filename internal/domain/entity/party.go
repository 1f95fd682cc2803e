package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Actor is the already-authenticated caller of an engine operation
type Actor struct {
	ID string
	// CanViewAll is the coarse elevated capability supplied by the authorization layer
	CanViewAll bool
}

// Agent is a sales agent earning commissions
type Agent struct {
	ID             string
	Name           string
	Email          string
	CommissionRate *decimal.Decimal
	TotalEarnings  decimal.Decimal
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Customer is a traveller owned by one agent
type Customer struct {
	ID            string          `json:"id" bson:"_id,omitempty"`
	AgentID       string          `json:"agentId" bson:"agentId"`
	Name          string          `json:"name" bson:"name"`
	Email         string          `json:"email" bson:"email"`
	Phone         string          `json:"phone" bson:"phone"`
	TotalTrips    int             `json:"totalTrips" bson:"totalTrips"`
	TotalSpent    decimal.Decimal `json:"totalSpent" bson:"totalSpent"`
	LoyaltyPoints int64           `json:"loyaltyPoints" bson:"loyaltyPoints"`
	LastTripAt    *time.Time      `json:"lastTripAt,omitempty" bson:"lastTripAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// LoyaltyPointsFor awards one point per 100 currency units spent
func LoyaltyPointsFor(amount decimal.Decimal) int64 {
	if amount.Sign() <= 0 {
		return 0
	}
	return amount.Div(decimal.NewFromInt(100)).Floor().IntPart()
}
