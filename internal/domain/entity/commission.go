package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionStatus is the payout state of a commission
type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "pending"
	CommissionApproved CommissionStatus = "approved"
	CommissionPaid     CommissionStatus = "paid"
	CommissionRejected CommissionStatus = "rejected"
	CommissionOnHold   CommissionStatus = "on_hold"
)

var commissionTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionPending:  {CommissionApproved, CommissionRejected, CommissionOnHold},
	CommissionApproved: {CommissionPaid, CommissionRejected, CommissionOnHold},
	CommissionOnHold:   {CommissionPending},
	CommissionPaid:     {},
	CommissionRejected: {},
}

// CanTransitionTo returns true if the edge s → target exists
func (s CommissionStatus) CanTransitionTo(target CommissionStatus) bool {
	for _, t := range commissionTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsValid returns true if the status is a recognized commission status
func (s CommissionStatus) IsValid() bool {
	_, ok := commissionTransitions[s]
	return ok
}

// PayoutDetails describes how a commission was paid to the agent
type PayoutDetails struct {
	Method         string `json:"method" bson:"method"`
	TransactionRef string `json:"transactionRef,omitempty" bson:"transactionRef,omitempty"`
	Notes          string `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Commission is an agent's earning on one completed booking
type Commission struct {
	ID               string           `json:"id" bson:"_id,omitempty"`
	Reference        string           `json:"reference" bson:"reference"`
	BookingID        string           `json:"bookingId" bson:"bookingId"`
	BookingReference string           `json:"bookingReference" bson:"bookingReference"`
	AgentID          string           `json:"agentId" bson:"agentId"`
	CustomerID       string           `json:"customerId" bson:"customerId"`
	BookingAmount    decimal.Decimal  `json:"bookingAmount" bson:"bookingAmount"`
	Tier             string           `json:"tier" bson:"tier"`
	CommissionRate   decimal.Decimal  `json:"commissionRate" bson:"commissionRate"`
	CommissionAmount decimal.Decimal  `json:"commissionAmount" bson:"commissionAmount"`
	BonusAmount      decimal.Decimal  `json:"bonusAmount" bson:"bonusAmount"`
	TotalEarning     decimal.Decimal  `json:"totalEarning" bson:"totalEarning"`
	Status           CommissionStatus `json:"status" bson:"status"`
	ApprovedBy       string           `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`
	ApprovedAt       *time.Time       `json:"approvedAt,omitempty" bson:"approvedAt,omitempty"`
	PaidBy           string           `json:"paidBy,omitempty" bson:"paidBy,omitempty"`
	PaidAt           *time.Time       `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	Payout           *PayoutDetails   `json:"payout,omitempty" bson:"payout,omitempty"`
	StatusReason     string           `json:"statusReason,omitempty" bson:"statusReason,omitempty"`
	CreatedAt        time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// Transition moves the commission along a legal edge
func (c *Commission) Transition(to CommissionStatus, at time.Time) error {
	if !c.Status.CanTransitionTo(to) {
		return &TransitionError{Entity: "commission", From: string(c.Status), To: string(to)}
	}
	c.Status = to
	c.UpdatedAt = at
	return nil
}

// CommissionTier maps a booking amount bracket to a default rate.
// A nil MaxAmount means the bracket is open ended.
type CommissionTier struct {
	Name      string           `json:"name"`
	MinAmount decimal.Decimal  `json:"minAmount"`
	MaxAmount *decimal.Decimal `json:"maxAmount,omitempty"`
	Rate      decimal.Decimal  `json:"rate"`
	SortOrder int              `json:"sortOrder"`
}

// Contains reports whether amount lies in [MinAmount, MaxAmount]
func (t CommissionTier) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(t.MinAmount) {
		return false
	}
	return t.MaxAmount == nil || amount.LessThanOrEqual(*t.MaxAmount)
}

// FallbackTierName and FallbackTierRate apply when no bracket matches
const FallbackTierName = "standard"

var FallbackTierRate = decimal.NewFromInt(10)

// DefaultCommissionTiers seeds the tier table
func DefaultCommissionTiers() []CommissionTier {
	upTo := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}
	return []CommissionTier{
		{Name: "junior", MinAmount: decimal.Zero, MaxAmount: upTo("999.99"), Rate: decimal.NewFromInt(5), SortOrder: 1},
		{Name: "standard", MinAmount: decimal.NewFromInt(1000), MaxAmount: upTo("4999.99"), Rate: decimal.NewFromInt(10), SortOrder: 2},
		{Name: "senior", MinAmount: decimal.NewFromInt(5000), MaxAmount: upTo("9999.99"), Rate: decimal.RequireFromString("12.5"), SortOrder: 3},
		{Name: "premium", MinAmount: decimal.NewFromInt(10000), Rate: decimal.NewFromInt(15), SortOrder: 4},
	}
}
