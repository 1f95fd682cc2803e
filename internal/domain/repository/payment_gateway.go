package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
)

// ChargeRequest is sent to the payment gateway
type ChargeRequest struct {
	TransactionID string
	BookingRef    string
	Amount        decimal.Decimal
	Currency      string
	Method        entity.PaymentMethod
}

// ChargeResult is the gateway outcome. Approved=false is a decline, not an error.
type ChargeResult struct {
	Approved         bool
	GatewayReference string
	DeclineReason    string
}

// PaymentGateway defines the interface for charging customers
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
