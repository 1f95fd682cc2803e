package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType classifies a payment against the booking balance at processing time
type PaymentType string

const (
	PaymentTypeFull    PaymentType = "full"
	PaymentTypePartial PaymentType = "partial"
	PaymentTypeAdvance PaymentType = "advance"
	PaymentTypeBalance PaymentType = "balance"
	PaymentTypeRefund  PaymentType = "refund"
)

// TransactionStatus is the state of a single payment record
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionProcessing TransactionStatus = "processing"
	TransactionCompleted  TransactionStatus = "completed"
	TransactionFailed     TransactionStatus = "failed"
	TransactionRefunded   TransactionStatus = "refunded"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:    {TransactionProcessing, TransactionFailed},
	TransactionProcessing: {TransactionCompleted, TransactionFailed},
	TransactionCompleted:  {TransactionRefunded},
	TransactionFailed:     {},
	TransactionRefunded:   {},
}

// CanTransitionTo returns true if the edge s → target exists
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	for _, t := range transactionTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// PaymentMethod is how the customer paid
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodDebitCard    PaymentMethod = "debit_card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOnline       PaymentMethod = "online"
)

// ParsePaymentMethod converts a string to a PaymentMethod
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodBankTransfer, MethodOnline:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, s)
}

// Payment is one charge attempt or refund against a booking.
// Refunds are separate records with a negative amount.
type Payment struct {
	ID                    string            `json:"id" bson:"_id,omitempty"`
	TransactionID         string            `json:"transactionId" bson:"transactionId"`
	BookingID             string            `json:"bookingId" bson:"bookingId"`
	BookingReference      string            `json:"bookingReference" bson:"bookingReference"`
	AgentID               string            `json:"agentId" bson:"agentId"`
	CustomerID            string            `json:"customerId" bson:"customerId"`
	Amount                decimal.Decimal   `json:"amount" bson:"amount"`
	Currency              string            `json:"currency" bson:"currency"`
	Method                PaymentMethod     `json:"method" bson:"method"`
	Type                  PaymentType       `json:"type" bson:"type"`
	Status                TransactionStatus `json:"status" bson:"status"`
	ReceiptNumber         string            `json:"receiptNumber,omitempty" bson:"receiptNumber,omitempty"`
	GatewayReference      string            `json:"gatewayReference,omitempty" bson:"gatewayReference,omitempty"`
	FailureReason         string            `json:"failureReason,omitempty" bson:"failureReason,omitempty"`
	OriginalTransactionID string            `json:"originalTransactionId,omitempty" bson:"originalTransactionId,omitempty"`
	RefundReason          string            `json:"refundReason,omitempty" bson:"refundReason,omitempty"`
	ProcessedBy           string            `json:"processedBy" bson:"processedBy"`
	AppliedAt             *time.Time        `json:"appliedAt,omitempty" bson:"appliedAt,omitempty"`
	CompletedAt           *time.Time        `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	RefundedAt            *time.Time        `json:"refundedAt,omitempty" bson:"refundedAt,omitempty"`
	CreatedAt             time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// IsRefund reports whether this record offsets an earlier payment
func (p *Payment) IsRefund() bool {
	return p.Type == PaymentTypeRefund
}

// DerivePaymentType classifies amount against the booking balance before it is applied:
// full if it equals the total, advance if nothing is paid yet, balance if it settles
// the remainder, otherwise partial.
func DerivePaymentType(amount, totalAmount, amountPaid, amountDue decimal.Decimal) PaymentType {
	switch {
	case amount.Equal(totalAmount):
		return PaymentTypeFull
	case amountPaid.IsZero():
		return PaymentTypeAdvance
	case amount.Equal(amountDue):
		return PaymentTypeBalance
	default:
		return PaymentTypePartial
	}
}
