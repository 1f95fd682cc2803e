package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"tripdesk-service/pkg/utils"
)

// SystemActor is recorded on transitions the engine makes on its own
const SystemActor = "system"

// Pricing holds the caller-controlled price components of a booking
type Pricing struct {
	BasePrice     decimal.Decimal `json:"basePrice" bson:"basePrice"`
	Taxes         decimal.Decimal `json:"taxes" bson:"taxes"`
	ServiceCharge decimal.Decimal `json:"serviceCharge" bson:"serviceCharge"`
	Discount      decimal.Decimal `json:"discount" bson:"discount"`
}

// Total is basePrice + taxes + serviceCharge − discount
func (p Pricing) Total() decimal.Decimal {
	return utils.RoundMoney(p.BasePrice.Add(p.Taxes).Add(p.ServiceCharge).Sub(p.Discount))
}

// Validate rejects negative components and a discount larger than the subtotal
func (p Pricing) Validate() error {
	if p.BasePrice.IsNegative() || p.Taxes.IsNegative() || p.ServiceCharge.IsNegative() || p.Discount.IsNegative() {
		return InvalidInput("price components must not be negative")
	}
	if p.Total().IsNegative() {
		return InvalidInput("discount exceeds subtotal")
	}
	return nil
}

// StatusChange is one entry of the append-only status history
type StatusChange struct {
	Status    BookingStatus `json:"status" bson:"status"`
	ChangedAt time.Time     `json:"changedAt" bson:"changedAt"`
	ChangedBy string        `json:"changedBy" bson:"changedBy"`
	Reason    string        `json:"reason,omitempty" bson:"reason,omitempty"`
}

// Cancellation records who cancelled a booking and why
type Cancellation struct {
	CancelledAt time.Time `json:"cancelledAt" bson:"cancelledAt"`
	CancelledBy string    `json:"cancelledBy" bson:"cancelledBy"`
	Reason      string    `json:"reason,omitempty" bson:"reason,omitempty"`
}

// Booking is a customer's trip sold by an agent
type Booking struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Reference   string    `json:"reference" bson:"reference"`
	AgentID     string    `json:"agentId" bson:"agentId"`
	CustomerID  string    `json:"customerId" bson:"customerId"`
	Destination string    `json:"destination" bson:"destination"`
	StartDate   time.Time `json:"startDate" bson:"startDate"`
	EndDate     time.Time `json:"endDate" bson:"endDate"`
	Nights      int       `json:"nights" bson:"nights"`
	Travelers   int       `json:"travelers" bson:"travelers"`
	Currency    string    `json:"currency" bson:"currency"`
	Notes       string    `json:"notes,omitempty" bson:"notes,omitempty"`

	Pricing     `bson:",inline"`
	TotalAmount decimal.Decimal `json:"totalAmount" bson:"totalAmount"`

	AmountPaid     decimal.Decimal `json:"amountPaid" bson:"amountPaid"`
	AmountDue      decimal.Decimal `json:"amountDue" bson:"amountDue"`
	RefundedAmount decimal.Decimal `json:"refundedAmount" bson:"refundedAmount"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus" bson:"paymentStatus"`

	Status        BookingStatus  `json:"status" bson:"status"`
	StatusHistory []StatusChange `json:"statusHistory" bson:"statusHistory"`
	Cancellation  *Cancellation  `json:"cancellation,omitempty" bson:"cancellation,omitempty"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty" bson:"completedAt,omitempty"`

	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Recalculate derives totalAmount, amountDue, nights and paymentStatus from stored fields.
// Every read and write path calls it.
func (b *Booking) Recalculate() {
	b.TotalAmount = b.Pricing.Total()
	b.AmountPaid = utils.RoundMoney(b.AmountPaid)
	b.AmountDue = b.TotalAmount.Sub(b.AmountPaid)
	b.Nights = utils.NightsBetween(b.StartDate, b.EndDate)
	b.PaymentStatus = b.derivePaymentStatus()
}

func (b *Booking) derivePaymentStatus() PaymentStatus {
	switch {
	case b.AmountPaid.Sign() <= 0:
		if b.RefundedAmount.Sign() > 0 {
			return PaymentRefunded
		}
		return PaymentUnpaid
	case b.AmountPaid.GreaterThanOrEqual(b.TotalAmount):
		return PaymentPaid
	default:
		return PaymentPartiallyPaid
	}
}

// ApplyPricing replaces the price components and recomputes derived amounts
func (b *Booking) ApplyPricing(p Pricing) {
	b.Pricing = Pricing{
		BasePrice:     utils.RoundMoney(p.BasePrice),
		Taxes:         utils.RoundMoney(p.Taxes),
		ServiceCharge: utils.RoundMoney(p.ServiceCharge),
		Discount:      utils.RoundMoney(p.Discount),
	}
	b.Recalculate()
}

// RecordPayment adds a completed charge
func (b *Booking) RecordPayment(amount decimal.Decimal) {
	b.AmountPaid = b.AmountPaid.Add(amount)
	b.Recalculate()
}

// RecordRefund subtracts a refund
func (b *Booking) RecordRefund(amount decimal.Decimal) {
	b.AmountPaid = b.AmountPaid.Sub(amount)
	b.RefundedAmount = b.RefundedAmount.Add(amount)
	b.Recalculate()
}

// Transition moves the booking along a legal edge and appends to its history
func (b *Booking) Transition(to BookingStatus, actor, reason string, at time.Time) error {
	if !b.Status.CanTransitionTo(to) {
		return &TransitionError{Entity: "booking", From: string(b.Status), To: string(to)}
	}
	b.Status = to
	b.StatusHistory = append(b.StatusHistory, StatusChange{
		Status:    to,
		ChangedAt: at,
		ChangedBy: actor,
		Reason:    reason,
	})

	switch to {
	case BookingCancelled:
		b.Cancellation = &Cancellation{CancelledAt: at, CancelledBy: actor, Reason: reason}
	case BookingPending:
		// reopened
		b.Cancellation = nil
	case BookingCompleted:
		completedAt := at
		b.CompletedAt = &completedAt
	}
	b.UpdatedAt = at
	return nil
}

// Overlaps reports whether b occupies any day of [start, end]
func (b *Booking) Overlaps(start, end time.Time) bool {
	return utils.RangesOverlap(b.StartDate, b.EndDate, start, end)
}

// Clone returns a deep copy, so callers can restore state after a failed write
func (b *Booking) Clone() *Booking {
	c := *b
	c.StatusHistory = append([]StatusChange(nil), b.StatusHistory...)
	if b.Cancellation != nil {
		cancellation := *b.Cancellation
		c.Cancellation = &cancellation
	}
	if b.CompletedAt != nil {
		completedAt := *b.CompletedAt
		c.CompletedAt = &completedAt
	}
	return &c
}
