package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPricingTotal(t *testing.T) {
	p := Pricing{BasePrice: dec("1000"), Taxes: dec("100"), ServiceCharge: dec("0"), Discount: dec("50")}
	assert.True(t, p.Total().Equal(dec("1050")), "got %s", p.Total())
	require.NoError(t, p.Validate())

	p.Discount = dec("2000")
	assert.ErrorIs(t, p.Validate(), ErrInvalidInput)

	p = Pricing{BasePrice: dec("-1")}
	assert.ErrorIs(t, p.Validate(), ErrInvalidInput)
}

func TestBookingRecalculateIgnoresStoredTotal(t *testing.T) {
	b := &Booking{
		StartDate:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC),
		TotalAmount: dec("99999"),
		AmountPaid:  dec("50"),
	}
	b.ApplyPricing(Pricing{BasePrice: dec("1000"), Taxes: dec("100"), Discount: dec("50")})

	assert.True(t, b.TotalAmount.Equal(dec("1050")))
	assert.True(t, b.AmountDue.Equal(dec("1000")))
	assert.Equal(t, 7, b.Nights)
	assert.Equal(t, PaymentPartiallyPaid, b.PaymentStatus)
}

func TestBookingPaymentStatus(t *testing.T) {
	b := &Booking{}
	b.ApplyPricing(Pricing{BasePrice: dec("500")})
	assert.Equal(t, PaymentUnpaid, b.PaymentStatus)

	b.RecordPayment(dec("200"))
	assert.Equal(t, PaymentPartiallyPaid, b.PaymentStatus)

	b.RecordPayment(dec("300"))
	assert.Equal(t, PaymentPaid, b.PaymentStatus)
	assert.True(t, b.AmountDue.IsZero())

	b.RecordRefund(dec("300"))
	assert.Equal(t, PaymentPartiallyPaid, b.PaymentStatus)
	assert.True(t, b.AmountDue.Equal(dec("300")))

	b.RecordRefund(dec("200"))
	assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	assert.True(t, b.AmountDue.Equal(b.TotalAmount.Sub(b.AmountPaid)))
}

func TestBookingTransitionTable(t *testing.T) {
	all := []BookingStatus{
		BookingDraft, BookingPending, BookingConfirmed, BookingInProgress,
		BookingCompleted, BookingCancelled, BookingRefunded,
	}
	allowed := map[BookingStatus][]BookingStatus{
		BookingDraft:      {BookingPending, BookingCancelled},
		BookingPending:    {BookingConfirmed, BookingCancelled},
		BookingConfirmed:  {BookingInProgress, BookingCancelled},
		BookingInProgress: {BookingCompleted, BookingCancelled},
		BookingCompleted:  {BookingRefunded},
		BookingCancelled:  {BookingPending},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, BookingRefunded.IsTerminal())
	assert.False(t, BookingCancelled.IsTerminal())
}

func TestBookingTransitionRecordsHistory(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := &Booking{Status: BookingPending}

	require.NoError(t, b.Transition(BookingCancelled, "agent-1", "customer changed plans", at))
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, "agent-1", b.Cancellation.CancelledBy)

	require.NoError(t, b.Transition(BookingPending, "agent-1", "reopened", at))
	assert.Nil(t, b.Cancellation)
	assert.Len(t, b.StatusHistory, 2)

	err := b.Transition(BookingCompleted, "agent-1", "", at)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "pending", te.From)
	assert.Equal(t, "completed", te.To)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, BookingPending, b.Status)
	assert.Len(t, b.StatusHistory, 2)
}

func TestBookingClone(t *testing.T) {
	b := &Booking{Status: BookingDraft, StatusHistory: []StatusChange{{Status: BookingDraft}}}
	c := b.Clone()
	require.NoError(t, c.Transition(BookingPending, "a", "", time.Now()))
	assert.Len(t, b.StatusHistory, 1)
	assert.Equal(t, BookingDraft, b.Status)
}

func TestDerivePaymentType(t *testing.T) {
	cases := []struct {
		name                     string
		amount, total, paid, due string
		want                     PaymentType
	}{
		{"whole total", "1050", "1050", "0", "1050", PaymentTypeFull},
		{"first installment", "300", "1050", "0", "1050", PaymentTypeAdvance},
		{"settles remainder", "750", "1050", "300", "750", PaymentTypeBalance},
		{"middle installment", "100", "1050", "300", "750", PaymentTypePartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DerivePaymentType(dec(tc.amount), dec(tc.total), dec(tc.paid), dec(tc.due))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCommissionTierContains(t *testing.T) {
	tiers := DefaultCommissionTiers()
	assert.True(t, tiers[0].Contains(dec("999.99")))
	assert.False(t, tiers[0].Contains(dec("1000")))
	assert.True(t, tiers[1].Contains(dec("1000")))
	assert.True(t, tiers[3].Contains(dec("1000000")))
}

func TestCommissionTransitions(t *testing.T) {
	c := &Commission{Status: CommissionPending}
	require.NoError(t, c.Transition(CommissionApproved, time.Now()))
	require.NoError(t, c.Transition(CommissionPaid, time.Now()))
	assert.ErrorIs(t, c.Transition(CommissionOnHold, time.Now()), ErrInvalidTransition)
}

func TestLoyaltyPointsFor(t *testing.T) {
	assert.Equal(t, int64(10), LoyaltyPointsFor(dec("1050")))
	assert.Equal(t, int64(0), LoyaltyPointsFor(dec("99.99")))
	assert.Equal(t, int64(0), LoyaltyPointsFor(dec("-5")))
}
