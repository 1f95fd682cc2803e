package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
)

func TestCreateBookingDerivesAmounts(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	b, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)

	assert.True(t, b.TotalAmount.Equal(dec("1050")), "total %s", b.TotalAmount)
	assert.True(t, b.AmountDue.Equal(dec("1050")))
	assert.Equal(t, entity.BookingPending, b.Status)
	assert.Equal(t, entity.PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, 7, b.Nights)
	assert.Equal(t, "agent-1", b.AgentID)
	assert.Equal(t, "USD", b.Currency)
	assert.Equal(t, "BK-20260301-000001", b.Reference)
	require.Len(t, b.StatusHistory, 1)
	assert.Equal(t, entity.BookingPending, b.StatusHistory[0].Status)
	assert.Equal(t, []entity.EventType{entity.EventBookingCreated}, e.events.types())
}

func TestCreateBookingAsDraft(t *testing.T) {
	e := newEngine()
	in := bookingInput("Bali", "2026-05-01", "2026-05-08")
	in.Status = entity.BookingDraft

	b, err := e.lifecycle.CreateBooking(context.Background(), in, agentOne)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingDraft, b.Status)

	in.Status = entity.BookingConfirmed
	_, err = e.lifecycle.CreateBooking(context.Background(), in, agentOne)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	in := bookingInput("Bali", "2026-05-08", "2026-05-01")
	_, err := e.lifecycle.CreateBooking(ctx, in, agentOne)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	in = bookingInput("Bali", "2026-05-01", "2026-05-08")
	in.Pricing.Discount = dec("5000")
	_, err = e.lifecycle.CreateBooking(ctx, in, agentOne)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	in = bookingInput("  ", "2026-05-01", "2026-05-08")
	_, err = e.lifecycle.CreateBooking(ctx, in, agentOne)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestCreateBookingOwnership(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentTwo)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	b, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), backOffice)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", b.AgentID)

	in := bookingInput("Bali", "2026-05-01", "2026-05-08")
	in.CustomerID = "nobody"
	_, err = e.lifecycle.CreateBooking(ctx, in, backOffice)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCreateBookingConflicts(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	first, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)

	cases := []struct {
		name        string
		destination string
		start, end  string
		conflict    bool
	}{
		{"inside", "Bali", "2026-05-03", "2026-05-04", true},
		{"covering", "Bali", "2026-04-20", "2026-05-20", true},
		{"shares last day", "Bali", "2026-05-08", "2026-05-12", true},
		{"shares first day", "Bali", "2026-04-25", "2026-05-01", true},
		{"day after", "Bali", "2026-05-09", "2026-05-12", false},
		{"other destination", "Lombok", "2026-05-03", "2026-05-04", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conflicts, err := e.lifecycle.ListBookingConflicts(ctx, "cust-1", tc.destination, date(tc.start), date(tc.end), "", agentOne)
			require.NoError(t, err)
			if !tc.conflict {
				assert.Empty(t, conflicts)
				return
			}
			require.Len(t, conflicts, 1)
			assert.Equal(t, first.ID, conflicts[0].ID)
		})
	}

	_, err = e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-08", "2026-05-12"), agentOne)
	var ce *entity.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.Equal(t, first.Reference, ce.Reference)
	assert.True(t, ce.StartDate.Equal(date("2026-05-01")))
	assert.True(t, ce.EndDate.Equal(date("2026-05-08")))

	_, err = e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-09", "2026-05-12"), agentOne)
	assert.NoError(t, err)
}

func TestCancelledBookingFreesDatesUntilReopened(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	first, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)
	_, err = e.lifecycle.UpdateBookingStatus(ctx, first.ID, entity.BookingCancelled, "customer request", agentOne)
	require.NoError(t, err)

	second, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-02", "2026-05-04"), agentOne)
	require.NoError(t, err)

	_, err = e.lifecycle.UpdateBookingStatus(ctx, first.ID, entity.BookingPending, "reopen", agentOne)
	var ce *entity.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, second.Reference, ce.Reference)

	stored, err := e.bookings.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingCancelled, stored.Status)
}

func TestConcurrentCreatesAdmitOneOverlappingBooking(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, entity.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 9, conflicts)
}

func TestUpdateBookingStatusTransitions(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	b, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)

	for _, s := range []entity.BookingStatus{entity.BookingConfirmed, entity.BookingInProgress} {
		b, err = e.lifecycle.UpdateBookingStatus(ctx, b.ID, s, "", agentOne)
		require.NoError(t, err)
	}
	assert.Equal(t, entity.BookingInProgress, b.Status)
	assert.Len(t, b.StatusHistory, 3)

	before, err := e.bookings.FindByID(ctx, b.ID)
	require.NoError(t, err)

	_, err = e.lifecycle.UpdateBookingStatus(ctx, b.ID, entity.BookingPending, "", agentOne)
	var te *entity.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "in_progress", te.From)
	assert.Equal(t, "pending", te.To)

	after, err := e.bookings.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = e.lifecycle.UpdateBookingStatus(ctx, b.ID, "archived", "", agentOne)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "in_progress", te.From)
	assert.Equal(t, "archived", te.To)

	_, err = e.lifecycle.UpdateBookingStatus(ctx, b.ID, entity.BookingCompleted, "", agentTwo)
	assert.ErrorIs(t, err, entity.ErrUnauthorized)
}

func TestCompletedCannotReturnToPending(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	b := completeBooking(t, e, bookingInput("Bali", "2026-05-01", "2026-05-08"))

	_, err := e.lifecycle.UpdateBookingStatus(ctx, b.ID, entity.BookingPending, "", agentOne)
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)

	stored, err := e.bookings.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingCompleted, stored.Status)
}

func TestCancellationRecordsMetadata(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	b, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)

	b, err = e.lifecycle.UpdateBookingStatus(ctx, b.ID, entity.BookingCancelled, "visa rejected", agentOne)
	require.NoError(t, err)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, "agent-1", b.Cancellation.CancelledBy)
	assert.Equal(t, "visa rejected", b.Cancellation.Reason)
	assert.Equal(t, e.clock.Now(), b.Cancellation.CancelledAt)
	assert.Contains(t, e.events.types(), entity.EventBookingCancelled)
}

// completeBooking drives a new booking to completed
func completeBooking(t *testing.T, e *engine, in CreateBookingInput) *entity.Booking {
	t.Helper()
	ctx := context.Background()
	b, err := e.lifecycle.CreateBooking(ctx, in, agentOne)
	require.NoError(t, err)
	for _, s := range []entity.BookingStatus{entity.BookingConfirmed, entity.BookingInProgress, entity.BookingCompleted} {
		b, err = e.lifecycle.UpdateBookingStatus(ctx, b.ID, s, "", agentOne)
		require.NoError(t, err)
	}
	return b
}

func TestCompletionCreatesCommissionAndCustomerAggregates(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	b := completeBooking(t, e, bookingInput("Bali", "2026-05-01", "2026-05-08"))
	require.NotNil(t, b.CompletedAt)

	c, err := e.commissions.FindByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "standard", c.Tier)
	assert.True(t, c.CommissionAmount.Equal(dec("105")))
	assert.True(t, c.BonusAmount.IsZero())
	assert.Equal(t, entity.CommissionPending, c.Status)

	customer, err := e.customers.FindByID(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1, customer.TotalTrips)
	assert.True(t, customer.TotalSpent.Equal(dec("1050")))
	assert.Equal(t, int64(10), customer.LoyaltyPoints)

	types := e.events.types()
	assert.Contains(t, types, entity.EventBookingCompleted)
	assert.Contains(t, types, entity.EventCommissionCreated)
}

func TestCompletionSurvivesCustomerAggregateFailure(t *testing.T) {
	e := newEngine()
	e.customers.tripErr = errors.New("customer store down")

	b := completeBooking(t, e, bookingInput("Bali", "2026-05-01", "2026-05-08"))
	assert.Equal(t, entity.BookingCompleted, b.Status)

	_, err := e.commissions.FindByBookingID(context.Background(), b.ID)
	assert.NoError(t, err)
}

func TestUpdateBooking(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	other, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-06-01", "2026-06-05"), agentOne)
	require.NoError(t, err)
	b, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)

	// Overlapping only itself is fine
	newEnd := date("2026-05-10")
	b, err = e.lifecycle.UpdateBooking(ctx, b.ID, BookingPatch{EndDate: &newEnd}, agentOne)
	require.NoError(t, err)
	assert.Equal(t, 9, b.Nights)

	intoOther := date("2026-06-02")
	_, err = e.lifecycle.UpdateBooking(ctx, b.ID, BookingPatch{EndDate: &intoOther}, agentOne)
	var ce *entity.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, other.Reference, ce.Reference)

	base := dec("2000")
	b, err = e.lifecycle.UpdateBooking(ctx, b.ID, BookingPatch{BasePrice: &base}, agentOne)
	require.NoError(t, err)
	assert.True(t, b.TotalAmount.Equal(dec("2050")))
	assert.True(t, b.AmountDue.Equal(dec("2050")))

	_, err = e.lifecycle.UpdateBooking(ctx, b.ID, BookingPatch{BasePrice: &base}, agentTwo)
	assert.ErrorIs(t, err, entity.ErrUnauthorized)
}

func TestUpdateBookingGuards(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	b, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)
	_, err = e.processor.ProcessPayment(ctx, PaymentInput{BookingID: b.ID, Amount: dec("500"), Method: entity.MethodCash}, agentOne)
	require.NoError(t, err)

	base := dec("100")
	_, err = e.lifecycle.UpdateBooking(ctx, b.ID, BookingPatch{BasePrice: &base}, agentOne)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)

	_, err = e.lifecycle.UpdateBookingStatus(ctx, b.ID, entity.BookingConfirmed, "", agentOne)
	require.NoError(t, err)

	notes := "late checkout"
	_, err = e.lifecycle.UpdateBooking(ctx, b.ID, BookingPatch{Notes: &notes}, agentOne)
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestDeleteBooking(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	pending, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)
	assert.ErrorIs(t, e.lifecycle.DeleteBooking(ctx, pending.ID, agentOne), entity.ErrInvalidState)

	in := bookingInput("Lombok", "2026-05-01", "2026-05-08")
	in.Status = entity.BookingDraft
	draft, err := e.lifecycle.CreateBooking(ctx, in, agentOne)
	require.NoError(t, err)
	assert.ErrorIs(t, e.lifecycle.DeleteBooking(ctx, draft.ID, agentTwo), entity.ErrUnauthorized)
	require.NoError(t, e.lifecycle.DeleteBooking(ctx, draft.ID, agentOne))
	_, err = e.lifecycle.GetBooking(ctx, draft.ID, agentOne)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	// A cancelled booking still holding money stays
	_, err = e.processor.ProcessPayment(ctx, PaymentInput{BookingID: pending.ID, Amount: dec("100"), Method: entity.MethodCash}, agentOne)
	require.NoError(t, err)
	_, err = e.lifecycle.UpdateBookingStatus(ctx, pending.ID, entity.BookingCancelled, "", agentOne)
	require.NoError(t, err)
	assert.ErrorIs(t, e.lifecycle.DeleteBooking(ctx, pending.ID, agentOne), entity.ErrInvalidState)
}

func TestReadsAreScopedToOwner(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	b, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)

	_, err = e.lifecycle.GetBooking(ctx, b.ID, agentTwo)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	got, err := e.lifecycle.GetBooking(ctx, b.ID, backOffice)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, got.Reference)

	mine, err := e.lifecycle.ListBookings(ctx, agentTwo, repository.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, mine)

	all, err := e.lifecycle.ListBookings(ctx, backOffice, repository.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDerivedAmountsHoldAfterEveryOperation(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	b, err := e.lifecycle.CreateBooking(ctx, bookingInput("Bali", "2026-05-01", "2026-05-08"), agentOne)
	require.NoError(t, err)

	check := func() {
		stored, err := e.bookings.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, stored.AmountDue.Equal(stored.TotalAmount.Sub(stored.AmountPaid)))
		assert.True(t, stored.TotalAmount.Equal(stored.BasePrice.Add(stored.Taxes).Add(stored.ServiceCharge).Sub(stored.Discount)))
		assert.True(t, stored.AmountPaid.Equal(e.capturedMinusRefunded(b.ID)), "paid %s", stored.AmountPaid)
	}

	check()
	p1, err := e.processor.ProcessPayment(ctx, PaymentInput{BookingID: b.ID, Amount: dec("300"), Method: entity.MethodCash}, agentOne)
	require.NoError(t, err)
	check()
	e.clock.Advance(time.Minute)
	_, err = e.processor.ProcessPayment(ctx, PaymentInput{BookingID: b.ID, Amount: dec("200"), Method: entity.MethodCreditCard}, agentOne)
	require.NoError(t, err)
	check()
	_, err = e.processor.ProcessRefund(ctx, RefundInput{PaymentID: p1.ID, Amount: ptr(dec("120")), Reason: "partial"}, agentOne)
	require.NoError(t, err)
	check()
	e.gateway.decline = true
	_, err = e.processor.ProcessPayment(ctx, PaymentInput{BookingID: b.ID, Amount: dec("50"), Method: entity.MethodOnline}, agentOne)
	require.ErrorIs(t, err, entity.ErrPaymentDeclined)
	check()
}
