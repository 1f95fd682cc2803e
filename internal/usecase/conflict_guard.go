package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/utils"
)

// DefaultDuplicatePaymentWindow is the trailing window for identical charges
const DefaultDuplicatePaymentWindow = 5 * time.Minute

// ConflictGuard detects overlapping bookings and repeated charges. It never writes.
type ConflictGuard struct {
	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRepository
	window      time.Duration
	logger      logger.Logger
	now         Clock
}

// NewConflictGuard creates a new conflict guard
func NewConflictGuard(
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	window time.Duration,
	logger logger.Logger,
) *ConflictGuard {
	if window <= 0 {
		window = DefaultDuplicatePaymentWindow
	}
	return &ConflictGuard{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		window:      window,
		logger:      logger,
		now:         systemClock,
	}
}

// WithClock replaces the time source
func (g *ConflictGuard) WithClock(clock Clock) *ConflictGuard {
	g.now = clock
	return g
}

// CheckBookingConflict returns the first date-blocking booking for the same customer and
// destination whose closed date range intersects [startDate, endDate], or nil
func (g *ConflictGuard) CheckBookingConflict(ctx context.Context, customerID, destination string, startDate, endDate time.Time, excludeBookingID string) (*entity.Booking, error) {
	conflicts, err := g.ListConflicts(ctx, customerID, destination, startDate, endDate, excludeBookingID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) == 0 {
		return nil, nil
	}
	return conflicts[0], nil
}

// ListConflicts returns every conflicting booking, earliest start first
func (g *ConflictGuard) ListConflicts(ctx context.Context, customerID, destination string, startDate, endDate time.Time, excludeBookingID string) ([]*entity.Booking, error) {
	start, end := utils.TruncateDay(startDate), utils.TruncateDay(endDate)
	candidates, err := g.bookingRepo.FindOverlapping(ctx, repository.OverlapQuery{
		CustomerID:       customerID,
		Destination:      destination,
		StartDate:        start,
		EndDate:          end,
		ExcludeBookingID: excludeBookingID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}

	conflicts := make([]*entity.Booking, 0, len(candidates))
	for _, b := range candidates {
		if b.ID == excludeBookingID || !b.Status.BlocksDates() || !b.Overlaps(start, end) {
			continue
		}
		conflicts = append(conflicts, b)
	}
	return conflicts, nil
}

// CheckDuplicatePayment returns the newest completed charge of the same amount on the
// booking created within the configured trailing window, or nil
func (g *ConflictGuard) CheckDuplicatePayment(ctx context.Context, bookingID string, amount decimal.Decimal) (*entity.Payment, error) {
	return g.CheckDuplicatePaymentWithin(ctx, bookingID, amount, g.window)
}

// CheckDuplicatePaymentWithin is CheckDuplicatePayment over an explicit window.
// A non-positive window means the configured one.
func (g *ConflictGuard) CheckDuplicatePaymentWithin(ctx context.Context, bookingID string, amount decimal.Decimal, window time.Duration) (*entity.Payment, error) {
	if window <= 0 {
		window = g.window
	}
	since := g.now().Add(-window)
	payments, err := g.paymentRepo.FindRecentCompleted(ctx, bookingID, amount, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent payments: %w", err)
	}

	for _, p := range payments {
		if p.Status == entity.TransactionCompleted && !p.IsRefund() && p.Amount.Equal(amount) && !p.CreatedAt.Before(since) {
			return p, nil
		}
	}
	return nil, nil
}

// Window is the duplicate payment window in effect
func (g *ConflictGuard) Window() time.Duration {
	return g.window
}
