package usecase

import (
	"context"
	"fmt"
	"time"

	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"
)

const reconcileBatchSize = 100

// Reconciler repairs state left behind by best-effort steps and interrupted requests
type Reconciler struct {
	bookingRepo  repository.BookingRepository
	commissions  *CommissionEngine
	payments     *PaymentProcessor
	staleTimeout time.Duration
	logger       logger.Logger
	now          Clock
}

// NewReconciler creates a new reconciler
func NewReconciler(
	bookingRepo repository.BookingRepository,
	commissions *CommissionEngine,
	payments *PaymentProcessor,
	staleTimeout time.Duration,
	logger logger.Logger,
) *Reconciler {
	return &Reconciler{
		bookingRepo:  bookingRepo,
		commissions:  commissions,
		payments:     payments,
		staleTimeout: staleTimeout,
		logger:       logger,
		now:          systemClock,
	}
}

// WithClock replaces the time source
func (r *Reconciler) WithClock(clock Clock) *Reconciler {
	r.now = clock
	return r
}

// ReconcileResult counts the repairs made by one pass
type ReconcileResult struct {
	CommissionsCreated int
	PaymentsCompleted  int
	PaymentsFailed     int
}

// Reconcile creates missing commissions and settles payments stuck in processing
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	bookings, err := r.bookingRepo.FindCompletedWithoutCommission(ctx, reconcileBatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to find bookings without commission: %w", err)
	}
	for _, booking := range bookings {
		if _, err := r.commissions.CreateCommission(ctx, booking, booking.AgentID); err != nil {
			r.logger.Error("Failed to create missing commission",
				"bookingId", booking.ID,
				"error", err)
			continue
		}
		result.CommissionsCreated++
	}

	settled, err := r.payments.SettleStalePayments(ctx, r.now().Add(-r.staleTimeout), reconcileBatchSize)
	if err != nil {
		return result, err
	}
	result.PaymentsCompleted = settled.Completed
	result.PaymentsFailed = settled.Failed

	if result.CommissionsCreated > 0 || result.PaymentsCompleted > 0 || result.PaymentsFailed > 0 {
		r.logger.Info("Reconciliation repaired records",
			"commissionsCreated", result.CommissionsCreated,
			"paymentsCompleted", result.PaymentsCompleted,
			"paymentsFailed", result.PaymentsFailed)
	}
	return result, nil
}
