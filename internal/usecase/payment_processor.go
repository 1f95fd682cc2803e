package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/metrics"
	"tripdesk-service/pkg/utils"
)

// AutoConfirmReason is recorded when a fully paid pending booking is confirmed
const AutoConfirmReason = "auto-confirmed: booking fully paid"

// PaymentInput is a charge request against a booking
type PaymentInput struct {
	BookingID string
	Amount    decimal.Decimal
	Method    entity.PaymentMethod
}

// RefundInput is a refund request against a completed payment.
// A nil Amount refunds the original amount in full.
type RefundInput struct {
	PaymentID string
	Amount    *decimal.Decimal
	Reason    string
}

// PaymentProcessor charges bookings through the gateway and records refunds
type PaymentProcessor struct {
	bookingRepo   repository.BookingRepository
	paymentRepo   repository.PaymentRepository
	referenceRepo repository.ReferenceRepository
	gateway       repository.PaymentGateway
	guard         *ConflictGuard
	authorizer    Authorizer
	locker        repository.Locker
	events        EventPublisher
	logger        logger.Logger
	metrics       *metrics.Metrics
	now           Clock
}

// NewPaymentProcessor creates a new payment processor
func NewPaymentProcessor(
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	referenceRepo repository.ReferenceRepository,
	gateway repository.PaymentGateway,
	guard *ConflictGuard,
	authorizer Authorizer,
	locker repository.Locker,
	events EventPublisher,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *PaymentProcessor {
	return &PaymentProcessor{
		bookingRepo:   bookingRepo,
		paymentRepo:   paymentRepo,
		referenceRepo: referenceRepo,
		gateway:       gateway,
		guard:         guard,
		authorizer:    authorizer,
		locker:        locker,
		events:        events,
		logger:        logger,
		metrics:       metrics,
		now:           systemClock,
	}
}

// WithClock replaces the time source
func (p *PaymentProcessor) WithClock(clock Clock) *PaymentProcessor {
	p.now = clock
	return p
}

func newTransactionID() string {
	return "TXN-" + uuid.NewString()
}

// ProcessPayment charges amount against the booking.
// A gateway decline returns the failed payment together with an error wrapping ErrPaymentDeclined.
func (p *PaymentProcessor) ProcessPayment(ctx context.Context, input PaymentInput, actor entity.Actor) (payment *entity.Payment, err error) {
	defer func(start time.Time) { p.metrics.Track("process_payment", start, err) }(time.Now())

	amount := utils.RoundMoney(input.Amount)
	if !utils.IsPositive(amount) {
		return nil, entity.InvalidInput("amount must be positive")
	}
	if _, err := entity.ParsePaymentMethod(string(input.Method)); err != nil {
		return nil, err
	}

	release, err := p.locker.Acquire(ctx, bookingKey(input.BookingID))
	if err != nil {
		return nil, err
	}
	defer release()

	booking, err := p.bookingRepo.FindByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	if !p.authorizer.CanActAsOwnerOrElevated(actor, booking.AgentID) {
		return nil, entity.ErrUnauthorized
	}
	if !booking.Status.AcceptsPayments() {
		return nil, &entity.StateError{Entity: "booking", Status: string(booking.Status), Operation: "pay"}
	}
	if amount.GreaterThan(booking.AmountDue) {
		return nil, &entity.AmountError{Kind: entity.ErrAmountExceedsDue, Requested: amount, Limit: booking.AmountDue}
	}

	duplicate, err := p.guard.CheckDuplicatePayment(ctx, booking.ID, amount)
	if err != nil {
		return nil, err
	}
	if duplicate != nil {
		p.metrics.DuplicatePayments.Inc()
		p.logger.Warn("Duplicate payment rejected",
			"bookingId", booking.ID,
			"amount", amount.String(),
			"priorTransactionId", duplicate.TransactionID)
		return nil, &entity.DuplicatePaymentError{
			TransactionID: duplicate.TransactionID,
			CreatedAt:     duplicate.CreatedAt,
			RetryAfter:    duplicate.CreatedAt.Add(p.guard.Window()),
		}
	}

	now := p.now()
	payment = &entity.Payment{
		TransactionID:    newTransactionID(),
		BookingID:        booking.ID,
		BookingReference: booking.Reference,
		AgentID:          booking.AgentID,
		CustomerID:       booking.CustomerID,
		Amount:           amount,
		Currency:         booking.Currency,
		Method:           input.Method,
		Type:             entity.DerivePaymentType(amount, booking.TotalAmount, booking.AmountPaid, booking.AmountDue),
		Status:           entity.TransactionProcessing,
		ProcessedBy:      actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := p.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	result, err := p.gateway.Charge(ctx, repository.ChargeRequest{
		TransactionID: payment.TransactionID,
		BookingRef:    booking.Reference,
		Amount:        amount,
		Currency:      payment.Currency,
		Method:        payment.Method,
	})

	// The gateway has answered; the writes below must finish even if the caller goes away
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		p.fail(writeCtx, payment, "gateway error: "+err.Error())
		return nil, fmt.Errorf("failed to charge payment: %w", err)
	}
	if !result.Approved {
		payment.GatewayReference = result.GatewayReference
		p.fail(writeCtx, payment, result.DeclineReason)
		return payment, fmt.Errorf("%w: %s", entity.ErrPaymentDeclined, result.DeclineReason)
	}

	receipt, err := p.referenceRepo.NextReference(writeCtx, utils.PREFIX_RECEIPT)
	if err != nil {
		p.fail(writeCtx, payment, "receipt allocation failed")
		return nil, err
	}

	// Mark applied before touching the booking so the stale sweep knows to check the balance
	appliedAt := p.now()
	payment.ReceiptNumber = receipt
	payment.GatewayReference = result.GatewayReference
	payment.AppliedAt = &appliedAt
	if err := p.paymentRepo.UpdateStatus(writeCtx, payment, entity.TransactionProcessing); err != nil {
		payment.AppliedAt = nil
		p.fail(writeCtx, payment, "payment could not be marked applied")
		return nil, fmt.Errorf("failed to mark payment applied: %w", err)
	}

	// Booking first: a completed payment never exists without its amount applied
	previousStatus := booking.Status
	booking.RecordPayment(amount)
	if booking.PaymentStatus == entity.PaymentPaid && booking.Status == entity.BookingPending {
		if err := booking.Transition(entity.BookingConfirmed, entity.SystemActor, AutoConfirmReason, now); err != nil {
			payment.AppliedAt = nil
			p.fail(writeCtx, payment, "booking could not be confirmed")
			return nil, err
		}
	}
	booking.UpdatedAt = now
	if err := p.bookingRepo.Update(writeCtx, booking); err != nil {
		payment.AppliedAt = nil
		p.fail(writeCtx, payment, "booking update failed")
		p.logger.Error("Charged payment could not be applied to booking",
			"transactionId", payment.TransactionID,
			"bookingId", booking.ID,
			"error", err)
		return nil, fmt.Errorf("failed to apply payment to booking: %w", err)
	}

	completedAt := p.now()
	payment.Status = entity.TransactionCompleted
	payment.CompletedAt = &completedAt
	if err := p.paymentRepo.UpdateStatus(writeCtx, payment, entity.TransactionProcessing); err != nil {
		// Left applied in processing if the revert fails too; the stale sweep completes it
		if revertErr := p.revertBooking(writeCtx, booking.ID, amount); revertErr == nil {
			payment.Status = entity.TransactionProcessing
			payment.CompletedAt = nil
			payment.AppliedAt = nil
			p.fail(writeCtx, payment, "payment could not be completed")
		}
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	p.metrics.PaymentsProcessed.WithLabelValues(string(entity.TransactionCompleted)).Inc()
	p.logger.Info("Payment completed",
		"transactionId", payment.TransactionID,
		"bookingId", booking.ID,
		"amount", amount.String(),
		"type", payment.Type,
		"paymentStatus", booking.PaymentStatus)

	p.publishPayment(writeCtx, entity.EventPaymentCompleted, payment, booking, actor.ID)
	if booking.Status != previousStatus {
		p.metrics.StatusTransitions.WithLabelValues(string(booking.Status)).Inc()
		p.events.Publish(writeCtx, entity.Event{
			Type:           entity.EventBookingStatusChanged,
			OccurredAt:     now,
			ActorID:        entity.SystemActor,
			Booking:        booking.Clone(),
			PreviousStatus: previousStatus,
			Reason:         AutoConfirmReason,
		})
	}
	return payment, nil
}

func (p *PaymentProcessor) fail(ctx context.Context, payment *entity.Payment, reason string) {
	payment.Status = entity.TransactionFailed
	payment.FailureReason = reason
	if err := p.paymentRepo.UpdateStatus(ctx, payment, entity.TransactionProcessing); err != nil {
		p.logger.Error("Failed to mark payment failed",
			"transactionId", payment.TransactionID,
			"error", err)
	}

	p.metrics.PaymentsProcessed.WithLabelValues(string(entity.TransactionFailed)).Inc()
	p.logger.Warn("Payment failed",
		"transactionId", payment.TransactionID,
		"bookingId", payment.BookingID,
		"reason", reason)

	p.publishPayment(ctx, entity.EventPaymentFailed, payment, nil, payment.ProcessedBy)
}

// revertBooking takes back an applied amount when the payment record could not be completed
func (p *PaymentProcessor) revertBooking(ctx context.Context, bookingID string, amount decimal.Decimal) error {
	booking, err := p.bookingRepo.FindByID(ctx, bookingID)
	if err == nil {
		booking.AmountPaid = booking.AmountPaid.Sub(amount)
		booking.Recalculate()
		booking.UpdatedAt = p.now()
		err = p.bookingRepo.Update(ctx, booking)
	}
	if err != nil {
		p.logger.Error("Failed to revert booking after payment write failure",
			"bookingId", bookingID,
			"amount", amount.String(),
			"error", err)
	}
	return err
}

// ProcessRefund records a negative refund payment and reduces the booking's amount paid
func (p *PaymentProcessor) ProcessRefund(ctx context.Context, input RefundInput, actor entity.Actor) (refund *entity.Payment, err error) {
	defer func(start time.Time) { p.metrics.Track("process_refund", start, err) }(time.Now())

	original, err := p.paymentRepo.FindByID(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}

	release, err := p.locker.Acquire(ctx, bookingKey(original.BookingID))
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock
	original, err = p.paymentRepo.FindByID(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if original.IsRefund() || original.Status != entity.TransactionCompleted {
		return nil, &entity.StateError{Entity: "payment", Status: string(original.Status), Operation: "refund"}
	}

	booking, err := p.bookingRepo.FindByID(ctx, original.BookingID)
	if err != nil {
		return nil, err
	}
	if !p.authorizer.CanActAsOwnerOrElevated(actor, booking.AgentID) {
		return nil, entity.ErrUnauthorized
	}

	amount := original.Amount
	if input.Amount != nil {
		amount = utils.RoundMoney(*input.Amount)
	}
	if !utils.IsPositive(amount) {
		return nil, entity.InvalidInput("refund amount must be positive")
	}
	if amount.GreaterThan(original.Amount) {
		return nil, &entity.AmountError{Kind: entity.ErrAmountExceedsOriginal, Requested: amount, Limit: original.Amount}
	}

	receipt, err := p.referenceRepo.NextReference(ctx, utils.PREFIX_RECEIPT)
	if err != nil {
		return nil, err
	}

	// From the first write on, finish or compensate even if the caller goes away
	writeCtx := context.WithoutCancel(ctx)
	now := p.now()
	booking.RecordRefund(amount)
	booking.UpdatedAt = now
	if err := p.bookingRepo.Update(writeCtx, booking); err != nil {
		return nil, fmt.Errorf("failed to apply refund to booking: %w", err)
	}

	refund = &entity.Payment{
		TransactionID:         newTransactionID(),
		BookingID:             booking.ID,
		BookingReference:      booking.Reference,
		AgentID:               booking.AgentID,
		CustomerID:            booking.CustomerID,
		Amount:                amount.Neg(),
		Currency:              original.Currency,
		Method:                original.Method,
		Type:                  entity.PaymentTypeRefund,
		Status:                entity.TransactionCompleted,
		ReceiptNumber:         receipt,
		OriginalTransactionID: original.TransactionID,
		RefundReason:          input.Reason,
		ProcessedBy:           actor.ID,
		CompletedAt:           &now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := p.paymentRepo.Create(writeCtx, refund); err != nil {
		p.revertRefund(writeCtx, booking.ID, amount)
		return nil, fmt.Errorf("failed to save refund: %w", err)
	}

	original.Status = entity.TransactionRefunded
	original.RefundedAt = &now
	if err := p.paymentRepo.UpdateStatus(writeCtx, original, entity.TransactionCompleted); err != nil {
		// The refund record and booking already agree; only the original's status lags
		p.logger.Error("Failed to mark original payment refunded",
			"transactionId", original.TransactionID,
			"refundTransactionId", refund.TransactionID,
			"error", err)
	}

	p.metrics.RefundsProcessed.Inc()
	p.logger.Info("Refund processed",
		"transactionId", refund.TransactionID,
		"originalTransactionId", original.TransactionID,
		"bookingId", booking.ID,
		"amount", amount.String(),
		"paymentStatus", booking.PaymentStatus)

	p.publishPayment(writeCtx, entity.EventPaymentRefunded, refund, booking, actor.ID)
	return refund, nil
}

func (p *PaymentProcessor) revertRefund(ctx context.Context, bookingID string, amount decimal.Decimal) {
	booking, err := p.bookingRepo.FindByID(ctx, bookingID)
	if err == nil {
		booking.AmountPaid = booking.AmountPaid.Add(amount)
		booking.RefundedAmount = booking.RefundedAmount.Sub(amount)
		booking.Recalculate()
		booking.UpdatedAt = p.now()
		err = p.bookingRepo.Update(ctx, booking)
	}
	if err != nil {
		p.logger.Error("Failed to revert booking after refund write failure",
			"bookingId", bookingID,
			"amount", amount.String(),
			"error", err)
	}
}

// ListPayments returns the payments of a booking visible to the actor
func (p *PaymentProcessor) ListPayments(ctx context.Context, bookingID string, actor entity.Actor) ([]*entity.Payment, error) {
	booking, err := p.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !p.authorizer.CanActAsOwnerOrElevated(actor, booking.AgentID) {
		return nil, entity.NotFound("booking", bookingID)
	}
	return p.paymentRepo.FindByBooking(ctx, bookingID)
}

// StaleSettlement counts the payments settled by one sweep
type StaleSettlement struct {
	Completed int
	Failed    int
}

// SettleStalePayments resolves payments left in processing before cutoff.
// A payment never applied to its booking is failed. An applied one is completed when the
// booking's amount paid still carries it, and failed otherwise.
func (p *PaymentProcessor) SettleStalePayments(ctx context.Context, cutoff time.Time, limit int) (StaleSettlement, error) {
	var settled StaleSettlement

	stale, err := p.paymentRepo.FindStaleProcessing(ctx, cutoff, limit)
	if err != nil {
		return settled, fmt.Errorf("failed to find stale payments: %w", err)
	}

	for _, payment := range stale {
		status, err := p.settleStale(ctx, payment)
		if err != nil {
			if !errors.Is(err, entity.ErrConcurrentModification) {
				p.logger.Error("Failed to settle stale payment", "transactionId", payment.TransactionID, "error", err)
			}
			continue
		}
		p.metrics.PaymentsProcessed.WithLabelValues(string(status)).Inc()
		if status == entity.TransactionCompleted {
			settled.Completed++
			p.logger.Warn("Stale applied payment completed",
				"transactionId", payment.TransactionID,
				"bookingId", payment.BookingID)
			p.publishPayment(ctx, entity.EventPaymentCompleted, payment, nil, entity.SystemActor)
			continue
		}
		settled.Failed++
		p.publishPayment(ctx, entity.EventPaymentFailed, payment, nil, entity.SystemActor)
	}
	return settled, nil
}

func (p *PaymentProcessor) settleStale(ctx context.Context, payment *entity.Payment) (entity.TransactionStatus, error) {
	if payment.AppliedAt == nil {
		payment.Status = entity.TransactionFailed
		payment.FailureReason = "gateway outcome unknown: processing timed out"
		return payment.Status, p.paymentRepo.UpdateStatus(ctx, payment, entity.TransactionProcessing)
	}

	release, err := p.locker.Acquire(ctx, bookingKey(payment.BookingID))
	if err != nil {
		return "", err
	}
	defer release()

	booking, err := p.bookingRepo.FindByID(ctx, payment.BookingID)
	if err != nil {
		return "", err
	}
	payments, err := p.paymentRepo.FindByBooking(ctx, payment.BookingID)
	if err != nil {
		return "", err
	}

	now := p.now()
	if booking.AmountPaid.Sub(settledAmount(payments)).GreaterThanOrEqual(payment.Amount) {
		payment.Status = entity.TransactionCompleted
		payment.CompletedAt = &now
	} else {
		payment.Status = entity.TransactionFailed
		payment.AppliedAt = nil
		payment.FailureReason = "payment was not applied to booking"
	}
	return payment.Status, p.paymentRepo.UpdateStatus(ctx, payment, entity.TransactionProcessing)
}

// settledAmount is captured charges minus completed refunds
func settledAmount(payments []*entity.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, payment := range payments {
		switch {
		case payment.IsRefund():
			if payment.Status == entity.TransactionCompleted {
				total = total.Add(payment.Amount)
			}
		case payment.Status == entity.TransactionCompleted || payment.Status == entity.TransactionRefunded:
			total = total.Add(payment.Amount)
		}
	}
	return total
}

func (p *PaymentProcessor) publishPayment(ctx context.Context, eventType entity.EventType, payment *entity.Payment, booking *entity.Booking, actorID string) {
	snapshot := *payment
	event := entity.Event{
		Type:       eventType,
		OccurredAt: p.now(),
		ActorID:    actorID,
		Payment:    &snapshot,
	}
	if booking != nil {
		event.Booking = booking.Clone()
	}
	p.events.Publish(ctx, event)
}
