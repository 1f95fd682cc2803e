package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/metrics"
	"tripdesk-service/pkg/utils"
)

// CreateBookingInput is the caller-controlled part of a new booking.
// totalAmount is never accepted; it is derived from Pricing.
type CreateBookingInput struct {
	CustomerID  string
	Destination string
	StartDate   time.Time
	EndDate     time.Time
	Travelers   int
	Currency    string
	Notes       string
	Pricing     entity.Pricing
	// Status is pending when empty; only draft may be requested explicitly
	Status entity.BookingStatus
}

// BookingPatch holds the fields an update may change. Nil fields are left alone.
type BookingPatch struct {
	Destination   *string
	StartDate     *time.Time
	EndDate       *time.Time
	Travelers     *int
	Notes         *string
	BasePrice     *decimal.Decimal
	Taxes         *decimal.Decimal
	ServiceCharge *decimal.Decimal
	Discount      *decimal.Decimal
}

func (p BookingPatch) changesPricing() bool {
	return p.BasePrice != nil || p.Taxes != nil || p.ServiceCharge != nil || p.Discount != nil
}

// BookingLifecycle drives bookings through their status state machine
type BookingLifecycle struct {
	bookingRepo   repository.BookingRepository
	customerRepo  repository.CustomerRepository
	referenceRepo repository.ReferenceRepository
	guard         *ConflictGuard
	commissions   *CommissionEngine
	authorizer    Authorizer
	locker        repository.Locker
	events        EventPublisher
	currency      string
	logger        logger.Logger
	metrics       *metrics.Metrics
	now           Clock
}

// NewBookingLifecycle creates a new booking lifecycle
func NewBookingLifecycle(
	bookingRepo repository.BookingRepository,
	customerRepo repository.CustomerRepository,
	referenceRepo repository.ReferenceRepository,
	guard *ConflictGuard,
	commissions *CommissionEngine,
	authorizer Authorizer,
	locker repository.Locker,
	events EventPublisher,
	currency string,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *BookingLifecycle {
	return &BookingLifecycle{
		bookingRepo:   bookingRepo,
		customerRepo:  customerRepo,
		referenceRepo: referenceRepo,
		guard:         guard,
		commissions:   commissions,
		authorizer:    authorizer,
		locker:        locker,
		events:        events,
		currency:      currency,
		logger:        logger,
		metrics:       metrics,
		now:           systemClock,
	}
}

// WithClock replaces the time source
func (l *BookingLifecycle) WithClock(clock Clock) *BookingLifecycle {
	l.now = clock
	return l
}

func slotKey(customerID, destination string) string {
	return "slot:" + customerID + ":" + destination
}

func bookingKey(bookingID string) string {
	return "booking:" + bookingID
}

func validateDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return entity.InvalidInput("startDate and endDate are required")
	}
	if end.Before(start) {
		return entity.InvalidInput("endDate %s is before startDate %s",
			end.Format(utils.DATE_LAYOUT), start.Format(utils.DATE_LAYOUT))
	}
	return nil
}

// CreateBooking validates ownership, derives totals, guards against overlaps and persists
func (l *BookingLifecycle) CreateBooking(ctx context.Context, input CreateBookingInput, actor entity.Actor) (booking *entity.Booking, err error) {
	defer func(start time.Time) { l.metrics.Track("create_booking", start, err) }(time.Now())

	input.Destination = strings.TrimSpace(input.Destination)
	if input.CustomerID == "" || input.Destination == "" {
		return nil, entity.InvalidInput("customerId and destination are required")
	}
	start, end := utils.TruncateDay(input.StartDate), utils.TruncateDay(input.EndDate)
	if err := validateDates(start, end); err != nil {
		return nil, err
	}
	if err := input.Pricing.Validate(); err != nil {
		return nil, err
	}
	if input.Travelers < 0 {
		return nil, entity.InvalidInput("travelers must not be negative")
	}
	if input.Travelers == 0 {
		input.Travelers = 1
	}

	status := input.Status
	switch status {
	case "":
		status = entity.BookingPending
	case entity.BookingPending, entity.BookingDraft:
	default:
		return nil, entity.InvalidInput("a booking cannot be created as %s", status)
	}

	customer, err := l.customerRepo.FindByID(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if !l.authorizer.CanActAsOwnerOrElevated(actor, customer.AgentID) {
		return nil, entity.NotFound("customer", input.CustomerID)
	}

	release, err := l.locker.Acquire(ctx, slotKey(input.CustomerID, input.Destination))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := l.ensureNoConflict(ctx, input.CustomerID, input.Destination, start, end, ""); err != nil {
		return nil, err
	}

	reference, err := l.referenceRepo.NextReference(ctx, utils.PREFIX_BOOKING)
	if err != nil {
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = l.currency
	}

	now := l.now()
	booking = &entity.Booking{
		Reference:   reference,
		AgentID:     customer.AgentID,
		CustomerID:  input.CustomerID,
		Destination: input.Destination,
		StartDate:   start,
		EndDate:     end,
		Travelers:   input.Travelers,
		Currency:    currency,
		Notes:       input.Notes,
		Status:      status,
		StatusHistory: []entity.StatusChange{{
			Status:    status,
			ChangedAt: now,
			ChangedBy: actor.ID,
			Reason:    "booking created",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	booking.ApplyPricing(input.Pricing)

	if err := l.bookingRepo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	l.metrics.BookingsCreated.Inc()
	l.logger.Info("Booking created",
		"bookingId", booking.ID,
		"reference", booking.Reference,
		"customerId", booking.CustomerID,
		"totalAmount", booking.TotalAmount.String())

	l.publish(ctx, entity.EventBookingCreated, booking, "", actor.ID, "")
	return booking, nil
}

func (l *BookingLifecycle) ensureNoConflict(ctx context.Context, customerID, destination string, start, end time.Time, excludeID string) error {
	conflict, err := l.guard.CheckBookingConflict(ctx, customerID, destination, start, end, excludeID)
	if err != nil {
		return err
	}
	if conflict == nil {
		return nil
	}

	l.metrics.ConflictsDetected.Inc()
	l.logger.Warn("Booking conflict detected",
		"customerId", customerID,
		"destination", destination,
		"conflictingBookingId", conflict.ID,
		"conflictingReference", conflict.Reference)

	return &entity.ConflictError{
		BookingID: conflict.ID,
		Reference: conflict.Reference,
		StartDate: conflict.StartDate,
		EndDate:   conflict.EndDate,
	}
}

// UpdateBookingStatus applies one state machine edge
func (l *BookingLifecycle) UpdateBookingStatus(ctx context.Context, bookingID string, newStatus entity.BookingStatus, reason string, actor entity.Actor) (booking *entity.Booking, err error) {
	defer func(start time.Time) { l.metrics.Track("update_booking_status", start, err) }(time.Now())

	release, err := l.locker.Acquire(ctx, bookingKey(bookingID))
	if err != nil {
		return nil, err
	}
	defer release()

	booking, err = l.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !l.authorizer.CanActAsOwnerOrElevated(actor, booking.AgentID) {
		return nil, entity.ErrUnauthorized
	}

	// Unknown targets have no edge either
	previous := booking.Status
	if !previous.CanTransitionTo(newStatus) {
		return nil, &entity.TransitionError{Entity: "booking", From: string(previous), To: string(newStatus)}
	}

	// Reopening a cancelled booking claims its dates again
	if !previous.BlocksDates() && newStatus.BlocksDates() {
		releaseSlot, err := l.locker.Acquire(ctx, slotKey(booking.CustomerID, booking.Destination))
		if err != nil {
			return nil, err
		}
		defer releaseSlot()
		if err := l.ensureNoConflict(ctx, booking.CustomerID, booking.Destination, booking.StartDate, booking.EndDate, booking.ID); err != nil {
			return nil, err
		}
	}

	if err := booking.Transition(newStatus, actor.ID, reason, l.now()); err != nil {
		return nil, err
	}
	if err := l.bookingRepo.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	l.metrics.StatusTransitions.WithLabelValues(string(newStatus)).Inc()
	l.logger.Info("Booking status changed",
		"bookingId", booking.ID,
		"from", previous,
		"to", newStatus,
		"actorId", actor.ID)

	if newStatus == entity.BookingCompleted {
		l.onCompleted(ctx, booking)
	}

	l.publish(ctx, entity.EventBookingStatusChanged, booking, previous, actor.ID, reason)
	switch newStatus {
	case entity.BookingCompleted:
		l.publish(ctx, entity.EventBookingCompleted, booking, previous, actor.ID, reason)
	case entity.BookingCancelled:
		l.publish(ctx, entity.EventBookingCancelled, booking, previous, actor.ID, reason)
	}
	return booking, nil
}

// onCompleted creates the commission and updates customer aggregates.
// The status change is already persisted; failures here are logged and repaired by the reconciler.
func (l *BookingLifecycle) onCompleted(ctx context.Context, booking *entity.Booking) {
	if _, err := l.commissions.CreateCommission(ctx, booking, booking.AgentID); err != nil {
		l.logger.Error("Failed to create commission on completion",
			"bookingId", booking.ID,
			"agentId", booking.AgentID,
			"error", err)
	}

	points := entity.LoyaltyPointsFor(booking.TotalAmount)
	if err := l.customerRepo.RecordCompletedTrip(ctx, booking.CustomerID, booking.TotalAmount, points, l.now()); err != nil {
		l.logger.Warn("Failed to update customer aggregates",
			"bookingId", booking.ID,
			"customerId", booking.CustomerID,
			"error", err)
	}
}

// UpdateBooking edits a draft or pending booking
func (l *BookingLifecycle) UpdateBooking(ctx context.Context, bookingID string, patch BookingPatch, actor entity.Actor) (booking *entity.Booking, err error) {
	defer func(start time.Time) { l.metrics.Track("update_booking", start, err) }(time.Now())

	release, err := l.locker.Acquire(ctx, bookingKey(bookingID))
	if err != nil {
		return nil, err
	}
	defer release()

	booking, err = l.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !l.authorizer.CanActAsOwnerOrElevated(actor, booking.AgentID) {
		return nil, entity.ErrUnauthorized
	}
	if !booking.Status.IsEditable() {
		return nil, &entity.StateError{Entity: "booking", Status: string(booking.Status), Operation: "update"}
	}

	moved := false
	if patch.Destination != nil {
		destination := strings.TrimSpace(*patch.Destination)
		if destination == "" {
			return nil, entity.InvalidInput("destination must not be empty")
		}
		moved = moved || destination != booking.Destination
		booking.Destination = destination
	}
	if patch.StartDate != nil {
		start := utils.TruncateDay(*patch.StartDate)
		moved = moved || !start.Equal(booking.StartDate)
		booking.StartDate = start
	}
	if patch.EndDate != nil {
		end := utils.TruncateDay(*patch.EndDate)
		moved = moved || !end.Equal(booking.EndDate)
		booking.EndDate = end
	}
	if err := validateDates(booking.StartDate, booking.EndDate); err != nil {
		return nil, err
	}
	if patch.Travelers != nil {
		if *patch.Travelers <= 0 {
			return nil, entity.InvalidInput("travelers must be positive")
		}
		booking.Travelers = *patch.Travelers
	}
	if patch.Notes != nil {
		booking.Notes = *patch.Notes
	}

	if patch.changesPricing() {
		pricing := booking.Pricing
		if patch.BasePrice != nil {
			pricing.BasePrice = *patch.BasePrice
		}
		if patch.Taxes != nil {
			pricing.Taxes = *patch.Taxes
		}
		if patch.ServiceCharge != nil {
			pricing.ServiceCharge = *patch.ServiceCharge
		}
		if patch.Discount != nil {
			pricing.Discount = *patch.Discount
		}
		if err := pricing.Validate(); err != nil {
			return nil, err
		}
		if pricing.Total().LessThan(booking.AmountPaid) {
			return nil, entity.InvalidInput("total %s would fall below amount paid %s",
				utils.FormatMoney(pricing.Total()), utils.FormatMoney(booking.AmountPaid))
		}
		booking.ApplyPricing(pricing)
	}

	if moved {
		releaseSlot, err := l.locker.Acquire(ctx, slotKey(booking.CustomerID, booking.Destination))
		if err != nil {
			return nil, err
		}
		defer releaseSlot()
		if err := l.ensureNoConflict(ctx, booking.CustomerID, booking.Destination, booking.StartDate, booking.EndDate, booking.ID); err != nil {
			return nil, err
		}
	}

	booking.UpdatedAt = l.now()
	if err := l.bookingRepo.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	l.logger.Info("Booking updated", "bookingId", booking.ID, "actorId", actor.ID)
	return booking, nil
}

// DeleteBooking removes a draft or cancelled booking that holds no money
func (l *BookingLifecycle) DeleteBooking(ctx context.Context, bookingID string, actor entity.Actor) error {
	release, err := l.locker.Acquire(ctx, bookingKey(bookingID))
	if err != nil {
		return err
	}
	defer release()

	booking, err := l.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if !l.authorizer.CanActAsOwnerOrElevated(actor, booking.AgentID) {
		return entity.ErrUnauthorized
	}
	if !booking.Status.IsDeletable() {
		return &entity.StateError{Entity: "booking", Status: string(booking.Status), Operation: "delete"}
	}
	if booking.AmountPaid.Sign() > 0 {
		return &entity.StateError{Entity: "booking", Status: string(booking.PaymentStatus), Operation: "delete"}
	}

	if err := l.bookingRepo.Delete(ctx, bookingID); err != nil {
		return err
	}
	l.logger.Info("Booking deleted", "bookingId", bookingID, "actorId", actor.ID)
	return nil
}

// GetBooking returns a booking visible to the actor
func (l *BookingLifecycle) GetBooking(ctx context.Context, bookingID string, actor entity.Actor) (*entity.Booking, error) {
	booking, err := l.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !l.authorizer.CanActAsOwnerOrElevated(actor, booking.AgentID) {
		return nil, entity.NotFound("booking", bookingID)
	}
	return booking, nil
}

// ListBookings lists bookings, restricted to the actor's own unless elevated
func (l *BookingLifecycle) ListBookings(ctx context.Context, actor entity.Actor, filter repository.BookingFilter) ([]*entity.Booking, error) {
	if !actor.CanViewAll {
		filter.AgentID = actor.ID
	}
	return l.bookingRepo.List(ctx, filter)
}

// ListBookingConflicts returns the bookings that would collide with the given range
func (l *BookingLifecycle) ListBookingConflicts(ctx context.Context, customerID, destination string, startDate, endDate time.Time, excludeBookingID string, actor entity.Actor) ([]*entity.Booking, error) {
	if customerID == "" || strings.TrimSpace(destination) == "" {
		return nil, entity.InvalidInput("customerId and destination are required")
	}
	start, end := utils.TruncateDay(startDate), utils.TruncateDay(endDate)
	if err := validateDates(start, end); err != nil {
		return nil, err
	}

	customer, err := l.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !l.authorizer.CanActAsOwnerOrElevated(actor, customer.AgentID) {
		return nil, entity.NotFound("customer", customerID)
	}
	return l.guard.ListConflicts(ctx, customerID, strings.TrimSpace(destination), start, end, excludeBookingID)
}

func (l *BookingLifecycle) publish(ctx context.Context, eventType entity.EventType, booking *entity.Booking, previous entity.BookingStatus, actorID, reason string) {
	l.events.Publish(ctx, entity.Event{
		Type:           eventType,
		OccurredAt:     l.now(),
		ActorID:        actorID,
		Booking:        booking.Clone(),
		PreviousStatus: previous,
		Reason:         reason,
	})
}
