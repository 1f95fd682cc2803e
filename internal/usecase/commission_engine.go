package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/metrics"
	"tripdesk-service/pkg/utils"
)

// LargeDealBonusRate is the bonus percentage applied to commissionAmount on large deals
var LargeDealBonusRate = decimal.NewFromInt(10)

// CommissionEngine computes and advances agent commissions
type CommissionEngine struct {
	commissionRepo     repository.CommissionRepository
	tierRepo           repository.CommissionTierRepository
	agentRepo          repository.AgentRepository
	bookingRepo        repository.BookingRepository
	referenceRepo      repository.ReferenceRepository
	authorizer         Authorizer
	locker             repository.Locker
	events             EventPublisher
	largeDealThreshold decimal.Decimal
	logger             logger.Logger
	metrics            *metrics.Metrics
	now                Clock
}

// NewCommissionEngine creates a new commission engine
func NewCommissionEngine(
	commissionRepo repository.CommissionRepository,
	tierRepo repository.CommissionTierRepository,
	agentRepo repository.AgentRepository,
	bookingRepo repository.BookingRepository,
	referenceRepo repository.ReferenceRepository,
	authorizer Authorizer,
	locker repository.Locker,
	events EventPublisher,
	largeDealThreshold decimal.Decimal,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *CommissionEngine {
	return &CommissionEngine{
		commissionRepo:     commissionRepo,
		tierRepo:           tierRepo,
		agentRepo:          agentRepo,
		bookingRepo:        bookingRepo,
		referenceRepo:      referenceRepo,
		authorizer:         authorizer,
		locker:             locker,
		events:             events,
		largeDealThreshold: largeDealThreshold,
		logger:             logger,
		metrics:            metrics,
		now:                systemClock,
	}
}

// WithClock replaces the time source
func (e *CommissionEngine) WithClock(clock Clock) *CommissionEngine {
	e.now = clock
	return e
}

// SelectTier returns the lowest-bound tier containing amount, or the standard fallback
func SelectTier(tiers []entity.CommissionTier, amount decimal.Decimal) (string, decimal.Decimal) {
	var best *entity.CommissionTier
	for i := range tiers {
		t := &tiers[i]
		if !t.Contains(amount) {
			continue
		}
		if best == nil || t.MinAmount.LessThan(best.MinAmount) {
			best = t
		}
	}
	if best == nil {
		return entity.FallbackTierName, entity.FallbackTierRate
	}
	return best.Name, best.Rate
}

// CreateCommissionForBooking creates the commission of a booking that has reached completed
func (e *CommissionEngine) CreateCommissionForBooking(ctx context.Context, bookingID string, actor entity.Actor) (*entity.Commission, error) {
	booking, err := e.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !e.authorizer.CanActAsOwnerOrElevated(actor, booking.AgentID) {
		return nil, entity.ErrUnauthorized
	}
	if booking.Status != entity.BookingCompleted && booking.Status != entity.BookingRefunded {
		return nil, &entity.StateError{Entity: "booking", Status: string(booking.Status), Operation: "create commission for"}
	}
	return e.CreateCommission(ctx, booking, booking.AgentID)
}

// CreateCommission returns the booking's commission, creating it on first call
func (e *CommissionEngine) CreateCommission(ctx context.Context, booking *entity.Booking, agentID string) (commission *entity.Commission, err error) {
	defer func(start time.Time) { e.metrics.Track("create_commission", start, err) }(time.Now())

	release, err := e.locker.Acquire(ctx, "commission:"+booking.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := e.commissionRepo.FindByBookingID(ctx, booking.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up commission: %w", err)
	}

	commission, err = e.compute(ctx, booking, agentID)
	if err != nil {
		return nil, err
	}

	if err := e.commissionRepo.Create(ctx, commission); err != nil {
		if errors.Is(err, entity.ErrDuplicateKey) {
			// Another instance won the race
			return e.commissionRepo.FindByBookingID(ctx, booking.ID)
		}
		return nil, fmt.Errorf("failed to save commission: %w", err)
	}

	e.metrics.CommissionsCreated.Inc()
	e.logger.Info("Commission created",
		"commissionId", commission.ID,
		"bookingId", booking.ID,
		"agentId", agentID,
		"tier", commission.Tier,
		"totalEarning", commission.TotalEarning.String())

	e.publish(ctx, entity.EventCommissionCreated, commission, "")
	return commission, nil
}

func (e *CommissionEngine) compute(ctx context.Context, booking *entity.Booking, agentID string) (*entity.Commission, error) {
	tiers, err := e.tierRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load commission tiers: %w", err)
	}

	bookingAmount := booking.TotalAmount
	tierName, rate := SelectTier(tiers, bookingAmount)

	agent, err := e.agentRepo.GetByID(ctx, agentID)
	switch {
	case err == nil:
		if agent.CommissionRate != nil {
			rate = *agent.CommissionRate
		}
	case errors.Is(err, entity.ErrNotFound):
		e.logger.Warn("Agent not found, using tier rate", "agentId", agentID, "bookingId", booking.ID)
	default:
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	commissionAmount := utils.Percent(bookingAmount, rate)
	bonusAmount := decimal.Zero
	if bookingAmount.GreaterThan(e.largeDealThreshold) {
		bonusAmount = utils.Percent(commissionAmount, LargeDealBonusRate)
	}

	reference, err := e.referenceRepo.NextReference(ctx, utils.PREFIX_COMMISSION)
	if err != nil {
		return nil, err
	}

	now := e.now()
	return &entity.Commission{
		Reference:        reference,
		BookingID:        booking.ID,
		BookingReference: booking.Reference,
		AgentID:          agentID,
		CustomerID:       booking.CustomerID,
		BookingAmount:    bookingAmount,
		Tier:             tierName,
		CommissionRate:   rate,
		CommissionAmount: commissionAmount,
		BonusAmount:      bonusAmount,
		TotalEarning:     commissionAmount.Add(bonusAmount),
		Status:           entity.CommissionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ApproveCommission moves a pending commission to approved
func (e *CommissionEngine) ApproveCommission(ctx context.Context, id string, actor entity.Actor) (*entity.Commission, error) {
	return e.advance(ctx, id, actor, "approve", func(c *entity.Commission, now time.Time) error {
		if c.Status != entity.CommissionPending {
			return &entity.StateError{Entity: "commission", Status: string(c.Status), Operation: "approve"}
		}
		if err := c.Transition(entity.CommissionApproved, now); err != nil {
			return err
		}
		c.ApprovedBy = actor.ID
		c.ApprovedAt = &now
		return nil
	})
}

// MarkCommissionPaid moves an approved commission to paid and credits the agent
func (e *CommissionEngine) MarkCommissionPaid(ctx context.Context, id string, details entity.PayoutDetails, actor entity.Actor) (*entity.Commission, error) {
	commission, err := e.advance(ctx, id, actor, "mark paid", func(c *entity.Commission, now time.Time) error {
		if c.Status != entity.CommissionApproved {
			return &entity.StateError{Entity: "commission", Status: string(c.Status), Operation: "mark paid"}
		}
		// An agent missing from master data cannot be credited; refuse before the status moves
		if _, err := e.agentRepo.GetByID(ctx, c.AgentID); err != nil {
			return fmt.Errorf("cannot pay commission %s: %w", c.ID, err)
		}
		if err := c.Transition(entity.CommissionPaid, now); err != nil {
			return err
		}
		payout := details
		c.PaidBy = actor.ID
		c.PaidAt = &now
		c.Payout = &payout
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The status write above admits a single winner, so the credit runs once
	if err := e.agentRepo.AddEarnings(context.WithoutCancel(ctx), commission.AgentID, commission.TotalEarning); err != nil {
		e.logger.Error("Commission paid but agent earnings not credited",
			"commissionId", commission.ID,
			"agentId", commission.AgentID,
			"amount", commission.TotalEarning.String(),
			"error", err)
		return nil, fmt.Errorf("failed to credit agent earnings: %w", err)
	}

	e.metrics.CommissionsPaid.Inc()
	e.publish(ctx, entity.EventCommissionPaid, commission, actor.ID)
	return commission, nil
}

// RejectCommission moves a pending or approved commission to rejected
func (e *CommissionEngine) RejectCommission(ctx context.Context, id, reason string, actor entity.Actor) (*entity.Commission, error) {
	return e.advance(ctx, id, actor, "reject", func(c *entity.Commission, now time.Time) error {
		if err := c.Transition(entity.CommissionRejected, now); err != nil {
			return err
		}
		c.StatusReason = reason
		return nil
	})
}

// HoldCommission parks a pending or approved commission
func (e *CommissionEngine) HoldCommission(ctx context.Context, id, reason string, actor entity.Actor) (*entity.Commission, error) {
	return e.advance(ctx, id, actor, "hold", func(c *entity.Commission, now time.Time) error {
		if err := c.Transition(entity.CommissionOnHold, now); err != nil {
			return err
		}
		c.StatusReason = reason
		return nil
	})
}

// ReleaseCommission returns a held commission to pending
func (e *CommissionEngine) ReleaseCommission(ctx context.Context, id string, actor entity.Actor) (*entity.Commission, error) {
	return e.advance(ctx, id, actor, "release", func(c *entity.Commission, now time.Time) error {
		if err := c.Transition(entity.CommissionPending, now); err != nil {
			return err
		}
		c.StatusReason = ""
		return nil
	})
}

func (e *CommissionEngine) advance(ctx context.Context, id string, actor entity.Actor, operation string, apply func(*entity.Commission, time.Time) error) (*entity.Commission, error) {
	if !e.authorizer.CanActAsOwnerOrElevated(actor, "") {
		return nil, entity.ErrUnauthorized
	}

	commission, err := e.commissionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := commission.Status
	if err := apply(commission, e.now()); err != nil {
		return nil, err
	}
	if err := e.commissionRepo.UpdateStatus(ctx, commission, from); err != nil {
		return nil, fmt.Errorf("failed to %s commission: %w", operation, err)
	}

	e.logger.Info("Commission status changed",
		"commissionId", commission.ID,
		"from", from,
		"to", commission.Status,
		"actorId", actor.ID)

	if commission.Status == entity.CommissionApproved {
		e.publish(ctx, entity.EventCommissionApproved, commission, actor.ID)
	}
	return commission, nil
}

// GetCommission returns a commission visible to the actor
func (e *CommissionEngine) GetCommission(ctx context.Context, id string, actor entity.Actor) (*entity.Commission, error) {
	commission, err := e.commissionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.authorizer.CanActAsOwnerOrElevated(actor, commission.AgentID) {
		return nil, entity.NotFound("commission", id)
	}
	return commission, nil
}

// ListCommissions lists commissions, restricted to the actor's own unless elevated
func (e *CommissionEngine) ListCommissions(ctx context.Context, actor entity.Actor, filter repository.CommissionFilter) ([]*entity.Commission, error) {
	if !actor.CanViewAll {
		filter.AgentID = actor.ID
	}
	return e.commissionRepo.List(ctx, filter)
}

func (e *CommissionEngine) publish(ctx context.Context, eventType entity.EventType, commission *entity.Commission, actorID string) {
	snapshot := *commission
	e.events.Publish(ctx, entity.Event{
		Type:       eventType,
		OccurredAt: e.now(),
		ActorID:    actorID,
		Commission: &snapshot,
	})
}
