package controller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"
)

// CommissionService is the commission engine as seen by the API
type CommissionService interface {
	CreateCommissionForBooking(ctx context.Context, bookingID string, actor entity.Actor) (*entity.Commission, error)
	ApproveCommission(ctx context.Context, id string, actor entity.Actor) (*entity.Commission, error)
	MarkCommissionPaid(ctx context.Context, id string, details entity.PayoutDetails, actor entity.Actor) (*entity.Commission, error)
	RejectCommission(ctx context.Context, id, reason string, actor entity.Actor) (*entity.Commission, error)
	HoldCommission(ctx context.Context, id, reason string, actor entity.Actor) (*entity.Commission, error)
	ReleaseCommission(ctx context.Context, id string, actor entity.Actor) (*entity.Commission, error)
	ListCommissions(ctx context.Context, actor entity.Actor, filter repository.CommissionFilter) ([]*entity.Commission, error)
}

// CommissionController handles commission endpoints
type CommissionController struct {
	handlerBase
	commissions CommissionService
}

// NewCommissionController creates a new commission controller
func NewCommissionController(commissions CommissionService, logger logger.Logger) *CommissionController {
	return &CommissionController{
		handlerBase: handlerBase{logger: logger},
		commissions: commissions,
	}
}

type createCommissionRequest struct {
	BookingID string `json:"bookingId" validate:"required"`
}

type payoutRequest struct {
	Method         string `json:"method" validate:"required"`
	TransactionRef string `json:"transactionRef"`
	Notes          string `json:"notes" validate:"max=500"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CreateCommission handles POST /commissions
func (h *CommissionController) CreateCommission(c echo.Context) error {
	var req createCommissionRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	commission, err := h.commissions.CreateCommissionForBooking(c.Request().Context(), req.BookingID, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusCreated, "Commission created", commission)
}

// ListCommissions handles GET /commissions
func (h *CommissionController) ListCommissions(c echo.Context) error {
	filter := repository.CommissionFilter{
		AgentID: c.QueryParam("agentId"),
		Status:  entity.CommissionStatus(c.QueryParam("status")),
		Limit:   queryInt(c, "limit", 50),
		Offset:  queryInt(c, "offset", 0),
	}
	commissions, err := h.commissions.ListCommissions(c.Request().Context(), actorFrom(c), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusOK, "OK", commissions)
}

// Approve handles PATCH /commissions/:id/approve
func (h *CommissionController) Approve(c echo.Context) error {
	return h.reply(c, "Commission approved")(h.commissions.ApproveCommission(c.Request().Context(), c.Param("id"), actorFrom(c)))
}

// Pay handles PATCH /commissions/:id/pay
func (h *CommissionController) Pay(c echo.Context) error {
	var req payoutRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	details := entity.PayoutDetails{Method: req.Method, TransactionRef: req.TransactionRef, Notes: req.Notes}
	return h.reply(c, "Commission paid")(h.commissions.MarkCommissionPaid(c.Request().Context(), c.Param("id"), details, actorFrom(c)))
}

// Reject handles PATCH /commissions/:id/reject
func (h *CommissionController) Reject(c echo.Context) error {
	var req reasonRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	return h.reply(c, "Commission rejected")(h.commissions.RejectCommission(c.Request().Context(), c.Param("id"), req.Reason, actorFrom(c)))
}

// Hold handles PATCH /commissions/:id/hold
func (h *CommissionController) Hold(c echo.Context) error {
	var req reasonRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	return h.reply(c, "Commission on hold")(h.commissions.HoldCommission(c.Request().Context(), c.Param("id"), req.Reason, actorFrom(c)))
}

// Release handles PATCH /commissions/:id/release
func (h *CommissionController) Release(c echo.Context) error {
	return h.reply(c, "Commission released")(h.commissions.ReleaseCommission(c.Request().Context(), c.Param("id"), actorFrom(c)))
}

func (h *CommissionController) reply(c echo.Context, message string) func(*entity.Commission, error) error {
	return func(commission *entity.Commission, err error) error {
		if err != nil {
			return h.fail(c, err)
		}
		return ok(c, http.StatusOK, message, commission)
	}
}
