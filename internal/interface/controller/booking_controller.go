package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/internal/usecase"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/utils"
)

// BookingService is the booking lifecycle as seen by the API
type BookingService interface {
	CreateBooking(ctx context.Context, input usecase.CreateBookingInput, actor entity.Actor) (*entity.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, newStatus entity.BookingStatus, reason string, actor entity.Actor) (*entity.Booking, error)
	UpdateBooking(ctx context.Context, bookingID string, patch usecase.BookingPatch, actor entity.Actor) (*entity.Booking, error)
	DeleteBooking(ctx context.Context, bookingID string, actor entity.Actor) error
	GetBooking(ctx context.Context, bookingID string, actor entity.Actor) (*entity.Booking, error)
	ListBookings(ctx context.Context, actor entity.Actor, filter repository.BookingFilter) ([]*entity.Booking, error)
	ListBookingConflicts(ctx context.Context, customerID, destination string, startDate, endDate time.Time, excludeBookingID string, actor entity.Actor) ([]*entity.Booking, error)
}

type handlerBase struct {
	logger logger.Logger
}

// BookingController handles booking endpoints
type BookingController struct {
	handlerBase
	bookings BookingService
	payments PaymentService
}

// NewBookingController creates a new booking controller
func NewBookingController(bookings BookingService, payments PaymentService, logger logger.Logger) *BookingController {
	return &BookingController{
		handlerBase: handlerBase{logger: logger},
		bookings:    bookings,
		payments:    payments,
	}
}

type pricingRequest struct {
	BasePrice     decimal.Decimal `json:"basePrice"`
	Taxes         decimal.Decimal `json:"taxes"`
	ServiceCharge decimal.Decimal `json:"serviceCharge"`
	Discount      decimal.Decimal `json:"discount"`
}

type createBookingRequest struct {
	CustomerID  string         `json:"customerId" validate:"required"`
	Destination string         `json:"destination" validate:"required,max=200"`
	StartDate   string         `json:"startDate" validate:"required"`
	EndDate     string         `json:"endDate" validate:"required"`
	Travelers   int            `json:"travelers" validate:"gte=0,lte=100"`
	Currency    string         `json:"currency" validate:"omitempty,len=3"`
	Notes       string         `json:"notes" validate:"max=2000"`
	Status      string         `json:"status" validate:"omitempty,oneof=draft pending"`
	Pricing     pricingRequest `json:"pricing"`
}

type updateBookingRequest struct {
	Destination   *string          `json:"destination" validate:"omitempty,min=1,max=200"`
	StartDate     *string          `json:"startDate"`
	EndDate       *string          `json:"endDate"`
	Travelers     *int             `json:"travelers" validate:"omitempty,gte=1,lte=100"`
	Notes         *string          `json:"notes" validate:"omitempty,max=2000"`
	BasePrice     *decimal.Decimal `json:"basePrice"`
	Taxes         *decimal.Decimal `json:"taxes"`
	ServiceCharge *decimal.Decimal `json:"serviceCharge"`
	Discount      *decimal.Decimal `json:"discount"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

func parseDates(start, end string) (time.Time, time.Time, error) {
	s, err := utils.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, entity.InvalidInput("startDate: %v", err)
	}
	e, err := utils.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, entity.InvalidInput("endDate: %v", err)
	}
	return s, e, nil
}

func parseOptionalDate(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := utils.ParseDate(*value)
	if err != nil {
		return nil, entity.InvalidInput("%s: %v", field, err)
	}
	return &t, nil
}

// CreateBooking handles POST /bookings
func (h *BookingController) CreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	start, end, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		return h.fail(c, err)
	}

	booking, err := h.bookings.CreateBooking(c.Request().Context(), usecase.CreateBookingInput{
		CustomerID:  req.CustomerID,
		Destination: req.Destination,
		StartDate:   start,
		EndDate:     end,
		Travelers:   req.Travelers,
		Currency:    req.Currency,
		Notes:       req.Notes,
		Status:      entity.BookingStatus(req.Status),
		Pricing: entity.Pricing{
			BasePrice:     req.Pricing.BasePrice,
			Taxes:         req.Pricing.Taxes,
			ServiceCharge: req.Pricing.ServiceCharge,
			Discount:      req.Pricing.Discount,
		},
	}, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusCreated, "Booking created", booking)
}

// ListBookings handles GET /bookings
func (h *BookingController) ListBookings(c echo.Context) error {
	filter := repository.BookingFilter{
		AgentID:    c.QueryParam("agentId"),
		CustomerID: c.QueryParam("customerId"),
		Status:     entity.BookingStatus(c.QueryParam("status")),
		Limit:      queryInt(c, "limit", 50),
		Offset:     queryInt(c, "offset", 0),
	}
	bookings, err := h.bookings.ListBookings(c.Request().Context(), actorFrom(c), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusOK, "OK", bookings)
}

// ListConflicts handles GET /bookings/conflicts
func (h *BookingController) ListConflicts(c echo.Context) error {
	customerID := c.QueryParam("customerId")
	destination := c.QueryParam("destination")
	if customerID == "" || destination == "" {
		return h.fail(c, entity.InvalidInput("customerId and destination are required"))
	}
	start, end, err := parseDates(c.QueryParam("startDate"), c.QueryParam("endDate"))
	if err != nil {
		return h.fail(c, err)
	}

	conflicts, err := h.bookings.ListBookingConflicts(c.Request().Context(), customerID, destination,
		start, end, c.QueryParam("excludeId"), actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusOK, "OK", map[string]interface{}{
		"hasConflict": len(conflicts) > 0,
		"conflicts":   conflicts,
	})
}

// GetBooking handles GET /bookings/:id
func (h *BookingController) GetBooking(c echo.Context) error {
	booking, err := h.bookings.GetBooking(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusOK, "OK", booking)
}

// UpdateBooking handles PATCH /bookings/:id
func (h *BookingController) UpdateBooking(c echo.Context) error {
	var req updateBookingRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	start, err := parseOptionalDate("startDate", req.StartDate)
	if err != nil {
		return h.fail(c, err)
	}
	end, err := parseOptionalDate("endDate", req.EndDate)
	if err != nil {
		return h.fail(c, err)
	}

	booking, err := h.bookings.UpdateBooking(c.Request().Context(), c.Param("id"), usecase.BookingPatch{
		Destination:   req.Destination,
		StartDate:     start,
		EndDate:       end,
		Travelers:     req.Travelers,
		Notes:         req.Notes,
		BasePrice:     req.BasePrice,
		Taxes:         req.Taxes,
		ServiceCharge: req.ServiceCharge,
		Discount:      req.Discount,
	}, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusOK, "Booking updated", booking)
}

// UpdateStatus handles PATCH /bookings/:id/status
func (h *BookingController) UpdateStatus(c echo.Context) error {
	var req updateStatusRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	booking, err := h.bookings.UpdateBookingStatus(c.Request().Context(), c.Param("id"),
		entity.BookingStatus(req.Status), req.Reason, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusOK, "Booking status updated", booking)
}

// DeleteBooking handles DELETE /bookings/:id
func (h *BookingController) DeleteBooking(c echo.Context) error {
	if err := h.bookings.DeleteBooking(c.Request().Context(), c.Param("id"), actorFrom(c)); err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusOK, "Booking deleted", nil)
}

// ListPayments handles GET /bookings/:id/payments
func (h *BookingController) ListPayments(c echo.Context) error {
	payments, err := h.payments.ListPayments(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusOK, "OK", payments)
}

func queryInt(c echo.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
