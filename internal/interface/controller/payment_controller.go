package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/usecase"
	"tripdesk-service/pkg/logger"
)

// PaymentService is the payment processor as seen by the API
type PaymentService interface {
	ProcessPayment(ctx context.Context, input usecase.PaymentInput, actor entity.Actor) (*entity.Payment, error)
	ProcessRefund(ctx context.Context, input usecase.RefundInput, actor entity.Actor) (*entity.Payment, error)
	ListPayments(ctx context.Context, bookingID string, actor entity.Actor) ([]*entity.Payment, error)
}

// PaymentController handles payment endpoints
type PaymentController struct {
	handlerBase
	payments PaymentService
}

// NewPaymentController creates a new payment controller
func NewPaymentController(payments PaymentService, logger logger.Logger) *PaymentController {
	return &PaymentController{
		handlerBase: handlerBase{logger: logger},
		payments:    payments,
	}
}

type paymentRequest struct {
	BookingID string          `json:"bookingId" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required,oneof=cash credit_card debit_card bank_transfer online"`
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason" validate:"max=500"`
}

// ProcessPayment handles POST /payments
func (h *PaymentController) ProcessPayment(c echo.Context) error {
	var req paymentRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	payment, err := h.payments.ProcessPayment(c.Request().Context(), usecase.PaymentInput{
		BookingID: req.BookingID,
		Amount:    req.Amount,
		Method:    entity.PaymentMethod(req.Method),
	}, actorFrom(c))
	if err != nil {
		if errors.Is(err, entity.ErrPaymentDeclined) && payment != nil {
			return c.JSON(http.StatusPaymentRequired, Response{
				Status:  http.StatusPaymentRequired,
				Message: err.Error(),
				Data:    payment,
			})
		}
		return h.fail(c, err)
	}
	return ok(c, http.StatusCreated, "Payment completed", payment)
}

// ProcessRefund handles POST /payments/:id/refund
func (h *PaymentController) ProcessRefund(c echo.Context) error {
	var req refundRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	refund, err := h.payments.ProcessRefund(c.Request().Context(), usecase.RefundInput{
		PaymentID: c.Param("id"),
		Amount:    req.Amount,
		Reason:    req.Reason,
	}, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusCreated, "Refund processed", refund)
}
