package controller

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"tripdesk-service/internal/domain/entity"
)

// Response is the JSON envelope of every API reply
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CustomValidator adapts validator/v10 to echo
type CustomValidator struct {
	validator *validator.Validate
}

// NewCustomValidator creates a new request validator
func NewCustomValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return entity.InvalidInput("%s", err.Error())
	}
	return nil
}

func ok(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Status: status, Message: message, Data: data})
}

// StatusFor maps engine errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrInvalidState),
		errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, entity.ErrAmountExceedsDue),
		errors.Is(err, entity.ErrAmountExceedsOriginal):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrConflict),
		errors.Is(err, entity.ErrDuplicatePayment),
		errors.Is(err, entity.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Typed errors carry their details in data.
func (h *handlerBase) fail(c echo.Context, err error) error {
	status := StatusFor(err)
	resp := Response{Status: status, Message: err.Error()}

	var (
		conflict  *entity.ConflictError
		duplicate *entity.DuplicatePaymentError
		amount    *entity.AmountError
	)
	switch {
	case errors.As(err, &conflict):
		resp.Data = map[string]interface{}{
			"bookingId": conflict.BookingID,
			"reference": conflict.Reference,
			"startDate": conflict.StartDate,
			"endDate":   conflict.EndDate,
		}
	case errors.As(err, &duplicate):
		resp.Data = map[string]interface{}{
			"transactionId": duplicate.TransactionID,
			"createdAt":     duplicate.CreatedAt,
			"retryAfter":    duplicate.RetryAfter,
		}
	case errors.As(err, &amount):
		resp.Data = map[string]interface{}{
			"requested": amount.Requested,
			"limit":     amount.Limit,
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err)
		resp.Message = "Internal server error"
	}
	return c.JSON(status, resp)
}

func (h *handlerBase) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return entity.InvalidInput("malformed request body")
	}
	return c.Validate(req)
}
