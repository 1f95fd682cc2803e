package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controllers groups the API handlers
type Controllers struct {
	Bookings    *BookingController
	Payments    *PaymentController
	Commissions *CommissionController
}

// RegisterRoutes mounts health, metrics and the versioned API on e
func RegisterRoutes(e *echo.Echo, ctrl Controllers, limiter *RateLimiter, gatherer prometheus.Gatherer, version string) {
	e.Match([]string{http.MethodGet, http.MethodHead}, "/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api/v1")
	api.Use(ActorMiddleware())
	api.Use(limiter.RateLimit())

	bookings := api.Group("/bookings")
	bookings.POST("", ctrl.Bookings.CreateBooking)
	bookings.GET("", ctrl.Bookings.ListBookings)
	bookings.GET("/conflicts", ctrl.Bookings.ListConflicts)
	bookings.GET("/:id", ctrl.Bookings.GetBooking)
	bookings.PATCH("/:id", ctrl.Bookings.UpdateBooking)
	bookings.PATCH("/:id/status", ctrl.Bookings.UpdateStatus)
	bookings.DELETE("/:id", ctrl.Bookings.DeleteBooking)
	bookings.GET("/:id/payments", ctrl.Bookings.ListPayments)

	payments := api.Group("/payments")
	payments.POST("", ctrl.Payments.ProcessPayment)
	payments.POST("/:id/refund", ctrl.Payments.ProcessRefund)

	commissions := api.Group("/commissions")
	commissions.POST("", ctrl.Commissions.CreateCommission)
	commissions.GET("", ctrl.Commissions.ListCommissions)
	commissions.PATCH("/:id/approve", ctrl.Commissions.Approve)
	commissions.PATCH("/:id/pay", ctrl.Commissions.Pay)
	commissions.PATCH("/:id/reject", ctrl.Commissions.Reject)
	commissions.PATCH("/:id/hold", ctrl.Commissions.Hold)
	commissions.PATCH("/:id/release", ctrl.Commissions.Release)
}
