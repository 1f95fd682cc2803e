package templates

import (
	"context"
	"fmt"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/utils"
)

const (
	MSG_BOOKING_CREATED = "Halo %s,\n\nYour trip to *%s* has been booked.\nReference: *%s*\nDates: %s to %s (%d nights)\nTotal: %s %s\n\nWe will let you know as soon as it is confirmed."

	MSG_BOOKING_STATUS = "Halo %s,\n\nBooking *%s* to *%s* is now *%s*.\nDates: %s to %s"

	MSG_BOOKING_CANCELLED = "Halo %s,\n\nBooking *%s* to *%s* has been cancelled.\nReason: %s\n\nPlease contact your agent for any refund questions."
)

// BookingNoticeHandler sends WhatsApp notices to the customer when a booking is created or changes status
type BookingNoticeHandler struct {
	customerRepo repository.CustomerRepository
	whatsappRepo repository.WhatsappRepository
	logger       logger.Logger
}

// NewBookingNoticeHandler creates a new booking notice handler
func NewBookingNoticeHandler(customerRepo repository.CustomerRepository, whatsappRepo repository.WhatsappRepository, logger logger.Logger) *BookingNoticeHandler {
	return &BookingNoticeHandler{
		customerRepo: customerRepo,
		whatsappRepo: whatsappRepo,
		logger:       logger,
	}
}

// CanHandle determines if this handler reacts to the event type
func (h *BookingNoticeHandler) CanHandle(eventType entity.EventType) bool {
	switch eventType {
	case entity.EventBookingCreated, entity.EventBookingStatusChanged:
		return true
	}
	return false
}

// Handle renders the notice and queues it with the messaging service
func (h *BookingNoticeHandler) Handle(ctx context.Context, event entity.Event) error {
	booking := event.Booking
	if booking == nil {
		return fmt.Errorf("event %s carries no booking", event.Type)
	}
	// Drafts are internal until they are submitted
	if booking.Status == entity.BookingDraft {
		return nil
	}

	customer, err := h.customerRepo.FindByID(ctx, booking.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}

	phone := utils.NormalizePhone(customer.Phone)
	if phone == "" {
		h.logger.Warn("Customer has no usable phone number, skipping notice",
			"customerId", customer.ID,
			"bookingId", booking.ID)
		return nil
	}

	taskID, err := h.whatsappRepo.SendText(ctx, phone, h.render(event, customer))
	if err != nil {
		return fmt.Errorf("failed to send booking notice: %w", err)
	}

	h.logger.Info("Booking notice queued",
		"bookingId", booking.ID,
		"status", booking.Status,
		"taskId", taskID)
	return nil
}

func (h *BookingNoticeHandler) render(event entity.Event, customer *entity.Customer) string {
	b := event.Booking
	start := b.StartDate.Format(utils.DATE_LAYOUT)
	end := b.EndDate.Format(utils.DATE_LAYOUT)

	switch {
	case event.Type == entity.EventBookingCreated:
		return fmt.Sprintf(MSG_BOOKING_CREATED, customer.Name, b.Destination, b.Reference,
			start, end, b.Nights, b.Currency, utils.FormatMoney(b.TotalAmount))
	case b.Status == entity.BookingCancelled:
		reason := event.Reason
		if reason == "" {
			reason = "-"
		}
		return fmt.Sprintf(MSG_BOOKING_CANCELLED, customer.Name, b.Reference, b.Destination, reason)
	default:
		return fmt.Sprintf(MSG_BOOKING_STATUS, customer.Name, b.Reference, b.Destination,
			statusLabel(b.Status), start, end)
	}
}

func statusLabel(status entity.BookingStatus) string {
	switch status {
	case entity.BookingInProgress:
		return "in progress"
	default:
		return string(status)
	}
}
