package entity

import "time"

// EventType names a domain event
type EventType string

const (
	EventBookingCreated       EventType = "booking.created"
	EventBookingStatusChanged EventType = "booking.status_changed"
	EventBookingCompleted     EventType = "booking.completed"
	EventBookingCancelled     EventType = "booking.cancelled"
	EventPaymentCompleted     EventType = "payment.completed"
	EventPaymentFailed        EventType = "payment.failed"
	EventPaymentRefunded      EventType = "payment.refunded"
	EventCommissionCreated    EventType = "commission.created"
	EventCommissionApproved   EventType = "commission.approved"
	EventCommissionPaid       EventType = "commission.paid"
)

// Event is emitted after a successful engine mutation.
// Snapshots are copies; handlers must not write them back.
type Event struct {
	Type       EventType
	OccurredAt time.Time
	ActorID    string
	Booking    *Booking
	Payment    *Payment
	Commission *Commission
	// PreviousStatus is set on booking status events
	PreviousStatus BookingStatus
	Reason         string
}
