package entity

import "fmt"

// BookingStatus is the lifecycle state of a booking
type BookingStatus string

const (
	BookingDraft      BookingStatus = "draft"
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
	BookingRefunded   BookingStatus = "refunded"
)

// bookingTransitions is the booking state machine
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingDraft:      {BookingPending, BookingCancelled},
	BookingPending:    {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingInProgress, BookingCancelled},
	BookingInProgress: {BookingCompleted, BookingCancelled},
	BookingCompleted:  {BookingRefunded},
	BookingCancelled:  {BookingPending},
	BookingRefunded:   {},
}

// IsValid returns true if the status is a recognized booking status
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransitionTo returns true if the edge s → target exists
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// IsEditable reports whether full field edits are allowed
func (s BookingStatus) IsEditable() bool {
	return s == BookingDraft || s == BookingPending
}

// IsDeletable reports whether the booking may be removed
func (s BookingStatus) IsDeletable() bool {
	return s == BookingDraft || s == BookingCancelled
}

// BlocksDates reports whether a booking in this status occupies its date range
func (s BookingStatus) BlocksDates() bool {
	return s != BookingCancelled && s != BookingRefunded
}

// AcceptsPayments reports whether payments may be taken
func (s BookingStatus) AcceptsPayments() bool {
	return s != BookingCancelled && s != BookingRefunded
}

func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown booking status %q", ErrInvalidInput, s)
	}
	return status, nil
}

// PaymentStatus is the derived settlement state of a booking
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefunded      PaymentStatus = "refunded"
)
