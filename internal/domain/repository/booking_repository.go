package repository

import (
	"context"
	"time"

	"tripdesk-service/internal/domain/entity"
)

// BookingFilter narrows booking listings. Empty fields are ignored.
type BookingFilter struct {
	AgentID    string
	CustomerID string
	Status     entity.BookingStatus
	Limit      int
	Offset     int
}

// OverlapQuery describes a date range for one customer and destination
type OverlapQuery struct {
	CustomerID       string
	Destination      string
	StartDate        time.Time
	EndDate          time.Time
	ExcludeBookingID string
}

// BookingRepository defines the interface for booking storage operations
type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id string) (*entity.Booking, error)
	// Update writes the booking if its stored version matches booking.Version,
	// then bumps the version. A mismatch returns entity.ErrConcurrentModification.
	Update(ctx context.Context, booking *entity.Booking) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter BookingFilter) ([]*entity.Booking, error)
	// FindOverlapping returns date-blocking bookings intersecting the query range, oldest start first
	FindOverlapping(ctx context.Context, query OverlapQuery) ([]*entity.Booking, error)
	// FindCompletedWithoutCommission returns completed or refunded bookings
	// that have no commission document
	FindCompletedWithoutCommission(ctx context.Context, limit int) ([]*entity.Booking, error)
}
