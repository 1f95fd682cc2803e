package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/internal/infrastructure/persistence"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// testDatabase connects to MONGODB_TEST_DSN and returns a throwaway database
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	dsn := os.Getenv("MONGODB_TEST_DSN")
	if dsn == "" {
		t.Skip("MONGODB_TEST_DSN not set")
	}

	ctx := context.Background()
	client, err := persistence.NewMongoClient(ctx, dsn, "", "")
	require.NoError(t, err)

	db := client.Database("tripdesk_test_" + time.Now().Format("150405000"))
	t.Cleanup(func() {
		db.Drop(context.Background())
		client.Disconnect(context.Background())
	})
	return db
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func newBooking(customer, destination, start, end string, status entity.BookingStatus) *entity.Booking {
	b := &entity.Booking{
		Reference:   "BK-" + start + "-" + customer + "-" + string(status),
		AgentID:     "agent-1",
		CustomerID:  customer,
		Destination: destination,
		StartDate:   day(start),
		EndDate:     day(end),
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	b.ApplyPricing(entity.Pricing{BasePrice: decimal.RequireFromString("1000.10")})
	return b
}

func TestMongoBookingRepository(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewMongoBookingRepository(db)

	b := newBooking("c1", "Bali", "2026-05-01", "2026-05-08", entity.BookingPending)
	require.NoError(t, repo.Create(ctx, b))
	require.NoError(t, repo.Create(ctx, newBooking("c1", "Bali", "2026-06-01", "2026-06-03", entity.BookingCancelled)))

	got, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("1000.10")))

	overlaps, err := repo.FindOverlapping(ctx, repository.OverlapQuery{
		CustomerID: "c1", Destination: "Bali", StartDate: day("2026-05-08"), EndDate: day("2026-05-10"),
	})
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, b.ID, overlaps[0].ID)

	overlaps, err = repo.FindOverlapping(ctx, repository.OverlapQuery{
		CustomerID: "c1", Destination: "Bali", StartDate: day("2026-06-01"), EndDate: day("2026-06-02"),
	})
	require.NoError(t, err)
	assert.Empty(t, overlaps)

	stale := got.Clone()
	got.Notes = "window seat"
	require.NoError(t, repo.Update(ctx, got))
	stale.Notes = "aisle"
	assert.ErrorIs(t, repo.Update(ctx, stale), entity.ErrConcurrentModification)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestMongoCommissionRepositoryUniquePerBooking(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	bookings := NewMongoBookingRepository(db)
	commissions := NewMongoCommissionRepository(db)

	b := newBooking("c2", "Rome", "2026-07-01", "2026-07-05", entity.BookingCompleted)
	require.NoError(t, bookings.Create(ctx, b))

	missing, err := bookings.FindCompletedWithoutCommission(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	require.NoError(t, commissions.Create(ctx, &entity.Commission{Reference: "COM-1", BookingID: b.ID, Status: entity.CommissionPending}))
	err = commissions.Create(ctx, &entity.Commission{Reference: "COM-2", BookingID: b.ID, Status: entity.CommissionPending})
	assert.ErrorIs(t, err, entity.ErrDuplicateKey)

	missing, err = bookings.FindCompletedWithoutCommission(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMongoReferenceRepositorySequence(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	refs := NewMongoReferenceRepository(db)

	first, err := refs.NextReference(ctx, "BK")
	require.NoError(t, err)
	second, err := refs.NextReference(ctx, "BK")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Regexp(t, `^BK-\d{8}-000001$`, first)
	assert.Regexp(t, `^BK-\d{8}-000002$`, second)
}
