package repository

import (
	"context"
	"errors"
	"time"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBookingRepository implements the BookingRepository interface
type MongoBookingRepository struct {
	collection *mongo.Collection
}

// NewMongoBookingRepository creates a new MongoDB booking repository
func NewMongoBookingRepository(db *mongo.Database) repository.BookingRepository {
	collection := db.Collection("bookings")

	ctx := context.Background()

	// Unique human reference
	referenceIndex := mongo.IndexModel{
		Keys:    bson.M{"reference": 1},
		Options: options.Index().SetUnique(true),
	}

	// Overlap lookups by customer and destination
	overlapIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "customerId", Value: 1},
			{Key: "destination", Value: 1},
			{Key: "startDate", Value: 1},
		},
	}

	// Agent listings
	agentIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "agentId", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	}

	statusIndex := mongo.IndexModel{
		Keys: bson.M{"status": 1},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		referenceIndex,
		overlapIndex,
		agentIndex,
		statusIndex,
	})

	return &MongoBookingRepository{
		collection: collection,
	}
}

// Create inserts a new booking
func (r *MongoBookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	if booking.ID == "" {
		booking.ID = primitive.NewObjectID().Hex()
	}
	if booking.Version == 0 {
		booking.Version = 1
	}
	booking.Recalculate()

	_, err := r.collection.InsertOne(ctx, booking)
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrDuplicateKey
	}
	return err
}

// FindByID finds a booking by ID
func (r *MongoBookingRepository) FindByID(ctx context.Context, id string) (*entity.Booking, error) {
	var booking entity.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.NotFound("booking", id)
		}
		return nil, err
	}
	booking.Recalculate()
	return &booking, nil
}

// Update replaces the booking when the stored version matches, then bumps the version
func (r *MongoBookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	expected := booking.Version
	booking.Recalculate()

	next := *booking
	next.Version = expected + 1

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": booking.ID, "version": expected}, &next)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": booking.ID})
		if err != nil {
			return err
		}
		if count == 0 {
			return entity.NotFound("booking", booking.ID)
		}
		return entity.ErrConcurrentModification
	}

	booking.Version = next.Version
	return nil
}

// Delete removes a booking
func (r *MongoBookingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return entity.NotFound("booking", id)
	}
	return nil
}

// List returns bookings matching the filter, newest first
func (r *MongoBookingRepository) List(ctx context.Context, filter repository.BookingFilter) ([]*entity.Booking, error) {
	query := bson.M{}
	if filter.AgentID != "" {
		query["agentId"] = filter.AgentID
	}
	if filter.CustomerID != "" {
		query["customerId"] = filter.CustomerID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	return r.find(ctx, query, opts)
}

// FindOverlapping returns date-blocking bookings whose closed range intersects the query
func (r *MongoBookingRepository) FindOverlapping(ctx context.Context, q repository.OverlapQuery) ([]*entity.Booking, error) {
	query := bson.M{
		"customerId":  q.CustomerID,
		"destination": q.Destination,
		"status": bson.M{"$nin": []entity.BookingStatus{
			entity.BookingCancelled,
			entity.BookingRefunded,
		}},
		"startDate": bson.M{"$lte": q.EndDate},
		"endDate":   bson.M{"$gte": q.StartDate},
	}
	if q.ExcludeBookingID != "" {
		query["_id"] = bson.M{"$ne": q.ExcludeBookingID}
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "startDate", Value: 1},
		{Key: "createdAt", Value: 1},
	})
	return r.find(ctx, query, opts)
}

// FindCompletedWithoutCommission joins bookings that reached completed against commissions
func (r *MongoBookingRepository) FindCompletedWithoutCommission(ctx context.Context, limit int) ([]*entity.Booking, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": bson.M{"$in": []entity.BookingStatus{
			entity.BookingCompleted,
			entity.BookingRefunded,
		}}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         commissionsCollection,
			"localField":   "_id",
			"foreignField": "bookingId",
			"as":           "commission",
		}}},
		{{Key: "$match", Value: bson.M{"commission": bson.M{"$size": 0}}}},
		{{Key: "$project", Value: bson.M{"commission": 0}}},
		{{Key: "$sort", Value: bson.M{"completedAt": 1}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return decodeBookings(ctx, cursor)
}

func (r *MongoBookingRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*entity.Booking, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return decodeBookings(ctx, cursor)
}

func decodeBookings(ctx context.Context, cursor *mongo.Cursor) ([]*entity.Booking, error) {
	defer cursor.Close(ctx)

	var bookings []*entity.Booking
	for cursor.Next(ctx) {
		var booking entity.Booking
		if err := cursor.Decode(&booking); err != nil {
			return nil, err
		}
		booking.Recalculate()
		bookings = append(bookings, &booking)
	}
	return bookings, cursor.Err()
}

func now() time.Time {
	return time.Now().UTC()
}
