package repository

import (
	"context"
	"errors"
	"time"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoCustomerRepository implements the CustomerRepository interface
type MongoCustomerRepository struct {
	collection *mongo.Collection
}

// NewMongoCustomerRepository creates a new MongoDB customer repository
func NewMongoCustomerRepository(db *mongo.Database) repository.CustomerRepository {
	collection := db.Collection("customers")

	ctx := context.Background()
	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.M{"agentId": 1},
	})

	return &MongoCustomerRepository{
		collection: collection,
	}
}

// FindByID finds a customer by ID
func (r *MongoCustomerRepository) FindByID(ctx context.Context, id string) (*entity.Customer, error) {
	var customer entity.Customer
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&customer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.NotFound("customer", id)
		}
		return nil, err
	}
	return &customer, nil
}

// RecordCompletedTrip increments the customer's trip aggregates
func (r *MongoCustomerRepository) RecordCompletedTrip(ctx context.Context, id string, amount decimal.Decimal, points int64, at time.Time) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{
				"totalTrips":    1,
				"totalSpent":    amount,
				"loyaltyPoints": points,
			},
			"$set": bson.M{
				"lastTripAt": at,
				"updatedAt":  now(),
			},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return entity.NotFound("customer", id)
	}
	return nil
}
