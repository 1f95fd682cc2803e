package repository

import (
	"context"
	"errors"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const commissionsCollection = "commissions"

// MongoCommissionRepository implements the CommissionRepository interface
type MongoCommissionRepository struct {
	collection *mongo.Collection
}

// NewMongoCommissionRepository creates a new MongoDB commission repository
func NewMongoCommissionRepository(db *mongo.Database) repository.CommissionRepository {
	collection := db.Collection(commissionsCollection)

	ctx := context.Background()

	// At most one commission per booking
	bookingIndex := mongo.IndexModel{
		Keys:    bson.M{"bookingId": 1},
		Options: options.Index().SetUnique(true),
	}

	referenceIndex := mongo.IndexModel{
		Keys:    bson.M{"reference": 1},
		Options: options.Index().SetUnique(true),
	}

	agentIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "agentId", Value: 1},
			{Key: "status", Value: 1},
		},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		bookingIndex,
		referenceIndex,
		agentIndex,
	})

	return &MongoCommissionRepository{
		collection: collection,
	}
}

// Create inserts a commission
func (r *MongoCommissionRepository) Create(ctx context.Context, commission *entity.Commission) error {
	if commission.ID == "" {
		commission.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.collection.InsertOne(ctx, commission)
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrDuplicateKey
	}
	return err
}

// FindByID finds a commission by ID
func (r *MongoCommissionRepository) FindByID(ctx context.Context, id string) (*entity.Commission, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

// FindByBookingID finds the commission of a booking
func (r *MongoCommissionRepository) FindByBookingID(ctx context.Context, bookingID string) (*entity.Commission, error) {
	return r.findOne(ctx, bson.M{"bookingId": bookingID}, bookingID)
}

// UpdateStatus persists a status change guarded by the previous status
func (r *MongoCommissionRepository) UpdateStatus(ctx context.Context, commission *entity.Commission, from entity.CommissionStatus) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": commission.ID, "status": from},
		bson.M{"$set": bson.M{
			"status":       commission.Status,
			"approvedBy":   commission.ApprovedBy,
			"approvedAt":   commission.ApprovedAt,
			"paidBy":       commission.PaidBy,
			"paidAt":       commission.PaidAt,
			"payout":       commission.Payout,
			"statusReason": commission.StatusReason,
			"updatedAt":    commission.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return entity.ErrConcurrentModification
	}
	return nil
}

// List returns commissions matching the filter, newest first
func (r *MongoCommissionRepository) List(ctx context.Context, filter repository.CommissionFilter) ([]*entity.Commission, error) {
	query := bson.M{}
	if filter.AgentID != "" {
		query["agentId"] = filter.AgentID
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

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var commissions []*entity.Commission
	if err := cursor.All(ctx, &commissions); err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *MongoCommissionRepository) findOne(ctx context.Context, filter bson.M, id string) (*entity.Commission, error) {
	var commission entity.Commission
	err := r.collection.FindOne(ctx, filter).Decode(&commission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.NotFound("commission", id)
		}
		return nil, err
	}
	return &commission, nil
}
