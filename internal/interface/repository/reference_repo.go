package repository

import (
	"context"
	"fmt"

	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoReferenceRepository generates <PREFIX>-<YYYYMMDD>-<seq> references from a counters collection
type MongoReferenceRepository struct {
	collection *mongo.Collection
}

// NewMongoReferenceRepository creates a new reference generator
func NewMongoReferenceRepository(db *mongo.Database) repository.ReferenceRepository {
	return &MongoReferenceRepository{
		collection: db.Collection("counters"),
	}
}

// NextReference atomically increments the counter for prefix and today
func (r *MongoReferenceRepository) NextReference(ctx context.Context, prefix string) (string, error) {
	day := now().Format(utils.REFERENCE_DAY_LAYOUT)
	counterID := prefix + "-" + day

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": counterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s reference: %w", prefix, err)
	}

	return utils.FormatReference(prefix, day, counter.Seq), nil
}
