package repository

import (
	"context"
	"errors"
	"time"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPaymentRepository implements the PaymentRepository interface
type MongoPaymentRepository struct {
	collection *mongo.Collection
}

// NewMongoPaymentRepository creates a new MongoDB payment repository
func NewMongoPaymentRepository(db *mongo.Database) repository.PaymentRepository {
	collection := db.Collection("payments")

	ctx := context.Background()

	transactionIndex := mongo.IndexModel{
		Keys:    bson.M{"transactionId": 1},
		Options: options.Index().SetUnique(true),
	}

	// Duplicate window and per-booking history
	bookingIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "bookingId", Value: 1},
			{Key: "status", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	}

	// Stale processing sweep
	statusIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "createdAt", Value: 1},
		},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		transactionIndex,
		bookingIndex,
		statusIndex,
	})

	return &MongoPaymentRepository{
		collection: collection,
	}
}

// Create inserts a payment record
func (r *MongoPaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	if payment.ID == "" {
		payment.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.collection.InsertOne(ctx, payment)
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrDuplicateKey
	}
	return err
}

// FindByID finds a payment by ID
func (r *MongoPaymentRepository) FindByID(ctx context.Context, id string) (*entity.Payment, error) {
	var payment entity.Payment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.NotFound("payment", id)
		}
		return nil, err
	}
	return &payment, nil
}

// FindByBooking returns every payment and refund for a booking, oldest first
func (r *MongoPaymentRepository) FindByBooking(ctx context.Context, bookingID string) ([]*entity.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.find(ctx, bson.M{"bookingId": bookingID}, opts)
}

// FindRecentCompleted returns completed charges of exactly amount created at or after since
func (r *MongoPaymentRepository) FindRecentCompleted(ctx context.Context, bookingID string, amount decimal.Decimal, since time.Time) ([]*entity.Payment, error) {
	query := bson.M{
		"bookingId": bookingID,
		"status":    entity.TransactionCompleted,
		"amount":    amount,
		"type":      bson.M{"$ne": entity.PaymentTypeRefund},
		"createdAt": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, query, opts)
}

// UpdateStatus moves the payment out of from and persists its mutable fields
func (r *MongoPaymentRepository) UpdateStatus(ctx context.Context, payment *entity.Payment, from entity.TransactionStatus) error {
	payment.UpdatedAt = now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": payment.ID, "status": from},
		bson.M{"$set": bson.M{
			"status":           payment.Status,
			"receiptNumber":    payment.ReceiptNumber,
			"gatewayReference": payment.GatewayReference,
			"failureReason":    payment.FailureReason,
			"appliedAt":        payment.AppliedAt,
			"completedAt":      payment.CompletedAt,
			"refundedAt":       payment.RefundedAt,
			"updatedAt":        payment.UpdatedAt,
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

// FindStaleProcessing returns payments stuck in processing since before cutoff
func (r *MongoPaymentRepository) FindStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Payment, error) {
	query := bson.M{
		"status":    entity.TransactionProcessing,
		"createdAt": bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, query, opts)
}

func (r *MongoPaymentRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*entity.Payment, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var payments []*entity.Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}
