package repository

import (
	"context"
	"time"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/domain/repository"
	"flight-alert-service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAlertLogRepository implements AlertLogRepository
type MongoAlertLogRepository struct {
	collection *mongo.Collection
	logger     logger.Logger
}

const indexTimeout = 10 * time.Second

// NewMongoAlertLogRepository creates a new alert dispatch log repository.
// Index creation failures are logged; the log still accepts writes.
func NewMongoAlertLogRepository(db *mongo.Database, logger logger.Logger) repository.AlertLogRepository {
	collection := db.Collection("alert_dispatches")

	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	// One dispatch per orchestration run
	runIDIndex := mongo.IndexModel{
		Keys:    bson.M{"runId": 1},
		Options: options.Index().SetUnique(true),
	}

	sentAtIndex := mongo.IndexModel{
		Keys: bson.M{"sentAt": -1},
	}

	if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		runIDIndex,
		sentAtIndex,
	}); err != nil {
		logger.Error("Failed to create alert log indexes",
			"collection", collection.Name(),
			"error", err)
	}

	return &MongoAlertLogRepository{
		collection: collection,
		logger:     logger,
	}
}

// Record stores a dispatch, replacing any earlier entry for the same run
func (r *MongoAlertLogRepository) Record(ctx context.Context, dispatch *entity.AlertDispatch) error {
	if dispatch.SentAt.IsZero() {
		dispatch.SentAt = time.Now().UTC()
	}

	updateDoc := bson.M{
		"runId":      dispatch.RunID,
		"title":      dispatch.Title,
		"message":    dispatch.Message,
		"alertCount": dispatch.AlertCount,
		"success":    dispatch.Success,
		"error":      dispatch.Error,
		"sentAt":     dispatch.SentAt,
	}

	opts := options.Update().SetUpsert(true)
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"runId": dispatch.RunID},
		bson.M{"$set": updateDoc},
		opts,
	)
	if err != nil {
		return err
	}

	if result.UpsertedCount > 0 {
		if oid, ok := result.UpsertedID.(primitive.ObjectID); ok {
			dispatch.ID = oid.Hex()
		}
	}
	return nil
}

// Recent returns the latest dispatches, newest first
func (r *MongoAlertLogRepository) Recent(ctx context.Context, limit int) ([]*entity.AlertDispatch, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sentAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var dispatches []*entity.AlertDispatch
	if err := cursor.All(ctx, &dispatches); err != nil {
		return nil, err
	}
	return dispatches, nil
}
