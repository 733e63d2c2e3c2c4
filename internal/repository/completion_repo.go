package repository

import (
	"context"
	"errors"
	"time"

	"habitroom-backend/internal/database"
	"habitroom-backend/internal/ledger"
	"habitroom-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CompletionRepo is the Mongo-backed ledger.Store. The guarded mutations
// are single-document FindOneAndUpdate/DeleteOne calls, which Mongo applies
// atomically.
type CompletionRepo struct {
	collection *mongo.Collection
}

var _ ledger.Store = (*CompletionRepo)(nil)

func NewCompletionRepo() *CompletionRepo {
	return &CompletionRepo{
		collection: database.GetCollection(database.Completions),
	}
}

func (r *CompletionRepo) Get(ctx context.Context, key string) (*models.Completion, error) {
	var c models.Completion
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CompletionRepo) Create(ctx context.Context, c *models.Completion) error {
	_, err := r.collection.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrDuplicateKey
	}
	return err
}

func (r *CompletionRepo) IncrementBelow(ctx context.Context, key string, max int) (int, bool, error) {
	return r.step(ctx, bson.M{"_id": key, "count": bson.M{"$lt": max}}, 1)
}

func (r *CompletionRepo) DecrementAbove(ctx context.Context, key string, min int) (int, bool, error) {
	return r.step(ctx, bson.M{"_id": key, "count": bson.M{"$gt": min}}, -1)
}

func (r *CompletionRepo) step(ctx context.Context, filter bson.M, delta int) (int, bool, error) {
	var c models.Completion
	err := r.collection.FindOneAndUpdate(ctx, filter,
		bson.M{
			"$inc": bson.M{"count": delta},
			"$set": bson.M{"updated_at": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return c.Count, true, nil
}

func (r *CompletionRepo) DeleteAt(ctx context.Context, key string, count int) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": key, "count": count})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// ForRoomBetween returns a room's completions dated from..to inclusive.
func (r *CompletionRepo) ForRoomBetween(ctx context.Context, roomID, from, to string) ([]models.Completion, error) {
	return r.find(ctx, bson.M{"room_id": roomID, "date": bson.M{"$gte": from, "$lte": to}})
}

// Between returns every completion dated from..to inclusive.
func (r *CompletionRepo) Between(ctx context.Context, from, to string) ([]models.Completion, error) {
	return r.find(ctx, bson.M{"date": bson.M{"$gte": from, "$lte": to}})
}

func (r *CompletionRepo) find(ctx context.Context, filter bson.M) ([]models.Completion, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []models.Completion
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureIndexes creates necessary indexes for the completions collection
func (r *CompletionRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
