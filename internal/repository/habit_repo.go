package repository

import (
	"context"
	"errors"
	"time"

	"habitroom-backend/internal/database"
	"habitroom-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type HabitRepo struct {
	collection *mongo.Collection
}

func NewHabitRepo() *HabitRepo {
	return &HabitRepo{
		collection: database.GetCollection(database.Habits),
	}
}

func (r *HabitRepo) Create(ctx context.Context, habit *models.Habit) error {
	habit.CreatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, habit)
	if err != nil {
		return err
	}
	habit.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *HabitRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.Habit, error) {
	var habit models.Habit
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&habit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &habit, nil
}

func (r *HabitRepo) ListByRoom(ctx context.Context, roomID string) ([]models.Habit, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"room_id": roomID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var habits []models.Habit
	if err := cursor.All(ctx, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// Delete removes a habit from its room. Completions that reference it are
// kept and keep scoring from their own points snapshot.
func (r *HabitRepo) Delete(ctx context.Context, roomID string, id bson.ObjectID) (bool, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "room_id": roomID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// EnsureIndexes creates necessary indexes for the habits collection
func (r *HabitRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}
