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

type UserRepo struct {
	collection *mongo.Collection
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		collection: database.GetCollection(database.Users),
	}
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads the given users, oldest account first. Unknown ids are
// skipped.
func (r *UserRepo) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListAll returns every user. The reminder job reads the whole population
// once per run.
func (r *UserRepo) ListAll(ctx context.Context) ([]models.User, error) {
	return r.find(ctx, bson.M{})
}

func (r *UserRepo) find(ctx context.Context, filter bson.M) ([]models.User, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return err
	}
	user.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// FindOrCreate returns the user for email, creating it on first login.
// A username supplied at login fills in an account that has none yet.
func (r *UserRepo) FindOrCreate(ctx context.Context, email, username string) (*models.User, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if user.Username == "" && username != "" {
			if err := r.UpdateUsername(ctx, user.ID, username); err != nil {
				return nil, err
			}
			user.Username = username
		}
		return user, nil
	}

	newUser := &models.User{
		Email:    email,
		Username: username,
	}
	if err := r.Create(ctx, newUser); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Two verify requests for a new email raced; use the winner.
			return r.FindByEmail(ctx, email)
		}
		return nil, err
	}
	return newUser, nil
}

func (r *UserRepo) UpdateUsername(ctx context.Context, id bson.ObjectID, username string) error {
	return r.set(ctx, id, bson.M{"username": username})
}

func (r *UserRepo) SetEmailReminders(ctx context.Context, id bson.ObjectID, enabled bool) error {
	return r.set(ctx, id, bson.M{"email_reminders": enabled})
}

// SetRoom moves the user into roomID. An empty roomID leaves any room.
func (r *UserRepo) SetRoom(ctx context.Context, id bson.ObjectID, roomID string) error {
	if roomID == "" {
		_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
			"$unset": bson.M{"room_id": ""},
			"$set":   bson.M{"updated_at": time.Now()},
		})
		return err
	}
	return r.set(ctx, id, bson.M{"room_id": roomID})
}

func (r *UserRepo) set(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	return err
}

// EnsureIndexes creates necessary indexes for the users collection
func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}
