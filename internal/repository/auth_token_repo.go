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

var (
	ErrTokenNotFound = errors.New("login token not found")
	ErrTokenExpired  = errors.New("login token has expired")
	ErrTokenUsed     = errors.New("login token has already been used")
)

type AuthTokenRepo struct {
	collection *mongo.Collection
}

func NewAuthTokenRepo() *AuthTokenRepo {
	return &AuthTokenRepo{
		collection: database.GetCollection(database.AuthTokens),
	}
}

func (r *AuthTokenRepo) Create(ctx context.Context, token *models.AuthToken) error {
	token.CreatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, token)
	if err != nil {
		return err
	}
	token.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// Consume marks an unexpired, unused token as used and returns it. Two
// concurrent verifications of the same link cannot both succeed.
func (r *AuthTokenRepo) Consume(ctx context.Context, token string, now time.Time) (*models.AuthToken, error) {
	var authToken models.AuthToken
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"token": token, "is_used": false, "expires_at": bson.M{"$gt": now}},
		bson.M{"$set": bson.M{"is_used": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&authToken)
	if err == nil {
		return &authToken, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// Work out which guard failed so the client gets a useful message.
	var existing models.AuthToken
	if err := r.collection.FindOne(ctx, bson.M{"token": token}).Decode(&existing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if existing.IsUsed {
		return nil, ErrTokenUsed
	}
	return nil, ErrTokenExpired
}

// CountRecentByEmail counts how many tokens were created for an email in the given duration.
// Used for rate limiting.
func (r *AuthTokenRepo) CountRecentByEmail(ctx context.Context, email string, duration time.Duration) (int64, error) {
	since := time.Now().Add(-duration)
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"email":      email,
		"created_at": bson.M{"$gte": since},
	})
	return count, err
}

// EnsureIndexes creates necessary indexes for the auth_tokens collection
func (r *AuthTokenRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index: expired tokens are removed
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
