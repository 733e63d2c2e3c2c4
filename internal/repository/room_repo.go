package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"habitroom-backend/internal/database"
	"habitroom-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// roomCodeAttempts bounds retries when a freshly drawn code is taken.
const roomCodeAttempts = 5

var ErrRoomCodeExhausted = errors.New("could not allocate a unique room code")

type RoomRepo struct {
	collection *mongo.Collection
}

func NewRoomRepo() *RoomRepo {
	return &RoomRepo{
		collection: database.GetCollection(database.Rooms),
	}
}

// Create allocates a fresh join code and stores a room with creator as its
// only member.
func (r *RoomRepo) Create(ctx context.Context, creator bson.ObjectID) (*models.Room, error) {
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := NewRoomCode()
		if err != nil {
			return nil, err
		}
		room := &models.Room{
			ID:        code,
			CreatedBy: creator,
			MemberIDs: []bson.ObjectID{creator},
			CreatedAt: time.Now(),
		}
		_, err = r.collection.InsertOne(ctx, room)
		if err == nil {
			return room, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
	}
	return nil, ErrRoomCodeExhausted
}

func (r *RoomRepo) FindByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepo) ListAll(ctx context.Context) ([]models.Room, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var rooms []models.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *RoomRepo) AddMember(ctx context.Context, roomID string, userID bson.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{
		"$addToSet": bson.M{"member_ids": userID},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("add member to %s: %w", roomID, ErrRoomNotFound)
	}
	return nil
}

func (r *RoomRepo) RemoveMember(ctx context.Context, roomID string, userID bson.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{
		"$pull": bson.M{"member_ids": userID},
	})
	return err
}

// EnsureIndexes creates necessary indexes for the rooms collection
func (r *RoomRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "member_ids", Value: 1}},
	})
	return err
}

// NewRoomCode draws a code from models.RoomCodeAlphabet.
func NewRoomCode() (string, error) {
	alphabet := big.NewInt(int64(len(models.RoomCodeAlphabet)))
	code := make([]byte, models.RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", fmt.Errorf("room code: %w", err)
		}
		code[i] = models.RoomCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
