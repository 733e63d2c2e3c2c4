package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// Collection names.
const (
	Users       = "users"
	AuthTokens  = "auth_tokens"
	Rooms       = "rooms"
	Habits      = "habits"
	Completions = "completions"
)

var DB *mongo.Database

// Connect dials uri, pings it and sets DB. The returned client should be
// disconnected on shutdown.
func Connect(ctx context.Context, uri, dbName string, logger *zap.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri).SetAppName("habitroom")
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	DB = client.Database(dbName)
	logger.Info("✅ Connected to MongoDB", zap.String("db", dbName))
	return client, nil
}

func GetCollection(name string) *mongo.Collection {
	return DB.Collection(name)
}
