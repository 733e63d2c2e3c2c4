package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Completion is one user's progress on one habit on one calendar day.
// ID is derived from that triple, so at most one document exists per day.
type Completion struct {
	ID      string        `bson:"_id" json:"id"`
	UserID  bson.ObjectID `bson:"user_id" json:"user_id"`
	HabitID bson.ObjectID `bson:"habit_id" json:"habit_id"`
	RoomID  string        `bson:"room_id" json:"room_id"`
	Date    string        `bson:"date" json:"date"`
	Count   int           `bson:"count" json:"count"`

	// Points and Category are copied from the habit at creation and score
	// the completion if the habit is later deleted.
	Points   int      `bson:"points" json:"points"`
	Category Category `bson:"category" json:"category"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CompletionKey builds the deterministic document ID for (user, habit, date).
func CompletionKey(userID, habitID bson.ObjectID, date string) string {
	return userID.Hex() + "_" + habitID.Hex() + "_" + date
}
