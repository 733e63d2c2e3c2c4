package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RoomCodeAlphabet leaves out 0/O and 1/I so codes survive being read aloud.
const RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomCodeLength is the number of characters in a room code.
const RoomCodeLength = 6

// Room is a competitive group. Its ID is the join code. MemberIDs mirrors
// every User whose RoomID equals ID and is updated alongside that field.
type Room struct {
	ID        string          `bson:"_id" json:"id"`
	CreatedBy bson.ObjectID   `bson:"created_by" json:"created_by"`
	MemberIDs []bson.ObjectID `bson:"member_ids" json:"member_ids"`
	CreatedAt time.Time       `bson:"created_at" json:"created_at"`
}
