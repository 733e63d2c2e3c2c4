package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Category string

const (
	CategoryMind   Category = "Mind"
	CategoryBody   Category = "Body"
	CategorySpirit Category = "Spirit"
)

// Categories lists every scoring category in display order.
var Categories = []Category{CategoryMind, CategoryBody, CategorySpirit}

func (c Category) Valid() bool {
	switch c {
	case CategoryMind, CategoryBody, CategorySpirit:
		return true
	}
	return false
}

type Habit struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"id"`
	RoomID         string        `bson:"room_id" json:"room_id"`
	Name           string        `bson:"name" json:"name"`
	Category       Category      `bson:"category" json:"category"`
	Points         int           `bson:"points" json:"points"`
	IsRepeatable   bool          `bson:"is_repeatable" json:"is_repeatable"`
	MaxCompletions int           `bson:"max_completions" json:"max_completions"`
	CreatedBy      bson.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
}

// EffectiveMax is the per-day completion cap: 1 unless the habit is
// repeatable, in which case MaxCompletions (never below 1).
func (h *Habit) EffectiveMax() int {
	if !h.IsRepeatable || h.MaxCompletions < 1 {
		return 1
	}
	return h.MaxCompletions
}
