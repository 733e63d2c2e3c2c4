package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestHabitEffectiveMax(t *testing.T) {
	tests := []struct {
		name  string
		habit Habit
		want  int
	}{
		{"one-off", Habit{MaxCompletions: 5}, 1},
		{"repeatable", Habit{IsRepeatable: true, MaxCompletions: 4}, 4},
		{"repeatable without cap", Habit{IsRepeatable: true}, 1},
		{"negative cap", Habit{IsRepeatable: true, MaxCompletions: -2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.habit.EffectiveMax())
		})
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("mind").Valid(), "categories are case-sensitive")
	assert.False(t, Category("").Valid())
}

func TestUserDisplayNameAndReminders(t *testing.T) {
	u := User{Email: "sam.doe@example.com"}
	assert.Equal(t, "sam.doe", u.DisplayName())
	assert.True(t, u.RemindersEnabled(), "unset means subscribed")

	off := false
	u.Username, u.EmailReminders = "Sam", &off
	assert.Equal(t, "Sam", u.DisplayName())
	assert.False(t, u.RemindersEnabled())
}

func TestCompletionKey(t *testing.T) {
	user := bson.NewObjectID()
	habit := bson.NewObjectID()
	key := CompletionKey(user, habit, "2025-07-09")
	assert.Equal(t, user.Hex()+"_"+habit.Hex()+"_2025-07-09", key)
	assert.NotEqual(t, key, CompletionKey(user, habit, "2025-07-10"))
}
