package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type User struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Username string        `bson:"username" json:"username"`
	Email    string        `bson:"email" json:"email"`
	RoomID   string        `bson:"room_id,omitempty" json:"room_id,omitempty"`
	// EmailReminders is nil for users who never touched the setting; only an
	// explicit false opts out.
	EmailReminders *bool     `bson:"email_reminders,omitempty" json:"email_reminders,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// RemindersEnabled reports whether the user still accepts reminder email.
func (u *User) RemindersEnabled() bool {
	return u.EmailReminders == nil || *u.EmailReminders
}

// DisplayName falls back to the local part of the email address.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}
