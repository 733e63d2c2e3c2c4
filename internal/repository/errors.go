package repository

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrHabitNotFound = errors.New("habit not found")
	ErrNotRoomMember = errors.New("not a member of this room")
)
