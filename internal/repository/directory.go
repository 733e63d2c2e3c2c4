package repository

import (
	"context"

	"habitroom-backend/internal/models"
)

// Directory joins the repositories into the read model the reminder job
// plans from.
type Directory struct {
	Users       *UserRepo
	Rooms       *RoomRepo
	Habits      *HabitRepo
	Completions *CompletionRepo
}

func NewDirectory() *Directory {
	return &Directory{
		Users:       NewUserRepo(),
		Rooms:       NewRoomRepo(),
		Habits:      NewHabitRepo(),
		Completions: NewCompletionRepo(),
	}
}

func (d *Directory) ListUsers(ctx context.Context) ([]models.User, error) {
	return d.Users.ListAll(ctx)
}

func (d *Directory) ListCompletions(ctx context.Context, from, to string) ([]models.Completion, error) {
	return d.Completions.Between(ctx, from, to)
}

func (d *Directory) ListRooms(ctx context.Context) ([]models.Room, error) {
	return d.Rooms.ListAll(ctx)
}

// RoomMembers resolves a room's member_ids index into users. An unknown
// room has no members.
func (d *Directory) RoomMembers(ctx context.Context, roomID string) ([]models.User, error) {
	room, err := d.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, nil
	}
	users, err := d.Users.FindByIDs(ctx, room.MemberIDs)
	if err != nil {
		return nil, err
	}
	return ConfirmedMembers(room, users), nil
}

func (d *Directory) RoomHabits(ctx context.Context, roomID string) ([]models.Habit, error) {
	return d.Habits.ListByRoom(ctx, roomID)
}

func (d *Directory) RoomCompletions(ctx context.Context, roomID, from, to string) ([]models.Completion, error) {
	return d.Completions.ForRoomBetween(ctx, roomID, from, to)
}

// EnsureIndexes creates the indexes of every collection the directory
// covers.
func (d *Directory) EnsureIndexes(ctx context.Context) error {
	for _, ensure := range []func(context.Context) error{
		d.Users.EnsureIndexes,
		d.Rooms.EnsureIndexes,
		d.Habits.EnsureIndexes,
		d.Completions.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return err
		}
	}
	return nil
}
