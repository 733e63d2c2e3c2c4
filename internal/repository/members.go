package repository

import (
	"habitroom-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ConfirmedMembers keeps the users that room lists in member_ids and whose
// own room_id still points at it. A user whose move was cut short between
// the two writes drops out here instead of appearing in two rooms.
func ConfirmedMembers(room *models.Room, users []models.User) []models.User {
	listed := make(map[bson.ObjectID]struct{}, len(room.MemberIDs))
	for _, id := range room.MemberIDs {
		listed[id] = struct{}{}
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if _, ok := listed[u.ID]; !ok || u.RoomID != room.ID {
			continue
		}
		out = append(out, u)
	}
	return out
}
