package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"habitroom-backend/internal/models"
	"habitroom-backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

type userFinder interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
}

// requireMember loads the caller and checks they belong to roomID.
func requireMember(ctx context.Context, users userFinder, userID bson.ObjectID, roomID string) (*models.User, error) {
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.RoomID != roomID {
		return nil, repository.ErrNotRoomMember
	}
	return user, nil
}

// roomParam reads {roomID}; codes are case-insensitive for people typing
// them in.
func roomParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "roomID")))
}

// roomStore is the part of repository.RoomRepo the room handler uses.
type roomStore interface {
	Create(ctx context.Context, creator bson.ObjectID) (*models.Room, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	AddMember(ctx context.Context, roomID string, userID bson.ObjectID) error
	RemoveMember(ctx context.Context, roomID string, userID bson.ObjectID) error
}

type roomUserStore interface {
	userFinder
	SetRoom(ctx context.Context, id bson.ObjectID, roomID string) error
}

// memberLister resolves a room's member_ids index. repository.Directory
// satisfies it.
type memberLister interface {
	RoomMembers(ctx context.Context, roomID string) ([]models.User, error)
}

type RoomHandler struct {
	roomRepo roomStore
	userRepo roomUserStore
	members  memberLister
	events   publisher
	logger   *zap.Logger
}

func NewRoomHandler(roomRepo roomStore, userRepo roomUserStore, members memberLister, events publisher, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		roomRepo: roomRepo,
		userRepo: userRepo,
		members:  members,
		events:   events,
		logger:   logger,
	}
}

// --- POST /rooms ---

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	user, err := h.userRepo.FindByID(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	room, err := h.roomRepo.Create(r.Context(), userID)
	if err != nil {
		h.logger.Error("create room", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}
	if err := h.moveUser(r.Context(), user, room.ID); err != nil {
		h.logger.Error("join created room", zap.String("room_id", room.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to join room")
		return
	}

	h.logger.Info("🏠 room created", zap.String("room_id", room.ID), zap.String("user_id", userID.Hex()))
	writeJSON(w, http.StatusCreated, room)
}

// --- POST /rooms/{roomID}/join ---

func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roomID := roomParam(r)

	room, err := h.roomRepo.FindByID(r.Context(), roomID)
	if err != nil {
		h.logger.Error("find room", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, repository.ErrRoomNotFound.Error())
		return
	}

	user, err := h.userRepo.FindByID(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if user.RoomID == roomID {
		writeJSON(w, http.StatusOK, room)
		return
	}

	if err := h.moveUser(r.Context(), user, roomID); err != nil {
		h.logger.Error("join room", zap.String("room_id", roomID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to join room")
		return
	}
	room.MemberIDs = append(room.MemberIDs, userID)
	writeJSON(w, http.StatusOK, room)
}

// --- POST /rooms/leave ---

func (h *RoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	user, err := h.userRepo.FindByID(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if user.RoomID == "" {
		writeError(w, http.StatusBadRequest, "not in a room")
		return
	}

	if err := h.moveUser(r.Context(), user, ""); err != nil {
		h.logger.Error("leave room", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to leave room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "left room"})
}

// moveUser switches the user's room, keeping rooms.member_ids in step with
// users.room_id. An empty target only leaves. If users.room_id cannot be
// written the target's member_ids entry is taken back out.
func (h *RoomHandler) moveUser(ctx context.Context, user *models.User, target string) error {
	previous := user.RoomID
	if target != "" {
		if err := h.roomRepo.AddMember(ctx, target, user.ID); err != nil {
			return err
		}
	}
	if err := h.userRepo.SetRoom(ctx, user.ID, target); err != nil {
		if target != "" {
			if rbErr := h.roomRepo.RemoveMember(ctx, target, user.ID); rbErr != nil {
				h.logger.Warn("roll back room membership", zap.String("room_id", target), zap.Error(rbErr))
			}
		}
		return err
	}
	if previous != "" && previous != target {
		// room_id has already moved, so a stale entry here is skipped by
		// RoomMembers.
		if err := h.roomRepo.RemoveMember(ctx, previous, user.ID); err != nil {
			h.logger.Warn("remove from previous room", zap.String("room_id", previous), zap.Error(err))
		}
		h.notify(ctx, previous)
	}
	if target != "" {
		h.notify(ctx, target)
	}
	user.RoomID = target
	return nil
}

func (h *RoomHandler) notify(ctx context.Context, roomID string) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(ctx, roomID); err != nil {
		h.logger.Warn("publish membership change", zap.String("room_id", roomID), zap.Error(err))
	}
}

// --- GET /rooms/{roomID}/members ---

func (h *RoomHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roomID := roomParam(r)
	if _, err := requireMember(r.Context(), h.userRepo, userID, roomID); err != nil {
		writeMemberError(w, h.logger, err)
		return
	}

	members, err := h.members.RoomMembers(r.Context(), roomID)
	if err != nil {
		h.logger.Error("list members", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	type member struct {
		ID       bson.ObjectID `json:"id"`
		Username string        `json:"username"`
	}
	out := make([]member, 0, len(members))
	for _, m := range members {
		out = append(out, member{ID: m.ID, Username: m.DisplayName()})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeMemberError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if errors.Is(err, repository.ErrNotRoomMember) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	logger.Error("check room membership", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}
