package handlers

import (
	"context"
	"net/http"
	"strings"

	"habitroom-backend/internal/models"
	"habitroom-backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const (
	maxHabitNameLen = 60
	maxHabitPoints  = 100
	maxDailyRepeats = 20
)

// publisher announces that a room's leaderboard inputs changed.
type publisher interface {
	Publish(ctx context.Context, roomID string) error
}

type HabitHandler struct {
	habitRepo *repository.HabitRepo
	userRepo  *repository.UserRepo
	events    publisher
	logger    *zap.Logger
}

func NewHabitHandler(habitRepo *repository.HabitRepo, userRepo *repository.UserRepo, events publisher, logger *zap.Logger) *HabitHandler {
	return &HabitHandler{
		habitRepo: habitRepo,
		userRepo:  userRepo,
		events:    events,
		logger:    logger,
	}
}

// --- GET /rooms/{roomID}/habits ---

func (h *HabitHandler) ListHabits(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roomID := roomParam(r)
	if _, err := requireMember(r.Context(), h.userRepo, userID, roomID); err != nil {
		writeMemberError(w, h.logger, err)
		return
	}

	habits, err := h.habitRepo.ListByRoom(r.Context(), roomID)
	if err != nil {
		h.logger.Error("list habits", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if habits == nil {
		habits = []models.Habit{}
	}
	writeJSON(w, http.StatusOK, habits)
}

// --- POST /rooms/{roomID}/habits ---

type CreateHabitRequest struct {
	Name           string          `json:"name"`
	Category       models.Category `json:"category"`
	Points         int             `json:"points"`
	IsRepeatable   bool            `json:"is_repeatable"`
	MaxCompletions int             `json:"max_completions"`
}

func (req CreateHabitRequest) validate() (string, bool) {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "name is required", false
	case len([]rune(req.Name)) > maxHabitNameLen:
		return "name is too long", false
	case !req.Category.Valid():
		return "category must be Mind, Body or Spirit", false
	case req.Points < 1 || req.Points > maxHabitPoints:
		return "points must be between 1 and 100", false
	case req.IsRepeatable && (req.MaxCompletions < 1 || req.MaxCompletions > maxDailyRepeats):
		return "max_completions must be between 1 and 20 for repeatable habits", false
	}
	return "", true
}

func (h *HabitHandler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roomID := roomParam(r)
	if _, err := requireMember(r.Context(), h.userRepo, userID, roomID); err != nil {
		writeMemberError(w, h.logger, err)
		return
	}

	var req CreateHabitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg, ok := req.validate(); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	habit := &models.Habit{
		RoomID:         roomID,
		Name:           strings.TrimSpace(req.Name),
		Category:       req.Category,
		Points:         req.Points,
		IsRepeatable:   req.IsRepeatable,
		MaxCompletions: req.MaxCompletions,
		CreatedBy:      userID,
	}
	if !habit.IsRepeatable {
		habit.MaxCompletions = 1
	}
	if err := h.habitRepo.Create(r.Context(), habit); err != nil {
		h.logger.Error("create habit", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create habit")
		return
	}

	h.publish(r.Context(), roomID)
	writeJSON(w, http.StatusCreated, habit)
}

// --- DELETE /rooms/{roomID}/habits/{habitID} ---

func (h *HabitHandler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roomID := roomParam(r)
	if _, err := requireMember(r.Context(), h.userRepo, userID, roomID); err != nil {
		writeMemberError(w, h.logger, err)
		return
	}
	habitID, err := bson.ObjectIDFromHex(chi.URLParam(r, "habitID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid habit ID")
		return
	}

	deleted, err := h.habitRepo.Delete(r.Context(), roomID, habitID)
	if err != nil {
		h.logger.Error("delete habit", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete habit")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, repository.ErrHabitNotFound.Error())
		return
	}

	h.publish(r.Context(), roomID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HabitHandler) publish(ctx context.Context, roomID string) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(ctx, roomID); err != nil {
		h.logger.Warn("publish habit change", zap.String("room_id", roomID), zap.Error(err))
	}
}
