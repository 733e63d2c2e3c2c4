package handlers

import (
	"context"
	"errors"
	"net/http"

	"habitroom-backend/internal/ledger"
	"habitroom-backend/internal/models"
	"habitroom-backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

type habitFinder interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Habit, error)
}

type CompletionHandler struct {
	habits habitFinder
	users  userFinder
	ledger *ledger.Ledger
	day    Day
	logger *zap.Logger
}

func NewCompletionHandler(habits habitFinder, users userFinder, l *ledger.Ledger, day Day, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{
		habits: habits,
		users:  users,
		ledger: l,
		day:    day,
		logger: logger,
	}
}

// CompletionRequest optionally names the caller's local day.
type CompletionRequest struct {
	Date string `json:"date,omitempty"`
}

type CompletionResponse struct {
	HabitID bson.ObjectID `json:"habit_id"`
	Date    string        `json:"date"`
	ledger.Result
}

// --- POST /habits/{habitID}/increment ---

func (h *CompletionHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.ledger.Increment)
}

// --- POST /habits/{habitID}/decrement ---

func (h *CompletionHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.ledger.Decrement)
}

type ledgerOp func(ctx context.Context, userID bson.ObjectID, habit *models.Habit, today string) (ledger.Result, error)

func (h *CompletionHandler) mutate(w http.ResponseWriter, r *http.Request, op ledgerOp) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req CompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := h.day.Resolve(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	habitID, err := bson.ObjectIDFromHex(chi.URLParam(r, "habitID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid habit ID")
		return
	}
	habit, err := h.habits.FindByID(r.Context(), habitID)
	if err != nil {
		h.logger.Error("find habit", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, repository.ErrHabitNotFound.Error())
		return
	}
	if _, err := requireMember(r.Context(), h.users, userID, habit.RoomID); err != nil {
		writeMemberError(w, h.logger, err)
		return
	}

	res, err := op(r.Context(), userID, habit, date)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidDate) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("update completion",
			zap.String("habit_id", habitID.Hex()),
			zap.String("date", date),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update completion")
		return
	}

	writeJSON(w, http.StatusOK, CompletionResponse{
		HabitID: habitID,
		Date:    date,
		Result:  res,
	})
}
