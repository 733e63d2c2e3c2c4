package handlers

import (
	"context"
	"fmt"
	"net/http"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/models"
	"habitroom-backend/internal/scoring"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// RoomSource reads what a room's leaderboard is computed from.
// repository.Directory satisfies it.
type RoomSource interface {
	RoomMembers(ctx context.Context, roomID string) ([]models.User, error)
	RoomHabits(ctx context.Context, roomID string) ([]models.Habit, error)
	RoomCompletions(ctx context.Context, roomID, from, to string) ([]models.Completion, error)
}

type LeaderboardView struct {
	RoomID    string             `json:"room_id"`
	Date      string             `json:"date"`
	WeekStart string             `json:"week_start"`
	Tab       scoring.Tab        `json:"tab"`
	Standings []scoring.Standing `json:"standings"`
}

// LiveUpdate is what subscribers of /rooms/{roomID}/live receive. Both
// orderings are sent so clients can switch tabs without refetching.
type LiveUpdate struct {
	Type      string             `json:"type"`
	RoomID    string             `json:"room_id"`
	Date      string             `json:"date"`
	WeekStart string             `json:"week_start"`
	Today     []scoring.Standing `json:"today"`
	Week      []scoring.Standing `json:"week"`
}

// Board recomputes leaderboards from scratch on every call.
type Board struct {
	src RoomSource
	day Day
}

func NewBoard(src RoomSource, day Day) *Board {
	return &Board{src: src, day: day}
}

func (b *Board) snapshot(ctx context.Context, roomID, date string) (*scoring.Snapshot, []models.User, error) {
	members, err := b.src.RoomMembers(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("room members: %w", err)
	}
	habits, err := b.src.RoomHabits(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("room habits: %w", err)
	}
	from := calendar.Earliest(calendar.AddDays(date, -scoring.StreakLookbackDays), calendar.WeekStart(date))
	completions, err := b.src.RoomCompletions(ctx, roomID, from, date)
	if err != nil {
		return nil, nil, fmt.Errorf("room completions: %w", err)
	}

	ids := make([]bson.ObjectID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return scoring.NewSnapshot(habits, completions, ids), members, nil
}

// Load ranks roomID as of date.
func (b *Board) Load(ctx context.Context, roomID, date string, tab scoring.Tab) (*LeaderboardView, error) {
	snap, members, err := b.snapshot(ctx, roomID, date)
	if err != nil {
		return nil, err
	}
	return &LeaderboardView{
		RoomID:    roomID,
		Date:      date,
		WeekStart: calendar.WeekStart(date),
		Tab:       tab,
		Standings: scoring.Rank(snap, members, date, tab),
	}, nil
}

// Live renders the push payload for the hub, as of the server's today.
func (b *Board) Live(ctx context.Context, roomID string) (interface{}, error) {
	date := b.day.Today()
	snap, members, err := b.snapshot(ctx, roomID, date)
	if err != nil {
		return nil, err
	}
	return LiveUpdate{
		Type:      "leaderboard",
		RoomID:    roomID,
		Date:      date,
		WeekStart: calendar.WeekStart(date),
		Today:     scoring.Rank(snap, members, date, scoring.TabToday),
		Week:      scoring.Rank(snap, members, date, scoring.TabWeek),
	}, nil
}

type LeaderboardHandler struct {
	board  *Board
	users  userFinder
	day    Day
	logger *zap.Logger
}

func NewLeaderboardHandler(board *Board, users userFinder, day Day, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, users: users, day: day, logger: logger}
}

// --- GET /rooms/{roomID}/leaderboard?tab=today|week&date=YYYY-MM-DD ---

func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roomID := roomParam(r)
	if _, err := requireMember(r.Context(), h.users, userID, roomID); err != nil {
		writeMemberError(w, h.logger, err)
		return
	}

	date, err := h.day.Resolve(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tab := scoring.ParseTab(r.URL.Query().Get("tab"))

	view, err := h.board.Load(r.Context(), roomID, date, tab)
	if err != nil {
		h.logger.Error("load leaderboard", zap.String("room_id", roomID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
