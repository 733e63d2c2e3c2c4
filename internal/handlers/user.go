package handlers

import (
	"net/http"

	"habitroom-backend/internal/repository"

	"go.uber.org/zap"
)

type UserHandler struct {
	userRepo *repository.UserRepo
	logger   *zap.Logger
}

func NewUserHandler(userRepo *repository.UserRepo, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userRepo: userRepo,
		logger:   logger,
	}
}

// --- GET /user/status ---

func (h *UserHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userRepo.FindByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("find user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":              user,
		"display_name":      user.DisplayName(),
		"reminders_enabled": user.RemindersEnabled(),
		"in_room":           user.RoomID != "",
	})
}

// --- PATCH /user/profile ---

type UpdateProfileRequest struct {
	Username string `json:"username"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username, err := normalizeUsername(req.Username)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := h.userRepo.UpdateUsername(r.Context(), userID, username); err != nil {
		h.logger.Error("update username", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": username})
}

// --- PATCH /user/reminders ---

type UpdateRemindersRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *UserHandler) UpdateReminders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req UpdateRemindersRequest
	if err := decodeJSON(r, &req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": true|false}`)
		return
	}

	if err := h.userRepo.SetEmailReminders(r.Context(), userID, *req.Enabled); err != nil {
		h.logger.Error("update reminders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update reminder setting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"email_reminders": *req.Enabled})
}
