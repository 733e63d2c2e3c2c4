package handlers

import (
	"context"
	"html/template"
	"net/http"

	"habitroom-backend/internal/tokens"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

type reminderSetter interface {
	SetEmailReminders(ctx context.Context, id bson.ObjectID, enabled bool) error
}

type UnsubscribeHandler struct {
	issuer *tokens.Issuer
	users  reminderSetter
	logger *zap.Logger
}

func NewUnsubscribeHandler(issuer *tokens.Issuer, users reminderSetter, logger *zap.Logger) *UnsubscribeHandler {
	return &UnsubscribeHandler{issuer: issuer, users: users, logger: logger}
}

// --- GET /unsubscribe?token=... ---
// Linked from every reminder email. Turns reminders off; idempotent.

func (h *UnsubscribeHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	claims, err := h.issuer.Verify(r.URL.Query().Get("token"), tokens.PurposeUnsubscribe)
	if err != nil {
		h.page(w, http.StatusBadRequest, "This link is invalid or has expired.",
			"You can still turn reminders off from the app settings.")
		return
	}
	userID, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		h.page(w, http.StatusBadRequest, "This link is invalid or has expired.",
			"You can still turn reminders off from the app settings.")
		return
	}

	if err := h.users.SetEmailReminders(r.Context(), userID, false); err != nil {
		h.logger.Error("unsubscribe", zap.String("user_id", claims.UserID), zap.Error(err))
		h.page(w, http.StatusInternalServerError, "Something went wrong.", "Please try the link again in a minute.")
		return
	}

	h.logger.Info("📭 user unsubscribed from reminders", zap.String("user_id", claims.UserID))
	h.page(w, http.StatusOK, "You're unsubscribed.",
		"You won't get reminder emails anymore. Turn them back on any time in the app.")
}

func (h *UnsubscribeHandler) page(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := unsubscribePage.Execute(w, map[string]string{"Title": title, "Body": body}); err != nil {
		h.logger.Warn("render unsubscribe page", zap.Error(err))
	}
}

var unsubscribePage = template.Must(template.New("unsubscribe").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>Habit Rooms</title>
	<style>
		body { font-family: -apple-system, sans-serif; display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0; background: #f5f3ff; }
		.card { text-align: center; padding: 40px; background: white; border-radius: 16px; box-shadow: 0 4px 24px rgba(0,0,0,0.1); max-width: 400px; }
		h1 { color: #333; font-size: 24px; }
		p { color: #666; font-size: 16px; line-height: 1.5; }
	</style>
</head>
<body>
	<div class="card">
		<h1>{{.Title}}</h1>
		<p>{{.Body}}</p>
	</div>
</body>
</html>`))
