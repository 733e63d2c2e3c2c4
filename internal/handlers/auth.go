package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/mailer"
	"habitroom-backend/internal/models"
	"habitroom-backend/internal/repository"
	"habitroom-backend/internal/tokens"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	loginTokenTTL   = 15 * time.Minute
	loginRateWindow = 10 * time.Minute
	loginRateLimit  = 5
	maxUsernameLen  = 32
)

// AuthConfig holds the links and sender used by magic-link login.
type AuthConfig struct {
	// BaseURL is this server's public URL. When empty it is derived from
	// the incoming request.
	BaseURL        string
	DeepLinkScheme string
	FromName       string
}

type AuthHandler struct {
	tokenRepo *repository.AuthTokenRepo
	userRepo  *repository.UserRepo
	issuer    *tokens.Issuer
	mailer    mailer.Mailer
	clock     calendar.Clock
	cfg       AuthConfig
	logger    *zap.Logger
}

func NewAuthHandler(tokenRepo *repository.AuthTokenRepo, userRepo *repository.UserRepo, issuer *tokens.Issuer, m mailer.Mailer, clock calendar.Clock, cfg AuthConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		issuer:    issuer,
		mailer:    m,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// --- Request / Response types ---

type RequestLoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

type VerifyResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// --- POST /auth/request ---

func (h *AuthHandler) RequestLogin(w http.ResponseWriter, r *http.Request) {
	var req RequestLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	username, err := normalizeUsername(req.Username)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Rate limiting: max 5 requests per email in 10 minutes
	count, err := h.tokenRepo.CountRecentByEmail(r.Context(), email, loginRateWindow)
	if err != nil {
		h.logger.Error("check login rate limit", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if count >= loginRateLimit {
		writeError(w, http.StatusTooManyRequests, "too many login requests, please try again later")
		return
	}

	tokenValue := uuid.NewString()
	authToken := &models.AuthToken{
		Email:     email,
		Username:  username,
		Token:     tokenValue,
		ExpiresAt: h.clock.Now().Add(loginTokenTTL),
	}
	if err := h.tokenRepo.Create(r.Context(), authToken); err != nil {
		h.logger.Error("create auth token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create login token")
		return
	}

	// Mail clients strip custom URL schemes, so the email links to our
	// HTTPS redirect page, which then opens the app.
	link := fmt.Sprintf("%s/auth/redirect?token=%s", h.baseURL(r), tokenValue)

	if err := h.mailer.Deliver(r.Context(), h.cfg.FromName, email, "Your Habit Rooms login link", loginEmailHTML(link)); err != nil {
		h.logger.Warn("send login email", zap.String("email", email), zap.Error(err))
		// The token exists; delivery is best-effort.
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "login link generated (email delivery may be delayed)",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "login link sent to your email",
	})
}

func (h *AuthHandler) baseURL(r *http.Request) string {
	if h.cfg.BaseURL != "" {
		return h.cfg.BaseURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// --- GET /auth/verify ---

func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	tokenValue := r.URL.Query().Get("token")
	if tokenValue == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	authToken, err := h.tokenRepo.Consume(r.Context(), tokenValue, h.clock.Now())
	switch {
	case errors.Is(err, repository.ErrTokenNotFound):
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	case errors.Is(err, repository.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token has expired")
		return
	case errors.Is(err, repository.ErrTokenUsed):
		writeError(w, http.StatusUnauthorized, "token has already been used")
		return
	case err != nil:
		h.logger.Error("consume auth token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := h.userRepo.FindOrCreate(r.Context(), authToken.Email, authToken.Username)
	if err != nil {
		h.logger.Error("find or create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	session, err := h.issuer.Session(user.ID.Hex(), user.Email)
	if err != nil {
		h.logger.Error("sign session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{
		Token: session,
		User:  user,
	})
}

// --- GET /auth/redirect ---
// Clicked from the email. Serves a page that hands the login token to the
// app through its deep link.

func (h *AuthHandler) RedirectToApp(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	deepLink := fmt.Sprintf("%s://login?token=%s", h.cfg.DeepLinkScheme, token)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := redirectPage.Execute(w, template.URL(deepLink)); err != nil {
		h.logger.Warn("render redirect page", zap.Error(err))
	}
}

var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>Opening Habit Rooms...</title>
	<style>
		body { font-family: -apple-system, sans-serif; display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0; background: #f5f3ff; }
		.card { text-align: center; padding: 40px; background: white; border-radius: 16px; box-shadow: 0 4px 24px rgba(0,0,0,0.1); max-width: 400px; }
		h1 { color: #333; font-size: 24px; }
		p { color: #666; font-size: 16px; line-height: 1.5; }
		.btn { display: inline-block; background: #6366f1; color: white; padding: 14px 32px; border-radius: 10px; text-decoration: none; font-weight: 600; font-size: 16px; margin-top: 16px; }
	</style>
</head>
<body>
	<div class="card">
		<h1>Opening Habit Rooms...</h1>
		<p>If nothing happens, tap the button below:</p>
		<a href="{{.}}" class="btn">Open Habit Rooms</a>
	</div>
	<script>window.location.href = "{{.}}";</script>
</body>
</html>`))

// --- Helpers ---

func loginEmailHTML(link string) string {
	return fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
			<h2 style="color: #333;">Welcome to Habit Rooms! 🔥</h2>
			<p>Click the button below to log in:</p>
			<a href="%s" style="display: inline-block; background: #6366f1; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">
				Log in
			</a>
			<p style="color: #888; font-size: 14px; margin-top: 16px;">
				This link expires in 15 minutes and can only be used once.
			</p>
			<p style="color: #aaa; font-size: 12px;">
				If you didn't request this, you can safely ignore this email.
			</p>
		</div>
	`, template.HTMLEscapeString(link))
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.New("email is invalid")
	}
	return email, nil
}

func normalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len([]rune(name)) > maxUsernameLen {
		return "", fmt.Errorf("username must be at most %d characters", maxUsernameLen)
	}
	return name, nil
}
