package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"habitroom-backend/internal/tokens"
)

type contextKey string

const userIDKey contextKey = "user_id"

// JWTAuth rejects requests without a valid session token. The token comes
// from the Authorization header, or from the token query parameter for
// browser WebSocket clients that cannot set headers.
func JWTAuth(issuer *tokens.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, "missing authorization token")
				return
			}

			claims, err := issuer.Verify(raw, tokens.PurposeSession)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated user's hex ID, or "" outside JWTAuth.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID stores an authenticated user ID on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
