// Package tokens signs and verifies the JWTs the backend hands out: login
// sessions and the unsubscribe links embedded in reminder email.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"habitroom-backend/internal/calendar"
)

type Purpose string

const (
	PurposeSession     Purpose = "session"
	PurposeUnsubscribe Purpose = "unsubscribe"
)

const (
	SessionTTL     = 30 * 24 * time.Hour
	UnsubscribeTTL = 180 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID  string  `json:"user_id"`
	Email   string  `json:"email,omitempty"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	clock  calendar.Clock
}

func NewIssuer(secret string, clock calendar.Clock) *Issuer {
	return &Issuer{secret: []byte(secret), clock: clock}
}

// Session issues the bearer token returned after magic-link login.
func (i *Issuer) Session(userID, email string) (string, error) {
	return i.sign(Claims{UserID: userID, Email: email, Purpose: PurposeSession}, SessionTTL)
}

// Unsubscribe issues the token carried by email unsubscribe links.
func (i *Issuer) Unsubscribe(userID string) (string, error) {
	return i.sign(Claims{UserID: userID, Purpose: PurposeUnsubscribe}, UnsubscribeTTL)
}

// Verify checks signature, expiry and purpose and returns the claims.
func (i *Issuer) Verify(tokenString string, purpose Purpose) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != purpose || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (i *Issuer) sign(claims Claims, ttl time.Duration) (string, error) {
	now := i.clock.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Purpose, err)
	}
	return signed, nil
}
