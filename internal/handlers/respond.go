package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/middleware"
)

var errBadDate = errors.New("date must be YYYY-MM-DD and within a day of today")

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// currentUserID returns the authenticated caller, writing a 401 when the
// request carries none.
func currentUserID(w http.ResponseWriter, r *http.Request) (bson.ObjectID, bool) {
	userID, err := bson.ObjectIDFromHex(middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return bson.ObjectID{}, false
	}
	return userID, true
}

// Day resolves the calendar day a request acts on. Clients may send their
// own local date so a user's day follows their device; it must sit within
// one day of the server's today.
type Day struct {
	Clock    calendar.Clock
	Location *time.Location
}

func (d Day) Today() string {
	return calendar.Today(d.Clock, d.Location)
}

func (d Day) Resolve(requested string) (string, error) {
	today := d.Today()
	if requested == "" {
		return today, nil
	}
	if !calendar.Valid(requested) {
		return "", errBadDate
	}
	if requested < calendar.AddDays(today, -1) || requested > calendar.AddDays(today, 1) {
		return "", errBadDate
	}
	return requested, nil
}
