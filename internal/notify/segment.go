// Package notify decides who gets reminder and weekly-winner email and
// drives the delivery loop for the scheduled job.
package notify

import (
	"habitroom-backend/internal/models"
	"habitroom-backend/internal/scoring"
)

// Segments splits eligible users by whether they logged anything today.
type Segments struct {
	Inactive []models.User
	Partial  []models.User
}

// Eligible reports whether user can receive reminder email at all.
func Eligible(user models.User) bool {
	return user.Email != "" && user.RemindersEnabled()
}

// Segment classifies users against today's activity in snap. Ineligible
// users land in neither segment.
func Segment(users []models.User, snap *scoring.Snapshot, today string) Segments {
	var seg Segments
	for _, u := range users {
		if !Eligible(u) {
			continue
		}
		if snap.HasActivity(u.ID, today) {
			seg.Partial = append(seg.Partial, u)
		} else {
			seg.Inactive = append(seg.Inactive, u)
		}
	}
	return seg
}
