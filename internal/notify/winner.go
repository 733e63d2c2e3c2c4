package notify

import (
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"

	"habitroom-backend/internal/models"
	"habitroom-backend/internal/scoring"
)

// SkipReason explains why a room produced no weekly winner.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipTooFewMembers SkipReason = "too_few_members"
	SkipNoActivity    SkipReason = "no_activity"
	SkipTie           SkipReason = "tie"
)

type MemberTotal struct {
	UserID bson.ObjectID
	Points int
}

// WeeklyResult is the outcome for one room over one Monday–Sunday window.
type WeeklyResult struct {
	WeekStart string
	WeekEnd   string
	Totals    []MemberTotal // highest first
	Winner    bson.ObjectID
	Points    int
	Skip      SkipReason
}

func (r WeeklyResult) HasWinner() bool {
	return r.Skip == SkipNone
}

// ResolveWeeklyWinner totals each member's points for the window and picks
// the single top scorer. A shared top score suppresses the room entirely.
func ResolveWeeklyWinner(members []bson.ObjectID, habits []models.Habit, completions []models.Completion, weekStart, weekEnd string) WeeklyResult {
	res := WeeklyResult{WeekStart: weekStart, WeekEnd: weekEnd}
	if len(members) < 2 {
		res.Skip = SkipTooFewMembers
		return res
	}

	snap := scoring.NewSnapshot(habits, completions, members)
	for _, m := range members {
		res.Totals = append(res.Totals, MemberTotal{
			UserID: m,
			Points: snap.WeeklyPoints(m, weekStart, weekEnd),
		})
	}
	sort.SliceStable(res.Totals, func(i, j int) bool {
		return res.Totals[i].Points > res.Totals[j].Points
	})

	top := res.Totals[0]
	switch {
	case top.Points == 0:
		res.Skip = SkipNoActivity
	case res.Totals[1].Points == top.Points:
		res.Skip = SkipTie
	default:
		res.Winner, res.Points = top.UserID, top.Points
	}
	return res
}
