package scoring

import (
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/models"
)

// Tab selects the leaderboard ordering metric.
type Tab string

const (
	TabToday Tab = "today"
	TabWeek  Tab = "week"
)

// ParseTab maps anything other than "week" to TabToday.
func ParseTab(s string) Tab {
	if Tab(s) == TabWeek {
		return TabWeek
	}
	return TabToday
}

// Standing is one member's row on the leaderboard.
type Standing struct {
	Rank               int           `json:"rank"`
	UserID             bson.ObjectID `json:"user_id"`
	Username           string        `json:"username"`
	TodayPoints        int           `json:"today_points"`
	WeeklyPoints       int           `json:"weekly_points"`
	DailyCrystals      Crystals      `json:"daily_crystals"`
	WeeklyCrystalCount int           `json:"weekly_crystal_count"`
	Streak             int           `json:"streak"`
}

// Rank computes every member's standing as of today and orders them by the
// tab's metric, highest first. Equal scores keep the input order.
func Rank(s *Snapshot, members []models.User, today string, tab Tab) []Standing {
	weekStart := calendar.WeekStart(today)

	standings := make([]Standing, 0, len(members))
	for _, m := range members {
		standings = append(standings, Standing{
			UserID:             m.ID,
			Username:           m.DisplayName(),
			TodayPoints:        s.DailyPoints(m.ID, today),
			WeeklyPoints:       s.WeeklyPoints(m.ID, weekStart, today),
			DailyCrystals:      s.DailyCrystals(m.ID, today),
			WeeklyCrystalCount: s.WeeklyCrystalCount(m.ID, weekStart, today),
			Streak:             s.Streak(m.ID, today),
		})
	}

	metric := func(st Standing) int { return st.TodayPoints }
	if tab == TabWeek {
		metric = func(st Standing) int { return st.WeeklyPoints }
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return metric(standings[i]) > metric(standings[j])
	})

	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
