// Package scoring turns a room's habits and completions into points,
// crystals, streaks and leaderboard standings. Everything here is pure: a
// Snapshot is built once from store reads and every query is answered from
// it, so callers simply rebuild the snapshot whenever their inputs change.
package scoring

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/models"
)

// StreakLookbackDays bounds how far back Streak looks for active days.
const StreakLookbackDays = 30

// Crystals marks which categories a member won on a given day.
type Crystals map[models.Category]bool

// Count returns how many categories are set.
func (c Crystals) Count() int {
	n := 0
	for _, won := range c {
		if won {
			n++
		}
	}
	return n
}

type pointKey struct {
	user     bson.ObjectID
	date     string
	category models.Category
}

// Snapshot is an immutable view of one room (or, for the reminder job,
// every room) over a window of days.
type Snapshot struct {
	habits  map[bson.ObjectID]models.Habit
	members []bson.ObjectID

	points map[pointKey]int
	active map[bson.ObjectID]map[string]bool
}

// NewSnapshot indexes completions by (user, day, category). members is the
// set competing for crystals; it may be empty when only points or streaks
// are needed.
func NewSnapshot(habits []models.Habit, completions []models.Completion, members []bson.ObjectID) *Snapshot {
	s := &Snapshot{
		habits:  make(map[bson.ObjectID]models.Habit, len(habits)),
		members: members,
		points:  make(map[pointKey]int),
		active:  make(map[bson.ObjectID]map[string]bool),
	}
	for _, h := range habits {
		s.habits[h.ID] = h
	}

	for _, c := range completions {
		if c.Count <= 0 {
			continue
		}
		days, ok := s.active[c.UserID]
		if !ok {
			days = make(map[string]bool)
			s.active[c.UserID] = days
		}
		days[c.Date] = true

		category, perUnit := s.resolve(c)
		if perUnit == 0 || !category.Valid() {
			continue
		}
		s.points[pointKey{c.UserID, c.Date, category}] += perUnit * c.Count
	}
	return s
}

// resolve returns the category and per-completion points of c. A live
// habit wins; otherwise the snapshot stored on the completion is used.
// Legacy completions without a snapshot resolve to zero.
func (s *Snapshot) resolve(c models.Completion) (models.Category, int) {
	if h, ok := s.habits[c.HabitID]; ok {
		return h.Category, h.Points
	}
	return c.Category, c.Points
}

// Members returns the competitors this snapshot was built with.
func (s *Snapshot) Members() []bson.ObjectID {
	return s.members
}

// CategoryPoints is the user's score in one category on one day.
func (s *Snapshot) CategoryPoints(user bson.ObjectID, date string, category models.Category) int {
	return s.points[pointKey{user, date, category}]
}

// DailyPoints sums every category for one day.
func (s *Snapshot) DailyPoints(user bson.ObjectID, date string) int {
	total := 0
	for _, c := range models.Categories {
		total += s.CategoryPoints(user, date, c)
	}
	return total
}

// WeeklyPoints sums DailyPoints for every day from weekStart through
// `through`, inclusive.
func (s *Snapshot) WeeklyPoints(user bson.ObjectID, weekStart, through string) int {
	total := 0
	for _, day := range calendar.Days(weekStart, through) {
		total += s.DailyPoints(user, day)
	}
	return total
}

// CategoryWinner returns the sole top scorer of a category on a day. There
// is no winner when the room has fewer than two members, when nobody
// scored, or when the top score is shared.
func (s *Snapshot) CategoryWinner(date string, category models.Category) (bson.ObjectID, bool) {
	if len(s.members) < 2 {
		return bson.ObjectID{}, false
	}

	var (
		best   bson.ObjectID
		top    int
		shared bool
	)
	for _, m := range s.members {
		p := s.CategoryPoints(m, date, category)
		switch {
		case p > top:
			best, top, shared = m, p, false
		case p == top && p > 0:
			shared = true
		}
	}
	if top == 0 || shared {
		return bson.ObjectID{}, false
	}
	return best, true
}

// DailyCrystals reports, per category, whether user won it on date.
func (s *Snapshot) DailyCrystals(user bson.ObjectID, date string) Crystals {
	won := make(Crystals, len(models.Categories))
	for _, c := range models.Categories {
		winner, ok := s.CategoryWinner(date, c)
		won[c] = ok && winner == user
	}
	return won
}

// WeeklyCrystalCount re-evaluates every (day, category) pair from
// weekStart through today and counts the ones user won.
func (s *Snapshot) WeeklyCrystalCount(user bson.ObjectID, weekStart, today string) int {
	n := 0
	for _, day := range calendar.Days(weekStart, today) {
		n += s.DailyCrystals(user, day).Count()
	}
	return n
}

// HasActivity reports whether user logged anything on date.
func (s *Snapshot) HasActivity(user bson.ObjectID, date string) bool {
	return s.active[user][date]
}

// Streak is the length of the user's current run of consecutive active
// days. The run may end today or yesterday, since today is not over yet;
// anything older means the streak is broken. Only the last
// StreakLookbackDays days are considered.
func (s *Snapshot) Streak(user bson.ObjectID, asOf string) int {
	days := s.active[user]
	if len(days) == 0 {
		return 0
	}

	cursor := asOf
	if !days[cursor] {
		cursor = calendar.AddDays(asOf, -1)
		if !days[cursor] {
			return 0
		}
	}

	floor := calendar.AddDays(asOf, -StreakLookbackDays)
	streak := 0
	for cursor >= floor && days[cursor] {
		streak++
		cursor = calendar.AddDays(cursor, -1)
	}
	return streak
}
