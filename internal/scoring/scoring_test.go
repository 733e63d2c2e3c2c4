package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/models"
	"habitroom-backend/internal/scoring"
)

// ─── Fixtures ───────────────────────────────────────────────────────────────

func habit(category models.Category, points int) models.Habit {
	return models.Habit{
		ID:       bson.NewObjectID(),
		RoomID:   "ABC234",
		Name:     string(category) + " habit",
		Category: category,
		Points:   points,
	}
}

func done(user bson.ObjectID, h models.Habit, date string, count int) models.Completion {
	return models.Completion{
		ID:       models.CompletionKey(user, h.ID, date),
		UserID:   user,
		HabitID:  h.ID,
		RoomID:   h.RoomID,
		Date:     date,
		Count:    count,
		Points:   h.Points,
		Category: h.Category,
	}
}

// ─── Points ─────────────────────────────────────────────────────────────────

func TestCategoryAndDailyPoints(t *testing.T) {
	alice := bson.NewObjectID()
	read := habit(models.CategoryMind, 5)
	run := habit(models.CategoryBody, 10)
	pray := habit(models.CategorySpirit, 3)

	s := scoring.NewSnapshot(
		[]models.Habit{read, run, pray},
		[]models.Completion{
			done(alice, read, "2025-07-09", 2),
			done(alice, run, "2025-07-09", 1),
			done(alice, pray, "2025-07-08", 1),
		},
		nil,
	)

	assert.Equal(t, 10, s.CategoryPoints(alice, "2025-07-09", models.CategoryMind))
	assert.Equal(t, 10, s.CategoryPoints(alice, "2025-07-09", models.CategoryBody))
	assert.Equal(t, 0, s.CategoryPoints(alice, "2025-07-09", models.CategorySpirit))
	assert.Equal(t, 20, s.DailyPoints(alice, "2025-07-09"))
	assert.Equal(t, 3, s.DailyPoints(alice, "2025-07-08"))
}

func TestWeeklyPointsIgnoresDaysOutsideWindow(t *testing.T) {
	alice := bson.NewObjectID()
	run := habit(models.CategoryBody, 4)

	s := scoring.NewSnapshot(
		[]models.Habit{run},
		[]models.Completion{
			done(alice, run, "2025-07-06", 1), // previous Sunday
			done(alice, run, "2025-07-07", 1),
			done(alice, run, "2025-07-09", 1),
			done(alice, run, "2025-07-10", 1), // after "today"
		},
		nil,
	)

	assert.Equal(t, 8, s.WeeklyPoints(alice, "2025-07-07", "2025-07-09"))
}

func TestDeletedHabitFallsBackToEmbeddedPoints(t *testing.T) {
	alice := bson.NewObjectID()
	gone := habit(models.CategoryMind, 7)

	legacy := done(alice, gone, "2025-07-09", 1)
	legacy.HabitID = bson.NewObjectID()
	legacy.Points = 0
	legacy.Category = ""

	// The habit is not in the snapshot, as if it had been deleted.
	s := scoring.NewSnapshot(nil, []models.Completion{
		done(alice, gone, "2025-07-09", 2),
		legacy,
	}, nil)

	assert.Equal(t, 14, s.CategoryPoints(alice, "2025-07-09", models.CategoryMind))
	assert.Equal(t, 14, s.DailyPoints(alice, "2025-07-09"),
		"completions without a snapshot still score nothing")
	assert.True(t, s.HasActivity(alice, "2025-07-09"))
}

func TestLiveHabitOverridesSnapshot(t *testing.T) {
	alice := bson.NewObjectID()
	h := habit(models.CategoryMind, 2)
	c := done(alice, h, "2025-07-09", 1)
	h.Points = 9

	s := scoring.NewSnapshot([]models.Habit{h}, []models.Completion{c}, nil)
	assert.Equal(t, 9, s.DailyPoints(alice, "2025-07-09"))
}

// ─── Crystals ───────────────────────────────────────────────────────────────

func TestDailyCrystals_TieAtTopAwardsNobody(t *testing.T) {
	a, b, c := bson.NewObjectID(), bson.NewObjectID(), bson.NewObjectID()
	ten := habit(models.CategoryMind, 10)
	five := habit(models.CategoryMind, 5)

	s := scoring.NewSnapshot(
		[]models.Habit{ten, five},
		[]models.Completion{
			done(a, ten, "2025-07-09", 1),
			done(b, ten, "2025-07-09", 1),
			done(c, five, "2025-07-09", 1),
		},
		[]bson.ObjectID{a, b, c},
	)

	for _, m := range []bson.ObjectID{a, b, c} {
		assert.False(t, s.DailyCrystals(m, "2025-07-09")[models.CategoryMind])
	}
	_, ok := s.CategoryWinner("2025-07-09", models.CategoryMind)
	assert.False(t, ok)
}

func TestDailyCrystals_StrictTopWins(t *testing.T) {
	a, b := bson.NewObjectID(), bson.NewObjectID()
	ten := habit(models.CategoryMind, 10)
	five := habit(models.CategoryMind, 5)

	s := scoring.NewSnapshot(
		[]models.Habit{ten, five},
		[]models.Completion{
			done(a, ten, "2025-07-09", 1),
			done(b, five, "2025-07-09", 1),
		},
		[]bson.ObjectID{a, b},
	)

	assert.True(t, s.DailyCrystals(a, "2025-07-09")[models.CategoryMind])
	assert.False(t, s.DailyCrystals(b, "2025-07-09")[models.CategoryMind])
	assert.False(t, s.DailyCrystals(a, "2025-07-09")[models.CategoryBody],
		"nobody scored Body, so nobody wins it")
}

func TestDailyCrystals_SoloRoomNeverAwards(t *testing.T) {
	a := bson.NewObjectID()
	h := habit(models.CategorySpirit, 10)

	s := scoring.NewSnapshot([]models.Habit{h},
		[]models.Completion{done(a, h, "2025-07-09", 1)},
		[]bson.ObjectID{a})

	assert.Equal(t, 0, s.DailyCrystals(a, "2025-07-09").Count())
}

func TestWeeklyCrystalCount_ReevaluatesEachDay(t *testing.T) {
	a, b := bson.NewObjectID(), bson.NewObjectID()
	mind := habit(models.CategoryMind, 5)
	body := habit(models.CategoryBody, 5)

	s := scoring.NewSnapshot(
		[]models.Habit{mind, body},
		[]models.Completion{
			// Monday: a wins Mind and Body.
			done(a, mind, "2025-07-07", 2),
			done(b, mind, "2025-07-07", 1),
			done(a, body, "2025-07-07", 1),
			// Tuesday: b takes Mind, Body tied.
			done(a, mind, "2025-07-08", 1),
			done(b, mind, "2025-07-08", 3),
			done(a, body, "2025-07-08", 1),
			done(b, body, "2025-07-08", 1),
		},
		[]bson.ObjectID{a, b},
	)

	assert.Equal(t, 2, s.WeeklyCrystalCount(a, "2025-07-07", "2025-07-09"))
	assert.Equal(t, 1, s.WeeklyCrystalCount(b, "2025-07-07", "2025-07-09"))
}

// ─── Streaks ────────────────────────────────────────────────────────────────

func TestStreak(t *testing.T) {
	h := habit(models.CategoryBody, 1)

	tests := []struct {
		name   string
		active []string
		asOf   string
		want   int
	}{
		{
			name:   "three days ending today, gap before",
			active: []string{"2025-07-02", "2025-07-03", "2025-07-07", "2025-07-08", "2025-07-09"},
			asOf:   "2025-07-09",
			want:   3,
		},
		{
			name:   "today not logged yet keeps yesterday's run",
			active: []string{"2025-07-07", "2025-07-08"},
			asOf:   "2025-07-09",
			want:   2,
		},
		{
			name:   "last activity two days ago breaks the streak",
			active: []string{"2025-07-05", "2025-07-06", "2025-07-07"},
			asOf:   "2025-07-09",
			want:   0,
		},
		{
			name:   "never active",
			active: nil,
			asOf:   "2025-07-09",
			want:   0,
		},
		{
			name:   "only today",
			active: []string{"2025-07-09"},
			asOf:   "2025-07-09",
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := bson.NewObjectID()
			var completions []models.Completion
			for _, d := range tt.active {
				completions = append(completions, done(user, h, d, 1))
			}
			s := scoring.NewSnapshot([]models.Habit{h}, completions, nil)
			assert.Equal(t, tt.want, s.Streak(user, tt.asOf))
		})
	}
}

func TestStreak_CappedByLookback(t *testing.T) {
	h := habit(models.CategoryBody, 1)
	user := bson.NewObjectID()

	var completions []models.Completion
	for i := 0; i < 45; i++ {
		completions = append(completions, done(user, h, calendar.AddDays("2025-07-31", -i), 1))
	}
	s := scoring.NewSnapshot([]models.Habit{h}, completions, nil)

	assert.Equal(t, scoring.StreakLookbackDays+1, s.Streak(user, "2025-07-31"))
}

func TestStreak_ZeroPointCompletionStillCounts(t *testing.T) {
	user := bson.NewObjectID()
	c := models.Completion{UserID: user, HabitID: bson.NewObjectID(), Date: "2025-07-09", Count: 1}

	s := scoring.NewSnapshot(nil, []models.Completion{c}, nil)
	assert.Equal(t, 1, s.Streak(user, "2025-07-09"))
	assert.Equal(t, 0, s.DailyPoints(user, "2025-07-09"))
}
