package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/ledger"
	"habitroom-backend/internal/middleware"
	"habitroom-backend/internal/models"
	"habitroom-backend/internal/repository"
	"habitroom-backend/internal/scoring"
	"habitroom-backend/internal/tokens"
)

var (
	_ RoomSource    = (*repository.Directory)(nil)
	_ memberLister  = (*repository.Directory)(nil)
	_ roomStore     = (*repository.RoomRepo)(nil)
	_ roomUserStore = (*repository.UserRepo)(nil)
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakeUsers struct {
	mu          sync.Mutex
	byID        map[bson.ObjectID]models.User
	disabled    map[bson.ObjectID]bool
	failSetRoom bool
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{byID: map[bson.ObjectID]models.User{}, disabled: map[bson.ObjectID]bool{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeUsers) SetEmailReminders(_ context.Context, id bson.ObjectID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled[id] = !enabled
	return nil
}

func (f *fakeUsers) SetRoom(_ context.Context, id bson.ObjectID, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetRoom {
		return errors.New("write concern timeout")
	}
	u := f.byID[id]
	u.RoomID = roomID
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) RoomMembers(_ context.Context, roomID string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.byID {
		if u.RoomID == roomID {
			out = append(out, u)
		}
	}
	return out, nil
}

// fakeRooms keeps member_ids per room.
type fakeRooms struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func newFakeRooms(rooms ...models.Room) *fakeRooms {
	f := &fakeRooms{rooms: map[string]*models.Room{}}
	for i := range rooms {
		r := rooms[i]
		f.rooms[r.ID] = &r
	}
	return f
}

func (f *fakeRooms) Create(_ context.Context, creator bson.ObjectID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &models.Room{ID: "NEW234", CreatedBy: creator, MemberIDs: []bson.ObjectID{creator}}
	f.rooms[r.ID] = r
	cp := *r
	return &cp, nil
}

func (f *fakeRooms) FindByID(_ context.Context, id string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	cp.MemberIDs = append([]bson.ObjectID(nil), r.MemberIDs...)
	return &cp, nil
}

func (f *fakeRooms) AddMember(_ context.Context, roomID string, userID bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return repository.ErrRoomNotFound
	}
	for _, id := range r.MemberIDs {
		if id == userID {
			return nil
		}
	}
	r.MemberIDs = append(r.MemberIDs, userID)
	return nil
}

func (f *fakeRooms) RemoveMember(_ context.Context, roomID string, userID bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return nil
	}
	kept := r.MemberIDs[:0]
	for _, id := range r.MemberIDs {
		if id != userID {
			kept = append(kept, id)
		}
	}
	r.MemberIDs = kept
	return nil
}

func (f *fakeRooms) memberIDs(roomID string) []bson.ObjectID {
	r, _ := f.FindByID(context.Background(), roomID)
	if r == nil {
		return nil
	}
	return r.MemberIDs
}

// indexedMembers reads members through member_ids the way
// repository.Directory does.
type indexedMembers struct {
	rooms *fakeRooms
	users *fakeUsers
}

func (m indexedMembers) RoomMembers(ctx context.Context, roomID string) ([]models.User, error) {
	room, err := m.rooms.FindByID(ctx, roomID)
	if err != nil || room == nil {
		return nil, err
	}
	var users []models.User
	for _, id := range room.MemberIDs {
		if u, _ := m.users.FindByID(ctx, id); u != nil {
			users = append(users, *u)
		}
	}
	return repository.ConfirmedMembers(room, users), nil
}

type fakeHabits map[bson.ObjectID]models.Habit

func (f fakeHabits) FindByID(_ context.Context, id bson.ObjectID) (*models.Habit, error) {
	h, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

// roomData serves RoomSource from memory, reading completions from the
// same store the ledger writes to.
type roomData struct {
	users  *fakeUsers
	habits fakeHabits
	store  *memStore
}

func (d *roomData) RoomMembers(ctx context.Context, roomID string) ([]models.User, error) {
	return d.users.RoomMembers(ctx, roomID)
}

func (d *roomData) RoomHabits(_ context.Context, roomID string) ([]models.Habit, error) {
	var out []models.Habit
	for _, h := range d.habits {
		if h.RoomID == roomID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (d *roomData) RoomCompletions(_ context.Context, roomID, from, to string) ([]models.Completion, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	var out []models.Completion
	for _, c := range d.store.docs {
		if c.RoomID == roomID && c.Date >= from && c.Date <= to {
			out = append(out, c)
		}
	}
	return out, nil
}

type memStore struct {
	mu   sync.Mutex
	docs map[string]models.Completion
}

func (m *memStore) Get(_ context.Context, key string) (*models.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) Create(_ context.Context, c *models.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[c.ID]; ok {
		return ledger.ErrDuplicateKey
	}
	m.docs[c.ID] = *c
	return nil
}

func (m *memStore) IncrementBelow(_ context.Context, key string, max int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[key]
	if !ok || c.Count >= max {
		return 0, false, nil
	}
	c.Count++
	m.docs[key] = c
	return c.Count, true, nil
}

func (m *memStore) DecrementAbove(_ context.Context, key string, min int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[key]
	if !ok || c.Count <= min {
		return 0, false, nil
	}
	c.Count--
	m.docs[key] = c
	return c.Count, true, nil
}

func (m *memStore) DeleteAt(_ context.Context, key string, count int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[key]
	if !ok || c.Count != count {
		return false, nil
	}
	delete(m.docs, key)
	return true, nil
}

// ─── Fixture ────────────────────────────────────────────────────────────────

// Thursday 2025-07-10, 15:00 UTC.
var now = time.Date(2025, 7, 10, 15, 0, 0, 0, time.UTC)

const roomID = "ABC234"

type fixture struct {
	ana, ben, outsider models.User
	run, read          models.Habit
	router             chi.Router
	store              *memStore
	users              *fakeUsers
	rooms              *fakeRooms
	issuer             *tokens.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ana:      models.User{ID: bson.NewObjectID(), Username: "ana", Email: "ana@example.com", RoomID: roomID},
		ben:      models.User{ID: bson.NewObjectID(), Username: "ben", Email: "ben@example.com", RoomID: roomID},
		outsider: models.User{ID: bson.NewObjectID(), Username: "zed", Email: "zed@example.com", RoomID: "QQQ999"},
	}
	f.run = models.Habit{ID: bson.NewObjectID(), RoomID: roomID, Name: "Run", Category: models.CategoryBody, Points: 10}
	f.read = models.Habit{ID: bson.NewObjectID(), RoomID: roomID, Name: "Read", Category: models.CategoryMind, Points: 3, IsRepeatable: true, MaxCompletions: 3}

	clock := calendar.Fixed(now)
	day := Day{Clock: clock, Location: time.UTC}
	f.store = &memStore{docs: map[string]models.Completion{}}
	f.users = newFakeUsers(f.ana, f.ben, f.outsider)
	habits := fakeHabits{f.run.ID: f.run, f.read.ID: f.read}
	f.issuer = tokens.NewIssuer("test-secret", clock)

	l := ledger.New(f.store, nil, clock, zap.NewNop())
	completions := NewCompletionHandler(habits, f.users, l, day, zap.NewNop())
	board := NewBoard(&roomData{users: f.users, habits: habits, store: f.store}, day)
	leaderboard := NewLeaderboardHandler(board, f.users, day, zap.NewNop())
	unsubscribe := NewUnsubscribeHandler(f.issuer, f.users, zap.NewNop())
	f.rooms = newFakeRooms(
		models.Room{ID: roomID, MemberIDs: []bson.ObjectID{f.ana.ID, f.ben.ID}},
		models.Room{ID: "QQQ999", MemberIDs: []bson.ObjectID{f.outsider.ID}},
	)
	rooms := NewRoomHandler(f.rooms, f.users, indexedMembers{rooms: f.rooms, users: f.users}, nil, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/unsubscribe", unsubscribe.Unsubscribe)
	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(f.issuer))
		r.Post("/habits/{habitID}/increment", completions.Increment)
		r.Post("/habits/{habitID}/decrement", completions.Decrement)
		r.Get("/rooms/{roomID}/leaderboard", leaderboard.GetLeaderboard)
		r.Post("/rooms", rooms.CreateRoom)
		r.Post("/rooms/leave", rooms.LeaveRoom)
		r.Post("/rooms/{roomID}/join", rooms.JoinRoom)
		r.Get("/rooms/{roomID}/members", rooms.ListMembers)
	})
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, as models.User, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	session, err := f.issuer.Session(as.ID.Hex(), as.Email)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+session)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// ─── Completions ────────────────────────────────────────────────────────────

func TestIncrementAndDecrement(t *testing.T) {
	f := newFixture(t)
	path := "/habits/" + f.read.ID.Hex()

	for i := 1; i <= 4; i++ {
		rec := f.do(t, f.ana, http.MethodPost, path+"/increment", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp CompletionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		want := i
		if want > 3 {
			want = 3
		}
		assert.Equal(t, want, resp.Count)
		assert.Equal(t, want == 3, resp.JustCompleted)
		assert.Equal(t, "2025-07-10", resp.Date)
	}

	rec := f.do(t, f.ana, http.MethodPost, path+"/decrement", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp CompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.False(t, resp.JustCompleted)
}

func TestIncrement_ClientDate(t *testing.T) {
	f := newFixture(t)
	path := "/habits/" + f.run.ID.Hex() + "/increment"

	rec := f.do(t, f.ana, http.MethodPost, path, `{"date":"2025-07-11"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := f.store.docs[models.CompletionKey(f.ana.ID, f.run.ID, "2025-07-11")]
	assert.True(t, ok, "completion should land on the device's day")

	rec = f.do(t, f.ana, http.MethodPost, path, `{"date":"2025-07-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "back-filling old days is refused")

	rec = f.do(t, f.ana, http.MethodPost, path, `{"date":"10/07/2025"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncrement_Rejections(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, f.outsider, http.MethodPost, "/habits/"+f.run.ID.Hex()+"/increment", "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "habit belongs to another room")

	rec = f.do(t, f.ana, http.MethodPost, "/habits/"+bson.NewObjectID().Hex()+"/increment", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, f.ana, http.MethodPost, "/habits/not-an-id/increment", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/habits/"+f.run.ID.Hex()+"/increment", nil)
	unauth := httptest.NewRecorder()
	f.router.ServeHTTP(unauth, req)
	assert.Equal(t, http.StatusUnauthorized, unauth.Code)
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)

	// Monday: ben runs. Thursday: ana reads twice, ben reads once.
	f.do(t, f.ben, http.MethodPost, "/habits/"+f.run.ID.Hex()+"/increment", `{"date":"2025-07-09"}`)
	f.store.mu.Lock()
	monday := models.CompletionKey(f.ben.ID, f.run.ID, "2025-07-07")
	f.store.docs[monday] = models.Completion{
		ID: monday, UserID: f.ben.ID, HabitID: f.run.ID, RoomID: roomID,
		Date: "2025-07-07", Count: 1, Points: 10, Category: models.CategoryBody,
	}
	f.store.mu.Unlock()
	for i := 0; i < 2; i++ {
		f.do(t, f.ana, http.MethodPost, "/habits/"+f.read.ID.Hex()+"/increment", "")
	}
	f.do(t, f.ben, http.MethodPost, "/habits/"+f.read.ID.Hex()+"/increment", "")

	t.Run("today", func(t *testing.T) {
		rec := f.do(t, f.ana, http.MethodGet, "/rooms/abc234/leaderboard", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var view LeaderboardView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, "2025-07-10", view.Date)
		assert.Equal(t, "2025-07-07", view.WeekStart)
		require.Len(t, view.Standings, 2)

		top := view.Standings[0]
		assert.Equal(t, "ana", top.Username)
		assert.Equal(t, 6, top.TodayPoints)
		assert.True(t, top.DailyCrystals[models.CategoryMind])
		assert.Equal(t, 1, top.Streak)

		second := view.Standings[1]
		assert.Equal(t, "ben", second.Username)
		assert.Equal(t, 3, second.TodayPoints)
		assert.Equal(t, 23, second.WeeklyPoints)
		assert.Equal(t, 2, second.Streak, "ben was active on the 9th and the 10th")
	})

	t.Run("week", func(t *testing.T) {
		rec := f.do(t, f.ana, http.MethodGet, "/rooms/ABC234/leaderboard?tab=week", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var view LeaderboardView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, scoring.TabWeek, view.Tab)
		assert.Equal(t, "ben", view.Standings[0].Username)
		assert.Equal(t, 1, view.Standings[0].Rank)
		// Body crystals on the 7th and 9th (ana scored no Body).
		assert.Equal(t, 2, view.Standings[0].WeeklyCrystalCount)
	})

	t.Run("non-members are refused", func(t *testing.T) {
		rec := f.do(t, f.outsider, http.MethodGet, "/rooms/ABC234/leaderboard", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestBoardLive(t *testing.T) {
	f := newFixture(t)
	f.do(t, f.ana, http.MethodPost, "/habits/"+f.run.ID.Hex()+"/increment", "")

	board := NewBoard(&roomData{users: f.users, habits: fakeHabits{f.run.ID: f.run}, store: f.store},
		Day{Clock: calendar.Fixed(now), Location: time.UTC})
	payload, err := board.Live(context.Background(), roomID)
	require.NoError(t, err)

	update, ok := payload.(LiveUpdate)
	require.True(t, ok)
	assert.Equal(t, "leaderboard", update.Type)
	require.Len(t, update.Today, 2)
	assert.Equal(t, 10, update.Today[0].TodayPoints)
	assert.Len(t, update.Week, 2)
}

// ─── Rooms ──────────────────────────────────────────────────────────────────

func TestJoinAndLeaveKeepMembershipInStep(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, f.ana, http.MethodPost, "/rooms/qqq999/join", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.ElementsMatch(t, []bson.ObjectID{f.outsider.ID, f.ana.ID}, f.rooms.memberIDs("QQQ999"))
	assert.Equal(t, []bson.ObjectID{f.ben.ID}, f.rooms.memberIDs(roomID))
	moved, _ := f.users.FindByID(context.Background(), f.ana.ID)
	assert.Equal(t, "QQQ999", moved.RoomID)

	rec = f.do(t, f.ana, http.MethodPost, "/rooms/leave", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bson.ObjectID{f.outsider.ID}, f.rooms.memberIDs("QQQ999"))

	rec = f.do(t, f.ana, http.MethodPost, "/rooms/NOPE99/join", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoin_FailedUserWriteRollsBackIndex(t *testing.T) {
	f := newFixture(t)
	f.users.mu.Lock()
	f.users.failSetRoom = true
	f.users.mu.Unlock()

	rec := f.do(t, f.ana, http.MethodPost, "/rooms/QQQ999/join", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []bson.ObjectID{f.outsider.ID}, f.rooms.memberIDs("QQQ999"))
	assert.Equal(t, []bson.ObjectID{f.ana.ID, f.ben.ID}, f.rooms.memberIDs(roomID))
}

func TestListMembers_ReadsMemberIndex(t *testing.T) {
	f := newFixture(t)
	// A stale entry left by an interrupted move must not show up.
	require.NoError(t, f.rooms.AddMember(context.Background(), roomID, f.outsider.ID))

	rec := f.do(t, f.ana, http.MethodGet, "/rooms/ABC234/members", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var members []struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	require.Len(t, members, 2)
	assert.Equal(t, "ana", members[0].Username)
	assert.Equal(t, "ben", members[1].Username)

	rec = f.do(t, f.outsider, http.MethodGet, "/rooms/ABC234/members", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ─── Habits ─────────────────────────────────────────────────────────────────

func TestCreateHabitRequest_Validate(t *testing.T) {
	valid := CreateHabitRequest{Name: "Read", Category: models.CategoryMind, Points: 5}
	_, ok := valid.validate()
	assert.True(t, ok)

	tests := []struct {
		name string
		edit func(*CreateHabitRequest)
	}{
		{"zero points", func(r *CreateHabitRequest) { r.Points = 0 }},
		{"negative points", func(r *CreateHabitRequest) { r.Points = -3 }},
		{"too many points", func(r *CreateHabitRequest) { r.Points = 101 }},
		{"blank name", func(r *CreateHabitRequest) { r.Name = "  " }},
		{"unknown category", func(r *CreateHabitRequest) { r.Category = "Wealth" }},
		{"repeatable without max", func(r *CreateHabitRequest) { r.IsRepeatable = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.edit(&req)
			msg, ok := req.validate()
			assert.False(t, ok)
			assert.NotEmpty(t, msg)
		})
	}

	req := valid
	req.Points = 0
	msg, _ := req.validate()
	assert.Equal(t, "points must be between 1 and 100", msg)
}

// ─── Unsubscribe ────────────────────────────────────────────────────────────

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t)
	token, err := f.issuer.Unsubscribe(f.ben.ID.Hex())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unsubscribe?token="+token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsubscribed")
	assert.True(t, f.users.disabled[f.ben.ID])

	// A session token is not an unsubscribe token.
	session, err := f.issuer.Session(f.ana.ID.Hex(), f.ana.Email)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unsubscribe?token="+session, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, f.users.disabled[f.ana.ID])
}

// ─── Day ────────────────────────────────────────────────────────────────────

func TestDayResolve(t *testing.T) {
	// 23:30 in New York is already the next day in UTC.
	late := time.Date(2025, 7, 11, 3, 30, 0, 0, time.UTC)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	d := Day{Clock: calendar.Fixed(late), Location: ny}

	got, err := d.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-10", got)

	for _, ok := range []string{"2025-07-09", "2025-07-10", "2025-07-11"} {
		_, err := d.Resolve(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"2025-07-08", "2025-07-12", "July 10"} {
		_, err := d.Resolve(bad)
		assert.Error(t, err, bad)
	}
}
