package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/mailer"
	"habitroom-backend/internal/metrics"
	"habitroom-backend/internal/models"
	"habitroom-backend/internal/scoring"
)

// Kind names one of the three scheduled runs.
type Kind string

const (
	KindMidday  Kind = "midday"
	KindEvening Kind = "evening"
	KindWeekly  Kind = "weekly"
)

// ParseKind validates a run name from the command line.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindMidday, KindEvening, KindWeekly:
		return k, nil
	}
	return "", fmt.Errorf("unknown run %q (want midday, evening or weekly)", s)
}

// ProtectStreakMin is the shortest streak worth an evening "protect your
// streak" email for users who already logged something today.
const ProtectStreakMin = 2

// Source is the read side of the document store the job needs.
type Source interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListCompletions(ctx context.Context, from, to string) ([]models.Completion, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	RoomMembers(ctx context.Context, roomID string) ([]models.User, error)
	RoomHabits(ctx context.Context, roomID string) ([]models.Habit, error)
	RoomCompletions(ctx context.Context, roomID, from, to string) ([]models.Completion, error)
}

type JobConfig struct {
	FromName    string
	Concurrency int
	Location    *time.Location
}

// Job plans and sends one reminder run.
type Job struct {
	src      Source
	mailer   mailer.Mailer
	composer *Composer
	clock    calendar.Clock
	cfg      JobConfig
	logger   *zap.Logger
}

func NewJob(src Source, m mailer.Mailer, composer *Composer, clock calendar.Clock, cfg JobConfig, logger *zap.Logger) *Job {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Job{src: src, mailer: m, composer: composer, clock: clock, cfg: cfg, logger: logger}
}

// Summary describes a finished run. Err is set only for failures that
// stopped the run before or during planning; per-recipient failures are
// in Results.
type Summary struct {
	RunID   string
	Kind    Kind
	Date    string
	Planned int
	Sent    int
	Failed  int
	Results []DeliveryResult
	Err     error
}

// Run executes one run end to end. It never returns an error; problems are
// logged and reported on the Summary.
func (j *Job) Run(ctx context.Context, kind Kind) (summary Summary) {
	started := j.clock.Now()
	summary = Summary{
		RunID: uuid.NewString(),
		Kind:  kind,
		Date:  calendar.Today(j.clock, j.cfg.Location),
	}
	log := j.logger.With(
		zap.String("run_id", summary.RunID),
		zap.String("kind", string(kind)),
		zap.String("date", summary.Date),
	)

	defer func() {
		if r := recover(); r != nil {
			summary.Err = fmt.Errorf("reminder run panicked: %v", r)
		}
		outcome := "ok"
		if summary.Err != nil {
			outcome = "failed"
			log.Error("reminder run failed", zap.Error(summary.Err))
		}
		metrics.JobRuns.WithLabelValues(string(kind), outcome).Inc()
		metrics.JobDuration.WithLabelValues(string(kind)).Observe(j.clock.Now().Sub(started).Seconds())
	}()

	msgs, err := j.Plan(ctx, kind, summary.Date)
	if err != nil {
		summary.Err = err
		return summary
	}
	summary.Planned = len(msgs)
	log.Info("reminder run planned", zap.Int("messages", len(msgs)))

	summary.Results = Dispatch(ctx, j.mailer, j.cfg.FromName, msgs, j.cfg.Concurrency, log)
	for _, r := range summary.Results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Sent++
		}
	}
	log.Info("reminder run finished",
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
	)
	return summary
}

// Plan builds the messages for a run without sending anything.
func (j *Job) Plan(ctx context.Context, kind Kind, today string) ([]Message, error) {
	switch kind {
	case KindMidday, KindEvening:
		return j.planDaily(ctx, kind, today)
	case KindWeekly:
		return j.planWeekly(ctx, today)
	}
	return nil, fmt.Errorf("unknown run %q", kind)
}

func (j *Job) planDaily(ctx context.Context, kind Kind, today string) ([]Message, error) {
	users, err := j.src.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	completions, err := j.src.ListCompletions(ctx, calendar.AddDays(today, -scoring.StreakLookbackDays), today)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	snap := scoring.NewSnapshot(nil, completions, nil)
	seg := Segment(users, snap, today)

	inactiveVariant := VariantMiddayNudge
	if kind == KindEvening {
		inactiveVariant = VariantEveningUrgent
	}

	var msgs []Message
	for _, u := range seg.Inactive {
		msgs = j.appendMessage(msgs, inactiveVariant, u, Details{Streak: snap.Streak(u.ID, today)})
	}
	if kind == KindEvening {
		for _, u := range seg.Partial {
			streak := snap.Streak(u.ID, today)
			if streak < ProtectStreakMin {
				continue
			}
			msgs = j.appendMessage(msgs, VariantProtectStreak, u, Details{Streak: streak})
		}
	}
	return msgs, nil
}

func (j *Job) planWeekly(ctx context.Context, today string) ([]Message, error) {
	rooms, err := j.src.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	weekStart, weekEnd := calendar.PreviousWeek(today)

	var msgs []Message
	for _, room := range rooms {
		roomMsgs, err := j.planRoomWeekly(ctx, room.ID, weekStart, weekEnd)
		if err != nil {
			// One unreadable room must not cancel everyone else's email.
			j.logger.Warn("skipping room in weekly run", zap.String("room_id", room.ID), zap.Error(err))
			continue
		}
		msgs = append(msgs, roomMsgs...)
	}
	return msgs, nil
}

func (j *Job) planRoomWeekly(ctx context.Context, roomID, weekStart, weekEnd string) ([]Message, error) {
	members, err := j.src.RoomMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("room members: %w", err)
	}
	if len(members) < 2 {
		return nil, nil
	}
	habits, err := j.src.RoomHabits(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("room habits: %w", err)
	}
	completions, err := j.src.RoomCompletions(ctx, roomID, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("room completions: %w", err)
	}

	ids := make([]bson.ObjectID, len(members))
	byID := make(map[bson.ObjectID]models.User, len(members))
	for i, m := range members {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	res := ResolveWeeklyWinner(ids, habits, completions, weekStart, weekEnd)
	if !res.HasWinner() {
		j.logger.Info("no weekly winner", zap.String("room_id", roomID), zap.String("reason", string(res.Skip)))
		return nil, nil
	}
	winner := byID[res.Winner]

	d := Details{
		WinnerName:   winner.DisplayName(),
		WinnerPoints: res.Points,
		WeekStart:    weekStart,
		WeekEnd:      weekEnd,
	}
	var msgs []Message
	for _, m := range members {
		if !Eligible(m) {
			continue
		}
		variant := VariantWeeklyResult
		if m.ID == res.Winner {
			variant = VariantWeeklyWinner
		}
		msgs = j.appendMessage(msgs, variant, m, d)
	}
	return msgs, nil
}

// appendMessage renders and appends; a render failure drops only that
// recipient.
func (j *Job) appendMessage(msgs []Message, variant Variant, u models.User, d Details) []Message {
	msg, err := j.composer.Compose(variant, u, d)
	if err != nil {
		j.logger.Warn("compose email", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		return msgs
	}
	return append(msgs, msg)
}
