// Package ledger owns the per-day completion count of a (user, habit)
// pair. Counts live in 1..EffectiveMax; a count that would drop to zero
// deletes the record instead.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/metrics"
	"habitroom-backend/internal/models"
)

var (
	// ErrDuplicateKey is returned by Store.Create when the completion for
	// the key already exists.
	ErrDuplicateKey = errors.New("completion already exists")
	ErrInvalidDate  = errors.New("completion date must be YYYY-MM-DD")
	ErrInvalidHabit = errors.New("habit is required")
)

// Store is the single-document persistence the ledger relies on. The
// guarded updates must be atomic in the backing store; they report
// applied=false when the guard did not match.
type Store interface {
	Get(ctx context.Context, key string) (*models.Completion, error)
	Create(ctx context.Context, c *models.Completion) error
	IncrementBelow(ctx context.Context, key string, max int) (count int, applied bool, err error)
	DecrementAbove(ctx context.Context, key string, min int) (count int, applied bool, err error)
	DeleteAt(ctx context.Context, key string, count int) (deleted bool, err error)
}

// Publisher is told which room changed after every successful mutation.
type Publisher interface {
	Publish(ctx context.Context, roomID string) error
}

// Result is what a ledger operation leaves behind.
type Result struct {
	Count int `json:"count"`
	// JustCompleted is true whenever the resulting count equals the
	// habit's effective max.
	JustCompleted bool `json:"just_completed"`
	// Changed is false for no-ops (saturated increment, missing decrement).
	Changed bool `json:"changed"`
}

type Ledger struct {
	store  Store
	events Publisher
	clock  calendar.Clock
	logger *zap.Logger
}

func New(store Store, events Publisher, clock calendar.Clock, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, events: events, clock: clock, logger: logger}
}

// Increment logs one more completion of habit for user on today.
func (l *Ledger) Increment(ctx context.Context, userID bson.ObjectID, habit *models.Habit, today string) (Result, error) {
	if habit == nil {
		return Result{}, ErrInvalidHabit
	}
	if !calendar.Valid(today) {
		return Result{}, ErrInvalidDate
	}

	key := models.CompletionKey(userID, habit.ID, today)
	max := habit.EffectiveMax()

	existing, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("load completion %s: %w", key, err)
	}

	if existing == nil {
		now := l.clock.Now()
		c := &models.Completion{
			ID:        key,
			UserID:    userID,
			HabitID:   habit.ID,
			RoomID:    habit.RoomID,
			Date:      today,
			Count:     1,
			Points:    habit.Points,
			Category:  habit.Category,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := l.store.Create(ctx, c)
		switch {
		case err == nil:
			return l.changed(ctx, "create", habit.RoomID, 1, max), nil
		case errors.Is(err, ErrDuplicateKey):
			// Lost a create race; the other writer's record now exists.
		default:
			return Result{}, fmt.Errorf("create completion %s: %w", key, err)
		}
	} else if existing.Count >= max {
		metrics.LedgerMutations.WithLabelValues("noop").Inc()
		return Result{Count: existing.Count, JustCompleted: existing.Count == max}, nil
	}

	count, applied, err := l.store.IncrementBelow(ctx, key, max)
	if err != nil {
		return Result{}, fmt.Errorf("increment completion %s: %w", key, err)
	}
	if !applied {
		// Someone else reached the cap (or removed the record) in between.
		metrics.LedgerMutations.WithLabelValues("noop").Inc()
		current, err := l.store.Get(ctx, key)
		if err != nil {
			return Result{}, fmt.Errorf("reload completion %s: %w", key, err)
		}
		if current == nil {
			return Result{}, nil
		}
		return Result{Count: current.Count, JustCompleted: current.Count == max}, nil
	}
	return l.changed(ctx, "increment", habit.RoomID, count, max), nil
}

// Decrement undoes one completion of habit for user on today. Taking the
// count from 1 deletes the record.
func (l *Ledger) Decrement(ctx context.Context, userID bson.ObjectID, habit *models.Habit, today string) (Result, error) {
	if habit == nil {
		return Result{}, ErrInvalidHabit
	}
	if !calendar.Valid(today) {
		return Result{}, ErrInvalidDate
	}

	key := models.CompletionKey(userID, habit.ID, today)
	max := habit.EffectiveMax()

	existing, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("load completion %s: %w", key, err)
	}
	if existing == nil {
		metrics.LedgerMutations.WithLabelValues("noop").Inc()
		return Result{}, nil
	}

	// Two attempts cover a concurrent increment/decrement flipping the
	// record between "at 1" and "above 1" under us.
	for attempt := 0; attempt < 2; attempt++ {
		if existing.Count > 1 {
			count, applied, err := l.store.DecrementAbove(ctx, key, 1)
			if err != nil {
				return Result{}, fmt.Errorf("decrement completion %s: %w", key, err)
			}
			if applied {
				return l.changed(ctx, "decrement", habit.RoomID, count, max), nil
			}
		} else {
			deleted, err := l.store.DeleteAt(ctx, key, 1)
			if err != nil {
				return Result{}, fmt.Errorf("delete completion %s: %w", key, err)
			}
			if deleted {
				return l.changed(ctx, "delete", habit.RoomID, 0, max), nil
			}
		}

		existing, err = l.store.Get(ctx, key)
		if err != nil {
			return Result{}, fmt.Errorf("reload completion %s: %w", key, err)
		}
		if existing == nil {
			return Result{}, nil
		}
	}

	l.logger.Warn("completion decrement lost to concurrent writes",
		zap.String("key", key), zap.Int("count", existing.Count))
	return Result{Count: existing.Count, JustCompleted: existing.Count == max}, nil
}

func (l *Ledger) changed(ctx context.Context, op, roomID string, count, max int) Result {
	metrics.LedgerMutations.WithLabelValues(op).Inc()
	l.publish(ctx, roomID)
	return Result{Count: count, JustCompleted: count == max, Changed: true}
}

// publish is best-effort: a missed live update only delays a refresh.
func (l *Ledger) publish(ctx context.Context, roomID string) {
	if l.events == nil || roomID == "" {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := l.events.Publish(pubCtx, roomID); err != nil {
		l.logger.Warn("publish room change", zap.String("room_id", roomID), zap.Error(err))
	}
}
