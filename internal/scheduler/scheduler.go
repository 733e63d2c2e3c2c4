// Package scheduler fires the reminder runs at fixed local wall-clock
// times.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"habitroom-backend/internal/calendar"
	"habitroom-backend/internal/config"
	"habitroom-backend/internal/notify"
)

// Entry fires Kind every day at Hour:Minute, or only on Weekday when
// Weekly is set.
type Entry struct {
	Kind    notify.Kind
	Hour    int
	Minute  int
	Weekly  bool
	Weekday time.Weekday
}

func (e Entry) String() string {
	if e.Weekly {
		return fmt.Sprintf("%s %s %02d:%02d", e.Kind, e.Weekday, e.Hour, e.Minute)
	}
	return fmt.Sprintf("%s daily %02d:%02d", e.Kind, e.Hour, e.Minute)
}

// Next returns the first firing strictly after t, in loc.
func (e Entry) Next(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d, e.Hour, e.Minute, 0, 0, loc)

	step := 1
	if e.Weekly {
		step = 7
		ahead := (int(e.Weekday) - int(local.Weekday()) + 7) % 7
		next = time.Date(y, m, d+ahead, e.Hour, e.Minute, 0, 0, loc)
	}
	if !next.After(t) {
		y, m, d = next.Date()
		next = time.Date(y, m, d+step, e.Hour, e.Minute, 0, 0, loc)
	}
	return next
}

// FromConfig builds the midday, evening and weekly entries.
func FromConfig(cfg config.ScheduleConfig) ([]Entry, error) {
	midday, err := daily(notify.KindMidday, cfg.MiddayAt)
	if err != nil {
		return nil, err
	}
	evening, err := daily(notify.KindEvening, cfg.EveningAt)
	if err != nil {
		return nil, err
	}
	weekly, err := daily(notify.KindWeekly, cfg.WeeklyAt)
	if err != nil {
		return nil, err
	}
	weekday, err := parseWeekday(cfg.WeeklyDay)
	if err != nil {
		return nil, err
	}
	weekly.Weekly, weekly.Weekday = true, weekday
	return []Entry{midday, evening, weekly}, nil
}

func daily(kind notify.Kind, at string) (Entry, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return Entry{}, fmt.Errorf("%s time %q: want HH:MM", kind, at)
	}
	return Entry{Kind: kind, Hour: t.Hour(), Minute: t.Minute()}, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) || strings.EqualFold(s, d.String()[:3]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("weekly_day %q is not a weekday", s)
}

// RunFunc executes one reminder run.
type RunFunc func(ctx context.Context, kind notify.Kind)

// Scheduler sleeps until the next entry is due and runs it. Runs execute
// one at a time; entries due at the same instant run in declaration order.
type Scheduler struct {
	entries []Entry
	loc     *time.Location
	clock   calendar.Clock
	run     RunFunc
	logger  *zap.Logger

	// sleep waits for d and reports false if ctx ended first.
	sleep func(ctx context.Context, d time.Duration) bool
}

func New(entries []Entry, loc *time.Location, clock calendar.Clock, run RunFunc, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		entries: entries,
		loc:     loc,
		clock:   clock,
		run:     run,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		return fmt.Errorf("scheduler has no entries")
	}
	for _, e := range s.entries {
		s.logger.Info("⏰ scheduled", zap.String("entry", e.String()), zap.String("tz", s.loc.String()))
	}

	last := s.clock.Now()
	for {
		due, at := s.nextDue(last)
		s.logger.Debug("waiting for next run", zap.Time("at", at), zap.Int("entries", len(due)))

		if wait := at.Sub(s.clock.Now()); wait > 0 {
			if !s.sleep(ctx, wait) {
				return nil
			}
		}
		for _, e := range due {
			if ctx.Err() != nil {
				return nil
			}
			s.run(ctx, e.Kind)
		}
		last = at
	}
}

// nextDue returns every entry whose next firing after t is the earliest.
func (s *Scheduler) nextDue(t time.Time) ([]Entry, time.Time) {
	var (
		due  []Entry
		soon time.Time
	)
	for _, e := range s.entries {
		next := e.Next(t, s.loc)
		switch {
		case due == nil || next.Before(soon):
			due, soon = []Entry{e}, next
		case next.Equal(soon):
			due = append(due, e)
		}
	}
	return due, soon
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
