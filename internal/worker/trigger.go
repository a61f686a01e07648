package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mondo989/ReallyGoodJob/internal/config"
	"github.com/mondo989/ReallyGoodJob/internal/model"
	"github.com/mondo989/ReallyGoodJob/internal/repository"
	"github.com/mondo989/ReallyGoodJob/internal/service/schedule"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
	"github.com/mondo989/ReallyGoodJob/pkg/metrics"
)

// ScheduleRunner fires one due schedule.
type ScheduleRunner interface {
	RunSchedule(ctx context.Context, sched *model.Schedule) (schedule.BatchResult, error)
}

// DailyTasks run at the midnight boundary.
type DailyTasks interface {
	ResetDailyCounters(ctx context.Context) (int64, error)
}

// CampaignSweeper expires overdue campaigns.
type CampaignSweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Trigger drives window processing off a single recurring timer. Each
// calendar day has four fire instants: the three window openings and
// midnight. Instants missed by more than the grace period are skipped, never
// retro-fired; at most once per calendar window.
type Trigger struct {
	schedules repository.ScheduleRepository
	runner    ScheduleRunner
	daily     DailyTasks
	sweeper   CampaignSweeper
	cfg       config.SchedulerConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu    sync.Mutex
	fired map[string]bool
}

func NewTrigger(
	schedules repository.ScheduleRepository,
	runner ScheduleRunner,
	daily DailyTasks,
	sweeper CampaignSweeper,
	cfg config.SchedulerConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *Trigger {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &Trigger{
		schedules: schedules,
		runner:    runner,
		daily:     daily,
		sweeper:   sweeper,
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		now:       time.Now,
		fired:     make(map[string]bool),
	}
}

// WithClock overrides the trigger clock, for tests.
func (t *Trigger) WithClock(now func() time.Time) *Trigger {
	t.now = now
	return t
}

// Run ticks until the context is cancelled.
func (t *Trigger) Run(ctx context.Context) error {
	t.logger.Info("trigger started", map[string]interface{}{
		"tick_interval": t.cfg.TickInterval.String(),
		"grace_period":  t.cfg.GracePeriod.String(),
		"worker_count":  t.cfg.WorkerCount,
	})

	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("trigger stopped")
			return ctx.Err()
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick checks every fire instant of the current UTC day and fires those that
// are due, unfired, and still within the grace period.
func (t *Trigger) Tick(ctx context.Context) {
	now := t.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if t.due(now, day) && t.claim(instantKey(day, "midnight")) {
		t.runMidnight(ctx)
	}

	for _, w := range model.Windows() {
		instant := w.StartOn(day)
		if !t.due(now, instant) {
			continue
		}
		if !t.claim(instantKey(instant, string(w))) {
			continue
		}
		t.fireWindow(ctx, w, now)
	}

	t.prune(day)
}

func (t *Trigger) due(now, instant time.Time) bool {
	if now.Before(instant) {
		return false
	}
	return now.Sub(instant) <= t.cfg.GracePeriod
}

// claim marks an instant fired, returning false if it already was.
func (t *Trigger) claim(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired[key] {
		return false
	}
	t.fired[key] = true
	return true
}

// prune drops marks from previous days so the map stays bounded.
func (t *Trigger) prune(day time.Time) {
	prefix := day.Format("2006-01-02")
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.fired {
		if key[:len(prefix)] != prefix {
			delete(t.fired, key)
		}
	}
}

func instantKey(instant time.Time, label string) string {
	return fmt.Sprintf("%s/%s", instant.Format("2006-01-02"), label)
}

// fireWindow selects and runs every due schedule for the window. A failure
// on one schedule never aborts the others.
func (t *Trigger) fireWindow(ctx context.Context, window model.Window, now time.Time) {
	due, err := t.schedules.ListDue(ctx, window, now)
	if err != nil {
		t.metrics.WindowRuns.WithLabelValues(string(window), "error").Inc()
		t.logger.Error(err, "failed to list due schedules", map[string]interface{}{
			"window": string(window),
		})
		return
	}

	t.metrics.SchedulesDue.Observe(float64(len(due)))
	t.logger.Info("window fired", map[string]interface{}{
		"window": string(window),
		"due":    len(due),
	})

	sem := make(chan struct{}, t.cfg.WorkerCount)
	var wg sync.WaitGroup
	for _, sched := range due {
		sched := sched
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			result, err := t.runner.RunSchedule(ctx, sched)
			if err != nil {
				t.logger.Error(err, "schedule run failed", map[string]interface{}{
					"schedule_id": sched.ID.String(),
					"window":      string(window),
				})
				return
			}
			t.logger.Info("schedule run complete", map[string]interface{}{
				"schedule_id": sched.ID.String(),
				"sent":        result.Sent,
				"failed":      result.Failed,
				"skipped":     result.Skipped,
			})
		}()
	}
	wg.Wait()

	t.metrics.WindowRuns.WithLabelValues(string(window), "success").Inc()
}

// runMidnight resets quota counters and sweeps expired campaigns.
func (t *Trigger) runMidnight(ctx context.Context) {
	reset, err := t.daily.ResetDailyCounters(ctx)
	if err != nil {
		t.metrics.DatabaseOps.WithLabelValues("reset_daily_counters", "failure").Inc()
		t.logger.Error(err, "daily counter reset failed")
	} else {
		t.metrics.DatabaseOps.WithLabelValues("reset_daily_counters", "success").Inc()
		t.logger.Info("daily counters reset", map[string]interface{}{"schedules": reset})
	}

	if t.sweeper == nil {
		return
	}
	expired, err := t.sweeper.ExpireOverdue(ctx)
	if err != nil {
		t.logger.Error(err, "campaign expiry sweep failed")
		return
	}
	if expired > 0 {
		t.logger.Info("campaigns expired", map[string]interface{}{"count": expired})
	}
}
