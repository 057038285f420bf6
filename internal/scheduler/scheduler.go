package scheduler

import (
	"context"
	"time"

	"taskbot/internal/logger"
)

// Job is one trigger of a periodic task.
type Job func(ctx context.Context) error

// Every runs job immediately and then on each tick until ctx is done.
// Ticks that arrive while job is still running are dropped.
func Every(ctx context.Context, name string, interval time.Duration, job Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run(ctx, name, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx, name, job)
		}
	}
}

// Daily runs job once a day at hour:minute in loc until ctx is done.
func Daily(ctx context.Context, name string, loc *time.Location, hour, minute int, job Job) {
	for {
		now := time.Now().In(loc)
		next := NextDailyRun(now, hour, minute)
		logger.Debug(ctx, "next scheduled run", "job", name, "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			run(ctx, name, job)
		}
	}
}

// NextDailyRun returns the first hour:minute on now's civil calendar that is
// strictly after now.
func NextDailyRun(now time.Time, hour, minute int) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

func run(ctx context.Context, name string, job Job) {
	start := time.Now()
	if err := job(ctx); err != nil {
		logger.Error(ctx, err, "scheduled job failed", "job", name)
		return
	}
	logger.Debug(ctx, "scheduled job done", "job", name, "duration", time.Since(start))
}
