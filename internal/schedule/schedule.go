// Package schedule runs the detection cycle and the alert sweeps on their
// timers until the context is cancelled.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/detect"
)

// Pipeline is the detection side driven by the detect loop.
type Pipeline interface {
	DetectAll(ctx context.Context) (detect.Report, error)
	ClassifyPending(ctx context.Context) (int, error)
}

// Sweeper is the delivery side driven by both loops.
type Sweeper interface {
	DeliverPending(ctx context.Context) (int, error)
	SweepDaily(ctx context.Context) (int, error)
	SweepWeekly(ctx context.Context) (int, error)
}

// Config configures a Scheduler.
type Config struct {
	DetectInterval time.Duration

	// DigestHour is the hour of day, in Location, at which the daily digest
	// is sent. The weekly summary goes out at the same hour on WeeklyDay.
	DigestHour int
	WeeklyDay  time.Weekday
	Location   *time.Location

	Logger *zap.Logger

	// Now and After replace the wall clock in tests.
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

// DefaultConfig returns hourly detection and a 09:00 UTC digest with the
// weekly summary on Mondays.
func DefaultConfig() Config {
	return Config{
		DetectInterval: time.Hour,
		DigestHour:     9,
		WeeklyDay:      time.Monday,
		Location:       time.UTC,
	}
}

// Validate checks the loop settings.
func (c Config) Validate() error {
	if c.DetectInterval <= 0 {
		return fmt.Errorf("schedule.detect_interval must be positive, got %s", c.DetectInterval)
	}
	if c.DigestHour < 0 || c.DigestHour > 23 {
		return fmt.Errorf("schedule.digest_hour must be within [0, 23], got %d", c.DigestHour)
	}
	if c.WeeklyDay < time.Sunday || c.WeeklyDay > time.Saturday {
		return fmt.Errorf("schedule.weekly_day out of range: %d", c.WeeklyDay)
	}
	return nil
}

// Scheduler owns the two loops.
type Scheduler struct {
	pipeline Pipeline
	sweeper  Sweeper
	cfg      Config
	logger   *zap.Logger
}

// New returns a Scheduler. Zero config fields take their defaults.
func New(p Pipeline, s Sweeper, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.DetectInterval == 0 {
		cfg.DetectInterval = def.DetectInterval
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{pipeline: p, sweeper: s, cfg: cfg, logger: logger}
}

// Run starts both loops and blocks until ctx is cancelled. A unit of work
// in progress at cancellation completes before Run returns; failures of
// individual cycles are logged and do not stop the loops.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.logger.Info("scheduler started",
		zap.Duration("detect_interval", s.cfg.DetectInterval),
		zap.Int("digest_hour", s.cfg.DigestHour),
		zap.String("weekly_day", s.cfg.WeeklyDay.String()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.detectLoop(gctx) })
	g.Go(func() error { return s.sweepLoop(gctx) })
	err := g.Wait()

	s.logger.Info("scheduler stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Scheduler) detectLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.DetectInterval)
	defer ticker.Stop()

	for {
		s.DetectCycle(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// DetectCycle finishes changes left unclassified, runs detection over all
// active assets and retries undelivered immediate alerts. Detection stops
// between assets when ctx is cancelled.
func (s *Scheduler) DetectCycle(ctx context.Context) {
	work := context.WithoutCancel(ctx)

	if n, err := s.pipeline.ClassifyPending(work); err != nil {
		s.logger.Error("classify pending changes", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("classified pending changes", zap.Int("count", n))
	}

	if _, err := s.pipeline.DetectAll(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("detection cycle", zap.Error(err))
	}

	if n, err := s.sweeper.DeliverPending(work); err != nil {
		s.logger.Error("deliver pending alerts", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("delivered pending alerts", zap.Int("count", n))
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) error {
	for {
		next := NextDigest(s.cfg.Now(), s.cfg.DigestHour, s.cfg.Location)
		wait := next.Sub(s.cfg.Now())
		s.logger.Debug("next sweep", zap.Time("at", next))

		select {
		case <-ctx.Done():
			return nil
		case <-s.cfg.After(wait):
		}
		s.Sweep(context.WithoutCancel(ctx), next)
	}
}

// Sweep sends the daily digest and, when at falls on the weekly day, the
// weekly summary.
func (s *Scheduler) Sweep(ctx context.Context, at time.Time) {
	if n, err := s.sweeper.SweepDaily(ctx); err != nil {
		s.logger.Error("daily digest", zap.Error(err))
	} else {
		s.logger.Info("daily digest sent", zap.Int("changes", n))
	}

	if at.In(s.cfg.Location).Weekday() != s.cfg.WeeklyDay {
		return
	}
	if n, err := s.sweeper.SweepWeekly(ctx); err != nil {
		s.logger.Error("weekly summary", zap.Error(err))
	} else {
		s.logger.Info("weekly summary sent", zap.Int("changes", n))
	}
}

// NextDigest returns the first time strictly after now that is hour:00 in
// loc.
func NextDigest(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
