// internal/service/aggregation/scheduler.go

package aggregation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"civicpulse/internal/domain/rollup"
)

// DayRunner aggregates one calendar day
type DayRunner interface {
	RunDay(ctx context.Context, day time.Time) (rollup.RunSummary, error)
}

// PendingTagger resolves records that have not been tagged yet
type PendingTagger interface {
	TagPending(ctx context.Context, limit int) (int, error)
}

// SchedulerConfig contains configuration for the scheduler
type SchedulerConfig struct {
	Interval   time.Duration
	TagBatch   int
	RunOnStart bool
}

// Scheduler periodically tags pending records and rolls up the previous day
type Scheduler struct {
	runner DayRunner
	tagger PendingTagger
	config SchedulerConfig
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a new scheduler. tagger may be nil.
func NewScheduler(runner DayRunner, tagger PendingTagger, config SchedulerConfig, logger *zap.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner: runner,
		tagger: tagger,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins the scheduling loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(loopCtx)

	s.logger.Info("Aggregation scheduler started", zap.Duration("interval", s.config.Interval))
	return nil
}

// loop runs a tick per interval until the context is cancelled
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick tags pending records and then aggregates the previous UTC day
func (s *Scheduler) tick(ctx context.Context) {
	if s.tagger != nil && s.config.TagBatch > 0 {
		if _, err := s.tagger.TagPending(ctx, s.config.TagBatch); err != nil {
			s.logger.Warn("Tagging pending records failed", zap.Error(err))
		}
	}

	day := rollup.DayOf(s.now()).AddDate(0, 0, -1)
	summary, err := s.runner.RunDay(ctx, day)
	if err != nil {
		s.logger.Error("Scheduled aggregation failed",
			zap.String("date", day.Format(time.DateOnly)),
			zap.Error(err))
		return
	}

	if summary.PartialFailure() {
		s.logger.Warn("Scheduled aggregation left localities to re-run",
			zap.String("run_id", summary.RunID),
			zap.String("date", day.Format(time.DateOnly)),
			zap.Int("failed", len(summary.FailedLocalities)))
	}
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	// Wait for the loop to finish with a timeout
	c := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(c)
	}()

	select {
	case <-c:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("Aggregation scheduler stopped")
	return nil
}
