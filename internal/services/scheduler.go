package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"conti/internal/clock"
)

// SchedulerConfig holds configuration for the recurring scheduler
type SchedulerConfig struct {
	// Interval is how often due templates are processed (default: 1h)
	Interval time.Duration
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: time.Hour,
	}
}

// Scheduler runs the recurring processor once on start and then on every tick.
// Each pass asks the clock for today, so a worker running across midnight
// picks up the new day on its next tick.
type Scheduler struct {
	processor *RecurringProcessor
	clock     clock.Clock
	config    SchedulerConfig

	mu      sync.Mutex
	running bool
	passes  int
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(processor *RecurringProcessor, c clock.Clock, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &Scheduler{
		processor: processor,
		clock:     c,
		config:    config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Recurring scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Recurring scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring scheduler stop timed out")
		return ctx.Err()
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Passes returns the number of completed passes.
func (s *Scheduler) Passes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

// runLoop owns stopCh and doneCh of its own Start; a later Start may already
// have replaced the fields by the time it returns.
func (s *Scheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.processOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processOnce(ctx)
		}
	}
}

func (s *Scheduler) processOnce(ctx context.Context) {
	today := s.clock.Today()
	res, err := s.processor.ProcessDue(ctx, today)
	if err != nil {
		slog.ErrorContext(ctx, "Recurring pass failed", "today", today.String(), "error", err)
	} else {
		slog.InfoContext(ctx, "Recurring pass complete",
			"today", today.String(),
			"created", len(res.New),
			"skipped", len(res.Skipped),
			"next_check", time.Now().Add(s.config.Interval).Format("15:04:05"))
	}

	s.mu.Lock()
	s.passes++
	s.mu.Unlock()
}
