package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
)

// BillingRunner runs one billing cycle.
type BillingRunner interface {
	Handle(ctx context.Context, cmd commands.RunBillingCycleCommand) (*commands.BillingCycleResult, error)
}

// BillingScheduler runs a billing cycle on start and then on every tick.
// Runs never overlap: a cycle that outlasts the interval delays the next one.
type BillingScheduler struct {
	runner   BillingRunner
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	lastMu     sync.Mutex
	lastResult *commands.BillingCycleResult
	lastRunAt  time.Time
	lastError  string
}

// NewBillingScheduler creates a scheduler. A non-positive interval defaults to one hour.
func NewBillingScheduler(runner BillingRunner, interval time.Duration, logger *slog.Logger) *BillingScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingScheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start launches the loop. Calling Start twice is a no-op.
func (s *BillingScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopChan)

	s.logger.Info("billing scheduler started", "interval", s.interval)
}

// Stop halts the loop and waits for an in-flight run.
func (s *BillingScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("billing scheduler stopped")
}

func (s *BillingScheduler) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce bills everything due as of the current UTC date.
func (s *BillingScheduler) RunOnce(ctx context.Context) {
	now := s.now().UTC()
	result, err := s.runner.Handle(ctx, commands.RunBillingCycleCommand{AsOf: now})

	s.lastMu.Lock()
	s.lastRunAt = now
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastResult = result
		s.lastError = ""
	}
	s.lastMu.Unlock()

	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled billing run failed", "error", err)
	}
}

// SchedulerStatus is a point-in-time view of the scheduler.
type SchedulerStatus struct {
	Running    bool                         `json:"running"`
	Interval   string                       `json:"interval"`
	LastRunAt  time.Time                    `json:"last_run_at,omitzero"`
	LastResult *commands.BillingCycleResult `json:"last_result,omitempty"`
	LastError  string                       `json:"last_error,omitempty"`
}

// Status returns the scheduler state and the outcome of the last run.
func (s *BillingScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return SchedulerStatus{
		Running:    running,
		Interval:   s.interval.String(),
		LastRunAt:  s.lastRunAt,
		LastResult: s.lastResult,
		LastError:  s.lastError,
	}
}
