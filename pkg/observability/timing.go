package observability

import (
	"log/slog"
	"time"
)

// Timer measures an operation and reports it to a logger and metrics sink.
type Timer struct {
	operation string
	start     time.Time
	logger    *slog.Logger
	metrics   Metrics
	tags      []Tag
}

// StartTimer creates a new timer for the given operation.
func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

// WithLogger logs the duration when the timer stops.
func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

// WithMetrics records the duration under metric when the timer stops.
func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

// WithTags adds tags to the recorded timing.
func (t *Timer) WithTags(tags ...Tag) *Timer {
	t.tags = append(t.tags, tags...)
	return t
}

// Stop records the elapsed time under metric and returns it.
func (t *Timer) Stop(metric string, err error) time.Duration {
	duration := time.Since(t.start)

	if t.logger != nil {
		if err != nil {
			t.logger.Error("operation failed", "operation", t.operation, "duration_ms", duration.Milliseconds(), "error", err)
		} else {
			t.logger.Debug("operation completed", "operation", t.operation, "duration_ms", duration.Milliseconds())
		}
	}
	if t.metrics != nil {
		t.metrics.Timing(metric, duration, t.tags...)
	}
	return duration
}
