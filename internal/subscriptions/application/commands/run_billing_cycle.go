package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	sharedApplication "github.com/manish0301/subscription-pro/internal/shared/application"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/outbox"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
	"golang.org/x/sync/errgroup"
)

// Locker hands out short-lived exclusive leases. ok is false when another
// holder has the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// RunBillingCycleCommand bills every subscription due on or before AsOf.
type RunBillingCycleCommand struct {
	AsOf  time.Time
	Limit int // zero uses the configured batch limit
}

// BillingFailure describes one subscription the run could not bill.
type BillingFailure struct {
	SubscriptionID uuid.UUID        `json:"subscription_id"`
	Reason         string           `json:"reason"`
	Kind           domain.ErrorKind `json:"kind"`
}

// BillingCycleResult summarizes a run.
type BillingCycleResult struct {
	AsOf      string           `json:"as_of"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Failures  []BillingFailure `json:"failures"`
}

// BillingConfig tunes the billing run.
type BillingConfig struct {
	Concurrency int
	BatchLimit  int
	LockTTL     time.Duration
}

// RunBillingCycleHandler charges due subscriptions and advances their schedules.
type RunBillingCycleHandler struct {
	repo       domain.Repository
	attempts   domain.AttemptRepository
	gateway    domain.PaymentGateway
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locker     Locker
	config     BillingConfig
	logger     *slog.Logger
	metrics    observability.Metrics
}

// NewRunBillingCycleHandler creates a new RunBillingCycleHandler. locker may
// be nil, in which case the conditional update alone guards each advance.
func NewRunBillingCycleHandler(
	repo domain.Repository,
	attempts domain.AttemptRepository,
	gateway domain.PaymentGateway,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	locker Locker,
	config BillingConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) *RunBillingCycleHandler {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &RunBillingCycleHandler{
		repo:       repo,
		attempts:   attempts,
		gateway:    gateway,
		outboxRepo: outboxRepo,
		uow:        uow,
		locker:     locker,
		config:     config,
		logger:     logger,
		metrics:    metrics,
	}
}

type billingOutcome struct {
	succeeded bool
	failure   *BillingFailure
}

// Handle executes the RunBillingCycleCommand. Per-subscription failures are
// reported in the result; an error is returned only when the store itself
// fails, and then no result is produced.
func (h *RunBillingCycleHandler) Handle(ctx context.Context, cmd RunBillingCycleCommand) (*BillingCycleResult, error) {
	asOf := cmd.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOf = domain.DateOf(asOf)
	limit := cmd.Limit
	if limit <= 0 {
		limit = h.config.BatchLimit
	}

	timer := observability.StartTimer("billing.run").WithLogger(h.logger).WithMetrics(h.metrics)

	due, err := h.repo.FindDue(ctx, asOf, limit)
	if err != nil {
		err = unavailable(err)
		timer.Stop(observability.MetricBillingRunDuration, err)
		h.metrics.Counter(observability.MetricBillingRuns, 1, observability.T("outcome", "aborted"))
		return nil, err
	}
	h.metrics.Gauge(observability.MetricBillingDue, float64(len(due)))

	outcomes := make([]billingOutcome, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Concurrency)
	for i, sub := range due {
		g.Go(func() error {
			outcome, err := h.bill(gctx, sub, asOf)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		timer.Stop(observability.MetricBillingRunDuration, err)
		h.metrics.Counter(observability.MetricBillingRuns, 1, observability.T("outcome", "aborted"))
		h.logger.ErrorContext(ctx, "billing cycle aborted", "as_of", asOf.Format(domain.DateLayout), "error", err)
		return nil, err
	}

	result := &BillingCycleResult{
		AsOf:     asOf.Format(domain.DateLayout),
		Total:    len(due),
		Failures: []BillingFailure{},
	}
	for _, o := range outcomes {
		if o.succeeded {
			result.Succeeded++
			continue
		}
		result.Failed++
		if o.failure != nil {
			result.Failures = append(result.Failures, *o.failure)
		}
	}

	timer.Stop(observability.MetricBillingRunDuration, nil)
	h.metrics.Counter(observability.MetricBillingRuns, 1, observability.T("outcome", "completed"))
	h.logger.InfoContext(ctx, "billing cycle completed",
		"as_of", result.AsOf,
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

// bill processes a single subscription. Only infrastructure failures of the
// subscription store are returned as errors.
func (h *RunBillingCycleHandler) bill(ctx context.Context, sub *domain.Subscription, asOf time.Time) (billingOutcome, error) {
	if err := ctx.Err(); err != nil {
		return billingOutcome{}, err
	}

	req := domain.NewChargeRequest(sub)
	dueDate := sub.NextDeliveryDate()

	if !sub.IsDue(asOf) {
		return h.reject(ctx, req, dueDate, asOf, domain.AttemptConflict, domain.ErrNotDue), nil
	}

	if h.locker != nil {
		unlock, ok, err := h.locker.TryLock(ctx, "billing:"+sub.ID().String(), h.config.LockTTL)
		switch {
		case err != nil:
			h.logger.WarnContext(ctx, "billing lease unavailable, relying on conditional update",
				"subscription_id", sub.ID(), "error", err)
		case !ok:
			h.metrics.Counter(observability.MetricLockContended, 1)
			return h.reject(ctx, req, dueDate, asOf, domain.AttemptConflict, domain.ErrBillingInProgress), nil
		default:
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					h.logger.WarnContext(ctx, "failed to release billing lease", "subscription_id", sub.ID(), "error", err)
				}
			}()
		}
	}

	// The due list may predate a run that finished while this one waited for
	// the lease. Only the stored state decides whether this cycle is unbilled.
	fresh, err := h.repo.FindByID(ctx, sub.ID())
	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		return h.reject(ctx, req, dueDate, asOf, domain.AttemptConflict, domain.ErrConcurrentUpdate), nil
	case err != nil:
		return billingOutcome{}, unavailable(err)
	}
	if !fresh.Precondition().Equal(sub.Precondition()) || !fresh.IsDue(asOf) {
		return h.reject(ctx, req, dueDate, asOf, domain.AttemptConflict, domain.ErrConcurrentUpdate), nil
	}
	sub = fresh
	req = domain.NewChargeRequest(sub)
	expected := sub.Precondition()

	start := time.Now()
	charge, chargeErr := h.gateway.Charge(ctx, req)
	h.metrics.Timing(observability.MetricBillingChargeLatency, time.Since(start))

	if chargeErr != nil {
		return h.chargeFailed(ctx, sub, req, dueDate, asOf, domain.GatewayFailure(chargeErr)), nil
	}

	if err := sub.RecordDelivery(asOf, charge, sub.Price()); err != nil {
		return h.reject(ctx, req, dueDate, asOf, domain.AttemptConflict, err), nil
	}

	var updated bool
	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		var err error
		updated, err = h.repo.ConditionalUpdate(txCtx, sub, expected)
		if err != nil || !updated {
			return err
		}
		return saveEvents(txCtx, h.outboxRepo, sub, sub.UserID())
	})
	if err != nil {
		return billingOutcome{}, unavailable(err)
	}
	if !updated {
		// Changed between the re-read and the write, e.g. paused by the
		// customer or billed by a run whose lease had expired.
		return h.reject(ctx, req, dueDate, asOf, domain.AttemptConflict, domain.ErrConcurrentUpdate), nil
	}

	attempt := domain.NewBillingAttempt(req, dueDate, asOf, domain.AttemptSucceeded)
	attempt.TransactionID = charge.TransactionID
	h.record(ctx, attempt)
	h.metrics.Counter(observability.MetricBillingCharges, 1, observability.T("status", string(domain.AttemptSucceeded)))
	h.logger.InfoContext(ctx, "subscription renewed",
		"subscription_id", sub.ID(),
		"billed_date", dueDate.Format(domain.DateLayout),
		"next_delivery_date", sub.NextDeliveryDate().Format(domain.DateLayout),
		"transaction_id", charge.TransactionID,
	)
	return billingOutcome{succeeded: true}, nil
}

// chargeFailed leaves the schedule untouched so the next run retries, and
// queues a BillingFailed event for dunning.
func (h *RunBillingCycleHandler) chargeFailed(ctx context.Context, sub *domain.Subscription, req domain.ChargeRequest, dueDate, asOf time.Time, cause error) billingOutcome {
	sub.PullDomainEvents()
	sub.RecordBillingFailure(req.Reference, cause.Error(), asOf)
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		return saveEvents(txCtx, h.outboxRepo, sub, sub.UserID())
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to queue billing failure event", "subscription_id", sub.ID(), "error", err)
	}
	return h.reject(ctx, req, dueDate, asOf, domain.AttemptFailed, cause)
}

func (h *RunBillingCycleHandler) reject(ctx context.Context, req domain.ChargeRequest, dueDate, asOf time.Time, status domain.AttemptStatus, cause error) billingOutcome {
	attempt := domain.NewBillingAttempt(req, dueDate, asOf, status)
	attempt.Reason = cause.Error()
	h.record(ctx, attempt)

	h.metrics.Counter(observability.MetricBillingCharges, 1, observability.T("status", string(status)))
	h.logger.WarnContext(ctx, "subscription not billed",
		"subscription_id", req.SubscriptionID,
		"reference", req.Reference,
		"kind", domain.KindOf(cause),
		"reason", cause.Error(),
	)
	return billingOutcome{failure: &BillingFailure{
		SubscriptionID: req.SubscriptionID,
		Reason:         cause.Error(),
		Kind:           domain.KindOf(cause),
	}}
}

// record writes a ledger row. A failed write is logged and does not affect
// the run.
func (h *RunBillingCycleHandler) record(ctx context.Context, attempt *domain.BillingAttempt) {
	if h.attempts == nil {
		return
	}
	if err := h.attempts.Record(context.WithoutCancel(ctx), attempt); err != nil {
		h.logger.ErrorContext(ctx, "failed to record billing attempt",
			"subscription_id", attempt.SubscriptionID,
			"status", attempt.Status,
			"error", err,
		)
	}
}

func unavailable(err error) error {
	if domain.KindOf(err) == domain.KindUnavailable || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.Unavailable(err)
}
