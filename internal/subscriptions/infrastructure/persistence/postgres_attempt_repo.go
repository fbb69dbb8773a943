package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/persistence"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// PostgresAttemptRepository implements domain.AttemptRepository using PostgreSQL.
type PostgresAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAttemptRepository creates a new PostgreSQL billing ledger.
func NewPostgresAttemptRepository(pool *pgxpool.Pool) *PostgresAttemptRepository {
	return &PostgresAttemptRepository{pool: pool}
}

// Record appends one attempt to the ledger.
func (r *PostgresAttemptRepository) Record(ctx context.Context, a *domain.BillingAttempt) error {
	query := `
		INSERT INTO billing_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := persistence.Executor(ctx, r.pool).Exec(ctx, query,
		a.ID,
		a.SubscriptionID,
		a.UserID,
		a.AmountMinor,
		a.Currency,
		string(a.Status),
		a.Reference,
		a.TransactionID,
		a.Reason,
		domain.DateOf(a.DueDate),
		domain.DateOf(a.AsOf),
		a.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("record billing attempt: %w", err)
	}
	return nil
}

// ListBySubscription returns a subscription's attempts, newest first.
func (r *PostgresAttemptRepository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*domain.BillingAttempt, error) {
	return r.query(ctx, `
		SELECT `+attemptColumns+` FROM billing_attempts
		WHERE subscription_id = $1
		ORDER BY attempted_at DESC, id
		LIMIT $2`, subscriptionID, limit)
}

// ListFailed returns failed attempts made at or after since, newest first.
func (r *PostgresAttemptRepository) ListFailed(ctx context.Context, since time.Time, limit int) ([]*domain.BillingAttempt, error) {
	return r.query(ctx, `
		SELECT `+attemptColumns+` FROM billing_attempts
		WHERE status = 'failed' AND attempted_at >= $1
		ORDER BY attempted_at DESC, id
		LIMIT $2`, since, limit)
}

func (r *PostgresAttemptRepository) query(ctx context.Context, query string, args ...any) ([]*domain.BillingAttempt, error) {
	rows, err := persistence.Executor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.BillingAttempt
	for rows.Next() {
		var (
			a      domain.BillingAttempt
			status string
		)
		if err := rows.Scan(
			&a.ID, &a.SubscriptionID, &a.UserID, &a.AmountMinor, &a.Currency, &status,
			&a.Reference, &a.TransactionID, &a.Reason, &a.DueDate, &a.AsOf, &a.AttemptedAt,
		); err != nil {
			return nil, err
		}
		a.Status = domain.AttemptStatus(status)
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
