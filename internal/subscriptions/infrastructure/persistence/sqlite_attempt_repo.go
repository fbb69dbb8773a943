package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/persistence"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

const attemptColumns = `id, subscription_id, user_id, amount_minor, currency, status,
	reference, transaction_id, reason, due_date, as_of, attempted_at`

// SQLiteAttemptRepository implements domain.AttemptRepository using SQLite.
type SQLiteAttemptRepository struct {
	db *sql.DB
}

// NewSQLiteAttemptRepository creates a new SQLite billing ledger.
func NewSQLiteAttemptRepository(db *sql.DB) *SQLiteAttemptRepository {
	return &SQLiteAttemptRepository{db: db}
}

// Record appends one attempt to the ledger.
func (r *SQLiteAttemptRepository) Record(ctx context.Context, a *domain.BillingAttempt) error {
	_, err := persistence.SQLiteConn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO billing_attempts (`+attemptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(),
		a.SubscriptionID.String(),
		a.UserID.String(),
		a.AmountMinor,
		a.Currency,
		string(a.Status),
		a.Reference,
		a.TransactionID,
		a.Reason,
		formatDate(a.DueDate),
		formatDate(a.AsOf),
		persistence.FormatSQLiteTime(a.AttemptedAt),
	)
	if err != nil {
		return fmt.Errorf("record billing attempt: %w", err)
	}
	return nil
}

// ListBySubscription returns a subscription's attempts, newest first.
func (r *SQLiteAttemptRepository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*domain.BillingAttempt, error) {
	return r.query(ctx, `
		SELECT `+attemptColumns+` FROM billing_attempts
		WHERE subscription_id = ?
		ORDER BY attempted_at DESC, id
		LIMIT ?`, subscriptionID.String(), limit)
}

// ListFailed returns failed attempts made at or after since, newest first.
func (r *SQLiteAttemptRepository) ListFailed(ctx context.Context, since time.Time, limit int) ([]*domain.BillingAttempt, error) {
	return r.query(ctx, `
		SELECT `+attemptColumns+` FROM billing_attempts
		WHERE status = 'failed' AND attempted_at >= ?
		ORDER BY attempted_at DESC, id
		LIMIT ?`, persistence.FormatSQLiteTime(since), limit)
}

func (r *SQLiteAttemptRepository) query(ctx context.Context, query string, args ...any) ([]*domain.BillingAttempt, error) {
	rows, err := persistence.SQLiteConn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.BillingAttempt
	for rows.Next() {
		var (
			a                        domain.BillingAttempt
			id, subID, userID        string
			status                   string
			dueDate, asOf, attempted string
		)
		if err := rows.Scan(
			&id, &subID, &userID, &a.AmountMinor, &a.Currency, &status,
			&a.Reference, &a.TransactionID, &a.Reason, &dueDate, &asOf, &attempted,
		); err != nil {
			return nil, err
		}
		a.Status = domain.AttemptStatus(status)
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if a.SubscriptionID, err = uuid.Parse(subID); err != nil {
			return nil, err
		}
		if a.UserID, err = uuid.Parse(userID); err != nil {
			return nil, err
		}
		if a.DueDate, err = domain.ParseDate(dueDate); err != nil {
			return nil, err
		}
		if a.AsOf, err = domain.ParseDate(asOf); err != nil {
			return nil, err
		}
		if a.AttemptedAt, err = persistence.ParseSQLiteTime(attempted); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
