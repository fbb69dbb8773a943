package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/persistence"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// postgresSubscriptionSelect reads the price as text so decimal precision
// survives the round trip.
const postgresSubscriptionSelect = `SELECT id, user_id, product_id, status, frequency, weekdays, quantity,
	price_amount::text, price_currency, start_date, next_delivery_date, end_date,
	delivery_count, last_delivery_date, created_at, updated_at
	FROM subscriptions`

// PostgresSubscriptionRepository implements domain.Repository using PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresSubscriptionRepository creates a new PostgreSQL subscription repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool, logger: slog.Default()}
}

// WithLogger sets the logger used to report skipped rows.
func (r *PostgresSubscriptionRepository) WithLogger(logger *slog.Logger) *PostgresSubscriptionRepository {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Save inserts a new subscription.
func (r *PostgresSubscriptionRepository) Save(ctx context.Context, s *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := persistence.Executor(ctx, r.pool).Exec(ctx, query,
		s.ID(),
		s.UserID(),
		s.ProductID(),
		string(s.Status()),
		string(s.Frequency()),
		domain.FormatWeekdays(s.Schedule().Weekdays()),
		s.Quantity(),
		s.Price().Amount().String(),
		s.Price().Currency(),
		s.StartDate(),
		s.NextDeliveryDate(),
		s.EndDate(),
		s.DeliveryCount(),
		s.LastDeliveryDate(),
		s.CreatedAt(),
		s.UpdatedAt(),
	)
	if err != nil {
		return domain.Unavailable(fmt.Errorf("insert subscription: %w", err))
	}
	return nil
}

// FindByID retrieves a subscription by its ID.
func (r *PostgresSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row := persistence.Executor(ctx, r.pool).QueryRow(ctx, postgresSubscriptionSelect+` WHERE id = $1`, id)

	sub, err := scanPostgresSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return sub, nil
}

// FindByUserID lists a user's subscriptions, oldest first.
func (r *PostgresSubscriptionRepository) FindByUserID(ctx context.Context, userID uuid.UUID, status *domain.Status) ([]*domain.Subscription, error) {
	if status != nil {
		return r.query(ctx, false, postgresSubscriptionSelect+`
			WHERE user_id = $1 AND status = $2
			ORDER BY created_at, id`, userID, string(*status))
	}
	return r.query(ctx, false, postgresSubscriptionSelect+`
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
}

// FindDue lists active subscriptions due on or before asOf, earliest first.
func (r *PostgresSubscriptionRepository) FindDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.Subscription, error) {
	if limit > 0 {
		return r.query(ctx, true, postgresSubscriptionSelect+`
			WHERE status = 'active' AND next_delivery_date <= $1
			ORDER BY next_delivery_date, id
			LIMIT $2`, domain.DateOf(asOf), limit)
	}
	return r.query(ctx, true, postgresSubscriptionSelect+`
		WHERE status = 'active' AND next_delivery_date <= $1
		ORDER BY next_delivery_date, id`, domain.DateOf(asOf))
}

// ConditionalUpdate writes s when the stored status and next delivery date
// still match expected.
func (r *PostgresSubscriptionRepository) ConditionalUpdate(ctx context.Context, s *domain.Subscription, expected domain.Precondition) (bool, error) {
	query := `
		UPDATE subscriptions SET
			status = $2,
			frequency = $3,
			weekdays = $4,
			next_delivery_date = $5,
			delivery_count = $6,
			last_delivery_date = $7,
			updated_at = $8
		WHERE id = $1 AND status = $9 AND next_delivery_date = $10
	`
	tag, err := persistence.Executor(ctx, r.pool).Exec(ctx, query,
		s.ID(),
		string(s.Status()),
		string(s.Frequency()),
		domain.FormatWeekdays(s.Schedule().Weekdays()),
		s.NextDeliveryDate(),
		s.DeliveryCount(),
		s.LastDeliveryDate(),
		s.UpdatedAt(),
		string(expected.Status),
		domain.DateOf(expected.NextDeliveryDate),
	)
	if err != nil {
		return false, domain.Unavailable(fmt.Errorf("update subscription: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

// query reads subscriptions. When lenient, rows that fail to decode are
// logged and left out instead of failing the read.
func (r *PostgresSubscriptionRepository) query(ctx context.Context, lenient bool, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := persistence.Executor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanPostgresSubscription(rows)
		if err != nil {
			if lenient && skipCorrupt(ctx, r.logger, err) {
				continue
			}
			return nil, domain.Unavailable(err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(err)
	}
	return subs, nil
}

func scanPostgresSubscription(row pgx.Row) (*domain.Subscription, error) {
	var rec subscriptionRecord
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.ProductID, &rec.Status, &rec.Frequency, &rec.Weekdays, &rec.Quantity,
		&rec.Amount, &rec.Currency, &rec.StartDate, &rec.NextDeliveryDate, &rec.EndDate,
		&rec.DeliveryCount, &rec.LastDeliveryDate, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}
