package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/persistence"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// SQLiteSubscriptionRepository implements domain.Repository using SQLite.
// Dates are stored as YYYY-MM-DD text so they compare lexically.
type SQLiteSubscriptionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSubscriptionRepository creates a new SQLite subscription repository.
func NewSQLiteSubscriptionRepository(db *sql.DB) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{db: db, logger: slog.Default()}
}

// WithLogger sets the logger used to report skipped rows.
func (r *SQLiteSubscriptionRepository) WithLogger(logger *slog.Logger) *SQLiteSubscriptionRepository {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Save inserts a new subscription.
func (r *SQLiteSubscriptionRepository) Save(ctx context.Context, s *domain.Subscription) error {
	_, err := persistence.SQLiteConn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID().String(),
		s.UserID().String(),
		s.ProductID().String(),
		string(s.Status()),
		string(s.Frequency()),
		domain.FormatWeekdays(s.Schedule().Weekdays()),
		s.Quantity(),
		s.Price().Amount().String(),
		s.Price().Currency(),
		formatDate(s.StartDate()),
		formatDate(s.NextDeliveryDate()),
		formatNullDate(s.EndDate()),
		s.DeliveryCount(),
		formatNullDate(s.LastDeliveryDate()),
		persistence.FormatSQLiteTime(s.CreatedAt()),
		persistence.FormatSQLiteTime(s.UpdatedAt()),
	)
	if err != nil {
		return domain.Unavailable(fmt.Errorf("insert subscription: %w", err))
	}
	return nil
}

// FindByID retrieves a subscription by its ID.
func (r *SQLiteSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row := persistence.SQLiteConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id.String())

	sub, err := scanSQLiteSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	return sub, nil
}

// FindByUserID lists a user's subscriptions, oldest first.
func (r *SQLiteSubscriptionRepository) FindByUserID(ctx context.Context, userID uuid.UUID, status *domain.Status) ([]*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ?`
	args := []any{userID.String()}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at, id`

	return r.query(ctx, false, query, args...)
}

// FindDue lists active subscriptions due on or before asOf, earliest first.
func (r *SQLiteSubscriptionRepository) FindDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.Subscription, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE status = 'active' AND next_delivery_date <= ?
		ORDER BY next_delivery_date, id`)
	args := []any{formatDate(asOf)}
	if limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	return r.query(ctx, true, b.String(), args...)
}

// ConditionalUpdate writes s when the stored status and next delivery date
// still match expected.
func (r *SQLiteSubscriptionRepository) ConditionalUpdate(ctx context.Context, s *domain.Subscription, expected domain.Precondition) (bool, error) {
	res, err := persistence.SQLiteConn(ctx, r.db).ExecContext(ctx, `
		UPDATE subscriptions SET
			status = ?,
			frequency = ?,
			weekdays = ?,
			next_delivery_date = ?,
			delivery_count = ?,
			last_delivery_date = ?,
			updated_at = ?
		WHERE id = ? AND status = ? AND next_delivery_date = ?`,
		string(s.Status()),
		string(s.Frequency()),
		domain.FormatWeekdays(s.Schedule().Weekdays()),
		formatDate(s.NextDeliveryDate()),
		s.DeliveryCount(),
		formatNullDate(s.LastDeliveryDate()),
		persistence.FormatSQLiteTime(s.UpdatedAt()),
		s.ID().String(),
		string(expected.Status),
		formatDate(expected.NextDeliveryDate),
	)
	if err != nil {
		return false, domain.Unavailable(fmt.Errorf("update subscription: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Unavailable(err)
	}
	return n == 1, nil
}

// query reads subscriptions. When lenient, rows that fail to decode are
// logged and left out instead of failing the read.
func (r *SQLiteSubscriptionRepository) query(ctx context.Context, lenient bool, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := persistence.SQLiteConn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Unavailable(err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSQLiteSubscription(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSubscription(row rowScanner) (*domain.Subscription, error) {
	var (
		rec                   subscriptionRecord
		id, userID, productID string
		startDate, nextDate   string
		endDate, lastDate     sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(
		&id, &userID, &productID, &rec.Status, &rec.Frequency, &rec.Weekdays, &rec.Quantity,
		&rec.Amount, &rec.Currency, &startDate, &nextDate, &endDate,
		&rec.DeliveryCount, &lastDate, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, corruptRow(id, err)
	}
	if rec.UserID, err = uuid.Parse(userID); err != nil {
		return nil, corruptRow(id, err)
	}
	if rec.ProductID, err = uuid.Parse(productID); err != nil {
		return nil, corruptRow(id, err)
	}
	if rec.StartDate, err = domain.ParseDate(startDate); err != nil {
		return nil, corruptRow(id, err)
	}
	if rec.NextDeliveryDate, err = domain.ParseDate(nextDate); err != nil {
		return nil, corruptRow(id, err)
	}
	if rec.EndDate, err = parseNullDate(endDate); err != nil {
		return nil, corruptRow(id, err)
	}
	if rec.LastDeliveryDate, err = parseNullDate(lastDate); err != nil {
		return nil, corruptRow(id, err)
	}
	if rec.CreatedAt, err = persistence.ParseSQLiteTime(createdAt); err != nil {
		return nil, corruptRow(id, err)
	}
	if rec.UpdatedAt, err = persistence.ParseSQLiteTime(updatedAt); err != nil {
		return nil, corruptRow(id, err)
	}
	return rec.toDomain()
}

func formatDate(t time.Time) string {
	return domain.DateOf(t).Format(domain.DateLayout)
}

func formatNullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
