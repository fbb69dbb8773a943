package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/persistence"
)

const pgMessageColumns = `id, event_id, aggregate_type, aggregate_id, routing_key, payload, metadata,
	created_at, published_at, attempts, next_attempt_at, last_error, dead_lettered_at`

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL outbox repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SaveBatch inserts msgs in one round trip and assigns their ids.
func (r *PostgresRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, msg := range msgs {
		batch.Queue(`
			INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			msg.EventID, msg.AggregateType, msg.AggregateID, msg.RoutingKey,
			msg.Payload, msg.Metadata, msg.CreatedAt,
		)
	}

	results := persistence.Executor(ctx, r.pool).SendBatch(ctx, batch)
	defer results.Close()

	for _, msg := range msgs {
		if err := results.QueryRow().Scan(&msg.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := persistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT `+pgMessageColumns+`
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.ID, &msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.RoutingKey,
			&msg.Payload, &msg.Metadata, &msg.CreatedAt, &msg.PublishedAt, &msg.RetryCount,
			&msg.NextRetryAt, &msg.LastError, &msg.DeadLetteredAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := persistence.Executor(ctx, r.pool).Exec(ctx,
		`UPDATE outbox SET published_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := persistence.Executor(ctx, r.pool).Exec(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1`, id, errMsg, nextRetryAt)
	return err
}

func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := persistence.Executor(ctx, r.pool).Exec(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = $2, dead_lettered_at = NOW()
		WHERE id = $1`, id, reason)
	return err
}

func (r *PostgresRepository) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	tag, err := persistence.Executor(ctx, r.pool).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
