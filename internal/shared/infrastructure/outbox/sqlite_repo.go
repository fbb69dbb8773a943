package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/persistence"
)

// SQLiteRepository implements Repository on SQLite for local mode.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	conn := persistence.SQLiteConn(ctx, r.db)
	for _, msg := range msgs {
		res, err := conn.ExecContext(ctx, `
			INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			msg.EventID.String(), msg.AggregateType, msg.AggregateID.String(), msg.RoutingKey,
			string(msg.Payload), string(msg.Metadata), persistence.FormatSQLiteTime(msg.CreatedAt),
		)
		if err != nil {
			return err
		}
		if msg.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := persistence.SQLiteConn(ctx, r.db).QueryContext(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload, metadata,
		       created_at, attempts, next_attempt_at, last_error
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY id
		LIMIT ?`, persistence.FormatSQLiteTime(time.Now()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			msg                        Message
			eventID, aggregateID       string
			payload, metadata, created string
			nextAttempt, lastError     sql.NullString
		)
		if err := rows.Scan(&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &msg.RoutingKey,
			&payload, &metadata, &created, &msg.RetryCount, &nextAttempt, &lastError); err != nil {
			return nil, err
		}
		if msg.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, err
		}
		if msg.AggregateID, err = uuid.Parse(aggregateID); err != nil {
			return nil, err
		}
		if msg.CreatedAt, err = persistence.ParseSQLiteTime(created); err != nil {
			return nil, err
		}
		if msg.NextRetryAt, err = persistence.ParseSQLiteNullTime(nextAttempt); err != nil {
			return nil, err
		}
		if lastError.Valid {
			msg.LastError = &lastError.String
		}
		msg.Payload = []byte(payload)
		msg.Metadata = []byte(metadata)
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := persistence.SQLiteConn(ctx, r.db).ExecContext(ctx,
		`UPDATE outbox SET published_at = ? WHERE id = ?`, persistence.FormatSQLiteTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := persistence.SQLiteConn(ctx, r.db).ExecContext(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = ?, next_attempt_at = ?
		WHERE id = ?`, errMsg, persistence.FormatSQLiteTime(nextRetryAt), id)
	return err
}

func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := persistence.SQLiteConn(ctx, r.db).ExecContext(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = ?, dead_lettered_at = ?
		WHERE id = ?`, reason, persistence.FormatSQLiteTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	res, err := persistence.SQLiteConn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		persistence.FormatSQLiteTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
