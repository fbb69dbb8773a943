package outbox

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository persists outbox messages. SaveBatch joins the transaction in
// ctx, so events commit or roll back with the aggregate change.
type Repository interface {
	SaveBatch(ctx context.Context, msgs []*Message) error
	// GetUnpublished returns messages that are neither published nor
	// dead-lettered and whose retry time has passed, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string) error
	// DeleteOld removes published messages older than the cutoff.
	DeleteOld(ctx context.Context, before time.Time) (int64, error)
}

// InMemoryRepository is a Repository for tests and dry runs.
type InMemoryRepository struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]*Message
}

// NewInMemoryRepository creates an empty in-memory outbox.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{messages: make(map[int64]*Message)}
}

func (r *InMemoryRepository) SaveBatch(_ context.Context, msgs []*Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.nextID++
		msg.ID = r.nextID
		stored := *msg
		r.messages[msg.ID] = &stored
	}
	return nil
}

func (r *InMemoryRepository) GetUnpublished(_ context.Context, limit int) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var out []*Message
	for _, msg := range r.messages {
		if msg.PublishedAt != nil || msg.DeadLetteredAt != nil {
			continue
		}
		if msg.NextRetryAt != nil && msg.NextRetryAt.After(now) {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) MarkPublished(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.messages[id]; ok {
		now := time.Now()
		msg.PublishedAt = &now
	}
	return nil
}

func (r *InMemoryRepository) MarkFailed(_ context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.messages[id]; ok {
		msg.RetryCount++
		msg.LastError = &errMsg
		msg.NextRetryAt = &nextRetryAt
	}
	return nil
}

func (r *InMemoryRepository) MarkDead(_ context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.messages[id]; ok {
		now := time.Now()
		msg.RetryCount++
		msg.LastError = &reason
		msg.DeadLetteredAt = &now
	}
	return nil
}

func (r *InMemoryRepository) DeleteOld(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, msg := range r.messages {
		if msg.PublishedAt != nil && msg.PublishedAt.Before(before) {
			delete(r.messages, id)
			n++
		}
	}
	return n, nil
}

// All returns a copy of every stored message ordered by id.
func (r *InMemoryRepository) All() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Message, 0, len(r.messages))
	for _, msg := range r.messages {
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
