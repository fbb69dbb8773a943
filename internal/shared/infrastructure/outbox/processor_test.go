package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, routingKey)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func seed(t *testing.T, repo *InMemoryRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		msg, err := NewMessage(newPausedEvent(uuid.New()))
		require.NoError(t, err)
		require.NoError(t, repo.SaveBatch(context.Background(), []*Message{msg}))
	}
}

func TestProcessor_ProcessOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and marks pending messages", func(t *testing.T) {
		repo := NewInMemoryRepository()
		seed(t, repo, 3)
		pub := &fakePublisher{}
		metrics := observability.NewInMemoryMetrics()

		p := NewProcessor(repo, pub, DefaultProcessorConfig(), nil, metrics)
		require.NoError(t, p.ProcessOnce(ctx))

		assert.Equal(t, 3, pub.count())
		for _, msg := range repo.All() {
			assert.True(t, msg.IsPublished())
		}
		assert.Equal(t, uint64(3), p.GetStats().PublishedCount)
		assert.Equal(t, int64(3), metrics.GetCounter(observability.MetricOutboxPublished,
			observability.T("routing_key", "subscriptions.subscription.paused")))

		// nothing left to relay
		require.NoError(t, p.ProcessOnce(ctx))
		assert.Equal(t, 3, pub.count())
	})

	t.Run("failed publish schedules a retry", func(t *testing.T) {
		repo := NewInMemoryRepository()
		seed(t, repo, 1)
		pub := &fakePublisher{err: errors.New("broker down")}

		p := NewProcessor(repo, pub, DefaultProcessorConfig(), nil, nil)
		require.NoError(t, p.ProcessOnce(ctx))

		msg := repo.All()[0]
		assert.False(t, msg.IsPublished())
		assert.Equal(t, 1, msg.RetryCount)
		require.NotNil(t, msg.NextRetryAt)
		assert.True(t, msg.NextRetryAt.After(time.Now()))
		assert.Equal(t, "broker down", p.GetStats().LastError)

		// still backing off
		pending, err := repo.GetUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("dead-letters after max retries", func(t *testing.T) {
		repo := NewInMemoryRepository()
		seed(t, repo, 1)
		pub := &fakePublisher{err: errors.New("broker down")}
		cfg := DefaultProcessorConfig()
		cfg.MaxRetries = 1

		p := NewProcessor(repo, pub, cfg, nil, nil)
		require.NoError(t, p.ProcessOnce(ctx))

		msg := repo.All()[0]
		assert.NotNil(t, msg.DeadLetteredAt)
		assert.Equal(t, uint64(1), p.GetStats().DeadCount)
	})
}

func TestProcessor_RetryBackoff(t *testing.T) {
	p := NewProcessor(NewInMemoryRepository(), &fakePublisher{}, ProcessorConfig{
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  10 * time.Second,
	}, nil, nil)

	assert.Equal(t, time.Second, p.retryBackoff(1))
	assert.Equal(t, 2*time.Second, p.retryBackoff(2))
	assert.Equal(t, 8*time.Second, p.retryBackoff(4))
	assert.Equal(t, 10*time.Second, p.retryBackoff(5))
	assert.Equal(t, 10*time.Second, p.retryBackoff(60))
}

func TestProcessor_StartStop(t *testing.T) {
	repo := NewInMemoryRepository()
	seed(t, repo, 2)
	pub := &fakePublisher{}
	cfg := DefaultProcessorConfig()
	cfg.PollInterval = 5 * time.Millisecond

	p := NewProcessor(repo, pub, cfg, nil, nil)
	p.Start(context.Background())
	p.Start(context.Background())
	assert.True(t, p.IsRunning())

	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()
	assert.False(t, p.IsRunning())
}

func TestProcessor_Cleanup(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	seed(t, repo, 2)
	p := NewProcessor(repo, &fakePublisher{}, DefaultProcessorConfig(), nil, nil)
	require.NoError(t, p.ProcessOnce(ctx))

	deleted, err := p.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = p.Cleanup(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Empty(t, repo.All())
}
