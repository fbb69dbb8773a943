package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker holds leases in process memory. It serves local mode,
// where a single process runs the scheduler.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	seq    uint64
	now    func() time.Time
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewMemoryLocker creates a new MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]lease), now: time.Now}
}

// TryLock acquires key for ttl without blocking.
func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return nil, false, nil
	}

	l.seq++
	token := l.seq
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}

	unlock := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.leases[key]; ok && held.token == token {
			delete(l.leases, key)
		}
		return nil
	}
	return unlock, true, nil
}
