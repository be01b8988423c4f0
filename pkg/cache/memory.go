package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	expiresAt time.Time // zero = never expires
	value     V
}

func (e memoryEntry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process cache guarded by a single mutex.
// Expired entries are invisible to readers and removed by a background
// janitor, so the map stays bounded by the live key set.
type Memory[V any] struct {
	items  map[string]memoryEntry[V]
	opts   *memoryOptions
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewMemory creates a new in-memory cache.
//
//	c := cache.NewMemory[state.Record](
//	    cache.WithDefaultTTL(10 * time.Minute),
//	    cache.WithCleanupInterval(time.Minute),
//	)
//	defer c.Close()
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	o := &memoryOptions{
		defaultTTL:      time.Hour,
		cleanupInterval: time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory[V]{
		items: make(map[string]memoryEntry[V]),
		opts:  o,
		done:  make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go m.janitor()
	}

	return m
}

// Get retrieves a value by key.
func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	if m.closed {
		return zero, ErrClosed
	}

	e, ok := m.lookup(key)
	if !ok {
		return zero, ErrNotFound
	}
	return e.value, nil
}

// Set stores a value with the given TTL.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.items[key] = m.newEntry(value, ttl)
	return nil
}

// Add stores a value only if key holds no live entry.
func (m *Memory[V]) Add(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.lookup(key); ok {
		return ErrExists
	}

	m.items[key] = m.newEntry(value, ttl)
	return nil
}

// Take returns the live value under key and deletes it.
func (m *Memory[V]) Take(_ context.Context, key string) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	if m.closed {
		return zero, ErrClosed
	}

	e, ok := m.lookup(key)
	if !ok {
		return zero, ErrNotFound
	}
	delete(m.items, key)
	return e.value, nil
}

// Delete removes a key from the cache.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	delete(m.items, key)
	return nil
}

// Has checks whether a key exists and has not expired.
func (m *Memory[V]) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}

	_, ok := m.lookup(key)
	return ok, nil
}

// Len returns the number of stored entries, including expired ones the
// janitor has not collected yet.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops the janitor. Close is idempotent.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)
	m.items = nil

	return nil
}

// lookup returns the live entry for key, dropping it if expired.
// Caller must hold the mutex.
func (m *Memory[V]) lookup(key string) (memoryEntry[V], bool) {
	e, ok := m.items[key]
	if !ok {
		return e, false
	}
	if e.expired(m.opts.now()) {
		delete(m.items, key)
		return e, false
	}
	return e, true
}

func (m *Memory[V]) newEntry(value V, ttl time.Duration) memoryEntry[V] {
	if ttl == 0 {
		ttl = m.opts.defaultTTL
	}
	e := memoryEntry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = m.opts.now().Add(ttl)
	}
	return e
}

func (m *Memory[V]) janitor() {
	ticker := time.NewTicker(m.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.deleteExpired()
		}
	}
}

func (m *Memory[V]) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.now()
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
		}
	}
}

// MemoryOption configures the in-memory cache.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	now             func() time.Time
	defaultTTL      time.Duration
	cleanupInterval time.Duration
}

// WithDefaultTTL sets the expiration used when a zero TTL is passed.
// Default: 1 hour.
func WithDefaultTTL(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.defaultTTL = d
	}
}

// WithCleanupInterval sets how often the janitor removes expired entries.
// Zero disables the janitor. Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.cleanupInterval = d
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

var _ Atomic[any] = (*Memory[any])(nil)
