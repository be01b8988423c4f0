package token

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]Record)}
}

func (l *MemoryLedger) Create(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[rec.ID]; ok {
		return ErrRecordExists
	}
	l.records[rec.ID] = rec
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, id string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (l *MemoryLedger) Rotate(_ context.Context, oldID string, next Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	old, ok := l.records[oldID]
	if !ok || old.Subject != next.Subject || !old.ExpiresAt.After(next.CreatedAt) {
		return ErrRecordNotFound
	}
	if old.Revoked {
		return ErrRecordRevoked
	}
	if _, ok := l.records[next.ID]; ok {
		return ErrRecordExists
	}

	old.Revoked = true
	l.records[oldID] = old
	l.records[next.ID] = next
	return nil
}

func (l *MemoryLedger) Revoke(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return false, nil
	}
	rec.Revoked = true
	l.records[id] = rec
	return true, nil
}

func (l *MemoryLedger) RevokeFamily(_ context.Context, family string) (int, error) {
	return l.revokeWhere(func(r Record) bool { return r.Family == family }), nil
}

func (l *MemoryLedger) RevokeSubject(_ context.Context, subject string) (int, error) {
	return l.revokeWhere(func(r Record) bool { return r.Subject == subject }), nil
}

func (l *MemoryLedger) Sweep(_ context.Context, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, rec := range l.records {
		if !rec.ExpiresAt.After(now) {
			delete(l.records, id)
			n++
		}
	}
	return n, nil
}

func (l *MemoryLedger) revokeWhere(match func(Record) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, rec := range l.records {
		if !rec.Revoked && match(rec) {
			rec.Revoked = true
			l.records[id] = rec
			n++
		}
	}
	return n
}

var _ Ledger = (*MemoryLedger)(nil)
