// ABOUTME: In-memory KV implementation for tests and database-less runs
// ABOUTME: Mutex-guarded map keyed by scope, value copied on load and save

package store

import (
	"context"
	"sync"
)

// MemoryKV implements KV with an in-process map. It satisfies the same
// contract as SQLiteKV and is the test double for everything above it.
type MemoryKV struct {
	mu     sync.RWMutex
	scopes map[string][]byte
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{scopes: make(map[string][]byte)}
}

func (m *MemoryKV) Load(_ context.Context, scope string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.scopes[scope]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *MemoryKV) Save(_ context.Context, scope string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes[scope] = stored
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scopes, scope)
	return nil
}

func (m *MemoryKV) Close() error {
	return nil
}
