package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps documents in process memory. It backs the "memory"
// storage driver and tests.
type MemoryBackend struct {
	mu   sync.Mutex
	docs map[string]memoryDoc
}

type memoryDoc struct {
	data    []byte
	version int64
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]memoryDoc)}
}

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context, name string) ([]byte, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[name]
	if !ok {
		return nil, 0, nil
	}
	return append([]byte(nil), d.data...), d.version, nil
}

// Save implements Backend.
func (m *MemoryBackend) Save(_ context.Context, name string, data []byte, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[name].version != expectedVersion {
		return 0, ErrConflict
	}
	next := expectedVersion + 1
	m.docs[name] = memoryDoc{data: append([]byte(nil), data...), version: next}
	return next, nil
}
