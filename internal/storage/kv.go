package storage

import (
	"context"
	"sync"
)

// Collection keys. They match the keys the browser version kept in
// localStorage, so backups stay interchangeable.
const (
	KeyTransactions = "spese_v3_data"
	KeyAccounts     = "spese_v3_accounts"
	KeyRecurring    = "spese_v3_recurring"
)

// Txn reads and writes documents addressed by key.
type Txn interface {
	// Get returns the document stored under key. found is false when the key
	// was never written.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	// PutAll writes every entry or none of them.
	PutAll(ctx context.Context, entries map[string][]byte) error
}

// KV is the persistence collaborator: JSON documents addressed by key.
type KV interface {
	Txn
	// Atomic runs fn inside one write transaction that excludes every other
	// writer of the same store, including other processes. Writes made through
	// the Txn are committed only if fn returns nil.
	Atomic(ctx context.Context, fn func(Txn) error) error
	Close() error
}

// MemoryKV keeps documents in process memory.
type MemoryKV struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{docs: map[string][]byte{}}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *MemoryKV) PutAll(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.docs[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *MemoryKV) Atomic(_ context.Context, fn func(Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn := &memoryTxn{docs: m.docs, staged: map[string][]byte{}}
	if err := fn(txn); err != nil {
		return err
	}
	for k, v := range txn.staged {
		m.docs[k] = v
	}
	return nil
}

func (m *MemoryKV) Close() error { return nil }

// memoryTxn stages writes until the surrounding Atomic call succeeds. The
// owning MemoryKV lock is held for its whole life.
type memoryTxn struct {
	docs   map[string][]byte
	staged map[string][]byte
}

func (t *memoryTxn) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := t.staged[key]
	if !ok {
		data, ok = t.docs[key]
	}
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (t *memoryTxn) PutAll(_ context.Context, entries map[string][]byte) error {
	for k, v := range entries {
		t.staged[k] = append([]byte(nil), v...)
	}
	return nil
}
