package sink

import (
	"context"
	"sort"
	"sync"
)

// MemorySink keeps objects in memory. It backs dry runs and tests.
type MemorySink struct {
	mu      sync.Mutex
	objects map[string][]byte
	// Calls records every operation as "op bucket/key", in order.
	Calls []string
}

// NewMemory returns an empty MemorySink.
func NewMemory() *MemorySink {
	return &MemorySink{objects: make(map[string][]byte)}
}

func (m *MemorySink) record(op, bucket, key string) string {
	id := bucket + "/" + key
	m.Calls = append(m.Calls, op+" "+id)
	return id
}

func (m *MemorySink) Exists(ctx context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[m.record("exists", bucket, key)]
	return ok, nil
}

func (m *MemorySink) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.record("delete", bucket, key)
	if _, ok := m.objects[id]; !ok {
		return ErrNotFound
	}
	delete(m.objects, id)
	return nil
}

func (m *MemorySink) WriteTable(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.record("write", bucket, key)
	if _, ok := m.objects[id]; ok {
		// writes never overwrite; Export must delete first
		return &overwriteError{id: id}
	}
	m.objects[id] = append([]byte(nil), data...)
	return nil
}

// Get returns the stored object for bucket/key.
func (m *MemorySink) Get(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket+"/"+key]
	return b, ok
}

// Keys lists stored objects as bucket/key, sorted.
func (m *MemorySink) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type overwriteError struct{ id string }

func (e *overwriteError) Error() string { return "object already exists: " + e.id }
