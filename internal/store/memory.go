package store

import (
	"container/list"
	"context"
	"sync"

	"consult-platform/pkg/logger"
)

// Memory is the bounded in-memory reference backend. When a write would push
// the total payload size past the cap, the oldest-written keys are evicted
// first, mirroring a best-effort client-side store. A value larger than the
// cap itself is rejected with ErrCapacityExceeded.
type Memory struct {
	mu       sync.Mutex
	capacity int
	used     int
	values   map[string][]byte
	order    *list.List               // oldest write first
	elems    map[string]*list.Element // key → order element
}

const DefaultMemoryCapacity = 4 << 20

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{
		capacity: capacity,
		values:   make(map[string][]byte),
		order:    list.New(),
		elems:    make(map[string]*list.Element),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	if len(value) > m.capacity {
		return ErrCapacityExceeded
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(key)
	for m.used+len(value) > m.capacity {
		oldest := m.order.Front()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(string)
		m.removeLocked(evicted)
		logger.Warnf("store: evicted %q to make room", evicted)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.values[key] = stored
	m.elems[key] = m.order.PushBack(key)
	m.used += len(stored)
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	return nil
}

func (m *Memory) removeLocked(key string) {
	v, ok := m.values[key]
	if !ok {
		return
	}
	m.used -= len(v)
	delete(m.values, key)
	m.order.Remove(m.elems[key])
	delete(m.elems, key)
}
