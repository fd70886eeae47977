package index

import (
	"context"
	"sort"
	"sync"
)

// entry pairs a record with the log offset it was indexed at, so List
// can return items ordered ascending by offset even though callers add
// them via Put in arbitrary order (spec §4.3 "Ordering of items:
// ascending by log offset").
type entry[T any] struct {
	offset int64
	value  T
}

// Memory is an in-memory IndexReader, standing in for the out-of-band
// indexer process spec §4.6 describes. Tests populate it directly with
// Put; production deployments use the Redis-backed adapter instead.
type Memory[T any] struct {
	mu      sync.RWMutex
	byID    map[string]entry[T]
	idOrder []string
}

// NewMemory constructs an empty Memory index.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{byID: make(map[string]entry[T])}
}

// Put indexes value under id at the given log offset, ready to be
// listed and looked up. Calling Put twice for the same id replaces the
// existing entry in place.
func (m *Memory[T]) Put(id string, offset int64, value T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[id]; !exists {
		m.idOrder = append(m.idOrder, id)
	}
	m.byID[id] = entry[T]{offset: offset, value: value}
}

func (m *Memory[T]) List(ctx context.Context, offset, limit int) (Page[T], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ordered := make([]entry[T], 0, len(m.idOrder))
	for _, id := range m.idOrder {
		ordered = append(ordered, m.byID[id])
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].offset < ordered[j].offset })

	total := len(ordered)
	requestedOffset := offset
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	items := make([]T, 0, end-offset)
	for _, e := range ordered[offset:end] {
		items = append(items, e.value)
	}
	return Page[T]{Items: items, Offset: requestedOffset, Limit: limit, Total: total}, nil
}

func (m *Memory[T]) Get(ctx context.Context, id string) (T, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[id]
	if !ok {
		var zero T
		return zero, false, nil
	}
	return e.value, true, nil
}
