package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps attempts in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

var _ AttemptStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string][]time.Time)}
}

func (m *MemoryStore) Attempts(_ context.Context, key string, since time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.attempts[key]
	i := sort.Search(len(all), func(i int) bool { return all[i].After(since) })
	return append([]time.Time(nil), all[i:]...), nil
}

func (m *MemoryStore) Add(_ context.Context, key string, at time.Time, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insert(key, at)
	m.prune(key, at.Add(-window))
	return nil
}

func (m *MemoryStore) AddIfBelow(_ context.Context, key string, at time.Time, window time.Duration, limit int) (bool, []time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune(key, at.Add(-window))
	added := len(m.attempts[key]) < limit
	if added {
		m.insert(key, at)
	}
	return added, append([]time.Time(nil), m.attempts[key]...), nil
}

// insert and prune expect mu to be held.
func (m *MemoryStore) insert(key string, at time.Time) {
	all := append(m.attempts[key], at)
	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })
	m.attempts[key] = all
}

// prune drops attempts at or before cutoff.
func (m *MemoryStore) prune(key string, cutoff time.Time) {
	all := m.attempts[key]
	i := sort.Search(len(all), func(i int) bool { return all[i].After(cutoff) })
	if i == len(all) {
		delete(m.attempts, key)
		return
	}
	m.attempts[key] = append([]time.Time(nil), all[i:]...)
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, key)
	return nil
}
