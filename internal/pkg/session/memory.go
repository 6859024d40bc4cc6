package session

import (
	"context"
	"sync"
	"time"

	"github.com/mfellner/advicebuilder/internal/pkg/workerpool"
)

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Drafts expire after the configured
// TTL; expired entries are removed lazily on read and by the sweeper.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: map[string]memoryEntry{},
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, prefix string) (Data, error) {
	s.mu.RLock()
	entry, ok := s.entries[prefix]
	s.mu.RUnlock()

	if !ok || (s.ttl > 0 && s.now().After(entry.expiresAt)) {
		return NewData(), nil
	}
	return cloneData(entry.data), nil
}

func (s *MemoryStore) Set(_ context.Context, prefix string, data Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[prefix] = memoryEntry{data: cloneData(data), expiresAt: s.now().Add(s.ttl)}
	return nil
}

// cloneData detaches a draft from the stored entry so callers never share
// the map and slice with the store, matching the serialization boundary of
// the Redis backend.
func cloneData(d Data) Data {
	out := d
	out.Answers = make(map[string]any, len(d.Answers))
	for id, value := range d.Answers {
		out.Answers[id] = value
	}
	out.Order = append([]string(nil), d.Order...)
	return out
}

func (s *MemoryStore) Reset(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, prefix)
	return nil
}

// Sweep drops expired drafts and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for prefix, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, prefix)
			removed++
		}
	}
	return removed
}

// StartSweeper submits a Sweep job to the pool on every tick until ctx is
// canceled.
func (s *MemoryStore) StartSweeper(ctx context.Context, pool *workerpool.WorkerPool, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pool.Submit(func(context.Context) {
					s.Sweep()
				})
			}
		}
	}()
}
