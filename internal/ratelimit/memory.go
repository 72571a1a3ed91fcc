package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count int
	start time.Time
}

// MemoryStore 进程内计数，仅适用于单实例部署。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]counter
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]counter), now: time.Now}
}

func (s *MemoryStore) Hit(ctx context.Context, key string, d time.Duration) (int, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.entries[key]
	if !ok || now.Sub(w.start) >= d {
		w = counter{start: now}
	}
	w.count++
	s.entries[key] = w
	s.sweep(now, d)
	return w.count, w.start.Add(d).Sub(now), nil
}

// sweep 清理已过期的窗口，避免 map 无限增长。
func (s *MemoryStore) sweep(now time.Time, d time.Duration) {
	if len(s.entries) < 1024 {
		return
	}
	for k, w := range s.entries {
		if now.Sub(w.start) >= d {
			delete(s.entries, k)
		}
	}
}
