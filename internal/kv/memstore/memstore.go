// Package memstore is the in-process kv.Store. There is no background
// sweeper: expired entries are observed as absent and dropped on the next
// read of the same key.
package memstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/14kear/voteGateBot/internal/kv"
)

type item struct {
	value     string
	expiresAt time.Time
}

func (it item) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

type Store struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock lets tests drive expiry with a fake clock.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		items: make(map[string]item),
		now:   now,
	}
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := item{value: value}
	if ttl > 0 {
		it.expiresAt = s.now().Add(ttl)
	}
	s.items[key] = it
	return nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.getLocked(key)
	if !ok {
		return "", kv.ErrNotFound
	}
	return it.value, nil
}

func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.getLocked(key)
	if !ok {
		s.items[key] = item{value: "1"}
		return 1, nil
	}

	n, err := strconv.ParseInt(it.value, 10, 64)
	if err != nil {
		return 0, err
	}

	n++
	it.value = strconv.FormatInt(n, 10)
	s.items[key] = it
	return n, nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

// getLocked lazily clears an expired entry.
func (s *Store) getLocked(key string) (item, bool) {
	it, ok := s.items[key]
	if !ok {
		return item{}, false
	}
	if it.expired(s.now()) {
		delete(s.items, key)
		return item{}, false
	}
	return it, true
}
