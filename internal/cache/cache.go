package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TTL classes. Balances move fast; reference data (yield tables, token
// metadata) is allowed to age longer.
const (
	TTLBalances  = time.Minute
	TTLReference = 5 * time.Minute
)

// Store is an in-memory TTL cache with request coalescing. It is constructed
// explicitly and passed by handle to every call site; there is no package
// singleton. The clock is injected so TTL behavior is testable.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
	group   singleflight.Group
}

type entry struct {
	value     any
	fetchedAt time.Time
	ttl       time.Duration
}

type Status struct {
	FromCache bool
	Age       time.Duration
}

func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns a live entry. Entries past their TTL are treated as absent and
// deleted; a stale value is never served.
func (s *Store) Get(key string) (any, time.Duration, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, 0, false
	}
	age := s.now().Sub(e.fetchedAt)
	if age > e.ttl {
		s.mu.Lock()
		if cur, still := s.entries[key]; still && cur.fetchedAt.Equal(e.fetchedAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, 0, false
	}
	return e.value, age, true
}

func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = time.Nanosecond
	}
	s.mu.Lock()
	s.entries[key] = entry{value: value, fetchedAt: s.now(), ttl: ttl}
	s.mu.Unlock()
}

func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *Store) InvalidateAll() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// GetOrFetch serves a live entry, or runs fetch and populates the entry.
// Concurrent callers for the same key share a single outstanding fetch.
// force bypasses the read path and overwrites unconditionally, but still
// coalesces with other in-flight forced fetches for the key.
func (s *Store) GetOrFetch(ctx context.Context, key string, ttl time.Duration, force bool, fetch func(ctx context.Context) (any, error)) (any, Status, error) {
	if !force {
		if value, age, ok := s.Get(key); ok {
			return value, Status{FromCache: true, Age: age}, nil
		}
	}

	value, err, _ := s.group.Do(key, func() (any, error) {
		// Re-check under the flight: a sibling caller may have populated
		// the entry between the miss and this fetch.
		if !force {
			if value, _, ok := s.Get(key); ok {
				return value, nil
			}
		}
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.Set(key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, Status{}, err
	}
	return value, Status{}, nil
}

// Key derives a stable cache key from a namespace and a request shape.
func Key(namespace string, req any) string {
	buf, _ := json.Marshal(req)
	sum := sha256.Sum256(append([]byte(namespace+"|"), buf...))
	return hex.EncodeToString(sum[:])
}
