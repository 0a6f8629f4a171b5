// Package lockcache implements the LockStore port on an in-process TTL
// cache. It stands in for a shared store like Redis when all workers run in
// one process; the port keeps the swap trivial.
package lockcache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Auankj/decode/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LockStore = (*Store)(nil)

// Store is a go-cache backed LockStore. The cache itself is safe for
// concurrent use, but set-if-absent and check-then-delete are compound
// operations, so a single mutex serializes them.
type Store struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// New creates a Store. cleanupInterval bounds how long expired lock entries
// linger before the janitor removes them; expiry itself is enforced on read.
func New(cleanupInterval time.Duration) *Store {
	return &Store{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// SetIfAbsent stores value under key with the given TTL only if no live
// value exists.
func (s *Store) SetIfAbsent(key, value string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cache.Add(key, value, ttl) == nil
}

// DeleteIfValue deletes key only if its current value equals value. An
// expired entry no longer matches, so a late release from a crashed holder
// cannot remove a newer holder's lock.
func (s *Store) DeleteIfValue(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.cache.Get(key)
	if !found || current.(string) != value {
		return false
	}
	s.cache.Delete(key)
	return true
}
