// Package cache implements the TTL-keyed result caches shared by all
// chat sessions: the command cache (utterance -> generated query) and
// the query cache (query text + params -> result payload).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// entry is a cached record. Entries are written whole and replaced
// whole; no field is ever mutated in place.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Store is a TTL cache from a content-hash key to a value of type V.
// Safe for concurrent use from any number of sessions. Expired entries
// are evicted lazily by the Get that discovers them; Sweep exists only
// to bound memory.
type Store[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a store whose entries live for ttl after each Set.
func NewStore[V any](ttl time.Duration) *Store[V] {
	return &Store[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the value cached under key if it exists and has not
// expired. An expired entry is removed and reported as a miss.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		// Re-check: another Set may have refreshed the key meanwhile.
		if cur, ok := s.items[key]; ok && !s.now().Before(cur.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set inserts or overwrites the entry for key. Concurrent writers for
// the same key leave the store holding one of the writes intact.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry[V]{
		value:     value,
		expiresAt: s.now().Add(s.ttl),
	}
}

// Clear removes all entries
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]entry[V])
}

// Sweep removes every expired entry and reports how many were dropped
func (s *Store[V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired ones included
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Stats summarizes the store for the metrics endpoint
func (s *Store[V]) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	active, expired := 0, 0
	for _, e := range s.items {
		if now.Before(e.expiresAt) {
			active++
		} else {
			expired++
		}
	}
	return map[string]interface{}{
		"total_entries":   len(s.items),
		"active_entries":  active,
		"expired_entries": expired,
	}
}

// Normalize canonicalizes command text: lower-cased with whitespace
// runs collapsed to single spaces. Cosmetic variations of the same
// question hash to the same cache line, which is what amortizes the
// expensive generation step.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// CommandKey derives the cache key for a natural-language command
func CommandKey(command string) string {
	return hash(Normalize(command))
}

// QueryKey derives the cache key for a query and its parameters.
// encoding/json serializes map keys in sorted order, so equal
// parameter sets always produce the same key.
func QueryKey(query string, params map[string]string) string {
	if len(params) == 0 {
		return hash(query)
	}
	serialized, _ := json.Marshal(params)
	return hash(query + string(serialized))
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
