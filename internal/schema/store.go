package schema

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// DefaultStoreCapacity bounds the session slots a Store keeps when no capacity is given.
const DefaultStoreCapacity = 1000

// Store holds the latest snapshot per session key. Writes replace a slot whole, so a
// reader observes either the previous snapshot or the new one. Once capacity slots are
// held, installing a new session evicts the least recently used one.
type Store struct {
	mu        sync.Mutex
	snapshots *lru.Cache
}

// NewStore returns a Store bounded to capacity sessions. A capacity of zero or less
// selects DefaultStoreCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &Store{snapshots: lru.New(capacity)}
}

func (s *Store) Get(key string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.snapshots.Get(key)
	if !ok {
		return Snapshot{}, false
	}
	return value.(Snapshot), true
}

func (s *Store) Put(key string, snapshot Snapshot) {
	installed := NewSnapshot(snapshot.Tables, snapshot.CapturedAt)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots.Add(key, installed)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots.Len()
}
