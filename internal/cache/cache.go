package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Category keys one cached data category. Each category carries its own TTL
// policy, but the policy lives in the service layer; the store only records
// what was fetched and when.
type Category string

const (
	CategoryRealtime    Category = "realtime"
	CategoryTotals      Category = "totals"
	CategoryDevices     Category = "devices"
	CategoryCircuits    Category = "circuits"     // circuit list merged with kWh
	CategoryCircuitList Category = "circuit_list" // identity only, process lifetime
)

// Snapshot is one last-known-good payload with its fetch timestamp.
type Snapshot struct {
	Payload   any
	FetchedAt time.Time
}

// Store holds the per-category snapshots. Entries never self-expire:
// staleness is a read-side decision, and a stale snapshot is still served
// when a refresh fails.
type Store struct {
	c *gocache.Cache
}

// NewStore builds an empty snapshot store.
func NewStore() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, 0)}
}

// Get returns the snapshot for cat, however old.
func (s *Store) Get(cat Category) (Snapshot, bool) {
	v, ok := s.c.Get(string(cat))
	if !ok {
		return Snapshot{}, false
	}
	return v.(Snapshot), true
}

// Fresh returns the snapshot for cat only while it is within ttl.
func (s *Store) Fresh(cat Category, ttl time.Duration) (Snapshot, bool) {
	snap, ok := s.Get(cat)
	if !ok || time.Since(snap.FetchedAt) >= ttl {
		return Snapshot{}, false
	}
	return snap, true
}

// Put stores payload for cat stamped now and returns the stored snapshot.
func (s *Store) Put(cat Category, payload any) Snapshot {
	snap := Snapshot{Payload: payload, FetchedAt: time.Now()}
	s.c.Set(string(cat), snap, gocache.NoExpiration)
	return snap
}

// Replace swaps the payload of an existing snapshot without touching its
// fetch timestamp. Used when cached data is re-annotated (nickname changes)
// rather than re-fetched.
func (s *Store) Replace(cat Category, payload any) {
	snap, ok := s.Get(cat)
	if !ok {
		return
	}
	snap.Payload = payload
	s.c.Set(string(cat), snap, gocache.NoExpiration)
}
