package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()
	_, ok := s.Get(CategoryRealtime)
	assert.False(t, ok)
	_, ok = s.Fresh(CategoryRealtime, time.Minute)
	assert.False(t, ok)
}

func TestStore_FreshHonorsTTL(t *testing.T) {
	s := NewStore()
	s.Put(CategoryTotals, "payload")

	snap, ok := s.Fresh(CategoryTotals, time.Minute)
	assert.True(t, ok)
	assert.Equal(t, "payload", snap.Payload)

	// Age the entry past a tiny TTL; Get still serves it, Fresh does not.
	time.Sleep(2 * time.Millisecond)
	_, ok = s.Fresh(CategoryTotals, time.Millisecond)
	assert.False(t, ok)
	stale, ok := s.Get(CategoryTotals)
	assert.True(t, ok)
	assert.Equal(t, "payload", stale.Payload)
}

func TestStore_CategoriesAreIndependent(t *testing.T) {
	s := NewStore()
	s.Put(CategoryRealtime, 1)
	s.Put(CategoryDevices, 2)

	rt, _ := s.Get(CategoryRealtime)
	dv, _ := s.Get(CategoryDevices)
	assert.Equal(t, 1, rt.Payload)
	assert.Equal(t, 2, dv.Payload)
	_, ok := s.Get(CategoryCircuits)
	assert.False(t, ok)
}

func TestStore_ReplaceKeepsTimestamp(t *testing.T) {
	s := NewStore()
	orig := s.Put(CategoryDevices, "before")

	s.Replace(CategoryDevices, "after")

	snap, ok := s.Get(CategoryDevices)
	assert.True(t, ok)
	assert.Equal(t, "after", snap.Payload)
	assert.Equal(t, orig.FetchedAt, snap.FetchedAt)
}

func TestStore_ReplaceMissingIsNoop(t *testing.T) {
	s := NewStore()
	s.Replace(CategoryCircuits, "orphan")
	_, ok := s.Get(CategoryCircuits)
	assert.False(t, ok)
}
