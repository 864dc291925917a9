package rawi

import (
	"hash/fnv"
	"sync"
	"time"
)

type memEntry struct {
	payload   []byte
	expiresAt time.Time
}

type memShard struct {
	mu    sync.Mutex
	store map[string]memEntry
	size  int64
}

// MemoryStore is a sharded in-memory Store with lazy TTL expiry. It is the
// default store: useful for tests and for deployments that do not need the
// cache to survive a restart. It has no size bound; use DiskStore when
// capacity matters.
type MemoryStore struct {
	shards    []*memShard
	numShards int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	numShards := 16
	shards := make([]*memShard, numShards)
	for i := range shards {
		shards[i] = &memShard{store: make(map[string]memEntry)}
	}
	return &MemoryStore{shards: shards, numShards: numShards}
}

func (s *MemoryStore) shard(key string) *memShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Get returns the payload for key; an expired entry is removed and reported
// as a miss.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	ent, ok := sh.store[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(ent.expiresAt) {
		delete(sh.store, key)
		sh.size -= int64(len(ent.payload))
		return nil, false
	}
	return ent.payload, true
}

// Set stores payload under key for ttl.
func (s *MemoryStore) Set(key string, payload []byte, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if old, ok := sh.store[key]; ok {
		sh.size -= int64(len(old.payload))
	}
	sh.store[key] = memEntry{payload: payload, expiresAt: time.Now().Add(ttl)}
	sh.size += int64(len(payload))
}

// Delete removes key if present.
func (s *MemoryStore) Delete(key string) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if ent, ok := sh.store[key]; ok {
		delete(sh.store, key)
		sh.size -= int64(len(ent.payload))
	}
}

// Clear removes every entry.
func (s *MemoryStore) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.store = make(map[string]memEntry)
		sh.size = 0
		sh.mu.Unlock()
	}
}

// SizeBytes returns the total payload bytes held.
func (s *MemoryStore) SizeBytes() int64 {
	var total int64
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += sh.size
		sh.mu.Unlock()
	}
	return total
}

// Len returns the number of entries held, including not-yet-collected
// expired ones.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.store)
		sh.mu.Unlock()
	}
	return n
}
