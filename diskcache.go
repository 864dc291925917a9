package rawi

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultCacheCapacity bounds the total size of entries on disk.
	DefaultCacheCapacity = 50 * 1024 * 1024
	// DefaultSweepInterval is how often expired entries are removed
	// independently of lookups.
	DefaultSweepInterval = time.Hour

	entrySuffix = ".entry"

	// degradedThreshold is the number of consecutive write failures after
	// which Degraded starts reporting true.
	degradedThreshold = 5
)

// diskEntry is the on-disk record, one file per key.
type diskEntry struct {
	Key       string
	ExpiresAt time.Time
	Payload   []byte
}

type indexEntry struct {
	size       int64
	lastAccess time.Time
	expiresAt  time.Time
}

// DiskStore is a durable, expiring, size-bounded Store keeping one file per
// key under a directory. File names are the hex SHA-256 of the key, so any
// key is filesystem safe. An in-memory index (size, last access, expiry per
// key) decides eviction order: when an insert would exceed capacity, entries
// go in ascending last-access order, and read hits refresh recency so
// frequently read entries outlive write-once ones.
//
// Every I/O failure is absorbed: a failed write behaves as if the value was
// never cached, a failed or corrupt read is a miss and the record is removed.
// Persistent write failures flip Degraded so operators can alert; they never
// surface to fetch callers.
type DiskStore struct {
	dir           string
	capacity      int64
	sweepInterval time.Duration
	logger        Logger
	metrics       *MetricsCollector

	mu            sync.Mutex
	index         map[string]indexEntry
	total         int64
	writeFailures int

	stop     chan struct{}
	stopOnce sync.Once
}

// DiskOption configures a DiskStore.
type DiskOption func(*DiskStore)

// DiskWithCapacity sets the total size bound in bytes.
func DiskWithCapacity(n int64) DiskOption {
	return func(s *DiskStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// DiskWithSweepInterval sets how often the background sweep runs. Zero
// disables the sweep goroutine; expired entries are then only removed lazily.
func DiskWithSweepInterval(d time.Duration) DiskOption {
	return func(s *DiskStore) { s.sweepInterval = d }
}

// DiskWithLogger attaches a logger for swallowed I/O failures and evictions.
func DiskWithLogger(logger Logger) DiskOption {
	return func(s *DiskStore) { s.logger = logger }
}

// DiskWithMetrics records evictions and write failures on collector.
func DiskWithMetrics(collector *MetricsCollector) DiskOption {
	return func(s *DiskStore) { s.metrics = collector }
}

// NewDiskStore opens (or creates) the cache directory and rebuilds the index
// from the entries already present, dropping any that are expired or corrupt.
func NewDiskStore(dir string, opts ...DiskOption) (*DiskStore, error) {
	if dir == "" {
		return nil, &Error{Kind: KindInvalidInput, Message: "cache directory required"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Kind: KindCache, Message: "cannot create cache directory", Cause: err}
	}

	s := &DiskStore{
		dir:           dir,
		capacity:      DefaultCacheCapacity,
		sweepInterval: DefaultSweepInterval,
		index:         make(map[string]indexEntry),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.rebuild()

	if s.sweepInterval > 0 {
		go s.sweepLoop()
	}
	return s, nil
}

// rebuild scans the cache directory and reconstructs the index. Last access
// times come from file mtimes, which Get keeps current, so recency survives
// restarts.
func (s *DiskStore) rebuild() {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("cache directory scan failed", "dir", s.dir, "error", err)
		}
		return
	}

	now := time.Now()
	for _, de := range dirents {
		if de.IsDir() || filepath.Ext(de.Name()) != entrySuffix {
			continue
		}
		path := filepath.Join(s.dir, de.Name())

		info, err := de.Info()
		if err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			_ = os.Remove(path)
			continue
		}
		var ent diskEntry
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ent); err != nil {
			if s.logger != nil {
				s.logger.Warn("dropping corrupt cache record", "file", de.Name(), "error", err)
			}
			_ = os.Remove(path)
			continue
		}
		if now.After(ent.ExpiresAt) {
			_ = os.Remove(path)
			continue
		}

		s.index[ent.Key] = indexEntry{
			size:       info.Size(),
			lastAccess: info.ModTime(),
			expiresAt:  ent.ExpiresAt,
		}
		s.total += info.Size()
	}
}

func (s *DiskStore) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+entrySuffix)
}

// Get returns the stored payload if present and not expired. An expired entry
// is deleted as a side effect and reported as a miss. A hit refreshes the
// entry's last-access time.
func (s *DiskStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ie, ok := s.index[key]
	if !ok {
		return nil, false
	}

	now := time.Now()
	if now.After(ie.expiresAt) {
		s.removeLocked(key, ie)
		return nil, false
	}

	path := s.pathFor(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("cache read failed", "key", key, "error", err)
		}
		s.removeLocked(key, ie)
		return nil, false
	}
	var ent diskEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ent); err != nil {
		if s.logger != nil {
			s.logger.Warn("dropping corrupt cache record", "key", key, "error", err)
		}
		s.removeLocked(key, ie)
		return nil, false
	}

	ie.lastAccess = now
	s.index[key] = ie
	// Persist recency so it survives a restart.
	_ = os.Chtimes(path, now, now)

	return ent.Payload, true
}

// Set stores payload under key for ttl, evicting least recently accessed
// entries until the new one fits. Failures are logged and swallowed; the
// caller proceeds as if the value were simply not cached.
func (s *DiskStore) Set(key string, payload []byte, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}

	now := time.Now()
	ent := diskEntry{Key: key, ExpiresAt: now.Add(ttl), Payload: payload}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&ent); err != nil {
		if s.logger != nil {
			s.logger.Warn("cache encode failed", "key", key, "error", err)
		}
		return
	}
	size := int64(buf.Len())

	s.mu.Lock()
	defer s.mu.Unlock()

	if size > s.capacity {
		if s.logger != nil {
			s.logger.Warn("entry larger than cache capacity, not cached", "key", key, "size", size, "capacity", s.capacity)
		}
		return
	}

	if old, ok := s.index[key]; ok {
		delete(s.index, key)
		s.total -= old.size
	}
	for s.total+size > s.capacity {
		if !s.evictOldestLocked() {
			break
		}
	}

	path := s.pathFor(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		s.recordWriteFailureLocked(key, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		s.recordWriteFailureLocked(key, err)
		return
	}

	s.writeFailures = 0
	s.index[key] = indexEntry{size: size, lastAccess: now, expiresAt: ent.ExpiresAt}
	s.total += size
}

func (s *DiskStore) recordWriteFailureLocked(key string, err error) {
	s.writeFailures++
	if s.metrics != nil {
		s.metrics.RecordCacheWriteFailure("disk")
	}
	if s.logger != nil {
		s.logger.Warn("cache write failed", "key", key, "consecutiveFailures", s.writeFailures, "error", err)
	}
}

// evictOldestLocked removes the entry with the oldest last-access time.
func (s *DiskStore) evictOldestLocked() bool {
	var oldestKey string
	var oldest indexEntry
	first := true
	for k, ie := range s.index {
		if first || ie.lastAccess.Before(oldest.lastAccess) {
			oldestKey, oldest, first = k, ie, false
		}
	}
	if first {
		return false
	}
	s.removeLocked(oldestKey, oldest)
	if s.metrics != nil {
		s.metrics.RecordCacheEviction("disk")
	}
	if s.logger != nil {
		s.logger.Debug("evicted cache entry", "key", oldestKey, "size", oldest.size)
	}
	return true
}

func (s *DiskStore) removeLocked(key string, ie indexEntry) {
	delete(s.index, key)
	s.total -= ie.size
	_ = os.Remove(s.pathFor(key))
}

// Delete removes key if present.
func (s *DiskStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ie, ok := s.index[key]; ok {
		s.removeLocked(key, ie)
	}
}

// Clear removes every entry.
func (s *DiskStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, ie := range s.index {
		s.removeLocked(key, ie)
	}
	s.total = 0
}

// SizeBytes returns the total size of stored entries as encoded on disk.
func (s *DiskStore) SizeBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Len returns the number of stored entries.
func (s *DiskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Sweep removes all expired entries and returns how many were dropped. It is
// also run periodically by the background goroutine, so keys that are never
// re-read do not pin storage.
func (s *DiskStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, ie := range s.index {
		if now.After(ie.expiresAt) {
			s.removeLocked(key, ie)
			removed++
		}
	}
	return removed
}

// Degraded reports whether recent consecutive writes have been failing, e.g.
// on a full disk. Fetches keep working without caching; this is an
// operator-facing signal, not an error.
func (s *DiskStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFailures >= degradedThreshold
}

// Close stops the background sweep goroutine.
func (s *DiskStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *DiskStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 && s.logger != nil {
				s.logger.Debug("swept expired cache entries", "removed", n)
			}
		case <-s.stop:
			return
		}
	}
}
