package rawi

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, ""), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)

	store.Set("surah_2", []byte("payload"), time.Minute)

	got, ok := store.Get("surah_2")
	if !ok || string(got) != "payload" {
		t.Errorf("Get() = %q, %v, want %q, true", got, ok, "payload")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
	if store.SizeBytes() != int64(len("payload")) {
		t.Errorf("SizeBytes() = %d, want %d", store.SizeBytes(), len("payload"))
	}
}

func TestRedisStoreTTL(t *testing.T) {
	store, mr := newRedisStore(t)

	store.Set("short", []byte("payload"), time.Minute)
	mr.FastForward(2 * time.Minute)

	if _, ok := store.Get("short"); ok {
		t.Error("Get() hit for an entry past its TTL")
	}
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t)

	store.Set("a", []byte("x"), time.Minute)
	store.Delete("a")

	if _, ok := store.Get("a"); ok {
		t.Error("Get(a) hit after Delete")
	}
}

func TestRedisStoreClearRespectsPrefix(t *testing.T) {
	store, mr := newRedisStore(t)

	store.Set("a", []byte("x"), time.Minute)
	store.Set("b", []byte("y"), time.Minute)
	// A foreign key outside the store's prefix must survive Clear.
	mr.Set("other-app:key", "value")

	store.Clear()

	if store.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", store.Len())
	}
	if !mr.Exists("other-app:key") {
		t.Error("Clear() removed a key outside the store's prefix")
	}
}

func TestRedisStoreMissAfterServerGone(t *testing.T) {
	store, mr := newRedisStore(t)

	store.Set("k", []byte("payload"), time.Minute)
	mr.Close()

	// A dead backend is just a miss; nothing panics or errors out.
	if _, ok := store.Get("k"); ok {
		t.Error("Get() hit with the backend down")
	}
}
