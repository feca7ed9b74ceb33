package cache

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_PutGet(t *testing.T) {
	c := NewMemoryCache(1024)

	clip := []byte("pcm bytes")
	if err := c.Put("hello", clip); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get("hello")
	if !ok || !bytes.Equal(got, clip) {
		t.Fatalf("Get() = %q, %v", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get() found a missing key")
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Entries != 1 || s.Size != int64(len(clip)) {
		t.Errorf("Stats() = %+v", s)
	}
	if s.HitRate() != 0.5 {
		t.Errorf("HitRate() = %v", s.HitRate())
	}

	c.Delete("hello")
	if c.Contains("hello") || c.Stats().Size != 0 {
		t.Error("Delete() left the clip behind")
	}
}

func TestMemoryCache_LRU(t *testing.T) {
	c := NewMemoryCache(30)

	for _, key := range []string{"a", "b", "c"} {
		if err := c.Put(key, make([]byte, 10)); err != nil {
			t.Fatal(err)
		}
	}

	// a becomes most recently used, so b is the oldest.
	c.Get("a")
	if err := c.Put("d", make([]byte, 10)); err != nil {
		t.Fatal(err)
	}

	if c.Contains("b") {
		t.Error("least recently used clip was kept")
	}
	for _, key := range []string{"a", "c", "d"} {
		if !c.Contains(key) {
			t.Errorf("%s was evicted", key)
		}
	}
	if s := c.Stats(); s.Evictions != 1 || s.Size != 30 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestMemoryCache_Replace(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("k", make([]byte, 40))
	_ = c.Put("k", make([]byte, 10))

	if s := c.Stats(); s.Size != 10 || s.Entries != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestMemoryCache_TooLarge(t *testing.T) {
	c := NewMemoryCache(8)
	if err := c.Put("big", make([]byte, 9)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Put() error = %v, want ErrTooLarge", err)
	}
}

func TestMemoryCache_Prune(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("old", []byte("x"))
	time.Sleep(20 * time.Millisecond)
	_ = c.Put("new", []byte("y"))

	if n := c.Prune(10 * time.Millisecond); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if c.Contains("old") || !c.Contains("new") {
		t.Error("Prune() removed the wrong clip")
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(1 << 20)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("%d-%d", i, j%10)
				_ = c.Put(key, []byte(key))
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if s := c.Stats(); s.Entries != 80 {
		t.Errorf("Entries = %d, want 80", s.Entries)
	}
}
