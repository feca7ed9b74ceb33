package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func speechLike(n int) []byte {
	clip := make([]byte, n)
	for i := range clip {
		clip[i] = byte(i % 7)
	}
	return clip
}

func TestDiskCache_PutGet(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskCache(dir, 1<<20, 2)
	if err != nil {
		t.Fatalf("NewDiskCache() error = %v", err)
	}
	defer c.Close() //nolint:errcheck

	clip := speechLike(4096)
	if err := c.Put("k1", clip); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get("k1")
	if !ok || !bytes.Equal(got, clip) {
		t.Fatalf("Get() returned %d bytes, ok=%v", len(got), ok)
	}

	if s := c.Stats(); s.Size >= int64(len(clip)) {
		t.Errorf("clip was not compressed: %d bytes on disk", s.Size)
	}
}

func TestDiskCache_Reopen(t *testing.T) {
	dir := t.TempDir()
	clip := speechLike(2048)

	c, err := NewDiskCache(dir, 1<<20, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("kept", clip); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close() //nolint:errcheck

	got, ok := reopened.Get("kept")
	if !ok || !bytes.Equal(got, clip) {
		t.Error("clip did not survive a reopen")
	}
}

func TestDiskCache_MissingFile(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewDiskCache(dir, 1<<20, 1)
	defer c.Close() //nolint:errcheck

	_ = c.Put("gone", speechLike(100))
	if err := os.Remove(filepath.Join(dir, "gone"+clipExt)); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("gone"); ok {
		t.Error("Get() found a clip whose file was removed")
	}
	if c.Contains("gone") {
		t.Error("index still lists the removed clip")
	}
}

func TestDiskCache_Evict(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewDiskCache(dir, 1<<20, 1)
	defer c.Close() //nolint:errcheck

	_ = c.Put("first", []byte("one"))
	time.Sleep(5 * time.Millisecond)
	_ = c.Put("second", []byte("two"))
	size := c.Stats().Size

	// Shrink the capacity to what a single clip takes.
	c.capacity = size / 2
	time.Sleep(5 * time.Millisecond)
	c.Get("first")
	if err := c.Put("third", []byte("333")); err != nil {
		t.Fatal(err)
	}

	if c.Contains("second") {
		t.Error("least recently used clip was kept")
	}
	if !c.Contains("third") {
		t.Error("new clip missing")
	}
	if c.Stats().Evictions == 0 {
		t.Error("no eviction recorded")
	}
}

func TestDiskCache_TooLarge(t *testing.T) {
	c, _ := NewDiskCache(t.TempDir(), 4, 1)
	defer c.Close() //nolint:errcheck

	if err := c.Put("k", speechLike(1024)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Put() error = %v, want ErrTooLarge", err)
	}
}

func TestDiskCache_Clear(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewDiskCache(dir, 1<<20, 1)
	defer c.Close() //nolint:errcheck

	_ = c.Put("a", []byte("a"))
	_ = c.Put("b", []byte("b"))
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*"+clipExt))
	if len(matches) != 0 {
		t.Errorf("files left after Clear(): %v", matches)
	}
	if s := c.Stats(); s.Entries != 0 || s.Size != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestNewDiskCache_RequiresDir(t *testing.T) {
	if _, err := NewDiskCache("", 1, 1); err == nil {
		t.Error("expected an error without a directory")
	}
}
