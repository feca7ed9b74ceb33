package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "index.gob"
	clipExt   = ".pcm.zst"
)

// DiskCache stores zstd compressed clips in a directory, one file per clip,
// with a gob encoded index that is reloaded on start.
type DiskCache struct {
	mu       sync.Mutex
	dir      string
	capacity int64
	size     int64
	index    map[string]diskEntry
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	stats    Stats
}

type diskEntry struct {
	Stored   time.Time
	LastUsed time.Time
	Size     int64 // compressed
	Raw      int64
}

// NewDiskCache opens or creates the disk tier in dir.
func NewDiskCache(dir string, capacity int64, level int) (*DiskCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create cache directory: %w", err)
	}

	level = min(max(level, int(zstd.SpeedFastest)), int(zstd.SpeedBestCompression))
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevel(level)))
	if err != nil {
		return nil, fmt.Errorf("unable to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create zstd decoder: %w", err)
	}

	c := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]diskEntry),
		encoder:  enc,
		decoder:  dec,
		stats:    Stats{Tier: TierDisk, Capacity: capacity},
	}
	if err := c.load(); err != nil {
		// A damaged index only costs the cached clips.
		c.index = make(map[string]diskEntry)
	}
	c.reconcile()
	return c, nil
}

// Dir returns the cache directory.
func (c *DiskCache) Dir() string {
	return c.dir
}

// Get reads and decompresses the clip stored under key.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	compressed, err := os.ReadFile(c.path(key))
	if err != nil {
		c.drop(key)
		c.stats.Misses++
		return nil, false
	}
	clip, err := c.decoder.DecodeAll(compressed, make([]byte, 0, e.Raw))
	if err != nil {
		c.drop(key)
		c.stats.Misses++
		return nil, false
	}

	e.LastUsed = time.Now()
	c.index[key] = e
	c.stats.Hits++
	return clip, true
}

// Put compresses clip and writes it under key, evicting the least recently
// used clips to make room.
func (c *DiskCache) Put(key string, clip []byte) error {
	compressed := c.encoder.EncodeAll(clip, nil)
	n := int64(len(compressed))

	c.mu.Lock()
	defer c.mu.Unlock()

	if n > c.capacity {
		return ErrTooLarge
	}
	if _, ok := c.index[key]; ok {
		c.drop(key)
	}
	c.evict(c.capacity - n)

	if err := writeFileAtomic(c.path(key), compressed); err != nil {
		return fmt.Errorf("unable to write clip: %w", err)
	}

	now := time.Now()
	c.index[key] = diskEntry{Stored: now, LastUsed: now, Size: n, Raw: int64(len(clip))}
	c.size += n
	return nil
}

// Contains reports whether key is indexed.
func (c *DiskCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key]
	return ok
}

// Delete removes the clip stored under key.
func (c *DiskCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[key]; ok {
		c.drop(key)
	}
}

// Clear removes every clip and the index.
func (c *DiskCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.index {
		c.drop(key)
	}
	c.size = 0
	return c.save()
}

// Prune removes clips stored before now-maxAge and returns how many.
func (c *DiskCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for key, e := range c.index {
		if e.Stored.Before(cutoff) {
			c.drop(key)
			pruned++
		}
	}
	return pruned
}

// Stats returns a snapshot of the tier.
func (c *DiskCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.size
	s.Entries = len(c.index)
	return s
}

// Close writes the index.
func (c *DiskCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decoder.Close()
	return c.save()
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+clipExt)
}

// evict drops least recently used clips until size <= limit. mu must be
// held.
func (c *DiskCache) evict(limit int64) {
	if c.size <= limit {
		return
	}

	keys := make([]string, 0, len(c.index))
	for key := range c.index {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return c.index[a].LastUsed.Compare(c.index[b].LastUsed)
	})

	for _, key := range keys {
		if c.size <= limit {
			break
		}
		c.drop(key)
		c.stats.Evictions++
		c.stats.LastEviction = time.Now()
	}
}

// drop removes key from the index and the directory. mu must be held.
func (c *DiskCache) drop(key string) {
	e, ok := c.index[key]
	if !ok {
		return
	}
	_ = os.Remove(c.path(key))
	delete(c.index, key)
	c.size -= e.Size
}

func (c *DiskCache) load() error {
	f, err := os.Open(filepath.Join(c.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	return gob.NewDecoder(f).Decode(&c.index)
}

func (c *DiskCache) save() error {
	tmp, err := os.CreateTemp(c.dir, indexFile+".*")
	if err != nil {
		return fmt.Errorf("unable to write cache index: %w", err)
	}
	if err := gob.NewEncoder(tmp).Encode(c.index); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("unable to encode cache index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(c.dir, indexFile))
}

// reconcile drops index entries whose files are gone and recomputes size.
func (c *DiskCache) reconcile() {
	c.size = 0
	for key, e := range c.index {
		if _, err := os.Stat(c.path(key)); err != nil {
			delete(c.index, key)
			continue
		}
		c.size += e.Size
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
