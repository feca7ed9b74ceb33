package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// CacheManager puts a memory tier in front of a disk tier. Disk hits are
// promoted to memory.
type CacheManager struct {
	memory *MemoryCache
	disk   *DiskCache
	maxAge time.Duration
	logger *log.Logger

	promotions atomic.Int64
	sweeps     atomic.Int64

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ManagerStats describes both tiers.
type ManagerStats struct {
	Memory     Stats
	Disk       Stats
	Promotions int64
	Sweeps     int64
}

// HitRate returns the share of lookups answered by either tier. Every
// lookup reaches memory first, so its misses are the lookups disk saw.
func (s ManagerStats) HitRate() float64 {
	lookups := s.Memory.Hits + s.Memory.Misses
	if lookups == 0 {
		return 0
	}
	return float64(s.Memory.Hits+s.Disk.Hits) / float64(lookups)
}

// NewCacheManager opens the cache described by config.
func NewCacheManager(config Config) (*CacheManager, error) {
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	disk, err := NewDiskCache(config.Dir, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("unable to open disk cache: %w", err)
	}

	m := &CacheManager{
		memory: NewMemoryCache(config.MemoryCapacity),
		disk:   disk,
		maxAge: config.MaxAge,
		logger: config.Logger,
		stop:   make(chan struct{}),
	}

	if config.SweepInterval > 0 && config.MaxAge > 0 {
		m.wg.Add(1)
		go m.sweepLoop(config.SweepInterval)
	}

	return m, nil
}

// Get returns the clip stored under key from whichever tier has it.
func (m *CacheManager) Get(key string) ([]byte, bool) {
	if clip, ok := m.memory.Get(key); ok {
		return clip, true
	}
	clip, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := m.memory.Put(key, clip); err == nil {
		m.promotions.Add(1)
	}
	return clip, true
}

// Put stores clip in both tiers. A clip too large for memory is still
// written to disk.
func (m *CacheManager) Put(key string, clip []byte) error {
	if err := m.memory.Put(key, clip); err != nil && !errors.Is(err, ErrTooLarge) {
		return err
	}
	if err := m.disk.Put(key, clip); err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Delete removes key from both tiers.
func (m *CacheManager) Delete(key string) error {
	m.memory.Delete(key)
	m.disk.Delete(key)
	return nil
}

// Clear removes every clip.
func (m *CacheManager) Clear() error {
	m.memory.Clear()
	if err := m.disk.Clear(); err != nil {
		return fmt.Errorf("unable to clear disk cache: %w", err)
	}
	return nil
}

// Sweep drops clips older than the configured maximum age and returns how
// many files were removed.
func (m *CacheManager) Sweep() int {
	m.sweeps.Add(1)
	if m.maxAge <= 0 {
		return 0
	}
	m.memory.Prune(m.maxAge)
	removed := m.disk.Prune(m.maxAge)
	if removed > 0 {
		m.logger.Debug("swept audio cache", "removed", removed)
	}
	return removed
}

// Stats returns a snapshot of both tiers.
func (m *CacheManager) Stats() ManagerStats {
	return ManagerStats{
		Memory:     m.memory.Stats(),
		Disk:       m.disk.Stats(),
		Promotions: m.promotions.Load(),
		Sweeps:     m.sweeps.Load(),
	}
}

// Dir returns the directory of the disk tier.
func (m *CacheManager) Dir() string {
	return m.disk.Dir()
}

// Close stops the sweeper and writes the disk index.
func (m *CacheManager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stop)
		m.wg.Wait()
		err = m.disk.Close()
	})
	return err
}

func (m *CacheManager) sweepLoop(every time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// GenerateCacheKey derives the key of a clip from what shapes its audio.
func GenerateCacheKey(text, voice string, speed float64) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%.2f", normalized, voice, speed))
	return hex.EncodeToString(sum[:16])
}
