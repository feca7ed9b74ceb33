package cache

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrTooLarge is returned when a clip does not fit in the tier at all.
	ErrTooLarge = errors.New("clip is larger than the cache")

	// ErrCorrupted is returned when a stored clip cannot be decoded.
	ErrCorrupted = errors.New("cached clip is corrupted")
)

// Tier identifies a cache level.
type Tier int

const (
	TierMemory Tier = iota
	TierDisk
)

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats describes one tier.
type Stats struct {
	Tier         Tier
	Capacity     int64 // bytes
	Size         int64 // bytes, compressed on disk
	Entries      int
	Hits         int64
	Misses       int64
	Evictions    int64
	LastEviction time.Time
}

// HitRate returns hits / lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// Config configures a CacheManager.
type Config struct {
	// MemoryCapacity bounds the memory tier in bytes
	MemoryCapacity int64

	// DiskCapacity bounds the disk tier in bytes
	DiskCapacity int64

	// Dir holds the disk tier (required)
	Dir string

	// CompressionLevel is the zstd level, 1 (fastest) to 4 (best)
	CompressionLevel int

	// MaxAge drops clips older than this on every sweep; 0 keeps them
	MaxAge time.Duration

	// SweepInterval is how often expired clips are dropped; 0 disables
	// the background sweep
	SweepInterval time.Duration

	// Logger overrides the default logger (optional)
	Logger *log.Logger
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig(dir string) Config {
	return Config{
		MemoryCapacity:   32 << 20,
		DiskCapacity:     256 << 20,
		Dir:              dir,
		CompressionLevel: 2,
		MaxAge:           30 * 24 * time.Hour,
		SweepInterval:    time.Hour,
	}
}
