package tts

import (
	"context"
)

// QueueMode selects how Speak treats utterances that are already queued.
type QueueMode int

const (
	// QueueAdd appends the utterance and never interrupts.
	QueueAdd QueueMode = iota

	// QueueFlush drops queued utterances and stops the current one before
	// enqueueing.
	QueueFlush
)

// String returns the mode name.
func (m QueueMode) String() string {
	switch m {
	case QueueAdd:
		return "add"
	case QueueFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// Speaker speaks text. Implementations must be safe to call from one
// goroutine while another calls Stop.
type Speaker interface {
	// Speak queues text according to mode.
	Speak(text string, mode QueueMode) error

	// Stop drops queued utterances and silences the current one.
	Stop() error

	// Close stops speaking and releases resources.
	Close() error
}

// Engine converts text to audio.
// Audio is raw PCM: signed 16-bit little-endian at the rate in Info.
type Engine interface {
	// Synthesize converts text to audio at the given speed multiplier.
	Synthesize(ctx context.Context, text string, speed float64) ([]byte, error)

	// Info returns engine capabilities and configuration.
	Info() EngineInfo

	// Validate checks that the engine's binaries and models are available.
	Validate() error

	// Close releases any resources held by the engine.
	Close() error
}

// EngineInfo describes engine capabilities and configuration.
type EngineInfo struct {
	Name        string // Engine name (e.g., "piper", "gtts")
	Voice       string // Model, speaker or language; part of the cache key
	SampleRate  int    // Audio sample rate in Hz
	Channels    int    // Number of audio channels (1=mono, 2=stereo)
	BitDepth    int    // Bits per sample (typically 16)
	MaxTextSize int    // Maximum text size in characters
	IsOnline    bool   // Whether the engine requires internet
}

// AudioPlayer plays one clip at a time.
type AudioPlayer interface {
	// Play starts playing clip, replacing anything already playing.
	Play(clip []byte) error

	// Wait blocks until the current clip finishes or is stopped.
	Wait(ctx context.Context) error

	// Stop silences the current clip.
	Stop() error

	// SetVolume sets the playback volume (0.0 to 1.0).
	SetVolume(volume float64) error

	// Close releases the audio device.
	Close() error
}

// AudioCache stores synthesized clips by key.
type AudioCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, clip []byte) error
}
