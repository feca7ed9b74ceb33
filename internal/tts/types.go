package tts

import (
	"time"
)

// EngineType represents the TTS engine selection
type EngineType string

const (
	// EnginePiper represents the Piper offline TTS engine
	EnginePiper EngineType = "piper"

	// EngineGoogle represents the gTTS online engine
	EngineGoogle EngineType = "gtts"

	// EngineNone disables speech output
	EngineNone EngineType = "none"
)

// State represents the controller state
type State int

const (
	// StateIdle indicates nothing is queued or playing
	StateIdle State = iota

	// StateSynthesizing indicates an utterance is being converted to audio
	StateSynthesizing

	// StatePlaying indicates audio is playing
	StatePlaying

	// StateClosed indicates the controller was closed
	StateClosed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSynthesizing:
		return "synthesizing"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config represents TTS configuration
type Config struct {
	// Engine is the selected TTS engine
	Engine EngineType

	// Speed is the playback speed multiplier (0.5 to 2.0)
	Speed float64

	// Volume is the playback volume (0.0 to 1.0)
	Volume float64

	// QueueSize bounds the number of pending utterances
	QueueSize int

	// Piper contains Piper-specific configuration
	Piper PiperConfig

	// GTTS contains gTTS-specific configuration
	GTTS GTTSConfigSection
}

// PiperConfig contains Piper engine configuration
type PiperConfig struct {
	// Model is the path to the Piper .onnx model
	Model string

	// Speaker is the speaker ID for multi-speaker models
	Speaker string
}

// GTTSConfigSection contains gTTS configuration
type GTTSConfigSection struct {
	// Language is the language code (e.g., "en", "es", "fr")
	Language string

	// Slow enables slower speech pace
	Slow bool

	// RequestsPerMinute is the rate limit for requests
	RequestsPerMinute int
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Engine:    EngineNone,
		Speed:     1.0,
		Volume:    1.0,
		QueueSize: 256,
		GTTS: GTTSConfigSection{
			Language:          "en",
			RequestsPerMinute: 50,
		},
	}
}

// ControllerStats tracks controller activity
type ControllerStats struct {
	Spoken       int64         // utterances played to the end or stopped
	Synthesized  int64         // clips produced by the engine
	CacheHits    int64         // clips served from the cache
	Skipped      int64         // utterances dropped by a flush or stop
	Errors       int64         // synthesis or playback failures
	PlaybackTime time.Duration // total time spent playing
	LastActivity time.Time
}
