package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// SupportedSampleRates are the rates the player accepts. Piper voices
// produce 22050 Hz, the gTTS pipeline 24000 Hz.
var SupportedSampleRates = []int{16000, 22050, 24000, 44100, 48000}

// pollInterval is how often playback completion is checked.
const pollInterval = 10 * time.Millisecond

// PlayerConfig describes the PCM format of every clip.
type PlayerConfig struct {
	SampleRate int // one of SupportedSampleRates
	Channels   int // 1 or 2
	BitDepth   int // 16
	BufferSize int // device buffer in bytes
}

// DefaultPlayerConfig matches Piper's output.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 22050,
		Channels:   1,
		BitDepth:   16,
		BufferSize: 4096,
	}
}

// Validate checks that the format can be played.
func (c PlayerConfig) Validate() error {
	if !slices.Contains(SupportedSampleRates, c.SampleRate) {
		return fmt.Errorf("sample rate must be one of %v Hz, got %d", SupportedSampleRates, c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", c.Channels)
	}
	if c.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", c.BitDepth)
	}
	if c.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// Player plays clips through oto. Only one oto context can exist per
// process, so only one Player should be created.
type Player struct {
	config  PlayerConfig
	context *oto.Context

	mu      sync.Mutex
	current *playback

	state  atomic.Int32
	volume atomic.Uint64 // volume * 1e6
}

// playback is one clip being played. The clip is referenced until playback
// ends so that the device never reads freed memory.
type playback struct {
	player   *oto.Player
	clip     []byte
	duration time.Duration
	done     chan struct{}
	once     sync.Once
}

func (pb *playback) finish() {
	pb.once.Do(func() { close(pb.done) })
}

// NewPlayer opens the audio device for config.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	frame := config.Channels * config.BitDepth / 8
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize/frame) * time.Second / time.Duration(config.SampleRate),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open audio device: %w", err)
	}
	<-ready

	p := &Player{config: config, context: ctx}
	p.state.Store(int32(StateStopped))
	p.volume.Store(1e6)
	return p, nil
}

// Play starts clip, cutting off whatever was playing.
func (p *Player) Play(clip []byte) error {
	if len(clip) == 0 {
		return ErrEmptyClip
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == StateClosed {
		return ErrClosed
	}
	p.stopLocked()

	owned := slices.Clone(clip)
	pb := &playback{
		clip:     owned,
		duration: ClipDuration(len(owned), p.config.SampleRate, p.config.Channels, p.config.BitDepth),
		done:     make(chan struct{}),
	}
	pb.player = p.context.NewPlayer(bytes.NewReader(owned))
	pb.player.SetVolume(p.Volume())
	pb.player.Play()

	p.current = pb
	p.state.Store(int32(StatePlaying))

	go p.watch(pb)
	return nil
}

// watch marks pb finished once the device has drained it.
func (p *Player) watch(pb *playback) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pb.done:
			return
		case <-ticker.C:
			if pb.player.IsPlaying() {
				continue
			}
			p.mu.Lock()
			if p.current == pb {
				p.current = nil
				_ = pb.player.Close()
				p.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))
			}
			p.mu.Unlock()
			pb.finish()
			return
		}
	}
}

// Wait blocks until the current clip has finished or was stopped.
func (p *Player) Wait(ctx context.Context) error {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()

	if pb == nil {
		return nil
	}
	select {
	case <-pb.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cuts off the current clip.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	pb := p.current
	if pb == nil {
		return
	}
	p.current = nil
	pb.player.Pause()
	_ = pb.player.Close()
	pb.finish()
	p.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))
}

// IsPlaying reports whether a clip is playing.
func (p *Player) IsPlaying() bool {
	return p.State() == StatePlaying
}

// State returns the playback state.
func (p *Player) State() PlayerState {
	return PlayerState(p.state.Load())
}

// SetVolume sets the volume from 0 to 1.
func (p *Player) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	p.volume.Store(uint64(volume * 1e6))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.player.SetVolume(volume)
	}
	return nil
}

// Volume returns the volume from 0 to 1.
func (p *Player) Volume() float64 {
	return float64(p.volume.Load()) / 1e6
}

// Close stops playback. The oto context lives until the process exits.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.state.Store(int32(StateClosed))
	return nil
}
