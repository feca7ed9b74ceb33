package audio

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// MockPlayer stands in for Player in tests. It records every clip and
// "plays" each one for a fixed duration without touching a device.
type MockPlayer struct {
	mu       sync.Mutex
	played   [][]byte
	current  chan struct{}
	timer    *time.Timer
	duration time.Duration
	volume   float64
	playErr  error

	state atomic.Int32
	stops atomic.Int64

	// OnPlay, when set, is called with every clip passed to Play.
	OnPlay func(clip []byte)
}

// NewMockPlayer creates a mock whose clips each last duration. A zero
// duration finishes clips immediately.
func NewMockPlayer(duration time.Duration) *MockPlayer {
	mp := &MockPlayer{duration: duration, volume: 1}
	mp.state.Store(int32(StateStopped))
	return mp
}

// FailNextPlays makes Play return err until it is called with nil.
func (mp *MockPlayer) FailNextPlays(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.playErr = err
}

// Play records clip and starts its simulated playback.
func (mp *MockPlayer) Play(clip []byte) error {
	if len(clip) == 0 {
		return ErrEmptyClip
	}

	mp.mu.Lock()
	if PlayerState(mp.state.Load()) == StateClosed {
		mp.mu.Unlock()
		return ErrClosed
	}
	if mp.playErr != nil {
		err := mp.playErr
		mp.mu.Unlock()
		return err
	}

	mp.stopLocked()
	mp.played = append(mp.played, slices.Clone(clip))

	done := make(chan struct{})
	mp.current = done
	mp.state.Store(int32(StatePlaying))
	mp.timer = time.AfterFunc(mp.duration, func() {
		mp.mu.Lock()
		defer mp.mu.Unlock()
		if mp.current == done {
			mp.current = nil
			mp.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))
			close(done)
		}
	})
	onPlay := mp.OnPlay
	mp.mu.Unlock()

	if onPlay != nil {
		onPlay(clip)
	}
	return nil
}

// Wait blocks until the current clip ends or is stopped.
func (mp *MockPlayer) Wait(ctx context.Context) error {
	mp.mu.Lock()
	done := mp.current
	mp.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the current clip.
func (mp *MockPlayer) Stop() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.stopLocked()
	return nil
}

func (mp *MockPlayer) stopLocked() {
	if mp.current == nil {
		return
	}
	mp.timer.Stop()
	close(mp.current)
	mp.current = nil
	mp.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))
	mp.stops.Add(1)
}

// SetVolume sets the volume from 0 to 1.
func (mp *MockPlayer) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.volume = volume
	return nil
}

// Volume returns the volume.
func (mp *MockPlayer) Volume() float64 {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.volume
}

// Close stops playback; later calls to Play fail.
func (mp *MockPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.stopLocked()
	mp.state.Store(int32(StateClosed))
	return nil
}

// IsPlaying reports whether a clip is playing.
func (mp *MockPlayer) IsPlaying() bool {
	return mp.State() == StatePlaying
}

// State returns the playback state.
func (mp *MockPlayer) State() PlayerState {
	return PlayerState(mp.state.Load())
}

// Played returns copies of every clip played so far.
func (mp *MockPlayer) Played() [][]byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	out := make([][]byte, len(mp.played))
	for i, clip := range mp.played {
		out[i] = slices.Clone(clip)
	}
	return out
}

// Stops returns how many clips were cut off before finishing.
func (mp *MockPlayer) Stops() int64 {
	return mp.stops.Load()
}
