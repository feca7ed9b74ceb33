package audio

import (
	"errors"
	"time"
)

// ErrClosed is returned by a player that has been closed.
var ErrClosed = errors.New("player is closed")

// ErrEmptyClip is returned when there is nothing to play.
var ErrEmptyClip = errors.New("audio clip is empty")

// PlayerState is the playback state of a player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StateClosed
)

func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClipDuration returns how long a PCM clip plays.
func ClipDuration(size, sampleRate, channels, bitDepth int) time.Duration {
	frame := channels * bitDepth / 8
	if frame <= 0 || sampleRate <= 0 {
		return 0
	}
	return time.Duration(size/frame) * time.Second / time.Duration(sampleRate)
}
