package tts

import (
	"fmt"
	"strconv"
	"sync"
)

const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

var speedSteps = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0}

// SpeedController holds the speech speed multiplier and steps it through
// predefined values.
type SpeedController struct {
	mu    sync.RWMutex
	speed float64
}

// NewSpeedController creates a speed controller at normal speed.
func NewSpeedController() *SpeedController {
	return &SpeedController{speed: 1.0}
}

// Speed returns the current speed multiplier.
func (s *SpeedController) Speed() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speed
}

// SetSpeed sets the speed multiplier (0.5 to 2.0).
func (s *SpeedController) SetSpeed(speed float64) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("%w, got %.2f", ErrInvalidSpeed, speed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = speed
	return nil
}

// Increase moves to the next faster step and returns the new speed.
func (s *SpeedController) Increase() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, step := range speedSteps {
		if step > s.speed {
			s.speed = step
			break
		}
	}
	return s.speed
}

// Decrease moves to the next slower step and returns the new speed.
func (s *SpeedController) Decrease() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(speedSteps) - 1; i >= 0; i-- {
		if speedSteps[i] < s.speed {
			s.speed = speedSteps[i]
			break
		}
	}
	return s.speed
}

// String returns a human-readable speed, e.g. "1.25x".
func (s *SpeedController) String() string {
	return strconv.FormatFloat(s.Speed(), 'f', -1, 64) + "x"
}

// LengthScale converts a speed multiplier to Piper's length-scale, which is
// inversely proportional to speed.
func LengthScale(speed float64) float64 {
	if speed <= 0 {
		return 1
	}
	return 1 / speed
}

// Tempo clamps speed to the range ffmpeg's atempo filter accepts.
func Tempo(speed float64) float64 {
	return min(max(speed, MinSpeed), MaxSpeed)
}
