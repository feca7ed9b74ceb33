package tts

import (
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Silent is a Speaker that logs utterances instead of playing them.
type Silent struct {
	logger *log.Logger
	closed atomic.Bool
}

// NewSilent returns a silent speaker. A nil logger uses the default one.
func NewSilent(logger *log.Logger) *Silent {
	if logger == nil {
		logger = log.Default()
	}
	return &Silent{logger: logger}
}

func (s *Silent) Speak(text string, mode QueueMode) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.logger.Debug("speak", "mode", mode, "text", text)
	return nil
}

func (s *Silent) Stop() error {
	s.logger.Debug("stop speaking")
	return nil
}

func (s *Silent) Close() error {
	s.closed.Store(true)
	return nil
}
