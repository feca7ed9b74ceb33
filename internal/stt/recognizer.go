package stt

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoSpeech is returned when nothing was recognized.
	ErrNoSpeech = errors.New("no speech recognized")

	// ErrPermissionDenied is returned when the recorder may not use the
	// microphone.
	ErrPermissionDenied = errors.New("permission to record audio denied")
)

// Recognizer listens once and returns candidate transcriptions, best first.
type Recognizer interface {
	Recognize(ctx context.Context) ([]string, error)
}

// First returns the first candidate, trimmed. It returns ErrNoSpeech when
// there is none or it is blank.
func First(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoSpeech
	}
	text := strings.TrimSpace(candidates[0])
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// Listen runs r and returns its first candidate.
func Listen(ctx context.Context, r Recognizer) (string, error) {
	candidates, err := r.Recognize(ctx)
	if err != nil {
		return "", err
	}
	return First(candidates)
}
