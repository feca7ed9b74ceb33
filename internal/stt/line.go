package stt

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// LineRecognizer treats one typed line as the transcription. It is the
// fallback when no recognizer command is configured.
type LineRecognizer struct {
	mu sync.Mutex
	r  *bufio.Reader
}

// NewLineRecognizer reads lines from r.
func NewLineRecognizer(r io.Reader) *LineRecognizer {
	return &LineRecognizer{r: bufio.NewReader(r)}
}

// Recognize reads the next line. The read cannot be interrupted: if ctx
// ends first, ctx.Err() is returned and the line read in the background is
// discarded.
func (l *LineRecognizer) Recognize(ctx context.Context) ([]string, error) {
	type result struct {
		line string
		err  error
	}

	done := make(chan result, 1)
	go func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		line, err := l.r.ReadString('\n')
		done <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			return nil, res.err
		}
		line := strings.TrimSpace(res.line)
		if line == "" {
			if errors.Is(res.err, io.EOF) {
				return nil, io.EOF
			}
			return nil, nil
		}
		return []string{line}, nil
	}
}
