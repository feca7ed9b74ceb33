package api

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding/unicode"
)

// Stream is a response body being read as UTF-8 text. Fragments are handed
// out in arrival order and never split a multi-byte character.
type Stream struct {
	// RequestID is the X-Request-ID sent with the call.
	RequestID string

	ctx       context.Context
	cancel    context.CancelFunc
	fragments chan string
	err       error
	logger    *log.Logger
}

func newStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, readSize int, requestID string, logger *log.Logger) *Stream {
	s := &Stream{
		RequestID: requestID,
		ctx:       ctx,
		cancel:    cancel,
		fragments: make(chan string),
		logger:    logger,
	}
	go s.read(body, readSize)
	return s
}

func (s *Stream) read(body io.ReadCloser, readSize int) {
	defer close(s.fragments)
	defer body.Close() //nolint:errcheck

	r := unicode.UTF8.NewDecoder().Reader(body)
	buf := make([]byte, readSize)
	total := 0

	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += n
			select {
			case s.fragments <- string(buf[:n]):
			case <-s.ctx.Done():
				s.err = s.ctx.Err()
				return
			}
		}

		if errors.Is(err, io.EOF) {
			s.logger.Debug("prompt response complete", "id", s.RequestID, "bytes", total)
			return
		}
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				s.err = ctxErr
				return
			}
			s.err = transportError("read body", err)
			return
		}
	}
}

// Recv returns the next fragment. It returns io.EOF once the body has been
// read completely, the context error after Close or cancellation, or an
// error matching ErrTransport when the connection fails mid-body.
func (s *Stream) Recv() (string, error) {
	fragment, ok := <-s.fragments
	if !ok {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	return fragment, nil
}

// Close aborts the request. It is safe to call more than once.
func (s *Stream) Close() error {
	s.cancel()
	return nil
}
