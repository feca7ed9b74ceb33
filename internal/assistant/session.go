package assistant

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/koeck/voicegpt/internal/api"
	"github.com/koeck/voicegpt/internal/speech"
	"github.com/koeck/voicegpt/internal/stt"
	"github.com/koeck/voicegpt/internal/tts"
)

// FragmentStream is a response being read.
type FragmentStream interface {
	Recv() (string, error)
	Close() error
}

// Streamer opens a response stream for a prompt.
type Streamer interface {
	Stream(ctx context.Context, prompt string) (FragmentStream, error)
}

type clientStreamer struct {
	client *api.Client
}

// NewStreamer adapts an API client to a Streamer.
func NewStreamer(client *api.Client) Streamer {
	return clientStreamer{client: client}
}

func (c clientStreamer) Stream(ctx context.Context, prompt string) (FragmentStream, error) {
	s, err := c.client.Stream(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Options configure a Session.
type Options struct {
	// Streamer answers prompts (required)
	Streamer Streamer

	// Speaker reads completed sentences aloud (defaults to a silent speaker)
	Speaker tts.Speaker

	// FlushRemainder speaks the unterminated tail when a response ends
	FlushRemainder bool

	// StripMarkdown removes markdown formatting before speaking
	StripMarkdown bool

	// OnUpdate is called on the loop goroutine with every new state
	OnUpdate func(State)

	// Logger overrides the default logger (optional)
	Logger *log.Logger
}

// stopRequest cancels the current request without starting another.
type stopRequest struct{}

func (stopRequest) event() {}

// Session runs the request lifecycle. A single loop goroutine owns the state
// and is the only caller of the speaker; network reads happen on their own
// goroutines and post events to the loop. Starting a request cancels the one
// in flight.
type Session struct {
	streamer       Streamer
	speaker        tts.Speaker
	flushRemainder bool
	stripMarkdown  bool
	onUpdate       func(State)
	logger         *log.Logger

	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	nextID uint64
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup

	state State
}

// NewSession creates a session. Run must be called for events to be
// processed.
func NewSession(opts Options) (*Session, error) {
	if opts.Streamer == nil {
		return nil, errors.New("assistant: a streamer is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Speaker == nil {
		opts.Speaker = tts.NewSilent(opts.Logger)
	}

	return &Session{
		streamer:       opts.Streamer,
		speaker:        opts.Speaker,
		flushRemainder: opts.FlushRemainder,
		stripMarkdown:  opts.StripMarkdown,
		onUpdate:       opts.OnUpdate,
		logger:         opts.Logger,
		events:         make(chan Event, 64),
		done:           make(chan struct{}),
	}, nil
}

// Run processes events until ctx is done. The request in flight, if any, is
// cancelled on return. Run must only be called once.
func (s *Session) Run(ctx context.Context) error {
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

// Ask starts a request for prompt and returns its ID. The request in
// flight, if any, is cancelled and its queued speech dropped. A blank prompt
// is reported as ErrNoSpeech and returns 0.
func (s *Session) Ask(prompt string) uint64 {
	if strings.TrimSpace(prompt) == "" {
		s.post(ListenFailed{Err: stt.ErrNoSpeech})
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.nextID++
	id := s.nextID
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.request(ctx, id, prompt)

	s.logger.Debug("request started", "id", id)
	return id
}

// Cancel aborts the request in flight and stops speech.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.post(stopRequest{})
}

// Silence stops speech without touching the request in flight.
func (s *Session) Silence() {
	s.post(stopRequest{})
}

// ReportListenError reports that capturing a prompt failed.
func (s *Session) ReportListenError(err error) {
	s.post(ListenFailed{Err: err})
}

// Dismiss clears the current notice.
func (s *Session) Dismiss() {
	s.post(Dismissed{})
}

func (s *Session) request(ctx context.Context, id uint64, prompt string) {
	defer s.wg.Done()

	s.post(Started{ID: id, Prompt: prompt})

	stream, err := s.streamer.Stream(ctx, prompt)
	if err != nil {
		s.post(Failed{ID: id, Err: err})
		return
	}
	defer stream.Close() //nolint:errcheck

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			s.post(Ended{ID: id})
			return
		}
		if err != nil {
			s.post(Failed{ID: id, Err: err})
			return
		}
		s.post(Chunk{ID: id, Text: chunk})
	}
}

func (s *Session) post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) handle(ev Event) {
	if _, ok := ev.(stopRequest); ok {
		if err := s.speaker.Stop(); err != nil {
			s.logger.Warn("unable to stop speech", "error", err)
		}
		return
	}

	next, fx := s.state.Apply(ev)
	s.state = next

	if fx.Interrupt {
		if err := s.speaker.Stop(); err != nil {
			s.logger.Warn("unable to stop speech", "error", err)
		}
	}
	for _, sentence := range fx.Speak {
		s.say(sentence)
	}
	if fx.Remainder != "" && s.flushRemainder {
		s.say(fx.Remainder)
	}

	if f, ok := ev.(Failed); ok && next.ID == f.ID && next.Notice != NoticeNone {
		s.logger.Error("request failed", "id", f.ID, "error", f.Err)
	}

	if s.onUpdate != nil {
		s.onUpdate(next)
	}
}

func (s *Session) say(sentence string) {
	text := strings.TrimSpace(sentence)
	if s.stripMarkdown {
		text = speech.Speakable(text)
	}
	if text == "" {
		return
	}
	if err := s.speaker.Speak(text, tts.QueueAdd); err != nil {
		s.logger.Warn("unable to speak", "error", err)
	}
}

func (s *Session) shutdown() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}
