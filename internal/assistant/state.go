package assistant

import (
	"context"
	"errors"

	"github.com/koeck/voicegpt/internal/api"
	"github.com/koeck/voicegpt/internal/speech"
	"github.com/koeck/voicegpt/internal/stt"
)

// Notice is a transient message shown to the user.
type Notice int

const (
	NoticeNone Notice = iota
	NoticeRateLimited
	NoticeFailed
	NoticePermissionDenied
	NoticeNoSpeech
)

// String returns the text shown for the notice.
func (n Notice) String() string {
	switch n {
	case NoticeRateLimited:
		return "Rate limit exceeded"
	case NoticeFailed:
		return "Something went wrong"
	case NoticePermissionDenied:
		return "Permission to record audio denied!"
	case NoticeNoSpeech:
		return "Didn't catch that"
	default:
		return ""
	}
}

// State is everything the interface needs to draw a request. The zero value
// is the idle state.
type State struct {
	// ID identifies the current request; 0 before the first one.
	ID uint64

	// Prompt is the text that was sent.
	Prompt string

	// Loading is true from the start of a request until its first chunk or
	// its end.
	Loading bool

	// Streaming is true while the response body is being read.
	Streaming bool

	// Speech holds the accumulated response and the sentence buffer.
	Speech speech.State

	// Notice is the message to show, if any.
	Notice Notice

	// Err is the error behind Notice.
	Err error
}

// Response returns the text to display.
func (s State) Response() string {
	return s.Speech.Response
}

// Idle reports whether no request is in flight.
func (s State) Idle() bool {
	return !s.Loading && !s.Streaming
}

// Event is something that happened to a request.
type Event interface {
	event()
}

// Started opens request ID for Prompt.
type Started struct {
	ID     uint64
	Prompt string
}

// Chunk is a fragment of the response to request ID.
type Chunk struct {
	ID   uint64
	Text string
}

// Ended marks the end of the response to request ID.
type Ended struct {
	ID uint64
}

// Failed reports that request ID could not be completed.
type Failed struct {
	ID  uint64
	Err error
}

// ListenFailed reports that no prompt could be captured.
type ListenFailed struct {
	Err error
}

// Dismissed clears the current notice.
type Dismissed struct{}

func (Started) event()      {}
func (Chunk) event()        {}
func (Ended) event()        {}
func (Failed) event()       {}
func (ListenFailed) event() {}
func (Dismissed) event()    {}

// Effects are the side effects a transition asks for.
type Effects struct {
	// Interrupt drops queued speech and stops the current utterance.
	Interrupt bool

	// Speak lists completed sentences, in order.
	Speak []string

	// Remainder is the unterminated tail left when the response ended.
	Remainder string
}

// Apply returns the state after ev and the effects to carry out. It never
// modifies s. Events for a request other than the current one are ignored,
// and so is a Started that is not newer than the current request.
func (s State) Apply(ev Event) (State, Effects) {
	switch ev := ev.(type) {
	case Started:
		if ev.ID <= s.ID {
			return s, Effects{}
		}
		next := State{
			ID:        ev.ID,
			Prompt:    ev.Prompt,
			Loading:   true,
			Streaming: true,
		}
		return next, Effects{Interrupt: s.ID != 0}

	case Chunk:
		if ev.ID != s.ID || !s.Streaming {
			return s, Effects{}
		}
		var sentences []string
		s.Speech, sentences = s.Speech.Feed(ev.Text)
		s.Loading = false
		return s, Effects{Speak: sentences}

	case Ended:
		if ev.ID != s.ID || !s.Streaming {
			return s, Effects{}
		}
		var fx Effects
		if next, rest, ok := s.Speech.Flush(); ok {
			s.Speech = next
			fx.Remainder = rest
		}
		s.Loading = false
		s.Streaming = false
		return s, fx

	case Failed:
		if ev.ID != s.ID || !s.Streaming {
			return s, Effects{}
		}
		s.Loading = false
		s.Streaming = false
		s.Notice, s.Err = requestNotice(ev.Err), ev.Err
		return s, Effects{}

	case ListenFailed:
		s.Loading = false
		s.Notice, s.Err = listenNotice(ev.Err), ev.Err
		return s, Effects{}

	case Dismissed:
		s.Notice, s.Err = NoticeNone, nil
		return s, Effects{}
	}

	return s, Effects{}
}

func requestNotice(err error) Notice {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return NoticeNone
	case errors.Is(err, api.ErrRateLimited):
		return NoticeRateLimited
	default:
		return NoticeFailed
	}
}

func listenNotice(err error) Notice {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return NoticeNone
	case errors.Is(err, stt.ErrPermissionDenied):
		return NoticePermissionDenied
	case errors.Is(err, stt.ErrNoSpeech):
		return NoticeNoSpeech
	default:
		return NoticeFailed
	}
}
