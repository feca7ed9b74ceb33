package assistant

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/koeck/voicegpt/internal/api"
	"github.com/koeck/voicegpt/internal/stt"
)

func TestState_Apply_Lifecycle(t *testing.T) {
	var (
		s  State
		fx Effects
	)

	s, fx = s.Apply(Started{ID: 1, Prompt: "hi"})
	if !s.Loading || !s.Streaming {
		t.Fatalf("after Started: %+v", s)
	}
	if fx.Interrupt {
		t.Error("first request should not interrupt")
	}

	s, fx = s.Apply(Chunk{ID: 1, Text: "Hello there. How "})
	if s.Loading {
		t.Error("loading should clear on the first chunk")
	}
	if !reflect.DeepEqual(fx.Speak, []string{"Hello there"}) {
		t.Errorf("speak = %q", fx.Speak)
	}

	s, fx = s.Apply(Chunk{ID: 1, Text: "are you? Bye"})
	if !reflect.DeepEqual(fx.Speak, []string{" How are you"}) {
		t.Errorf("speak = %q", fx.Speak)
	}
	if s.Response() != "Hello there. How are you? Bye" {
		t.Errorf("response = %q", s.Response())
	}

	s, fx = s.Apply(Ended{ID: 1})
	if !s.Idle() {
		t.Errorf("after Ended: %+v", s)
	}
	if fx.Remainder != " Bye" {
		t.Errorf("remainder = %q", fx.Remainder)
	}
	if s.Response() != "Hello there. How are you? Bye" {
		t.Errorf("response changed on end: %q", s.Response())
	}
	if s.Speech.Pending != "" {
		t.Errorf("pending = %q", s.Speech.Pending)
	}
}

func TestState_Apply_Stale(t *testing.T) {
	s, _ := State{}.Apply(Started{ID: 2, Prompt: "second"})

	tests := []struct {
		name string
		ev   Event
	}{
		{"chunk", Chunk{ID: 1, Text: "old."}},
		{"ended", Ended{ID: 1}},
		{"failed", Failed{ID: 1, Err: api.ErrRateLimited}},
		{"older start", Started{ID: 1, Prompt: "first"}},
		{"same start", Started{ID: 2, Prompt: "again"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, fx := s.Apply(tt.ev)
			if !reflect.DeepEqual(next, s) {
				t.Errorf("state changed: %+v", next)
			}
			if !reflect.DeepEqual(fx, Effects{}) {
				t.Errorf("effects = %+v", fx)
			}
		})
	}
}

func TestState_Apply_Replace(t *testing.T) {
	s, _ := State{}.Apply(Started{ID: 1, Prompt: "first"})
	s, _ = s.Apply(Chunk{ID: 1, Text: "Partial answer"})

	s, fx := s.Apply(Started{ID: 2, Prompt: "second"})
	if !fx.Interrupt {
		t.Error("a new request should interrupt speech")
	}
	if s.Response() != "" || s.Prompt != "second" {
		t.Errorf("state not replaced: %+v", s)
	}
}

func TestState_Apply_Failed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Notice
	}{
		{"rate limited", api.ErrRateLimited, NoticeRateLimited},
		{"transport", &api.StatusError{StatusCode: 500}, NoticeFailed},
		{"wrapped transport", fmt.Errorf("read: %w", api.ErrTransport), NoticeFailed},
		{"cancelled", context.Canceled, NoticeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := State{}.Apply(Started{ID: 1, Prompt: "hi"})
			s, _ = s.Apply(Chunk{ID: 1, Text: "Partial"})
			s, _ = s.Apply(Failed{ID: 1, Err: tt.err})

			if s.Notice != tt.want {
				t.Errorf("notice = %v, want %v", s.Notice, tt.want)
			}
			if !s.Idle() {
				t.Errorf("request still active: %+v", s)
			}
			if s.Response() != "Partial" {
				t.Errorf("partial response dropped: %q", s.Response())
			}
		})
	}
}

func TestState_Apply_ListenFailed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Notice
	}{
		{"permission", stt.ErrPermissionDenied, NoticePermissionDenied},
		{"wrapped permission", fmt.Errorf("whisper: %w", stt.ErrPermissionDenied), NoticePermissionDenied},
		{"no speech", stt.ErrNoSpeech, NoticeNoSpeech},
		{"other", fmt.Errorf("device busy"), NoticeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := State{}.Apply(ListenFailed{Err: tt.err})
			if s.Notice != tt.want {
				t.Errorf("notice = %v, want %v", s.Notice, tt.want)
			}

			s, _ = s.Apply(Dismissed{})
			if s.Notice != NoticeNone || s.Err != nil {
				t.Errorf("notice not dismissed: %+v", s)
			}
		})
	}
}

func TestNotice_String(t *testing.T) {
	tests := map[Notice]string{
		NoticeNone:             "",
		NoticeRateLimited:      "Rate limit exceeded",
		NoticeFailed:           "Something went wrong",
		NoticePermissionDenied: "Permission to record audio denied!",
		NoticeNoSpeech:         "Didn't catch that",
	}
	for n, want := range tests {
		if got := n.String(); got != want {
			t.Errorf("Notice(%d).String() = %q, want %q", n, got, want)
		}
	}
}
