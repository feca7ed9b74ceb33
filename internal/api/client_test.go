package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

func readAll(t *testing.T, s *Stream) []string {
	t.Helper()
	var fragments []string
	for {
		f, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return fragments
		}
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		fragments = append(fragments, f)
	}
}

func newTestClient(t *testing.T, url string, readSize int) *Client {
	t.Helper()
	c, err := NewClient(Config{Endpoint: url, ReadSize: readSize})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"default endpoint", "", false},
		{"http", "http://localhost:8080/api/prompt", false},
		{"https", "https://example.com/api/prompt", false},
		{"unsupported scheme", "ftp://example.com/prompt", true},
		{"malformed", "http://[::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(Config{Endpoint: tt.endpoint})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.endpoint == "" && c.Endpoint() != DefaultEndpoint {
				t.Errorf("Endpoint() = %q, want %q", c.Endpoint(), DefaultEndpoint)
			}
		})
	}
}

func TestClient_Stream_Request(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json; charset=utf-8" {
			t.Errorf("Content-Type = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}

		body, _ := io.ReadAll(r.Body)
		var req PromptRequest
		if err := sonic.Unmarshal(body, &req); err != nil {
			t.Errorf("request body %q: %v", body, err)
		}
		if req.Prompt != "What is Go?" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		_, _ = io.WriteString(w, "Go is a language.")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	s, err := c.Stream(context.Background(), "What is Go?")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer s.Close() //nolint:errcheck

	if got := strings.Join(readAll(t, s), ""); got != "Go is a language." {
		t.Errorf("body = %q", got)
	}
	if s.RequestID == "" {
		t.Error("stream has no request id")
	}
}

func TestClient_Stream_Chunked(t *testing.T) {
	parts := []string{"Hel", "lo there", ". How ", "are", " you?"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		for _, p := range parts {
			_, _ = io.WriteString(w, p)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	s, err := c.Stream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer s.Close() //nolint:errcheck

	fragments := readAll(t, s)
	if got, want := strings.Join(fragments, ""), strings.Join(parts, ""); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if len(fragments) < 2 {
		t.Errorf("expected the body in several fragments, got %d", len(fragments))
	}
}

func TestClient_Stream_SplitRune(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("caf\xc3"))
		flusher.Flush()
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte("\xa9 au lait"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 4)
	s, err := c.Stream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer s.Close() //nolint:errcheck

	fragments := readAll(t, s)
	for _, f := range fragments {
		if !utf8.ValidString(f) {
			t.Errorf("fragment %q is not valid UTF-8", f)
		}
	}
	if got := strings.Join(fragments, ""); got != "café au lait" {
		t.Errorf("body = %q", got)
	}
}

func TestClient_Stream_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	_, err := c.Stream(context.Background(), "hi")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Stream() error = %v, want ErrRateLimited", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Error("rate limit should not match ErrTransport")
	}
}

func TestClient_Stream_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	_, err := c.Stream(context.Background(), "hi")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Stream() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if statusErr.RequestID == "" {
		t.Error("StatusError has no request id")
	}
	if !errors.Is(err, ErrTransport) {
		t.Error("status error should match ErrTransport")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q does not mention the status", err)
	}
}

func TestClient_Stream_EmptyPrompt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	if _, err := c.Stream(context.Background(), "  \n"); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("Stream() error = %v, want ErrEmptyPrompt", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times", calls.Load())
	}
}

func TestClient_Stream_HeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Stream(context.Background(), "hi")
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Stream() error = %v, want ErrTransport", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stream() error = %v, want DeadlineExceeded", err)
	}
}

func TestStream_Close(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "first")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	s, err := c.Stream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if f, err := s.Recv(); err != nil || f != "first" {
		t.Fatalf("Recv() = %q, %v", f, err)
	}

	_ = s.Close()
	_ = s.Close()

	done := make(chan error, 1)
	go func() {
		_, err := s.Recv()
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Recv() after Close error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv() did not return after Close")
	}
}

func TestClient_Send(t *testing.T) {
	t.Run("chunks are posted in order", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			for _, p := range []string{"One. ", "Two."} {
				_, _ = io.WriteString(w, p)
				w.(http.Flusher).Flush()
				time.Sleep(5 * time.Millisecond)
			}
		}))
		defer srv.Close()

		var (
			posts int
			got   strings.Builder
		)
		post := func(f func()) {
			posts++
			f()
		}

		c := newTestClient(t, srv.URL, 0)
		err := c.Send(context.Background(), "hi", Callbacks{
			OnChunk: func(chunk string) { got.WriteString(chunk) },
			OnRateLimited: func() {
				t.Error("unexpected rate limit")
			},
		}, post)
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if got.String() != "One. Two." {
			t.Errorf("chunks = %q", got.String())
		}
		if posts == 0 {
			t.Error("callbacks were not posted")
		}
	})

	t.Run("rate limit is reported once", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, "Too many requests. Try later.")
		}))
		defer srv.Close()

		var limited, chunks int
		c := newTestClient(t, srv.URL, 0)
		err := c.Send(context.Background(), "hi", Callbacks{
			OnChunk:       func(string) { chunks++ },
			OnRateLimited: func() { limited++ },
		}, nil)
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if limited != 1 {
			t.Errorf("OnRateLimited called %d times, want 1", limited)
		}
		if chunks != 0 {
			t.Errorf("OnChunk called %d times, want 0", chunks)
		}
	})

	t.Run("server error is returned", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, 0)
		err := c.Send(context.Background(), "hi", Callbacks{}, nil)
		if !errors.Is(err, ErrTransport) {
			t.Errorf("Send() error = %v, want ErrTransport", err)
		}
	})
}
