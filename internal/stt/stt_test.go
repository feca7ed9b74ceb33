package stt

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestFirst(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
		wantErr    error
	}{
		{"first wins", []string{" what time is it ", "what time is this"}, "what time is it", nil},
		{"none", nil, "", ErrNoSpeech},
		{"blank", []string{"  "}, "", ErrNoSpeech},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := First(tt.candidates)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("First() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("First() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLineRecognizer(t *testing.T) {
	r := NewLineRecognizer(strings.NewReader("what time is it\n\nlast one"))
	ctx := context.Background()

	got, err := r.Recognize(ctx)
	if err != nil || !reflect.DeepEqual(got, []string{"what time is it"}) {
		t.Errorf("first line = %q, %v", got, err)
	}

	got, err = r.Recognize(ctx)
	if err != nil || len(got) != 0 {
		t.Errorf("blank line = %q, %v", got, err)
	}

	got, err = r.Recognize(ctx)
	if err != nil || !reflect.DeepEqual(got, []string{"last one"}) {
		t.Errorf("unterminated line = %q, %v", got, err)
	}

	if _, err = r.Recognize(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("after input error = %v, want io.EOF", err)
	}
}

func TestListen(t *testing.T) {
	text, err := Listen(context.Background(), NewLineRecognizer(strings.NewReader("\n")))
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Listen() = %q, %v, want ErrNoSpeech", text, err)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandRecognizer(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name    string
		args    []string
		lang    string
		want    []string
		wantErr error
	}{
		{
			name: "candidates in order",
			args: []string{"-c", "echo 'turn on the lights'; echo; echo 'turn of the lights'"},
			want: []string{"turn on the lights", "turn of the lights"},
		},
		{
			name: "language placeholder",
			args: []string{"-c", "echo {lang}"},
			lang: "de",
			want: []string{"de"},
		},
		{
			name:    "no permission",
			args:    []string{"-c", "exit 77"},
			wantErr: ErrPermissionDenied,
		},
		{
			name: "no output",
			args: []string{"-c", "true"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewCommandRecognizer(CommandConfig{Command: "sh", Args: tt.args, Language: tt.lang})
			if err != nil {
				t.Fatalf("NewCommandRecognizer() error = %v", err)
			}

			got, err := r.Recognize(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Recognize() error = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Recognize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandRecognizer_Failure(t *testing.T) {
	requireShell(t)

	r, _ := NewCommandRecognizer(CommandConfig{Command: "sh", Args: []string{"-c", "echo broken >&2; exit 3"}})
	_, err := r.Recognize(context.Background())
	if err == nil || errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Recognize() error = %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %q does not carry stderr", err)
	}
}

func TestCommandRecognizer_NotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recorder")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	r, _ := NewCommandRecognizer(CommandConfig{Command: path})
	if _, err := r.Recognize(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Recognize() error = %v, want ErrPermissionDenied", err)
	}
}

func TestCommandRecognizer_Timeout(t *testing.T) {
	requireShell(t)

	r, _ := NewCommandRecognizer(CommandConfig{
		Command: "sh",
		Args:    []string{"-c", "sleep 5"},
		Timeout: 100 * time.Millisecond,
	})

	start := time.Now()
	_, err := r.Recognize(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Recognize() error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("recognizer was not stopped in time")
	}
}

func TestNewCommandRecognizer_RequiresCommand(t *testing.T) {
	if _, err := NewCommandRecognizer(CommandConfig{}); err == nil {
		t.Error("expected an error without a command")
	}
}
