package engines

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/koeck/voicegpt/internal/tts"
)

var quiet = log.New(io.Discard)

// script writes an executable shell script into dir and returns its path.
func script(t *testing.T, dir, name, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func readArgs(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(b))
}

func testModel(t *testing.T, dir string) string {
	t.Helper()
	model := filepath.Join(dir, "en_US-amy-medium.onnx")
	if err := os.WriteFile(model, []byte("model"), 0o600); err != nil {
		t.Fatal(err)
	}
	return model
}

func TestNewPiperEngine(t *testing.T) {
	dir := t.TempDir()
	model := testModel(t, dir)

	tests := []struct {
		name    string
		config  PiperConfig
		wantErr bool
	}{
		{"valid", PiperConfig{Model: model}, false},
		{"no model", PiperConfig{}, true},
		{"missing model", PiperConfig{Model: filepath.Join(dir, "nope.onnx")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPiperEngine(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPiperEngine() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPiperEngine_Synthesize(t *testing.T) {
	dir := t.TempDir()
	model := testModel(t, dir)
	argsFile := filepath.Join(dir, "args")
	stdinFile := filepath.Join(dir, "stdin")
	bin := script(t, dir, "piper", `echo "$@" > `+argsFile+`; cat > `+stdinFile+`; printf 'abcde'`)

	e, err := NewPiperEngine(PiperConfig{Binary: bin, Model: model, Speaker: "3", Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}

	audio, err := e.Synthesize(context.Background(), "Hello there.", 2.0)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "abcd" {
		t.Errorf("audio = %q, want whole samples only", audio)
	}

	args := readArgs(t, argsFile)
	for _, want := range []string{"--model " + model, "--output-raw", "--length-scale 0.50", "--speaker 3"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if got := readArgs(t, stdinFile); got != "Hello there." {
		t.Errorf("stdin = %q", got)
	}

	info := e.Info()
	if info.Name != "piper" || info.Voice != "en_US-amy-medium.onnx#3" || info.SampleRate != 22050 {
		t.Errorf("Info() = %+v", info)
	}
}

func TestPiperEngine_Errors(t *testing.T) {
	dir := t.TempDir()
	model := testModel(t, dir)

	tests := []struct {
		name     string
		body     string
		text     string
		timeout  time.Duration
		wantCode tts.ErrorCode
	}{
		{"empty text", "printf x", "  ", 0, tts.ErrorCodeInvalidInput},
		{"too long", "printf x", strings.Repeat("a", piperMaxTextSize+1), 0, tts.ErrorCodeTextTooLong},
		{"timeout", "exec sleep 5", "Hi.", 100 * time.Millisecond, tts.ErrorCodeEngineTimeout},
		{"failure", "echo 'bad model' >&2; exit 1", "Hi.", 0, ""},
		{"no output", "cat > /dev/null", "Hi.", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := script(t, t.TempDir(), "piper", tt.body)
			e, _ := NewPiperEngine(PiperConfig{Binary: bin, Model: model, Timeout: tt.timeout, Logger: quiet})

			start := time.Now()
			_, err := e.Synthesize(context.Background(), tt.text, 1.0)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := tts.CodeOf(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q (%v)", got, tt.wantCode, err)
			}
			if time.Since(start) > 3*time.Second {
				t.Error("synthesis was not stopped in time")
			}
		})
	}
}

func TestPiperEngine_Validate(t *testing.T) {
	dir := t.TempDir()
	model := testModel(t, dir)

	e, _ := NewPiperEngine(PiperConfig{Binary: filepath.Join(dir, "missing-piper"), Model: model})
	err := e.Validate()
	if !errors.Is(err, tts.ErrEngineNotAvailable) || tts.CodeOf(err) != tts.ErrorCodeEngineUnavailable {
		t.Errorf("Validate() error = %v", err)
	}

	e, _ = NewPiperEngine(PiperConfig{Binary: script(t, dir, "piper", "exit 0"), Model: model})
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestNewGTTSEngine(t *testing.T) {
	if _, err := NewGTTSEngine(GTTSConfig{RequestsPerMinute: -1}); err == nil {
		t.Error("expected an error for a negative rate")
	}

	e, err := NewGTTSEngine(GTTSConfig{})
	if err != nil {
		t.Fatal(err)
	}
	info := e.Info()
	if info.Name != "gtts" || info.Voice != "en" || info.SampleRate != 24000 || !info.IsOnline {
		t.Errorf("Info() = %+v", info)
	}
}

func TestGTTSEngine_Synthesize(t *testing.T) {
	dir := t.TempDir()
	gttsArgs := filepath.Join(dir, "gtts-args")
	ffmpegArgs := filepath.Join(dir, "ffmpeg-args")

	e, err := NewGTTSEngine(GTTSConfig{
		Binary:   script(t, dir, "gtts-cli", `echo "$@" > `+gttsArgs+`; printf 'ID3mp3'`),
		FFmpeg:   script(t, dir, "ffmpeg", `echo "$@" > `+ffmpegArgs+`; cat; printf 'x'`),
		Language: "de",
		Slow:     true,
		Logger:   quiet,
	})
	if err != nil {
		t.Fatal(err)
	}

	pcm, err := e.Synthesize(context.Background(), "Guten Tag.", 1.5)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(pcm) != "ID3mp3" {
		t.Errorf("pcm = %q, want the converted stream trimmed to whole samples", pcm)
	}

	if got := readArgs(t, gttsArgs); got != "Guten Tag. -l de --slow -o -" {
		t.Errorf("gtts-cli args = %q", got)
	}
	args := readArgs(t, ffmpegArgs)
	for _, want := range []string{"-i pipe:0", "-f s16le", "-ar 24000", "-ac 1", "atempo=1.50", "pipe:1"} {
		if !strings.Contains(args, want) {
			t.Errorf("ffmpeg args %q missing %q", args, want)
		}
	}
	if e.Info().Voice != "de-slow" {
		t.Errorf("voice = %q", e.Info().Voice)
	}
}

func TestGTTSEngine_Failures(t *testing.T) {
	dir := t.TempDir()

	e, _ := NewGTTSEngine(GTTSConfig{
		Binary: script(t, dir, "gtts-cli", "echo 'connection refused' >&2; exit 1"),
		FFmpeg: script(t, dir, "ffmpeg", "cat"),
		Logger: quiet,
	})
	_, err := e.Synthesize(context.Background(), "Hello.", 1.0)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Synthesize() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Synthesize(ctx, "Hello.", 1.0); !errors.Is(err, context.Canceled) {
		t.Errorf("Synthesize() with cancelled context error = %v", err)
	}
}

func TestGTTSEngine_Validate(t *testing.T) {
	dir := t.TempDir()

	e, _ := NewGTTSEngine(GTTSConfig{
		Binary: script(t, dir, "gtts-cli", "exit 0"),
		FFmpeg: filepath.Join(dir, "missing-ffmpeg"),
	})
	if err := e.Validate(); !errors.Is(err, tts.ErrEngineNotAvailable) {
		t.Errorf("Validate() error = %v", err)
	}
}
