package engines

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/koeck/voicegpt/internal/tts"
	"golang.org/x/time/rate"
)

const (
	gttsMaxTextSize  = 5000
	gttsSampleRate   = 24000
	gttsTimeout      = 30 * time.Second
	ffmpegTimeout    = 15 * time.Second
	gttsRequestLimit = 50
)

// GTTSConfig holds configuration for the gTTS engine.
type GTTSConfig struct {
	// Binary is the gtts-cli executable (defaults to "gtts-cli")
	Binary string

	// FFmpeg is the ffmpeg executable (defaults to "ffmpeg")
	FFmpeg string

	// Language code (e.g., "en", "es", "fr") - defaults to "en"
	Language string

	// Slow speech (--slow flag)
	Slow bool

	// SampleRate of the PCM output (defaults to 24000)
	SampleRate int

	// RequestsPerMinute throttles calls to Google (defaults to 50)
	RequestsPerMinute int

	Logger *log.Logger
}

// GTTSEngine synthesizes speech with gtts-cli and converts the MP3 it
// returns to PCM with ffmpeg. It needs no API key.
type GTTSEngine struct {
	binary     string
	ffmpeg     string
	language   string
	slow       bool
	sampleRate int
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewGTTSEngine creates a gTTS engine.
func NewGTTSEngine(config GTTSConfig) (*GTTSEngine, error) {
	if config.Binary == "" {
		config.Binary = "gtts-cli"
	}
	if config.FFmpeg == "" {
		config.FFmpeg = "ffmpeg"
	}
	if config.Language == "" {
		config.Language = "en"
	}
	if config.SampleRate == 0 {
		config.SampleRate = gttsSampleRate
	}
	if config.RequestsPerMinute < 0 {
		return nil, fmt.Errorf("requests per minute must not be negative, got %d", config.RequestsPerMinute)
	}
	if config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = gttsRequestLimit
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	return &GTTSEngine{
		binary:     config.Binary,
		ffmpeg:     config.FFmpeg,
		language:   config.Language,
		slow:       config.Slow,
		sampleRate: config.SampleRate,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
		logger:     config.Logger,
	}, nil
}

// Synthesize converts text to raw PCM: text → gtts-cli → MP3 → ffmpeg → PCM.
func (e *GTTSEngine) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if err := checkText(text, gttsMaxTextSize); err != nil {
		return nil, err
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	start := time.Now()
	mp3, err := e.mp3(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("MP3 generation failed: %w", err)
	}

	pcm, err := e.pcm(ctx, mp3, speed)
	if err != nil {
		return nil, fmt.Errorf("MP3 to PCM conversion failed: %w", err)
	}

	e.logger.Debug("gtts synthesized", "chars", len(text), "mp3", len(mp3), "pcm", len(pcm), "took", time.Since(start))
	return pcm, nil
}

func (e *GTTSEngine) mp3(ctx context.Context, text string) ([]byte, error) {
	args := []string{text, "-l", e.language}
	if e.slow {
		args = append(args, "--slow")
	}
	args = append(args, "-o", "-")

	return run(ctx, gttsTimeout, nil, e.binary, args...)
}

func (e *GTTSEngine) pcm(ctx context.Context, mp3 []byte, speed float64) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(e.sampleRate),
		"-ac", "1",
	}
	if speed != 1.0 {
		args = append(args, "-filter:a", "atempo="+strconv.FormatFloat(tts.Tempo(speed), 'f', 2, 64))
	}
	args = append(args, "pipe:1")

	pcm, err := run(ctx, ffmpegTimeout, bytes.NewReader(mp3), e.ffmpeg, args...)
	if err != nil {
		return nil, err
	}
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	return pcm, nil
}

// Info returns engine capabilities and configuration.
func (e *GTTSEngine) Info() tts.EngineInfo {
	voice := e.language
	if e.slow {
		voice += "-slow"
	}
	return tts.EngineInfo{
		Name:        "gtts",
		Voice:       voice,
		SampleRate:  e.sampleRate,
		Channels:    1,
		BitDepth:    16,
		MaxTextSize: gttsMaxTextSize,
		IsOnline:    true,
	}
}

// Validate checks that gtts-cli and ffmpeg are available.
func (e *GTTSEngine) Validate() error {
	if err := lookPath(e.binary); err != nil {
		return err
	}
	return lookPath(e.ffmpeg)
}

// Close is a no-op; each synthesis runs its own processes.
func (e *GTTSEngine) Close() error {
	return nil
}

var _ tts.Engine = (*GTTSEngine)(nil)
