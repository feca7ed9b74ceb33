package engines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/koeck/voicegpt/internal/tts"
)

const (
	piperMaxTextSize = 5000
	piperSampleRate  = 22050
	piperTimeout     = 10 * time.Second
)

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	// Binary is the piper executable (defaults to "piper")
	Binary string

	// Model file path (required)
	Model string

	// Config file path (defaults to the model path plus .json)
	ConfigPath string

	// Speaker ID for multi-speaker models (optional)
	Speaker string

	// SampleRate of the model output (defaults to 22050)
	SampleRate int

	// Timeout per synthesis (defaults to 10s)
	Timeout time.Duration

	Logger *log.Logger
}

// PiperEngine synthesizes speech with a fresh piper process per utterance.
type PiperEngine struct {
	binary     string
	model      string
	configPath string
	speaker    string
	sampleRate int
	timeout    time.Duration
	logger     *log.Logger
}

// NewPiperEngine creates a Piper engine. The model file must exist.
func NewPiperEngine(config PiperConfig) (*PiperEngine, error) {
	if config.Model == "" {
		return nil, errors.New("piper model path is required")
	}
	if _, err := os.Stat(config.Model); err != nil {
		return nil, fmt.Errorf("piper model not found: %w", err)
	}

	if config.Binary == "" {
		config.Binary = "piper"
	}
	if config.ConfigPath == "" {
		config.ConfigPath = config.Model + ".json"
		if _, err := os.Stat(config.ConfigPath); err != nil {
			config.ConfigPath = strings.TrimSuffix(config.Model, filepath.Ext(config.Model)) + ".json"
		}
	}
	if config.SampleRate == 0 {
		config.SampleRate = piperSampleRate
	}
	if config.Timeout == 0 {
		config.Timeout = piperTimeout
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	return &PiperEngine{
		binary:     config.Binary,
		model:      config.Model,
		configPath: config.ConfigPath,
		speaker:    config.Speaker,
		sampleRate: config.SampleRate,
		timeout:    config.Timeout,
		logger:     config.Logger,
	}, nil
}

// Synthesize converts text to raw PCM. Text is written to piper's stdin.
func (e *PiperEngine) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if err := checkText(text, piperMaxTextSize); err != nil {
		return nil, err
	}

	args := []string{
		"--model", e.model,
		"--output-raw",
		"--length-scale", strconv.FormatFloat(tts.LengthScale(speed), 'f', 2, 64),
	}
	if _, err := os.Stat(e.configPath); err == nil {
		args = append(args, "--config", e.configPath)
	}
	if e.speaker != "" {
		args = append(args, "--speaker", e.speaker)
	}

	start := time.Now()
	audio, err := run(ctx, e.timeout, strings.NewReader(text), e.binary, args...)
	if err != nil {
		return nil, err
	}
	if len(audio)%2 != 0 {
		audio = audio[:len(audio)-1]
	}

	e.logger.Debug("piper synthesized", "chars", len(text), "bytes", len(audio), "took", time.Since(start))
	return audio, nil
}

// Info returns engine capabilities and configuration.
func (e *PiperEngine) Info() tts.EngineInfo {
	voice := filepath.Base(e.model)
	if e.speaker != "" {
		voice += "#" + e.speaker
	}
	return tts.EngineInfo{
		Name:        "piper",
		Voice:       voice,
		SampleRate:  e.sampleRate,
		Channels:    1,
		BitDepth:    16,
		MaxTextSize: piperMaxTextSize,
		IsOnline:    false,
	}
}

// Validate checks that the piper binary and the model are available.
func (e *PiperEngine) Validate() error {
	if err := lookPath(e.binary); err != nil {
		return err
	}
	if _, err := os.Stat(e.model); err != nil {
		return fmt.Errorf("piper model not accessible: %w", err)
	}
	return nil
}

// Close is a no-op; each synthesis runs its own process.
func (e *PiperEngine) Close() error {
	return nil
}

var _ tts.Engine = (*PiperEngine)(nil)
