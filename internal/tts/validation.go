package tts

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ValidationResult contains the result of engine validation
type ValidationResult struct {
	// Engine is the validated engine type
	Engine EngineType

	// Available indicates if the engine is available and configured
	Available bool

	// Error contains any validation error
	Error error

	// Guidance provides setup instructions if validation failed
	Guidance string

	// Details contains additional validation information
	Details map[string]string
}

// ValidateEngineSelection normalizes an engine name. An empty name selects
// EngineNone; "google" is accepted as an alias for gtts.
func ValidateEngineSelection(name string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "off":
		return EngineNone, nil
	case "piper":
		return EnginePiper, nil
	case "gtts", "google":
		return EngineGoogle, nil
	default:
		return EngineNone, fmt.Errorf("%w: %s\n\nSupported engines:\n  - piper (offline TTS)\n  - gtts (Google TTS)\n  - none (no speech)", ErrInvalidEngine, name)
	}
}

// ValidateEngine checks that the binaries and files an engine needs are
// present, without synthesizing anything.
func ValidateEngine(engine EngineType, config Config) *ValidationResult {
	result := &ValidationResult{
		Engine:  engine,
		Details: make(map[string]string),
	}

	switch engine {
	case EnginePiper:
		validatePiper(config.Piper, result)
	case EngineGoogle:
		validateGoogle(config.GTTS, result)
	case EngineNone:
		result.Available = true
		result.Details["engine"] = "none (speech disabled)"
	default:
		result.Error = fmt.Errorf("%w: %s", ErrInvalidEngine, engine)
		result.Guidance = "Supported engines: piper, gtts, none"
	}

	return result
}

func validatePiper(config PiperConfig, result *ValidationResult) {
	result.Details["engine"] = "Piper (Offline TTS)"

	path, err := exec.LookPath("piper")
	if err != nil {
		result.Error = fmt.Errorf("%w: piper not found in PATH", ErrEngineNotAvailable)
		result.Guidance = piperInstallGuidance
		return
	}
	result.Details["binary_path"] = path

	if config.Model == "" {
		result.Error = fmt.Errorf("%w: piper model not configured", ErrEngineNotAvailable)
		result.Guidance = piperModelGuidance
		return
	}
	if _, err := os.Stat(config.Model); err != nil {
		result.Error = fmt.Errorf("model file not accessible: %w", err)
		result.Guidance = piperModelGuidance
		return
	}
	result.Details["model_path"] = config.Model

	result.Available = true
}

func validateGoogle(config GTTSConfigSection, result *ValidationResult) {
	result.Details["engine"] = "Google TTS (gTTS)"

	for _, bin := range []string{"gtts-cli", "ffmpeg"} {
		path, err := exec.LookPath(bin)
		if err != nil {
			result.Error = fmt.Errorf("%w: %s not found in PATH", ErrEngineNotAvailable, bin)
			result.Guidance = gttsInstallGuidance
			return
		}
		result.Details[bin+"_path"] = path
	}

	language := config.Language
	if language == "" {
		language = "en"
	}
	result.Details["language"] = language

	result.Available = true
}

// Guidance returns setup instructions for engine.
func Guidance(engine EngineType) string {
	switch engine {
	case EnginePiper:
		return piperInstallGuidance + "\n\n" + piperModelGuidance
	case EngineGoogle:
		return gttsInstallGuidance
	default:
		return ""
	}
}

const piperInstallGuidance = `Piper TTS is not installed. To install:

1. Download Piper from: https://github.com/rhasspy/piper/releases
2. Extract it and add the piper binary to your PATH.`

const piperModelGuidance = `Piper needs a voice model. To configure one:

1. Download a model from: https://github.com/rhasspy/piper/blob/master/VOICES.md
2. Set its path in voicegpt.yml:
   tts:
     engine: piper
     piper:
       model: ~/.local/share/piper/en_US-amy-medium.onnx`

const gttsInstallGuidance = `gTTS needs gtts-cli and ffmpeg. To install:

  pipx install gtts
  # and ffmpeg from your package manager, e.g.
  sudo apt install ffmpeg   # or: brew install ffmpeg

gTTS requires an internet connection.`
