package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// Round lays the response out inside a circle, like a watch face
	Round bool

	// Diameter of the round face in rows; 0 fits the terminal
	Diameter int

	EnableMouse bool

	// Listening is true when prompts come from a speech recognizer rather
	// than the keyboard
	Listening bool

	// Which rendering style to use for responses in the box layout
	GlamourEnabled  bool
	GlamourStyle    string
	GlamourMaxWidth uint

	// For debugging the UI
	NoticeTimeout time.Duration `env:"VOICEGPT_NOTICE_TIMEOUT" envDefault:"3s"`
	ShowRequestID bool          `env:"VOICEGPT_SHOW_REQUEST_ID"`
	SpinnerFPS    int           `env:"VOICEGPT_SPINNER_FPS"     envDefault:"10"`
}
