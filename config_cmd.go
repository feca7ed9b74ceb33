package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

const defaultConfig = `# style name or JSON path for rendered answers (default "auto")
style: "auto"
# word-wrap rendered answers at width (0 fits the terminal)
width: 0
# mouse wheel scrolling
mouse: false

api:
  # endpoint prompts are posted to
  url: "https://watch-gpt-api.vercel.app/api/prompt"
  # how long to wait for the first byte of an answer
  timeout: 30s
  # bytes read from the answer per chunk
  read_size: 8192
  # local throttle, 0 disables it
  requests_per_minute: 0

speech:
  # speak the unfinished last sentence when the answer ends
  flush_remainder: true
  # remove markdown formatting before speaking
  strip_markdown: true

tts:
  # speech engine: piper, gtts or none
  engine: "none"
  # speed from 0.5 to 2.0
  speed: 1.0
  # volume from 0.0 to 1.0
  volume: 1.0
  piper:
    # path to the .onnx voice model
    model: ""
    # speaker id for multi-speaker models
    speaker: ""
  gtts:
    # language code, e.g. en, de, fr
    language: "en"
    slow: false
  cache:
    # directory for synthesized clips (default: user cache dir)
    dir: ""
    # disk cache size in MB
    max_size: 256

stt:
  # recognizer that records once and prints transcriptions, best first,
  # one per line; empty means prompts are typed
  command: ""
  # arguments, {lang} is replaced with the language
  args: []
  language: "en"
  # how long a single recording may take
  timeout: 30s

ui:
  # lay answers out on a round face
  round: false
  # face diameter in rows (0 fits the terminal)
  diameter: 0
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the voicegpt config file",
	Long:    paragraph(fmt.Sprintf("\n%s the voicegpt config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("voicegpt config\nvoicegpt config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// an invalid file must still be editable
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("voicegpt", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
