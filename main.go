// Package main provides the entry point for the voicegpt CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/koeck/voicegpt/internal/api"
	"github.com/koeck/voicegpt/internal/assistant"
	"github.com/koeck/voicegpt/internal/stt"
	"github.com/koeck/voicegpt/internal/tts"
	"github.com/koeck/voicegpt/ui"
	"github.com/koeck/voicegpt/utils"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	style      string
	width      uint
	mouse      bool
	round      bool
	diameter   int

	rootCmd = &cobra.Command{
		Use:   "voicegpt",
		Short: "Ask out loud, hear the answer",
		Long: paragraph(
			fmt.Sprintf("\nAsk a question and %s while it streams in.", keyword("hear the answer")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style = utils.ExpandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		if err := loadConfigFile(configFile); err != nil {
			return err
		}
	}

	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	round = viper.GetBool("ui.round")
	diameter = viper.GetInt("ui.diameter")

	if _, err := tts.ValidateEngineSelection(viper.GetString("tts.engine")); err != nil {
		return err
	}
	if err := tts.NewSpeedController().SetSpeed(viper.GetFloat64("tts.speed")); err != nil {
		return err
	}
	if v := viper.GetFloat64("tts.volume"); v < 0 || v > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %.2f", v)
	}
	if n := viper.GetInt("tts.cache.max_size"); n < 1 || n > 10000 {
		return fmt.Errorf("speech cache max_size must be between 1 and 10000 MB, got %d", n)
	}
	if diameter < 0 {
		return fmt.Errorf("diameter must not be negative, got %d", diameter)
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func newClient() (*api.Client, error) {
	client, err := api.NewClient(api.Config{
		Endpoint:          viper.GetString("api.url"),
		Timeout:           viper.GetDuration("api.timeout"),
		ReadSize:          viper.GetInt("api.read_size"),
		RequestsPerMinute: viper.GetInt("api.requests_per_minute"),
		UserAgent:         "voicegpt/" + Version,
		Logger:            log.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create api client: %w", err)
	}
	return client, nil
}

// newRecognizer returns the configured speech recognizer, or nil when
// prompts are typed.
func newRecognizer() (stt.Recognizer, error) {
	command := viper.GetString("stt.command")
	if command == "" {
		return nil, nil
	}
	r, err := stt.NewCommandRecognizer(stt.CommandConfig{
		Command:  utils.ExpandPath(command),
		Args:     viper.GetStringSlice("stt.args"),
		Language: viper.GetString("stt.language"),
		Timeout:  viper.GetDuration("stt.timeout"),
		Logger:   log.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create recognizer: %w", err)
	}
	return r, nil
}

func newSession(speaker tts.Speaker, client *api.Client, onUpdate func(assistant.State)) (*assistant.Session, error) {
	session, err := assistant.NewSession(assistant.Options{
		Streamer:       assistant.NewStreamer(client),
		Speaker:        speaker,
		FlushRemainder: viper.GetBool("speech.flush_remainder"),
		StripMarkdown:  viper.GetBool("speech.strip_markdown"),
		OnUpdate:       onUpdate,
		Logger:         log.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create session: %w", err)
	}
	return session, nil
}

func execute(*cobra.Command, []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	recognizer, err := newRecognizer()
	if err != nil {
		return err
	}

	v, err := newVoice(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := v.Close(); err != nil {
			log.Warn("unable to shut down speech", "error", err)
		}
	}()
	watchConfig(v)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan assistant.State, 64)
	session, err := newSession(v, client, func(s assistant.State) {
		select {
		case updates <- s:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	return runTUI(ui.Deps{
		Session:    session,
		Recognizer: recognizer,
		Updates:    updates,
		Logger:     log.Default(),
	})
}

func runTUI(deps ui.Deps) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	cfg.Round = round
	cfg.Diameter = diameter
	cfg.EnableMouse = mouse
	cfg.Listening = deps.Recognizer != nil
	cfg.GlamourEnabled = true
	cfg.GlamourStyle = style
	cfg.GlamourMaxWidth = width

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, deps).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}

	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringP("style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.PersistentFlags().UintP("width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.PersistentFlags().String("tts", "", "speech engine (piper, gtts or none)")
	rootCmd.PersistentFlags().Float64("speed", 1.0, "speech speed (0.5 to 2.0)")
	rootCmd.PersistentFlags().String("url", api.DefaultEndpoint, "prompt API endpoint")
	rootCmd.Flags().BoolP("round", "r", false, "lay the answer out on a round face")
	rootCmd.Flags().Int("diameter", 0, "round face diameter in rows (0 fits the terminal)")
	rootCmd.Flags().BoolP("mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("style", rootCmd.PersistentFlags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.PersistentFlags().Lookup("width"))
	_ = viper.BindPFlag("tts.engine", rootCmd.PersistentFlags().Lookup("tts"))
	_ = viper.BindPFlag("tts.speed", rootCmd.PersistentFlags().Lookup("speed"))
	_ = viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("ui.round", rootCmd.Flags().Lookup("round"))
	_ = viper.BindPFlag("ui.diameter", rootCmd.Flags().Lookup("diameter"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	setDefaults(viper.GetViper())

	rootCmd.AddCommand(askCmd, cacheCmd, configCmd, manCmd)
}

// setDefaults registers the value of every configuration key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("style", styles.AutoStyle)
	v.SetDefault("width", 0)
	v.SetDefault("mouse", false)

	v.SetDefault("api.url", api.DefaultEndpoint)
	v.SetDefault("api.timeout", api.DefaultTimeout)
	v.SetDefault("api.read_size", api.DefaultReadSize)
	v.SetDefault("api.requests_per_minute", 0)

	v.SetDefault("speech.flush_remainder", true)
	v.SetDefault("speech.strip_markdown", true)

	d := tts.DefaultConfig()
	v.SetDefault("tts.engine", string(d.Engine))
	v.SetDefault("tts.speed", d.Speed)
	v.SetDefault("tts.volume", d.Volume)
	v.SetDefault("tts.piper.model", "")
	v.SetDefault("tts.piper.speaker", "")
	v.SetDefault("tts.gtts.language", d.GTTS.Language)
	v.SetDefault("tts.gtts.slow", false)
	v.SetDefault("tts.cache.dir", "")
	v.SetDefault("tts.cache.max_size", 256)

	v.SetDefault("stt.command", "")
	v.SetDefault("stt.args", []string{})
	v.SetDefault("stt.language", "en")
	v.SetDefault("stt.timeout", stt.DefaultListenTimeout)

	v.SetDefault("ui.round", false)
	v.SetDefault("ui.diameter", 0)
}

// loadConfigFile reads the config file given with --config, if it exists.
func loadConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}
	log.Debug("Using configuration file", "path", path)
	return nil
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "voicegpt")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "voicegpt")}, dirs...)
	}

	if c := os.Getenv("VOICEGPT_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("voicegpt")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("voicegpt")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "voicegpt.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
