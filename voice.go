package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/koeck/voicegpt/internal/audio"
	"github.com/koeck/voicegpt/internal/cache"
	"github.com/koeck/voicegpt/internal/tts"
	"github.com/koeck/voicegpt/internal/tts/engines"
	"github.com/koeck/voicegpt/utils"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// voice is the speaker handed to the session. controller is nil when speech
// is disabled or unavailable.
type voice struct {
	tts.Speaker
	controller *tts.Controller
	cache      *cache.CacheManager
}

// Close stops speech and releases the audio device and the cache.
func (v *voice) Close() error {
	err := v.Speaker.Close()
	if v.cache != nil {
		err = errors.Join(err, v.cache.Close())
	}
	return err
}

// apply sets the speed and volume of future utterances.
func (v *voice) apply(speed, volume float64) {
	if v.controller == nil {
		return
	}
	if err := v.controller.SetSpeed(speed); err != nil {
		log.Warn("unable to change speech speed", "speed", speed, "error", err)
	}
	if err := v.controller.SetVolume(volume); err != nil {
		log.Warn("unable to change volume", "volume", volume, "error", err)
	}
}

func ttsConfig() (tts.Config, error) {
	engine, err := tts.ValidateEngineSelection(viper.GetString("tts.engine"))
	if err != nil {
		return tts.Config{}, err
	}

	cfg := tts.DefaultConfig()
	cfg.Engine = engine
	cfg.Speed = viper.GetFloat64("tts.speed")
	cfg.Volume = viper.GetFloat64("tts.volume")
	cfg.Piper.Model = utils.ExpandPath(viper.GetString("tts.piper.model"))
	cfg.Piper.Speaker = viper.GetString("tts.piper.speaker")
	cfg.GTTS.Language = viper.GetString("tts.gtts.language")
	cfg.GTTS.Slow = viper.GetBool("tts.gtts.slow")
	return cfg, nil
}

func cacheConfig() (cache.Config, error) {
	dir := viper.GetString("tts.cache.dir")
	if dir == "" {
		d, err := gap.NewScope(gap.User, "voicegpt").CacheDir()
		if err != nil {
			return cache.Config{}, fmt.Errorf("unable to find cache directory: %w", err)
		}
		dir = filepath.Join(d, "speech")
	}

	cfg := cache.DefaultConfig(utils.ExpandPath(dir))
	cfg.DiskCapacity = int64(viper.GetInt("tts.cache.max_size")) << 20
	cfg.Logger = log.Default()
	return cfg, nil
}

func newEngine(cfg tts.Config) (tts.Engine, error) {
	switch cfg.Engine {
	case tts.EnginePiper:
		e, err := engines.NewPiperEngine(engines.PiperConfig{
			Model:   cfg.Piper.Model,
			Speaker: cfg.Piper.Speaker,
			Logger:  log.Default(),
		})
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return e, nil
	case tts.EngineGoogle:
		e, err := engines.NewGTTSEngine(engines.GTTSConfig{
			Language:          cfg.GTTS.Language,
			Slow:              cfg.GTTS.Slow,
			RequestsPerMinute: cfg.GTTS.RequestsPerMinute,
			Logger:            log.Default(),
		})
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", tts.ErrInvalidEngine, cfg.Engine)
}

// newVoice builds the speaker for the configured engine. An engine that is
// not installed, or an audio device that cannot be opened, is reported on w
// and speech is disabled.
func newVoice(w io.Writer) (*voice, error) {
	cfg, err := ttsConfig()
	if err != nil {
		return nil, err
	}

	silent := &voice{Speaker: tts.NewSilent(log.Default())}
	if cfg.Engine == tts.EngineNone {
		return silent, nil
	}

	if result := tts.ValidateEngine(cfg.Engine, cfg); !result.Available {
		log.Warn("speech engine unavailable", "engine", cfg.Engine, "error", result.Error)
		fmt.Fprintln(w, warning(fmt.Sprintf("Speech disabled: %v", result.Error)))
		if result.Guidance != "" {
			fmt.Fprintln(w, subtle(result.Guidance))
		}
		return silent, nil
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}

	info := engine.Info()
	player, err := audio.NewPlayer(audio.PlayerConfig{
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		BitDepth:   info.BitDepth,
		BufferSize: audio.DefaultPlayerConfig().BufferSize,
	})
	if err != nil {
		_ = engine.Close()
		log.Warn("audio device unavailable", "error", err)
		fmt.Fprintln(w, warning(fmt.Sprintf("Speech disabled: %v", err)))
		return silent, nil
	}

	v := &voice{}
	var clips tts.AudioCache
	if cc, err := cacheConfig(); err != nil {
		log.Warn("speech cache disabled", "error", err)
	} else if m, err := cache.NewCacheManager(cc); err != nil {
		log.Warn("speech cache disabled", "error", err)
	} else {
		v.cache = m
		clips = m
	}

	controller, err := tts.NewController(tts.ControllerConfig{
		Engine:    engine,
		Player:    player,
		Cache:     clips,
		QueueSize: cfg.QueueSize,
		Speed:     cfg.Speed,
		Logger:    log.Default(),
	})
	if err != nil {
		_ = player.Close()
		_ = engine.Close()
		if v.cache != nil {
			_ = v.cache.Close()
		}
		return nil, fmt.Errorf("unable to start speech: %w", err)
	}
	if err := controller.SetVolume(cfg.Volume); err != nil {
		log.Warn("unable to set volume", "error", err)
	}

	log.Debug("speech ready", "engine", info.Name, "voice", info.Voice, "rate", info.SampleRate)
	v.Speaker = controller
	v.controller = controller
	return v, nil
}

// watchConfig applies speed and volume changes made to the config file while
// running.
func watchConfig(v *voice) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug("configuration changed", "file", e.Name, "op", e.Op.String())
		v.apply(viper.GetFloat64("tts.speed"), viper.GetFloat64("tts.volume"))
	})
	viper.WatchConfig()
}
