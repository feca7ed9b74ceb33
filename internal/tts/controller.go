package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/koeck/voicegpt/internal/cache"
	"github.com/koeck/voicegpt/internal/queue"
)

// drainInterval is how often Drain checks for pending utterances.
const drainInterval = 20 * time.Millisecond

// ControllerConfig holds the collaborators of a Controller.
type ControllerConfig struct {
	// Engine synthesizes utterances (required)
	Engine Engine

	// Player plays synthesized clips (required)
	Player AudioPlayer

	// Cache stores clips by text, voice and speed (optional)
	Cache AudioCache

	// QueueSize bounds pending utterances (defaults to queue.DefaultMaxSize)
	QueueSize int

	// Speed is the initial speed multiplier (defaults to 1.0)
	Speed float64

	// Logger overrides the default logger (optional)
	Logger *log.Logger
}

// Controller is a Speaker that synthesizes utterances with an Engine and
// plays them through an AudioPlayer, strictly in the order they were queued.
// A single worker goroutine does the synthesis and playback.
type Controller struct {
	engine Engine
	player AudioPlayer
	cache  AudioCache
	queue  *queue.UtteranceQueue
	speed  *SpeedController
	logger *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	// playMu orders Play against Stop so that an utterance whose generation
	// was cleared is never started.
	playMu      sync.Mutex
	synthCancel context.CancelFunc

	// pending counts utterances queued or being spoken
	pending atomic.Int64

	mu      sync.RWMutex
	state   State
	lastErr error
	stats   ControllerStats
}

// NewController creates a controller and starts its worker.
func NewController(config ControllerConfig) (*Controller, error) {
	if config.Engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if config.Player == nil {
		return nil, errors.New("player cannot be nil")
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}

	speed := NewSpeedController()
	if err := speed.SetSpeed(config.Speed); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		engine: config.Engine,
		player: config.Player,
		cache:  config.Cache,
		queue:  queue.NewUtteranceQueue(config.QueueSize),
		speed:  speed,
		logger: config.Logger,
		ctx:    ctx,
		cancel: cancel,
		stats:  ControllerStats{LastActivity: time.Now()},
	}

	c.wg.Add(1)
	go c.worker()

	return c, nil
}

// Speak queues text. With QueueFlush, queued utterances are dropped and the
// current one is stopped first. Blank text is ignored.
func (c *Controller) Speak(text string, mode QueueMode) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit := c.engine.Info().MaxTextSize; limit > 0 && utf8.RuneCountInString(text) > limit {
		return NewTTSError(ErrorCodeTextTooLong, fmt.Sprintf("%d characters (max %d)", utf8.RuneCountInString(text), limit), nil)
	}

	if mode == QueueFlush {
		if err := c.interrupt(); err != nil {
			c.logger.Warn("unable to flush speech", "error", err)
		}
	}

	c.pending.Add(1)
	u, err := c.queue.Enqueue(text)
	if err != nil {
		c.pending.Add(-1)
	}
	switch {
	case errors.Is(err, queue.ErrQueueClosed):
		return ErrClosed
	case errors.Is(err, queue.ErrQueueFull):
		return NewTTSError(ErrorCodeQueueFull, "too many pending utterances", err)
	case err != nil:
		return err
	}

	c.logger.Debug("utterance queued", "id", u.ID, "mode", mode)
	return nil
}

// Stop drops queued utterances and silences the current one.
func (c *Controller) Stop() error {
	return c.interrupt()
}

// Drain waits until every queued utterance has been spoken or dropped.
func (c *Controller) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return ErrClosed
		case <-ticker.C:
		}
	}
	return nil
}

// Close stops speaking, waits for the worker and releases the player and
// engine. It is safe to call more than once.
func (c *Controller) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.queue.Close()
		if err := c.interrupt(); err != nil {
			errs = append(errs, err)
		}
		c.wg.Wait()

		if err := c.player.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close player: %w", err))
		}
		if err := c.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close engine: %w", err))
		}
		c.setState(StateClosed)
	})
	return errors.Join(errs...)
}

// SetSpeed changes the speed for utterances synthesized from now on.
func (c *Controller) SetSpeed(speed float64) error {
	return c.speed.SetSpeed(speed)
}

// Speed returns the current speed multiplier.
func (c *Controller) Speed() float64 {
	return c.speed.Speed()
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (c *Controller) SetVolume(volume float64) error {
	return c.player.SetVolume(volume)
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Pending returns the number of queued utterances.
func (c *Controller) Pending() int {
	return c.queue.Size()
}

// LastError returns the last synthesis or playback error.
func (c *Controller) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Stats returns controller activity counters.
func (c *Controller) Stats() ControllerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Controller) interrupt() error {
	c.playMu.Lock()
	defer c.playMu.Unlock()

	if n := c.queue.Clear(); n > 0 {
		c.pending.Add(-int64(n))
		c.logger.Debug("utterances dropped", "count", n)
		c.update(func(s *ControllerStats) { s.Skipped += int64(n) })
	}
	if c.synthCancel != nil {
		c.synthCancel()
		c.synthCancel = nil
	}
	if err := c.player.Stop(); err != nil {
		return NewTTSError(ErrorCodeAudioFailure, "unable to stop playback", err)
	}
	return nil
}

func (c *Controller) worker() {
	defer c.wg.Done()

	for {
		u, err := c.queue.Dequeue(c.ctx)
		if err != nil {
			return
		}
		c.speak(u)
	}
}

func (c *Controller) speak(u queue.Utterance) {
	defer c.pending.Add(-1)

	c.playMu.Lock()
	if u.Generation != c.queue.Generation() {
		c.playMu.Unlock()
		c.update(func(s *ControllerStats) { s.Skipped++ })
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.synthCancel = cancel
	c.playMu.Unlock()
	defer cancel()

	c.setState(StateSynthesizing)
	clip, err := c.clip(ctx, u.Text)
	if err != nil {
		c.setState(StateIdle)
		if ctx.Err() != nil {
			c.update(func(s *ControllerStats) { s.Skipped++ })
			return
		}
		c.fail(err)
		return
	}

	c.playMu.Lock()
	if u.Generation != c.queue.Generation() || ctx.Err() != nil {
		c.playMu.Unlock()
		c.setState(StateIdle)
		c.update(func(s *ControllerStats) { s.Skipped++ })
		return
	}
	err = c.player.Play(clip)
	c.playMu.Unlock()
	if err != nil {
		c.setState(StateIdle)
		c.fail(NewTTSError(ErrorCodeAudioFailure, "unable to play clip", err))
		return
	}

	c.setState(StatePlaying)
	start := time.Now()
	if err := c.player.Wait(c.ctx); err != nil && c.ctx.Err() == nil {
		c.fail(NewTTSError(ErrorCodeAudioFailure, "playback failed", err))
	}
	c.setState(StateIdle)
	c.update(func(s *ControllerStats) {
		s.Spoken++
		s.PlaybackTime += time.Since(start)
	})
}

// clip returns audio for text from the cache or the engine.
func (c *Controller) clip(ctx context.Context, text string) ([]byte, error) {
	speed := c.speed.Speed()
	info := c.engine.Info()
	key := cache.GenerateCacheKey(text, info.Name+":"+info.Voice, speed)

	if c.cache != nil {
		if clip, ok := c.cache.Get(key); ok {
			c.update(func(s *ControllerStats) { s.CacheHits++ })
			return clip, nil
		}
	}

	clip, err := c.engine.Synthesize(ctx, text, speed)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewTTSError(ErrorCodeEngineTimeout, "synthesis timed out", err)
		}
		return nil, NewTTSError(ErrorCodeEngineFailure, "synthesis failed", errors.Join(ErrSynthesisFailed, err))
	}
	c.update(func(s *ControllerStats) { s.Synthesized++ })

	if c.cache != nil {
		if err := c.cache.Put(key, clip); err != nil {
			c.logger.Debug("clip not cached", "error", err)
		}
	}
	return clip, nil
}

func (c *Controller) fail(err error) {
	c.logger.Error("unable to speak", "error", err)
	c.mu.Lock()
	c.lastErr = err
	c.stats.Errors++
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state != StateClosed {
		c.state = s
	}
	c.mu.Unlock()
}

func (c *Controller) update(fn func(*ControllerStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.stats.LastActivity = time.Now()
	c.mu.Unlock()
}
