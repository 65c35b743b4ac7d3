// Package playback plays speech clips on the output device while holding the
// push-to-talk key for exactly as long as speech is queued.
package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/audio"
	"github.com/book-expert/voice-relay/internal/core"
)

// ErrKeyInjection indicates that the push-to-talk key could not be pressed or
// released. The controller cannot keep its key invariant after that, so it stops.
var ErrKeyInjection = errors.New("push-to-talk key injection failed")

// Sleeper suspends for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Controller is the terminal stage of the relay. It exclusively owns the
// key injector, the output device and the push-to-talk state.
type Controller struct {
	input   <-chan *core.SpeechClip
	keys    core.KeyInjector
	output  core.AudioOutput
	log     *logger.Logger
	sleep   Sleeper
	keyHeld bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithSleeper replaces the duration-matched wait used as the completion signal.
func WithSleeper(sleeper Sleeper) Option {
	return func(c *Controller) {
		c.sleep = sleeper
	}
}

// New creates a controller consuming input.
func New(
	input <-chan *core.SpeechClip,
	keys core.KeyInjector,
	output core.AudioOutput,
	log *logger.Logger,
	opts ...Option,
) *Controller {
	controller := &Controller{
		input:   input,
		keys:    keys,
		output:  output,
		log:     log,
		sleep:   sleepContext,
		keyHeld: false,
	}

	for _, opt := range opts {
		opt(controller)
	}

	return controller
}

// Run plays clips until the input is closed or ctx is done. The key is
// released before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return c.finish()
		}

		select {
		case <-ctx.Done():
			return c.finish()
		case clip, ok := <-c.input:
			if !ok {
				return c.finish()
			}

			err := c.handle(ctx, clip)
			if err != nil {
				_ = c.finish()

				return err
			}
		}
	}
}

// handle plays one clip. Only key injection failures are returned; every
// other failure costs this clip alone.
func (c *Controller) handle(ctx context.Context, clip *core.SpeechClip) error {
	defer c.release(clip)

	if !c.keyHeld {
		pressErr := c.keys.Press()
		if pressErr != nil {
			return fmt.Errorf("%w: %w", ErrKeyInjection, pressErr)
		}

		c.keyHeld = true
	}

	playErr := c.play(ctx, clip)
	if playErr != nil && ctx.Err() == nil {
		c.log.Error("Failed to play speech clip '%s': %v", clip.Path(), playErr)
	}

	if len(c.input) == 0 {
		return c.releaseKey()
	}

	return nil
}

func (c *Controller) play(ctx context.Context, clip *core.SpeechClip) error {
	track, err := audio.Load(ctx, clip)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := track.Close()
		if closeErr != nil {
			c.log.Warn("Failed to close audio stream for '%s': %v", clip.Path(), closeErr)
		}
	}()

	c.log.Info("Audio duration: %s", track.Duration)

	sink, err := c.output.Play(track.Streamer, track.Format)
	if err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	defer func() {
		closeErr := sink.Close()
		if closeErr != nil {
			c.log.Warn("Failed to close playback sink: %v", closeErr)
		}
	}()

	return c.sleep(ctx, track.Duration)
}

func (c *Controller) release(clip *core.SpeechClip) {
	releaseErr := clip.Release()
	if releaseErr != nil {
		c.log.Warn("Failed to release speech clip: %v", releaseErr)
	}
}

func (c *Controller) releaseKey() error {
	if !c.keyHeld {
		return nil
	}

	releaseErr := c.keys.Release()
	if releaseErr != nil {
		return fmt.Errorf("%w: %w", ErrKeyInjection, releaseErr)
	}

	c.keyHeld = false

	return nil
}

// finish drops any clips still queued and lets go of the key.
func (c *Controller) finish() error {
	c.discardQueued()

	return c.releaseKey()
}

func (c *Controller) discardQueued() {
	for {
		select {
		case clip, ok := <-c.input:
			if !ok {
				return
			}

			c.release(clip)
		default:
			return
		}
	}
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("playback interrupted: %w", ctx.Err())
	}
}
