// Package speech converts chat messages into speech clips, one at a time and in
// arrival order.
package speech

import (
	"context"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/book-expert/voice-relay/internal/pipeline"
	"github.com/book-expert/voice-relay/internal/speech/text"
)

// Stage is the synthesis stage of the relay. Calls to the backend never
// overlap, so clips leave in the same order their messages arrived.
type Stage struct {
	backend    core.SpeechBackend
	normalizer *text.Normalizer
	timeout    time.Duration
	log        *logger.Logger
	node       *pipeline.Node[core.ChatMessage, *core.SpeechClip]
}

// Option customizes a Stage.
type Option func(*Stage)

// WithTimeout bounds every backend call.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Stage) {
		s.timeout = timeout
	}
}

// WithNormalizer rewrites chat text before it reaches the backend.
func WithNormalizer(normalizer *text.Normalizer) Option {
	return func(s *Stage) {
		s.normalizer = normalizer
	}
}

// NewStage creates a stage reading messages from input and sending clips to
// output. The stage owns output and closes it when Run returns.
func NewStage(
	backend core.SpeechBackend,
	input <-chan core.ChatMessage,
	output chan<- *core.SpeechClip,
	log *logger.Logger,
	opts ...Option,
) *Stage {
	stage := &Stage{
		backend:    backend,
		normalizer: nil,
		timeout:    0,
		log:        log,
		node:       nil,
	}

	for _, opt := range opts {
		opt(stage)
	}

	stage.node = pipeline.NewNode(input, []chan<- *core.SpeechClip{output}, stage.synthesize).
		WithDiscard(stage.discard)

	return stage
}

// Run synthesizes messages until the input is closed or ctx is done. A backend
// failure only drops its own message.
func (s *Stage) Run(ctx context.Context) error {
	return s.node.Run(ctx)
}

func (s *Stage) synthesize(ctx context.Context, message core.ChatMessage) (*core.SpeechClip, bool) {
	spoken := message.String()

	if s.normalizer != nil {
		spoken = s.normalizer.Normalize(spoken)
		if spoken == "" {
			s.log.Warn("Message %q has nothing left to say after normalization", message)

			return nil, false
		}
	}

	callCtx := ctx

	if s.timeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.log.Info("Processing message: %s", message)

	clip, err := s.backend.Synthesize(callCtx, spoken)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("Could not get the speech for %q: %v", message, err)
		}

		return nil, false
	}

	s.log.Info("Speech ready for %q: %s", message, clip.Path())

	return clip, true
}

func (s *Stage) discard(clip *core.SpeechClip) {
	releaseErr := clip.Release()
	if releaseErr != nil {
		s.log.Warn("Failed to release undelivered speech clip: %v", releaseErr)
	}
}
