// Package worker serves speech synthesis to remote relays over NATS.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultQueueGroup lets several workers share one synthesis subject.
const DefaultQueueGroup = "speech-workers"

const handleMessageTimeout = 30 * time.Second

var (
	// ErrEmptyText indicates a request with nothing to say.
	ErrEmptyText = errors.New("synthesis request has empty text")
	// ErrAlreadyStarted indicates a second Start on the same worker.
	ErrAlreadyStarted = errors.New("worker already started")
)

// SynthesisWorker answers SynthesisRequestedEvent requests with a
// SpeechClipCreatedEvent naming the uploaded clip.
type SynthesisWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	backend        core.SpeechBackend
	log            *logger.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewSynthesisWorker creates a new instance of a synthesis worker.
func NewSynthesisWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	backend core.SpeechBackend,
	log *logger.Logger,
) *SynthesisWorker {
	return &SynthesisWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		backend:        backend,
		log:            log,
		mu:             sync.Mutex{},
		sub:            nil,
	}
}

// Start subscribes to the synthesis subject. Requests are served from the
// moment Start returns.
func (w *SynthesisWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sub != nil {
		return ErrAlreadyStarted
	}

	sub, err := w.natsConnection.QueueSubscribe(w.subject, DefaultQueueGroup, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	flushErr := w.natsConnection.Flush()
	if flushErr != nil {
		_ = sub.Unsubscribe()

		return fmt.Errorf("failed to flush subscription: %w", flushErr)
	}

	w.sub = sub

	return nil
}

// Run serves requests until ctx is done, starting the worker first if needed.
func (w *SynthesisWorker) Run(ctx context.Context) error {
	w.mu.Lock()
	started := w.sub != nil
	w.mu.Unlock()

	if !started {
		startErr := w.Start()
		if startErr != nil {
			return startErr
		}
	}

	w.log.Info("Serving speech synthesis on subject %s", w.subject)

	<-ctx.Done()

	w.mu.Lock()
	sub := w.sub
	w.mu.Unlock()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *SynthesisWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse synthesis request: %v", err)

		return
	}

	reply := core.SpeechClipCreatedEvent{
		Header:   event.Header,
		AudioKey: "",
		Format:   "",
		Error:    "",
	}

	audioKey, format, processErr := w.synthesize(ctx, event)
	if processErr != nil {
		w.log.Error("Failed to synthesize speech for workflow %s: %v", event.Header.WorkflowID, processErr)
		reply.Error = processErr.Error()
	} else {
		reply.AudioKey = audioKey
		reply.Format = format
	}

	err = publishReplyEvent(msg, &reply)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// synthesize runs the local backend and uploads the clip it produced.
func (w *SynthesisWorker) synthesize(
	ctx context.Context,
	event *core.SynthesisRequestedEvent,
) (string, core.AudioFormat, error) {
	if event.Text == "" {
		return "", "", ErrEmptyText
	}

	clip, err := w.backend.Synthesize(ctx, event.Text)
	if err != nil {
		return "", "", fmt.Errorf("failed to synthesize speech: %w", err)
	}

	defer func() {
		releaseErr := clip.Release()
		if releaseErr != nil {
			w.log.Warn("Failed to release local clip: %v", releaseErr)
		}
	}()

	format, err := clip.Format()
	if err != nil {
		return "", "", fmt.Errorf("backend produced an unusable clip: %w", err)
	}

	audioData, err := os.ReadFile(clip.Path())
	if err != nil {
		return "", "", fmt.Errorf("failed to read clip '%s': %w", clip.Path(), err)
	}

	audioKey := uuid.NewString() + "." + string(format)

	err = w.store.Upload(ctx, audioKey, audioData)
	if err != nil {
		return "", "", fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	return audioKey, format, nil
}

// publishReplyEvent marshals and responds with the SpeechClipCreatedEvent.
func publishReplyEvent(msg *nats.Msg, replyEvent *core.SpeechClipCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseEvent(msg *nats.Msg) (*core.SynthesisRequestedEvent, error) {
	var event core.SynthesisRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}
