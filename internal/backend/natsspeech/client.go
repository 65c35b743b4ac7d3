// Package natsspeech asks a remote synthesis worker for speech over NATS and
// collects the clip from the shared object store.
package natsspeech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the request subject served by voice-relay serve-speech.
const DefaultSubject = "voice-relay.synthesize"

var (
	// ErrEmptyText is returned for an empty synthesis request.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrRemoteSynthesis indicates that the worker reported a failure.
	ErrRemoteSynthesis = errors.New("remote synthesis failed")
	// ErrReplyMismatch indicates a reply for another workflow.
	ErrReplyMismatch = errors.New("reply belongs to another workflow")
)

// Client is a core.SpeechBackend served by a remote SynthesisWorker.
type Client struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	clipsDir       string
	userID         string
	log            *logger.Logger
}

// NewClient creates a client. userID is stamped on every request header.
func NewClient(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	clipsDir string,
	userID string,
	log *logger.Logger,
) *Client {
	if subject == "" {
		subject = DefaultSubject
	}

	return &Client{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		clipsDir:       clipsDir,
		userID:         userID,
		log:            log,
	}
}

// Synthesize requests speech for text and waits for the worker's reply. The
// deadline of ctx bounds the whole exchange.
func (c *Client) Synthesize(ctx context.Context, text string) (*core.SpeechClip, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	request := core.SynthesisRequestedEvent{
		Header: core.NewEventHeader(c.userID),
		Text:   text,
	}

	requestData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	replyMsg, err := c.natsConnection.RequestWithContext(ctx, c.subject, requestData)
	if err != nil {
		return nil, fmt.Errorf("synthesis request on %s failed: %w", c.subject, err)
	}

	var reply core.SpeechClipCreatedEvent

	err = json.Unmarshal(replyMsg.Data, &reply)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal synthesis reply: %w", err)
	}

	if reply.Header.WorkflowID != request.Header.WorkflowID {
		return nil, fmt.Errorf("%w: %s", ErrReplyMismatch, reply.Header.WorkflowID)
	}

	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRemoteSynthesis, reply.Error)
	}

	return c.collect(ctx, reply)
}

// collect moves the clip from the object store into a local temp file.
func (c *Client) collect(ctx context.Context, reply core.SpeechClipCreatedEvent) (*core.SpeechClip, error) {
	format, err := core.FormatFromPath(reply.AudioKey)
	if err != nil {
		return nil, fmt.Errorf("worker returned unusable audio key '%s': %w", reply.AudioKey, err)
	}

	audioData, err := c.store.Download(ctx, reply.AudioKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download clip '%s': %w", reply.AudioKey, err)
	}

	deleteErr := c.store.Delete(ctx, reply.AudioKey)
	if deleteErr != nil {
		c.log.Warn("Failed to delete collected clip '%s': %v", reply.AudioKey, deleteErr)
	}

	clip, err := core.NewSpeechClip(c.clipsDir, format, audioData)
	if err != nil {
		return nil, fmt.Errorf("failed to store clip '%s': %w", reply.AudioKey, err)
	}

	return clip, nil
}
