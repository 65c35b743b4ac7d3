package core

import (
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
)

// SynthesisRequestedEvent asks a remote synthesis worker to speak Text.
type SynthesisRequestedEvent struct {
	Header events.EventHeader `json:"header"`
	Text   string             `json:"text"`
}

// SpeechClipCreatedEvent is the worker's reply. On success AudioKey names the
// clip in the object store; otherwise Error carries the failure.
type SpeechClipCreatedEvent struct {
	Header   events.EventHeader `json:"header"`
	AudioKey string             `json:"audio_key,omitempty"`
	Format   AudioFormat        `json:"format,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// NewEventHeader stamps a fresh workflow for one synthesis request.
func NewEventHeader(userID string) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: uuid.NewString(),
		EventID:    uuid.NewString(),
		UserID:     userID,
		TenantID:   "",
	}
}
