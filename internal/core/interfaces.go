// Package core defines the shared types and capability interfaces of the voice relay.
package core

import (
	"context"
	"io"

	"github.com/gopxl/beep"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// SpeechBackend turns one chat message into a speech clip.
// Implementations own their retry and timeout policy; the caller only
// distinguishes success from a failed call.
type SpeechBackend interface {
	Synthesize(ctx context.Context, text string) (*SpeechClip, error)
}

// KeyInjector asserts and releases exactly one designated key.
type KeyInjector interface {
	Press() error
	Release() error
}

// AudioOutput renders a decoded sample stream on an output device.
// Play returns as soon as rendering has started; closing the returned sink
// stops it and frees the device.
type AudioOutput interface {
	Play(streamer beep.Streamer, format beep.Format) (io.Closer, error)
}
