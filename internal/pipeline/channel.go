// Package pipeline provides the building blocks the relay stages are composed from:
// a bounded-channel send helper, a generic fan-out node and the relay runner.
package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// DefaultQueueCapacity is the number of in-flight items between two stages.
const DefaultQueueCapacity = 100

// ErrChannelClosed indicates that a stage's output was abandoned: the relay was
// shutting down while the stage was trying to hand an item downstream.
var ErrChannelClosed = errors.New("output channel closed")

// Send delivers value on out, blocking while the channel is full.
// It fails with ErrChannelClosed once ctx is done.
func Send[T any](ctx context.Context, out chan<- T, value T) error {
	select {
	case out <- value:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrChannelClosed, context.Cause(ctx))
	}
}
