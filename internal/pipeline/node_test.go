package pipeline_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/voice-relay/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

func upper(_ context.Context, input string) (string, bool) {
	if input == "" {
		return "", false
	}

	return strings.ToUpper(input), true
}

func drain[T any](t *testing.T, ch <-chan T) []T {
	t.Helper()

	var items []T

	deadline := time.After(testTimeout)

	for {
		select {
		case item, ok := <-ch:
			if !ok {
				return items
			}

			items = append(items, item)
		case <-deadline:
			t.Fatal("timed out draining channel")
		}
	}
}

func TestNode_FansOutToEveryOutput(t *testing.T) {
	t.Parallel()

	input := make(chan string, 4)
	first := make(chan string, 4)
	second := make(chan string, 4)

	node := pipeline.NewNode(input, []chan<- string{first, second}, upper)

	input <- "gg"
	input <- ""
	input <- "nice shot"
	close(input)

	require.NoError(t, node.Run(context.Background()))

	assert.Equal(t, []string{"GG", "NICE SHOT"}, drain(t, first))
	assert.Equal(t, []string{"GG", "NICE SHOT"}, drain(t, second))
}

func TestNode_AbandonedOutputIsFatal(t *testing.T) {
	t.Parallel()

	input := make(chan string, 1)
	blocked := make(chan string)

	var discarded []string

	node := pipeline.NewNode(input, []chan<- string{blocked}, upper).
		WithDiscard(func(value string) { discarded = append(discarded, value) })

	ctx, cancel := context.WithCancel(context.Background())

	input <- "hello"

	errChan := make(chan error, 1)

	go func() {
		errChan <- node.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case runErr := <-errChan:
		require.ErrorIs(t, runErr, pipeline.ErrChannelClosed)
	case <-time.After(testTimeout):
		t.Fatal("node did not stop after cancellation")
	}

	assert.Equal(t, []string{"HELLO"}, discarded)

	_, open := <-blocked
	assert.False(t, open, "outputs are closed when the node stops")
}

func TestNode_DeliveredValueIsNotDiscarded(t *testing.T) {
	t.Parallel()

	input := make(chan string, 1)
	taken := make(chan string, 1)
	blocked := make(chan string)

	var discarded []string

	node := pipeline.NewNode(input, []chan<- string{taken, blocked}, upper).
		WithDiscard(func(value string) { discarded = append(discarded, value) })

	ctx, cancel := context.WithCancel(context.Background())

	input <- "hello"

	errChan := make(chan error, 1)

	go func() {
		errChan <- node.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case runErr := <-errChan:
		require.ErrorIs(t, runErr, pipeline.ErrChannelClosed)
	case <-time.After(testTimeout):
		t.Fatal("node did not stop after cancellation")
	}

	assert.Equal(t, []string{"HELLO"}, drain(t, taken))
	assert.Empty(t, discarded, "the first consumer owns the value it received")
}

func TestNode_StopsOnCancelWhileIdle(t *testing.T) {
	t.Parallel()

	input := make(chan string)
	output := make(chan string, 1)

	node := pipeline.NewNode(input, []chan<- string{output}, upper)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, node.Run(ctx))
}

func TestSend_FailsAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pipeline.Send(ctx, make(chan int), 1)
	require.ErrorIs(t, err, pipeline.ErrChannelClosed)
	require.ErrorIs(t, err, context.Canceled)
}
