package speech_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/book-expert/voice-relay/internal/pipeline"
	"github.com/book-expert/voice-relay/internal/speech"
	"github.com/book-expert/voice-relay/internal/speech/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockBackend = errors.New("mock backend error")

// mockBackend writes each text into a clip and records what it was asked for.
type mockBackend struct {
	mu       sync.Mutex
	dir      string
	requests []string
	failOn   map[string]bool
	block    bool
}

func (m *mockBackend) Synthesize(ctx context.Context, spoken string) (*core.SpeechClip, error) {
	m.mu.Lock()
	m.requests = append(m.requests, spoken)
	fail := m.failOn[spoken]
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()

		return nil, ctx.Err()
	}

	if fail {
		return nil, errMockBackend
	}

	return core.NewSpeechClip(m.dir, core.FormatWAV, []byte(spoken))
}

func (m *mockBackend) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.requests...)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return log
}

func feed(messages ...string) <-chan core.ChatMessage {
	input := make(chan core.ChatMessage, len(messages))

	for _, raw := range messages {
		message, ok := core.NewChatMessage(raw)
		if ok {
			input <- message
		}
	}

	close(input)

	return input
}

func drain(t *testing.T, output <-chan *core.SpeechClip) []string {
	t.Helper()

	var contents []string

	for clip := range output {
		data, err := os.ReadFile(clip.Path())
		require.NoError(t, err)

		contents = append(contents, string(data))

		require.NoError(t, clip.Release())
	}

	return contents
}

func TestStage_PreservesArrivalOrder(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{dir: t.TempDir()}
	output := make(chan *core.SpeechClip, 10)
	stage := speech.NewStage(backend, feed("first", "second", "third"), output, newTestLogger(t))

	require.NoError(t, stage.Run(context.Background()))
	assert.Equal(t, []string{"first", "second", "third"}, drain(t, output))
}

func TestStage_BackendFailureDropsOnlyThatMessage(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{dir: t.TempDir(), failOn: map[string]bool{"bad": true}}
	output := make(chan *core.SpeechClip, 10)
	stage := speech.NewStage(backend, feed("good", "bad", "after"), output, newTestLogger(t))

	require.NoError(t, stage.Run(context.Background()))
	assert.Equal(t, []string{"good", "after"}, drain(t, output))
	assert.Equal(t, []string{"good", "bad", "after"}, backend.seen())
}

func TestStage_NormalizesBeforeSynthesis(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{dir: t.TempDir()}
	output := make(chan *core.SpeechClip, 10)
	stage := speech.NewStage(
		backend,
		feed("need 2 medics!!!", "???"),
		output,
		newTestLogger(t),
		speech.WithNormalizer(text.NewNormalizer()),
	)

	require.NoError(t, stage.Run(context.Background()))
	assert.Equal(t, []string{"need two medics!"}, drain(t, output))
	assert.Equal(t, []string{"need two medics!"}, backend.seen())
}

func TestStage_TimeoutDropsSlowMessage(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{dir: t.TempDir(), block: true}
	output := make(chan *core.SpeechClip, 10)
	stage := speech.NewStage(
		backend,
		feed("slow"),
		output,
		newTestLogger(t),
		speech.WithTimeout(20*time.Millisecond),
	)

	require.NoError(t, stage.Run(context.Background()))
	assert.Empty(t, drain(t, output))
}

func TestStage_AbandonedOutputReleasesClip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	backend := &mockBackend{dir: dir}
	output := make(chan *core.SpeechClip)
	stage := speech.NewStage(backend, feed("nobody listens"), output, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- stage.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(backend.seen()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, pipeline.ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("stage did not stop after cancellation")
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, open := <-output
	assert.False(t, open)
}
