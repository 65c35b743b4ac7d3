package google_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/backend/google"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockTranslate = errors.New("mock translate error")

// fakeCreator writes an ID3 tag followed by the text as the "mp3" payload,
// or body when set. partial writes the file and then fails without a path.
type fakeCreator struct {
	dir     string
	fail    bool
	partial bool
	body    []byte
	release chan struct{}
	written chan struct{}
}

func (f *fakeCreator) CreateSpeechFile(text, name string) (string, error) {
	if f.release != nil {
		<-f.release
	}

	if f.fail {
		return "", errMockTranslate
	}

	payload := f.body
	if payload == nil {
		payload = []byte("ID3" + text)
	}

	path := filepath.Join(f.dir, name+".mp3")
	writeErr := os.WriteFile(path, payload, 0o600)

	if f.written != nil {
		close(f.written)
	}

	if f.partial {
		return "", errMockTranslate
	}

	return path, writeErr
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return log
}

func TestBackend_Synthesize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	backend := google.NewWithCreator(&fakeCreator{dir: dir}, dir, newTestLogger(t))

	clip, err := backend.Synthesize(context.Background(), "incoming")
	require.NoError(t, err)

	format, err := clip.Format()
	require.NoError(t, err)
	assert.Equal(t, core.FormatMP3, format)
	assert.True(t, strings.HasPrefix(filepath.Base(clip.Path()), "speech-"))

	require.NoError(t, clip.Release())
}

func TestBackend_Synthesize_Failure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	backend := google.NewWithCreator(&fakeCreator{dir: dir, fail: true}, dir, newTestLogger(t))

	_, err := backend.Synthesize(context.Background(), "incoming")
	require.ErrorIs(t, err, errMockTranslate)

	_, err = backend.Synthesize(context.Background(), "")
	require.ErrorIs(t, err, google.ErrEmptyText)
}

func TestBackend_Synthesize_AbandonedRequestCleansUp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	creator := &fakeCreator{dir: dir, release: make(chan struct{}), written: make(chan struct{})}
	backend := google.NewWithCreator(creator, dir, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Synthesize(ctx, "too late")
	require.ErrorIs(t, err, context.Canceled)

	close(creator.release)
	<-creator.written

	assert.Eventually(t, func() bool {
		entries, readErr := os.ReadDir(dir)

		return readErr == nil && len(entries) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestBackend_Synthesize_FailedDownloadLeavesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	backend := google.NewWithCreator(&fakeCreator{dir: dir, partial: true}, dir, newTestLogger(t))

	_, err := backend.Synthesize(context.Background(), "cut short")
	require.ErrorIs(t, err, errMockTranslate)

	assertDirEmpty(t, dir)
}

func TestBackend_Synthesize_ErrorPageIsRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	creator := &fakeCreator{dir: dir, body: []byte("<html>429 Too Many Requests</html>")}
	backend := google.NewWithCreator(creator, dir, newTestLogger(t))

	_, err := backend.Synthesize(context.Background(), "rate limited")
	require.ErrorIs(t, err, google.ErrNotMP3)

	assertDirEmpty(t, dir)
}

func TestBackend_Synthesize_AcceptsFrameSync(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	creator := &fakeCreator{dir: dir, body: []byte{0xFF, 0xF3, 0x44, 0xC4}}
	backend := google.NewWithCreator(creator, dir, newTestLogger(t))

	clip, err := backend.Synthesize(context.Background(), "raw frames")
	require.NoError(t, err)
	require.NoError(t, clip.Release())
}
