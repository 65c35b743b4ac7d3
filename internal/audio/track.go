package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/book-expert/voice-relay/internal/core"
	"github.com/gopxl/beep"
)

// ErrProbeAborted indicates that the background decode of a clip died before
// reporting a result.
var ErrProbeAborted = errors.New("audio probe aborted")

// Track is a clip ready to be played.
type Track struct {
	Streamer beep.StreamSeekCloser
	Format   beep.Format
	Duration time.Duration
}

// Close releases the decoder and the underlying file.
func (t *Track) Close() error {
	err := t.Streamer.Close()
	if err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}

	return nil
}

type loadResult struct {
	track *Track
	err   error
}

// Load probes and decodes clip on a separate goroutine so a slow or broken
// decoder never blocks the caller past ctx.
func Load(ctx context.Context, clip *core.SpeechClip) (*Track, error) {
	format, err := clip.Format()
	if err != nil {
		return nil, err
	}

	results := make(chan loadResult, 1)

	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				results <- loadResult{track: nil, err: fmt.Errorf("%w: %v", ErrProbeAborted, recovered)}
			}
		}()

		track, loadErr := loadFile(clip.Path(), format)
		results <- loadResult{track: track, err: loadErr}
	}()

	select {
	case result := <-results:
		return result.track, result.err
	case <-ctx.Done():
		go closeLate(results)

		return nil, fmt.Errorf("%w: %w", ErrProbeAborted, ctx.Err())
	}
}

// closeLate frees a track whose caller stopped waiting.
func closeLate(results <-chan loadResult) {
	result := <-results
	if result.track != nil {
		_ = result.track.Close()
	}
}

func loadFile(path string, format core.AudioFormat) (*Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file '%s': %w", path, err)
	}

	return decodeFile(file, format)
}

// decodeFile closes file if a decoder panics, then lets the panic reach Load.
func decodeFile(file io.ReadSeekCloser, format core.AudioFormat) (*Track, error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			_ = file.Close()

			panic(recovered)
		}
	}()

	duration, err := probeDuration(file, format)
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	streamer, beepFmt, err := decode(file, format)
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	return &Track{
		Streamer: streamer,
		Format:   beepFmt,
		Duration: duration,
	}, nil
}
