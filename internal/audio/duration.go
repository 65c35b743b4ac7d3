// Package audio decodes speech clips, derives their exact playback duration and
// renders them on an output device.
package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/book-expert/voice-relay/internal/core"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

var (
	// ErrDecode indicates a clip whose container could not be decoded.
	ErrDecode = errors.New("failed to decode audio file")
	// ErrDurationNotFound indicates a clip whose length could not be determined.
	ErrDurationNotFound = errors.New("failed to calculate the audio duration")
	// ErrInvalidTimeBase indicates a time base with a zero denominator.
	ErrInvalidTimeBase = errors.New("time base denominator must be positive")
)

// TimeBase is the duration of one frame as a fraction of a second.
type TimeBase struct {
	Numerator   uint32
	Denominator uint32
}

// Duration returns frames * Numerator / Denominator seconds.
func (tb TimeBase) Duration(frames int64) (time.Duration, error) {
	if tb.Denominator == 0 {
		return 0, ErrInvalidTimeBase
	}

	nanos := frames * int64(tb.Numerator) * int64(time.Second) / int64(tb.Denominator)

	return time.Duration(nanos), nil
}

// probeReader hides Close from decoders so probing never closes the clip file,
// while keeping Seek so the mp3 decoder can count frames.
type probeReader struct {
	io.ReadSeeker
}

func (probeReader) Close() error {
	return nil
}

// probeDuration computes the playback length of source and rewinds it to the start.
func probeDuration(source io.ReadSeeker, format core.AudioFormat) (time.Duration, error) {
	var (
		duration time.Duration
		err      error
	)

	switch format {
	case core.FormatWAV:
		duration, err = probeWAV(source)
	case core.FormatMP3:
		duration, err = probeMP3(source)
	default:
		return 0, fmt.Errorf("%w: %q", core.ErrUnsupportedExtension, format)
	}

	if err != nil {
		return 0, err
	}

	_, seekErr := source.Seek(0, io.SeekStart)
	if seekErr != nil {
		return 0, fmt.Errorf("failed to rewind audio file: %w", seekErr)
	}

	return duration, nil
}

// probeWAV uses the container's reported total length.
func probeWAV(source io.ReadSeeker) (time.Duration, error) {
	streamer, format, err := wav.Decode(probeReader{source})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	length := streamer.Len()
	if length < 0 {
		return 0, ErrDurationNotFound
	}

	return format.SampleRate.D(length), nil
}

// probeMP3 counts the decoded frames and scales them by the stream time base,
// one frame per sample period.
func probeMP3(source io.ReadSeeker) (time.Duration, error) {
	streamer, format, err := mp3.Decode(probeReader{source})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	frames := int64(streamer.Len())
	if frames <= 0 || format.SampleRate <= 0 {
		return 0, ErrDurationNotFound
	}

	timeBase := TimeBase{Numerator: 1, Denominator: uint32(format.SampleRate)}

	return timeBase.Duration(frames)
}

// decode opens the sample stream used for playback.
func decode(source io.ReadSeekCloser, format core.AudioFormat) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		streamer beep.StreamSeekCloser
		beepFmt  beep.Format
		err      error
	)

	switch format {
	case core.FormatWAV:
		streamer, beepFmt, err = wav.Decode(source)
	case core.FormatMP3:
		streamer, beepFmt, err = mp3.Decode(source)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", core.ErrUnsupportedExtension, format)
	}

	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return streamer, beepFmt, nil
}
