// Package audiotest writes small audio fixtures for tests.
package audiotest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/voice-relay/internal/core"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// WriteSilentWAV writes a mono 16-bit WAV of the given length into dir and
// returns it as a speech clip.
func WriteSilentWAV(t *testing.T, dir string, sampleRate, frames int) *core.SpeechClip {
	t.Helper()

	file, err := os.CreateTemp(dir, "fixture-*.wav")
	if err != nil {
		t.Fatalf("failed to create wav fixture: %v", err)
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}

	encodeErr := wav.Encode(file, beep.Silence(frames), format)
	closeErr := file.Close()

	if encodeErr != nil {
		t.Fatalf("failed to encode wav fixture: %v", encodeErr)
	}

	if closeErr != nil {
		t.Fatalf("failed to close wav fixture: %v", closeErr)
	}

	return core.ClipFromFile(file.Name())
}

// WriteFile writes raw bytes under name in dir and returns it as a speech clip.
func WriteFile(t *testing.T, dir, name string, data []byte) *core.SpeechClip {
	t.Helper()

	path := filepath.Join(dir, name)

	err := os.WriteFile(path, data, 0o600)
	if err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}

	return core.ClipFromFile(path)
}
