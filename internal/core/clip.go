package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const clipFilePermissions = 0o600

// AudioFormat identifies the container of a speech clip.
type AudioFormat string

// Supported clip containers.
const (
	FormatWAV AudioFormat = "wav"
	FormatMP3 AudioFormat = "mp3"
)

var (
	// ErrMissingExtension indicates a clip file without an extension.
	ErrMissingExtension = errors.New("audio file with no extension is not supported")
	// ErrUnsupportedExtension indicates a clip file that is neither wav nor mp3.
	ErrUnsupportedExtension = errors.New("unsupported audio extension, only mp3 and wav are supported")
)

// FormatFromPath derives the clip format from the file extension.
func FormatFromPath(path string) (AudioFormat, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", ErrMissingExtension
	}

	switch AudioFormat(strings.ToLower(ext)) {
	case FormatWAV:
		return FormatWAV, nil
	case FormatMP3:
		return FormatMP3, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
}

// SpeechClip is a temporary audio file produced by a speech backend.
// Whoever currently holds the clip owns it and must call Release once done.
type SpeechClip struct {
	path        string
	releaseOnce sync.Once
	releaseErr  error
}

// ClipFromFile adopts an existing file as a speech clip.
func ClipFromFile(path string) *SpeechClip {
	return &SpeechClip{path: path}
}

// NewSpeechClip writes data to a fresh temp file in dir carrying the format's
// extension. An empty dir means the system temp directory.
func NewSpeechClip(dir string, format AudioFormat, data []byte) (*SpeechClip, error) {
	file, err := os.CreateTemp(dir, "clip-*."+string(format))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for speech clip: %w", err)
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()

	if writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		_ = os.Remove(file.Name())

		return nil, fmt.Errorf("failed to write speech clip '%s': %w", file.Name(), writeErr)
	}

	chmodErr := os.Chmod(file.Name(), clipFilePermissions)
	if chmodErr != nil {
		_ = os.Remove(file.Name())

		return nil, fmt.Errorf("failed to set permissions on speech clip: %w", chmodErr)
	}

	return ClipFromFile(file.Name()), nil
}

// Path returns the clip's file path.
func (c *SpeechClip) Path() string {
	return c.path
}

// Format returns the container format implied by the clip's extension.
func (c *SpeechClip) Format() (AudioFormat, error) {
	return FormatFromPath(c.path)
}

// Release deletes the clip's file. Calling it more than once is harmless.
func (c *SpeechClip) Release() error {
	c.releaseOnce.Do(func() {
		err := os.Remove(c.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			c.releaseErr = fmt.Errorf("failed to remove speech clip '%s': %w", c.path, err)
		}
	})

	return c.releaseErr
}
