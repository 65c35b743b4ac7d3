// Package google synthesizes speech with the Google Translate voice through
// htgo-tts. Clips are mp3 files.
package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/google/uuid"
	htgotts "github.com/hegedustibor/htgo-tts"
	"github.com/hegedustibor/htgo-tts/voices"
)

// DefaultLanguage is the voice used when none is configured.
const DefaultLanguage = voices.English

const mp3Extension = ".mp3"

var (
	// ErrEmptyText is returned for an empty synthesis request.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNotMP3 indicates that the service answered with something other than
	// audio, such as an error page.
	ErrNotMP3 = errors.New("speech file is not mp3 audio")
)

// SpeechFileCreator writes the speech for text into a file named after name
// and returns its path.
type SpeechFileCreator interface {
	CreateSpeechFile(text, name string) (string, error)
}

// Backend is a core.SpeechBackend producing mp3 clips.
type Backend struct {
	creator SpeechFileCreator
	folder  string
	log     *logger.Logger
}

// New creates a backend writing clips into clipsDir in the given language.
func New(clipsDir, language string, log *logger.Logger) *Backend {
	if clipsDir == "" {
		clipsDir = os.TempDir()
	}

	if language == "" {
		language = DefaultLanguage
	}

	return NewWithCreator(&htgotts.Speech{Folder: clipsDir, Language: language}, clipsDir, log)
}

// NewWithCreator creates a backend around an existing speech file creator
// that writes name.mp3 files into folder.
func NewWithCreator(creator SpeechFileCreator, folder string, log *logger.Logger) *Backend {
	return &Backend{creator: creator, folder: folder, log: log}
}

type creation struct {
	path string
	err  error
}

// Synthesize fetches the speech for text. htgo-tts has no cancellation, so a
// request abandoned through ctx finishes in the background and its file is
// removed once it lands.
func (b *Backend) Synthesize(ctx context.Context, text string) (*core.SpeechClip, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	done := make(chan creation, 1)

	go func() {
		done <- b.create(text)
	}()

	select {
	case result := <-done:
		if result.err != nil {
			return nil, fmt.Errorf("failed to create speech file: %w", result.err)
		}

		return core.ClipFromFile(result.path), nil
	case <-ctx.Done():
		go b.removeLate(done)

		return nil, fmt.Errorf("speech request abandoned: %w", ctx.Err())
	}
}

// create runs one request. A failed request can leave a partial file behind
// without reporting its path, so the expected path is removed on failure.
func (b *Backend) create(text string) creation {
	name := "speech-" + uuid.NewString()
	expected := filepath.Join(b.folder, name+mp3Extension)

	path, err := b.creator.CreateSpeechFile(text, name)
	if err == nil {
		err = checkMP3(path)
	}

	if err != nil {
		for _, leftover := range []string{expected, path} {
			b.remove(leftover)
		}

		return creation{path: "", err: err}
	}

	return creation{path: path, err: nil}
}

func (b *Backend) remove(path string) {
	if path == "" {
		return
	}

	removeErr := os.Remove(path)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		b.log.Warn("Failed to remove speech file '%s': %v", path, removeErr)
	}
}

// checkMP3 accepts an ID3 tag or an MPEG frame sync at the start of the file.
func checkMP3(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open speech file: %w", err)
	}
	defer file.Close()

	header := make([]byte, 3)

	_, err = io.ReadFull(file, header)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotMP3, err)
	}

	if bytes.Equal(header, []byte("ID3")) || (header[0] == 0xFF && header[1]&0xE0 == 0xE0) {
		return nil
	}

	return ErrNotMP3
}

func (b *Backend) removeLate(done <-chan creation) {
	result := <-done
	if result.err != nil {
		return
	}

	releaseErr := core.ClipFromFile(result.path).Release()
	if releaseErr != nil {
		b.log.Warn("Failed to remove abandoned speech file: %v", releaseErr)
	}
}
