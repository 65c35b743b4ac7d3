// Package watcher tails the game console log and extracts the configured
// player's chat lines.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/book-expert/voice-relay/internal/pipeline"
)

const (
	// DefaultPollInterval is how often the log file is checked for growth.
	DefaultPollInterval = 200 * time.Millisecond

	logFilePermissions = 0o644
	logDirPermissions  = 0o750
	replacementChar    = "�"
)

var (
	// ErrLogPathEmpty indicates that no log file was configured.
	ErrLogPathEmpty = errors.New("log path cannot be empty")
	// ErrUsernameEmpty indicates that no player name was configured.
	ErrUsernameEmpty = errors.New("username cannot be empty")
	// ErrReadChunk indicates an I/O failure while reading newly appended bytes.
	ErrReadChunk = errors.New("failed to read log chunk")
)

// Config holds what the watcher needs to know about the log.
type Config struct {
	Path         string
	Username     string
	PollInterval time.Duration
}

// LogWatcher polls a growing log file and emits chat messages written by one player.
type LogWatcher struct {
	path     string
	interval time.Duration
	prefixes []string
	out      chan<- core.ChatMessage
	log      *logger.Logger
}

// New creates a watcher sending to out. The watcher owns out and closes it
// when Watch returns.
func New(cfg Config, out chan<- core.ChatMessage, log *logger.Logger) (*LogWatcher, error) {
	if cfg.Path == "" {
		return nil, ErrLogPathEmpty
	}

	if cfg.Username == "" {
		return nil, ErrUsernameEmpty
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &LogWatcher{
		path:     cfg.Path,
		interval: interval,
		prefixes: chatPrefixes(cfg.Username),
		out:      out,
		log:      log,
	}, nil
}

// Run implements pipeline.Runner.
func (w *LogWatcher) Run(ctx context.Context) error {
	return w.Watch(ctx)
}

// Watch tails the log until ctx is done or an unrecoverable error occurs.
// Content present before the call is never emitted.
func (w *LogWatcher) Watch(ctx context.Context) error {
	defer close(w.out)

	cursor, err := w.prepare()
	if err != nil {
		return err
	}

	w.log.Info("Watching '%s' from offset %d", w.path, cursor)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		cursor, err = w.poll(ctx, cursor)
		if err != nil {
			return err
		}
	}
}

// prepare creates the log when missing and returns its current length.
func (w *LogWatcher) prepare() (int64, error) {
	mkdirErr := os.MkdirAll(filepath.Dir(w.path), logDirPermissions)
	if mkdirErr != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", mkdirErr)
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDONLY, logFilePermissions)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file '%s': %w", w.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat log file '%s': %w", w.path, err)
	}

	return info.Size(), nil
}

// poll handles one tick and returns the new cursor. The cursor only moves
// after every message of the chunk has been handed downstream.
func (w *LogWatcher) poll(ctx context.Context, cursor int64) (int64, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.log.Warn("Failed to stat log file '%s': %v", w.path, err)
		}

		return cursor, nil
	}

	newLen := info.Size()

	if newLen < cursor {
		w.log.Warn("Log file '%s' shrank from %d to %d bytes, reading from the start", w.path, cursor, newLen)

		cursor = 0
	}

	if newLen == cursor {
		return cursor, nil
	}

	chunk, skip, err := w.readChunk(cursor, newLen)
	if err != nil {
		return cursor, err
	}

	if skip {
		return cursor, nil
	}

	sendErr := w.emit(ctx, chunk)
	if sendErr != nil {
		return cursor, sendErr
	}

	return newLen, nil
}

// readChunk reads exactly the bytes in [from, to). skip reports that the file
// could not be opened this tick or shrank after it was measured, which is not
// an error: the next poll sees the new length.
func (w *LogWatcher) readChunk(from, to int64) (chunk string, skip bool, err error) {
	file, openErr := os.Open(w.path)
	if openErr != nil {
		if !errors.Is(openErr, os.ErrNotExist) {
			w.log.Warn("Failed to open log file '%s': %v", w.path, openErr)
		}

		return "", true, nil
	}
	defer file.Close()

	_, seekErr := file.Seek(from, io.SeekStart)
	if seekErr != nil {
		return "", false, fmt.Errorf("%w: seek to %d: %w", ErrReadChunk, from, seekErr)
	}

	buffer := make([]byte, to-from)

	_, readErr := io.ReadFull(file, buffer)
	if errors.Is(readErr, io.ErrUnexpectedEOF) || errors.Is(readErr, io.EOF) {
		w.log.Warn("Log file '%s' shrank while reading at %d", w.path, from)

		return "", true, nil
	}

	if readErr != nil {
		return "", false, fmt.Errorf("%w: read %d bytes at %d: %w", ErrReadChunk, len(buffer), from, readErr)
	}

	return strings.ToValidUTF8(string(buffer), replacementChar), false, nil
}

func (w *LogWatcher) emit(ctx context.Context, chunk string) error {
	for _, line := range strings.Split(chunk, "\n") {
		message, ok := extractWithPrefixes(w.prefixes, strings.TrimSuffix(line, "\r"))
		if !ok {
			continue
		}

		w.log.Info("Chat message detected: %s", message)

		sendErr := pipeline.Send(ctx, w.out, message)
		if sendErr != nil {
			return sendErr
		}
	}

	return nil
}
