// Package chatllm synthesizes speech with a local chatllm binary that exports
// wav files.
package chatllm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/core"
)

// DefaultBinary is the executable looked up on PATH when none is configured.
const DefaultBinary = "chatllm"

var (
	// ErrModelPathRequired indicates a missing model path.
	ErrModelPathRequired = errors.New("chatllm model path is required")
	// ErrEmptyText is returned for an empty synthesis request.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoAudio indicates that the engine exited without writing audio.
	ErrNoAudio = errors.New("chatllm produced no audio")
)

// Config holds the engine invocation parameters.
type Config struct {
	BinaryPath        string
	ModelPath         string
	SnacModelPath     string
	Voice             string
	Seed              int
	NGL               int
	TopP              float64
	RepetitionPenalty float64
	Temperature       float64
}

// Engine implements core.SpeechBackend by running the chatllm binary once per
// utterance.
type Engine struct {
	config   Config
	clipsDir string
	log      *logger.Logger
}

// New creates a new Engine writing clips into clipsDir.
func New(cfg Config, clipsDir string, log *logger.Logger) (*Engine, error) {
	if cfg.ModelPath == "" {
		return nil, ErrModelPathRequired
	}

	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinary
	}

	return &Engine{
		config:   cfg,
		clipsDir: clipsDir,
		log:      log,
	}, nil
}

// Synthesize runs the engine for text and adopts the wav it exports.
func (e *Engine) Synthesize(ctx context.Context, text string) (*core.SpeechClip, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	tempFile, err := os.CreateTemp(e.clipsDir, "clip-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for tts output: %w", err)
	}

	_ = tempFile.Close()
	clip := core.ClipFromFile(tempFile.Name())

	runErr := e.run(ctx, text, tempFile.Name())
	if runErr == nil {
		runErr = ensureAudio(tempFile.Name())
	}

	if runErr != nil {
		releaseErr := clip.Release()
		if releaseErr != nil {
			e.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), releaseErr)
		}

		return nil, runErr
	}

	return clip, nil
}

func (e *Engine) run(ctx context.Context, text, exportPath string) error {
	args := e.args(text, exportPath)

	// #nosec G204 -- binary and model paths come from the operator's configuration
	cmd := exec.CommandContext(ctx, e.config.BinaryPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("chatllm binary execution failed: %w - output: %s", err, string(output))
	}

	return nil
}

func (e *Engine) args(text, exportPath string) []string {
	prompt := text
	if e.config.Voice != "" {
		prompt = fmt.Sprintf("{%s}: %s", e.config.Voice, text)
	}

	args := []string{
		"-m", e.config.ModelPath,
		"-p", prompt,
		"--tts_export", exportPath,
		"--seed", strconv.Itoa(e.config.Seed),
		"-ngl", strconv.Itoa(e.config.NGL),
		"--top_p", fmt.Sprintf("%.2f", e.config.TopP),
		"--repetition_penalty", fmt.Sprintf("%.2f", e.config.RepetitionPenalty),
		"--temp", fmt.Sprintf("%.2f", e.config.Temperature),
	}

	if e.config.SnacModelPath != "" {
		args = append(args, "--snac_model", e.config.SnacModelPath)
	}

	return args
}

func ensureAudio(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read audio data from temp file: %w", err)
	}

	if info.Size() == 0 {
		return ErrNoAudio
	}

	return nil
}
