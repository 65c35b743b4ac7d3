package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/audio"
	"github.com/book-expert/voice-relay/internal/backend/chatllm"
	"github.com/book-expert/voice-relay/internal/backend/google"
	"github.com/book-expert/voice-relay/internal/backend/natsspeech"
	"github.com/book-expert/voice-relay/internal/backend/webapi"
	"github.com/book-expert/voice-relay/internal/config"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/book-expert/voice-relay/internal/keys"
	"github.com/book-expert/voice-relay/internal/objectstore"
	"github.com/book-expert/voice-relay/internal/paths"
	"github.com/book-expert/voice-relay/internal/pipeline"
	"github.com/book-expert/voice-relay/internal/playback"
	"github.com/book-expert/voice-relay/internal/speech"
	"github.com/book-expert/voice-relay/internal/speech/text"
	"github.com/book-expert/voice-relay/internal/steam"
	"github.com/book-expert/voice-relay/internal/watcher"
	"github.com/nats-io/nats.go"
)

var (
	// ErrRemoteBackendNotServable indicates serve-speech configured with the
	// nats backend, which would forward requests to itself.
	ErrRemoteBackendNotServable = errors.New("serve-speech needs a local backend, not nats")
	// ErrNothingSpoken indicates that synthesis produced no clip for say.
	ErrNothingSpoken = errors.New("no speech was produced, see the log for details")
)

// connection is a NATS link shared by the nats backend and the worker.
type connection struct {
	conn  *nats.Conn
	store *objectstore.NatsObjectStore
}

func connectNATS(cfg *config.Config, log *logger.Logger) (*connection, error) {
	if cfg.NATS.URL == "" {
		return nil, config.ErrNATSURLRequired
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name("voice-relay"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		natsConnection.Close()

		return nil, fmt.Errorf("failed to open clip bucket: %w", err)
	}

	log.Info("Connected to NATS at %s, clip bucket %s", cfg.NATS.URL, cfg.NATS.AudioObjectStoreBucket)

	return &connection{conn: natsConnection, store: store}, nil
}

// newLocalBackend builds a backend that synthesizes on this machine.
func newLocalBackend(cfg *config.Config, log *logger.Logger) (core.SpeechBackend, error) {
	clipsDir := cfg.Speech.ClipsDir

	switch cfg.Speech.Backend {
	case config.BackendWebAPI:
		return webapi.NewClient(cfg.Speech.WebAPI.URL, clipsDir, cfg.SpeechTimeout()), nil
	case config.BackendGoogle:
		return google.New(clipsDir, cfg.Speech.Google.Language, log), nil
	case config.BackendChatLLM:
		llm := cfg.Speech.ChatLLM

		engine, err := chatllm.New(chatllm.Config{
			BinaryPath:        llm.BinaryPath,
			ModelPath:         llm.ModelPath,
			SnacModelPath:     llm.SnacModelPath,
			Voice:             llm.Voice,
			Seed:              llm.Seed,
			NGL:               llm.NGL,
			TopP:              llm.TopP,
			RepetitionPenalty: llm.RepetitionPenalty,
			Temperature:       llm.Temperature,
		}, clipsDir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create chatllm engine: %w", err)
		}

		return engine, nil
	case config.BackendNATS:
		return nil, ErrRemoteBackendNotServable
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Speech.Backend)
	}
}

// newWorkerBackend builds the local backend serve-speech answers with.
func newWorkerBackend(cfg *config.Config, log *logger.Logger) (core.SpeechBackend, error) {
	dirErr := paths.EnsureDir(cfg.Speech.ClipsDir)
	if dirErr != nil {
		return nil, dirErr
	}

	return newLocalBackend(cfg, log)
}

// newBackend builds the configured backend. The returned cleanup must run
// once the backend is no longer used.
func newBackend(cfg *config.Config, log *logger.Logger) (core.SpeechBackend, func(), error) {
	if cfg.Speech.Backend != config.BackendNATS {
		backend, err := newWorkerBackend(cfg, log)
		if err != nil {
			return nil, nil, err
		}

		return backend, func() {}, nil
	}

	dirErr := paths.EnsureDir(cfg.Speech.ClipsDir)
	if dirErr != nil {
		return nil, nil, dirErr
	}

	link, err := connectNATS(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	client := natsspeech.NewClient(
		link.conn,
		cfg.NATS.SynthesisSubject,
		link.store,
		cfg.Speech.ClipsDir,
		cfg.Steam.UserID,
		log,
	)

	return client, link.conn.Close, nil
}

// stageTimeout bounds one backend call. Remote synthesis waits on the NATS
// request timeout instead of the local one.
func stageTimeout(cfg *config.Config) speech.Option {
	if cfg.Speech.Backend == config.BackendNATS {
		return speech.WithTimeout(cfg.NATSRequestTimeout())
	}

	return speech.WithTimeout(cfg.SpeechTimeout())
}

// resolveWatcher fills in the console log and player name from the Steam
// installation when they are not configured.
func resolveWatcher(cfg *config.Config, log *logger.Logger) (watcher.Config, error) {
	watcherCfg := watcher.Config{
		Path:         cfg.Watcher.LogPath,
		Username:     cfg.Watcher.Username,
		PollInterval: cfg.PollInterval(),
	}

	if watcherCfg.Path == "" {
		watcherCfg.Path = steam.LogPath(cfg.Steam.Folder)
	}

	if watcherCfg.Username == "" {
		account, err := steam.LookupAccount(cfg.Steam.Folder, cfg.Steam.UserID)
		if err != nil {
			return watcher.Config{}, fmt.Errorf("failed to resolve player name: %w", err)
		}

		watcherCfg.Username = account.PersonaName
	}

	log.Info("Watching %s for chat from %s", watcherCfg.Path, watcherCfg.Username)

	return watcherCfg, nil
}

// playbackDevices holds the controller's handles.
type playbackDevices struct {
	keys   *keys.Keyboard
	output *audio.Output
}

func openPlayback(cfg *config.Config, log *logger.Logger) (*playbackDevices, error) {
	keyboard, err := keys.NewKeyboard(cfg.Playback.PushToTalkKey)
	if err != nil {
		return nil, fmt.Errorf("failed to bind push-to-talk key: %w", err)
	}

	output, err := audio.OpenOutput(cfg.Playback.Device, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}

	volumeErr := output.SetVolume(cfg.Playback.Volume)
	if volumeErr != nil {
		_ = output.Close()

		return nil, volumeErr
	}

	return &playbackDevices{keys: keyboard, output: output}, nil
}

func (d *playbackDevices) close(log *logger.Logger) {
	closeErr := d.output.Close()
	if closeErr != nil {
		log.Warn("Failed to close audio output: %v", closeErr)
	}
}

// stageOptions translates the speech section into stage options.
func stageOptions(cfg *config.Config) []speech.Option {
	opts := []speech.Option{stageTimeout(cfg)}

	if cfg.Speech.NormalizeText {
		opts = append(opts, speech.WithNormalizer(text.NewNormalizer()))
	}

	return opts
}

// newRelay wires watcher, synthesis stage and controller with bounded queues.
func newRelay(
	cfg *config.Config,
	watcherCfg watcher.Config,
	backend core.SpeechBackend,
	keyInjector core.KeyInjector,
	output core.AudioOutput,
	log *logger.Logger,
) (*pipeline.Relay, error) {
	messages := make(chan core.ChatMessage, cfg.Speech.QueueCapacity)
	clips := make(chan *core.SpeechClip, cfg.Speech.QueueCapacity)

	logWatcher, err := watcher.New(watcherCfg, messages, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create log watcher: %w", err)
	}

	stage := speech.NewStage(backend, messages, clips, log, stageOptions(cfg)...)
	controller := playback.New(clips, keyInjector, output, log)

	return pipeline.NewRelay(log,
		pipeline.Stage{Name: "watcher", Runner: logWatcher},
		pipeline.Stage{Name: "speech", Runner: stage},
		pipeline.Stage{Name: "playback", Runner: controller},
	), nil
}

// speakOnce synthesizes text and plays it with push-to-talk held.
func speakOnce(
	ctx context.Context,
	message core.ChatMessage,
	backend core.SpeechBackend,
	keyInjector core.KeyInjector,
	output core.AudioOutput,
	log *logger.Logger,
	opts ...speech.Option,
) error {
	messages := make(chan core.ChatMessage, 1)
	clips := make(chan *core.SpeechClip, 1)

	messages <- message
	close(messages)

	stage := speech.NewStage(backend, messages, clips, log, opts...)

	err := stage.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to synthesize: %w", err)
	}

	if len(clips) == 0 {
		return ErrNothingSpoken
	}

	return playback.New(clips, keyInjector, output, log).Run(ctx)
}
