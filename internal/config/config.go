// Package config provides the configuration structure for the voice relay.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/audio"
	"github.com/book-expert/voice-relay/internal/paths"
	"github.com/pelletier/go-toml/v2"
)

// EnvSteamUserID overrides steam.user_id.
const EnvSteamUserID = "STEAM_USER_ID"

// Speech backends selectable with speech.backend.
const (
	BackendWebAPI  = "webapi"
	BackendGoogle  = "google"
	BackendChatLLM = "chatllm"
	BackendNATS    = "nats"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultPollIntervalMS        = 200
	DefaultQueueCapacity         = 100
	DefaultTimeoutSeconds        = 30
	DefaultSteamFolder           = `C:\Program Files (x86)\Steam`
	DefaultSynthesisSubject      = "voice-relay.synthesize"
	DefaultAudioBucket           = "VOICE_CLIPS"
	DefaultRequestTimeoutSeconds = 30
	DefaultPushToTalkKey         = "v"
	DefaultChatLLMSeed           = 42
	DefaultChatLLMTopP           = 0.9
	DefaultChatLLMPenalty        = 1.1
	DefaultChatLLMTemperature    = 0.6
)

var (
	// ErrUnknownBackend indicates an unsupported speech.backend value.
	ErrUnknownBackend = errors.New("unknown speech backend")
	// ErrQueueCapacity indicates a non-positive queue capacity.
	ErrQueueCapacity = errors.New("speech.queue_capacity must be positive")
	// ErrNATSURLRequired indicates a missing nats.url for the nats backend.
	ErrNATSURLRequired = errors.New("nats.url is required")
	// ErrChatLLMModelRequired indicates a missing speech.chatllm.model_path.
	ErrChatLLMModelRequired = errors.New("speech.chatllm.model_path is required")
	// ErrTopPRange indicates that top_p is out of the valid range [0.0, 1.0].
	ErrTopPRange = errors.New("top_p must be between 0.0 and 1.0")
	// ErrRepetitionPenaltyRange indicates a repetition penalty below 1.0.
	ErrRepetitionPenaltyRange = errors.New("repetition penalty must be >= 1.0")
	// ErrTemperatureRange indicates a negative temperature.
	ErrTemperatureRange = errors.New("temperature must be >= 0.0")
	// ErrNGLNegative indicates that the NGL (number of GPU layers) parameter is negative.
	ErrNGLNegative = errors.New("n_gpu_layers must be non-negative")
)

// WatcherConfig selects the console log and the player whose chat is relayed.
// Empty values are resolved from the Steam installation.
type WatcherConfig struct {
	LogPath        string `toml:"log_path"`
	Username       string `toml:"username"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
}

// SteamConfig locates the Steam installation and the signed-in account.
type SteamConfig struct {
	Folder string `toml:"folder"`
	UserID string `toml:"user_id"`
}

// WebAPIConfig holds the hosted speech API settings.
type WebAPIConfig struct {
	URL string `toml:"url"`
}

// GoogleConfig holds the Google Translate voice settings.
type GoogleConfig struct {
	Language string `toml:"language"`
}

// ChatLLMConfig holds the local chatllm engine settings.
type ChatLLMConfig struct {
	BinaryPath        string  `toml:"binary_path"`
	ModelPath         string  `toml:"model_path"`
	SnacModelPath     string  `toml:"snac_model_path"`
	Voice             string  `toml:"voice"`
	Seed              int     `toml:"seed"`
	NGL               int     `toml:"ngl"`
	TopP              float64 `toml:"top_p"`
	RepetitionPenalty float64 `toml:"repetition_penalty"`
	Temperature       float64 `toml:"temperature"`
}

// SpeechConfig holds the synthesis stage configuration.
type SpeechConfig struct {
	Backend        string        `toml:"backend"`
	QueueCapacity  int           `toml:"queue_capacity"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	NormalizeText  bool          `toml:"normalize_text"`
	ClipsDir       string        `toml:"clips_dir"`
	WebAPI         WebAPIConfig  `toml:"webapi"`
	Google         GoogleConfig  `toml:"google"`
	ChatLLM        ChatLLMConfig `toml:"chatllm"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	SynthesisSubject       string `toml:"synthesis_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	RequestTimeoutSeconds  int    `toml:"request_timeout_seconds"`
}

// PlaybackConfig selects the output device and the push-to-talk key.
type PlaybackConfig struct {
	Device        string  `toml:"device"`
	PushToTalkKey string  `toml:"push_to_talk_key"`
	Volume        float64 `toml:"volume"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Watcher  WatcherConfig  `toml:"watcher"`
	Steam    SteamConfig    `toml:"steam"`
	Speech   SpeechConfig   `toml:"speech"`
	NATS     NATSConfig     `toml:"nats"`
	Playback PlaybackConfig `toml:"playback"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile loads the configuration from a TOML file on disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}

	return finish(&cfg)
}

// Default returns a configuration with only defaults and environment overrides.
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnv()
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if userID := os.Getenv(EnvSteamUserID); userID != "" {
		c.Steam.UserID = userID
	}
}

// ApplyDefaults fills every unset value with its default.
func (c *Config) ApplyDefaults() {
	if c.Watcher.PollIntervalMS <= 0 {
		c.Watcher.PollIntervalMS = DefaultPollIntervalMS
	}

	if c.Steam.Folder == "" {
		c.Steam.Folder = DefaultSteamFolder
	}

	if c.Speech.Backend == "" {
		c.Speech.Backend = BackendWebAPI
	}

	if c.Speech.QueueCapacity == 0 {
		c.Speech.QueueCapacity = DefaultQueueCapacity
	}

	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.Speech.ClipsDir == "" {
		c.Speech.ClipsDir = paths.DefaultClipsDir()
	}

	c.Speech.ChatLLM.applyDefaults()

	if c.NATS.SynthesisSubject == "" {
		c.NATS.SynthesisSubject = DefaultSynthesisSubject
	}

	if c.NATS.AudioObjectStoreBucket == "" {
		c.NATS.AudioObjectStoreBucket = DefaultAudioBucket
	}

	if c.NATS.RequestTimeoutSeconds <= 0 {
		c.NATS.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}

	if c.Playback.PushToTalkKey == "" {
		c.Playback.PushToTalkKey = DefaultPushToTalkKey
	}

	// zero means unset; muting the relay is not a use case
	if c.Playback.Volume == 0 {
		c.Playback.Volume = audio.DefaultVolume
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = paths.DefaultLogsDir()
	}
}

func (c *ChatLLMConfig) applyDefaults() {
	if c.Seed == 0 {
		c.Seed = DefaultChatLLMSeed
	}

	if c.TopP == 0 {
		c.TopP = DefaultChatLLMTopP
	}

	if c.RepetitionPenalty == 0 {
		c.RepetitionPenalty = DefaultChatLLMPenalty
	}

	if c.Temperature == 0 {
		c.Temperature = DefaultChatLLMTemperature
	}
}

// Validate checks the settings every command depends on. Watcher settings are
// checked when the watcher is built, after Steam lookups had their chance.
func (c *Config) Validate() error {
	if c.Speech.QueueCapacity <= 0 {
		return fmt.Errorf("%w: got %d", ErrQueueCapacity, c.Speech.QueueCapacity)
	}

	volumeErr := audio.ValidateVolume(c.Playback.Volume)
	if volumeErr != nil {
		return volumeErr
	}

	switch c.Speech.Backend {
	case BackendWebAPI, BackendGoogle:
		return nil
	case BackendChatLLM:
		return c.Speech.ChatLLM.validate()
	case BackendNATS:
		if c.NATS.URL == "" {
			return ErrNATSURLRequired
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Speech.Backend)
	}
}

func (c *ChatLLMConfig) validate() error {
	if c.ModelPath == "" {
		return ErrChatLLMModelRequired
	}

	if c.TopP < 0.0 || c.TopP > 1.0 {
		return fmt.Errorf("%w: got %f", ErrTopPRange, c.TopP)
	}

	// chatllm treats 1.0 as no penalty
	if c.RepetitionPenalty < 1.0 {
		return fmt.Errorf("%w: got %f", ErrRepetitionPenaltyRange, c.RepetitionPenalty)
	}

	if c.Temperature < 0.0 {
		return fmt.Errorf("%w: got %f", ErrTemperatureRange, c.Temperature)
	}

	if c.NGL < 0 {
		return fmt.Errorf("%w: got %d", ErrNGLNegative, c.NGL)
	}

	return nil
}

// PollInterval returns watcher.poll_interval_ms as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watcher.PollIntervalMS) * time.Millisecond
}

// SpeechTimeout returns speech.timeout_seconds as a duration.
func (c *Config) SpeechTimeout() time.Duration {
	return time.Duration(c.Speech.TimeoutSeconds) * time.Second
}

// NATSRequestTimeout returns nats.request_timeout_seconds as a duration.
func (c *Config) NATSRequestTimeout() time.Duration {
	return time.Duration(c.NATS.RequestTimeoutSeconds) * time.Second
}
