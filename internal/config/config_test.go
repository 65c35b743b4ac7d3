package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/voice-relay/internal/audio"
	"github.com/book-expert/voice-relay/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
[watcher]
log_path = "/games/tf/tf2consoleoutput.log"
username = "Bonk Boy"
poll_interval_ms = 50

[steam]
folder = "/games/steam"
user_id = "76561198000000001"

[speech]
backend = "chatllm"
queue_capacity = 10
timeout_seconds = 5
normalize_text = true
clips_dir = "/tmp/clips"

[speech.webapi]
url = "http://localhost:9000/speech"

[speech.google]
language = "de"

[speech.chatllm]
binary_path = "/opt/chatllm/bin/main"
model_path = "models/orpheus.bin"
snac_model_path = "models/snac.bin"
voice = "tara"
seed = 7
ngl = 100
top_p = 0.8
repetition_penalty = 1.2
temperature = 0.5

[nats]
url = "nats://127.0.0.1:4222"
synthesis_subject = "speech.requests"
audio_object_store_bucket = "CLIPS"
request_timeout_seconds = 12

[playback]
device = "CABLE Input (VB-Audio Virtual Cable)"
push_to_talk_key = "b"
volume = 1.5

[paths]
base_logs_dir = "/var/log/voice-relay"
`

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(fullConfig), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "/games/tf/tf2consoleoutput.log", cfg.Watcher.LogPath)
	assert.Equal(t, "Bonk Boy", cfg.Watcher.Username)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, "/games/steam", cfg.Steam.Folder)
	assert.Equal(t, "chatllm", cfg.Speech.Backend)
	assert.Equal(t, 10, cfg.Speech.QueueCapacity)
	assert.Equal(t, 5*time.Second, cfg.SpeechTimeout())
	assert.True(t, cfg.Speech.NormalizeText)
	assert.Equal(t, "http://localhost:9000/speech", cfg.Speech.WebAPI.URL)
	assert.Equal(t, "de", cfg.Speech.Google.Language)
	assert.Equal(t, "tara", cfg.Speech.ChatLLM.Voice)
	assert.Equal(t, 100, cfg.Speech.ChatLLM.NGL)
	assert.InEpsilon(t, 0.8, cfg.Speech.ChatLLM.TopP, 0.001)
	assert.Equal(t, "speech.requests", cfg.NATS.SynthesisSubject)
	assert.Equal(t, 12*time.Second, cfg.NATSRequestTimeout())
	assert.Equal(t, "CABLE Input (VB-Audio Virtual Cable)", cfg.Playback.Device)
	assert.Equal(t, "b", cfg.Playback.PushToTalkKey)
	assert.InEpsilon(t, 1.5, cfg.Playback.Volume, 0.001)
	assert.Equal(t, "/var/log/voice-relay", cfg.Paths.BaseLogsDir)

	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()

	assert.Equal(t, 200*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, config.BackendWebAPI, cfg.Speech.Backend)
	assert.Equal(t, config.DefaultQueueCapacity, cfg.Speech.QueueCapacity)
	assert.Equal(t, config.DefaultSteamFolder, cfg.Steam.Folder)
	assert.Equal(t, config.DefaultPushToTalkKey, cfg.Playback.PushToTalkKey)
	assert.Equal(t, config.DefaultSynthesisSubject, cfg.NATS.SynthesisSubject)
	assert.NotEmpty(t, cfg.Speech.ClipsDir)
	assert.NotEmpty(t, cfg.Paths.BaseLogsDir)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{
			name:   "unknown backend",
			mutate: func(c *config.Config) { c.Speech.Backend = "espeak" },
			want:   config.ErrUnknownBackend,
		},
		{
			name:   "negative queue",
			mutate: func(c *config.Config) { c.Speech.QueueCapacity = -1 },
			want:   config.ErrQueueCapacity,
		},
		{
			name:   "volume too loud",
			mutate: func(c *config.Config) { c.Playback.Volume = 11 },
			want:   audio.ErrVolumeRange,
		},
		{
			name:   "nats without url",
			mutate: func(c *config.Config) { c.Speech.Backend = config.BackendNATS },
			want:   config.ErrNATSURLRequired,
		},
		{
			name:   "chatllm without model",
			mutate: func(c *config.Config) { c.Speech.Backend = config.BackendChatLLM },
			want:   config.ErrChatLLMModelRequired,
		},
		{
			name: "chatllm top_p out of range",
			mutate: func(c *config.Config) {
				c.Speech.Backend = config.BackendChatLLM
				c.Speech.ChatLLM.ModelPath = "m.bin"
				c.Speech.ChatLLM.TopP = 1.5
			},
			want: config.ErrTopPRange,
		},
		{
			name: "chatllm negative ngl",
			mutate: func(c *config.Config) {
				c.Speech.Backend = config.BackendChatLLM
				c.Speech.ChatLLM.ModelPath = "m.bin"
				c.Speech.ChatLLM.NGL = -1
			},
			want: config.ErrNGLNegative,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var cfg config.Config

			cfg.ApplyDefaults()
			testCase.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), testCase.want)
		})
	}
}

// Not parallel: t.Setenv.
func TestLoadFile_SteamUserFromEnvironment(t *testing.T) {
	t.Setenv(config.EnvSteamUserID, "76561198000000099")

	path := filepath.Join(t.TempDir(), "voice-relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "76561198000000099", cfg.Steam.UserID)
	assert.Equal(t, "Bonk Boy", cfg.Watcher.Username)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
