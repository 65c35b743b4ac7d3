package chatllm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/backend/chatllm"
	"github.com/book-expert/voice-relay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngineScript writes its prompt into the --tts_export target.
const fakeEngineScript = `#!/bin/sh
prompt=""
export_path=""
while [ $# -gt 0 ]; do
  case "$1" in
    -p) prompt="$2"; shift 2 ;;
    --tts_export) export_path="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf '%s' "$prompt" > "$export_path"
`

const silentEngineScript = "#!/bin/sh\nexit 0\n"

const failingEngineScript = "#!/bin/sh\necho 'model not found' >&2\nexit 3\n"

func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chatllm")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o700))

	return path
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return log
}

func newEngine(t *testing.T, script, clipsDir string) *chatllm.Engine {
	t.Helper()

	engine, err := chatllm.New(chatllm.Config{
		BinaryPath:        writeScript(t, script),
		ModelPath:         "orpheus.bin",
		SnacModelPath:     "snac.bin",
		Voice:             "tara",
		Seed:              42,
		NGL:               100,
		TopP:              0.9,
		RepetitionPenalty: 1.1,
		Temperature:       0.6,
	}, clipsDir, newTestLogger(t))
	require.NoError(t, err)

	return engine
}

func TestNew_RequiresModel(t *testing.T) {
	t.Parallel()

	_, err := chatllm.New(chatllm.Config{}, "", newTestLogger(t))
	require.ErrorIs(t, err, chatllm.ErrModelPathRequired)
}

// Engine tests run serially: exec of a freshly written script fails with
// ETXTBSY when another test forks while the script is still open for writing.
func TestEngine_Synthesize(t *testing.T) {
	engine := newEngine(t, fakeEngineScript, t.TempDir())

	clip, err := engine.Synthesize(context.Background(), "sentry down")
	require.NoError(t, err)

	format, err := clip.Format()
	require.NoError(t, err)
	assert.Equal(t, core.FormatWAV, format)

	data, err := os.ReadFile(clip.Path())
	require.NoError(t, err)
	assert.Equal(t, "{tara}: sentry down", string(data))

	require.NoError(t, clip.Release())
}

func TestEngine_Synthesize_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{name: "engine exits with error", script: failingEngineScript},
		{name: "engine writes nothing", script: silentEngineScript},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			clipsDir := t.TempDir()
			engine := newEngine(t, testCase.script, clipsDir)

			_, err := engine.Synthesize(context.Background(), "sentry down")
			require.Error(t, err)

			entries, readErr := os.ReadDir(clipsDir)
			require.NoError(t, readErr)
			assert.Empty(t, entries)
		})
	}
}
