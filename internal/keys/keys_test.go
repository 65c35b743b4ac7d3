package keys_test

import (
	"testing"

	"github.com/book-expert/voice-relay/internal/keys"
	"github.com/micmonay/keybd_event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	t.Parallel()

	code, err := keys.Code("V")
	require.NoError(t, err)
	assert.Equal(t, keybd_event.VK_V, code)

	code, err = keys.Code("")
	require.NoError(t, err)
	assert.Equal(t, keybd_event.VK_V, code, "empty name falls back to the default key")

	code, err = keys.Code(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, keybd_event.VK_7, code)

	_, err = keys.Code("ctrl")
	require.ErrorIs(t, err, keys.ErrUnknownKey)
}
