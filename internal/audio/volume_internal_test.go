package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateVolume(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateVolume(0))
	require.NoError(t, ValidateVolume(DefaultVolume))
	require.NoError(t, ValidateVolume(MaxVolume))
	require.ErrorIs(t, ValidateVolume(-0.1), ErrVolumeRange)
	require.ErrorIs(t, ValidateVolume(MaxVolume+1), ErrVolumeRange)
}

type constantStreamer struct {
	left, right float64
}

func (c *constantStreamer) Stream(buffer [][2]float64) (int, bool) {
	for i := range buffer {
		buffer[i] = [2]float64{c.left, c.right}
	}

	return len(buffer), true
}

func (c *constantStreamer) Err() error {
	return nil
}

func TestApplyVolume(t *testing.T) {
	t.Parallel()

	constant := func() *constantStreamer {
		return &constantStreamer{left: 0.25, right: -0.25}
	}

	unchanged := constant()
	assert.Same(t, unchanged, applyVolume(unchanged, DefaultVolume))

	buffer := make([][2]float64, 4)
	n, ok := applyVolume(constant(), 2).Stream(buffer)
	require.True(t, ok)
	require.Equal(t, 4, n)
	assert.InDelta(t, 0.5, buffer[0][0], 1e-9)
	assert.InDelta(t, -0.5, buffer[3][1], 1e-9)

	n, _ = applyVolume(constant(), 0).Stream(buffer)
	require.Equal(t, 4, n)
	assert.InDelta(t, 0, buffer[1][0], 1e-9)
}
