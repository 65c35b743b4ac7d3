package audio

import (
	"errors"
	"fmt"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// Volume limits. 1.0 plays clips unchanged.
const (
	DefaultVolume = 1.0
	MaxVolume     = 10.0
)

// ErrVolumeRange indicates a volume outside [0, MaxVolume].
var ErrVolumeRange = errors.New("volume out of range")

// ValidateVolume checks that volume is a usable linear gain.
func ValidateVolume(volume float64) error {
	if volume < 0 || volume > MaxVolume {
		return fmt.Errorf("%w: volume must be between 0.0 and %.1f, got %.2f", ErrVolumeRange, MaxVolume, volume)
	}

	return nil
}

// applyVolume scales streamer linearly. Samples beyond full scale are clipped
// when converted for the device.
func applyVolume(streamer beep.Streamer, volume float64) beep.Streamer {
	if volume == DefaultVolume {
		return streamer
	}

	return &effects.Gain{Streamer: streamer, Gain: volume - 1}
}
