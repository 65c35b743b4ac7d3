// Package keys injects the push-to-talk key into the operating system.
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/micmonay/keybd_event"
)

// DefaultKey is the voice-chat key used when none is configured.
const DefaultKey = "v"

// ErrUnknownKey indicates a key name that has no virtual key code.
var ErrUnknownKey = errors.New("unknown push-to-talk key")

var keyCodes = map[string]int{
	"a": keybd_event.VK_A, "b": keybd_event.VK_B, "c": keybd_event.VK_C,
	"d": keybd_event.VK_D, "e": keybd_event.VK_E, "f": keybd_event.VK_F,
	"g": keybd_event.VK_G, "h": keybd_event.VK_H, "i": keybd_event.VK_I,
	"j": keybd_event.VK_J, "k": keybd_event.VK_K, "l": keybd_event.VK_L,
	"m": keybd_event.VK_M, "n": keybd_event.VK_N, "o": keybd_event.VK_O,
	"p": keybd_event.VK_P, "q": keybd_event.VK_Q, "r": keybd_event.VK_R,
	"s": keybd_event.VK_S, "t": keybd_event.VK_T, "u": keybd_event.VK_U,
	"v": keybd_event.VK_V, "w": keybd_event.VK_W, "x": keybd_event.VK_X,
	"y": keybd_event.VK_Y, "z": keybd_event.VK_Z,
	"0": keybd_event.VK_0, "1": keybd_event.VK_1, "2": keybd_event.VK_2,
	"3": keybd_event.VK_3, "4": keybd_event.VK_4, "5": keybd_event.VK_5,
	"6": keybd_event.VK_6, "7": keybd_event.VK_7, "8": keybd_event.VK_8,
	"9": keybd_event.VK_9,
}

// Code resolves a key name such as "v" or "5" to its virtual key code.
func Code(name string) (int, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultKey
	}

	code, ok := keyCodes[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}

	return code, nil
}

// Keyboard holds one key through the OS keyboard event API.
// It satisfies core.KeyInjector.
type Keyboard struct {
	bonding keybd_event.KeyBonding
	name    string
}

// NewKeyboard binds the named key.
func NewKeyboard(name string) (*Keyboard, error) {
	code, err := Code(name)
	if err != nil {
		return nil, err
	}

	bonding, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyboard events: %w", err)
	}

	bonding.SetKeys(code)

	return &Keyboard{bonding: bonding, name: name}, nil
}

// Press asserts the key.
func (k *Keyboard) Press() error {
	err := k.bonding.Press()
	if err != nil {
		return fmt.Errorf("failed to press key %q: %w", k.name, err)
	}

	return nil
}

// Release lets go of the key.
func (k *Keyboard) Release() error {
	err := k.bonding.Release()
	if err != nil {
		return fmt.Errorf("failed to release key %q: %w", k.name, err)
	}

	return nil
}
