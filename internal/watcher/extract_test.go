package watcher_test

import (
	"testing"

	"github.com/book-expert/voice-relay/internal/core"
	"github.com/book-expert/voice-relay/internal/watcher"
	"github.com/stretchr/testify/assert"
)

func TestExtractMessage(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		line     string
		expected core.ChatMessage
		found    bool
	}{
		{name: "plain", line: "Foo : hello there", expected: "hello there", found: true},
		{name: "team", line: "(TEAM) Foo : push cart", expected: "push cart", found: true},
		{name: "dead team", line: "*DEAD*(TEAM) Foo : gg", expected: "gg", found: true},
		{name: "dead", line: "*DEAD* Foo :  nice shot  ", expected: "nice shot", found: true},
		{name: "prefix stripped once", line: "Foo : Foo : echo", expected: "Foo : echo", found: true},
		{name: "other player", line: "Bar : hi", found: false},
		{name: "name inside text", line: "Bar : Foo : hi", found: false},
		{name: "empty remainder", line: "Foo :   ", found: false},
		{name: "unrelated", line: "Connected to 127.0.0.1:27015", found: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			message, found := watcher.ExtractMessage("Foo", testCase.line)
			assert.Equal(t, testCase.found, found)
			assert.Equal(t, testCase.expected, message)
		})
	}
}

func TestExtractMessage_NameWithSpaces(t *testing.T) {
	t.Parallel()

	message, found := watcher.ExtractMessage("Big Foo", "*DEAD*(TEAM) Big Foo : medic!")
	assert.True(t, found)
	assert.Equal(t, core.ChatMessage("medic!"), message)
}
