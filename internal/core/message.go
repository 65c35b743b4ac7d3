package core

import "strings"

// ChatMessage is one utterance attributed to the configured player.
type ChatMessage string

// NewChatMessage trims text and reports whether anything is left to say.
func NewChatMessage(text string) (ChatMessage, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	return ChatMessage(trimmed), true
}

// String returns the message text.
func (m ChatMessage) String() string {
	return string(m)
}
