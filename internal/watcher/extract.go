package watcher

import (
	"fmt"
	"strings"

	"github.com/book-expert/voice-relay/internal/core"
)

// Chat line prefixes, most specific first. A dead teammate's line must not be
// claimed by the plain-name prefix.
const (
	prefixTeamFormat     = "(TEAM) %s :"
	prefixDeadTeamFormat = "*DEAD*(TEAM) %s :"
	prefixPlainFormat    = "%s :"
	prefixDeadFormat     = "*DEAD* %s :"
)

// chatPrefixes returns the four prefixes a chat line by username can start with.
func chatPrefixes(username string) []string {
	return []string{
		fmt.Sprintf(prefixTeamFormat, username),
		fmt.Sprintf(prefixDeadTeamFormat, username),
		fmt.Sprintf(prefixPlainFormat, username),
		fmt.Sprintf(prefixDeadFormat, username),
	}
}

// ExtractMessage returns the chat text of line when it was written by username.
func ExtractMessage(username, line string) (core.ChatMessage, bool) {
	return extractWithPrefixes(chatPrefixes(username), line)
}

func extractWithPrefixes(prefixes []string, line string) (core.ChatMessage, bool) {
	for _, prefix := range prefixes {
		if rest, found := strings.CutPrefix(line, prefix); found {
			return core.NewChatMessage(rest)
		}
	}

	return "", false
}
