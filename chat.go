package server

import (
	"strings"
	"unicode/utf8"
)

// MaxChatLength bounds a single chat message in characters, counted before
// normalization.
const MaxChatLength = 300

// NormalizeChatMessage validates and cleans a chat message. Messages longer
// than MaxChatLength characters or blank after trimming are rejected.
// Accepted messages have runs of whitespace collapsed to single spaces and
// are trimmed.
func NormalizeChatMessage(raw string) (string, bool) {
	if utf8.RuneCountInString(raw) > MaxChatLength {
		return "", false
	}
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	return strings.Join(strings.Fields(raw), " "), true
}
