package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultTitle = "New conversation"

const maxTitleLength = 50

// Ordered filler prefixes. Compound forms come before their shorter parts so
// that exactly one strip still removes the whole lead-in; only the first
// matching prefix is removed.
var titleFillerPrefixes = []string{
	"can you show me ",
	"could you show me ",
	"can you tell me ",
	"can you ",
	"could you ",
	"please ",
	"show me ",
	"tell me ",
	"give me ",
	"what is ",
	"what are ",
	"i want to see ",
	"i would like to see ",
}

// DeriveTitle builds a short conversation title from the first user message.
// Callers apply it only when the conversation has no prior turns and the
// current title is empty or the default placeholder.
func DeriveTitle(firstMessage string) string {
	title := strings.TrimSpace(firstMessage)

	// The trailing space appended here lets a message consisting solely of a
	// filler prefix match the space-terminated prefix entries and strip to
	// empty, which falls through to the default below.
	lower := strings.ToLower(title)
	for _, prefix := range titleFillerPrefixes {
		if strings.HasPrefix(lower+" ", prefix) {
			if len(prefix) > len(title) {
				title = ""
			} else {
				title = title[len(prefix):]
			}
			break
		}
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle
	}

	first, size := utf8.DecodeRuneInString(title)
	title = string(unicode.ToUpper(first)) + title[size:]

	if utf8.RuneCountInString(title) > maxTitleLength {
		runes := []rune(title)
		title = string(runes[:maxTitleLength-1]) + "…"
	}
	return title
}

// NeedsTitle reports whether the title heuristic should run for this turn.
func NeedsTitle(conv Conversation, priorTurns int) bool {
	if priorTurns > 0 {
		return false
	}
	return conv.Title == "" || conv.Title == DefaultTitle
}
