package extract

import (
	"regexp"
	"strings"
)

var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// Sanitize produces the display text for a raw model reply: every fenced
// block is removed (extracted content is rendered separately, never echoed as
// text), context markers and any unterminated trailing fragment of one are
// stripped, and runs of blank lines collapse. Idempotent.
func Sanitize(text string) string {
	text = stripFences(text)
	text = stripMarkers(text)
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	inFence := false

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if !inFence {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func stripMarkers(text string) string {
	for {
		start := strings.Index(text, MarkerOpen)
		if start < 0 {
			break
		}
		rest := text[start+len(MarkerOpen):]
		end := strings.Index(rest, MarkerClose)
		if end < 0 {
			// Unterminated marker: everything from the opening tag on is
			// summary payload, not prose.
			text = text[:start]
			break
		}
		text = text[:start] + rest[end+len(MarkerClose):]
	}

	// A reply cut off mid-marker leaves a partial opening tag at the end.
	for stripped := true; stripped; {
		stripped = false
		for i := len(MarkerOpen) - 1; i > 0; i-- {
			if strings.HasSuffix(text, MarkerOpen[:i]) {
				text = text[:len(text)-i]
				stripped = true
				break
			}
		}
	}
	return text
}
