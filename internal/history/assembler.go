package history

import (
	"encoding/json"
	"sort"

	"github.com/querychat/querychat/internal/chat"
	"github.com/querychat/querychat/internal/extract"
)

// Entry is one model-ready history line.
type Entry struct {
	Role    chat.Role
	Content string
}

// Assemble orders stored turns by creation time and annotates assistant
// turns that carry a result payload with a compact context marker, so
// follow-up questions can reference prior results without the model
// re-emitting raw data. A payload that fails to decode leaves the turn
// unannotated; this never fails.
func Assemble(messages []chat.Message) []Entry {
	ordered := make([]chat.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	entries := make([]Entry, 0, len(ordered))
	for _, message := range ordered {
		content := message.Content
		if message.Role == chat.RoleAssistant && len(message.ResultJSON) > 0 {
			var result chat.QueryResult
			if err := json.Unmarshal(message.ResultJSON, &result); err == nil {
				content += "\n" + extract.RenderResultMarker(result)
			}
		}
		entries = append(entries, Entry{Role: message.Role, Content: content})
	}
	return entries
}
