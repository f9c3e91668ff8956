package extract

import (
	"encoding/json"

	"github.com/querychat/querychat/internal/chat"
)

// Tables extracts tabular payloads from json-tagged fenced blocks. A block
// counts only if it decodes and carries both a columns and a rows field;
// anything else is skipped. One valid block is returned directly, several are
// wrapped as a multi-table payload, none yields nil.
func Tables(text string) *chat.QueryResult {
	results := make([]chat.QueryResult, 0)
	for _, block := range scanFences(text) {
		if block.Tag != "json" || !block.Terminated {
			continue
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(block.Body), &fields); err != nil {
			continue
		}
		if _, ok := fields["columns"]; !ok {
			continue
		}
		if _, ok := fields["rows"]; !ok {
			continue
		}

		var result chat.QueryResult
		if err := json.Unmarshal([]byte(block.Body), &result); err != nil {
			continue
		}
		if result.RowCount == 0 {
			result.RowCount = len(result.Rows)
		}
		results = append(results, result)
	}

	switch len(results) {
	case 0:
		return nil
	case 1:
		return &results[0]
	default:
		return &chat.QueryResult{Tables: results}
	}
}
