package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/querychat/querychat/internal/chat"
)

// The context marker carries compact prior-result summaries through
// conversation history. The model is instructed never to echo it; when it
// does anyway, ParseResultMarker recovers a payload from the echo.
const (
	MarkerOpen  = "[QUERY_RESULT]"
	MarkerClose = "[/QUERY_RESULT]"
)

const markerMaxInlineRows = 5

// RenderResultMarker renders a stored result as a context marker. Small
// results are inlined row by row; anything larger collapses to a row count so
// history stays bounded.
func RenderResultMarker(result chat.QueryResult) string {
	if len(result.Tables) > 0 {
		total := 0
		for _, table := range result.Tables {
			total += table.RowCount
		}
		return fmt.Sprintf("%s%d tables, %d rows%s", MarkerOpen, len(result.Tables), total, MarkerClose)
	}
	if len(result.Rows) == 0 || len(result.Rows) > markerMaxInlineRows {
		return fmt.Sprintf("%s%d rows%s", MarkerOpen, result.RowCount, MarkerClose)
	}

	rendered := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		pairs := make([]string, 0, len(row))
		for _, column := range columnOrder(result.Columns, row) {
			value, ok := row[column]
			if !ok {
				continue
			}
			pairs = append(pairs, fmt.Sprintf("%s=%v", column, value))
		}
		rendered = append(rendered, strings.Join(pairs, ", "))
	}
	return MarkerOpen + strings.Join(rendered, "|") + MarkerClose
}

// ParseResultMarker recovers a canonical payload from a marker the model
// quoted back verbatim. Nil means the marker is absent or unparseable; this
// is a recovery path and never an error.
func ParseResultMarker(text string) *chat.QueryResult {
	start := strings.Index(text, MarkerOpen)
	if start < 0 {
		return nil
	}
	rest := text[start+len(MarkerOpen):]
	end := strings.Index(rest, MarkerClose)
	if end < 0 {
		return nil
	}
	body := strings.TrimSpace(rest[:end])
	if body == "" || !strings.Contains(body, "=") {
		return nil
	}

	rows := make([]map[string]any, 0)
	var columns []string
	for _, rawRow := range strings.Split(body, "|") {
		row := make(map[string]any)
		for _, pair := range strings.Split(rawRow, ", ") {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if len(rows) == 0 && !containsString(columns, key) {
				columns = append(columns, key)
			}
			row[key] = coerceScalar(strings.TrimSpace(value))
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	return &chat.QueryResult{
		Columns:  columns,
		Rows:     rows,
		RowCount: len(rows),
	}
}

func coerceScalar(value string) any {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func columnOrder(columns []string, row map[string]any) []string {
	if len(columns) > 0 {
		return columns
	}
	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
