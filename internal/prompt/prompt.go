package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/querychat/querychat/internal/extract"
)

// Mode selects the instruction template. Query mode is used for live
// connections, tabular mode for bound datasets, chat mode for unbound
// conversations.
type Mode string

const (
	ModeChat    Mode = "chat"
	ModeQuery   Mode = "query"
	ModeTabular Mode = "tabular"
)

const (
	maxPreviewRows  = 10
	maxPreviewChars = 4000
)

type Input struct {
	Mode       Mode
	SchemaText string
	SampleData string
	FileName   string
}

// Build synthesizes the mode-specific instruction text sent as the system
// message for every model call.
func Build(in Input) string {
	var b strings.Builder

	switch in.Mode {
	case ModeQuery:
		buildQueryInstructions(&b)
	case ModeTabular:
		buildTabularInstructions(&b, in.FileName)
	default:
		b.WriteString("You are a helpful data assistant. Answer the user's questions in plain prose.\n")
	}

	fmt.Fprintf(&b, "\nNever reproduce %s...%s markers from the conversation history; they are internal context, not content.\n",
		extract.MarkerOpen, extract.MarkerClose)

	if in.SchemaText != "" {
		b.WriteString("\nSchema:\n")
		b.WriteString(in.SchemaText)
		b.WriteString("\n")
	}
	if in.Mode == ModeTabular && in.SampleData != "" {
		b.WriteString("\nData preview:\n")
		b.WriteString(boundedPreview(in.SampleData))
		b.WriteString("\n")
	}
	return b.String()
}

func buildQueryInstructions(b *strings.Builder) {
	b.WriteString(`You are a SQL assistant for the user's database.
When a question asks about the data, always answer with exactly one fenced code block tagged sql containing a single read-only query:
- Use only SELECT or WITH statements. Never emit INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, TRUNCATE or EXEC.
- Quote identifiers that need it.
- Never write result values in prose; results are rendered from the executed query, not from your text.
Order output for charting: put the label column first and numeric columns after it. Use descending order for "top" or "highest" questions, and ascending time order for trends.
`)
}

func buildTabularInstructions(b *strings.Builder, fileName string) {
	b.WriteString("You are a data assistant for the user's uploaded file")
	if fileName != "" {
		fmt.Fprintf(b, " %q", fileName)
	}
	b.WriteString(`.
When a question asks about the data, answer with one or more fenced code blocks tagged json. Each block must be an object with "columns" (array of strings), "rows" (array of objects keyed by column), "rowCount" (integer), and optionally "title".
Do not emit SQL; there is no database to run it against.
`)
}

// boundedPreview keeps the instruction payload bounded: a parseable JSON list
// is cut to its first rows, anything else is truncated by length.
func boundedPreview(sample string) string {
	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(sample), &rows); err == nil {
		if len(rows) > maxPreviewRows {
			rows = rows[:maxPreviewRows]
		}
		if preview, err := json.Marshal(rows); err == nil {
			return string(preview)
		}
	}
	if len(sample) > maxPreviewChars {
		return sample[:maxPreviewChars]
	}
	return sample
}
