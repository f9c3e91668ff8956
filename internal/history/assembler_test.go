package history

import (
	"strings"
	"testing"
	"time"

	"github.com/querychat/querychat/internal/chat"
	"github.com/querychat/querychat/internal/extract"
)

func TestAssembleOrdersByCreationTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	messages := []chat.Message{
		{Role: chat.RoleAssistant, Content: "second", CreatedAt: base.Add(time.Minute)},
		{Role: chat.RoleUser, Content: "first", CreatedAt: base},
	}
	entries := Assemble(messages)
	if len(entries) != 2 {
		t.Fatalf("len = %d", len(entries))
	}
	if entries[0].Content != "first" || entries[1].Content != "second" {
		t.Fatalf("order wrong: %+v", entries)
	}
}

func TestAssembleAnnotatesAssistantResults(t *testing.T) {
	messages := []chat.Message{
		{
			Role:       chat.RoleAssistant,
			Content:    "Revenue by region below.",
			ResultJSON: []byte(`{"columns":["region","revenue"],"rows":[{"region":"east","revenue":100}],"rowCount":1}`),
		},
	}
	entries := Assemble(messages)
	if !strings.Contains(entries[0].Content, extract.MarkerOpen) {
		t.Fatalf("missing marker annotation: %q", entries[0].Content)
	}
	if !strings.Contains(entries[0].Content, "region=east") {
		t.Fatalf("missing inlined row: %q", entries[0].Content)
	}
}

func TestAssembleLargeResultAnnotatedAsRowCount(t *testing.T) {
	rows := make([]string, 8)
	for i := range rows {
		rows[i] = `{"n":1}`
	}
	payload := `{"columns":["n"],"rows":[` + strings.Join(rows, ",") + `],"rowCount":8}`
	entries := Assemble([]chat.Message{{
		Role:       chat.RoleAssistant,
		Content:    "Counts.",
		ResultJSON: []byte(payload),
	}})
	if !strings.Contains(entries[0].Content, "8 rows") {
		t.Fatalf("want row-count form, got %q", entries[0].Content)
	}
	if strings.Contains(entries[0].Content, "n=1") {
		t.Fatalf("large result should not inline rows: %q", entries[0].Content)
	}
}

func TestAssembleSwallowsMalformedPayload(t *testing.T) {
	entries := Assemble([]chat.Message{{
		Role:       chat.RoleAssistant,
		Content:    "text",
		ResultJSON: []byte("{broken"),
	}})
	if entries[0].Content != "text" {
		t.Fatalf("malformed payload should leave turn unannotated: %q", entries[0].Content)
	}
}

func TestAssembleUserTurnsNeverAnnotated(t *testing.T) {
	entries := Assemble([]chat.Message{{
		Role:       chat.RoleUser,
		Content:    "question",
		ResultJSON: []byte(`{"columns":["a"],"rows":[{"a":1}],"rowCount":1}`),
	}})
	if entries[0].Content != "question" {
		t.Fatalf("user turn annotated: %q", entries[0].Content)
	}
}
