package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/querychat/querychat/internal/extract"
)

func TestBuildQueryMode(t *testing.T) {
	got := Build(Input{Mode: ModeQuery, SchemaText: "orders(id int, total numeric)"})
	for _, want := range []string{"tagged sql", "SELECT", "orders(id int, total numeric)", extract.MarkerOpen} {
		if !strings.Contains(got, want) {
			t.Fatalf("query instructions missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Data preview") {
		t.Fatal("query mode must not carry a data preview")
	}
}

func TestBuildTabularMode(t *testing.T) {
	got := Build(Input{
		Mode:       ModeTabular,
		SchemaText: "sales(region, total)",
		SampleData: `[{"region":"east","total":10}]`,
		FileName:   "sales.csv",
	})
	for _, want := range []string{"tagged json", `"rowCount"`, "sales.csv", "Data preview", "sales(region, total)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("tabular instructions missing %q:\n%s", want, got)
		}
	}
	if !strings.Contains(got, "Do not emit SQL") {
		t.Fatal("tabular mode must forbid SQL")
	}
}

func TestBuildChatModeHasNoSchemaSection(t *testing.T) {
	got := Build(Input{Mode: ModeChat})
	if strings.Contains(got, "Schema:") {
		t.Fatalf("chat mode with no schema should omit the section:\n%s", got)
	}
}

func TestBoundedPreviewCutsRowList(t *testing.T) {
	rows := make([]string, 50)
	for i := range rows {
		rows[i] = `{"n":1}`
	}
	sample := "[" + strings.Join(rows, ",") + "]"
	preview := boundedPreview(sample)

	var kept []json.RawMessage
	if err := json.Unmarshal([]byte(preview), &kept); err != nil {
		t.Fatalf("preview is not valid JSON: %v", err)
	}
	if len(kept) != maxPreviewRows {
		t.Fatalf("kept %d rows, want %d", len(kept), maxPreviewRows)
	}
}

func TestBoundedPreviewTruncatesOpaquePayload(t *testing.T) {
	sample := strings.Repeat("x", maxPreviewChars+500)
	preview := boundedPreview(sample)
	if len(preview) != maxPreviewChars {
		t.Fatalf("len = %d, want %d", len(preview), maxPreviewChars)
	}
}
