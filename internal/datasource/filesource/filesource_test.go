package filesource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/querychat/querychat/internal/chat"
	"github.com/querychat/querychat/internal/storage"
)

type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func TestMaterializeWritesParquetObject(t *testing.T) {
	store := newMemoryStore()
	result, err := Materialize(context.Background(), store, MaterializeInput{
		DatasetID: "ds-1",
		TableName: "sales",
		Columns:   []string{"region", "total"},
		Rows: []map[string]any{
			{"region": "east", "total": 100},
			{"region": "west", "total": 250},
		},
	})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if result.ObjectPath != "datasets/ds-1.parquet" {
		t.Fatalf("ObjectPath = %q", result.ObjectPath)
	}
	if result.RowCount != 2 {
		t.Fatalf("RowCount = %d", result.RowCount)
	}
	if len(store.objects[result.ObjectPath]) == 0 {
		t.Fatal("no object written")
	}
	if !strings.Contains(result.SchemaText, "sales(region, total)") {
		t.Fatalf("SchemaText = %q", result.SchemaText)
	}
	if !strings.Contains(string(result.SampleJSON), "east") {
		t.Fatalf("SampleJSON = %s", result.SampleJSON)
	}
}

func TestMaterializeBoundsSample(t *testing.T) {
	store := newMemoryStore()
	rows := make([]map[string]any, 20)
	for i := range rows {
		rows[i] = map[string]any{"n": i}
	}
	result, err := Materialize(context.Background(), store, MaterializeInput{
		DatasetID: "ds-2", TableName: "t", Columns: []string{"n"}, Rows: rows,
	})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if count := strings.Count(string(result.SampleJSON), `"n"`); count != sampleRows {
		t.Fatalf("sample has %d rows, want %d", count, sampleRows)
	}
}

func TestMaterializeValidatesInput(t *testing.T) {
	store := newMemoryStore()
	cases := []MaterializeInput{
		{TableName: "t", Columns: []string{"a"}, Rows: []map[string]any{{"a": 1}}},
		{DatasetID: "d", TableName: "t", Rows: []map[string]any{{"a": 1}}},
		{DatasetID: "d", TableName: "t", Columns: []string{"a"}},
	}
	for i, in := range cases {
		if _, err := Materialize(context.Background(), store, in); err == nil {
			t.Fatalf("case %d: want error", i)
		}
	}
}

func TestBuildViewSQL(t *testing.T) {
	got := buildViewSQL("sales", []string{"region", "total"}, "/tmp/x.parquet")
	for _, want := range []string{
		`CREATE OR REPLACE VIEW "sales"`,
		`json_extract_string(payload_json, '$.region') AS "region"`,
		`read_parquet('/tmp/x.parquet')`,
		"ORDER BY row_index",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("view SQL missing %q:\n%s", want, got)
		}
	}
}

func TestSourceSchemaTextComesFromDataset(t *testing.T) {
	source, err := New(newMemoryStore(), chat.Dataset{
		ObjectPath: "datasets/x.parquet",
		SchemaText: "sales(region, total) -- 2 rows",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	text, err := source.SchemaText(context.Background())
	if err != nil || text != "sales(region, total) -- 2 rows" {
		t.Fatalf("SchemaText() = %q, %v", text, err)
	}
}

func TestNewRequiresMaterializedObject(t *testing.T) {
	if _, err := New(newMemoryStore(), chat.Dataset{}); err == nil {
		t.Fatal("want error for missing object path")
	}
}

func TestStripTrailingSemicolons(t *testing.T) {
	if got := stripTrailingSemicolons("SELECT 1;; "); got != "SELECT 1" {
		t.Fatalf("stripTrailingSemicolons() = %q", got)
	}
}
