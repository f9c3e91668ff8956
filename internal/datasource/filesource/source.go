package filesource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/querychat/querychat/internal/chat"
	"github.com/querychat/querychat/internal/storage"
)

// Source executes statements against a materialized dataset through an
// in-process DuckDB instance: the parquet object is fetched to a temp file
// and exposed as a view named after the dataset's table.
type Source struct {
	store   storage.ObjectStore
	dataset chat.Dataset
}

func New(store storage.ObjectStore, dataset chat.Dataset) (*Source, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if dataset.ObjectPath == "" {
		return nil, fmt.Errorf("dataset has no materialized object")
	}
	return &Source{store: store, dataset: dataset}, nil
}

// SchemaText is precomputed at materialization time; no object fetch needed.
func (s *Source) SchemaText(_ context.Context) (string, error) {
	return s.dataset.SchemaText, nil
}

func (s *Source) Execute(ctx context.Context, sqlText string) (chat.QueryResult, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return chat.QueryResult{}, fmt.Errorf("sql is required")
	}

	var columns []string
	if err := json.Unmarshal(s.dataset.ColumnsJSON, &columns); err != nil || len(columns) == 0 {
		return chat.QueryResult{}, fmt.Errorf("dataset has no usable column list")
	}

	localPath, cleanup, err := s.fetchObject(ctx)
	if err != nil {
		return chat.QueryResult{}, err
	}
	defer cleanup()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return chat.QueryResult{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	viewSQL := buildViewSQL(s.dataset.TableName, columns, localPath)
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		return chat.QueryResult{}, fmt.Errorf("create dataset view: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return chat.QueryResult{}, fmt.Errorf("execute statement: %w", err)
	}
	defer func() { _ = rows.Close() }()

	resultColumns, err := rows.Columns()
	if err != nil {
		return chat.QueryResult{}, fmt.Errorf("result columns: %w", err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(resultColumns))
		targets := make([]any, len(resultColumns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return chat.QueryResult{}, fmt.Errorf("scan result row: %w", err)
		}
		row := make(map[string]any, len(resultColumns))
		for i, column := range resultColumns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return chat.QueryResult{}, fmt.Errorf("iterate result rows: %w", err)
	}

	return chat.QueryResult{Columns: resultColumns, Rows: out, RowCount: len(out)}, nil
}

func (s *Source) Close() error {
	return nil
}

func (s *Source) fetchObject(ctx context.Context) (string, func(), error) {
	reader, err := s.store.Get(ctx, s.dataset.ObjectPath)
	if err != nil {
		return "", nil, fmt.Errorf("get dataset object %q: %w", s.dataset.ObjectPath, err)
	}
	defer func() { _ = reader.Close() }()

	workDir, err := os.MkdirTemp("", "querychat-dataset-")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(workDir) }

	localPath := filepath.Join(workDir, "data.parquet")
	file, err := os.Create(localPath)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("create local file: %w", err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		cleanup()
		return "", nil, fmt.Errorf("copy dataset object: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close local file: %w", err)
	}
	return localPath, cleanup, nil
}

// buildViewSQL projects the JSON payload column back into the dataset's
// declared columns so the model's SQL sees a plain table.
func buildViewSQL(tableName string, columns []string, parquetPath string) string {
	projections := make([]string, 0, len(columns))
	for _, column := range columns {
		projections = append(projections, fmt.Sprintf(
			"json_extract_string(payload_json, '$.%s') AS %s",
			strings.ReplaceAll(column, "'", "''"),
			quoteIdent(column),
		))
	}
	return fmt.Sprintf(
		"CREATE OR REPLACE VIEW %s AS SELECT %s FROM read_parquet(%s) ORDER BY row_index",
		quoteIdent(tableName),
		strings.Join(projections, ", "),
		quoteString(parquetPath),
	)
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
