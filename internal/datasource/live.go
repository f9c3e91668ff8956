package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/querychat/querychat/internal/chat"
)

// SQLSource executes read-only statements against a user-provided live
// database connection. The statements it receives have already passed the
// safety gate; the connection itself should still be a read-only role.
type SQLSource struct {
	db *sql.DB
}

// OpenLive dials a live connection. Engines map to database/sql driver
// names; postgres is the only engine wired today.
func OpenLive(ctx context.Context, engine, dsn string) (*SQLSource, error) {
	driver, err := driverForEngine(engine)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", engine, err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s connection: %w", engine, err)
	}
	return &SQLSource{db: db}, nil
}

// NewSQLSource wraps an existing handle; used by tests.
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

func driverForEngine(engine string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "postgres", "postgresql":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported engine %q", engine)
	}
}

const schemaQuery = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name, ordinal_position`

// SchemaText renders the public schema as one "table(col type, ...)" line
// per table, the shape the prompt synthesizer appends verbatim.
func (s *SQLSource) SchemaText(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, schemaQuery)
	if err != nil {
		return "", fmt.Errorf("introspect schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	columns := make(map[string][]string)
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return "", fmt.Errorf("scan schema row: %w", err)
		}
		if _, seen := columns[table]; !seen {
			tables = append(tables, table)
		}
		columns[table] = append(columns[table], column+" "+dataType)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate schema rows: %w", err)
	}

	lines := make([]string, 0, len(tables))
	for _, table := range tables {
		lines = append(lines, fmt.Sprintf("%s(%s)", table, strings.Join(columns[table], ", ")))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *SQLSource) Execute(ctx context.Context, sqlText string) (chat.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return chat.QueryResult{}, fmt.Errorf("execute statement: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRows(rows)
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}

// collectRows turns a database/sql row set into the canonical payload shape.
func collectRows(rows *sql.Rows) (chat.QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return chat.QueryResult{}, fmt.Errorf("result columns: %w", err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return chat.QueryResult{}, fmt.Errorf("scan result row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return chat.QueryResult{}, fmt.Errorf("iterate result rows: %w", err)
	}

	return chat.QueryResult{Columns: columns, Rows: out, RowCount: len(out)}, nil
}

func normalizeValue(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}
