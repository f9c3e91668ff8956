package filesource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/querychat/querychat/internal/storage"
)

const sampleRows = 5

// Dataset rows are stored as one JSON payload per parquet record; the query
// engine projects columns back out of the payload. Keeping the parquet schema
// fixed avoids deriving one per upload.
type datasetRow struct {
	RowIndex    int64  `parquet:"row_index"`
	PayloadJSON string `parquet:"payload_json"`
}

type MaterializeInput struct {
	DatasetID string
	TableName string
	Columns   []string
	Rows      []map[string]any
}

type MaterializeResult struct {
	ObjectPath string
	RowCount   int64
	SchemaText string
	SampleJSON []byte
}

// Materialize encodes an uploaded dataset's parsed rows to a parquet object
// so every later question queries the same immutable snapshot.
func Materialize(ctx context.Context, store storage.ObjectStore, in MaterializeInput) (MaterializeResult, error) {
	if in.DatasetID == "" {
		return MaterializeResult{}, fmt.Errorf("dataset id is required")
	}
	if len(in.Columns) == 0 {
		return MaterializeResult{}, fmt.Errorf("columns are required")
	}
	if len(in.Rows) == 0 {
		return MaterializeResult{}, fmt.Errorf("rows are required")
	}

	records := make([]datasetRow, 0, len(in.Rows))
	for i, row := range in.Rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return MaterializeResult{}, fmt.Errorf("encode row %d: %w", i, err)
		}
		records = append(records, datasetRow{RowIndex: int64(i), PayloadJSON: string(payload)})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[datasetRow](buf)
	if _, err := writer.Write(records); err != nil {
		return MaterializeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return MaterializeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	objectPath := fmt.Sprintf("datasets/%s.parquet", in.DatasetID)
	if _, err := store.Put(ctx, objectPath, buf, int64(buf.Len()), storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
	}); err != nil {
		return MaterializeResult{}, fmt.Errorf("store dataset object: %w", err)
	}

	sample := in.Rows
	if len(sample) > sampleRows {
		sample = sample[:sampleRows]
	}
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("encode sample rows: %w", err)
	}

	return MaterializeResult{
		ObjectPath: objectPath,
		RowCount:   int64(len(in.Rows)),
		SchemaText: schemaText(in.TableName, in.Columns, len(in.Rows)),
		SampleJSON: sampleJSON,
	}, nil
}

func schemaText(tableName string, columns []string, rowCount int) string {
	return fmt.Sprintf("%s(%s) -- %d rows", tableName, strings.Join(columns, ", "), rowCount)
}
