package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/querychat/querychat/internal/chat"
	"github.com/querychat/querychat/internal/datasource/filesource"
	"github.com/querychat/querychat/internal/observability"
)

type createConnectionRequest struct {
	Name   string `json:"name"`
	Engine string `json:"engine"`
	DSN    string `json:"dsn"`
}

type connectionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Engine    string    `json:"engine"`
	CreatedAt time.Time `json:"created_at"`
}

func handleCreateConnection(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	userID, err := userFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "USER_REQUIRED", err.Error(), false, nil)
		return
	}

	var request createConnectionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid connection request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Name) == "" || strings.TrimSpace(request.Engine) == "" || strings.TrimSpace(request.DSN) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "FIELDS_REQUIRED", "name, engine and dsn are required", false, nil)
		return
	}

	conn, err := deps.Store.CreateConnection(r.Context(), chat.CreateConnectionInput{
		OwnerID: userID,
		Name:    strings.TrimSpace(request.Name),
		Engine:  strings.ToLower(strings.TrimSpace(request.Engine)),
		DSN:     strings.TrimSpace(request.DSN),
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to create connection", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, connectionResponse{
		ID: conn.ID, Name: conn.Name, Engine: conn.Engine, CreatedAt: conn.CreatedAt,
	})
}

type createDatasetRequest struct {
	Name     string           `json:"name"`
	FileName string           `json:"file_name"`
	Table    string           `json:"table"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
}

type datasetResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Table      string    `json:"table"`
	SchemaText string    `json:"schema_text"`
	RowCount   int64     `json:"row_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// handleCreateDataset registers an already-parsed tabular upload: the rows
// are materialized to the object store as parquet and the dataset record
// carries the derived schema text and sample for prompting.
func handleCreateDataset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Objects == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "OBJECT_STORE_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}

	userID, err := userFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "USER_REQUIRED", err.Error(), false, nil)
		return
	}

	var request createDatasetRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid dataset request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Name) == "" || strings.TrimSpace(request.Table) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "FIELDS_REQUIRED", "name and table are required", false, nil)
		return
	}
	if len(request.Columns) == 0 || len(request.Rows) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "ROWS_REQUIRED", "columns and rows are required", false, nil)
		return
	}

	datasetID := newDatasetID()
	materialized, err := filesource.Materialize(r.Context(), deps.Objects, filesource.MaterializeInput{
		DatasetID: datasetID,
		TableName: strings.TrimSpace(request.Table),
		Columns:   request.Columns,
		Rows:      request.Rows,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "MATERIALIZE_ERROR", "failed to materialize dataset", true, map[string]any{"details": err.Error()})
		return
	}
	observability.IncrementDatasetMaterialized()

	columnsJSON, err := json.Marshal(request.Columns)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "MATERIALIZE_ERROR", "failed to encode columns", false, nil)
		return
	}

	ds, err := deps.Store.CreateDataset(r.Context(), chat.CreateDatasetInput{
		OwnerID:     userID,
		Name:        strings.TrimSpace(request.Name),
		FileName:    strings.TrimSpace(request.FileName),
		TableName:   strings.TrimSpace(request.Table),
		ColumnsJSON: columnsJSON,
		SchemaText:  materialized.SchemaText,
		SampleJSON:  materialized.SampleJSON,
		ObjectPath:  materialized.ObjectPath,
		RowCount:    materialized.RowCount,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to create dataset", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, datasetResponse{
		ID: ds.ID, Name: ds.Name, Table: ds.TableName,
		SchemaText: ds.SchemaText, RowCount: ds.RowCount, CreatedAt: ds.CreatedAt,
	})
}

func newDatasetID() string {
	return uuid.NewString()
}

type usageEntryResponse struct {
	ID        int64     `json:"id"`
	SourceID  string    `json:"source_id,omitempty"`
	Kind      string    `json:"kind"`
	TokenCost int       `json:"token_cost"`
	ElapsedMs int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

func handleListUsage(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	userID, err := userFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "USER_REQUIRED", err.Error(), false, nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer", false, nil)
			return
		}
	}

	entries, err := deps.Store.ListUsage(r.Context(), userID, limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list usage", true, map[string]any{"details": err.Error()})
		return
	}
	quota, err := deps.Store.GetQuota(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to load quota", true, map[string]any{"details": err.Error()})
		return
	}

	items := make([]usageEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, usageEntryResponse{
			ID:        entry.ID,
			SourceID:  entry.SourceID,
			Kind:      string(entry.Kind),
			TokenCost: entry.TokenCost,
			ElapsedMs: entry.ElapsedMs,
			CreatedAt: entry.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": items,
		"quota": map[string]any{
			"queries_used":    quota.QueriesUsed,
			"queries_allowed": quota.QueriesAllowed,
			"cycle_resets_at": quota.CycleResetsAt,
		},
	})
}
