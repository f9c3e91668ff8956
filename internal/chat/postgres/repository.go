package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/querychat/querychat/internal/chat"
)

// Repository implements chat.Store on PostgreSQL.
type Repository struct {
	db *sql.DB

	// Allowance granted when a quota row is created lazily for a user the
	// billing system has not provisioned yet.
	defaultQueriesAllowed int
}

func NewRepository(db *sql.DB, defaultQueriesAllowed int) *Repository {
	if defaultQueriesAllowed <= 0 {
		defaultQueriesAllowed = 50
	}
	return &Repository{db: db, defaultQueriesAllowed: defaultQueriesAllowed}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store db: %w", err)
	}
	return nil
}

func (r *Repository) CreateConversation(ctx context.Context, in chat.CreateConversationInput) (chat.Conversation, error) {
	title := in.Title
	if title == "" {
		title = chat.DefaultTitle
	}

	query := `
INSERT INTO conversation (conversation_id, owner_id, title, connection_id, dataset_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	conversationID := uuid.NewString()
	var createdAt time.Time
	if err := r.db.QueryRowContext(ctx, query,
		conversationID, in.OwnerID, title, in.ConnectionID, in.DatasetID,
	).Scan(&createdAt); err != nil {
		return chat.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return chat.Conversation{
		ID:           conversationID,
		OwnerID:      in.OwnerID,
		Title:        title,
		ConnectionID: in.ConnectionID,
		DatasetID:    in.DatasetID,
		CreatedAt:    createdAt,
	}, nil
}

func (r *Repository) GetConversation(ctx context.Context, ownerID, conversationID string) (chat.Conversation, error) {
	query := `
SELECT conversation_id, owner_id, title, connection_id, dataset_id, created_at
FROM conversation
WHERE conversation_id = $1 AND owner_id = $2`

	var conv chat.Conversation
	if err := r.db.QueryRowContext(ctx, query, conversationID, ownerID).Scan(
		&conv.ID,
		&conv.OwnerID,
		&conv.Title,
		&conv.ConnectionID,
		&conv.DatasetID,
		&conv.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Conversation{}, chat.ErrNotFound
		}
		return chat.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

func (r *Repository) ListConversations(ctx context.Context, ownerID string) ([]chat.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT conversation_id, owner_id, title, connection_id, dataset_id, created_at
FROM conversation
WHERE owner_id = $1
ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	conversations := make([]chat.Conversation, 0)
	for rows.Next() {
		var conv chat.Conversation
		if err := rows.Scan(&conv.ID, &conv.OwnerID, &conv.Title, &conv.ConnectionID, &conv.DatasetID, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return conversations, nil
}

func (r *Repository) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT message_id, conversation_id, role, content, statement_text, result_json, token_cost, created_at
FROM message
WHERE conversation_id = $1
ORDER BY created_at ASC, message_id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var msg chat.Message
		var statementText sql.NullString
		var resultJSON []byte
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&statementText, &resultJSON, &msg.TokenCost, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.StatementText = statementText.String
		msg.ResultJSON = resultJSON
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}

// AppendTurn persists one processed message atomically: user turn, assistant
// turn, usage entry, quota increment, and the optional first-turn title all
// commit or roll back together.
func (r *Repository) AppendTurn(ctx context.Context, in chat.AppendTurnInput) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin turn tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO message (conversation_id, role, content, token_cost)
VALUES ($1, $2, $3, 0)`, in.ConversationID, chat.RoleUser, in.UserContent); err != nil {
		return fmt.Errorf("insert user turn: %w", err)
	}

	var resultJSON any
	if len(in.ResultJSON) > 0 {
		resultJSON = in.ResultJSON
	}
	var statementText any
	if in.StatementText != "" {
		statementText = in.StatementText
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO message (conversation_id, role, content, statement_text, result_json, token_cost)
VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ConversationID, chat.RoleAssistant, in.AssistantContent, statementText, resultJSON, in.TokenCost,
	); err != nil {
		return fmt.Errorf("insert assistant turn: %w", err)
	}

	var sourceID any
	if in.SourceID != "" {
		sourceID = in.SourceID
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO usage_entry (user_id, source_id, kind, token_cost, elapsed_ms)
VALUES ($1, $2, $3, $4, $5)`,
		in.UserID, sourceID, in.UsageKind, in.TokenCost, in.ElapsedMs,
	); err != nil {
		return fmt.Errorf("insert usage entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE app_user SET queries_used = queries_used + 1 WHERE user_id = $1`, in.UserID); err != nil {
		return fmt.Errorf("increment quota: %w", err)
	}

	if in.Title != "" {
		if _, err := tx.ExecContext(ctx, `
UPDATE conversation SET title = $1 WHERE conversation_id = $2`, in.Title, in.ConversationID); err != nil {
			return fmt.Errorf("set conversation title: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn tx: %w", err)
	}
	return nil
}

func (r *Repository) GetQuota(ctx context.Context, userID string) (chat.UserQuota, error) {
	query := `
SELECT user_id, queries_used, queries_allowed, cycle_resets_at
FROM app_user
WHERE user_id = $1`

	var q chat.UserQuota
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&q.UserID, &q.QueriesUsed, &q.QueriesAllowed, &q.CycleResetsAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return r.createQuota(ctx, userID)
	}
	if err != nil {
		return chat.UserQuota{}, fmt.Errorf("get quota: %w", err)
	}
	return q, nil
}

func (r *Repository) createQuota(ctx context.Context, userID string) (chat.UserQuota, error) {
	query := `
INSERT INTO app_user (user_id, queries_used, queries_allowed, cycle_resets_at)
VALUES ($1, 0, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET user_id = app_user.user_id
RETURNING user_id, queries_used, queries_allowed, cycle_resets_at`

	var q chat.UserQuota
	if err := r.db.QueryRowContext(ctx, query,
		userID, r.defaultQueriesAllowed, time.Now().UTC().AddDate(0, 1, 0),
	).Scan(&q.UserID, &q.QueriesUsed, &q.QueriesAllowed, &q.CycleResetsAt); err != nil {
		return chat.UserQuota{}, fmt.Errorf("create quota: %w", err)
	}
	return q, nil
}

func (r *Repository) ResetQuotaCycle(ctx context.Context, userID string, resetsAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
UPDATE app_user SET queries_used = 0, cycle_resets_at = $1 WHERE user_id = $2`,
		resetsAt, userID); err != nil {
		return fmt.Errorf("reset quota cycle: %w", err)
	}
	return nil
}

func (r *Repository) ListUsage(ctx context.Context, userID string, limit int) ([]chat.UsageEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT entry_id, user_id, COALESCE(source_id, ''), kind, token_cost, elapsed_ms, created_at
FROM usage_entry
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]chat.UsageEntry, 0)
	for rows.Next() {
		var entry chat.UsageEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.SourceID, &entry.Kind,
			&entry.TokenCost, &entry.ElapsedMs, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}
	return entries, nil
}

func (r *Repository) CreateConnection(ctx context.Context, in chat.CreateConnectionInput) (chat.Connection, error) {
	query := `
INSERT INTO connection (connection_id, owner_id, name, engine, dsn)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	connectionID := uuid.NewString()
	var createdAt time.Time
	if err := r.db.QueryRowContext(ctx, query,
		connectionID, in.OwnerID, in.Name, in.Engine, in.DSN,
	).Scan(&createdAt); err != nil {
		return chat.Connection{}, fmt.Errorf("create connection: %w", err)
	}
	return chat.Connection{
		ID: connectionID, OwnerID: in.OwnerID, Name: in.Name,
		Engine: in.Engine, DSN: in.DSN, CreatedAt: createdAt,
	}, nil
}

func (r *Repository) GetConnection(ctx context.Context, ownerID, connectionID string) (chat.Connection, error) {
	query := `
SELECT connection_id, owner_id, name, engine, dsn, created_at
FROM connection
WHERE connection_id = $1 AND owner_id = $2`

	var conn chat.Connection
	if err := r.db.QueryRowContext(ctx, query, connectionID, ownerID).Scan(
		&conn.ID, &conn.OwnerID, &conn.Name, &conn.Engine, &conn.DSN, &conn.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Connection{}, chat.ErrNotFound
		}
		return chat.Connection{}, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

func (r *Repository) CreateDataset(ctx context.Context, in chat.CreateDatasetInput) (chat.Dataset, error) {
	query := `
INSERT INTO dataset (dataset_id, owner_id, name, file_name, table_name, columns_json, schema_text, sample_json, object_path, row_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at`
	datasetID := uuid.NewString()
	var createdAt time.Time
	if err := r.db.QueryRowContext(ctx, query,
		datasetID, in.OwnerID, in.Name, in.FileName, in.TableName,
		in.ColumnsJSON, in.SchemaText, in.SampleJSON, in.ObjectPath, in.RowCount,
	).Scan(&createdAt); err != nil {
		return chat.Dataset{}, fmt.Errorf("create dataset: %w", err)
	}
	return chat.Dataset{
		ID: datasetID, OwnerID: in.OwnerID, Name: in.Name, FileName: in.FileName,
		TableName: in.TableName, ColumnsJSON: in.ColumnsJSON, SchemaText: in.SchemaText,
		SampleJSON: in.SampleJSON, ObjectPath: in.ObjectPath, RowCount: in.RowCount,
		CreatedAt: createdAt,
	}, nil
}

func (r *Repository) GetDataset(ctx context.Context, ownerID, datasetID string) (chat.Dataset, error) {
	query := `
SELECT dataset_id, owner_id, name, file_name, table_name, columns_json, schema_text, sample_json, object_path, row_count, created_at
FROM dataset
WHERE dataset_id = $1 AND owner_id = $2`

	var ds chat.Dataset
	if err := r.db.QueryRowContext(ctx, query, datasetID, ownerID).Scan(
		&ds.ID, &ds.OwnerID, &ds.Name, &ds.FileName, &ds.TableName,
		&ds.ColumnsJSON, &ds.SchemaText, &ds.SampleJSON, &ds.ObjectPath, &ds.RowCount, &ds.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Dataset{}, chat.ErrNotFound
		}
		return chat.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return ds, nil
}
