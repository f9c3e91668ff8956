package chat

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("chat: not found")
	ErrQuotaExceeded = errors.New("chat: quota exceeded")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SourceType classifies what a conversation is bound to. A conversation is
// bound to at most one source for its whole lifetime.
type SourceType string

const (
	SourceNone       SourceType = ""
	SourceConnection SourceType = "connection"
	SourceDataset    SourceType = "dataset"
)

type Conversation struct {
	ID           string
	OwnerID      string
	Title        string
	ConnectionID *string
	DatasetID    *string
	CreatedAt    time.Time
}

func (c Conversation) SourceType() SourceType {
	switch {
	case c.ConnectionID != nil && *c.ConnectionID != "":
		return SourceConnection
	case c.DatasetID != nil && *c.DatasetID != "":
		return SourceDataset
	default:
		return SourceNone
	}
}

// Message is a single conversation turn. Assistant turns may carry the
// extracted statement text and a serialized QueryResult; user turns never do.
// ResultJSON is kept raw so that a malformed stored payload degrades to an
// unannotated turn instead of failing the read path.
type Message struct {
	ID             int64
	ConversationID string
	Role           Role
	Content        string
	StatementText  string
	ResultJSON     []byte
	TokenCost      int
	CreatedAt      time.Time
}

// QueryResult is the canonical tabular payload every extracted or executed
// result is normalized into. A multi-statement or multi-table turn uses the
// Tables wrapper and leaves the flat fields empty. An entry that failed to
// execute carries Error and Query instead of rows.
type QueryResult struct {
	Columns  []string         `json:"columns,omitempty"`
	Rows     []map[string]any `json:"rows,omitempty"`
	RowCount int              `json:"rowCount"`
	Title    string           `json:"title,omitempty"`
	Error    string           `json:"error,omitempty"`
	Query    string           `json:"query,omitempty"`
	Tables   []QueryResult    `json:"tables,omitempty"`
}

// UserQuota is the per-user monthly allowance record. Rollover is evaluated
// lazily on each request; there is no background timer.
type UserQuota struct {
	UserID         string
	QueriesUsed    int
	QueriesAllowed int
	CycleResetsAt  time.Time
}

type UsageKind string

const (
	UsageStatement UsageKind = "statement"
	UsageChat      UsageKind = "chat"
)

type UsageEntry struct {
	ID        int64
	UserID    string
	SourceID  string
	Kind      UsageKind
	TokenCost int
	ElapsedMs int64
	CreatedAt time.Time
}

type Connection struct {
	ID        string
	OwnerID   string
	Name      string
	Engine    string
	DSN       string
	CreatedAt time.Time
}

// Dataset is an uploaded tabular file after external parsing: its rows are
// materialized to an object-store parquet file and queried through views.
type Dataset struct {
	ID          string
	OwnerID     string
	Name        string
	FileName    string
	TableName   string
	ColumnsJSON []byte
	SchemaText  string
	SampleJSON  []byte
	ObjectPath  string
	RowCount    int64
	CreatedAt   time.Time
}

type CreateConversationInput struct {
	OwnerID      string
	Title        string
	ConnectionID *string
	DatasetID    *string
}

type CreateConnectionInput struct {
	OwnerID string
	Name    string
	Engine  string
	DSN     string
}

type CreateDatasetInput struct {
	OwnerID     string
	Name        string
	FileName    string
	TableName   string
	ColumnsJSON []byte
	SchemaText  string
	SampleJSON  []byte
	ObjectPath  string
	RowCount    int64
}

// AppendTurnInput persists one processed message: the user turn, the
// assistant turn, the usage entry, and the quota increment commit together.
type AppendTurnInput struct {
	ConversationID   string
	UserID           string
	UserContent      string
	AssistantContent string
	StatementText    string
	ResultJSON       []byte
	TokenCost        int
	UsageKind        UsageKind
	SourceID         string
	ElapsedMs        int64
	Title            string
}

type Store interface {
	HealthCheck(ctx context.Context) error

	CreateConversation(ctx context.Context, in CreateConversationInput) (Conversation, error)
	GetConversation(ctx context.Context, ownerID, conversationID string) (Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	AppendTurn(ctx context.Context, in AppendTurnInput) error

	GetQuota(ctx context.Context, userID string) (UserQuota, error)
	ResetQuotaCycle(ctx context.Context, userID string, resetsAt time.Time) error
	ListUsage(ctx context.Context, userID string, limit int) ([]UsageEntry, error)

	CreateConnection(ctx context.Context, in CreateConnectionInput) (Connection, error)
	GetConnection(ctx context.Context, ownerID, connectionID string) (Connection, error)
	CreateDataset(ctx context.Context, in CreateDatasetInput) (Dataset, error)
	GetDataset(ctx context.Context, ownerID, datasetID string) (Dataset, error)
}
