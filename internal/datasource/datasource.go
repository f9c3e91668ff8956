package datasource

import (
	"context"

	"github.com/querychat/querychat/internal/chat"
)

// Source is the adapter a conversation's bound data source is reached
// through: schema description for prompting, statement execution for results.
type Source interface {
	SchemaText(ctx context.Context) (string, error)
	Execute(ctx context.Context, sqlText string) (chat.QueryResult, error)
	Close() error
}
