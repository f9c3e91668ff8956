package pipeline

import (
	"context"
	"strings"

	"github.com/querychat/querychat/internal/chat"
	"github.com/querychat/querychat/internal/datasource"
	"github.com/querychat/querychat/internal/observability"
)

// statementSeparator joins multi-statement text for the persisted turn.
const statementSeparator = "\n-- Next Query --\n"

// JoinStatements renders the stored extracted-statement text for a turn.
func JoinStatements(statements []string) string {
	return strings.Join(statements, statementSeparator)
}

// Dispatch runs validated statements against the bound source. Zero
// statements yield no result. A single statement returns its result directly;
// its failure is returned as an error-shaped payload rather than an error so
// the message still completes. With several statements each runs
// independently and a failed one occupies its slot in the tables sequence as
// {error, query}.
func Dispatch(ctx context.Context, source datasource.Source, statements []string) *chat.QueryResult {
	switch len(statements) {
	case 0:
		return nil
	case 1:
		result := executeOne(ctx, source, statements[0])
		return &result
	}

	tables := make([]chat.QueryResult, 0, len(statements))
	for _, statement := range statements {
		tables = append(tables, executeOne(ctx, source, statement))
	}
	return &chat.QueryResult{Tables: tables}
}

func executeOne(ctx context.Context, source datasource.Source, statement string) chat.QueryResult {
	result, err := source.Execute(ctx, statement)
	if err != nil {
		observability.ObserveStatementExecution("error")
		return chat.QueryResult{Error: err.Error(), Query: statement}
	}
	observability.ObserveStatementExecution("ok")
	return result
}
