package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/querychat/querychat/internal/chat"
	"github.com/querychat/querychat/internal/extract"
	"github.com/querychat/querychat/internal/history"
	"github.com/querychat/querychat/internal/llm"
	"github.com/querychat/querychat/internal/observability"
	"github.com/querychat/querychat/internal/prompt"
	"github.com/querychat/querychat/internal/quota"
	"github.com/querychat/querychat/internal/schemacache"
)

// ErrGatewayFailure marks a model gateway error. The message fails as a whole
// and no turn is persisted.
var ErrGatewayFailure = errors.New("pipeline: model gateway failure")

type Service struct {
	store    chat.Store
	ledger   *quota.Ledger
	gateway  llm.Gateway
	resolver SourceResolver
	schemas  schemacache.Cache
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store chat.Store, ledger *quota.Ledger, gateway llm.Gateway, resolver SourceResolver, schemas schemacache.Cache, logger *slog.Logger) *Service {
	if schemas == nil {
		schemas = schemacache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		ledger:   ledger,
		gateway:  gateway,
		resolver: resolver,
		schemas:  schemas,
		logger:   logger,
		now:      time.Now,
	}
}

type ProcessInput struct {
	UserID         string
	ConversationID string
	Content        string
}

type ProcessResult struct {
	Conversation  chat.Conversation
	AssistantText string
	Result        *chat.QueryResult
	StatementText string
	TokenCost     int
	Title         string
}

// ProcessMessage runs the full per-message pipeline: quota gate, ownership
// check, context assembly, prompt synthesis, model call, extraction, dispatch,
// sanitization, and the transactional persist of both turns. Nothing is
// persisted on quota rejection, ownership failure, or gateway failure.
func (s *Service) ProcessMessage(ctx context.Context, in ProcessInput) (ProcessResult, error) {
	started := s.now()

	if _, err := s.ledger.Check(ctx, in.UserID); err != nil {
		if errors.Is(err, chat.ErrQuotaExceeded) {
			observability.IncrementQuotaRejection()
		}
		return ProcessResult{}, err
	}

	conv, err := s.store.GetConversation(ctx, in.UserID, in.ConversationID)
	if err != nil {
		return ProcessResult{}, err
	}

	messages, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("load history: %w", err)
	}
	turns := toTurns(history.Assemble(messages))

	binding, err := s.resolver.Resolve(ctx, conv)
	if err != nil {
		return ProcessResult{}, err
	}
	defer binding.close()

	schemaText, err := s.schemaFor(ctx, binding)
	if err != nil {
		return ProcessResult{}, err
	}

	instructions := prompt.Build(prompt.Input{
		Mode:       binding.Mode,
		SchemaText: schemaText,
		SampleData: binding.Sample,
		FileName:   binding.FileName,
	})

	modelStart := s.now()
	reply, err := s.gateway.Generate(ctx, in.Content, turns, instructions)
	if err != nil {
		observability.ObserveMessageProcessed(string(binding.Mode), "gateway_error")
		return ProcessResult{}, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	observability.ObserveModelCall(s.now().Sub(modelStart), reply.TokenCost)

	result, statementText := s.extract(ctx, binding, reply.Text)

	out := ProcessResult{
		Conversation:  conv,
		AssistantText: extract.Sanitize(reply.Text),
		Result:        result,
		StatementText: statementText,
		TokenCost:     reply.TokenCost,
	}
	if chat.NeedsTitle(conv, len(messages)) {
		out.Title = chat.DeriveTitle(in.Content)
	}

	if err := s.persistTurn(ctx, in, out, binding, s.now().Sub(started)); err != nil {
		return ProcessResult{}, err
	}

	observability.ObserveMessageProcessed(string(binding.Mode), "ok")
	s.logger.InfoContext(ctx, "message_processed",
		slog.String("conversation_id", conv.ID),
		slog.String("mode", string(binding.Mode)),
		slog.Int("token_cost", reply.TokenCost),
		slog.Bool("has_result", result != nil),
		slog.String("duration", s.now().Sub(started).String()),
	)
	return out, nil
}

// extract selects the mode's extraction chain. Query mode pulls statements
// and dispatches them; tabular mode pulls json tables first but still
// dispatches any safe statement the model emitted despite instructions, since
// datasets are queryable through their materialized views. Both fall back to
// a marker the model echoed from history.
func (s *Service) extract(ctx context.Context, binding Binding, rawText string) (*chat.QueryResult, string) {
	switch binding.Mode {
	case prompt.ModeQuery:
		statements := extract.Statements(rawText)
		result := Dispatch(ctx, binding.Source, statements)
		if result == nil {
			result = extract.ParseResultMarker(rawText)
		}
		return result, JoinStatements(statements)

	case prompt.ModeTabular:
		if result := extract.Tables(rawText); result != nil {
			return result, ""
		}
		statements := extract.Statements(rawText)
		if result := Dispatch(ctx, binding.Source, statements); result != nil {
			return result, JoinStatements(statements)
		}
		return extract.ParseResultMarker(rawText), ""

	default:
		return nil, ""
	}
}

func (s *Service) schemaFor(ctx context.Context, binding Binding) (string, error) {
	if binding.Schema != "" || binding.Source == nil {
		return binding.Schema, nil
	}
	if cached, ok := s.schemas.Get(ctx, binding.SourceID); ok {
		return cached, nil
	}
	schemaText, err := binding.Source.SchemaText(ctx)
	if err != nil {
		return "", fmt.Errorf("describe source %s: %w", binding.SourceID, err)
	}
	s.schemas.Set(ctx, binding.SourceID, schemaText)
	return schemaText, nil
}

func (s *Service) persistTurn(ctx context.Context, in ProcessInput, out ProcessResult, binding Binding, elapsed time.Duration) error {
	var resultJSON []byte
	if out.Result != nil {
		encoded, err := json.Marshal(out.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		resultJSON = encoded
	}

	kind := chat.UsageChat
	if out.StatementText != "" || out.Result != nil {
		kind = chat.UsageStatement
	}

	if err := s.store.AppendTurn(ctx, chat.AppendTurnInput{
		ConversationID:   in.ConversationID,
		UserID:           in.UserID,
		UserContent:      in.Content,
		AssistantContent: out.AssistantText,
		StatementText:    out.StatementText,
		ResultJSON:       resultJSON,
		TokenCost:        out.TokenCost,
		UsageKind:        kind,
		SourceID:         binding.SourceID,
		ElapsedMs:        elapsed.Milliseconds(),
		Title:            out.Title,
	}); err != nil {
		return fmt.Errorf("persist turn: %w", err)
	}
	return nil
}

func toTurns(entries []history.Entry) []llm.Turn {
	turns := make([]llm.Turn, 0, len(entries))
	for _, entry := range entries {
		turns = append(turns, llm.Turn{Role: string(entry.Role), Content: entry.Content})
	}
	return turns
}
