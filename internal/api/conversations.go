package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/querychat/querychat/internal/chat"
	"github.com/querychat/querychat/internal/pipeline"
)

type createConversationRequest struct {
	Title        string  `json:"title"`
	ConnectionID *string `json:"connection_id"`
	DatasetID    *string `json:"dataset_id"`
}

type conversationResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SourceType   string    `json:"source_type"`
	ConnectionID *string   `json:"connection_id,omitempty"`
	DatasetID    *string   `json:"dataset_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type messageResponse struct {
	ID            int64           `json:"id"`
	Role          string          `json:"role"`
	Content       string          `json:"content"`
	StatementText string          `json:"statement_text,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	TokenCost     int             `json:"token_cost"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toConversationResponse(conv chat.Conversation) conversationResponse {
	return conversationResponse{
		ID:           conv.ID,
		Title:        conv.Title,
		SourceType:   string(conv.SourceType()),
		ConnectionID: conv.ConnectionID,
		DatasetID:    conv.DatasetID,
		CreatedAt:    conv.CreatedAt,
	}
}

func handleCreateConversation(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	userID, err := userFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "USER_REQUIRED", err.Error(), false, nil)
		return
	}

	var request createConversationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid conversation request body", false, map[string]any{"details": err.Error()})
		return
	}
	if hasValue(request.ConnectionID) && hasValue(request.DatasetID) {
		writeError(r.Context(), w, http.StatusConflict, "SOURCE_CONFLICT", "a conversation binds to at most one source", false, nil)
		return
	}

	// Bind-time ownership check so a foreign source id fails here, not on the
	// first message.
	if hasValue(request.ConnectionID) {
		if _, err := deps.Store.GetConnection(r.Context(), userID, *request.ConnectionID); err != nil {
			writeStoreError(r, w, err, "connection")
			return
		}
	}
	if hasValue(request.DatasetID) {
		if _, err := deps.Store.GetDataset(r.Context(), userID, *request.DatasetID); err != nil {
			writeStoreError(r, w, err, "dataset")
			return
		}
	}

	conv, err := deps.Store.CreateConversation(r.Context(), chat.CreateConversationInput{
		OwnerID:      userID,
		Title:        strings.TrimSpace(request.Title),
		ConnectionID: request.ConnectionID,
		DatasetID:    request.DatasetID,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to create conversation", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, toConversationResponse(conv))
}

func handleListConversations(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	userID, err := userFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "USER_REQUIRED", err.Error(), false, nil)
		return
	}

	conversations, err := deps.Store.ListConversations(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list conversations", true, map[string]any{"details": err.Error()})
		return
	}
	items := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		items = append(items, toConversationResponse(conv))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": items})
}

func handleGetConversation(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	userID, err := userFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "USER_REQUIRED", err.Error(), false, nil)
		return
	}

	conv, err := deps.Store.GetConversation(r.Context(), userID, r.PathValue("conversation"))
	if err != nil {
		writeStoreError(r, w, err, "conversation")
		return
	}
	messages, err := deps.Store.ListMessages(r.Context(), conv.ID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list messages", true, map[string]any{"details": err.Error()})
		return
	}

	items := make([]messageResponse, 0, len(messages))
	for _, message := range messages {
		items = append(items, messageResponse{
			ID:            message.ID,
			Role:          string(message.Role),
			Content:       message.Content,
			StatementText: message.StatementText,
			Result:        json.RawMessage(message.ResultJSON),
			TokenCost:     message.TokenCost,
			CreatedAt:     message.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": toConversationResponse(conv),
		"messages":     items,
	})
}

type postMessageRequest struct {
	Content string `json:"content"`
}

type postMessageResponse struct {
	Conversation conversationResponse `json:"conversation"`
	Reply        string               `json:"reply"`
	Result       *chat.QueryResult    `json:"result,omitempty"`
	Statement    string               `json:"statement,omitempty"`
	TokenCost    int                  `json:"token_cost"`
}

func handlePostMessage(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Processor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "message pipeline is not configured", false, nil)
		return
	}

	userID, err := userFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "USER_REQUIRED", err.Error(), false, nil)
		return
	}

	var request postMessageRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid message request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Content) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "CONTENT_REQUIRED", "message content is required", false, nil)
		return
	}

	out, err := deps.Processor.ProcessMessage(r.Context(), pipeline.ProcessInput{
		UserID:         userID,
		ConversationID: r.PathValue("conversation"),
		Content:        request.Content,
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrQuotaExceeded):
			writeError(r.Context(), w, http.StatusTooManyRequests, "QUOTA_EXCEEDED", "monthly message allowance is used up", false, nil)
		case errors.Is(err, chat.ErrNotFound):
			writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", "conversation was not found", false, nil)
		case errors.Is(err, pipeline.ErrGatewayFailure):
			writeError(r.Context(), w, http.StatusBadGateway, "MODEL_UNAVAILABLE", "model gateway failed", true, map[string]any{"details": err.Error()})
		default:
			writeError(r.Context(), w, http.StatusInternalServerError, "PIPELINE_ERROR", "failed to process message", true, map[string]any{"details": err.Error()})
		}
		return
	}

	conv := out.Conversation
	if out.Title != "" {
		conv.Title = out.Title
	}
	writeJSON(w, http.StatusOK, postMessageResponse{
		Conversation: toConversationResponse(conv),
		Reply:        out.AssistantText,
		Result:       out.Result,
		Statement:    out.StatementText,
		TokenCost:    out.TokenCost,
	})
}

func writeStoreError(r *http.Request, w http.ResponseWriter, err error, kind string) {
	if errors.Is(err, chat.ErrNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", kind+" was not found", false, nil)
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to load "+kind, true, map[string]any{"details": err.Error()})
}

func hasValue(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}
