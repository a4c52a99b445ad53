// Package assistant drives one conversation turn: a tools-enabled model
// call, at most one round of tool executions, a concluding call, and
// persistence of both turns.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fitcoach-platform/fitcoach/internal/conversation"
	"github.com/fitcoach-platform/fitcoach/internal/llm"
	fcnats "github.com/fitcoach-platform/fitcoach/internal/nats"
	"github.com/fitcoach-platform/fitcoach/internal/retrieval"
	"github.com/fitcoach-platform/fitcoach/internal/tools"
	"github.com/fitcoach-platform/fitcoach/internal/topics"
)

// ErrAssistantUnavailable is the single user-visible failure: both the
// tools-enabled path and the plain fallback could not reach the model.
var ErrAssistantUnavailable = errors.New("assistant unavailable")

// Reply is the outcome of one turn.
type Reply struct {
	Text      string         `json:"response_text"`
	UsedRAG   bool           `json:"used_rag"`
	Usage     llm.TokenUsage `json:"token_usage"`
	LatencyMS int64          `json:"latency_ms"`
}

// Assistant owns the orchestration loop. The publisher is optional; without
// NATS the turn completes normally and only the event is skipped.
type Assistant struct {
	provider  llm.Provider
	embedder  llm.Embedder
	store     conversation.Store
	sessions  *conversation.SessionWindow
	engine    *retrieval.Engine
	executor  *tools.Executor
	publisher *fcnats.Publisher
	sem       *Semaphore
}

func New(
	provider llm.Provider,
	embedder llm.Embedder,
	store conversation.Store,
	sessions *conversation.SessionWindow,
	engine *retrieval.Engine,
	executor *tools.Executor,
	publisher *fcnats.Publisher,
	maxConcurrent int,
) *Assistant {
	return &Assistant{
		provider:  provider,
		embedder:  embedder,
		store:     store,
		sessions:  sessions,
		engine:    engine,
		executor:  executor,
		publisher: publisher,
		sem:       NewSemaphore(maxConcurrent),
	}
}

// Respond runs one full turn for the given user message.
func (a *Assistant) Respond(ctx context.Context, userID, sessionID, message string) (*Reply, error) {
	start := time.Now()

	history := a.sessionHistory(ctx, userID, sessionID)
	messages := buildMessages(history, message)

	var (
		reply     *Reply
		toolNames []string
		err       error
	)
	if shouldOfferMemory(message, len(history)) {
		reply, toolNames, err = a.respondWithTools(ctx, userID, sessionID, messages, history)
	} else {
		reply, err = a.plainCompletion(ctx, messages)
	}
	if err != nil {
		return nil, err
	}
	reply.LatencyMS = time.Since(start).Milliseconds()

	// Memory is an enhancement: persistence failures are logged, never
	// surfaced to the user.
	a.persistTurn(ctx, userID, sessionID, conversation.RoleUser, message)
	a.persistTurn(ctx, userID, sessionID, conversation.RoleAssistant, reply.Text)
	a.publishTurn(ctx, userID, sessionID, reply, toolNames)

	return reply, nil
}

// respondWithTools is the two-phase path: a tools-enabled call, tool
// executions in request order, then a concluding call without tools. Any
// failure inside this path falls back to a plain completion.
func (a *Assistant) respondWithTools(
	ctx context.Context,
	userID, sessionID string,
	messages []llm.Message,
	history []conversation.SessionMessage,
) (*Reply, []string, error) {
	first, err := a.complete(ctx, messages, tools.Definitions())
	if err != nil {
		slog.Warn("tools-enabled call failed, falling back to plain completion",
			"user_id", userID, "error", err)
		reply, ferr := a.plainCompletion(ctx, messages)
		return reply, nil, ferr
	}

	if len(first.ToolCalls) == 0 {
		return &Reply{Text: first.Text, Usage: first.Usage}, nil, nil
	}

	assistantMsg := llm.Message{Role: "assistant", Content: first.Text}
	assistantMsg.ToolCalls = first.ToolCalls
	messages = append(messages, assistantMsg)

	toolNames := make([]string, 0, len(first.ToolCalls))
	for _, call := range first.ToolCalls {
		toolNames = append(toolNames, call.Name)
		payload := a.executor.Execute(ctx, tools.Request{
			Name:           call.Name,
			Arguments:      call.Arguments,
			UserID:         userID,
			SessionID:      sessionID,
			SessionContext: history,
		})
		messages = append(messages, llm.Message{
			Role:       "tool",
			ToolCallID: call.ID,
			Content:    marshalPayload(payload),
		})
	}

	// The concluding call carries no tool schemas. A model that still asks
	// for tools here is misbehaving; its raw text is surfaced as-is rather
	// than starting another round.
	second, err := a.complete(ctx, messages, nil)
	if err != nil {
		slog.Warn("concluding call failed, falling back to plain completion",
			"user_id", userID, "error", err)
		reply, ferr := a.plainCompletion(ctx, messages[:len(messages)-len(first.ToolCalls)-1])
		if ferr != nil {
			return nil, nil, ferr
		}
		// the fallback answer never saw the tool results, so the turn is
		// reported as tool-free
		return reply, nil, nil
	}

	usage := llm.TokenUsage{
		Prompt:     first.Usage.Prompt + second.Usage.Prompt,
		Completion: first.Usage.Completion + second.Usage.Completion,
		Total:      first.Usage.Total + second.Usage.Total,
	}
	return &Reply{Text: second.Text, UsedRAG: true, Usage: usage}, toolNames, nil
}

func (a *Assistant) plainCompletion(ctx context.Context, messages []llm.Message) (*Reply, error) {
	completion, err := a.complete(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}
	return &Reply{Text: completion.Text, Usage: completion.Usage}, nil
}

// complete makes one model call under an admission slot.
func (a *Assistant) complete(ctx context.Context, messages []llm.Message, defs []llm.ToolDefinition) (*llm.Completion, error) {
	if err := a.sem.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquiring model slot: %w", err)
	}
	defer a.sem.Release()
	return a.provider.Complete(ctx, messages, defs)
}

func (a *Assistant) sessionHistory(ctx context.Context, userID, sessionID string) []conversation.SessionMessage {
	if a.sessions == nil {
		return nil
	}
	history, err := a.sessions.History(ctx, userID, sessionID)
	if err != nil {
		slog.Warn("loading session history failed", "user_id", userID, "error", err)
		return nil
	}
	return history
}

func (a *Assistant) persistTurn(ctx context.Context, userID, sessionID string, role conversation.Role, content string) {
	if content == "" {
		return
	}

	msg := conversation.Message{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Topics:    topics.Extract(content),
	}

	if embedding, err := a.embedder.Embed(ctx, content); err != nil {
		// stored without a vector; lexical search still finds it
		slog.Warn("embedding turn failed", "user_id", userID, "role", role, "error", err)
	} else {
		msg.Embedding = embedding
	}

	if _, err := a.store.Append(ctx, &msg); err != nil {
		slog.Error("storing turn failed", "user_id", userID, "role", role, "error", err)
		return
	}
	if err := a.engine.Index(&msg); err != nil {
		slog.Warn("indexing turn failed", "user_id", userID, "message_id", msg.ID, "error", err)
	}
	if a.sessions != nil {
		if err := a.sessions.Push(ctx, userID, sessionID, role, content); err != nil {
			slog.Warn("updating session window failed", "user_id", userID, "error", err)
		}
	}
}

func (a *Assistant) publishTurn(ctx context.Context, userID, sessionID string, reply *Reply, toolNames []string) {
	if a.publisher == nil {
		return
	}
	event := fcnats.TurnEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		UsedRAG:   reply.UsedRAG,
		Tools:     toolNames,
		Tokens:    reply.Usage.Total,
		LatencyMS: reply.LatencyMS,
		Timestamp: time.Now().UTC(),
	}
	if err := a.publisher.PublishTurn(ctx, event); err != nil {
		slog.Warn("publishing turn event failed", "user_id", userID, "error", err)
	}
}

func buildMessages(history []conversation.SessionMessage, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for _, h := range history {
		messages = append(messages, llm.Message{Role: string(h.Role), Content: h.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: userMessage})
}

func marshalPayload(payload map[string]any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return `{"error": "failed to encode tool result"}`
	}
	return string(data)
}
