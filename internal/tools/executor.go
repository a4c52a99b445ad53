package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fitcoach-platform/fitcoach/internal/conversation"
	"github.com/fitcoach-platform/fitcoach/internal/metrics"
	"github.com/fitcoach-platform/fitcoach/internal/retrieval"
	"github.com/fitcoach-platform/fitcoach/internal/topics"
)

// sessionFloor gates direct-coverage matches against the live session
// window, which is searched in addition to the durable store.
const sessionFloor = 0.3

type Searcher interface {
	EnsureReady(ctx context.Context) error
	Search(ctx context.Context, userID, query string, opts retrieval.Options) ([]retrieval.Result, error)
	Related(ctx context.Context, userID, topic string, maxResults int) ([]retrieval.Result, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, userID, sessionID string, days int) (*topics.Summary, error)
}

// Request is one tool invocation scoped to the calling user's turn.
type Request struct {
	Name           string
	Arguments      string
	UserID         string
	SessionID      string
	SessionContext []conversation.SessionMessage
}

type searchArgs struct {
	Query          string `json:"query" validate:"required"`
	MaxResults     int    `json:"max_results" validate:"omitempty,min=1,max=10"`
	TimeWindowDays int    `json:"time_window_days" validate:"omitempty,min=1,max=365"`
}

type summaryArgs struct {
	DaysBack int `json:"days_back" validate:"omitempty,min=1,max=90"`
}

type relatedArgs struct {
	Topic string `json:"topic" validate:"required"`
}

type Executor struct {
	searcher   Searcher
	summarizer Summarizer
	validate   *validator.Validate
}

func NewExecutor(searcher Searcher, summarizer Summarizer) *Executor {
	return &Executor{
		searcher:   searcher,
		summarizer: summarizer,
		validate:   validator.New(),
	}
}

// Execute runs one tool call and always returns a structured payload. Any
// internal failure, including a panic, is converted to an error object so
// the orchestration turn survives.
func (x *Executor) Execute(ctx context.Context, req Request) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool execution panicked", "tool", req.Name, "user_id", req.UserID, "panic", r)
			metrics.ToolExecutionsTotal.WithLabelValues(req.Name, "panic").Inc()
			result = errorPayload(fmt.Sprintf("internal error in %s", req.Name))
		}
	}()

	var err error
	switch req.Name {
	case ToolSearchHistory:
		result, err = x.searchHistory(ctx, req)
	case ToolConversationSummary:
		result, err = x.conversationSummary(ctx, req)
	case ToolRelatedDiscussions:
		result, err = x.relatedDiscussions(ctx, req)
	default:
		metrics.ToolExecutionsTotal.WithLabelValues(req.Name, "unknown").Inc()
		return errorPayload(fmt.Sprintf("unknown tool: %s", req.Name))
	}

	if err != nil {
		slog.Warn("tool execution failed", "tool", req.Name, "user_id", req.UserID, "error", err)
		metrics.ToolExecutionsTotal.WithLabelValues(req.Name, "error").Inc()
		return errorPayload(err.Error())
	}
	metrics.ToolExecutionsTotal.WithLabelValues(req.Name, "ok").Inc()
	return result
}

func (x *Executor) searchHistory(ctx context.Context, req Request) (map[string]any, error) {
	var args searchArgs
	if err := x.decodeArgs(req.Arguments, &args); err != nil {
		return nil, err
	}

	if err := x.searcher.EnsureReady(ctx); err != nil {
		// degrade to lexical-only search rather than failing the tool
		slog.Warn("index build failed, searching without semantic path",
			"user_id", req.UserID, "error", err)
	}

	results, err := x.searcher.Search(ctx, req.UserID, args.Query, retrieval.Options{
		MaxResults:     args.MaxResults,
		TimeWindowDays: args.TimeWindowDays,
	})
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}

	// session matches join the ranked set before the final ordering so the
	// caller's max_results bounds the whole envelope
	results = append(results, sessionMatches(args.Query, req.SessionContext)...)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].RecordedAt.After(results[j].RecordedAt)
	})
	if args.MaxResults > 0 && len(results) > args.MaxResults {
		results = results[:args.MaxResults]
	}
	return searchEnvelope(args.Query, results), nil
}

func (x *Executor) conversationSummary(ctx context.Context, req Request) (map[string]any, error) {
	args := summaryArgs{DaysBack: 7}
	if err := x.decodeArgs(req.Arguments, &args); err != nil {
		return nil, err
	}
	if args.DaysBack == 0 {
		args.DaysBack = 7
	}

	// the summary covers the whole user history, not just this session
	summary, err := x.summarizer.Summarize(ctx, req.UserID, "", args.DaysBack)
	if err != nil {
		return nil, fmt.Errorf("building summary: %w", err)
	}
	return summaryEnvelope(summary), nil
}

func (x *Executor) relatedDiscussions(ctx context.Context, req Request) (map[string]any, error) {
	var args relatedArgs
	if err := x.decodeArgs(req.Arguments, &args); err != nil {
		return nil, err
	}

	if err := x.searcher.EnsureReady(ctx); err != nil {
		slog.Warn("index build failed, searching without semantic path",
			"user_id", req.UserID, "error", err)
	}

	results, err := x.searcher.Related(ctx, req.UserID, args.Topic, 5)
	if err != nil {
		return nil, fmt.Errorf("finding related discussions: %w", err)
	}
	return relatedEnvelope(args.Topic, results), nil
}

func (x *Executor) decodeArgs(raw string, dst any) error {
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := x.validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// sessionMatches scans the live session window so the model can reference
// turns that have not been persisted long enough to appear in the store scan.
func sessionMatches(query string, sessionContext []conversation.SessionMessage) []retrieval.Result {
	var out []retrieval.Result
	for _, m := range sessionContext {
		if score := retrieval.DirectScore(query, m.Content); score >= sessionFloor {
			out = append(out, retrieval.Result{
				Content:    m.Content,
				Score:      score,
				RecordedAt: time.Now().UTC(),
				MatchType:  retrieval.MatchCurrentSession,
			})
		}
	}
	return out
}

func errorPayload(message string) map[string]any {
	return map[string]any{"error": message}
}
