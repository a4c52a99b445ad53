package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fitcoach-platform/fitcoach/internal/config"
	"github.com/fitcoach-platform/fitcoach/internal/conversation"
	"github.com/fitcoach-platform/fitcoach/internal/llm"
	"github.com/fitcoach-platform/fitcoach/internal/metrics"
)

const (
	MatchSemantic       = "semantic"
	MatchKeyword        = "keyword"
	MatchDirect         = "direct"
	MatchCurrentSession = "current_session"
)

// Result is one ranked snippet. Score is comparable within a single search
// pass only; the scale differs between match types.
type Result struct {
	MessageID  int64     `json:"-"`
	Content    string    `json:"content"`
	Score      float64   `json:"similarity"`
	RecordedAt time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id"`
	Topics     []string  `json:"topics"`
	Importance float32   `json:"importance_score"`
	MatchType  string    `json:"match_type"`
}

// Options override the configured search defaults per call. Zero values fall
// back to the configuration.
type Options struct {
	MaxResults     int
	TimeWindowDays int
	MinScore       float64
}

// Engine runs the three-way hybrid search: semantic over the vector index,
// keyword and direct coverage over a recency-windowed store scan.
type Engine struct {
	store    conversation.Store
	index    *VectorIndex
	embedder llm.Embedder
	cfg      config.RetrievalConfig

	initMu sync.Mutex
}

func NewEngine(store conversation.Store, embedder llm.Embedder, cfg config.RetrievalConfig) *Engine {
	return &Engine{
		store:    store,
		index:    NewVectorIndex(cfg.Dimensions),
		embedder: embedder,
		cfg:      cfg,
	}
}

// Ready reports whether the index has completed its first build.
func (e *Engine) Ready() bool {
	return e.index.Ready()
}

// EnsureReady builds the index from the store on first use. Concurrent
// callers serialize on the mutex so only one build runs; later calls are
// no-ops once the index is ready.
func (e *Engine) EnsureReady(ctx context.Context) error {
	if e.index.Ready() {
		return nil
	}
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.index.Ready() {
		return nil
	}
	return e.rebuildLocked(ctx)
}

// Rebuild replaces the index with the store's current contents. Must be
// called after every prune.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	return e.rebuildLocked(ctx)
}

func (e *Engine) rebuildLocked(ctx context.Context) error {
	messages, err := e.store.All(ctx)
	if err != nil {
		return fmt.Errorf("loading messages for index rebuild: %w", err)
	}

	entries := make([]Entry, 0, len(messages))
	for _, m := range messages {
		if len(m.Embedding) > 0 {
			entries = append(entries, Entry{ID: m.ID, Vector: m.Embedding})
		}
	}
	e.index.Rebuild(entries)
	slog.Info("vector index rebuilt", "vectors", len(entries), "messages", len(messages))
	return nil
}

// Index adds one stored message's vector to the live index. Messages without
// an embedding are skipped; they remain reachable through the lexical paths.
func (e *Engine) Index(msg *conversation.Message) error {
	if len(msg.Embedding) == 0 {
		return nil
	}
	if !e.index.Ready() {
		return nil
	}
	return e.index.Add(msg.ID, msg.Embedding)
}

// Search runs the hybrid retrieval for one user. Semantic failures degrade
// to lexical-only results; only a store read failure is an error.
func (e *Engine) Search(ctx context.Context, userID, query string, opts Options) ([]Result, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = e.cfg.MaxResults
	}
	windowDays := opts.TimeWindowDays
	if windowDays <= 0 {
		windowDays = e.cfg.TimeWindowDays
	}
	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = e.cfg.MinSimilarity
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	candidates, err := e.store.Recent(ctx, userID, "", since)
	if err != nil {
		return nil, fmt.Errorf("scanning candidates: %w", err)
	}

	// Merge set keyed by content: the higher-scoring method wins and its
	// match type sticks.
	merged := make(map[string]Result)
	upsert := func(r Result) {
		if prev, ok := merged[r.Content]; !ok || r.Score > prev.Score {
			merged[r.Content] = r
		}
	}

	for _, hit := range e.semanticHits(ctx, userID, query, candidates, maxResults) {
		upsert(hit)
	}
	for _, m := range candidates {
		if score := keywordScore(query, m.Content, e.cfg.KeywordCap); score >= e.cfg.KeywordFloor {
			upsert(toResult(m, score, MatchKeyword))
		}
		if score := DirectScore(query, m.Content); score >= e.cfg.DirectFloor {
			upsert(toResult(m, score, MatchDirect))
		}
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		// Re-apply the window: the semantic path can surface hits indexed
		// before the scan's cutoff shifted.
		if r.Score >= minScore && !r.RecordedAt.Before(since) {
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].RecordedAt.After(results[j].RecordedAt)
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	for _, r := range results {
		metrics.RetrievalResultsTotal.WithLabelValues(r.MatchType).Inc()
	}
	return results, nil
}

// Related is the topic-scoped variant used by find_related_discussions: a
// wider window and a lower floor so older, looser matches surface.
func (e *Engine) Related(ctx context.Context, userID, topic string, maxResults int) ([]Result, error) {
	return e.Search(ctx, userID, topic, Options{
		MaxResults:     maxResults,
		TimeWindowDays: e.cfg.TopicWindow,
		MinScore:       e.cfg.TopicFloor,
	})
}

func (e *Engine) semanticHits(ctx context.Context, userID, query string, candidates []conversation.Message, maxResults int) []Result {
	byID := make(map[int64]conversation.Message, len(candidates))
	for _, m := range candidates {
		byID[m.ID] = m
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("embedding query failed, skipping semantic search",
			"user_id", userID, "query", truncate(query, 80), "error", err)
		return nil
	}

	hits, err := e.index.Search(vector, maxResults*2)
	if err != nil {
		if !errors.Is(err, ErrIndexNotReady) {
			slog.Warn("index search failed", "user_id", userID, "error", err)
		}
		return nil
	}

	var out []Result
	for _, hit := range hits {
		if hit.Score < e.cfg.SemanticFloor {
			continue
		}
		// The index is global; the candidate map scopes hits to this user
		// and the recency window.
		m, ok := byID[hit.ID]
		if !ok {
			continue
		}
		out = append(out, toResult(m, hit.Score, MatchSemantic))
	}
	return out
}

func toResult(m conversation.Message, score float64, matchType string) Result {
	return Result{
		MessageID:  m.ID,
		Content:    m.Content,
		Score:      score,
		RecordedAt: m.RecordedAt,
		SessionID:  m.SessionID,
		Topics:     m.Topics,
		Importance: m.Importance,
		MatchType:  matchType,
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
