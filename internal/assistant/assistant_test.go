package assistant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach-platform/fitcoach/internal/config"
	"github.com/fitcoach-platform/fitcoach/internal/conversation"
	"github.com/fitcoach-platform/fitcoach/internal/llm"
	"github.com/fitcoach-platform/fitcoach/internal/retrieval"
	"github.com/fitcoach-platform/fitcoach/internal/tools"
	"github.com/fitcoach-platform/fitcoach/internal/topics"
)

type providerCall struct {
	messages []llm.Message
	tools    []llm.ToolDefinition
}

type stubProvider struct {
	mu        sync.Mutex
	calls     []providerCall
	responses []func() (*llm.Completion, error)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (p *stubProvider) Complete(ctx context.Context, messages []llm.Message, defs []llm.ToolDefinition) (*llm.Completion, error) {
	current := p.inFlight.Add(1)
	for {
		max := p.maxInFlight.Load()
		if current <= max || p.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	defer p.inFlight.Add(-1)

	p.mu.Lock()
	p.calls = append(p.calls, providerCall{messages: messages, tools: defs})
	n := len(p.calls)
	p.mu.Unlock()

	if n <= len(p.responses) {
		return p.responses[n-1]()
	}
	return &llm.Completion{Text: "ок"}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *stubProvider) call(i int) providerCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[i]
}

type memStore struct {
	mu       sync.Mutex
	messages []conversation.Message
	nextID   int64
}

func (s *memStore) Append(ctx context.Context, msg *conversation.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	s.messages = append(s.messages, *msg)
	return msg.ID, nil
}

func (s *memStore) Recent(ctx context.Context, userID, sessionID string, since time.Time) ([]conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []conversation.Message
	for _, m := range s.messages {
		if m.UserID == userID && !m.RecordedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) All(ctx context.Context) ([]conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]conversation.Message(nil), s.messages...), nil
}

func (s *memStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fixedEmbedder struct{ err error }

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

func newTestAssistant(provider *stubProvider, store *memStore, capacity int) *Assistant {
	embedder := &fixedEmbedder{}
	engine := retrieval.NewEngine(store, embedder, config.RetrievalConfig{
		Dimensions:     3,
		TimeWindowDays: 30,
		MaxResults:     3,
		MinSimilarity:  0.4,
		SemanticFloor:  0.3,
		KeywordFloor:   0.3,
		KeywordCap:     0.9,
		DirectFloor:    0.3,
		TopicFloor:     0.2,
		TopicWindow:    90,
	})
	executor := tools.NewExecutor(engine, topics.NewSummarizer(store))
	return New(provider, embedder, store, nil, engine, executor, nil, capacity)
}

func toolCallResponse(name, args string) func() (*llm.Completion, error) {
	return func() (*llm.Completion, error) {
		return &llm.Completion{
			ToolCalls: []llm.ToolCall{{ID: "call-1", Name: name, Arguments: args}},
			Usage:     llm.TokenUsage{Prompt: 10, Completion: 5, Total: 15},
		}, nil
	}
}

func TestRespondPlainWhenNoMemoryIndicators(t *testing.T) {
	provider := &stubProvider{responses: []func() (*llm.Completion, error){
		func() (*llm.Completion, error) { return &llm.Completion{Text: "Начни с разминки."}, nil },
	}}
	a := newTestAssistant(provider, &memStore{}, 5)

	reply, err := a.Respond(context.Background(), "u1", "s1", "объясни технику приседаний со штангой")
	require.NoError(t, err)

	assert.Equal(t, "Начни с разминки.", reply.Text)
	assert.False(t, reply.UsedRAG)
	require.Equal(t, 1, provider.callCount())
	assert.Empty(t, provider.call(0).tools)
}

func TestRespondOffersToolsOnMemoryIndicator(t *testing.T) {
	provider := &stubProvider{responses: []func() (*llm.Completion, error){
		toolCallResponse(tools.ToolSearchHistory, `{"query": "штанга"}`),
		func() (*llm.Completion, error) {
			return &llm.Completion{Text: "Мы обсуждали приседания.", Usage: llm.TokenUsage{Total: 20}}, nil
		},
	}}
	a := newTestAssistant(provider, &memStore{}, 5)

	reply, err := a.Respond(context.Background(), "u1", "s1", "помнишь, что мы обсуждали про штангу?")
	require.NoError(t, err)

	assert.Equal(t, "Мы обсуждали приседания.", reply.Text)
	assert.True(t, reply.UsedRAG)
	assert.Equal(t, 35, reply.Usage.Total)

	require.Equal(t, 2, provider.callCount())
	assert.NotEmpty(t, provider.call(0).tools)
	assert.Empty(t, provider.call(1).tools)

	// tool result travels back as a tool-role message on the second call
	second := provider.call(1).messages
	var toolMsgs int
	for _, m := range second {
		if m.Role == "tool" {
			toolMsgs++
			assert.Equal(t, "call-1", m.ToolCallID)
		}
	}
	assert.Equal(t, 1, toolMsgs)
}

func TestRespondOffersToolsOnVagueMessageWithThinHistory(t *testing.T) {
	provider := &stubProvider{responses: []func() (*llm.Completion, error){
		func() (*llm.Completion, error) { return &llm.Completion{Text: "Продолжай по плану."}, nil },
	}}
	a := newTestAssistant(provider, &memStore{}, 5)

	// no session window: a short vague message cannot be resolved from context
	_, err := a.Respond(context.Background(), "u1", "s1", "что делать дальше?")
	require.NoError(t, err)

	require.Equal(t, 1, provider.callCount())
	assert.NotEmpty(t, provider.call(0).tools)
}

func TestRespondNeverLoopsOnRepeatedToolRequests(t *testing.T) {
	always := func() (*llm.Completion, error) {
		return &llm.Completion{
			Text:      "сырой текст",
			ToolCalls: []llm.ToolCall{{ID: "c", Name: tools.ToolSearchHistory, Arguments: `{"query": "бег"}`}},
		}, nil
	}
	provider := &stubProvider{responses: []func() (*llm.Completion, error){always, always, always}}
	a := newTestAssistant(provider, &memStore{}, 5)

	reply, err := a.Respond(context.Background(), "u1", "s1", "помнишь наш план?")
	require.NoError(t, err)

	// exactly one tool round; the second call's text is surfaced verbatim
	assert.Equal(t, "сырой текст", reply.Text)
	assert.Equal(t, 2, provider.callCount())
}

func TestRespondFallsBackWhenToolsPathFails(t *testing.T) {
	provider := &stubProvider{responses: []func() (*llm.Completion, error){
		func() (*llm.Completion, error) { return nil, errors.New("network") },
		func() (*llm.Completion, error) { return &llm.Completion{Text: "запасной ответ"}, nil },
	}}
	a := newTestAssistant(provider, &memStore{}, 5)

	reply, err := a.Respond(context.Background(), "u1", "s1", "помнишь мою программу?")
	require.NoError(t, err)

	assert.Equal(t, "запасной ответ", reply.Text)
	assert.False(t, reply.UsedRAG)
}

func TestFallbackAfterToolRoundReportsNoTools(t *testing.T) {
	provider := &stubProvider{responses: []func() (*llm.Completion, error){
		toolCallResponse(tools.ToolSearchHistory, `{"query": "штанга"}`),
		func() (*llm.Completion, error) { return nil, errors.New("network") },
		func() (*llm.Completion, error) { return &llm.Completion{Text: "запасной ответ"}, nil },
	}}
	a := newTestAssistant(provider, &memStore{}, 5)

	reply, toolNames, err := a.respondWithTools(context.Background(), "u1", "s1",
		buildMessages(nil, "помнишь мою программу?"), nil)
	require.NoError(t, err)

	// the tool round ran, but the concluding call failed: the fallback text
	// must not be attributed to tools in the turn event
	assert.Equal(t, "запасной ответ", reply.Text)
	assert.False(t, reply.UsedRAG)
	assert.Empty(t, toolNames)
}

func TestRespondAssistantUnavailableWhenAllCallsFail(t *testing.T) {
	fail := func() (*llm.Completion, error) { return nil, errors.New("down") }
	provider := &stubProvider{responses: []func() (*llm.Completion, error){fail, fail, fail}}
	a := newTestAssistant(provider, &memStore{}, 5)

	_, err := a.Respond(context.Background(), "u1", "s1", "помнишь мою программу?")
	assert.ErrorIs(t, err, ErrAssistantUnavailable)
}

func TestRespondPersistsBothTurns(t *testing.T) {
	provider := &stubProvider{responses: []func() (*llm.Completion, error){
		func() (*llm.Completion, error) { return &llm.Completion{Text: "Сделай 3 подхода приседаний."}, nil },
	}}
	store := &memStore{}
	a := newTestAssistant(provider, store, 5)

	_, err := a.Respond(context.Background(), "u1", "s1", "составь тренировку на ноги")
	require.NoError(t, err)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, conversation.RoleUser, all[0].Role)
	assert.Equal(t, conversation.RoleAssistant, all[1].Role)
	assert.Contains(t, all[0].Topics, "workout")
	assert.NotEmpty(t, all[0].Embedding)
}

func TestRespondBoundedConcurrency(t *testing.T) {
	provider := &stubProvider{delay: 30 * time.Millisecond}
	a := newTestAssistant(provider, &memStore{}, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Respond(context.Background(), "u1", "s1", "сколько воды пить в день?")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, provider.maxInFlight.Load(), int32(2))
	assert.Equal(t, 8, provider.callCount())
}
