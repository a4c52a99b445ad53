//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach-platform/fitcoach/internal/config"
	"github.com/fitcoach-platform/fitcoach/internal/conversation"
	"github.com/fitcoach-platform/fitcoach/internal/retrieval"
)

const dims = 1536

// vec returns a deterministic unit-direction vector for tests.
func vec(seed int) []float32 {
	v := make([]float32, dims)
	v[seed%dims] = 1
	return v
}

type staticEmbedder struct {
	vectors map[string][]float32
}

func (e *staticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return vec(0), nil
}

func retrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		Dimensions:     dims,
		TimeWindowDays: 30,
		MaxResults:     3,
		MinSimilarity:  0.4,
		SemanticFloor:  0.3,
		KeywordFloor:   0.3,
		KeywordCap:     0.9,
		DirectFloor:    0.3,
		TopicFloor:     0.2,
		TopicWindow:    90,
	}
}

func TestStoreAppendAndRecent(t *testing.T) {
	pool := SetupPostgres(t)
	store := conversation.NewPostgresStore(pool)
	ctx := context.Background()

	id1, err := store.Append(ctx, &conversation.Message{
		UserID:    "u1",
		SessionID: "s1",
		Role:      conversation.RoleUser,
		Content:   "приседания со штангой",
		Embedding: vec(1),
		Topics:    []string{"workout", "equipment"},
	})
	require.NoError(t, err)
	require.Greater(t, id1, int64(0))

	id2, err := store.Append(ctx, &conversation.Message{
		UserID:    "u1",
		SessionID: "s1",
		Role:      conversation.RoleAssistant,
		Content:   "Отличное упражнение для ног.",
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	// system turns are never persisted
	sysID, err := store.Append(ctx, &conversation.Message{
		UserID:    "u1",
		SessionID: "s1",
		Role:      conversation.RoleSystem,
		Content:   "scaffolding",
	})
	require.NoError(t, err)
	assert.Zero(t, sysID)

	messages, err := store.Recent(ctx, "u1", "", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// embedding survives the round trip for index rebuilds
	var withVec *conversation.Message
	for i := range messages {
		if messages[i].ID == id1 {
			withVec = &messages[i]
		}
	}
	require.NotNil(t, withVec)
	assert.Len(t, withVec.Embedding, dims)
	assert.Equal(t, []string{"workout", "equipment"}, withVec.Topics)
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	pool := SetupPostgres(t)
	store := conversation.NewPostgresStore(pool)

	_, err := store.Append(context.Background(), &conversation.Message{
		UserID:    "u1",
		SessionID: "s1",
		Role:      conversation.RoleUser,
		Content:   "",
	})
	assert.Error(t, err)
}

func TestStoreScopedByUser(t *testing.T) {
	pool := SetupPostgres(t)
	store := conversation.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := store.Append(ctx, &conversation.Message{
		UserID: "u1", SessionID: "s1", Role: conversation.RoleUser, Content: "бег утром",
	})
	require.NoError(t, err)
	_, err = store.Append(ctx, &conversation.Message{
		UserID: "u2", SessionID: "s2", Role: conversation.RoleUser, Content: "бег вечером",
	})
	require.NoError(t, err)

	messages, err := store.Recent(ctx, "u1", "", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "бег утром", messages[0].Content)
}

func TestPruneThenRebuildServesNothing(t *testing.T) {
	pool := SetupPostgres(t)
	store := conversation.NewPostgresStore(pool)
	ctx := context.Background()

	embedder := &staticEmbedder{vectors: map[string][]float32{
		"штанга": vec(1),
	}}
	engine := retrieval.NewEngine(store, embedder, retrievalConfig())

	_, err := store.Append(ctx, &conversation.Message{
		UserID: "u1", SessionID: "s1", Role: conversation.RoleUser,
		Content: "приседания со штангой", Embedding: vec(1),
	})
	require.NoError(t, err)
	require.NoError(t, engine.EnsureReady(ctx))

	results, err := engine.Search(ctx, "u1", "штанга", retrieval.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// prune with a zero-day retention removes everything
	removed, err := store.Prune(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.NoError(t, engine.Rebuild(ctx))

	results, err = engine.Search(ctx, "u1", "штанга", retrieval.Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridSearchOverRealStore(t *testing.T) {
	pool := SetupPostgres(t)
	store := conversation.NewPostgresStore(pool)
	ctx := context.Background()

	embedder := &staticEmbedder{vectors: map[string][]float32{}}
	engine := retrieval.NewEngine(store, embedder, retrievalConfig())

	for _, content := range []string{
		"жим лежа 3 подхода по 10",
		"приседания со штангой",
		"бег 20 минут",
	} {
		_, err := store.Append(ctx, &conversation.Message{
			UserID: "u1", SessionID: "s1", Role: conversation.RoleUser, Content: content,
		})
		require.NoError(t, err)
	}
	require.NoError(t, engine.EnsureReady(ctx))

	results, err := engine.Search(ctx, "u1", "упражнения со штангой", retrieval.Options{MaxResults: 2})
	require.NoError(t, err)

	require.NotEmpty(t, results)
	assert.Equal(t, "приседания со штангой", results[0].Content)
	for _, r := range results {
		assert.NotEqual(t, "бег 20 минут", r.Content)
	}
}
