package topics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach-platform/fitcoach/internal/conversation"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "workout in russian",
			content: "Какая тренировка лучше для новичка?",
			want:    []string{"workout"},
		},
		{
			name:    "inflected form matches stem",
			content: "Расскажи про тренировки на выносливость",
			want:    []string{"workout", "goals"},
		},
		{
			name:    "multiple categories",
			content: "Хочу программу на грудь со штангой и советы по питанию",
			want:    []string{"nutrition", "muscle_groups", "equipment"},
		},
		{
			name:    "case insensitive",
			content: "СКОЛЬКО БЕЛКА НУЖНО В ДЕНЬ?",
			want:    []string{"nutrition"},
		},
		{
			name:    "english keywords",
			content: "best protein for strength",
			want:    []string{"nutrition", "goals"},
		},
		{
			name:    "no match falls back to general",
			content: "Привет, как дела?",
			want:    []string{"general"},
		},
		{
			name:    "empty content",
			content: "",
			want:    []string{"general"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.content))
		})
	}
}

type stubStore struct {
	messages []conversation.Message
	err      error
}

func (s *stubStore) Append(ctx context.Context, msg *conversation.Message) (int64, error) {
	return 0, nil
}

func (s *stubStore) Recent(ctx context.Context, userID, sessionID string, since time.Time) ([]conversation.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []conversation.Message
	for _, m := range s.messages {
		if m.UserID != userID || m.RecordedAt.Before(since) {
			continue
		}
		if sessionID != "" && m.SessionID != sessionID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *stubStore) All(ctx context.Context) ([]conversation.Message, error) {
	return s.messages, nil
}

func (s *stubStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func TestSummarizeEmptyHistory(t *testing.T) {
	s := NewSummarizer(&stubStore{})

	summary, err := s.Summarize(context.Background(), "user-1", "", 7)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalMessages)
	assert.Empty(t, summary.TopTopics)
	assert.Empty(t, summary.KeyPoints)
}

func TestSummarizeCountsAndRanksTopics(t *testing.T) {
	now := time.Now().UTC()
	store := &stubStore{messages: []conversation.Message{
		{UserID: "user-1", Role: conversation.RoleUser, Content: "Составь мне программу тренировок на неделю вперед", Topics: []string{"workout"}, RecordedAt: now},
		{UserID: "user-1", Role: conversation.RoleAssistant, Content: "Вот программа", Topics: []string{"workout"}, RecordedAt: now},
		{UserID: "user-1", Role: conversation.RoleUser, Content: "Сколько белка мне нужно есть каждый день?", Topics: []string{"nutrition"}, RecordedAt: now},
		{UserID: "user-1", Role: conversation.RoleUser, Content: "ок", Topics: []string{"general"}, RecordedAt: now},
	}}
	s := NewSummarizer(store)

	summary, err := s.Summarize(context.Background(), "user-1", "", 7)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalMessages)
	assert.Equal(t, 3, summary.UserMessages)
	require.NotEmpty(t, summary.TopTopics)
	assert.Equal(t, "workout", summary.TopTopics[0].Topic)
	assert.Equal(t, 2, summary.TopTopics[0].Count)
	// "general" never counts as a topic
	for _, tc := range summary.TopTopics {
		assert.NotEqual(t, "general", tc.Topic)
	}
}

func TestSummarizeKeyPointsPreferHighImportance(t *testing.T) {
	now := time.Now().UTC()
	filler := "обычное сообщение про тренировку, ничего особенного в нем нет"
	important := "у меня старая травма колена, приседания делать нельзя совсем"

	var messages []conversation.Message
	for i := 0; i < 6; i++ {
		messages = append(messages, conversation.Message{
			UserID: "user-1", Role: conversation.RoleUser, Content: filler,
			Topics: []string{"workout"}, Importance: 1.0, RecordedAt: now,
		})
	}
	messages = append(messages, conversation.Message{
		UserID: "user-1", Role: conversation.RoleUser, Content: important,
		Topics: []string{"workout"}, Importance: 9.0, RecordedAt: now.Add(-time.Hour),
	})
	s := NewSummarizer(&stubStore{messages: messages})

	summary, err := s.Summarize(context.Background(), "user-1", "", 7)
	require.NoError(t, err)

	// the high-importance message outranks newer low-importance ones
	require.Len(t, summary.KeyPoints, maxKeyPoints)
	assert.Equal(t, important, summary.KeyPoints[0])
}

func TestSummarizeKeyPointsFromLongUserMessages(t *testing.T) {
	now := time.Now().UTC()
	long := strings.Repeat("очень длинное сообщение о тренировках ", 10)
	store := &stubStore{messages: []conversation.Message{
		{UserID: "user-1", Role: conversation.RoleUser, Content: long, Topics: []string{"workout"}, RecordedAt: now},
		{UserID: "user-1", Role: conversation.RoleUser, Content: "да", Topics: []string{"general"}, RecordedAt: now},
		{UserID: "user-1", Role: conversation.RoleAssistant, Content: long, Topics: []string{"workout"}, RecordedAt: now},
	}}
	s := NewSummarizer(store)

	summary, err := s.Summarize(context.Background(), "user-1", "", 7)
	require.NoError(t, err)

	// only the long user message qualifies, truncated with an ellipsis
	require.Len(t, summary.KeyPoints, 1)
	assert.True(t, strings.HasSuffix(summary.KeyPoints[0], "..."))
	assert.LessOrEqual(t, len([]rune(summary.KeyPoints[0])), keyPointMaxLen+3)
}
