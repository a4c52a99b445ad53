package topics

import (
	"context"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/fitcoach-platform/fitcoach/internal/conversation"
)

const (
	maxKeyPoints    = 5
	keyPointMinLen  = 30
	keyPointMaxLen  = 150
	activeThreshold = 20
)

type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Summary is a digest of one user's recent history: how much they talked,
// about what, and the statements worth surfacing back to them.
type Summary struct {
	UserID        string       `json:"user_id"`
	Days          int          `json:"days"`
	TotalMessages int          `json:"total_messages"`
	UserMessages  int          `json:"user_messages"`
	TopTopics     []TopicCount `json:"top_topics"`
	KeyPoints     []string     `json:"key_points"`
	Insights      []string     `json:"insights"`
}

type Summarizer struct {
	store conversation.Store
}

func NewSummarizer(store conversation.Store) *Summarizer {
	return &Summarizer{store: store}
}

// Summarize builds a digest over the last days of history, optionally scoped
// to one session. A user with no messages in the window gets a zero-count
// summary, not an error.
func (s *Summarizer) Summarize(ctx context.Context, userID, sessionID string, days int) (*Summary, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	messages, err := s.store.Recent(ctx, userID, sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("loading history for summary: %w", err)
	}

	summary := &Summary{UserID: userID, Days: days}
	if len(messages) == 0 {
		return summary, nil
	}

	counts := make(map[string]int)
	var candidates []keyPointCandidate
	for _, m := range messages {
		summary.TotalMessages++
		if m.Role == conversation.RoleUser {
			summary.UserMessages++
			if point := keyPoint(m.Content); point != "" {
				candidates = append(candidates, keyPointCandidate{
					point:      point,
					importance: m.Importance,
					at:         m.RecordedAt,
				})
			}
		}
		for _, topic := range m.Topics {
			if topic != DefaultTopic {
				counts[topic]++
			}
		}
	}

	summary.KeyPoints = selectKeyPoints(candidates)
	summary.TopTopics = rankTopics(counts)
	summary.Insights = buildInsights(summary)
	return summary, nil
}

type keyPointCandidate struct {
	point      string
	importance float32
	at         time.Time
}

// selectKeyPoints keeps the highest-importance statements, newest first on
// ties, capped at maxKeyPoints.
func selectKeyPoints(candidates []keyPointCandidate) []string {
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].importance != candidates[j].importance {
			return candidates[i].importance > candidates[j].importance
		}
		return candidates[i].at.After(candidates[j].at)
	})
	if len(candidates) > maxKeyPoints {
		candidates = candidates[:maxKeyPoints]
	}
	points := make([]string, 0, len(candidates))
	for _, c := range candidates {
		points = append(points, c.point)
	}
	return points
}

func keyPoint(content string) string {
	if utf8.RuneCountInString(content) < keyPointMinLen {
		return ""
	}
	runes := []rune(content)
	if len(runes) > keyPointMaxLen {
		return string(runes[:keyPointMaxLen]) + "..."
	}
	return content
}

func rankTopics(counts map[string]int) []TopicCount {
	ranked := make([]TopicCount, 0, len(counts))
	for topic, count := range counts {
		ranked = append(ranked, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Topic < ranked[j].Topic
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	return ranked
}

var topicInsights = map[string]string{
	"workout":       "Основное внимание в разговорах уделяется тренировкам.",
	"nutrition":     "Вы часто обсуждаете питание и рацион.",
	"muscle_groups": "Вы детально прорабатываете отдельные группы мышц.",
	"equipment":     "Вы часто спрашиваете про инвентарь и тренажеры.",
	"goals":         "Вы активно обсуждаете свои цели и прогресс.",
}

func buildInsights(s *Summary) []string {
	var insights []string
	if len(s.TopTopics) > 0 {
		if insight, ok := topicInsights[s.TopTopics[0].Topic]; ok {
			insights = append(insights, insight)
		}
	}
	if s.TotalMessages >= activeThreshold {
		insights = append(insights, "Вы регулярно общаетесь с тренером, это помогает отслеживать прогресс.")
	}
	return insights
}
