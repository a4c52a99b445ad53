package tools

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fitcoach-platform/fitcoach/internal/retrieval"
	"github.com/fitcoach-platform/fitcoach/internal/topics"
)

// Envelope builders. Every payload carries an explicit found/not-found
// signal plus a hint telling the model how to use (or not invent) the
// results; retrieval is heuristic and the model must not fill gaps itself.

const (
	hintFound = "Используй эту информацию из прошлых разговоров, чтобы ответить точнее. " +
		"Не придумывай детали, которых нет в результатах."
	hintNotFound = "В истории разговоров ничего не найдено по этому запросу. " +
		"Честно скажи, что не помнишь такого обсуждения, и предложи обсудить сейчас."
	hintRelatedFound = "Это прошлые обсуждения по теме, сгруппированные по давности. " +
		"Ссылайся на них, только если они действительно относятся к вопросу."

	analysisMostlyQuestions = "В найденных фрагментах в основном вопросы без ответов: " +
		"скорее всего, сама информация обсуждалась до включения истории разговоров."
	recommendMostlyQuestions = "Попроси пользователя рассказать это еще раз, " +
		"чтобы дать точный ответ и запомнить его на будущее."
)

func searchEnvelope(query string, results []retrieval.Result) map[string]any {
	if len(results) == 0 {
		return map[string]any{
			"found":      false,
			"query":      query,
			"results":    []any{},
			"suggestion": hintNotFound,
		}
	}

	items := make([]map[string]any, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]any{
			"content":    r.Content,
			"similarity": r.Score,
			"when":       timeAgo(r.RecordedAt),
			"match_type": r.MatchType,
			"topics":     r.Topics,
		})
	}
	payload := map[string]any{
		"found":   true,
		"query":   query,
		"count":   len(items),
		"results": items,
		"hint":    hintFound,
	}
	if mostlyQuestions(results) {
		payload["analysis"] = analysisMostlyQuestions
		payload["recommendation"] = recommendMostlyQuestions
	}
	return payload
}

var questionMarkers = []string{"?", "какое", "сколько", "что", "где", "когда", "как", "почему"}

// questionLenLimit: hits longer than this read like answers, not questions.
const questionLenLimit = 100

// mostlyQuestions reports whether every hit is a short question, a sign that
// the answers predate the stored history.
func mostlyQuestions(results []retrieval.Result) bool {
	for _, r := range results {
		lowered := strings.ToLower(r.Content)
		question := false
		for _, marker := range questionMarkers {
			if strings.Contains(lowered, marker) {
				question = true
				break
			}
		}
		if !question || utf8.RuneCountInString(r.Content) > questionLenLimit {
			return false
		}
	}
	return len(results) > 0
}

func summaryEnvelope(s *topics.Summary) map[string]any {
	if s.TotalMessages == 0 {
		return map[string]any{
			"found":   false,
			"message": fmt.Sprintf("История разговоров за последние %d дн. пуста.", s.Days),
		}
	}

	payload := map[string]any{
		"found":          true,
		"days":           s.Days,
		"total_messages": s.TotalMessages,
		"user_messages":  s.UserMessages,
		"top_topics":     s.TopTopics,
		"key_points":     s.KeyPoints,
		"insights":       s.Insights,
	}
	if analysis := analyzeKeyPoints(s.KeyPoints); analysis != "" {
		payload["analysis"] = analysis
	}
	return payload
}

// analyzeKeyPoints flags a window where the user mostly asked questions, a
// signal that they are seeking guidance rather than reporting progress.
func analyzeKeyPoints(points []string) string {
	if len(points) == 0 {
		return ""
	}
	var questions int
	for _, p := range points {
		if strings.Contains(p, "?") {
			questions++
		}
	}
	if questions*2 > len(points) {
		return "Пользователь в основном задает вопросы. Вероятно, ему нужны конкретные рекомендации."
	}
	return ""
}

func relatedEnvelope(topic string, results []retrieval.Result) map[string]any {
	if len(results) == 0 {
		return map[string]any{
			"found":      false,
			"topic":      topic,
			"suggestion": hintNotFound,
		}
	}

	timeline := map[string][]map[string]any{}
	for _, r := range results {
		bucket := timelineBucket(r.RecordedAt)
		timeline[bucket] = append(timeline[bucket], map[string]any{
			"content":    r.Content,
			"similarity": r.Score,
			"when":       timeAgo(r.RecordedAt),
		})
	}
	return map[string]any{
		"found":    true,
		"topic":    topic,
		"count":    len(results),
		"timeline": timeline,
		"hint":     hintRelatedFound,
	}
}

func timelineBucket(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < 24*time.Hour:
		return "last_24h"
	case age < 7*24*time.Hour:
		return "last_week"
	case age < 30*24*time.Hour:
		return "last_month"
	default:
		return "older"
	}
}

func timeAgo(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Hour:
		return "только что"
	case age < 24*time.Hour:
		return fmt.Sprintf("%d ч. назад", int(age.Hours()))
	case age < 7*24*time.Hour:
		return fmt.Sprintf("%d дн. назад", int(age.Hours()/24))
	case age < 30*24*time.Hour:
		return fmt.Sprintf("%d нед. назад", int(age.Hours()/(24*7)))
	default:
		return fmt.Sprintf("%d мес. назад", int(age.Hours()/(24*30)))
	}
}
