// Package tools exposes the memory-retrieval operations as model-callable
// functions. Every execution returns a structured payload; errors become
// {"error": ...} objects so a failing tool never aborts the turn.
package tools

import "github.com/fitcoach-platform/fitcoach/internal/llm"

const (
	ToolSearchHistory       = "search_conversation_history"
	ToolConversationSummary = "get_conversation_summary"
	ToolRelatedDiscussions  = "find_related_discussions"
)

// Definitions returns the tool schemas attached to the first model call of
// each orchestration turn.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name: ToolSearchHistory,
			Description: "Поиск по истории прошлых разговоров с пользователем. " +
				"Используй, когда пользователь ссылается на прошлые обсуждения " +
				"или когда контекст прошлых разговоров поможет ответить точнее.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Поисковый запрос на языке пользователя",
					},
					"max_results": map[string]any{
						"type":        "integer",
						"description": "Максимум результатов (по умолчанию 3)",
					},
					"time_window_days": map[string]any{
						"type":        "integer",
						"description": "Глубина поиска в днях (по умолчанию 30)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name: ToolConversationSummary,
			Description: "Сводка недавней истории разговоров пользователя: " +
				"основные темы, ключевые сообщения, активность.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"days_back": map[string]any{
						"type":        "integer",
						"description": "Период сводки в днях (по умолчанию 7)",
					},
				},
			},
		},
		{
			Name: ToolRelatedDiscussions,
			Description: "Поиск прошлых обсуждений, связанных с темой, " +
				"с группировкой по времени. Окно поиска шире, чем у обычного поиска.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"topic": map[string]any{
						"type":        "string",
						"description": "Тема для поиска связанных обсуждений",
					},
				},
				"required": []string{"topic"},
			},
		},
	}
}
