package assistant

import "strings"

// memoryIndicators are stems that suggest the user is referring to earlier
// conversations, so the turn should be offered the retrieval tools. Matching
// is substring over the lowered message, so inflected forms hit their stem.
var memoryIndicators = []string{
	// references to past discussions
	"помн",
	"вспомни",
	"раньше",
	"прошл",
	"обсужда",
	"говорил",
	"советовал",
	"рекомендовал",
	"напомни",
	"до этого",
	"в тот раз",
	"мы с тобой",
	"уже спрашивал",
	"тогда",
	"наша программа",
	"план который",
	// progress and change requests
	"изменить",
	"заменить",
	"адаптировать",
	"прогресс",
	"результат",
	"как дела с",
	// timeline references
	"вчера",
	"недавно",
	"в последний раз",
}

// vaguePatterns mark short messages that lean on context the model does not
// have yet ("что делать дальше?", "можешь дать совет?").
var vaguePatterns = []string{
	"можешь",
	"хочу",
	"нужно",
	"как",
	"что делать",
	"совет",
}

const (
	vagueWordLimit = 8
	thinHistoryLen = 3
)

// shouldOfferMemory reports whether the turn likely needs long-term memory:
// either the message references earlier conversations outright, or it is
// short and vague while the session window is too thin to resolve it. When
// it returns false the turn runs as a plain completion, which keeps the
// common case cheap.
func shouldOfferMemory(message string, historyLen int) bool {
	lowered := strings.ToLower(message)
	for _, indicator := range memoryIndicators {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}

	if len(strings.Fields(message)) < vagueWordLimit && historyLen < thinHistoryLen {
		for _, pattern := range vaguePatterns {
			if strings.Contains(lowered, pattern) {
				return true
			}
		}
	}
	return false
}
