// Package topics assigns coarse fitness-domain categories to conversation
// messages. Matching is substring-based on stems so Russian inflected forms
// (тренировка, тренировки, тренировкой) all hit the same category.
package topics

import "strings"

const DefaultTopic = "general"

// categoryOrder fixes the output order so extraction is deterministic.
var categoryOrder = []string{"workout", "nutrition", "muscle_groups", "equipment", "goals"}

var categoryKeywords = map[string][]string{
	"workout": {
		"тренировк", "тренир", "упражнен", "жим", "присед", "тяга",
		"подтягив", "отжим", "бег", "кардио", "разминк", "подход", "повтор",
		"workout", "training", "exercise", "cardio",
	},
	"nutrition": {
		"питани", "белок", "белк", "калори", "диет", "еда", "завтрак",
		"обед", "ужин", "протеин", "углевод", "жиры", "вода",
		"nutrition", "protein", "diet", "calorie",
	},
	"muscle_groups": {
		"грудь", "грудн", "спина", "спину", "спины", "ноги", "ног", "руки",
		"плечи", "плеч", "бицепс", "трицепс", "пресс", "ягодиц", "икры",
		"chest", "back", "legs", "shoulders", "biceps", "triceps", "abs",
	},
	"equipment": {
		"штанг", "гантел", "тренажер", "тренажёр", "турник", "гиря", "гири",
		"скамь", "резинк", "коврик",
		"barbell", "dumbbell", "kettlebell",
	},
	"goals": {
		"похуде", "похуд", "масс", "цель", "цели", "вес", "сбросить",
		"набрать", "сила", "силу", "выносливост", "рельеф", "форм",
		"weight", "goal", "strength",
	},
}

// Extract returns every category whose keywords occur in the content, in a
// fixed order. Content with no match falls back to the default topic.
func Extract(content string) []string {
	lowered := strings.ToLower(content)

	var matched []string
	for _, category := range categoryOrder {
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(lowered, kw) {
				matched = append(matched, category)
				break
			}
		}
	}

	if len(matched) == 0 {
		return []string{DefaultTopic}
	}
	return matched
}
