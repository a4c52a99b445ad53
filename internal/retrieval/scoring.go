package retrieval

import (
	"strings"
	"unicode"
)

// Lexical scoring for Russian-language queries. Cyrillic morphology makes
// exact token matching too brittle, so the keyword path falls back to a
// 4-character stem and the direct path works on substring coverage.

const (
	minKeywordLen = 3
	stemLen       = 4
	stemWeight    = 0.5
	phraseBonus   = 0.2
)

// stopwords are high-frequency Russian function words that carry no retrieval
// signal and would inflate coverage scores.
var stopwords = map[string]struct{}{
	"и": {}, "в": {}, "на": {}, "с": {}, "по": {}, "для": {}, "к": {},
	"о": {}, "от": {}, "за": {}, "у": {}, "я": {}, "ты": {}, "он": {},
	"она": {}, "мы": {}, "они": {}, "не": {}, "что": {}, "как": {},
	"это": {}, "the": {}, "a": {}, "is": {}, "for": {}, "to": {},
}

// boostTerms are domain-salient words that, when present in both query and
// candidate, push the keyword score up. Values are additive.
var boostTerms = map[string]float64{
	"штанг":     0.2,
	"гантел":    0.2,
	"жим":       0.15,
	"присед":    0.15,
	"тяга":      0.15,
	"белок":     0.15,
	"белк":      0.15,
	"калори":    0.1,
	"тренировк": 0.1,
	"питани":    0.1,
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// keywordScore rates content by the fraction of query tokens it contains.
// A verbatim hit counts fully, a 4-character stem hit counts half. Boosts
// apply after normalization; the cap keeps keyword hits from outranking a
// strong semantic hit.
func keywordScore(query, content string, cap float64) float64 {
	contentLower := strings.ToLower(content)

	var tokens []string
	for _, tok := range tokenize(query) {
		if len([]rune(tok)) >= minKeywordLen {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return 0
	}

	var matched float64
	for _, tok := range tokens {
		switch {
		case strings.Contains(contentLower, tok):
			matched += 1.0
		case len([]rune(tok)) > stemLen && strings.Contains(contentLower, string([]rune(tok)[:stemLen])):
			matched += stemWeight
		}
	}

	score := matched / float64(len(tokens))
	if score == 0 {
		return 0
	}

	queryLower := strings.ToLower(query)
	for term, boost := range boostTerms {
		if strings.Contains(queryLower, term) && strings.Contains(contentLower, term) {
			score += boost
		}
	}

	if score > cap {
		score = cap
	}
	return score
}

// DirectScore rates content by literal coverage of the query's meaningful
// words, with a bonus for each adjacent two-word phrase found verbatim.
// An empty query after stop-word stripping scores zero.
func DirectScore(query, content string) float64 {
	contentLower := strings.ToLower(content)

	var words []string
	for _, tok := range tokenize(query) {
		if len([]rune(tok)) <= 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		words = append(words, tok)
	}
	if len(words) == 0 {
		return 0
	}

	var matched int
	for _, w := range words {
		if strings.Contains(contentLower, w) {
			matched++
		}
	}

	score := float64(matched) / float64(len(words))
	for i := 0; i+1 < len(words); i++ {
		if strings.Contains(contentLower, words[i]+" "+words[i+1]) {
			score += phraseBonus
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
