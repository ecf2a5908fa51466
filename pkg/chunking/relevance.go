package chunking

import (
	"regexp"
	"strings"
)

const (
	disclaimerPenalty = -5.0
	businessBonus     = 3.0
	exactMatchBonus   = 2.0
	neutralRelevance  = 0.5
	minQueryWordLen   = 3
)

// CalculateRelevance scores content against a query. Without a query the
// score is a neutral 0.5. With one, distinct disclaimer patterns penalize,
// distinct business patterns boost, and query-word occurrences add raw
// counts plus a bonus per distinct exact-word match. The sum is normalized
// by ScoreNormalizationFactor × wordCount and clamped to [-1, 1].
func (c *Chunker) CalculateRelevance(content, query string) float64 {
	if strings.TrimSpace(query) == "" {
		return neutralRelevance
	}

	score := disclaimerPenalty * float64(c.cfg.Vocabulary.DistinctDisclaimerHits(content))
	score += businessBonus * float64(c.cfg.Vocabulary.DistinctBusinessHits(content))

	words := queryWords(query)
	for _, w := range words {
		// Words are matched literally; a malformed word must not abort
		// scoring of the remaining ones.
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(w))
		if err != nil {
			continue
		}
		occurrences := len(re.FindAllStringIndex(content, -1))
		score += float64(occurrences)

		exact, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			continue
		}
		if exact.MatchString(content) {
			score += exactMatchBonus
		}
	}

	// Queries made of only short tokens leave the heuristics in charge.
	wordCount := len(words)
	if wordCount == 0 {
		wordCount = 1
	}

	normalized := score / (c.cfg.ScoreNormalizationFactor * float64(wordCount))
	if normalized > 1 {
		return 1
	}
	if normalized < -1 {
		return -1
	}
	return normalized
}

func queryWords(query string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `.,;:!?"'()[]{}`)
		if len(w) >= minQueryWordLen {
			words = append(words, w)
		}
	}
	return words
}
