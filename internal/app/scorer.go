package app

import (
	"strings"
	"unicode"

	"reviewpulse/internal/domain"
)

// Sentiment scoring blends the star rating with a lexical text heuristic.
// The whole thing is deterministic on purpose: no model, no external calls.
//
// Weights are tunable constants, not a contract.
const (
	ratingWeight  = 0.7
	textWeight    = 0.3
	maxTextAdjust = 0.2
	adjustPerCue  = 0.1

	// Below this many tokens the text carries too little signal and the
	// score falls back to the star rating alone.
	minAnalyzableTokens = 3

	minKeywordLen = 3
)

var positiveCues = map[string]struct{}{
	"great": {}, "good": {}, "excellent": {}, "love": {}, "amazing": {},
	"best": {}, "awesome": {}, "fantastic": {}, "perfect": {}, "happy": {},
	"satisfied": {}, "wonderful": {}, "recommend": {}, "pleased": {},
	"delighted": {}, "friendly": {}, "clean": {}, "fast": {},
}

var negativeCues = map[string]struct{}{
	"bad": {}, "poor": {}, "terrible": {}, "hate": {}, "awful": {},
	"worst": {}, "slow": {}, "dirty": {}, "late": {}, "rude": {},
	"expensive": {}, "disappointed": {}, "frustrated": {}, "angry": {},
	"broken": {}, "unhappy": {}, "waste": {}, "problem": {}, "issue": {},
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "was": {}, "are": {}, "but": {},
	"not": {}, "you": {}, "all": {}, "with": {}, "they": {}, "this": {},
	"that": {}, "have": {}, "had": {}, "our": {}, "were": {}, "very": {},
	"will": {}, "when": {}, "here": {}, "there": {}, "been": {}, "from": {},
	"would": {}, "could": {}, "their": {}, "your": {}, "them": {}, "then": {},
	"than": {}, "what": {}, "which": {}, "about": {}, "into": {}, "just": {},
	"also": {}, "some": {}, "more": {}, "out": {}, "get": {}, "got": {},
}

// Score converts one review's rating and free text into a sentiment label,
// a score in [0,1], and up to topN keywords ordered by relevance.
func Score(text string, rating int, topN int) (label string, score float64, keywords []string) {
	base := float64(rating-1) / 4

	tokens := tokenize(text)
	if len(tokens) < minAnalyzableTokens {
		return labelFor(base), base, keywordsFrom(tokens, topN)
	}

	var pos, neg int
	for _, t := range tokens {
		if _, ok := positiveCues[t]; ok {
			pos++
		}
		if _, ok := negativeCues[t]; ok {
			neg++
		}
	}
	adjust := clamp(adjustPerCue*float64(pos-neg), -maxTextAdjust, maxTextAdjust)
	score = clamp(ratingWeight*base+textWeight*(0.5+adjust), 0, 1)
	return labelFor(score), score, keywordsFrom(tokens, topN)
}

// ValidateRaw rejects records the scorer cannot work with.
func ValidateRaw(r domain.RawReview) error {
	if r.SourceID == "" || r.Rating < 1 || r.Rating > 5 {
		return domain.ErrInvalidReview
	}
	return nil
}

func labelFor(score float64) string {
	switch {
	case score < 0.4:
		return domain.SentimentNegative
	case score > 0.6:
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// keywordsFrom picks the topN most frequent non-stopword tokens,
// ties broken by first occurrence.
func keywordsFrom(tokens []string, topN int) []string {
	if topN <= 0 || len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := make([]string, 0, len(tokens))
	for i, t := range tokens {
		if len(t) < minKeywordLen {
			continue
		}
		if _, ok := stopwords[t]; ok {
			continue
		}
		if _, ok := counts[t]; !ok {
			firstSeen[t] = i
			order = append(order, t)
		}
		counts[t]++
	}

	// Stable selection: order holds first-occurrence order, so a simple
	// insertion-style pick by count keeps the tie-break deterministic.
	out := make([]string, 0, topN)
	picked := make(map[string]struct{}, topN)
	for len(out) < topN {
		best := ""
		for _, t := range order {
			if _, done := picked[t]; done {
				continue
			}
			if best == "" || counts[t] > counts[best] {
				best = t
			}
		}
		if best == "" {
			break
		}
		picked[best] = struct{}{}
		out = append(out, best)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
