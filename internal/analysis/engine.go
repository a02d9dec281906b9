// Package analysis implements the lexicon-driven review text analysis
// engine: sentiment scoring, key phrase extraction, purchase reason
// classification, pro/con extraction, and behavior typing. It is a pure
// lookup-based engine with no statistical models.
package analysis

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ecomscope/review-pipeline/internal/review"
)

// Config carries the lexicon tables. Every table is tuning data; zero
// values fall back to the built-in defaults.
type Config struct {
	PositiveLexicon   map[string]float64
	NegativeLexicon   map[string]float64
	DiagnosticBigrams []string
	PurchaseReasons   map[string][]string
	BehaviorPatterns  map[string][]string
	ProConThreshold   float64
	MaxProsCons       int
	MaxKeyPhrases     int
}

// Engine implements review.Analyzer.
type Engine struct {
	cfg Config
}

// New constructs an Engine, filling defaults for any empty table.
func New(cfg Config) *Engine {
	if cfg.PositiveLexicon == nil {
		cfg.PositiveLexicon = defaultPositiveLexicon()
	}
	if cfg.NegativeLexicon == nil {
		cfg.NegativeLexicon = defaultNegativeLexicon()
	}
	if cfg.DiagnosticBigrams == nil {
		cfg.DiagnosticBigrams = defaultDiagnosticBigrams()
	}
	if cfg.PurchaseReasons == nil {
		cfg.PurchaseReasons = defaultPurchaseReasons()
	}
	if cfg.BehaviorPatterns == nil {
		cfg.BehaviorPatterns = defaultBehaviorPatterns()
	}
	if cfg.ProConThreshold <= 0 {
		cfg.ProConThreshold = 0.7
	}
	if cfg.MaxProsCons <= 0 {
		cfg.MaxProsCons = 5
	}
	if cfg.MaxKeyPhrases <= 0 {
		cfg.MaxKeyPhrases = 10
	}
	return &Engine{cfg: cfg}
}

// Analyze classifies a single review text. Empty or whitespace-only
// input yields the fixed empty analysis instead of an error.
func (e *Engine) Analyze(text string) review.Analysis {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return emptyAnalysis()
	}
	tokens := tokenize(lowered)
	if len(tokens) == 0 {
		return emptyAnalysis()
	}

	score, confidence, pros, cons := e.scoreSentiment(tokens)
	return review.Analysis{
		SentimentScore:  score,
		SentimentLabel:  review.LabelForScore(score),
		Confidence:      confidence,
		KeyPhrases:      e.keyPhrases(lowered, tokens),
		PurchaseReasons: e.matchCategories(e.cfg.PurchaseReasons, lowered, tokens),
		Pros:            pros,
		Cons:            cons,
		BehaviorType:    e.behaviorType(lowered, tokens),
	}
}

func emptyAnalysis() review.Analysis {
	return review.Analysis{
		SentimentScore:  0,
		SentimentLabel:  review.SentimentNeutral,
		Confidence:      0,
		KeyPhrases:      []string{},
		PurchaseReasons: []string{},
		Pros:            []string{},
		Cons:            []string{},
		BehaviorType:    review.BehaviorUndetermined,
	}
}

// scoreSentiment computes the weighted lexicon score and, in the same
// pass, collects the strong entries (|weight| at or above threshold) as
// pros and cons in token order.
func (e *Engine) scoreSentiment(tokens []string) (score, confidence float64, pros, cons []string) {
	var positiveSum, negativeSum float64
	matched := 0
	pros = []string{}
	cons = []string{}

	for _, token := range tokens {
		if weight, ok := e.cfg.PositiveLexicon[token]; ok {
			positiveSum += weight
			matched++
			if weight >= e.cfg.ProConThreshold && len(pros) < e.cfg.MaxProsCons && !contains(pros, token) {
				pros = append(pros, token)
			}
			continue
		}
		if weight, ok := e.cfg.NegativeLexicon[token]; ok {
			negativeSum += weight
			matched++
			if weight >= e.cfg.ProConThreshold && len(cons) < e.cfg.MaxProsCons && !contains(cons, token) {
				cons = append(cons, token)
			}
		}
	}

	if total := positiveSum + negativeSum; total > 0 {
		score = (positiveSum - negativeSum) / total
	}
	denominator := float64(len(tokens)) / 10
	if denominator > 0 {
		confidence = float64(matched) / denominator
		if confidence > 1 {
			confidence = 1
		}
	}
	return score, confidence, pros, cons
}

// keyPhrases returns top-frequency tokens (length > 3, frequency > 1)
// plus any diagnostic bigram contained in the text.
func (e *Engine) keyPhrases(lowered string, tokens []string) []string {
	type entry struct {
		token string
		count int
		first int
	}
	freq := make(map[string]*entry)
	for i, token := range tokens {
		if len([]rune(token)) <= 3 {
			continue
		}
		if ent, ok := freq[token]; ok {
			ent.count++
		} else {
			freq[token] = &entry{token: token, count: 1, first: i}
		}
	}
	entries := make([]*entry, 0, len(freq))
	for _, ent := range freq {
		if ent.count > 1 {
			entries = append(entries, ent)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].first < entries[j].first
	})

	phrases := []string{}
	for _, ent := range entries {
		if len(phrases) >= e.cfg.MaxKeyPhrases {
			break
		}
		phrases = append(phrases, ent.token)
	}
	for _, bigram := range e.cfg.DiagnosticBigrams {
		if strings.Contains(lowered, bigram) {
			phrases = append(phrases, bigram)
		}
	}
	return phrases
}

// matchCategories runs the keyword membership test for a category table.
// Multi-word keywords match by containment; single words match a token
// exactly or as a prefix, which tolerates Turkish suffixes.
func (e *Engine) matchCategories(table map[string][]string, lowered string, tokens []string) []string {
	matchedSet := map[string]struct{}{}
	for category, keywords := range table {
		if categoryMatches(keywords, lowered, tokens) {
			matchedSet[category] = struct{}{}
		}
	}
	matched := make([]string, 0, len(matchedSet))
	for category := range matchedSet {
		matched = append(matched, category)
	}
	sort.Strings(matched)
	return matched
}

// behaviorType picks the behavior category with the most keyword hits.
// Ties resolve to undetermined rather than an arbitrary pick.
func (e *Engine) behaviorType(lowered string, tokens []string) string {
	best := review.BehaviorUndetermined
	bestHits := 0
	tied := false
	categories := make([]string, 0, len(e.cfg.BehaviorPatterns))
	for category := range e.cfg.BehaviorPatterns {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		hits := countHits(e.cfg.BehaviorPatterns[category], lowered, tokens)
		switch {
		case hits > bestHits:
			best = category
			bestHits = hits
			tied = false
		case hits == bestHits && hits > 0:
			tied = true
		}
	}
	if bestHits == 0 || tied {
		return review.BehaviorUndetermined
	}
	return best
}

func categoryMatches(keywords []string, lowered string, tokens []string) bool {
	return countHits(keywords, lowered, tokens) > 0
}

func countHits(keywords []string, lowered string, tokens []string) int {
	hits := 0
	for _, keyword := range keywords {
		if strings.ContainsRune(keyword, ' ') {
			if strings.Contains(lowered, keyword) {
				hits++
			}
			continue
		}
		for _, token := range tokens {
			if token == keyword || strings.HasPrefix(token, keyword) {
				hits++
				break
			}
		}
	}
	return hits
}

func tokenize(lowered string) []string {
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
