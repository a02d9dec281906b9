// Package review defines core types shared across subsystems.
package review

import "time"

// RunStatus represents the lifecycle state of an acquisition run.
type RunStatus string

// Run status values persisted in the run store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// SentimentLabel is the three-way bucketing of a sentiment score.
type SentimentLabel string

// Sentiment labels, ordered from negative to positive.
const (
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentPositive SentimentLabel = "positive"
)

// Score thresholds for LabelForScore.
const (
	positiveThreshold = 0.3
	negativeThreshold = -0.3
)

// LabelForScore buckets a score into a SentimentLabel. The mapping is
// monotonic: a higher score never yields a less positive label.
func LabelForScore(score float64) SentimentLabel {
	switch {
	case score >= positiveThreshold:
		return SentimentPositive
	case score <= negativeThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// BehaviorUndetermined is returned when no behavior pattern dominates.
const BehaviorUndetermined = "undetermined"

// ProductReference identifies a catalog product whose reviews we acquire.
// The catalog owns these rows; the pipeline only reads them.
type ProductReference struct {
	ID         string `json:"id"`
	SourceURL  string `json:"source_url"`
	ExternalID string `json:"external_id,omitempty"`
}

// RawReview is a single review as produced by a retrieval strategy,
// before any analysis has run.
type RawReview struct {
	Author           string    `json:"author"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	Rating           int       `json:"rating"`
	Text             string    `json:"text"`
	HelpfulCount     int       `json:"helpful_count"`
	PostedAt         time.Time `json:"posted_at"`
}

// AnalyzedReview is a RawReview enriched with text analysis attributes.
// ContentHash is the dedup hash over the normalized text.
type AnalyzedReview struct {
	RawReview
	SentimentScore  float64        `json:"sentiment_score"`
	SentimentLabel  SentimentLabel `json:"sentiment_label"`
	Confidence      float64        `json:"confidence"`
	KeyPhrases      []string       `json:"key_phrases"`
	PurchaseReasons []string       `json:"purchase_reasons"`
	Pros            []string       `json:"pros"`
	Cons            []string       `json:"cons"`
	BehaviorType    string         `json:"behavior_type"`
	ContentHash     string         `json:"content_hash"`
}

// AggregateReport summarizes the persisted review set for one product.
// It is recomputed on demand and never stored.
type AggregateReport struct {
	ProductID             string             `json:"product_id"`
	TotalReviews          int                `json:"total_reviews"`
	AverageSentiment      float64            `json:"average_sentiment"`
	SentimentDistribution map[string]float64 `json:"sentiment_distribution"`
	TopPurchaseReasons    []RankedItem       `json:"top_purchase_reasons"`
	TopPros               []RankedItem       `json:"top_pros"`
	TopCons               []RankedItem       `json:"top_cons"`
	BehaviorDistribution  map[string]int     `json:"behavior_distribution"`
	VerifiedPercentage    float64            `json:"verified_percentage"`
	RecommendationScore   float64            `json:"recommendation_score"`
}

// RankedItem is an entry in a frequency-ranked top list.
type RankedItem struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Constraints carry the budget a strategy attempt must respect.
type Constraints struct {
	MaxRecords int
	Budget     time.Duration
}

// StrategyResult is returned by every strategy attempt. Ordinary network
// and parse failures are folded into Exhausted; Fatal is reserved for
// conditions that can never succeed for this product, such as a source
// URL with no extractable identifier.
type StrategyResult struct {
	Records   []RawReview
	Exhausted bool
	Fatal     bool
}

// RunResult is the outcome of one acquisition run. A failed run is a
// normal outcome, not an error: callers check Success.
type RunResult struct {
	Success      bool   `json:"success"`
	ReviewCount  int    `json:"review_count"`
	StrategyUsed string `json:"strategy_used,omitempty"`
	ErrorText    string `json:"error_text,omitempty"`
}

// Run is the metadata persisted for each acquisition request.
type Run struct {
	ID        string     `json:"id"`
	ProductID string     `json:"product_id"`
	Status    RunStatus  `json:"status"`
	Submitted time.Time  `json:"submitted_at"`
	Started   *time.Time `json:"started_at,omitempty"`
	Finished  *time.Time `json:"finished_at,omitempty"`
	Result    RunResult  `json:"result"`
}

// QueueItem wraps an acquisition request ready to run.
type QueueItem struct {
	RunID     string
	ProductID string
	Attempt   int
	Submitted int64
}

// CompletionEvent is published when a run reaches a terminal state.
type CompletionEvent struct {
	RunID        string `json:"run_id"`
	ProductID    string `json:"product_id"`
	Success      bool   `json:"success"`
	ReviewCount  int    `json:"review_count"`
	StrategyUsed string `json:"strategy_used,omitempty"`
	Timestamp    string `json:"timestamp"`
}
