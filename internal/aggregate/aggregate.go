// Package aggregate computes summary statistics over a product's
// analyzed review set. Reports are derived on demand and never stored.
package aggregate

import (
	"math"
	"sort"

	"github.com/ecomscope/review-pipeline/internal/review"
)

// Weights of the recommendation score blend.
const (
	sentimentBand = 50.0
	ratingBand    = 40.0
	verifiedBand  = 10.0
)

// TopListSize bounds the ranked lists in a report.
const TopListSize = 5

// Report builds an AggregateReport for the given review set. An empty
// set yields a zeroed report with empty lists; AverageSentiment is
// defined as 0 in that case rather than dividing by zero.
func Report(productID string, reviews []review.AnalyzedReview) review.AggregateReport {
	report := review.AggregateReport{
		ProductID:             productID,
		TotalReviews:          len(reviews),
		SentimentDistribution: map[string]float64{},
		TopPurchaseReasons:    []review.RankedItem{},
		TopPros:               []review.RankedItem{},
		TopCons:               []review.RankedItem{},
		BehaviorDistribution:  map[string]int{},
	}
	if len(reviews) == 0 {
		return report
	}

	var sentimentSum, ratingSum float64
	labelCounts := map[review.SentimentLabel]int{}
	verified := 0
	reasons := newRanker()
	pros := newRanker()
	cons := newRanker()

	for _, r := range reviews {
		sentimentSum += r.SentimentScore
		ratingSum += float64(r.Rating)
		labelCounts[r.SentimentLabel]++
		if r.VerifiedPurchase {
			verified++
		}
		reasons.addAll(r.PurchaseReasons)
		pros.addAll(r.Pros)
		cons.addAll(r.Cons)
		if r.BehaviorType != "" {
			report.BehaviorDistribution[r.BehaviorType]++
		}
	}

	total := float64(len(reviews))
	report.AverageSentiment = sentimentSum / total
	for _, label := range []review.SentimentLabel{review.SentimentPositive, review.SentimentNeutral, review.SentimentNegative} {
		report.SentimentDistribution[string(label)] = roundPct(float64(labelCounts[label]) / total * 100)
	}
	report.VerifiedPercentage = roundPct(float64(verified) / total * 100)
	report.TopPurchaseReasons = reasons.top(TopListSize)
	report.TopPros = pros.top(TopListSize)
	report.TopCons = cons.top(TopListSize)
	report.RecommendationScore = recommendationScore(
		report.AverageSentiment,
		ratingSum/total,
		float64(verified)/total,
	)
	return report
}

// recommendationScore blends normalized sentiment (0-50), normalized
// star rating (0-40) and the verified ratio (0-10), clamped to [0,100].
func recommendationScore(avgSentiment, avgRating, verifiedRatio float64) float64 {
	score := (avgSentiment + 1) / 2 * sentimentBand
	score += avgRating / 5 * ratingBand
	score += verifiedRatio * verifiedBand
	return math.Round(clamp(score, 0, 100)*10) / 10
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

func roundPct(v float64) float64 {
	return math.Round(v*10) / 10
}

// ranker counts value frequencies, breaking ties by first-seen order.
type ranker struct {
	counts map[string]int
	first  map[string]int
	next   int
}

func newRanker() *ranker {
	return &ranker{
		counts: map[string]int{},
		first:  map[string]int{},
	}
}

func (r *ranker) addAll(values []string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, seen := r.counts[v]; !seen {
			r.first[v] = r.next
			r.next++
		}
		r.counts[v]++
	}
}

func (r *ranker) top(n int) []review.RankedItem {
	items := make([]review.RankedItem, 0, len(r.counts))
	for v, c := range r.counts {
		items = append(items, review.RankedItem{Value: v, Count: c})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return r.first[items[i].Value] < r.first[items[j].Value]
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}
