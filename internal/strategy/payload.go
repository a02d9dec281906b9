package strategy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ecomscope/review-pipeline/internal/review"
)

// Known container paths for review arrays inside source payloads. The
// source exposes several API generations with different nesting, so
// each path is tried in order until one yields records.
var containerPaths = [][]string{
	{"result", "productReviews", "content"},
	{"result", "content"},
	{"result", "reviews"},
	{"ratingSummary", "reviews"},
	{"product", "ratingSummary", "reviews"},
	{"data", "reviews"},
	{"content"},
	{"reviews"},
	{"items"},
}

// ParsePayload decodes a JSON document and extracts review records from
// the first known container path that yields any.
func ParsePayload(data []byte) ([]review.RawReview, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode review payload: %w", err)
	}
	items := LocateItems(root)
	if items == nil {
		return nil, fmt.Errorf("no review container in payload")
	}
	return ParseItems(items), nil
}

// LocateItems walks the known container paths and returns the first
// non-empty review array, or nil when none matches.
func LocateItems(root any) []any {
	for _, path := range containerPaths {
		node := root
		ok := true
		for _, key := range path {
			m, isMap := node.(map[string]any)
			if !isMap {
				ok = false
				break
			}
			node, ok = m[key]
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}
		if items, isSlice := node.([]any); isSlice && len(items) > 0 {
			return items
		}
	}
	// A bare top-level array is also a valid container.
	if items, isSlice := root.([]any); isSlice && len(items) > 0 {
		return items
	}
	return nil
}

// ParseItems maps loosely-typed review objects onto RawReview records.
// Items without usable text are skipped; field name variants across the
// source's payload generations are all probed.
func ParseItems(items []any) []review.RawReview {
	records := make([]review.RawReview, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := firstString(m, "comment", "text", "reviewText", "content", "description")
		if strings.TrimSpace(text) == "" {
			continue
		}
		records = append(records, review.RawReview{
			Author:           firstString(m, "userFullName", "author", "userName", "user", "name"),
			VerifiedPurchase: firstBool(m, "verifiedPurchase", "trusted", "verified"),
			Rating:           ClampRating(firstNumber(m, "rate", "rating", "ratingValue", "star", "score")),
			Text:             strings.TrimSpace(text),
			HelpfulCount:     int(firstNumber(m, "reviewLikeCount", "helpfulCount", "likeCount", "likes")),
			PostedAt:         firstTime(m, "commentDateISOtype", "lastModifiedDate", "date", "postedAt", "createdAt"),
		})
	}
	return records
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstBool(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		if v, ok := m[key].(bool); ok {
			return v
		}
	}
	return false
}

func firstNumber(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v
		case string:
			var f float64
			if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
				return f
			}
		}
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
}

func firstTime(m map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			for _, layout := range timeLayouts {
				if ts, err := time.Parse(layout, v); err == nil {
					return ts
				}
			}
		case float64:
			// Epoch milliseconds.
			if v > 1e11 {
				return time.UnixMilli(int64(v)).UTC()
			}
			if v > 0 {
				return time.Unix(int64(v), 0).UTC()
			}
		}
	}
	return time.Time{}
}

// ClampRating forces a rating into the 1..5 scale. A payload with no
// usable rating value lands on the floor of the scale rather than an
// out-of-range zero.
func ClampRating(v float64) int {
	r := int(v)
	if r < 1 {
		r = 1
	}
	if r > 5 {
		r = 5
	}
	return r
}
