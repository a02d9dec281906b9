// Package dedup filters duplicate review text within an acquisition run.
//
// Uniqueness is decided purely on normalized text: two reviews by
// different authors with identical normalized text collapse to one. This
// copes with strategies observing overlapping result windows, e.g. an
// API page and an embedded payload both surfacing the same top review.
package dedup

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ecomscope/review-pipeline/internal/review"
)

var foldTransform = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips diacritics, and collapses whitespace.
// Dotless ı carries no combining mark, so it is mapped by hand.
func Normalize(text string) string {
	folded, _, err := transform.String(foldTransform, text)
	if err != nil {
		folded = text
	}
	lowered := strings.ToLower(folded)
	lowered = strings.ReplaceAll(lowered, "ı", "i")
	return strings.Join(strings.Fields(lowered), " ")
}

// Deduplicator tracks the content hashes seen within one run.
// It is not safe for concurrent use; each run owns its own instance.
type Deduplicator struct {
	hasher review.Hasher
	seen   map[string]struct{}
}

// New constructs a Deduplicator for a single run.
func New(hasher review.Hasher) *Deduplicator {
	return &Deduplicator{
		hasher: hasher,
		seen:   make(map[string]struct{}),
	}
}

// Key returns the dedup hash for a review text.
func (d *Deduplicator) Key(text string) (string, error) {
	hash, err := d.hasher.Hash([]byte(Normalize(text)))
	if err != nil {
		return "", fmt.Errorf("hash normalized text: %w", err)
	}
	return hash, nil
}

// Admit records the text and reports whether it was seen for the first
// time in this run.
func (d *Deduplicator) Admit(text string) (string, bool, error) {
	key, err := d.Key(text)
	if err != nil {
		return "", false, err
	}
	if _, dup := d.seen[key]; dup {
		return key, false, nil
	}
	d.seen[key] = struct{}{}
	return key, true, nil
}

// Count returns the number of unique texts admitted so far.
func (d *Deduplicator) Count() int {
	return len(d.seen)
}
