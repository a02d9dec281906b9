package strategy

import (
	"bytes"
	"strings"
)

// PageProbe applies rule-based checks to a fetched product page to
// decide whether plain HTTP retrieval is pointless and the run should
// fall through to a rendering strategy.
type PageProbe struct {
	BodyLengthThreshold int
}

// NewPageProbe creates a probe. A zero threshold gets the default.
func NewPageProbe(threshold int) *PageProbe {
	if threshold == 0 {
		threshold = 2048
	}
	return &PageProbe{BodyLengthThreshold: threshold}
}

var blockMarkers = [][]byte{
	[]byte("captcha"),
	[]byte("access denied"),
	[]byte("are you a robot"),
	[]byte("cf-challenge"),
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

// RenderRequired reports whether the body looks like a bot wall or a
// script-only shell that needs a real rendering context.
func (p *PageProbe) RenderRequired(statusCode int, body []byte) bool {
	if statusCode != 200 {
		return statusCode == 403 || statusCode == 429
	}
	if len(body) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range blockMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	if len(body) < p.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// Script tag never closes; count the rest.
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= 25
}
