// Package strategy holds helpers shared by the retrieval strategy
// implementations: product identifier extraction, endpoint templating,
// and tolerant parsing of the source's review payload shapes.
package strategy

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	productSlugPattern = regexp.MustCompile(`-p-(\d+)`)
	trailingIDPattern  = regexp.MustCompile(`/(\d{4,})(?:[/?#]|$)`)
)

// ErrNoExternalID is wrapped by ExternalID failures so strategies can
// classify them as fatal for the product.
var ErrNoExternalID = fmt.Errorf("no external identifier in source url")

// ExternalID resolves the source site's stable numeric identifier for a
// product. The explicit ExternalID on the reference wins; otherwise the
// identifier is extracted from the source URL slug, the productId query
// parameter, or a trailing numeric path segment.
func ExternalID(explicitID, sourceURL string) (string, error) {
	if explicitID != "" {
		return explicitID, nil
	}
	if m := productSlugPattern.FindStringSubmatch(sourceURL); m != nil {
		return m[1], nil
	}
	if u, err := url.Parse(sourceURL); err == nil {
		for _, key := range []string{"productId", "product_id", "pid"} {
			if v := u.Query().Get(key); v != "" {
				return v, nil
			}
		}
	}
	if m := trailingIDPattern.FindStringSubmatch(sourceURL); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoExternalID, sourceURL)
}

// ExpandEndpoint substitutes the request placeholders of an endpoint
// template.
func ExpandEndpoint(template, externalID string, page, pageSize int, sortKey string) string {
	r := strings.NewReplacer(
		"{productId}", externalID,
		"{page}", fmt.Sprintf("%d", page),
		"{pageSize}", fmt.Sprintf("%d", pageSize),
		"{sortKey}", sortKey,
	)
	return r.Replace(template)
}
