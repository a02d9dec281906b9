package strategy

import (
	"fmt"
	"strings"
)

// DefaultStateMarkers are the script globals the source site has used to
// seed its product pages, newest first.
var DefaultStateMarkers = []string{
	"window.__PRODUCT_DETAIL_APP_INITIAL_STATE__",
	"window.__INITIAL_STATE__",
	"window.__STATE__",
}

// ExtractState locates a marker assignment inside an HTML document and
// returns the JSON object literal assigned to it. Markers are tried in
// order; the first one with a balanced object wins.
func ExtractState(html []byte, markers []string) ([]byte, error) {
	doc := string(html)
	for _, marker := range markers {
		idx := strings.Index(doc, marker)
		if idx == -1 {
			continue
		}
		open := strings.IndexByte(doc[idx:], '{')
		if open == -1 {
			continue
		}
		blob, ok := balancedObject(doc[idx+open:])
		if ok {
			return []byte(blob), nil
		}
	}
	return nil, fmt.Errorf("no embedded state marker in document")
}

// balancedObject returns the shortest prefix of s that forms a balanced
// JSON object, tracking string literals and escapes so braces inside
// review text do not terminate the scan early.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[:i+1], true
				}
			}
		}
	}
	return "", false
}
