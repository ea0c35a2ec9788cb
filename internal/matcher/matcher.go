// internal/matcher/matcher.go
package matcher

import (
	"strings"

	"tender-alerts/internal/models"
)

// Result is the outcome of matching one subscription's keywords against one
// announcement. MatchedKeywords preserves the subscriber's original keyword
// order and contains every keyword that matched, not just the first.
type Result struct {
	Passes          bool
	MatchedKeywords []string
}

// Match reports whether any keyword is a case-insensitive substring of the
// announcement's searchable fields (title, description, entity name).
// Pure and total: empty fields simply never match.
func Match(keywords []string, ann *models.Announcement) Result {
	if len(keywords) == 0 || ann == nil {
		return Result{}
	}

	haystack := strings.ToLower(strings.Join(ann.SearchableText(), "\n"))

	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}

	return Result{
		Passes:          len(matched) > 0,
		MatchedKeywords: matched,
	}
}
