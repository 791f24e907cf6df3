package classify

import (
	"strings"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// KeywordAssigner derives a priority from keyword matches against a
// change's category, summary and rationale. Keywords are lower case and
// matched as substrings.
type KeywordAssigner struct {
	High   []string
	Medium []string
	Low    []string
}

// DefaultKeywordAssigner returns the assigner with the default keyword sets.
func DefaultKeywordAssigner() KeywordAssigner {
	return KeywordAssigner{
		High: []string{
			"pricing", "price", "tier", "plan", "free tier",
			"certification", "compliance", "soc 2", "soc2", "iso 27001", "gdpr", "hipaa",
			"integration", "launch", "release", "feature",
		},
		Medium: []string{
			"changelog", "update", "news", "press release",
			"case study", "customer", "logo", "twitter", "tweet", "social post",
		},
		Low: []string{
			"homepage", "landing", "testimonial", "blog",
			"thought leadership", "industry",
		},
	}
}

func (k KeywordAssigner) empty() bool {
	return len(k.High) == 0 && len(k.Medium) == 0 && len(k.Low) == 0
}

// Assign picks a priority. A high keyword wins unless a low keyword also
// matches; then medium, then low; otherwise the category decides.
func (k KeywordAssigner) Assign(category store.Category, summary, rationale string) store.Priority {
	text := strings.ToLower(string(category) + " " + summary + " " + rationale)

	low := containsAny(text, k.Low)
	switch {
	case containsAny(text, k.High) && !low:
		return store.PriorityHigh
	case containsAny(text, k.Medium):
		return store.PriorityMedium
	case low:
		return store.PriorityLow
	}

	switch category {
	case store.CategoryPricing, store.CategoryCompliance:
		return store.PriorityHigh
	case store.CategoryChangelog, "news":
		return store.PriorityMedium
	default:
		return store.PriorityLow
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
