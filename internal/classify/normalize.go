package classify

import (
	"strings"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// MaxSummarySentences is the longest summary an alert may carry.
const MaxSummarySentences = 3

func normalize(r Result) Result {
	if !r.Priority.Valid() {
		r.Priority = store.PriorityMedium
	}
	r.Confidence = min(max(r.Confidence, 0), 1)
	r.Summary = TruncateSentences(r.Summary, MaxSummarySentences)
	return r
}

// TruncateSentences keeps the first n sentences of s, splitting on ". ",
// and ensures the result ends with a period when anything was cut.
func TruncateSentences(s string, n int) string {
	parts := strings.Split(s, ". ")
	if len(parts) <= n {
		return s
	}
	out := strings.Join(parts[:n], ". ")
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}

func sentenceCount(s string) int {
	return len(strings.Split(s, ". "))
}
