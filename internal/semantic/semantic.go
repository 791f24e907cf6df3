// Package semantic characterizes a detected change through an LLM and
// filters out changes that are noise.
package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// Significance levels reported by the analyzer.
const (
	SignificanceHigh   = "high"
	SignificanceMedium = "medium"
	SignificanceLow    = "low"
)

// Request is the input for semantic analysis.
type Request struct {
	Before    string
	After     string
	AssetType store.AssetType
	URL       string
}

// Result is a human-readable characterization of a change.
type Result struct {
	Summary      string
	ChangeType   string // pricing, feature, compliance, content, other; "unknown" when degraded
	Rationale    string
	Significance string

	// Err is set on a degraded result. The other fields still hold usable
	// generic values.
	Err error
}

// Degraded reports whether the analysis failed and r holds generic values.
func (r Result) Degraded() bool {
	return r.Err != nil
}

// Category maps the reported change type onto the closed category set.
func (r Result) Category() store.Category {
	return store.ParseCategory(strings.ToLower(r.ChangeType))
}

// Analyzer produces a semantic characterization of a change. It never
// fails: errors are reported through a degraded Result.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) Result
}

// degraded is the result used when analysis is unavailable.
func degraded(t store.AssetType, err error) Result {
	return Result{
		Summary:      fmt.Sprintf("Change detected on %s page", t),
		ChangeType:   "unknown",
		Significance: SignificanceMedium,
		Err:          err,
	}
}
