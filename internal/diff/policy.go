package diff

import "fmt"

// StructuredDiffPolicy names how a structured diff weighs on significance.
type StructuredDiffPolicy string

const (
	// StructuredAlways makes any structured diff significant regardless of
	// how much text changed.
	StructuredAlways StructuredDiffPolicy = "structured-always"

	// StructuredWeighted counts a structured diff only when the text moved
	// at all: a non-zero change percentage or a changed line.
	StructuredWeighted StructuredDiffPolicy = "structured-weighted"
)

// Policy decides significance. Its thresholds are empirical defaults.
type Policy struct {
	// Threshold is the change percentage at or above which a change is
	// significant. Default: 5.0.
	Threshold float64

	// LineThreshold is the added+removed line count above which a change
	// is significant. Default: 10.
	LineThreshold int

	Structured StructuredDiffPolicy
}

// DefaultPolicy returns the default significance policy.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:     5.0,
		LineThreshold: 10,
		Structured:    StructuredAlways,
	}
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.Threshold < 0 || p.Threshold > 100 {
		return fmt.Errorf("diff.threshold must be within [0, 100], got %v", p.Threshold)
	}
	if p.LineThreshold < 0 {
		return fmt.Errorf("diff.line_threshold must not be negative, got %d", p.LineThreshold)
	}
	switch p.Structured {
	case StructuredAlways, StructuredWeighted:
	default:
		return fmt.Errorf("unknown diff.structured_policy %q", p.Structured)
	}
	return nil
}

// IsSignificant reports whether ev crosses the noteworthiness bar.
func (p Policy) IsSignificant(ev *Evidence) bool {
	if ev == nil {
		return false
	}
	if ev.Structured != nil && p.structuredCounts(ev) {
		return true
	}
	if ev.ChangePercentage >= p.Threshold {
		return true
	}
	return ev.Text.LinesChanged() > p.LineThreshold
}

func (p Policy) structuredCounts(ev *Evidence) bool {
	if p.Structured == StructuredWeighted {
		return ev.ChangePercentage > 0 || ev.Text.LinesChanged() > 0 || ev.Text.Modified > 0
	}
	return true
}
