package semantic

import (
	"strings"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/diff"
)

// NoiseFilter drops significant-by-threshold changes that semantic review
// judged not worth surfacing. The percentages are empirical defaults.
type NoiseFilter struct {
	// LowSignificancePct: a "low" significance change below this change
	// percentage is noise. Default: 2.0.
	LowSignificancePct float64

	// OtherCategoryPct: an "other" category change below this change
	// percentage is noise. Default: 1.0.
	OtherCategoryPct float64
}

// DefaultNoiseFilter returns the filter with its default thresholds.
func DefaultNoiseFilter() NoiseFilter {
	return NoiseFilter{LowSignificancePct: 2.0, OtherCategoryPct: 1.0}
}

// IsNoise reports whether the change described by ev and res is noise.
// A degraded result is never noise.
func (f NoiseFilter) IsNoise(ev *diff.Evidence, res Result) bool {
	if ev == nil || res.Degraded() {
		return false
	}
	pct := ev.ChangePercentage
	if strings.EqualFold(res.Significance, SignificanceLow) && pct < f.LowSignificancePct {
		return true
	}
	return strings.EqualFold(res.ChangeType, "other") && pct < f.OtherCategoryPct
}
