// Package classify assigns a priority tier to a detected change and checks
// that the classification is good enough to alert on.
package classify

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/diff"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/llm"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// Source records which path produced a Result.
type Source string

const (
	SourceLLM   Source = "llm"
	SourceRules Source = "rules"
)

// ruleConfidence is the confidence reported by the rule-based path.
const ruleConfidence = 0.6

// Priors are values already computed for the change, passed to the model
// as hints and used by the rule-based path.
type Priors struct {
	Category  store.Category
	Summary   string
	Rationale string
}

// Input is what the classifier sees of a change.
type Input struct {
	Evidence  *diff.Evidence
	AssetType store.AssetType
	URL       string
	Priors    Priors
}

// Result is a normalized classification.
type Result struct {
	Priority   store.Priority
	Category   store.Category
	Summary    string
	Rationale  string
	Confidence float64
	Source     Source
}

// Classification converts r into its persisted form.
func (r Result) Classification() store.Classification {
	return store.Classification{
		Category:   r.Category,
		Priority:   r.Priority,
		Summary:    r.Summary,
		Rationale:  r.Rationale,
		Confidence: r.Confidence,
	}
}

// Config holds configuration for the classifier.
type Config struct {
	MaxTokens   int
	Temperature float64

	// ConfidenceThreshold is the confidence at which the stated priority
	// is trusted over keyword rules. Default: 0.7.
	ConfidenceThreshold float64

	Keywords KeywordAssigner
	Logger   *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:           1000,
		Temperature:         0.3,
		ConfidenceThreshold: 0.7,
		Keywords:            DefaultKeywordAssigner(),
	}
}

// Classifier assigns priorities using an LLM with a deterministic fallback.
type Classifier struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// New creates a Classifier. A nil provider always takes the rule path.
func New(provider llm.Provider, cfg Config) *Classifier {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Keywords.empty() {
		cfg.Keywords = DefaultKeywordAssigner()
	}
	return &Classifier{provider: provider, cfg: cfg, logger: logger}
}

// Classify produces a normalized classification of the change. It does
// not fail: model errors fall back to rules.
func (c *Classifier) Classify(ctx context.Context, in Input) Result {
	var res Result
	if c.provider != nil {
		r, err := c.classifyLLM(ctx, in)
		if err == nil {
			res = r
		} else {
			c.logger.Warn("classification fell back to rules",
				zap.String("url", in.URL),
				zap.Error(err),
			)
			res = ruleBased(in)
		}
	} else {
		res = ruleBased(in)
	}

	res = normalize(res)
	if res.Confidence < c.cfg.ConfidenceThreshold {
		res.Priority = c.cfg.Keywords.Assign(res.Category, res.Summary, res.Rationale)
	}
	return res
}

// ruleBased is the deterministic classification used when the model is
// unavailable.
func ruleBased(in Input) Result {
	category := in.Priors.Category
	if category == "" {
		category = store.CategoryForAsset(in.AssetType)
	}

	var pct float64
	var sig diff.Signals
	if in.Evidence != nil {
		pct = in.Evidence.ChangePercentage
		sig = diff.SignalsOf(in.Evidence.Structured)
	}

	summary := in.Priors.Summary
	if summary == "" {
		summary = fmt.Sprintf("Change detected on %s page (%s%% change)", in.AssetType, formatPct(pct))
	}
	rationale := in.Priors.Rationale
	if rationale == "" {
		rationale = fmt.Sprintf("Monitor %s changes for competitive intelligence", in.AssetType)
	}

	return Result{
		Priority:   rulePriority(category, sig),
		Category:   category,
		Summary:    summary,
		Rationale:  rationale,
		Confidence: ruleConfidence,
		Source:     SourceRules,
	}
}

func rulePriority(category store.Category, sig diff.Signals) store.Priority {
	switch {
	case category == store.CategoryPricing || category == store.CategoryCompliance:
		return store.PriorityHigh
	case sig.TierChanges || sig.NewCertifications || sig.FeaturesAdded:
		return store.PriorityHigh
	case category == store.CategoryChangelog:
		return store.PriorityMedium
	case category == store.CategoryBlog || category == store.CategoryContent:
		return store.PriorityLow
	default:
		return store.PriorityMedium
	}
}

func formatPct(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64)
}
