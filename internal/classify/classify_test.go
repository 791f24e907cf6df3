package classify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/diff"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/llm"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

func pricingInput() Input {
	return Input{
		Evidence: &diff.Evidence{
			AssetType:        store.AssetPricing,
			Before:           "Plan A: $10/mo, 5 seats",
			After:            "Plan A: $15/mo, 5 seats",
			ChangePercentage: 4.35,
			Text:             diff.TextDiff{Modified: 1},
			Structured: &diff.PricingDiff{TierChanges: []diff.TierChange{
				{Tier: "Plan A", PriceBefore: "$10/mo", PriceAfter: "$15/mo"},
			}},
		},
		AssetType: store.AssetPricing,
		URL:       "https://acme.example/pricing",
		Priors:    Priors{Category: store.CategoryPricing},
	}
}

func llmResponse(t *testing.T, v map[string]any) llm.MockResponse {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return llm.MockResponse{Content: b}
}

func TestClassify_TrustsConfidentLLM(t *testing.T) {
	mock := llm.NewMockProvider(llmResponse(t, map[string]any{
		"priority":       "medium",
		"change_type":    "pricing",
		"summary":        "Plan A rose from $10/mo → $15/mo.",
		"why_it_matters": "Entry pricing is now 50% higher than ours.",
		"confidence":     0.9,
	}))
	c := New(mock, DefaultConfig())

	res := c.Classify(context.Background(), pricingInput())
	assert.Equal(t, SourceLLM, res.Source)
	assert.Equal(t, store.PriorityMedium, res.Priority)
	assert.Equal(t, store.CategoryPricing, res.Category)
	assert.Equal(t, 0.9, res.Confidence)

	call, ok := mock.LastCall()
	require.True(t, ok)
	assert.Equal(t, ClassificationSchema, call.Schema)
	msg := call.Messages[0].Content
	assert.Contains(t, msg, `"price_before": "$10/mo"`)
	assert.Contains(t, msg, "Content change: 4.35%")
	assert.Contains(t, msg, "Change type (preliminary): pricing")
	assert.NotContains(t, msg, "Summary (preliminary)")
}

func TestClassify_LowConfidenceUsesKeywords(t *testing.T) {
	mock := llm.NewMockProvider(llmResponse(t, map[string]any{
		"priority":       "low",
		"change_type":    "content",
		"summary":        "A new integration with Salesforce was announced.",
		"why_it_matters": "Closes a gap with our connector catalog.",
		"confidence":     0.5,
	}))
	c := New(mock, DefaultConfig())

	res := c.Classify(context.Background(), pricingInput())
	assert.Equal(t, store.PriorityHigh, res.Priority, "integration keyword should win")
}

func TestClassify_ConfigurableThreshold(t *testing.T) {
	mock := llm.NewMockProvider(llmResponse(t, map[string]any{
		"priority":       "low",
		"change_type":    "content",
		"summary":        "A new integration with Salesforce was announced.",
		"why_it_matters": "Closes a gap with our connector catalog.",
		"confidence":     0.5,
	}))
	cfg := DefaultConfig()
	cfg.ConfidenceThreshold = 0.4
	c := New(mock, cfg)

	res := c.Classify(context.Background(), pricingInput())
	assert.Equal(t, store.PriorityLow, res.Priority)
}

func TestClassify_FallbackOnProviderError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}})
	c := New(mock, DefaultConfig())

	res := c.Classify(context.Background(), pricingInput())
	assert.Equal(t, SourceRules, res.Source)
	assert.Equal(t, store.PriorityHigh, res.Priority)
	assert.Equal(t, store.CategoryPricing, res.Category)
	assert.Equal(t, 0.6, res.Confidence)
	assert.Equal(t, "Change detected on pricing page (4.35% change)", res.Summary)
	assert.Equal(t, "Monitor pricing changes for competitive intelligence", res.Rationale)
}

func TestClassify_FallbackKeepsPriors(t *testing.T) {
	in := pricingInput()
	in.Priors.Summary = "Plan A went up."
	in.Priors.Rationale = "Entry price is above ours now."

	res := New(nil, DefaultConfig()).Classify(context.Background(), in)
	assert.Equal(t, "Plan A went up.", res.Summary)
	assert.Equal(t, "Entry price is above ours now.", res.Rationale)
}

func TestClassify_FallbackOnMalformedResponse(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`"just text"`)})
	res := New(mock, DefaultConfig()).Classify(context.Background(), pricingInput())
	assert.Equal(t, SourceRules, res.Source)
}

func TestClassify_NormalizesOutput(t *testing.T) {
	mock := llm.NewMockProvider(llmResponse(t, map[string]any{
		"priority":       "URGENT",
		"change_type":    "Features",
		"summary":        "One. Two. Three. Four. Five",
		"why_it_matters": "Feature parity shifted toward them.",
		"confidence":     1.7,
	}))
	res := New(mock, DefaultConfig()).Classify(context.Background(), pricingInput())

	assert.Equal(t, store.PriorityMedium, res.Priority)
	assert.Equal(t, store.CategoryFeature, res.Category)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "One. Two. Three.", res.Summary)
}

func TestRulePriority(t *testing.T) {
	tests := []struct {
		name     string
		category store.Category
		sig      diff.Signals
		want     store.Priority
	}{
		{"pricing", store.CategoryPricing, diff.Signals{}, store.PriorityHigh},
		{"compliance", store.CategoryCompliance, diff.Signals{}, store.PriorityHigh},
		{"tier evidence", store.CategoryOther, diff.Signals{TierChanges: true}, store.PriorityHigh},
		{"certification evidence", store.CategoryContent, diff.Signals{NewCertifications: true}, store.PriorityHigh},
		{"features added", store.CategoryFeature, diff.Signals{FeaturesAdded: true}, store.PriorityHigh},
		{"feature without additions", store.CategoryFeature, diff.Signals{}, store.PriorityMedium},
		{"changelog", store.CategoryChangelog, diff.Signals{}, store.PriorityMedium},
		{"blog", store.CategoryBlog, diff.Signals{}, store.PriorityLow},
		{"content", store.CategoryContent, diff.Signals{}, store.PriorityLow},
		{"sitemap", store.CategorySitemap, diff.Signals{}, store.PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rulePriority(tt.category, tt.sig))
		})
	}
}

func TestKeywordAssigner(t *testing.T) {
	k := DefaultKeywordAssigner()
	tests := []struct {
		name      string
		category  store.Category
		summary   string
		rationale string
		want      store.Priority
	}{
		{"high keyword", store.CategoryOther, "New Enterprise plan", "", store.PriorityHigh},
		{"high blocked by low", store.CategoryOther, "Blog post about our pricing update", "", store.PriorityMedium},
		{"high blocked by low, no medium", store.CategoryOther, "Landing copy mentions pricing", "", store.PriorityLow},
		{"medium", store.CategoryOther, "Customer case study added", "", store.PriorityMedium},
		{"low", store.CategoryOther, "Testimonials refreshed", "", store.PriorityLow},
		{"category default compliance", store.CategoryCompliance, "", "", store.PriorityHigh},
		{"category default changelog", store.CategoryChangelog, "", "", store.PriorityMedium},
		{"category default other", store.CategoryOther, "Footer tweak", "", store.PriorityLow},
		{"case insensitive", store.CategoryOther, "GDPR addendum", "", store.PriorityHigh},
		{"social is not soc 2", store.CategoryOther, "A social post went out", "", store.PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, k.Assign(tt.category, tt.summary, tt.rationale))
		})
	}
}

func TestTruncateSentences(t *testing.T) {
	assert.Equal(t, "A. B. C.", TruncateSentences("A. B. C. D. E.", 3))
	assert.Equal(t, "A. B. C.", TruncateSentences("A. B. C. D", 3))
	assert.Equal(t, "A. B. C", TruncateSentences("A. B. C", 3))
	assert.Equal(t, "", TruncateSentences("", 3))

	// Any output over the limit is reduced to exactly the limit.
	for n := 4; n < 10; n++ {
		s := strings.TrimSuffix(strings.Repeat("Sentence. ", n), " ")
		got := TruncateSentences(s, MaxSummarySentences)
		assert.Equal(t, MaxSummarySentences, sentenceCount(got))
		assert.True(t, strings.HasSuffix(got, "."))
	}
}
