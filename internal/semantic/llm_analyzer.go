package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/llm"
)

const truncationMarker = "... [truncated]"

// Config holds configuration for the LLM analyzer.
type Config struct {
	MaxTokens   int
	Temperature float64

	// MaxChars bounds each side of the comparison sent to the model.
	MaxChars int

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1000,
		Temperature: 0.3,
		MaxChars:    5000,
	}
}

// LLMAnalyzer implements Analyzer over an llm.Provider.
type LLMAnalyzer struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// NewLLMAnalyzer creates an analyzer backed by provider.
func NewLLMAnalyzer(provider llm.Provider, cfg Config) *LLMAnalyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultConfig().MaxChars
	}
	return &LLMAnalyzer{provider: provider, cfg: cfg, logger: logger}
}

// analysisOutput is the raw LLM response.
type analysisOutput struct {
	Summary      string `json:"summary"`
	ChangeType   string `json:"change_type"`
	WhyItMatters string `json:"why_it_matters"`
	Significance string `json:"significance"`
}

// AnalysisSchema is the JSON schema of the analysis response.
var AnalysisSchema = &llm.Schema{
	Name:        "change-analysis",
	Description: "Semantic characterization of a change to a competitor web page",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "What changed, at most 3 sentences, in Before → After form",
			},
			"change_type": map[string]any{
				"type": "string",
				"enum": []any{"pricing", "feature", "compliance", "content", "other"},
			},
			"why_it_matters": map[string]any{
				"type":        "string",
				"description": "Specific, non-speculative reason the change matters for competitive intelligence",
			},
			"significance": map[string]any{
				"type": "string",
				"enum": []any{SignificanceHigh, SignificanceMedium, SignificanceLow},
			},
		},
		"required":             []any{"summary", "change_type", "why_it_matters", "significance"},
		"additionalProperties": false,
	},
}

// Analyze asks the model to characterize the change. Any failure yields
// the degraded result.
func (a *LLMAnalyzer) Analyze(ctx context.Context, req Request) Result {
	res, err := a.analyze(ctx, req)
	if err != nil {
		a.logger.Warn("semantic analysis degraded",
			zap.String("url", req.URL),
			zap.String("asset_type", string(req.AssetType)),
			zap.Error(err),
		)
		return degraded(req.AssetType, err)
	}
	return res
}

func (a *LLMAnalyzer) analyze(ctx context.Context, req Request) (Result, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeSemanticDiff)

	userMsg, err := buildAnalysisMessage(req, a.cfg.MaxChars)
	if err != nil {
		return Result{}, fmt.Errorf("build analysis prompt: %w", err)
	}

	resp, err := a.provider.Generate(ctx, llm.Request{
		System: analysisSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      AnalysisSchema,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("LLM analysis failed: %w", err)
	}

	var raw analysisOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return Result{}, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if raw.Summary == "" {
		return Result{}, fmt.Errorf("analysis response has an empty summary")
	}

	return Result{
		Summary:      raw.Summary,
		ChangeType:   raw.ChangeType,
		Rationale:    raw.WhyItMatters,
		Significance: raw.Significance,
	}, nil
}

// truncate cuts s to n characters and appends the marker.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + truncationMarker
		}
		i++
	}
	return s
}

const analysisSystemPrompt = `You are a competitive intelligence analyst. You compare two versions of a competitor's web page and describe what changed.

Instructions:
- Summarize the change in at most 3 sentences using a "Before → After" framing.
- Pick the change type that best fits: pricing, feature, compliance, content or other.
- Explain why the change matters for competitive intelligence. Be specific and avoid speculation.
- Rate significance as high, medium or low.`

var analysisUserTemplate = template.Must(template.New("analysis").Parse(`You are analyzing changes to a competitor's {{.AssetType}} page.

URL: {{.URL}}
Asset type: {{.AssetType}}

BEFORE (previous version):
{{.Before}}

AFTER (current version):
{{.After}}`))

func buildAnalysisMessage(req Request, maxChars int) (string, error) {
	req.Before = truncate(req.Before, maxChars)
	req.After = truncate(req.After, maxChars)

	var buf bytes.Buffer
	if err := analysisUserTemplate.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}
