package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/diff"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/llm"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// ClassificationSchema is the JSON schema of the classification response.
var ClassificationSchema = &llm.Schema{
	Name:        "change-classification",
	Description: "Priority tier and refined description of a competitor change",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"priority": map[string]any{
				"type": "string",
				"enum": []any{"high", "medium", "low"},
			},
			"change_type": map[string]any{
				"type": "string",
				"enum": []any{"pricing", "feature", "compliance", "changelog", "sitemap", "blog", "content", "other"},
			},
			"summary": map[string]any{
				"type":        "string",
				"description": "Refined summary, at most 3 sentences, Before → After form",
			},
			"why_it_matters": map[string]any{
				"type":        "string",
				"description": "Specific, non-speculative explanation of why this matters",
			},
			"confidence": map[string]any{
				"type":        "number",
				"description": "Confidence in the classification, 0.0 to 1.0",
			},
		},
		"required":             []any{"priority", "change_type", "summary", "why_it_matters", "confidence"},
		"additionalProperties": false,
	},
}

// classificationOutput is the raw LLM response.
type classificationOutput struct {
	Priority     string   `json:"priority"`
	ChangeType   string   `json:"change_type"`
	Summary      string   `json:"summary"`
	WhyItMatters string   `json:"why_it_matters"`
	Confidence   *float64 `json:"confidence"`
}

func (c *Classifier) classifyLLM(ctx context.Context, in Input) (Result, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeClassify)

	userMsg, err := buildClassificationMessage(in)
	if err != nil {
		return Result{}, fmt.Errorf("build classification prompt: %w", err)
	}

	resp, err := c.provider.Generate(ctx, llm.Request{
		System: classificationSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      ClassificationSchema,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("LLM classification failed: %w", err)
	}

	var raw classificationOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return Result{}, fmt.Errorf("failed to parse classification response: %w", err)
	}

	res := Result{
		Priority:   store.Priority(strings.ToLower(raw.Priority)),
		Category:   store.ParseCategory(strings.ToLower(raw.ChangeType)),
		Summary:    raw.Summary,
		Rationale:  raw.WhyItMatters,
		Confidence: 0.5,
		Source:     SourceLLM,
	}
	if raw.Confidence != nil {
		res.Confidence = *raw.Confidence
	}
	if raw.ChangeType == "" && in.Priors.Category != "" {
		res.Category = in.Priors.Category
	}
	return res, nil
}

const classificationSystemPrompt = `You are a competitive intelligence analyst classifying changes to competitor websites.

Priority rules:
- HIGH: pricing changes, free tier introduction or removal, major feature launches, security or compliance certifications, major integrations.
- MEDIUM: changelog updates, press releases, new case studies, new customer logos.
- LOW: homepage or landing page copy changes, general industry blog posts, testimonials.

Instructions:
- Assign a priority using the rules above.
- Confirm or refine the change type.
- Keep the summary to at most 3 sentences in "Before → After" form.
- Make "why it matters" specific, non-speculative and actionable.
- Give a confidence score between 0.0 and 1.0 for your classification.`

type promptData struct {
	Input
	Structured string
	Text       *diff.TextDiff
	Pct        string
}

var classificationUserTemplate = template.Must(template.New("classification").Parse(`Asset type: {{.AssetType}}
URL: {{.URL}}

Change details:
{{if .Structured}}Structured changes: {{.Structured}}
{{end}}{{with .Text}}Text changes: {{.Added}} lines added, {{.Removed}} lines removed, {{.Modified}} lines modified
{{end}}Content change: {{.Pct}}%
{{with .Priors.Category}}Change type (preliminary): {{.}}
{{end}}{{with .Priors.Summary}}Summary (preliminary): {{.}}
{{end}}{{with .Priors.Rationale}}Why it matters (preliminary): {{.}}
{{end}}`))

func buildClassificationMessage(in Input) (string, error) {
	data := promptData{Input: in, Pct: "0"}
	if ev := in.Evidence; ev != nil {
		data.Text = &ev.Text
		data.Pct = formatPct(ev.ChangePercentage)
		if ev.Structured != nil {
			b, err := json.MarshalIndent(ev.Structured, "", "  ")
			if err != nil {
				return "", fmt.Errorf("encode structured diff: %w", err)
			}
			data.Structured = string(b)
		}
	}

	var buf bytes.Buffer
	if err := classificationUserTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
