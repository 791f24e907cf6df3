package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// Candidate is a classified change as the quality gate sees it.
type Candidate struct {
	Summary    string
	Rationale  string
	Confidence float64
	Before     string
	After      string
}

// CandidateFor combines a stored change with its classification. Empty
// classification fields fall back to the change's own values.
func CandidateFor(ch store.Change, cls store.Classification) Candidate {
	c := Candidate{
		Summary:    cls.Summary,
		Rationale:  cls.Rationale,
		Confidence: cls.Confidence,
		Before:     ch.BeforeExcerpt,
		After:      ch.AfterExcerpt,
	}
	if c.Summary == "" {
		c.Summary = ch.Summary
	}
	if c.Rationale == "" {
		c.Rationale = ch.Rationale
	}
	return c
}

// Validator checks one quality property of a candidate.
// Implementations should be stateless and safe for concurrent use.
type Validator interface {
	// Name returns a short identifier for error messages and logging.
	Name() string

	// Validate returns nil if the candidate passes.
	Validate(c Candidate) *ValidationError
}

// ValidationError describes why a candidate failed the quality gate.
type ValidationError struct {
	Validator string // Name of the validator that failed
	Message   string // Human-readable description of the failure
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// Gate runs validators in order and reports the first failure.
type Gate struct {
	Validators []Validator
}

// DefaultGate returns the gate with the standard validator chain.
func DefaultGate() Gate {
	return Gate{Validators: []Validator{
		SummaryValidator{},
		RationaleValidator{MinLength: 10},
		SpeculationValidator{},
		ConfidenceValidator{Min: 0.3},
		ContentValidator{},
	}}
}

// Check returns nil when c passes every validator.
func (g Gate) Check(c Candidate) *ValidationError {
	for _, v := range g.Validators {
		if err := v.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// SummaryValidator requires a summary of at most MaxSummarySentences.
type SummaryValidator struct{}

func (SummaryValidator) Name() string { return "summary" }

func (v SummaryValidator) Validate(c Candidate) *ValidationError {
	if strings.TrimSpace(c.Summary) == "" {
		return &ValidationError{Validator: v.Name(), Message: "summary is missing"}
	}
	if n := sentenceCount(c.Summary); n > MaxSummarySentences {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("summary has %d sentences (max %d)", n, MaxSummarySentences)}
	}
	return nil
}

// RationaleValidator requires a rationale of at least MinLength characters
// after trimming.
type RationaleValidator struct {
	MinLength int
}

func (RationaleValidator) Name() string { return "rationale" }

func (v RationaleValidator) Validate(c Candidate) *ValidationError {
	if len([]rune(strings.TrimSpace(c.Rationale))) < v.MinLength {
		return &ValidationError{Validator: v.Name(), Message: "why it matters is missing or too short"}
	}
	return nil
}

var (
	speculativeWords = regexp.MustCompile(`\b(might|could|possibly|perhaps|maybe|potentially)\b`)
	allowedHedges    = []string{"could indicate", "might suggest"}
)

// SpeculationValidator rejects rationales with unhedged speculative
// language. "could indicate" and "might suggest" are allowed.
type SpeculationValidator struct{}

func (SpeculationValidator) Name() string { return "speculation" }

func (v SpeculationValidator) Validate(c Candidate) *ValidationError {
	text := strings.ToLower(c.Rationale)
	for _, h := range allowedHedges {
		text = strings.ReplaceAll(text, h, " ")
	}
	if w := speculativeWords.FindString(text); w != "" {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("why it matters contains speculative language (%q)", w)}
	}
	return nil
}

// ConfidenceValidator rejects classifications below Min confidence.
type ConfidenceValidator struct {
	Min float64
}

func (ConfidenceValidator) Name() string { return "confidence" }

func (v ConfidenceValidator) Validate(c Candidate) *ValidationError {
	if c.Confidence < v.Min {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("classification confidence too low: %v", c.Confidence)}
	}
	return nil
}

// ContentValidator requires both before and after text.
type ContentValidator struct{}

func (ContentValidator) Name() string { return "content" }

func (v ContentValidator) Validate(c Candidate) *ValidationError {
	if c.Before == "" || c.After == "" {
		return &ValidationError{Validator: v.Name(), Message: "before/after content is missing"}
	}
	return nil
}
