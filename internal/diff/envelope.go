package diff

import (
	"encoding/json"
	"fmt"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

const kindText = "text"

// envelope is the stored form of diff metadata: the structured diff when
// present, otherwise the text diff.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

var structuredKinds = map[string]func() Structured{
	"pricing":    func() Structured { return &PricingDiff{} },
	"features":   func() Structured { return &FeaturesDiff{} },
	"changelog":  func() Structured { return &ChangelogDiff{} },
	"sitemap":    func() Structured { return &SitemapDiff{} },
	"blog":       func() Structured { return &BlogDiff{} },
	"compliance": func() Structured { return &ComplianceDiff{} },
	"social":     func() Structured { return &SocialDiff{} },
	"news":       func() Structured { return &NewsDiff{} },
}

// Metadata encodes the evidence's diff for storage on a Change.
func Metadata(ev *Evidence) (json.RawMessage, error) {
	var (
		kind string
		v    any
	)
	if ev.Structured != nil {
		kind, v = ev.Structured.Kind(), ev.Structured
	} else {
		kind, v = kindText, ev.Text
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s diff: %w", kind, err)
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

// DecodeMetadata reverses Metadata. Exactly one of the returned diffs is
// non-nil for well-formed input; empty input yields neither.
func DecodeMetadata(raw json.RawMessage) (Structured, *TextDiff, error) {
	if len(raw) == 0 {
		return nil, nil, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("decode diff envelope: %w", err)
	}
	if env.Kind == kindText {
		var td TextDiff
		if err := json.Unmarshal(env.Data, &td); err != nil {
			return nil, nil, fmt.Errorf("decode text diff: %w", err)
		}
		return nil, &td, nil
	}
	newFn, ok := structuredKinds[env.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown diff kind %q", env.Kind)
	}
	s := newFn()
	if err := json.Unmarshal(env.Data, s); err != nil {
		return nil, nil, fmt.Errorf("decode %s diff: %w", env.Kind, err)
	}
	return s, nil, nil
}

// FromChange rebuilds evidence from a stored change so it can be
// classified again. Texts come from the stored excerpts.
func FromChange(c store.ChangeDetail) (*Evidence, error) {
	s, td, err := DecodeMetadata(c.DiffMetadata)
	if err != nil {
		return nil, err
	}
	ev := &Evidence{
		AssetType:        c.AssetType,
		Before:           c.BeforeExcerpt,
		After:            c.AfterExcerpt,
		ChangePercentage: c.ChangePercentage,
		Structured:       s,
	}
	if td != nil {
		ev.Text = *td
	} else {
		ev.Text = lineDiff(c.BeforeExcerpt, c.AfterExcerpt)
	}
	return ev, nil
}
