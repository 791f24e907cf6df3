package diff

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// ErrMalformedBag is returned when a structured attribute bag does not have
// the shape its asset type expects.
var ErrMalformedBag = errors.New("malformed structured bag")

// Structured is a category-specific diff of two attribute bags. Each asset
// type has its own concrete shape.
type Structured interface {
	// Kind names the shape; it is the envelope tag in stored metadata.
	Kind() string
}

// Comparator diffs two bags. It returns nil when nothing differs, never an
// empty-but-present diff.
type Comparator func(before, after map[string]any) (Structured, error)

var comparators = map[store.AssetType]Comparator{
	store.AssetPricing:    comparePricing,
	store.AssetFeatures:   compareFeatures,
	store.AssetChangelog:  compareChangelog,
	store.AssetSitemap:    compareSitemap,
	store.AssetBlog:       compareBlog,
	store.AssetCompliance: compareCompliance,
	store.AssetSocial:     compareSocial,
	store.AssetNews:       compareNews,
}

// CompareStructured runs the comparator registered for t. Asset types
// without a comparator produce no structured diff.
func CompareStructured(t store.AssetType, before, after map[string]any) (Structured, error) {
	cmp, ok := comparators[t]
	if !ok {
		return nil, nil
	}
	s, err := cmp(before, after)
	if err != nil {
		return nil, fmt.Errorf("%s bag: %w", t, err)
	}
	return s, nil
}

// Signals are the facts about a structured diff that priority rules use.
type Signals struct {
	TierChanges       bool
	NewCertifications bool
	FeaturesAdded     bool
}

// SignalsOf extracts Signals from s. A nil diff has no signals.
func SignalsOf(s Structured) Signals {
	switch d := s.(type) {
	case *PricingDiff:
		sig := Signals{
			TierChanges: len(d.TierChanges) > 0 || len(d.NewTiers) > 0 ||
				len(d.RemovedTiers) > 0 || d.FreeTierChanged,
		}
		for _, tc := range d.TierChanges {
			if len(tc.FeaturesAdded) > 0 {
				sig.FeaturesAdded = true
			}
		}
		return sig
	case *ComplianceDiff:
		return Signals{NewCertifications: len(d.NewCertifications) > 0 || len(d.NewStandards) > 0}
	case *FeaturesDiff:
		return Signals{FeaturesAdded: len(d.FeaturesAdded) > 0}
	}
	return Signals{}
}

// CategoryOf infers the change category a structured diff implies. It
// returns false for shapes that imply none.
func CategoryOf(s Structured) (store.Category, bool) {
	switch s.(type) {
	case *PricingDiff:
		return store.CategoryPricing, true
	case *FeaturesDiff:
		return store.CategoryFeature, true
	case *ComplianceDiff:
		return store.CategoryCompliance, true
	case *ChangelogDiff:
		return store.CategoryChangelog, true
	case *SitemapDiff:
		return store.CategorySitemap, true
	case *BlogDiff:
		return store.CategoryBlog, true
	}
	return "", false
}

// bag helpers. A missing key reads as empty; a present key of the wrong
// shape is ErrMalformedBag.

func stringList(bag map[string]any, key string) ([]string, error) {
	raw, ok := bag[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want list", ErrMalformedBag, key, raw)
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		s, ok := scalar(it)
		if !ok {
			return nil, fmt.Errorf("%w: %q[%d] is %T, want string", ErrMalformedBag, key, i, it)
		}
		out = append(out, s)
	}
	return out, nil
}

func objectList(bag map[string]any, key string) ([]map[string]any, error) {
	raw, ok := bag[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want list", ErrMalformedBag, key, raw)
	}
	out := make([]map[string]any, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q[%d] is %T, want object", ErrMalformedBag, key, i, it)
		}
		out = append(out, m)
	}
	return out, nil
}

func optionalBool(bag map[string]any, key string) (*bool, error) {
	raw, ok := bag[key]
	if !ok || raw == nil {
		return nil, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want bool", ErrMalformedBag, key, raw)
	}
	return &b, nil
}

// scalar renders a JSON scalar as a string. Prices and ids may arrive as
// numbers.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	case nil:
		return "", true
	}
	return "", false
}

func field(item map[string]any, key string) string {
	s, _ := scalar(item[key])
	return s
}

// added returns the elements of after not in before, in after's order.
func added(before, after []string) []string {
	seen := make(map[string]bool, len(before))
	for _, s := range before {
		seen[s] = true
	}
	var out []string
	for _, s := range after {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}

// newItems returns the items of after whose key is absent from before.
// Items with an empty key are ignored.
func newItems(before, after []map[string]any, key func(map[string]any) string) []map[string]any {
	seen := make(map[string]bool, len(before))
	for _, it := range before {
		if k := key(it); k != "" {
			seen[k] = true
		}
	}
	var out []map[string]any
	for _, it := range after {
		k := key(it)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}
