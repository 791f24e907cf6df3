package diff

import "fmt"

// PricingDiff compares pricing bags of the shape
// {"tiers": [{"name", "price", "features": [...]}], "has_free_tier": bool}.
type PricingDiff struct {
	NewTiers        []map[string]any `json:"new_tiers,omitempty"`
	RemovedTiers    []map[string]any `json:"removed_tiers,omitempty"`
	TierChanges     []TierChange     `json:"tier_changes,omitempty"`
	FreeTierChanged bool             `json:"free_tier_changed"`
	FreeTierBefore  *bool            `json:"free_tier_before,omitempty"`
	FreeTierAfter   *bool            `json:"free_tier_after,omitempty"`
}

// TierChange describes one tier present on both sides whose price or
// feature set differs.
type TierChange struct {
	Tier            string   `json:"tier"`
	PriceBefore     string   `json:"price_before,omitempty"`
	PriceAfter      string   `json:"price_after,omitempty"`
	FeaturesAdded   []string `json:"features_added,omitempty"`
	FeaturesRemoved []string `json:"features_removed,omitempty"`
}

func (*PricingDiff) Kind() string { return "pricing" }

type pricingTier struct {
	raw      map[string]any
	name     string
	price    string
	features []string
}

func pricingTiers(bag map[string]any) ([]pricingTier, error) {
	items, err := objectList(bag, "tiers")
	if err != nil {
		return nil, err
	}
	out := make([]pricingTier, 0, len(items))
	for i, it := range items {
		features, err := stringList(it, "features")
		if err != nil {
			return nil, fmt.Errorf("tiers[%d]: %w", i, err)
		}
		out = append(out, pricingTier{raw: it, name: field(it, "name"), price: field(it, "price"), features: features})
	}
	return out, nil
}

func comparePricing(before, after map[string]any) (Structured, error) {
	tb, err := pricingTiers(before)
	if err != nil {
		return nil, err
	}
	ta, err := pricingTiers(after)
	if err != nil {
		return nil, err
	}
	freeBefore, err := optionalBool(before, "has_free_tier")
	if err != nil {
		return nil, err
	}
	freeAfter, err := optionalBool(after, "has_free_tier")
	if err != nil {
		return nil, err
	}

	byName := make(map[string]pricingTier, len(tb))
	for _, t := range tb {
		byName[t.name] = t
	}
	inAfter := make(map[string]bool, len(ta))

	d := &PricingDiff{}
	for _, t := range ta {
		inAfter[t.name] = true
		prev, ok := byName[t.name]
		if !ok {
			d.NewTiers = append(d.NewTiers, t.raw)
			continue
		}
		tc := TierChange{
			Tier:            t.name,
			FeaturesAdded:   added(prev.features, t.features),
			FeaturesRemoved: added(t.features, prev.features),
		}
		if prev.price != t.price {
			tc.PriceBefore, tc.PriceAfter = prev.price, t.price
		}
		if tc.PriceBefore != tc.PriceAfter || len(tc.FeaturesAdded) > 0 || len(tc.FeaturesRemoved) > 0 {
			d.TierChanges = append(d.TierChanges, tc)
		}
	}
	for _, t := range tb {
		if !inAfter[t.name] {
			d.RemovedTiers = append(d.RemovedTiers, t.raw)
		}
	}
	if !sameBool(freeBefore, freeAfter) {
		d.FreeTierChanged = true
		d.FreeTierBefore, d.FreeTierAfter = freeBefore, freeAfter
	}

	if len(d.NewTiers) == 0 && len(d.RemovedTiers) == 0 && len(d.TierChanges) == 0 && !d.FreeTierChanged {
		return nil, nil
	}
	return d, nil
}

func sameBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FeaturesDiff compares {"features": [...]} bags as sets.
type FeaturesDiff struct {
	FeaturesAdded   []string `json:"features_added,omitempty"`
	FeaturesRemoved []string `json:"features_removed,omitempty"`
}

func (*FeaturesDiff) Kind() string { return "features" }

func compareFeatures(before, after map[string]any) (Structured, error) {
	fb, err := stringList(before, "features")
	if err != nil {
		return nil, err
	}
	fa, err := stringList(after, "features")
	if err != nil {
		return nil, err
	}
	d := &FeaturesDiff{FeaturesAdded: added(fb, fa), FeaturesRemoved: added(fa, fb)}
	if len(d.FeaturesAdded) == 0 && len(d.FeaturesRemoved) == 0 {
		return nil, nil
	}
	return d, nil
}

// ChangelogDiff lists {"entries": [{"date", "content"}]} items new in the
// after bag, keyed by (date, content).
type ChangelogDiff struct {
	NewEntries []map[string]any `json:"new_entries"`
}

func (*ChangelogDiff) Kind() string { return "changelog" }

func changelogKey(e map[string]any) string {
	date, content := field(e, "date"), field(e, "content")
	if date == "" && content == "" {
		return ""
	}
	return date + "\x00" + content
}

func compareChangelog(before, after map[string]any) (Structured, error) {
	eb, err := objectList(before, "entries")
	if err != nil {
		return nil, err
	}
	ea, err := objectList(after, "entries")
	if err != nil {
		return nil, err
	}
	if n := newItems(eb, ea, changelogKey); len(n) > 0 {
		return &ChangelogDiff{NewEntries: n}, nil
	}
	return nil, nil
}

// SitemapDiff compares {"urls": [...]} bags as sets.
type SitemapDiff struct {
	NewURLs     []string `json:"new_urls,omitempty"`
	RemovedURLs []string `json:"removed_urls,omitempty"`
}

func (*SitemapDiff) Kind() string { return "sitemap" }

func compareSitemap(before, after map[string]any) (Structured, error) {
	ub, err := stringList(before, "urls")
	if err != nil {
		return nil, err
	}
	ua, err := stringList(after, "urls")
	if err != nil {
		return nil, err
	}
	d := &SitemapDiff{NewURLs: added(ub, ua), RemovedURLs: added(ua, ub)}
	if len(d.NewURLs) == 0 && len(d.RemovedURLs) == 0 {
		return nil, nil
	}
	return d, nil
}

// BlogDiff lists {"posts": [{"url", ...}]} items new in the after bag.
type BlogDiff struct {
	NewPosts []map[string]any `json:"new_posts"`
}

func (*BlogDiff) Kind() string { return "blog" }

func compareBlog(before, after map[string]any) (Structured, error) {
	pb, err := objectList(before, "posts")
	if err != nil {
		return nil, err
	}
	pa, err := objectList(after, "posts")
	if err != nil {
		return nil, err
	}
	if n := newItems(pb, pa, func(p map[string]any) string { return field(p, "url") }); len(n) > 0 {
		return &BlogDiff{NewPosts: n}, nil
	}
	return nil, nil
}

// ComplianceDiff lists certifications and standards new in the after bag.
type ComplianceDiff struct {
	NewCertifications []string `json:"new_certifications,omitempty"`
	NewStandards      []string `json:"new_standards,omitempty"`
}

func (*ComplianceDiff) Kind() string { return "compliance" }

func compareCompliance(before, after map[string]any) (Structured, error) {
	var lists [4][]string
	for i, src := range []struct {
		bag map[string]any
		key string
	}{
		{before, "certifications"}, {after, "certifications"},
		{before, "standards"}, {after, "standards"},
	} {
		l, err := stringList(src.bag, src.key)
		if err != nil {
			return nil, err
		}
		lists[i] = l
	}
	d := &ComplianceDiff{
		NewCertifications: added(lists[0], lists[1]),
		NewStandards:      added(lists[2], lists[3]),
	}
	if len(d.NewCertifications) == 0 && len(d.NewStandards) == 0 {
		return nil, nil
	}
	return d, nil
}

// SocialDiff lists posts new in the after bag, keyed by id or, failing
// that, url. Bags use "posts"; the legacy "tweets" key is also read.
type SocialDiff struct {
	NewPosts []map[string]any `json:"new_posts"`
}

func (*SocialDiff) Kind() string { return "social" }

func socialPosts(bag map[string]any) ([]map[string]any, error) {
	posts, err := objectList(bag, "posts")
	if err != nil || posts != nil {
		return posts, err
	}
	return objectList(bag, "tweets")
}

func compareSocial(before, after map[string]any) (Structured, error) {
	pb, err := socialPosts(before)
	if err != nil {
		return nil, err
	}
	pa, err := socialPosts(after)
	if err != nil {
		return nil, err
	}
	if n := newItems(pb, pa, keyWithFallback("id", "url")); len(n) > 0 {
		return &SocialDiff{NewPosts: n}, nil
	}
	return nil, nil
}

// NewsDiff lists {"articles": [...]} items new in the after bag, keyed by
// url or, failing that, id.
type NewsDiff struct {
	NewArticles []map[string]any `json:"new_articles"`
}

func (*NewsDiff) Kind() string { return "news" }

func compareNews(before, after map[string]any) (Structured, error) {
	ab, err := objectList(before, "articles")
	if err != nil {
		return nil, err
	}
	aa, err := objectList(after, "articles")
	if err != nil {
		return nil, err
	}
	if n := newItems(ab, aa, keyWithFallback("url", "id")); len(n) > 0 {
		return &NewsDiff{NewArticles: n}, nil
	}
	return nil, nil
}

func keyWithFallback(primary, secondary string) func(map[string]any) string {
	return func(it map[string]any) string {
		if k := field(it, primary); k != "" {
			return primary + ":" + k
		}
		if k := field(it, secondary); k != "" {
			return secondary + ":" + k
		}
		return ""
	}
}
