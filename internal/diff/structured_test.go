package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

func TestComparePricing(t *testing.T) {
	before := bag(t, `{
		"has_free_tier": true,
		"tiers": [
			{"name": "Starter", "price": 0, "features": ["1 project"]},
			{"name": "Team", "price": "$20", "features": ["SSO", "Audit log"]},
			{"name": "Legacy", "price": "$5"}
		]}`)
	after := bag(t, `{
		"has_free_tier": false,
		"tiers": [
			{"name": "Starter", "price": 0, "features": ["1 project"]},
			{"name": "Team", "price": "$20", "features": ["SSO", "SCIM"]},
			{"name": "Enterprise", "price": "Contact us"}
		]}`)

	s, err := CompareStructured(store.AssetPricing, before, after)
	require.NoError(t, err)
	d := s.(*PricingDiff)

	require.Len(t, d.NewTiers, 1)
	assert.Equal(t, "Enterprise", d.NewTiers[0]["name"])
	require.Len(t, d.RemovedTiers, 1)
	assert.Equal(t, "Legacy", d.RemovedTiers[0]["name"])

	require.Len(t, d.TierChanges, 1)
	tc := d.TierChanges[0]
	assert.Equal(t, "Team", tc.Tier)
	assert.Empty(t, tc.PriceBefore)
	assert.Equal(t, []string{"SCIM"}, tc.FeaturesAdded)
	assert.Equal(t, []string{"Audit log"}, tc.FeaturesRemoved)

	assert.True(t, d.FreeTierChanged)
	require.NotNil(t, d.FreeTierBefore)
	assert.True(t, *d.FreeTierBefore)
	assert.False(t, *d.FreeTierAfter)

	sig := SignalsOf(d)
	assert.True(t, sig.TierChanges)
	assert.True(t, sig.FeaturesAdded)
}

func TestComparePricing_NumericPriceChange(t *testing.T) {
	s, err := CompareStructured(store.AssetPricing,
		bag(t, `{"tiers":[{"name":"Pro","price":9.5}]}`),
		bag(t, `{"tiers":[{"name":"Pro","price":12}]}`))
	require.NoError(t, err)
	tc := s.(*PricingDiff).TierChanges[0]
	assert.Equal(t, "9.5", tc.PriceBefore)
	assert.Equal(t, "12", tc.PriceAfter)
}

func TestComparators_NoDifferenceIsNil(t *testing.T) {
	tests := []struct {
		assetType store.AssetType
		bag       string
	}{
		{store.AssetPricing, `{"has_free_tier":true,"tiers":[{"name":"A","price":"$1","features":["x","y"]}]}`},
		{store.AssetFeatures, `{"features":["a","b"]}`},
		{store.AssetChangelog, `{"entries":[{"date":"2024-01-01","content":"v1"}]}`},
		{store.AssetSitemap, `{"urls":["/a","/b"]}`},
		{store.AssetBlog, `{"posts":[{"url":"/p/1","title":"Hello"}]}`},
		{store.AssetCompliance, `{"certifications":["SOC 2"],"standards":["ISO 27001"]}`},
		{store.AssetSocial, `{"posts":[{"id":"1"}]}`},
		{store.AssetNews, `{"articles":[{"url":"https://n/1"}]}`},
	}
	for _, tt := range tests {
		t.Run(string(tt.assetType), func(t *testing.T) {
			s, err := CompareStructured(tt.assetType, bag(t, tt.bag), bag(t, tt.bag))
			require.NoError(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestComparePricing_FeatureOrderIgnored(t *testing.T) {
	s, err := CompareStructured(store.AssetPricing,
		bag(t, `{"tiers":[{"name":"A","features":["x","y"]}]}`),
		bag(t, `{"tiers":[{"name":"A","features":["y","x"]}]}`))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestCompareFeatures(t *testing.T) {
	s, err := CompareStructured(store.AssetFeatures,
		bag(t, `{"features":["SSO","API"]}`),
		bag(t, `{"features":["API","Webhooks","SCIM"]}`))
	require.NoError(t, err)
	d := s.(*FeaturesDiff)
	assert.Equal(t, []string{"Webhooks", "SCIM"}, d.FeaturesAdded)
	assert.Equal(t, []string{"SSO"}, d.FeaturesRemoved)
	assert.True(t, SignalsOf(d).FeaturesAdded)
}

func TestCompareChangelog_CompositeKey(t *testing.T) {
	s, err := CompareStructured(store.AssetChangelog,
		bag(t, `{"entries":[{"date":"2024-01-01","content":"v1"}]}`),
		bag(t, `{"entries":[
			{"date":"2024-01-01","content":"v1"},
			{"date":"2024-01-01","content":"v1.1"},
			{"date":"2024-02-01","content":"v1"}
		]}`))
	require.NoError(t, err)
	d := s.(*ChangelogDiff)
	require.Len(t, d.NewEntries, 2)
	assert.Equal(t, "v1.1", d.NewEntries[0]["content"])
	assert.Equal(t, "2024-02-01", d.NewEntries[1]["date"])
}

func TestCompareSitemap(t *testing.T) {
	s, err := CompareStructured(store.AssetSitemap,
		bag(t, `{"urls":["/a","/b"]}`),
		bag(t, `{"urls":["/b","/c"]}`))
	require.NoError(t, err)
	d := s.(*SitemapDiff)
	assert.Equal(t, []string{"/c"}, d.NewURLs)
	assert.Equal(t, []string{"/a"}, d.RemovedURLs)
}

func TestCompareBlog_RemovalOnlyIsNil(t *testing.T) {
	s, err := CompareStructured(store.AssetBlog,
		bag(t, `{"posts":[{"url":"/1"},{"url":"/2"}]}`),
		bag(t, `{"posts":[{"url":"/1"}]}`))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestCompareCompliance(t *testing.T) {
	s, err := CompareStructured(store.AssetCompliance,
		bag(t, `{"certifications":["SOC 2"]}`),
		bag(t, `{"certifications":["SOC 2","ISO 27001"],"standards":["GDPR"]}`))
	require.NoError(t, err)
	d := s.(*ComplianceDiff)
	assert.Equal(t, []string{"ISO 27001"}, d.NewCertifications)
	assert.Equal(t, []string{"GDPR"}, d.NewStandards)
	assert.True(t, SignalsOf(d).NewCertifications)
}

func TestCompareSocial_IDThenURL(t *testing.T) {
	s, err := CompareStructured(store.AssetSocial,
		bag(t, `{"posts":[{"id":"1"},{"url":"https://x/s/2"}]}`),
		bag(t, `{"posts":[{"id":"1"},{"url":"https://x/s/2"},{"id":"3"},{"url":"https://x/s/4"},{"text":"no key"}]}`))
	require.NoError(t, err)
	d := s.(*SocialDiff)
	require.Len(t, d.NewPosts, 2)
	assert.Equal(t, "3", d.NewPosts[0]["id"])
	assert.Equal(t, "https://x/s/4", d.NewPosts[1]["url"])
}

func TestCompareSocial_LegacyTweetsKey(t *testing.T) {
	s, err := CompareStructured(store.AssetSocial,
		bag(t, `{"tweets":[{"id":"1"}]}`),
		bag(t, `{"tweets":[{"id":"1"},{"id":"2"}]}`))
	require.NoError(t, err)
	require.Len(t, s.(*SocialDiff).NewPosts, 1)
}

func TestCompareNews(t *testing.T) {
	s, err := CompareStructured(store.AssetNews,
		bag(t, `{"articles":[{"url":"https://n/1"}]}`),
		bag(t, `{"articles":[{"url":"https://n/1"},{"id":"wire-7"}]}`))
	require.NoError(t, err)
	d := s.(*NewsDiff)
	require.Len(t, d.NewArticles, 1)
	assert.Equal(t, "wire-7", d.NewArticles[0]["id"])
}

func TestCompareStructured_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		assetType store.AssetType
		bag       string
	}{
		{"tiers not list", store.AssetPricing, `{"tiers":{"name":"A"}}`},
		{"tier not object", store.AssetPricing, `{"tiers":["A"]}`},
		{"free tier not bool", store.AssetPricing, `{"has_free_tier":"yes"}`},
		{"feature not string", store.AssetFeatures, `{"features":[{"name":"SSO"}]}`},
		{"urls not list", store.AssetSitemap, `{"urls":"/a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompareStructured(tt.assetType, bag(t, `{}`), bag(t, tt.bag))
			assert.ErrorIs(t, err, ErrMalformedBag)
		})
	}
}

func TestCategoryOf(t *testing.T) {
	c, ok := CategoryOf(&PricingDiff{})
	assert.True(t, ok)
	assert.Equal(t, store.CategoryPricing, c)

	c, ok = CategoryOf(&FeaturesDiff{})
	assert.True(t, ok)
	assert.Equal(t, store.CategoryFeature, c)

	_, ok = CategoryOf(&NewsDiff{})
	assert.False(t, ok)
	_, ok = CategoryOf(nil)
	assert.False(t, ok)
}

func TestMetadata_RoundTripsStructured(t *testing.T) {
	ev := &Evidence{Structured: &SitemapDiff{NewURLs: []string{"/new"}}}
	raw, err := Metadata(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"sitemap","data":{"new_urls":["/new"]}}`, string(raw))

	s, td, err := DecodeMetadata(raw)
	require.NoError(t, err)
	assert.Nil(t, td)
	assert.Equal(t, ev.Structured, s)
}

func TestMetadata_TextFallback(t *testing.T) {
	ev := &Evidence{Text: TextDiff{Added: 2, AddedLines: []string{"a", "b"}, LinesAfter: 2}}
	raw, err := Metadata(ev)
	require.NoError(t, err)

	s, td, err := DecodeMetadata(raw)
	require.NoError(t, err)
	assert.Nil(t, s)
	require.NotNil(t, td)
	assert.Equal(t, ev.Text, *td)
}

func TestDecodeMetadata_Errors(t *testing.T) {
	s, td, err := DecodeMetadata(nil)
	assert.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, td)

	_, _, err = DecodeMetadata([]byte(`{"kind":"mystery","data":{}}`))
	assert.Error(t, err)

	_, _, err = DecodeMetadata([]byte(`not json`))
	assert.Error(t, err)
}

func TestFromChange(t *testing.T) {
	raw, err := Metadata(&Evidence{Structured: &ComplianceDiff{NewCertifications: []string{"HIPAA"}}})
	require.NoError(t, err)

	ev, err := FromChange(store.ChangeDetail{
		Change: store.Change{
			BeforeExcerpt:    "SOC 2",
			AfterExcerpt:     "SOC 2\nHIPAA",
			ChangePercentage: 40,
			DiffMetadata:     raw,
		},
		AssetType: store.AssetCompliance,
	})
	require.NoError(t, err)
	assert.Equal(t, store.AssetCompliance, ev.AssetType)
	assert.True(t, SignalsOf(ev.Structured).NewCertifications)
	assert.Equal(t, 1, ev.Text.Added)
}
