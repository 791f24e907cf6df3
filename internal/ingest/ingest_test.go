package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

const pricingPage = `<!doctype html>
<html><head><title>Acme Pricing</title><style>.x{color:red}</style></head>
<body>
<nav><a href="/">Home</a><a href="/pricing">Pricing</a></nav>
<main>
  <h1>Simple pricing</h1>
  <div class="pricing">
    <div class="tier">
      <h3>Free</h3><span class="price">$0</span>
      <ul><li>1 seat</li><li>Community support</li></ul>
    </div>
    <div class="tier">
      <h3>Team</h3><span class="price">$15/mo</span>
      <ul><li>5 seats</li><li>SSO</li></ul>
    </div>
  </div>
  <script>track("pricing")</script>
  <p onclick="evil()">Billed <b>annually</b>.</p>
</main>
</body></html>`

func TestExtract_StripsChromeAndKeepsBlocks(t *testing.T) {
	page, err := NewExtractor(false).Extract(pricingPage, "https://acme.test/pricing")
	require.NoError(t, err)

	assert.Equal(t, "Acme Pricing", page.Title)
	lines := strings.Split(page.Text, "\n")
	assert.Equal(t, "Simple pricing", lines[0])
	assert.Contains(t, lines, "Team")
	assert.Contains(t, lines, "$15/mo")
	assert.Contains(t, lines, "5 seats")
	assert.Contains(t, lines, "Billed annually.")
	assert.NotContains(t, page.Text, "Home")
	assert.NotContains(t, page.Text, "track(")
	assert.NotContains(t, page.Text, "color:red")

	assert.Contains(t, page.HTML, "<h1>Simple pricing</h1>")
	assert.NotContains(t, page.HTML, "onclick")
	assert.NotContains(t, page.HTML, "<script")
}

func TestExtract_FallsBackToBody(t *testing.T) {
	page, err := NewExtractor(false).Extract(`<html><body><p>One</p><p>Two</p></body></html>`, "")
	require.NoError(t, err)
	assert.Equal(t, "One\nTwo", page.Text)
}

func TestExtractBag_Pricing(t *testing.T) {
	bag, err := ExtractBag(store.AssetPricing, pricingPage, "https://acme.test/pricing")
	require.NoError(t, err)
	require.NotNil(t, bag)

	assert.Equal(t, true, bag["has_free_tier"])
	tiers, ok := bag["tiers"].([]any)
	require.True(t, ok)
	require.Len(t, tiers, 2)
	team := tiers[1].(map[string]any)
	assert.Equal(t, "Team", team["name"])
	assert.Equal(t, "$15/mo", team["price"])
	assert.Equal(t, []any{"5 seats", "SSO"}, team["features"])
}

func TestExtractBag_PricingTable(t *testing.T) {
	raw := `<table>
<tr><th>Plan</th><th>Price</th><th>Seats</th></tr>
<tr><td>Basic</td><td>$5</td><td>1 seat</td></tr>
<tr><td>Pro</td><td>$20</td><td>10 seats</td></tr>
</table>`
	bag, err := ExtractBag(store.AssetPricing, raw, "")
	require.NoError(t, err)
	tiers := bag["tiers"].([]any)
	require.Len(t, tiers, 2)
	assert.Equal(t, map[string]any{"name": "Pro", "price": "$20", "features": []any{"10 seats"}}, tiers[1])
	assert.Equal(t, false, bag["has_free_tier"])
}

func TestExtractBag_Features(t *testing.T) {
	raw := `<section class="features"><ul>
<li>Single sign-on</li><li>Audit logs</li><li>API</li><li>Audit logs</li>
</ul></section>`
	bag, err := ExtractBag(store.AssetFeatures, raw, "")
	require.NoError(t, err)
	assert.Equal(t, []any{"Single sign-on", "Audit logs"}, bag["features"], "short and repeated items are dropped")
}

func TestExtractBag_Sitemap(t *testing.T) {
	raw := `<?xml version="1.0" encoding="UTF-8"?>
<urlset><url><loc>https://acme.test/</loc></url><url><loc>https://acme.test/pricing</loc></url></urlset>`
	bag, err := ExtractBag(store.AssetSitemap, raw, "")
	require.NoError(t, err)
	assert.Equal(t, []any{"https://acme.test/", "https://acme.test/pricing"}, bag["urls"])
}

func TestExtractBag_Changelog(t *testing.T) {
	raw := `<div class="release"><time datetime="2026-03-01">March 1</time> Audit log export</div>`
	bag, err := ExtractBag(store.AssetChangelog, raw, "")
	require.NoError(t, err)
	entries := bag["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "2026-03-01", entries[0].(map[string]any)["date"])
	assert.Equal(t, "March 1 Audit log export", entries[0].(map[string]any)["content"])
}

func TestExtractBag_Blog(t *testing.T) {
	raw := `<article class="post">
<h2 class="post-title">Launching SSO</h2>
<span class="post-date">2026-03-01</span>
<a class="tag" href="/tags/security">security</a>
<a href="/blog/sso">Read</a>
</article>`
	bag, err := ExtractBag(store.AssetBlog, raw, "https://acme.test/blog")
	require.NoError(t, err)
	posts := bag["posts"].([]any)
	require.Len(t, posts, 1)
	p := posts[0].(map[string]any)
	assert.Equal(t, "Launching SSO", p["title"])
	assert.Equal(t, "2026-03-01", p["date"])
	assert.Equal(t, []any{"security"}, p["tags"])
	assert.Equal(t, "https://acme.test/tags/security", p["url"])
}

func TestExtractBag_Compliance(t *testing.T) {
	raw := `<p>Our processing follows the GDPR standard.</p>
<p>We take the security of customer data very seriously at every level.</p>
<p>We are SOC 2 Type II certified.</p>
<img alt="ISO 27001 badge" src="/iso.png">`
	bag, err := ExtractBag(store.AssetCompliance, raw, "")
	require.NoError(t, err)
	assert.Equal(t, []any{"SOC 2 Type II", "SOC 2", "ISO 27001 badge"}, bag["certifications"])
	assert.Equal(t, []any{"GDPR"}, bag["standards"])
}

func TestExtractBag_NoExtractor(t *testing.T) {
	bag, err := ExtractBag(store.AssetNews, pricingPage, "")
	require.NoError(t, err)
	assert.Nil(t, bag)
}

func openTestStore(t *testing.T) (*store.Store, *store.Asset) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	c, _, err := st.Repo().UpsertCompetitor(ctx, "Acme", "https://acme.test")
	require.NoError(t, err)
	a, _, err := st.Repo().UpsertAsset(ctx, store.Asset{
		CompetitorID:   c.ID,
		Type:           store.AssetPricing,
		URL:            "https://acme.test/pricing",
		CrawlFrequency: "daily",
	})
	require.NoError(t, err)
	return st, a
}

func TestIngest_StoresSnapshot(t *testing.T) {
	st, a := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	res, err := New(st, Config{}).Ingest(ctx, Input{AssetID: a.ID, HTML: pricingPage, CapturedAt: at})
	require.NoError(t, err)
	require.False(t, res.Unchanged)

	snaps, err := st.Repo().LatestSnapshots(ctx, a.ID, 1)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	got := snaps[0]
	assert.Equal(t, res.Snapshot.ID, got.ID)
	assert.Equal(t, Hash(got.Text), got.ContentHash)
	assert.Equal(t, 200, got.StatusCode)
	assert.True(t, got.CapturedAt.Equal(at))
	assert.Len(t, got.Structured["tiers"], 2)
}

func TestIngest_SkipsUnchangedContent(t *testing.T) {
	st, a := openTestStore(t)
	ctx := context.Background()
	ing := New(st, Config{})

	_, err := ing.Ingest(ctx, Input{AssetID: a.ID, Text: "Plan A $10"})
	require.NoError(t, err)
	res, err := ing.Ingest(ctx, Input{AssetID: a.ID, Text: "Plan A $10"})
	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	assert.Nil(t, res.Snapshot)

	res, err = New(st, Config{KeepDuplicates: true}).Ingest(ctx, Input{AssetID: a.ID, Text: "Plan A $10"})
	require.NoError(t, err)
	assert.False(t, res.Unchanged)

	snaps, err := st.Repo().LatestSnapshots(ctx, a.ID, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestIngest_ProducerBagWins(t *testing.T) {
	st, a := openTestStore(t)
	bag := map[string]any{"tiers": []any{}}

	res, err := New(st, Config{}).Ingest(context.Background(), Input{AssetID: a.ID, HTML: pricingPage, Structured: bag})
	require.NoError(t, err)
	assert.Equal(t, bag, res.Snapshot.Structured)
}

func TestIngest_RequiresContent(t *testing.T) {
	st, a := openTestStore(t)
	_, err := New(st, Config{}).Ingest(context.Background(), Input{AssetID: a.ID, Text: "  "})
	assert.Error(t, err)
}

func TestIngest_UnknownAsset(t *testing.T) {
	st, _ := openTestStore(t)
	_, err := New(st, Config{}).Ingest(context.Background(), Input{AssetID: 999, Text: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
