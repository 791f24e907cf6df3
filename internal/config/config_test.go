package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/diff"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/llm"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// clearKeys hides vendor keys present in the developer's environment.
func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearKeys(t)
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, ProviderNone, cfg.LLM.Provider)
	assert.False(t, cfg.LLMEnabled())
	assert.Equal(t, diff.DefaultPolicy(), cfg.Diff)
	assert.Equal(t, 2.0, cfg.Noise.LowSignificancePct)
	assert.Equal(t, 1.0, cfg.Noise.OtherCategoryPct)
	assert.Equal(t, 0.7, cfg.Classify.ConfidenceThreshold)
	assert.Equal(t, time.Hour, cfg.Schedule.DetectInterval)
	assert.Equal(t, 9, cfg.Schedule.DigestHour)
	assert.Equal(t, time.Monday, cfg.Schedule.WeeklyDay)
	assert.Equal(t, 10*time.Second, cfg.SlackTimeout)
	assert.False(t, cfg.UseSlack())
}

func TestLoad_Environment(t *testing.T) {
	clearKeys(t)
	t.Setenv("WATCHDOG_DIFF_THRESHOLD", "7.5")
	t.Setenv("WATCHDOG_DIFF_STRUCTURED_POLICY", "structured-weighted")
	t.Setenv("WATCHDOG_SCHEDULE_WEEKLY_DAY", "fri")
	t.Setenv("WATCHDOG_SCHEDULE_DETECT_INTERVAL", "15m")
	t.Setenv("WATCHDOG_SLACK_WEBHOOK_URL", "https://hooks.slack.test/x")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 7.5, cfg.Diff.Threshold)
	assert.Equal(t, diff.StructuredWeighted, cfg.Diff.Structured)
	assert.Equal(t, time.Friday, cfg.Schedule.WeeklyDay)
	assert.Equal(t, 15*time.Minute, cfg.Schedule.DetectInterval)
	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider, "auto picks the provider with a key")
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.True(t, cfg.UseSlack())
}

func TestLoad_ConfigFile(t *testing.T) {
	clearKeys(t)
	path := filepath.Join(t.TempDir(), "watchdog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: mock
noise:
  low_pct: 3
alert:
  sink: stdout
slack:
  webhook_url: https://hooks.slack.test/x
`), 0o600))

	v := NewViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderMock, cfg.LLM.Provider)
	assert.Equal(t, 3.0, cfg.Noise.LowSignificancePct)
	assert.False(t, cfg.UseSlack(), "an explicit stdout sink ignores the webhook")
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"WATCHDOG_DIFF_THRESHOLD":                 "120",
		"WATCHDOG_DIFF_STRUCTURED_POLICY":         "sometimes",
		"WATCHDOG_CLASSIFY_CONFIDENCE_THRESHOLD":  "1.5",
		"WATCHDOG_SCHEDULE_DIGEST_HOUR":           "25",
		"WATCHDOG_SCHEDULE_WEEKLY_DAY":            "someday",
		"WATCHDOG_SCHEDULE_TIMEZONE":              "Mars/Olympus",
		"WATCHDOG_ALERT_SINK":                     "pager",
		"WATCHDOG_LLM_PROVIDER":                   "anthropic",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearKeys(t)
			t.Setenv(key, value)
			_, err := Load(NewViper())
			assert.Error(t, err)
		})
	}
}

func TestLoad_SlackSinkNeedsWebhook(t *testing.T) {
	clearKeys(t)
	t.Setenv("WATCHDOG_ALERT_SINK", "slack")
	_, err := Load(NewViper())
	assert.ErrorContains(t, err, "slack.webhook_url")
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{"Monday": time.Monday, "sun": time.Sunday, " SAT ": time.Saturday} {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}

const competitorsYAML = `
competitors:
  - name: Acme
    base_url: https://acme.test
    assets:
      - type: pricing
        url: https://acme.test/pricing
        crawl_frequency: daily
        priority_threshold: medium
      - type: twitter
        url: https://x.test/acme
        crawl_frequency: weekly
  - name: Globex
    base_url: https://globex.test
    assets:
      - type: changelog
        url: https://globex.test/changelog
        crawl_frequency: daily
`

func TestParseCompetitors(t *testing.T) {
	cf, err := ParseCompetitors(strings.NewReader(competitorsYAML))
	require.NoError(t, err)
	require.Len(t, cf.Competitors, 2)
	assert.Equal(t, "medium", cf.Competitors[0].Assets[0].PriorityThreshold)
	assert.Equal(t, "twitter", cf.Competitors[0].Assets[1].Type)
}

func TestParseCompetitors_ReportsEveryProblem(t *testing.T) {
	_, err := ParseCompetitors(strings.NewReader(`
competitors:
  - name: Acme
    base_url: acme.test
    assets:
      - type: podcast
        url: https://acme.test/p
        crawl_frequency: hourly
        priority_threshold: urgent
  - name: acme
    base_url: https://acme.test
    assets: []
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "base_url")
	assert.Contains(t, msg, `invalid type "podcast"`)
	assert.Contains(t, msg, `invalid crawl_frequency "hourly"`)
	assert.Contains(t, msg, `invalid priority_threshold "urgent"`)
	assert.Contains(t, msg, `duplicate competitor "acme"`)
}

func TestParseCompetitors_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"no list":     "competitors: []\n",
		"unknown key": "competitors:\n  - name: A\n    base_url: https://a.test\n    homepage: x\n",
		"bad yaml":    "competitors: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCompetitors(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadCompetitors_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "competitors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(competitorsYAML), 0o600))
	cf, err := LoadCompetitors(path)
	require.NoError(t, err)
	assert.Len(t, cf.Competitors, 2)

	_, err = LoadCompetitors(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSync(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	cf, err := ParseCompetitors(strings.NewReader(competitorsYAML))
	require.NoError(t, err)

	rep, err := Sync(ctx, st, cf)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{CompetitorsCreated: 2, AssetsCreated: 3}, rep)

	assets, err := st.Repo().ListAssets(ctx, true)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, store.PriorityMedium, assets[0].PriorityThreshold)
	assert.Equal(t, store.AssetSocial, assets[1].Type)

	// Dropping an asset deactivates it; the rest are updated in place.
	cf.Competitors[0].Assets = cf.Competitors[0].Assets[:1]
	cf.Competitors[0].Assets[0].PriorityThreshold = "high"
	rep, err = Sync(ctx, st, cf)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{AssetsUpdated: 2, AssetsDeactivated: 1}, rep)

	assets, err = st.Repo().ListAssets(ctx, true)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, store.PriorityHigh, assets[0].PriorityThreshold)

	all, err := st.Repo().ListAssets(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
