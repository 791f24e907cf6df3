// Package config loads runtime settings from flags, environment and an
// optional config file, and the competitor list from competitors.yaml.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/classify"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/diff"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/llm"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/schedule"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/semantic"
)

const envPrefix = "WATCHDOG"

// Provider selectors on top of the llm package's provider names.
const (
	// ProviderNone disables model calls; every stage takes its fallback path.
	ProviderNone = "none"

	// ProviderAuto picks the first provider with an API key, or none.
	ProviderAuto = "auto"
)

// Alert sink selection.
const (
	SinkAuto   = "auto"
	SinkSlack  = "slack"
	SinkStdout = "stdout"
)

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	DatabasePath    string
	LogLevel        string
	LogFormat       string
	CompetitorsFile string

	LLM      llm.Config
	Semantic semantic.Config
	Classify classify.Config
	Diff     diff.Policy
	Noise    semantic.NoiseFilter
	Schedule schedule.Config

	AlertSink    string
	SlackWebhook string
	SlackTimeout time.Duration

	// Readability makes ingest locate main content with the readability
	// algorithm.
	Readability bool
}

// LLMEnabled reports whether a model provider is configured.
func (c AppConfig) LLMEnabled() bool {
	return c.LLM.Provider != ProviderNone
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on v.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	llmDef := llm.DefaultConfig()
	semDef := semantic.DefaultConfig()
	clsDef := classify.DefaultConfig()
	diffDef := diff.DefaultPolicy()
	noiseDef := semantic.DefaultNoiseFilter()
	schedDef := schedule.DefaultConfig()

	v.SetDefault("database.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("competitors.file", "competitors.yaml")

	v.SetDefault("llm.provider", ProviderAuto)
	v.SetDefault("llm.timeout", llmDef.Timeout)
	v.SetDefault("llm.anthropic.model", llmDef.Anthropic.Model)
	v.SetDefault("llm.openai.model", llmDef.OpenAI.Model)
	v.SetDefault("llm.gemini.model", llmDef.Gemini.Model)
	v.SetDefault("llm.openrouter.model", llmDef.OpenRouter.Model)
	v.SetDefault("llm.retry.max_attempts", llmDef.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", llmDef.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", llmDef.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", llmDef.Retry.Multiplier)
	v.SetDefault("llm.max_tokens", semDef.MaxTokens)
	v.SetDefault("llm.max_chars", semDef.MaxChars)

	v.SetDefault("alert.sink", SinkAuto)
	v.SetDefault("slack.webhook_url", "")
	v.SetDefault("slack.timeout", 10*time.Second)

	v.SetDefault("diff.threshold", diffDef.Threshold)
	v.SetDefault("diff.line_threshold", diffDef.LineThreshold)
	v.SetDefault("diff.structured_policy", string(diffDef.Structured))
	v.SetDefault("noise.low_pct", noiseDef.LowSignificancePct)
	v.SetDefault("noise.other_pct", noiseDef.OtherCategoryPct)
	v.SetDefault("classify.confidence_threshold", clsDef.ConfidenceThreshold)

	v.SetDefault("schedule.detect_interval", schedDef.DetectInterval)
	v.SetDefault("schedule.digest_hour", schedDef.DigestHour)
	v.SetDefault("schedule.weekly_day", strings.ToLower(schedDef.WeeklyDay.String()))
	v.SetDefault("schedule.timezone", "UTC")

	v.SetDefault("ingest.readability", false)
}

// Load resolves the runtime configuration from v.
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabasePath:    v.GetString("database.path"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
		CompetitorsFile: v.GetString("competitors.file"),
		AlertSink:       strings.ToLower(v.GetString("alert.sink")),
		SlackWebhook:    v.GetString("slack.webhook_url"),
		SlackTimeout:    v.GetDuration("slack.timeout"),
		Readability:     v.GetBool("ingest.readability"),
	}

	cfg.LLM = llm.DefaultConfig()
	cfg.LLM.Provider = strings.ToLower(v.GetString("llm.provider"))
	cfg.LLM.Timeout = v.GetDuration("llm.timeout")
	cfg.LLM.Anthropic.APIKey = v.GetString("llm.anthropic.api_key")
	cfg.LLM.Anthropic.Model = v.GetString("llm.anthropic.model")
	cfg.LLM.OpenAI.APIKey = v.GetString("llm.openai.api_key")
	cfg.LLM.OpenAI.Model = v.GetString("llm.openai.model")
	cfg.LLM.OpenAI.BaseURL = v.GetString("llm.openai.base_url")
	cfg.LLM.Gemini.APIKey = v.GetString("llm.gemini.api_key")
	cfg.LLM.Gemini.Model = v.GetString("llm.gemini.model")
	cfg.LLM.OpenRouter.APIKey = v.GetString("llm.openrouter.api_key")
	cfg.LLM.OpenRouter.Model = v.GetString("llm.openrouter.model")
	cfg.LLM.OpenRouter.BaseURL = v.GetString("llm.openrouter.base_url")
	cfg.LLM.Retry = llm.RetryConfig{
		MaxAttempts: v.GetInt("llm.retry.max_attempts"),
		InitialWait: v.GetDuration("llm.retry.initial_wait"),
		MaxWait:     v.GetDuration("llm.retry.max_wait"),
		Multiplier:  v.GetFloat64("llm.retry.multiplier"),
	}
	cfg.LLM = cfg.LLM.WithStandardKeys()
	if cfg.LLM.Provider == ProviderAuto {
		cfg.LLM.Provider = autoProvider(cfg.LLM)
	}

	cfg.Semantic = semantic.DefaultConfig()
	cfg.Semantic.MaxTokens = v.GetInt("llm.max_tokens")
	cfg.Semantic.MaxChars = v.GetInt("llm.max_chars")

	cfg.Classify = classify.DefaultConfig()
	cfg.Classify.ConfidenceThreshold = v.GetFloat64("classify.confidence_threshold")

	cfg.Diff = diff.Policy{
		Threshold:     v.GetFloat64("diff.threshold"),
		LineThreshold: v.GetInt("diff.line_threshold"),
		Structured:    diff.StructuredDiffPolicy(strings.ToLower(v.GetString("diff.structured_policy"))),
	}
	cfg.Noise = semantic.NoiseFilter{
		LowSignificancePct: v.GetFloat64("noise.low_pct"),
		OtherCategoryPct:   v.GetFloat64("noise.other_pct"),
	}

	sched, err := loadSchedule(v)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.Schedule = sched

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func autoProvider(c llm.Config) string {
	switch {
	case c.Anthropic.APIKey != "":
		return llm.ProviderAnthropic
	case c.OpenAI.APIKey != "":
		return llm.ProviderOpenAI
	case c.Gemini.APIKey != "":
		return llm.ProviderGemini
	case c.OpenRouter.APIKey != "":
		return llm.ProviderOpenRouter
	default:
		return ProviderNone
	}
}

func loadSchedule(v *viper.Viper) (schedule.Config, error) {
	cfg := schedule.DefaultConfig()
	cfg.DetectInterval = v.GetDuration("schedule.detect_interval")
	cfg.DigestHour = v.GetInt("schedule.digest_hour")

	day, err := ParseWeekday(v.GetString("schedule.weekly_day"))
	if err != nil {
		return cfg, err
	}
	cfg.WeeklyDay = day

	loc, err := time.LoadLocation(v.GetString("schedule.timezone"))
	if err != nil {
		return cfg, fmt.Errorf("schedule.timezone: %w", err)
	}
	cfg.Location = loc
	return cfg, cfg.Validate()
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("schedule.weekly_day: unknown day %q", s)
}

func (c AppConfig) validate() error {
	if c.LLMEnabled() {
		if err := c.LLM.Validate(); err != nil {
			return err
		}
	}
	if err := c.Diff.Validate(); err != nil {
		return err
	}
	if c.Noise.LowSignificancePct < 0 || c.Noise.OtherCategoryPct < 0 {
		return fmt.Errorf("noise thresholds must not be negative")
	}
	if t := c.Classify.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("classify.confidence_threshold must be within [0, 1], got %v", t)
	}

	switch c.AlertSink {
	case SinkAuto, SinkStdout:
	case SinkSlack:
		if strings.TrimSpace(c.SlackWebhook) == "" {
			return fmt.Errorf("slack.webhook_url is required for the slack sink")
		}
	default:
		return fmt.Errorf("unknown alert.sink %q", c.AlertSink)
	}
	if c.SlackTimeout <= 0 {
		return fmt.Errorf("slack.timeout must be positive")
	}
	return nil
}

// UseSlack reports whether alerts go to the Slack webhook.
func (c AppConfig) UseSlack() bool {
	switch c.AlertSink {
	case SinkSlack:
		return true
	case SinkAuto:
		return strings.TrimSpace(c.SlackWebhook) != ""
	default:
		return false
	}
}
