package cmd

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/alert"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/classify"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/detect"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/llm"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/semantic"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// pipeline is the wired detection and delivery graph over one store.
type pipeline struct {
	detector *detect.Detector
	router   *alert.Router
}

// newPipeline builds the provider, analyzer, classifier, sink, router and
// detector from appConfig. Without a provider every stage takes its
// rule-based path.
func newPipeline(ctx context.Context, st *store.Store) (*pipeline, error) {
	var (
		provider llm.Provider
		analyzer semantic.Analyzer
	)
	if appConfig.LLMEnabled() {
		p, err := llm.NewProvider(ctx, appConfig.LLM, st.EventRepo(), logger)
		if err != nil {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
		provider = p
		analyzer = semantic.NewLLMAnalyzer(p, appConfig.Semantic)
		logger.Info("llm provider configured",
			zap.String("provider", appConfig.LLM.Provider),
			zap.String("model", p.ModelID()))
	} else {
		logger.Info("no llm provider configured; using rule-based analysis")
	}

	ccfg := appConfig.Classify
	ccfg.Logger = logger
	classifier := classify.New(provider, ccfg)

	sink, err := newSink()
	if err != nil {
		return nil, err
	}
	acfg := alert.DefaultConfig()
	acfg.Logger = logger
	router := alert.NewRouter(st, sink, acfg)

	detector := detect.New(st, analyzer, classifier, router, detect.Config{
		Policy: appConfig.Diff,
		Noise:  appConfig.Noise,
		Logger: logger,
	})
	return &pipeline{detector: detector, router: router}, nil
}

func newSink() (alert.Sink, error) {
	if !appConfig.UseSlack() {
		return alert.NewWriterSink(os.Stdout), nil
	}
	sink, err := alert.NewSlackSink(alert.SlackConfig{
		WebhookURL: appConfig.SlackWebhook,
		Timeout:    appConfig.SlackTimeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("slack sink: %w", err)
	}
	return sink, nil
}
