// Package detect runs the change pipeline for one asset: compare the two
// latest snapshots, persist a Change when the difference matters, then
// classify and route it.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/alert"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/classify"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/diff"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/semantic"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// maxExcerpt is the number of characters of each text kept on a Change.
const maxExcerpt = 10000

// Status is what detection did for one asset.
type Status string

const (
	StatusNoPair          Status = "insufficient-snapshots"
	StatusAlreadyDetected Status = "already-detected"
	StatusUnchanged       Status = "unchanged"
	StatusInsignificant   Status = "insignificant"
	StatusNoise           Status = "noise"
	StatusCreated         Status = "created"
)

// Outcome reports detection for one asset.
type Outcome struct {
	AssetID  int64
	Status   Status
	Change   *store.Change
	Decision alert.Decision

	// Degraded is true when semantic analysis was unavailable and the
	// change carries the fallback summary.
	Degraded bool
}

// Report summarizes one detection cycle.
type Report struct {
	Assets   int
	Created  int
	Failed   int
	Outcomes []Outcome
}

// Config configures a Detector.
type Config struct {
	Policy diff.Policy
	Noise  semantic.NoiseFilter
	Logger *zap.Logger
}

// DefaultConfig returns the default significance policy and noise filter.
func DefaultConfig() Config {
	return Config{
		Policy: diff.DefaultPolicy(),
		Noise:  semantic.DefaultNoiseFilter(),
	}
}

// Detector sequences the pipeline stages over the store.
type Detector struct {
	store      *store.Store
	analyzer   semantic.Analyzer
	classifier *classify.Classifier
	router     *alert.Router
	cfg        Config
	logger     *zap.Logger
}

// New returns a Detector. A nil analyzer skips semantic analysis and a nil
// router leaves classified changes unrouted.
func New(st *store.Store, analyzer semantic.Analyzer, classifier *classify.Classifier, router *alert.Router, cfg Config) *Detector {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if classifier == nil {
		ccfg := classify.DefaultConfig()
		ccfg.Logger = logger
		classifier = classify.New(nil, ccfg)
	}
	return &Detector{
		store:      st,
		analyzer:   analyzer,
		classifier: classifier,
		router:     router,
		cfg:        cfg,
		logger:     logger,
	}
}

// DetectAll runs detection for every active asset in turn. A failing asset
// is logged and counted, and the cycle moves on. Cancellation stops the
// cycle between assets.
func (d *Detector) DetectAll(ctx context.Context) (Report, error) {
	var rep Report
	assets, err := d.store.Repo().ListAssets(ctx, true)
	if err != nil {
		return rep, fmt.Errorf("list assets: %w", err)
	}

	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Assets++
		out, err := d.DetectAsset(ctx, a.ID)
		if err != nil {
			rep.Failed++
			d.logger.Error("detection failed", zap.Int64("asset_id", a.ID), zap.Error(err))
		}
		if out == nil {
			continue
		}
		if out.Status == StatusCreated {
			rep.Created++
		}
		rep.Outcomes = append(rep.Outcomes, *out)
	}

	d.logger.Info("detection cycle finished",
		zap.Int("assets", rep.Assets),
		zap.Int("created", rep.Created),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}

// DetectAsset compares the two latest snapshots of an asset. Running it
// again on an already processed pair is a no-op.
func (d *Detector) DetectAsset(ctx context.Context, assetID int64) (*Outcome, error) {
	log := d.logger.With(zap.Int64("asset_id", assetID))
	repo := d.store.Repo()

	asset, err := repo.GetAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %d: %w", assetID, err)
	}
	out := &Outcome{AssetID: assetID}

	snaps, err := repo.LatestSnapshots(ctx, assetID, 2)
	if err != nil {
		return nil, err
	}
	if len(snaps) < 2 {
		out.Status = StatusNoPair
		return out, nil
	}
	after, before := snaps[0], snaps[1]

	exists, err := repo.ChangeExistsForSnapshot(ctx, after.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		out.Status = StatusAlreadyDetected
		return out, nil
	}

	ev := diff.Compare(asset.Type, before, after)
	if ev == nil {
		out.Status = StatusUnchanged
		return out, nil
	}
	if ev.StructuredErr != nil {
		log.Warn("structured diff skipped", zap.Error(ev.StructuredErr))
	}
	if !d.cfg.Policy.IsSignificant(ev) {
		log.Debug("change not significant", zap.Float64("pct", ev.ChangePercentage))
		out.Status = StatusInsignificant
		return out, nil
	}

	analysis := d.analyze(ctx, asset, ev)
	if d.cfg.Noise.IsNoise(ev, analysis) {
		log.Info("filtered noise change", zap.Float64("pct", ev.ChangePercentage))
		out.Status = StatusNoise
		return out, nil
	}
	out.Degraded = analysis.Degraded()

	ch, err := newChange(asset, before, after, ev, analysis)
	if err != nil {
		return nil, err
	}
	err = d.store.InTx(ctx, func(tx *store.Repo) error {
		return tx.CreateChange(ctx, ch)
	})
	if errors.Is(err, store.ErrDuplicateChange) {
		out.Status = StatusAlreadyDetected
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create change: %w", err)
	}
	out.Status = StatusCreated
	out.Change = ch
	log.Info("created change",
		zap.Int64("change_id", ch.ID),
		zap.String("category", string(ch.Category)),
		zap.Float64("pct", ch.ChangePercentage),
	)

	out.Decision, err = d.classifyAndRoute(ctx, ch, ev, asset, true)
	return out, err
}

// analyze runs semantic analysis. Without an analyzer the result is
// degraded.
func (d *Detector) analyze(ctx context.Context, asset *store.Asset, ev *diff.Evidence) semantic.Result {
	if d.analyzer == nil {
		return semantic.Result{Significance: semantic.SignificanceMedium, Err: errors.New("semantic analysis disabled")}
	}
	return d.analyzer.Analyze(ctx, semantic.Request{
		Before:    ev.Before,
		After:     ev.After,
		AssetType: asset.Type,
		URL:       asset.URL,
	})
}

// newChange builds the Change record. A degraded analysis falls back to a
// summary derived from the line counts.
func newChange(asset *store.Asset, before, after store.Snapshot, ev *diff.Evidence, res semantic.Result) (*store.Change, error) {
	meta, err := diff.Metadata(ev)
	if err != nil {
		return nil, err
	}

	ch := &store.Change{
		AssetID:          asset.ID,
		SnapshotBeforeID: before.ID,
		SnapshotAfterID:  after.ID,
		BeforeExcerpt:    excerpt(ev.Before),
		AfterExcerpt:     excerpt(ev.After),
		DiffMetadata:     meta,
		ChangePercentage: ev.ChangePercentage,
	}
	if res.Degraded() {
		ch.Category = inferCategory(asset.Type, ev)
		ch.Summary = fallbackSummary(asset.Type, ev)
		ch.Rationale = fmt.Sprintf("Change detected on %s page", asset.Type)
	} else {
		ch.Category = res.Category()
		ch.Summary = res.Summary
		ch.Rationale = res.Rationale
	}
	return ch, nil
}

func inferCategory(t store.AssetType, ev *diff.Evidence) store.Category {
	if c, ok := diff.CategoryOf(ev.Structured); ok {
		return c
	}
	return store.CategoryForAsset(t)
}

func fallbackSummary(t store.AssetType, ev *diff.Evidence) string {
	added, removed := ev.Text.Added, ev.Text.Removed
	pct := strconv.FormatFloat(ev.ChangePercentage, 'f', -1, 64)
	switch {
	case added > 0 && removed > 0:
		return fmt.Sprintf("Content updated on %s page: %d lines added, %d lines removed (%s%% change)", t, added, removed, pct)
	case added > 0:
		return fmt.Sprintf("Content added to %s page: %d new lines (%s%% change)", t, added, pct)
	case removed > 0:
		return fmt.Sprintf("Content removed from %s page: %d lines removed (%s%% change)", t, removed, pct)
	default:
		return fmt.Sprintf("Change detected on %s page (%s%% change)", t, pct)
	}
}

// excerpt keeps the first maxExcerpt characters of s.
func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= maxExcerpt {
		return s
	}
	return string(r[:maxExcerpt])
}
