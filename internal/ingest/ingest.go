// Package ingest turns captured page content into Snapshots. It does not
// fetch anything: callers hand it the HTML or text they already have.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// Input is one capture of an asset.
type Input struct {
	AssetID int64

	// HTML is the raw page. When empty, Text is stored as is.
	HTML string
	Text string

	// Structured is the producer's bag. When nil and HTML is set, the bag is
	// extracted from the page for asset types that have an extractor.
	Structured map[string]any

	StatusCode int
	CapturedAt time.Time
}

// Result reports what Ingest stored.
type Result struct {
	Snapshot *store.Snapshot

	// Unchanged is true when the content hash matched the latest snapshot
	// and nothing was stored.
	Unchanged bool
}

// Config configures an Ingester.
type Config struct {
	// Readability locates the main content with the readability algorithm.
	Readability bool

	// KeepDuplicates stores a snapshot even when its hash matches the
	// latest one.
	KeepDuplicates bool

	Logger *zap.Logger
}

// Ingester stores captures as snapshots.
type Ingester struct {
	store     *store.Store
	extractor *Extractor
	cfg       Config
	logger    *zap.Logger
}

// New returns an Ingester over st.
func New(st *store.Store, cfg Config) *Ingester {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{store: st, extractor: NewExtractor(cfg.Readability), cfg: cfg, logger: logger}
}

// Hash is the content hash of extracted text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Ingest extracts, hashes and stores one capture.
func (in *Ingester) Ingest(ctx context.Context, input Input) (*Result, error) {
	asset, err := in.store.Repo().GetAsset(ctx, input.AssetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %d: %w", input.AssetID, err)
	}

	snap, err := in.snapshot(asset, input)
	if err != nil {
		return nil, err
	}
	log := in.logger.With(zap.Int64("asset_id", asset.ID), zap.String("hash", snap.ContentHash[:12]))

	var res Result
	err = in.store.InTx(ctx, func(tx *store.Repo) error {
		if !in.cfg.KeepDuplicates {
			latest, err := tx.LatestSnapshots(ctx, asset.ID, 1)
			if err != nil {
				return err
			}
			if len(latest) == 1 && latest[0].ContentHash == snap.ContentHash {
				res.Unchanged = true
				return nil
			}
		}
		return tx.AppendSnapshot(ctx, snap)
	})
	if err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	if res.Unchanged {
		log.Debug("content unchanged, snapshot skipped")
		return &res, nil
	}

	log.Info("stored snapshot",
		zap.Int64("snapshot_id", snap.ID),
		zap.Bool("structured", snap.Structured != nil),
	)
	res.Snapshot = snap
	return &res, nil
}

func (in *Ingester) snapshot(asset *store.Asset, input Input) (*store.Snapshot, error) {
	snap := &store.Snapshot{
		AssetID:    asset.ID,
		Structured: input.Structured,
		StatusCode: input.StatusCode,
		CapturedAt: input.CapturedAt,
	}
	if snap.StatusCode == 0 {
		snap.StatusCode = 200
	}

	switch {
	case input.HTML != "":
		page, err := in.extractor.Extract(input.HTML, asset.URL)
		if err != nil {
			return nil, err
		}
		snap.Text, snap.HTML = page.Text, page.HTML
		if snap.Structured == nil {
			bag, err := ExtractBag(asset.Type, input.HTML, asset.URL)
			if err != nil {
				return nil, err
			}
			snap.Structured = bag
		}
	case strings.TrimSpace(input.Text) != "":
		snap.Text = input.Text
	default:
		return nil, errors.New("capture has neither html nor text")
	}

	snap.ContentHash = Hash(snap.Text)
	return snap, nil
}
