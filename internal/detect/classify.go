package detect

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/alert"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/classify"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/diff"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// classifyAndRoute classifies a persisted change and, when route is set,
// routes it. The classification and the routing outcome (a suppression
// reason, or none) are stored in one unit of work, so a change is never
// left classified but unsuppressed for a sweep to pick up. The model call
// runs outside any transaction; everything after it ignores cancellation
// so a started delivery is always recorded.
func (d *Detector) classifyAndRoute(ctx context.Context, ch *store.Change, ev *diff.Evidence, asset *store.Asset, route bool) (alert.Decision, error) {
	res := d.classifier.Classify(ctx, classify.Input{
		Evidence:  ev,
		AssetType: asset.Type,
		URL:       asset.URL,
		Priors: classify.Priors{
			Category:  ch.Category,
			Summary:   ch.Summary,
			Rationale: ch.Rationale,
		},
	})
	cls := res.Classification()
	ctx = context.WithoutCancel(ctx)

	route = route && d.router != nil
	var (
		decision alert.Decision
		reason   string
	)
	if route {
		decision, reason = d.router.Decide(*ch, cls, asset.PriorityThreshold)
	}

	err := d.store.InTx(ctx, func(tx *store.Repo) error {
		if err := tx.SaveClassification(ctx, ch.ID, cls); err != nil {
			return err
		}
		if !route {
			return nil
		}
		return tx.SuppressChange(ctx, ch.ID, reason)
	})
	if err != nil {
		return "", fmt.Errorf("save classification for change %d: %w", ch.ID, err)
	}
	ch.Category = cls.Category
	ch.Priority = cls.Priority
	ch.Summary = cls.Summary
	ch.Rationale = cls.Rationale
	ch.Confidence = cls.Confidence
	if route {
		ch.SuppressedReason = reason
	}

	d.logger.Info("classified change",
		zap.Int64("change_id", ch.ID),
		zap.String("priority", string(cls.Priority)),
		zap.String("source", string(res.Source)),
		zap.Float64("confidence", cls.Confidence),
	)

	if !route {
		return "", nil
	}
	if err := d.router.Dispatch(ctx, ch.ID, decision); err != nil {
		return decision, fmt.Errorf("route change %d: %w", ch.ID, err)
	}
	return decision, nil
}

// Reclassify classifies a stored change again and, unless it was already
// delivered, routes it with the new result. The new routing outcome
// replaces any previous suppression.
func (d *Detector) Reclassify(ctx context.Context, changeID int64) (*Outcome, error) {
	detail, err := d.store.Repo().GetChange(ctx, changeID)
	if err != nil {
		return nil, fmt.Errorf("load change %d: %w", changeID, err)
	}
	return d.reclassify(ctx, detail)
}

// ClassifyPending classifies and routes changes that were persisted but
// never classified, for example after a crash between the two steps.
func (d *Detector) ClassifyPending(ctx context.Context) (int, error) {
	pending, err := d.store.Repo().ListChanges(ctx, store.ChangeFilter{Unclassified: true})
	if err != nil {
		return 0, err
	}

	n := 0
	var errs []error
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		if _, err := d.reclassify(ctx, &pending[i]); err != nil {
			d.logger.Error("classify pending change", zap.Int64("change_id", pending[i].ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func (d *Detector) reclassify(ctx context.Context, detail *store.ChangeDetail) (*Outcome, error) {
	ev, err := diff.FromChange(*detail)
	if err != nil {
		return nil, fmt.Errorf("rebuild evidence for change %d: %w", detail.ID, err)
	}
	asset := &store.Asset{
		ID:                detail.AssetID,
		Type:              detail.AssetType,
		URL:               detail.AssetURL,
		PriorityThreshold: detail.PriorityThreshold,
	}

	ch := detail.Change
	decision, err := d.classifyAndRoute(ctx, &ch, ev, asset, !ch.Sent)
	return &Outcome{AssetID: ch.AssetID, Status: StatusCreated, Change: &ch, Decision: decision}, err
}
