package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

var snapshotColumns = []string{
	"id", "asset_id", "content_hash", "text", "html", "structured", "status_code", "captured_at",
}

// AppendSnapshot stores a new snapshot and sets its ID. A zero CapturedAt
// is replaced by the current time.
func (r *Repo) AppendSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = r.now().UTC()
	}

	var structured any
	if snap.Structured != nil {
		raw, err := json.Marshal(snap.Structured)
		if err != nil {
			return fmt.Errorf("marshal structured bag: %w", err)
		}
		structured = string(raw)
	}

	query, args := builder.Insert("snapshots").
		Columns("asset_id", "content_hash", "text", "html", "structured", "status_code", "captured_at").
		Values(snap.AssetID, snap.ContentHash, nullable(snap.Text), nullable(snap.HTML),
			structured, snap.StatusCode, toMillis(snap.CapturedAt)).
		Query()
	res, err := execResult(ctx, r.eq, query, args)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}
	return nil
}

// LatestSnapshots returns up to n snapshots of an asset, newest first.
// Ties on capture time are broken by insertion order.
func (r *Repo) LatestSnapshots(ctx context.Context, assetID int64, n int) ([]Snapshot, error) {
	query, args := builder.Select(snapshotColumns...).
		From(entsql.Table("snapshots")).
		Where(entsql.EQ("asset_id", assetID)).
		OrderBy(entsql.Desc("captured_at"), entsql.Desc("id")).
		Limit(n).
		Query()

	var snaps []Snapshot
	err := queryEach(ctx, r.eq, query, args, func(rows *entsql.Rows) error {
		s, err := scanSnapshot(rows)
		if err != nil {
			return err
		}
		snaps = append(snaps, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	return snaps, nil
}

// GetSnapshot returns one snapshot or ErrNotFound.
func (r *Repo) GetSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	query, args := builder.Select(snapshotColumns...).
		From(entsql.Table("snapshots")).
		Where(entsql.EQ("id", id)).
		Query()

	var found *Snapshot
	err := queryEach(ctx, r.eq, query, args, func(rows *entsql.Rows) error {
		s, err := scanSnapshot(rows)
		if err != nil {
			return err
		}
		found = &s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func scanSnapshot(rows *entsql.Rows) (Snapshot, error) {
	var s Snapshot
	var text, html, structured sql.NullString
	var captured int64
	if err := rows.Scan(&s.ID, &s.AssetID, &s.ContentHash, &text, &html, &structured, &s.StatusCode, &captured); err != nil {
		return s, err
	}
	s.Text = text.String
	s.HTML = html.String
	s.CapturedAt = fromMillis(captured)

	if structured.Valid && structured.String != "" {
		if err := json.Unmarshal([]byte(structured.String), &s.Structured); err != nil {
			return s, fmt.Errorf("unmarshal structured bag of snapshot %d: %w", s.ID, err)
		}
	}
	return s, nil
}
