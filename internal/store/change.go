package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// ChangeExistsForSnapshot reports whether a Change already references the
// snapshot as its "after" side.
func (r *Repo) ChangeExistsForSnapshot(ctx context.Context, afterID int64) (bool, error) {
	query, args := builder.Select(entsql.Count("*")).
		From(entsql.Table("changes")).
		Where(entsql.EQ("snapshot_after_id", afterID)).
		Query()

	var n int
	err := queryEach(ctx, r.eq, query, args, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	if err != nil {
		return false, fmt.Errorf("count changes: %w", err)
	}
	return n > 0, nil
}

// CreateChange inserts a Change and sets its ID. It returns
// ErrDuplicateChange when the "after" snapshot already has one. Callers
// that need the check and the insert to be atomic run it inside InTx.
func (r *Repo) CreateChange(ctx context.Context, c *Change) error {
	exists, err := r.ChangeExistsForSnapshot(ctx, c.SnapshotAfterID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateChange
	}

	if c.DetectedAt.IsZero() {
		c.DetectedAt = r.now().UTC()
	}

	var meta any
	if len(c.DiffMetadata) > 0 {
		meta = string(c.DiffMetadata)
	}

	query, args := builder.Insert("changes").
		Columns(
			"asset_id", "snapshot_before_id", "snapshot_after_id", "category", "priority",
			"summary", "rationale", "confidence", "before_excerpt", "after_excerpt",
			"diff_metadata", "change_percentage", "suppressed_reason", "detected_at", "sent",
		).
		Values(
			c.AssetID, c.SnapshotBeforeID, c.SnapshotAfterID, string(c.Category), nullable(string(c.Priority)),
			c.Summary, c.Rationale, c.Confidence, c.BeforeExcerpt, c.AfterExcerpt,
			meta, c.ChangePercentage, nullable(c.SuppressedReason), toMillis(c.DetectedAt), false,
		).
		Query()
	res, err := execResult(ctx, r.eq, query, args)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("change id: %w", err)
	}
	return nil
}

// SaveClassification stores the classifier output on a Change.
func (r *Repo) SaveClassification(ctx context.Context, id int64, cls Classification) error {
	query, args := builder.Update("changes").
		Set("category", string(cls.Category)).
		Set("priority", nullable(string(cls.Priority))).
		Set("summary", cls.Summary).
		Set("rationale", cls.Rationale).
		Set("confidence", cls.Confidence).
		Where(entsql.EQ("id", id)).
		Query()
	return r.updateOne(ctx, id, query, args)
}

// SuppressChange records why a Change will never be alerted. An empty
// reason clears a previous suppression.
func (r *Repo) SuppressChange(ctx context.Context, id int64, reason string) error {
	query, args := builder.Update("changes").
		Set("suppressed_reason", nullable(reason)).
		Where(entsql.EQ("id", id)).
		Query()
	return r.updateOne(ctx, id, query, args)
}

// MarkSent flags an unsent Change as delivered. It returns false without
// error when the Change was already sent.
func (r *Repo) MarkSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	query, args := builder.Update("changes").
		Set("sent", true).
		Set("sent_at", toMillis(at)).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("sent", false),
		)).
		Query()
	res, err := execResult(ctx, r.eq, query, args)
	if err != nil {
		return false, fmt.Errorf("mark change %d sent: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark change %d sent: %w", id, err)
	}
	return n == 1, nil
}

func (r *Repo) updateOne(ctx context.Context, id int64, query string, args []any) error {
	res, err := execResult(ctx, r.eq, query, args)
	if err != nil {
		return fmt.Errorf("update change %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update change %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func changeSelector() (sel *entsql.Selector, ch *entsql.SelectTable) {
	ch = entsql.Table("changes").As("ch")
	a := entsql.Table("assets").As("a")
	co := entsql.Table("competitors").As("co")
	sel = builder.Select(
		ch.C("id"), ch.C("asset_id"), ch.C("snapshot_before_id"), ch.C("snapshot_after_id"),
		ch.C("category"), ch.C("priority"), ch.C("summary"), ch.C("rationale"), ch.C("confidence"),
		ch.C("before_excerpt"), ch.C("after_excerpt"), ch.C("diff_metadata"), ch.C("change_percentage"),
		ch.C("suppressed_reason"), ch.C("detected_at"), ch.C("sent"), ch.C("sent_at"),
		co.C("name"), a.C("asset_type"), a.C("url"), a.C("priority_threshold"),
	).
		From(ch).
		Join(a).On(ch.C("asset_id"), a.C("id")).
		Join(co).On(a.C("competitor_id"), co.C("id"))
	return sel, ch
}

func scanChangeDetail(rows *entsql.Rows) (ChangeDetail, error) {
	var d ChangeDetail
	var priority, meta, suppressed, threshold sql.NullString
	var detected int64
	var sentAt sql.NullInt64
	err := rows.Scan(
		&d.ID, &d.AssetID, &d.SnapshotBeforeID, &d.SnapshotAfterID,
		&d.Category, &priority, &d.Summary, &d.Rationale, &d.Confidence,
		&d.BeforeExcerpt, &d.AfterExcerpt, &meta, &d.ChangePercentage,
		&suppressed, &detected, &d.Sent, &sentAt,
		&d.Company, &d.AssetType, &d.AssetURL, &threshold,
	)
	if err != nil {
		return d, err
	}
	d.Priority = Priority(priority.String)
	if meta.Valid {
		d.DiffMetadata = []byte(meta.String)
	}
	d.SuppressedReason = suppressed.String
	d.DetectedAt = fromMillis(detected)
	if sentAt.Valid {
		d.SentAt = fromMillis(sentAt.Int64)
	}
	d.PriorityThreshold = Priority(threshold.String)
	return d, nil
}

func (r *Repo) queryChanges(ctx context.Context, sel *entsql.Selector) ([]ChangeDetail, error) {
	query, args := sel.Query()
	var out []ChangeDetail
	err := queryEach(ctx, r.eq, query, args, func(rows *entsql.Rows) error {
		d, err := scanChangeDetail(rows)
		if err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	return out, nil
}

// GetChange returns one Change with its asset and competitor, or
// ErrNotFound.
func (r *Repo) GetChange(ctx context.Context, id int64) (*ChangeDetail, error) {
	sel, ch := changeSelector()
	changes, err := r.queryChanges(ctx, sel.Where(entsql.EQ(ch.C("id"), id)))
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, ErrNotFound
	}
	return &changes[0], nil
}

// PendingChanges returns unsent, unsuppressed Changes classified with the
// given priority and detected at or after since, oldest first.
func (r *Repo) PendingChanges(ctx context.Context, p Priority, since time.Time) ([]ChangeDetail, error) {
	sel, ch := changeSelector()
	sel = sel.Where(entsql.And(
		entsql.EQ(ch.C("priority"), string(p)),
		entsql.EQ(ch.C("sent"), false),
		entsql.IsNull(ch.C("suppressed_reason")),
		entsql.GTE(ch.C("detected_at"), toMillis(since)),
	)).OrderBy(ch.C("detected_at"), ch.C("id"))
	return r.queryChanges(ctx, sel)
}

// ListChanges returns Changes newest first.
func (r *Repo) ListChanges(ctx context.Context, f ChangeFilter) ([]ChangeDetail, error) {
	sel, ch := changeSelector()
	if f.AssetID != 0 {
		sel = sel.Where(entsql.EQ(ch.C("asset_id"), f.AssetID))
	}
	if f.Priority != "" {
		sel = sel.Where(entsql.EQ(ch.C("priority"), string(f.Priority)))
	}
	if f.Unsent {
		sel = sel.Where(entsql.EQ(ch.C("sent"), false))
	}
	if f.Unclassified {
		sel = sel.Where(entsql.And(
			entsql.IsNull(ch.C("priority")),
			entsql.IsNull(ch.C("suppressed_reason")),
		))
	}
	if !f.Since.IsZero() {
		sel = sel.Where(entsql.GTE(ch.C("detected_at"), toMillis(f.Since)))
	}
	sel = sel.OrderBy(entsql.Desc(ch.C("detected_at")), entsql.Desc(ch.C("id")))
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}
	return r.queryChanges(ctx, sel)
}
