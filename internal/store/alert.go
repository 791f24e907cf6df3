package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// AppendAlert records one delivery and sets its ID.
func (r *Repo) AppendAlert(ctx context.Context, a *Alert) error {
	if a.SentAt.IsZero() {
		a.SentAt = r.now().UTC()
	}

	query, args := builder.Insert("alerts").
		Columns("change_id", "priority", "delivery_type", "batch_id", "sent_at").
		Values(a.ChangeID, string(a.Priority), string(a.DeliveryType), a.BatchID, toMillis(a.SentAt)).
		Query()
	res, err := execResult(ctx, r.eq, query, args)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("alert id: %w", err)
	}
	return nil
}

// ListAlerts returns alerts newest first. A changeID of zero lists alerts
// for every change.
func (r *Repo) ListAlerts(ctx context.Context, changeID int64, limit int) ([]Alert, error) {
	sel := builder.Select("id", "change_id", "priority", "delivery_type", "batch_id", "sent_at").
		From(entsql.Table("alerts")).
		OrderBy(entsql.Desc("sent_at"), entsql.Desc("id"))
	if changeID != 0 {
		sel = sel.Where(entsql.EQ("change_id", changeID))
	}
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	var alerts []Alert
	err := queryEach(ctx, r.eq, query, args, func(rows *entsql.Rows) error {
		var a Alert
		var sent int64
		if err := rows.Scan(&a.ID, &a.ChangeID, &a.Priority, &a.DeliveryType, &a.BatchID, &sent); err != nil {
			return err
		}
		a.SentAt = fromMillis(sent)
		alerts = append(alerts, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}
