package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// FindCompetitor returns the competitor with the given name or ErrNotFound.
func (r *Repo) FindCompetitor(ctx context.Context, name string) (*Competitor, error) {
	query, args := builder.Select("id", "name", "base_url", "created_at").
		From(entsql.Table("competitors")).
		Where(entsql.EQ("name", name)).
		Query()

	var found *Competitor
	err := queryEach(ctx, r.eq, query, args, func(rows *entsql.Rows) error {
		var c Competitor
		var created int64
		if err := rows.Scan(&c.ID, &c.Name, &c.BaseURL, &created); err != nil {
			return err
		}
		c.CreatedAt = fromMillis(created)
		found = &c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query competitor: %w", err)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// UpsertCompetitor inserts a competitor or updates the base URL of the
// existing one with the same name. It reports whether a row was created.
func (r *Repo) UpsertCompetitor(ctx context.Context, name, baseURL string) (*Competitor, bool, error) {
	existing, err := r.FindCompetitor(ctx, name)
	switch {
	case err == nil:
		if existing.BaseURL != baseURL {
			query, args := builder.Update("competitors").
				Set("base_url", baseURL).
				Where(entsql.EQ("id", existing.ID)).
				Query()
			if _, err := execResult(ctx, r.eq, query, args); err != nil {
				return nil, false, fmt.Errorf("update competitor: %w", err)
			}
			existing.BaseURL = baseURL
		}
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	c := &Competitor{Name: name, BaseURL: baseURL, CreatedAt: r.now().UTC()}
	query, args := builder.Insert("competitors").
		Columns("name", "base_url", "created_at").
		Values(c.Name, c.BaseURL, toMillis(c.CreatedAt)).
		Query()
	res, err := execResult(ctx, r.eq, query, args)
	if err != nil {
		return nil, false, fmt.Errorf("insert competitor: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return nil, false, fmt.Errorf("competitor id: %w", err)
	}
	return c, true, nil
}

// UpsertAsset inserts an asset or updates the existing asset with the same
// competitor and URL. The asset is (re)activated either way. It reports
// whether a row was created.
func (r *Repo) UpsertAsset(ctx context.Context, a Asset) (*Asset, bool, error) {
	var existingID int64
	query, args := builder.Select("id").
		From(entsql.Table("assets")).
		Where(entsql.And(
			entsql.EQ("competitor_id", a.CompetitorID),
			entsql.EQ("url", a.URL),
		)).
		Query()
	err := queryEach(ctx, r.eq, query, args, func(rows *entsql.Rows) error {
		return rows.Scan(&existingID)
	})
	if err != nil {
		return nil, false, fmt.Errorf("query asset: %w", err)
	}

	a.Active = true
	if existingID != 0 {
		query, args := builder.Update("assets").
			Set("asset_type", string(a.Type)).
			Set("crawl_frequency", a.CrawlFrequency).
			Set("priority_threshold", nullable(string(a.PriorityThreshold))).
			Set("active", true).
			Where(entsql.EQ("id", existingID)).
			Query()
		if _, err := execResult(ctx, r.eq, query, args); err != nil {
			return nil, false, fmt.Errorf("update asset: %w", err)
		}
		a.ID = existingID
		return &a, false, nil
	}

	a.CreatedAt = r.now().UTC()
	query, args = builder.Insert("assets").
		Columns("competitor_id", "asset_type", "url", "crawl_frequency", "priority_threshold", "active", "created_at").
		Values(a.CompetitorID, string(a.Type), a.URL, a.CrawlFrequency, nullable(string(a.PriorityThreshold)), true, toMillis(a.CreatedAt)).
		Query()
	res, err := execResult(ctx, r.eq, query, args)
	if err != nil {
		return nil, false, fmt.Errorf("insert asset: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return nil, false, fmt.Errorf("asset id: %w", err)
	}
	return &a, true, nil
}

// DeactivateAssets marks every asset of the competitor inactive except the
// ones listed in keep. It returns the number of assets deactivated.
func (r *Repo) DeactivateAssets(ctx context.Context, competitorID int64, keep []int64) (int64, error) {
	pred := entsql.And(
		entsql.EQ("competitor_id", competitorID),
		entsql.EQ("active", true),
	)
	if len(keep) > 0 {
		ids := make([]any, len(keep))
		for i, id := range keep {
			ids[i] = id
		}
		pred = entsql.And(pred, entsql.NotIn("id", ids...))
	}

	query, args := builder.Update("assets").Set("active", false).Where(pred).Query()
	res, err := execResult(ctx, r.eq, query, args)
	if err != nil {
		return 0, fmt.Errorf("deactivate assets: %w", err)
	}
	return res.RowsAffected()
}

func assetSelector() (*entsql.Selector, *entsql.SelectTable) {
	a := entsql.Table("assets").As("a")
	c := entsql.Table("competitors").As("c")
	sel := builder.Select(
		a.C("id"), a.C("competitor_id"), c.C("name"), a.C("asset_type"), a.C("url"),
		a.C("crawl_frequency"), a.C("priority_threshold"), a.C("active"), a.C("created_at"),
	).
		From(a).
		Join(c).On(a.C("competitor_id"), c.C("id"))
	return sel, a
}

func scanAsset(rows *entsql.Rows) (Asset, error) {
	var a Asset
	var threshold sql.NullString
	var created int64
	err := rows.Scan(&a.ID, &a.CompetitorID, &a.CompetitorName, &a.Type, &a.URL,
		&a.CrawlFrequency, &threshold, &a.Active, &created)
	if err != nil {
		return a, err
	}
	a.PriorityThreshold = Priority(threshold.String)
	a.CreatedAt = fromMillis(created)
	return a, nil
}

// GetAsset returns one asset with its competitor name, or ErrNotFound.
func (r *Repo) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	sel, a := assetSelector()
	query, args := sel.Where(entsql.EQ(a.C("id"), id)).Query()

	var found *Asset
	err := queryEach(ctx, r.eq, query, args, func(rows *entsql.Rows) error {
		asset, err := scanAsset(rows)
		if err != nil {
			return err
		}
		found = &asset
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query asset: %w", err)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// ListAssets returns assets ordered by id. When activeOnly is set,
// deactivated assets are skipped.
func (r *Repo) ListAssets(ctx context.Context, activeOnly bool) ([]Asset, error) {
	sel, a := assetSelector()
	if activeOnly {
		sel = sel.Where(entsql.EQ(a.C("active"), true))
	}
	query, args := sel.OrderBy(a.C("id")).Query()

	var assets []Asset
	err := queryEach(ctx, r.eq, query, args, func(rows *entsql.Rows) error {
		asset, err := scanAsset(rows)
		if err != nil {
			return err
		}
		assets = append(assets, asset)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}
