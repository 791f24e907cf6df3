package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// CompetitorFile is the parsed competitors.yaml.
type CompetitorFile struct {
	Competitors []CompetitorSpec `yaml:"competitors"`
}

// CompetitorSpec is one monitored company.
type CompetitorSpec struct {
	Name    string      `yaml:"name"`
	BaseURL string      `yaml:"base_url"`
	Assets  []AssetSpec `yaml:"assets"`
}

// AssetSpec is one monitored resource of a competitor.
type AssetSpec struct {
	Type              string `yaml:"type"`
	URL               string `yaml:"url"`
	CrawlFrequency    string `yaml:"crawl_frequency"`
	PriorityThreshold string `yaml:"priority_threshold,omitempty"`
}

var frequencies = map[string]bool{"daily": true, "weekly": true}

// LoadCompetitors reads and validates the competitor file at path.
func LoadCompetitors(path string) (*CompetitorFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open competitor config: %w", err)
	}
	defer f.Close()
	return ParseCompetitors(f)
}

// ParseCompetitors decodes and validates a competitor file. Unknown keys
// are rejected.
func ParseCompetitors(r io.Reader) (*CompetitorFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cf CompetitorFile
	if err := dec.Decode(&cf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("competitor config is empty")
		}
		return nil, fmt.Errorf("decode competitor config: %w", err)
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return &cf, nil
}

// Validate reports every problem in the file at once.
func (cf *CompetitorFile) Validate() error {
	if len(cf.Competitors) == 0 {
		return errors.New("at least one competitor must be configured")
	}

	var errs []error
	names := map[string]bool{}
	for i, c := range cf.Competitors {
		where := fmt.Sprintf("competitors[%d]", i)
		name := strings.TrimSpace(c.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		case names[strings.ToLower(name)]:
			errs = append(errs, fmt.Errorf("%s: duplicate competitor %q", where, name))
		default:
			names[strings.ToLower(name)] = true
			where = fmt.Sprintf("competitor %q", name)
		}
		if err := checkURL(c.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("%s: base_url: %w", where, err))
		}

		urls := map[string]bool{}
		for j, a := range c.Assets {
			at := fmt.Sprintf("%s assets[%d]", where, j)
			if _, ok := store.ParseAssetType(a.Type); !ok {
				errs = append(errs, fmt.Errorf("%s: invalid type %q", at, a.Type))
			}
			if err := checkURL(a.URL); err != nil {
				errs = append(errs, fmt.Errorf("%s: url: %w", at, err))
			} else if urls[a.URL] {
				errs = append(errs, fmt.Errorf("%s: duplicate url %q", at, a.URL))
			}
			urls[a.URL] = true
			if !frequencies[a.CrawlFrequency] {
				errs = append(errs, fmt.Errorf("%s: invalid crawl_frequency %q (want daily or weekly)", at, a.CrawlFrequency))
			}
			if a.PriorityThreshold != "" && !store.Priority(a.PriorityThreshold).Valid() {
				errs = append(errs, fmt.Errorf("%s: invalid priority_threshold %q", at, a.PriorityThreshold))
			}
		}
	}
	return errors.Join(errs...)
}

func checkURL(raw string) error {
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}

// SyncReport counts what Sync changed.
type SyncReport struct {
	CompetitorsCreated int
	AssetsCreated      int
	AssetsUpdated      int
	AssetsDeactivated  int
}

// Sync brings the store in line with the file in one unit of work:
// competitors are upserted by name, assets by competitor and URL, and assets
// no longer listed are deactivated. Snapshots and changes are kept.
func Sync(ctx context.Context, st *store.Store, cf *CompetitorFile) (SyncReport, error) {
	var rep SyncReport
	err := st.InTx(ctx, func(tx *store.Repo) error {
		rep = SyncReport{}
		for _, c := range cf.Competitors {
			comp, created, err := tx.UpsertCompetitor(ctx, strings.TrimSpace(c.Name), c.BaseURL)
			if err != nil {
				return err
			}
			if created {
				rep.CompetitorsCreated++
			}

			keep := make([]int64, 0, len(c.Assets))
			for _, a := range c.Assets {
				typ, _ := store.ParseAssetType(a.Type)
				asset, created, err := tx.UpsertAsset(ctx, store.Asset{
					CompetitorID:      comp.ID,
					Type:              typ,
					URL:               a.URL,
					CrawlFrequency:    a.CrawlFrequency,
					PriorityThreshold: store.Priority(a.PriorityThreshold),
				})
				if err != nil {
					return err
				}
				if created {
					rep.AssetsCreated++
				} else {
					rep.AssetsUpdated++
				}
				keep = append(keep, asset.ID)
			}

			n, err := tx.DeactivateAssets(ctx, comp.ID, keep)
			if err != nil {
				return err
			}
			rep.AssetsDeactivated += int(n)
		}
		return nil
	})
	if err != nil {
		return SyncReport{}, fmt.Errorf("sync competitors: %w", err)
	}
	return rep, nil
}
