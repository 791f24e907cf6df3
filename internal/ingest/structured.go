package ingest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// bagExtractor derives a structured bag from a parsed page. It returns nil
// when the page holds nothing recognizable.
type bagExtractor func(doc *goquery.Document, pageURL string) any

var bagExtractors = map[store.AssetType]bagExtractor{
	store.AssetPricing:    pricingBag,
	store.AssetFeatures:   featuresBag,
	store.AssetChangelog:  changelogBag,
	store.AssetSitemap:    sitemapBag,
	store.AssetBlog:       blogBag,
	store.AssetCompliance: complianceBag,
}

// ExtractBag derives the structured bag for an asset type from raw HTML.
// Types without an extractor, and pages where nothing was found, yield nil.
func ExtractBag(t store.AssetType, raw, pageURL string) (map[string]any, error) {
	fn, ok := bagExtractors[t]
	if !ok {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	v := fn(doc, pageURL)
	if v == nil {
		return nil, nil
	}
	return toBag(v)
}

// toBag converts v into the generic shape the diff comparators read.
func toBag(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode bag: %w", err)
	}
	var bag map[string]any
	if err := json.Unmarshal(b, &bag); err != nil {
		return nil, fmt.Errorf("decode bag: %w", err)
	}
	return bag, nil
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// firstText returns the text of the first selector that matches inside s.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if m := s.Find(sel).First(); m.Length() > 0 {
			if t := text(m); t != "" {
				return t
			}
		}
	}
	return ""
}

type tier struct {
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

type pricing struct {
	Tiers       []tier `json:"tiers"`
	HasFreeTier bool   `json:"has_free_tier"`
}

var (
	pricingContainers = []string{".pricing-table", ".pricing", ".plans", ".pricing-plans", "[class*=pricing]", "[class*=plan]", "[id*=pricing]"}
	tierClass         = regexp.MustCompile(`(?i)(tier|plan|package)`)
	freePrices        = map[string]bool{"free": true, "$0": true, "0": true, "free forever": true}
)

func pricingBag(doc *goquery.Document, _ string) any {
	var container *goquery.Selection
	for _, sel := range pricingContainers {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			container = s
			break
		}
	}
	if container == nil {
		doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
			lower := strings.ToLower(t.Text())
			for _, kw := range []string{"price", "plan", "tier", "$"} {
				if strings.Contains(lower, kw) {
					container = t
					return false
				}
			}
			return true
		})
	}
	if container == nil {
		return nil
	}

	var out pricing
	cards := container.Find("div, section, article").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return tierClass.MatchString(class)
	})
	if cards.Length() > 0 {
		cards.Each(func(_ int, card *goquery.Selection) {
			t := tier{
				Name:     firstText(card, "h2", "h3", ".plan-name", ".tier-name"),
				Price:    firstText(card, ".price", ".cost", "[class*=price]"),
				Features: listItems(card.Find("ul, ol")),
			}
			if t.Name != "" || t.Price != "" {
				out.Tiers = append(out.Tiers, t)
			}
		})
	} else {
		rows := container.Find("tr")
		rows.Each(func(i int, row *goquery.Selection) {
			if i == 0 {
				return
			}
			var cells []string
			row.Find("td, th").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, text(c))
			})
			if len(cells) >= 2 {
				out.Tiers = append(out.Tiers, tier{Name: cells[0], Price: cells[1], Features: cells[2:]})
			}
		})
	}

	for _, t := range out.Tiers {
		if freePrices[strings.ToLower(t.Price)] {
			out.HasFreeTier = true
			break
		}
	}
	return out
}

// listItems returns the item texts of the given containers: the direct
// items of a list, every item below anything else. Repeats are dropped.
func listItems(containers *goquery.Selection) []string {
	items := []string{}
	seen := map[string]bool{}
	containers.Each(func(_ int, c *goquery.Selection) {
		lis := c.Find("li")
		if c.Is("ul, ol") {
			lis = c.ChildrenFiltered("li")
		}
		lis.Each(func(_ int, li *goquery.Selection) {
			if t := text(li); t != "" && !seen[t] {
				seen[t] = true
				items = append(items, t)
			}
		})
	})
	return items
}

var featureClass = regexp.MustCompile(`(?i)(feature|capability)`)

func featuresBag(doc *goquery.Document, _ string) any {
	containers := doc.Find("ul, ol, section").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return featureClass.MatchString(class)
	})
	if containers.Length() == 0 {
		containers = doc.Find("ul, ol").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("li").Length() >= 3
		})
	}

	var features []string
	for _, f := range listItems(containers) {
		if len(f) > 5 {
			features = append(features, f)
		}
	}
	if len(features) == 0 {
		return nil
	}
	return map[string]any{"features": features}
}

var (
	entryClass = regexp.MustCompile(`(?i)(changelog|update|release|entry)`)
	dateClass  = regexp.MustCompile(`(?i)(date|time|published)`)
)

func classMatches(re *regexp.Regexp) func(int, *goquery.Selection) bool {
	return func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return re.MatchString(class)
	}
}

func dateOf(s *goquery.Selection) string {
	if t := s.Find("time").First(); t.Length() > 0 {
		if dt, ok := t.Attr("datetime"); ok && dt != "" {
			return dt
		}
		return text(t)
	}
	return text(s.Find("span, div").FilterFunction(classMatches(dateClass)).First())
}

func changelogBag(doc *goquery.Document, _ string) any {
	type entry struct {
		Date    string `json:"date"`
		Content string `json:"content"`
	}
	var entries []entry
	doc.Find("article, div, li").FilterFunction(classMatches(entryClass)).Each(func(_ int, s *goquery.Selection) {
		if c := text(s); c != "" {
			entries = append(entries, entry{Date: dateOf(s), Content: c})
		}
	})
	if len(entries) == 0 {
		return nil
	}
	return map[string]any{"entries": entries}
}

func sitemapBag(doc *goquery.Document, _ string) any {
	var urls []string
	doc.Find("url > loc, sitemap > loc").Each(func(_ int, s *goquery.Selection) {
		if u := text(s); u != "" {
			urls = append(urls, u)
		}
	})
	if len(urls) == 0 {
		return nil
	}
	return map[string]any{"urls": urls}
}

var (
	postClass = regexp.MustCompile(`(?i)(post|article|blog)`)
	itemClass = regexp.MustCompile(`(?i)(entry|item)`)
	headClass = regexp.MustCompile(`(?i)(title|heading)`)
	tagClass  = regexp.MustCompile(`(?i)(tag|category|topic)`)
)

func blogBag(doc *goquery.Document, pageURL string) any {
	type post struct {
		Title string   `json:"title"`
		Date  string   `json:"date"`
		Tags  []string `json:"tags"`
		URL   string   `json:"url"`
	}
	base, _ := url.Parse(pageURL)

	posts := doc.Find("article, div").FilterFunction(classMatches(postClass))
	if posts.Length() == 0 {
		posts = doc.Find("div, section").FilterFunction(classMatches(itemClass))
	}

	var out []post
	posts.Each(func(_ int, s *goquery.Selection) {
		title := text(s.Find("h2, h3, h4, a").FilterFunction(classMatches(headClass)).First())
		if title == "" {
			return
		}
		p := post{Title: title, Date: dateOf(s), Tags: []string{}, URL: pageURL}
		s.Find("a, span").FilterFunction(classMatches(tagClass)).Each(func(_ int, t *goquery.Selection) {
			if tag := text(t); tag != "" {
				p.Tags = append(p.Tags, tag)
			}
		})
		if href, ok := s.Find("a[href]").First().Attr("href"); ok {
			p.URL = resolve(base, href)
		}
		out = append(out, p)
	})
	if len(out) == 0 {
		return nil
	}
	return map[string]any{"posts": out}
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

var complianceTerms = []string{
	"SOC 2 Type II", "SOC 2", "SOC 1", "ISO 27001", "GDPR", "HIPAA",
	"PCI DSS", "FedRAMP", "CCPA",
}

var certAlt = regexp.MustCompile(`(?i)(cert|compliance|iso|soc)`)

// complianceBag classifies each known term by the words around it:
// "certified" or "certification" make it a certification, "standard" or
// "compliance" a standard.
func complianceBag(doc *goquery.Document, _ string) any {
	certs, standards := []string{}, []string{}
	seen := map[string]bool{}

	page := text(doc.Selection)
	lower := strings.ToLower(page)
	for _, term := range complianceTerms {
		lt := strings.ToLower(term)
		for off := 0; ; {
			i := strings.Index(lower[off:], lt)
			if i < 0 {
				break
			}
			at := off + i
			ctx := window(lower, at, at+len(lt), 50)
			switch {
			case strings.Contains(ctx, "certif"):
				if !seen["c:"+term] {
					seen["c:"+term] = true
					certs = append(certs, term)
				}
			case strings.Contains(ctx, "standard") || strings.Contains(ctx, "compliance"):
				if !seen["s:"+term] {
					seen["s:"+term] = true
					standards = append(standards, term)
				}
			}
			off = at + len(lt)
		}
	}

	doc.Find("img[alt]").Each(func(_ int, img *goquery.Selection) {
		alt, _ := img.Attr("alt")
		alt = strings.TrimSpace(alt)
		if alt != "" && certAlt.MatchString(alt) && !seen["c:"+alt] {
			seen["c:"+alt] = true
			certs = append(certs, alt)
		}
	})

	if len(certs) == 0 && len(standards) == 0 {
		return nil
	}
	return map[string]any{"certifications": certs, "standards": standards}
}

// window returns s[from-n:to+n] clamped to s.
func window(s string, from, to, n int) string {
	from, to = max(from-n, 0), min(to+n, len(s))
	return s[from:to]
}
