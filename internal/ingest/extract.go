package ingest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// strippedSelectors are removed before text extraction.
const strippedSelectors = "script, style, noscript, nav, iframe, embed, object, template"

// mainSelectors locate the main content, first match wins.
var mainSelectors = []string{"main", "article", "[role=main]", ".content", "#content", "body"}

// Page is the extracted form of one HTML document.
type Page struct {
	Title string
	Text  string
	HTML  string // sanitized main content
}

// Extractor turns raw HTML into clean text and sanitized HTML.
type Extractor struct {
	policy         *bluemonday.Policy
	useReadability bool
}

// NewExtractor returns an Extractor. With useReadability set the main
// content is located by the readability algorithm before falling back to
// the selector list.
func NewExtractor(useReadability bool) *Extractor {
	return &Extractor{policy: bluemonday.UGCPolicy(), useReadability: useReadability}
}

// Extract parses raw and returns its text one block per line.
func (e *Extractor) Extract(raw, pageURL string) (Page, error) {
	src := raw
	var title string
	if e.useReadability {
		if article, ok := e.readable(raw, pageURL); ok {
			src, title = article.Content, article.Title
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	doc.Find(strippedSelectors).Remove()

	content := doc.Selection
	for _, sel := range mainSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			content = s
			break
		}
	}

	inner, err := goquery.OuterHtml(content)
	if err != nil {
		return Page{}, fmt.Errorf("render html: %w", err)
	}
	return Page{
		Title: title,
		Text:  blockText(content),
		HTML:  e.policy.Sanitize(inner),
	}, nil
}

func (e *Extractor) readable(raw, pageURL string) (readability.Article, bool) {
	u, err := url.Parse(pageURL)
	if err != nil || pageURL == "" {
		u = &url.URL{Scheme: "https", Host: "localhost"}
	}
	article, err := readability.FromReader(strings.NewReader(raw), u)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return readability.Article{}, false
	}
	return article, true
}

// blockText renders each run of text between block elements as one line.
func blockText(s *goquery.Selection) string {
	var (
		lines []string
		cur   strings.Builder
	)
	flush := func() {
		if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			return
		case html.ElementNode:
			if isBlock(n.Data) {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	flush()
	return strings.Join(lines, "\n")
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
	"url": true, "loc": true,
}

func isBlock(tag string) bool {
	return blockElements[tag]
}
