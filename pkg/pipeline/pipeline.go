// Package pipeline implements the Content Pipeline (§4.3):
// scrape -> target focus -> filter -> markdown generation, generalizing
// the teacher's pkg/cleaner/domclean multi-pass goquery transform into
// named, independently configurable stages.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlforge/crawlforge/pkg/crawlresult"
	"github.com/crawlforge/crawlforge/pkg/filter"
	"github.com/crawlforge/crawlforge/pkg/pipeline/markdown"
)

// Options configures one Run of the pipeline.
type Options struct {
	BaseURL          string
	TargetSelector   string // CSS selector to focus on before filtering, empty = whole document
	ExcludedTags     []string
	Filters          filter.Chain
	Citations        bool
}

// Output is everything the pipeline produces from raw HTML, ready to
// be attached to a CrawlResult by the dispatcher.
type Output struct {
	CleanedHTML string
	Markdown    crawlresult.Markdown
	Links       crawlresult.LinkSet
	Media       []crawlresult.MediaItem
	Tables      []crawlresult.Table
}

// Run executes scrape -> target focus -> filter -> markdown generation
// against rawHTML.
func Run(ctx context.Context, rawHTML string, opts Options) (Output, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Output{}, fmt.Errorf("parse html: %w", err)
	}

	links, media, tables := scrape(doc, opts.BaseURL)

	focus := doc.Selection
	if opts.TargetSelector != "" {
		if sel := doc.Find(opts.TargetSelector); sel.Length() > 0 {
			focus = sel
		}
	}
	focusDoc := wrap(focus)

	focusDoc.Find("script, style").Remove()
	for _, tag := range opts.ExcludedTags {
		focusDoc.Find(tag).Remove()
	}

	if err := opts.Filters.Apply(ctx, focusDoc); err != nil {
		return Output{}, fmt.Errorf("filter: %w", err)
	}

	cleanedHTML, err := focusDoc.Html()
	if err != nil {
		return Output{}, fmt.Errorf("render cleaned html: %w", err)
	}

	rawMD, err := markdown.Generate(rawHTML)
	if err != nil {
		return Output{}, fmt.Errorf("generate markdown: %w", err)
	}
	fitMD, err := markdown.Generate(cleanedHTML)
	if err != nil {
		return Output{}, fmt.Errorf("generate fit markdown: %w", err)
	}

	result := crawlresult.Markdown{RawMarkdown: rawMD, FitMarkdown: fitMD}
	if opts.Citations {
		withCitations, refs, err := markdown.GenerateWithCitations(cleanedHTML, links.All())
		if err != nil {
			return Output{}, fmt.Errorf("generate citation markdown: %w", err)
		}
		result.MarkdownWithCitations = withCitations
		result.ReferencesMarkdown = refs
	}

	return Output{
		CleanedHTML: cleanedHTML,
		Markdown:    result,
		Links:       links,
		Media:       media,
		Tables:      tables,
	}, nil
}

// wrap builds a *goquery.Document whose root Selection is sel, so
// filters written against *goquery.Document can run over a focused
// subtree instead of always the whole page.
func wrap(sel *goquery.Selection) *goquery.Document {
	return &goquery.Document{Selection: sel}
}

func scrape(doc *goquery.Document, baseURL string) (crawlresult.LinkSet, []crawlresult.MediaItem, []crawlresult.Table) {
	base, _ := url.Parse(baseURL)

	var links crawlresult.LinkSet
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := resolve(base, href)
		link := crawlresult.Link{
			Href:  resolved,
			Text:  strings.TrimSpace(s.Text()),
			Title: s.AttrOr("title", ""),
		}
		if base != nil && isSameHost(base, resolved) {
			links.Internal = append(links.Internal, link)
		} else {
			links.External = append(links.External, link)
		}
	})

	var media []crawlresult.MediaItem
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		media = append(media, crawlresult.MediaItem{
			Type:   "image",
			Src:    resolve(base, src),
			Alt:    s.AttrOr("alt", ""),
			Width:  attrInt(s, "width"),
			Height: attrInt(s, "height"),
		})
	})
	doc.Find("video source[src], video[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		media = append(media, crawlresult.MediaItem{Type: "video", Src: resolve(base, src)})
	})
	doc.Find("audio source[src], audio[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		media = append(media, crawlresult.MediaItem{Type: "audio", Src: resolve(base, src)})
	})

	var tables []crawlresult.Table
	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		tables = append(tables, extractTable(s))
	})

	return links, media, tables
}

func attrInt(s *goquery.Selection, attr string) int {
	v, ok := s.Attr(attr)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

// extractTable reads headers from the first <tr>'s <th> cells (or its
// <td> cells when no <th> is present) and every subsequent row's cell
// text, per spec.md §4.3's {headers,rows,caption,summary} shape.
func extractTable(s *goquery.Selection) crawlresult.Table {
	t := crawlresult.Table{
		Caption: strings.TrimSpace(s.Find("caption").First().Text()),
		Summary: s.AttrOr("summary", ""),
	}

	rows := s.Find("tr")
	rows.Each(func(i int, row *goquery.Selection) {
		headerCells := row.Find("th")
		if i == 0 && headerCells.Length() > 0 {
			headerCells.Each(func(_ int, cell *goquery.Selection) {
				t.Headers = append(t.Headers, strings.TrimSpace(cell.Text()))
			})
			return
		}

		var record []string
		row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			record = append(record, strings.TrimSpace(cell.Text()))
		})
		if len(record) > 0 {
			t.Rows = append(t.Rows, record)
		}
	})

	return t
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func isSameHost(base *url.URL, resolved string) bool {
	u, err := url.Parse(resolved)
	if err != nil {
		return false
	}
	return u.Host == "" || u.Host == base.Host
}
