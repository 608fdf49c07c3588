package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/poiesic/groundwork/core"
)

var (
	boilerplateTags = []string{
		"nav", "aside", "form", "header", "noscript", "svg", "canvas", "footer", "script", "style",
	}
	boilerplateIDs = []string{
		"sidebar", "main-navigation", "menu-main-menu",
	}
	boilerplateClasses = []string{
		"elementor-location-header", "navbar-header", "nav",
		"header-sidebar-wrapper", "blog-sidebar-wrapper", "related-posts",
	}
)

// boilerplateSelector matches every DOM region removed before text extraction.
var boilerplateSelector = func() string {
	sel := make([]string, 0, len(boilerplateTags)+len(boilerplateIDs)+len(boilerplateClasses))
	sel = append(sel, boilerplateTags...)
	for _, id := range boilerplateIDs {
		sel = append(sel, "#"+id)
	}
	for _, cls := range boilerplateClasses {
		sel = append(sel, "."+cls)
	}
	return strings.Join(sel, ", ")
}()

// WebPageLoader fetches a single HTML page and extracts its readable text.
type WebPageLoader struct {
	opts options
}

// NewWebPageLoader creates a web page loader.
func NewWebPageLoader(opts ...Option) *WebPageLoader {
	return &WebPageLoader{opts: newOptions("web-page-loader", opts)}
}

// Load fetches source.Identifier and returns one record.
func (l *WebPageLoader) Load(ctx context.Context, source core.Source) (*core.LoadResult, error) {
	record, err := l.loadURL(ctx, source.Identifier)
	if err != nil {
		return nil, err
	}
	return &core.LoadResult{
		SourceID: core.SourceID(source.Identifier, record.Content),
		Records:  []core.LoadedRecord{record},
	}, nil
}

func (l *WebPageLoader) loadURL(ctx context.Context, url string) (core.LoadedRecord, error) {
	body, err := l.opts.fetch(ctx, url)
	if err != nil {
		return core.LoadedRecord{}, err
	}
	content, err := ExtractPageText(body)
	if err != nil {
		return core.LoadedRecord{}, fmt.Errorf("%w: %s: %w", core.ErrLoad, url, err)
	}

	original, cleaned := len(body), len(content)
	shrunk := 0.0
	if original > 0 {
		shrunk = float64(original-cleaned) / float64(original) * 100
	}
	l.opts.logger.Info("cleaned web page", "url", url, "original", original, "cleaned", cleaned,
		"shrunk_pct", fmt.Sprintf("%.2f", shrunk))

	return core.LoadedRecord{
		Content:  content,
		Metadata: core.Metadata{core.MetaURL: url},
	}, nil
}

// ExtractPageText removes boilerplate regions from an HTML document and
// returns its cleaned text.
func ExtractPageText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find(boilerplateSelector).Remove()
	return CleanText(nodeText(doc.Selection)), nil
}

// nodeText joins every text node under s with spaces, so adjacent block
// elements do not run together.
func nodeText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				b.WriteString(c.Text())
				b.WriteByte(' ')
			case "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(s)
	return b.String()
}
