package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/poiesic/groundwork/core"
)

// SitemapLoader loads every page listed in an XML sitemap.
// The sitemap itself may be a URL or a local path.
type SitemapLoader struct {
	opts options
	web  *WebPageLoader
}

// NewSitemapLoader creates a sitemap loader.
func NewSitemapLoader(opts ...Option) *SitemapLoader {
	o := newOptions("sitemap-loader", opts)
	return &SitemapLoader{
		opts: o,
		web:  &WebPageLoader{opts: o},
	}
}

// Load fetches the sitemap and every page it lists. Pages that fail are
// reported in LoadResult.Failures. The load fails only when the sitemap is
// unreadable or every listed page failed.
func (l *SitemapLoader) Load(ctx context.Context, source core.Source) (*core.LoadResult, error) {
	raw, err := l.read(ctx, source.Identifier)
	if err != nil {
		return nil, err
	}
	links, err := SitemapLinks(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse sitemap %s: %w", core.ErrLoad, source.Identifier, err)
	}
	if len(links) == 0 {
		l.opts.logger.Warn("sitemap lists no pages", "url", source.Identifier)
		return &core.LoadResult{SourceID: core.SourceID(source.Identifier)}, nil
	}

	pages, failures, err := fanOut(ctx, l.opts.workers, links, l.opts.logger,
		func(ctx context.Context, link string) ([]core.LoadedRecord, error) {
			record, err := l.web.loadURL(ctx, link)
			if err != nil {
				return nil, err
			}
			return []core.LoadedRecord{record}, nil
		})
	if err != nil {
		return nil, err
	}

	var records []core.LoadedRecord
	for _, page := range pages {
		records = append(records, page...)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: all %d pages of sitemap %s failed", core.ErrLoad, len(links), source.Identifier)
	}

	l.opts.logger.Info("loaded sitemap", "url", source.Identifier, "links", len(links),
		"loaded", len(records), "failed", len(failures))
	return &core.LoadResult{
		SourceID: core.SourceID(source.Identifier, contents(records)...),
		Records:  records,
		Failures: failures,
	}, nil
}

func (l *SitemapLoader) read(ctx context.Context, identifier string) ([]byte, error) {
	if isURL(identifier) {
		return l.opts.fetch(ctx, identifier)
	}
	raw, err := os.ReadFile(identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrLoad, err)
	}
	return raw, nil
}

// SitemapLinks extracts the <loc> entries of a sitemap, preferring those
// nested under <url> and falling back to every <loc>.
func SitemapLinks(raw []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	sel := doc.Find("url > loc")
	if sel.Length() == 0 {
		sel = doc.Find("loc")
	}

	seen := make(map[string]bool, sel.Length())
	links := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		link := strings.TrimSpace(s.Text())
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links, nil
}
