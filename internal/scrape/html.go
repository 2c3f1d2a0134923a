package scrape

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/fairyhunter13/glass-catalog-updater/internal/config"
	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
)

// htmlSource reads catalog listing pages with generic CSS selectors.
type htmlSource struct {
	mfr   string
	cfg   config.SourceConfig
	fetch *Fetcher
	lim   *rate.Limiter
}

func (s *htmlSource) pages() []string {
	if len(s.cfg.Pages) > 0 {
		return s.cfg.Pages
	}
	return []string{s.cfg.URL}
}

func (s *htmlSource) Fetch(ctx context.Context) ([]model.Row, error) {
	var rows []model.Row
	for _, page := range s.pages() {
		b, err := s.fetch.Get(ctx, s.lim, s.mfr, page)
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
		if err != nil {
			return nil, &SourceError{Manufacturer: s.mfr, URL: page, Err: err}
		}
		base, _ := url.Parse(page)
		rows = append(rows, ParseListing(doc, s.cfg.Selectors, s.mfr, base)...)
	}
	return rows, nil
}

// ParseListing extracts one row per item selector match. Items without a code
// are skipped. Relative links are resolved against base.
func ParseListing(doc *goquery.Document, sel config.Selectors, mfr string, base *url.URL) []model.Row {
	var rows []model.Row
	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		code := extract(item, sel.Code)
		if code == "" {
			return
		}
		var tags model.List
		if sel.Tags != "" {
			sl, attr := splitSelector(sel.Tags)
			target := item
			if sl != "" {
				target = item.Find(sl)
			}
			target.Each(func(_ int, t *goquery.Selection) {
				if v := clean(value(t, attr)); v != "" {
					tags = append(tags, strings.ToLower(v))
				}
			})
		}
		rows = append(rows, model.Row{
			Manufacturer: mfr,
			Code:         code,
			Name:         extract(item, sel.Name),
			Description:  extract(item, sel.Description),
			URL:          resolve(base, extract(item, sel.URL)),
			ImageURL:     resolve(base, extract(item, sel.Image)),
			Tags:         model.FormatList(tags),
		})
	})
	return rows
}

func splitSelector(s string) (sel, attr string) {
	if i := strings.LastIndex(s, "@"); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return strings.TrimSpace(s), ""
}

func value(s *goquery.Selection, attr string) string {
	if attr == "" {
		return s.Text()
	}
	v, _ := s.Attr(attr)
	return v
}

func extract(item *goquery.Selection, expr string) string {
	if expr == "" {
		return ""
	}
	sel, attr := splitSelector(expr)
	target := item
	if sel != "" {
		target = item.Find(sel).First()
	}
	return clean(value(target, attr))
}

func clean(s string) string { return strings.Join(strings.Fields(s), " ") }

func resolve(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
