// Package scrape turns the manufacturer registry into row batches.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/fairyhunter13/glass-catalog-updater/internal/config"
	"github.com/fairyhunter13/glass-catalog-updater/internal/ingest"
	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
)

// Source produces the rows of one manufacturer.
type Source interface {
	Fetch(ctx context.Context) ([]model.Row, error)
}

// NewSource builds the source described by m.Source.
func NewSource(m config.Manufacturer, f *Fetcher) (Source, error) {
	lim := NewLimiter(m.Source.Rate, m.Source.Burst)
	switch m.Source.Kind {
	case config.SourceCSV:
		return &csvSource{mfr: m.Code, cfg: m.Source, fetch: f, lim: lim}, nil
	case config.SourceJSON:
		return &jsonSource{mfr: m.Code, cfg: m.Source, fetch: f, lim: lim}, nil
	case config.SourceHTML:
		return &htmlSource{mfr: m.Code, cfg: m.Source, fetch: f, lim: lim}, nil
	default:
		return nil, fmt.Errorf("%s: unknown source kind %q", m.Code, m.Source.Kind)
	}
}

type csvSource struct {
	mfr   string
	cfg   config.SourceConfig
	fetch *Fetcher
	lim   *rate.Limiter
}

func (s *csvSource) Fetch(ctx context.Context) ([]model.Row, error) {
	if s.cfg.Path != "" {
		rows, err := ingest.ReadCSVFile(s.cfg.Path)
		if err != nil {
			return nil, &SourceError{Manufacturer: s.mfr, URL: s.cfg.Path, Err: err}
		}
		return rows, nil
	}
	b, err := s.fetch.Get(ctx, s.lim, s.mfr, s.cfg.URL)
	if err != nil {
		return nil, err
	}
	rows, err := ingest.ReadCSV(bytes.NewReader(b))
	if err != nil {
		return nil, &SourceError{Manufacturer: s.mfr, URL: s.cfg.URL, Err: err}
	}
	return rows, nil
}

type jsonSource struct {
	mfr   string
	cfg   config.SourceConfig
	fetch *Fetcher
	lim   *rate.Limiter
}

// Fetch expects a JSON array of rows keyed like the CSV columns.
func (s *jsonSource) Fetch(ctx context.Context) ([]model.Row, error) {
	b, err := s.fetch.Get(ctx, s.lim, s.mfr, s.cfg.URL)
	if err != nil {
		return nil, err
	}
	var rows []model.Row
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, &SourceError{Manufacturer: s.mfr, URL: s.cfg.URL, Err: fmt.Errorf("decode rows: %w", err)}
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, &SourceError{Manufacturer: s.mfr, URL: s.cfg.URL, Err: fmt.Errorf("decode rows: %w", err)}
	}
	for i := range rows {
		keys := make([]string, 0, len(raw[i]))
		for k := range raw[i] {
			keys = append(keys, k)
		}
		rows[i].Columns = model.PresentColumns(keys)
	}
	return rows, nil
}
