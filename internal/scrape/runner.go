package scrape

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/glass-catalog-updater/internal/config"
	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
)

// TestModeItems caps each manufacturer in test mode.
const TestModeItems = 3

// Runner fetches every selected manufacturer concurrently.
type Runner struct {
	Workers int
	// Timeout bounds the whole run. Zero means no limit beyond ctx.
	Timeout time.Duration
	// MaxItems caps rows per manufacturer. Zero means no cap.
	MaxItems int
	// NewSource defaults to NewSource with Fetcher.
	NewSource func(config.Manufacturer) (Source, error)
	Fetcher   *Fetcher
}

// Result is the combined batch of a run.
type Result struct {
	Rows []model.Row
	// Scraped lists every manufacturer attempted, in registry order.
	Scraped []string
	// BotProtected lists manufacturers whose source refused us.
	BotProtected []string
	Counts       map[string]int
	Assortments  int
}

type outcome struct {
	rows        []model.Row
	blocked     bool
	assortments int
}

// Run fetches ms with at most Workers sources in flight. The first source
// failure that is not bot protection cancels the others and is returned.
func (r *Runner) Run(ctx context.Context, ms []config.Manufacturer) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(ms) && len(ms) > 0 {
		workers = len(ms)
	}

	outs := make([]outcome, len(ms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	obs.Logger.Info("scrape_begin", "manufacturers", len(ms), "workers", workers)
	for i, m := range ms {
		g.Go(func() error {
			out, err := r.one(gctx, m)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		obs.Logger.Error("scrape_failed", "error", err)
		return Result{}, err
	}

	res := Result{Counts: make(map[string]int, len(ms))}
	for i, m := range ms {
		res.Scraped = append(res.Scraped, m.Code)
		if outs[i].blocked {
			res.BotProtected = append(res.BotProtected, m.Code)
			continue
		}
		res.Rows = append(res.Rows, outs[i].rows...)
		res.Counts[m.Code] = len(outs[i].rows)
		res.Assortments += outs[i].assortments
	}
	obs.Logger.Info("scrape_done", "rows", len(res.Rows), "bot_protected", len(res.BotProtected), "assortments", res.Assortments)
	return res, nil
}

func (r *Runner) one(ctx context.Context, m config.Manufacturer) (outcome, error) {
	newSource := r.NewSource
	if newSource == nil {
		f := r.Fetcher
		if f == nil {
			f = NewFetcher(30*time.Second, "")
		}
		newSource = func(m config.Manufacturer) (Source, error) { return NewSource(m, f) }
	}
	src, err := newSource(m)
	if err != nil {
		return outcome{}, &SourceError{Manufacturer: m.Code, Err: err}
	}

	start := time.Now()
	rows, err := src.Fetch(ctx)
	if err != nil {
		var se *SourceError
		if !errors.As(err, &se) {
			se = &SourceError{Manufacturer: m.Code, Err: err}
		}
		if errors.Is(se, ErrBotProtected) {
			obs.Logger.Warn("source_bot_protected", "manufacturer", m.Code, "error", se.Error())
			return outcome{blocked: true}, nil
		}
		return outcome{}, se
	}

	out := outcome{rows: make([]model.Row, 0, len(rows))}
	for _, row := range rows {
		if isAssortment(row) {
			out.assortments++
			continue
		}
		if r.MaxItems > 0 && len(out.rows) >= r.MaxItems {
			break
		}
		out.rows = append(out.rows, withDefaults(row, m))
	}
	obs.Logger.Info("source_done", "manufacturer", m.Code, "rows", len(out.rows), "ms", time.Since(start).Milliseconds())
	return out, nil
}

func isAssortment(r model.Row) bool {
	return strings.Contains(strings.ToLower(r.Name), "assortment") ||
		strings.Contains(strings.ToLower(r.Description), "assortment")
}

func withDefaults(r model.Row, m config.Manufacturer) model.Row {
	if r.Manufacturer == "" {
		r.Manufacturer = m.Code
	}
	fill := func(col string, dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			r.MarkPresent(col)
		}
	}
	fill("coe", &r.COE, m.Defaults.COE)
	fill("type", &r.Type, m.Defaults.Type)
	fill("stock_type", &r.StockType, m.Defaults.StockType)
	return r
}
