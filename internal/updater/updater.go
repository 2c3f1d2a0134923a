// Package updater runs one database update: fetch or load a batch, clean it,
// reconcile it into the store, then export and commit.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/glass-catalog-updater/internal/config"
	"github.com/fairyhunter13/glass-catalog-updater/internal/export"
	"github.com/fairyhunter13/glass-catalog-updater/internal/gitcommit"
	"github.com/fairyhunter13/glass-catalog-updater/internal/ingest"
	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
	"github.com/fairyhunter13/glass-catalog-updater/internal/reconcile"
	"github.com/fairyhunter13/glass-catalog-updater/internal/scrape"
	"github.com/fairyhunter13/glass-catalog-updater/internal/stableid"
	"github.com/fairyhunter13/glass-catalog-updater/internal/store"
)

// Committer records the saved database in version control.
type Committer interface {
	Commit(ctx context.Context, msg string, paths ...string) error
}

// Options describe one run.
type Options struct {
	DatabaseFile     string
	ExcludedURLsFile string
	SKUOverridesFile string
	// BatchCSV receives the combined scraped batch for review. Empty skips it.
	BatchCSV string

	// FromCSV reconciles an existing batch instead of running sources.
	FromCSV string
	// Scraped scopes the discontinued sweep of a FromCSV run. Nil sweeps everything.
	Scraped []string
	// Manufacturers are fetched when FromCSV is empty.
	Manufacturers []config.Manufacturer

	DryRun              bool
	ExportPath          string
	StripMetadata       bool
	IncludeDiscontinued bool
	AutoCommit          bool
}

// Updater wires the pipeline stages.
type Updater struct {
	Runner    *scrape.Runner
	Committer Committer
	// Out receives the human summary. Nil discards it.
	Out io.Writer
	Now func() time.Time
}

// Outcome reports what a run did.
type Outcome struct {
	RunID      string
	Fetched    int
	Preprocess ingest.Result
	Report     reconcile.Report
	Saved      bool
	Exported   string
	Committed  bool
}

func (u *Updater) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

func (u *Updater) out() io.Writer {
	if u.Out == nil {
		return io.Discard
	}
	return u.Out
}

// Run executes the update. A duplicate key conflict returns *ingest.ConflictError
// after printing the conflict report; a source failure returns *scrape.SourceError.
// Neither touches the store.
func (u *Updater) Run(ctx context.Context, opts Options) (Outcome, error) {
	out := Outcome{RunID: uuid.NewString()}
	log := obs.Logger.With("run_id", out.RunID)
	log.Info("update_begin", "database", opts.DatabaseFile, "dry_run", opts.DryRun, "from_csv", opts.FromCSV)

	rows, scope, err := u.batch(ctx, opts)
	if err != nil {
		log.Error("update_batch_failed", "error", err)
		return out, err
	}
	out.Fetched = len(rows)
	if opts.BatchCSV != "" && opts.FromCSV == "" && !opts.DryRun {
		if err := ingest.WriteCSVFile(opts.BatchCSV, rows); err != nil {
			return out, err
		}
		log.Info("batch_csv_written", "path", opts.BatchCSV, "rows", len(rows))
	}

	tables, err := ingest.LoadTables(opts.ExcludedURLsFile, opts.SKUOverridesFile)
	if err != nil {
		return out, err
	}
	out.Preprocess = ingest.Preprocess(rows, tables)

	today := model.Day(u.now())
	st, err := store.Update(opts.DatabaseFile, u.now, func(st *store.Store) (bool, error) {
		rep, err := reconcile.Reconcile(st, out.Preprocess.Rows, reconcile.Options{
			Today:                today,
			ScrapedManufacturers: scope.scraped,
			SkippedManufacturers: scope.skipped,
		})
		if err != nil {
			return false, err
		}
		ids, err := stableid.Assign(st.Products)
		if err != nil {
			return false, err
		}
		rep.StableIDs = &ids
		out.Report = rep
		fmt.Fprint(u.out(), rep.Summary(opts.DryRun))
		return !opts.DryRun, nil
	})
	if err != nil {
		var ce *ingest.ConflictError
		if errors.As(err, &ce) {
			fmt.Fprint(u.out(), ce.Report.String())
		}
		log.Error("update_failed", "error", err)
		return out, err
	}
	if opts.DryRun {
		log.Info("update_dry_run", "new", out.Report.Stats.New, "updated", out.Report.Stats.Updated, "discontinued", out.Report.Stats.Discontinued)
		return out, nil
	}
	out.Saved = true
	log.Info("store_saved", "path", opts.DatabaseFile, "products", st.Len())

	if opts.ExportPath != "" {
		doc := export.Build(st, export.Options{
			IncludeDiscontinued: opts.IncludeDiscontinued,
			StripMetadata:       opts.StripMetadata,
			Now:                 u.now(),
		})
		if err := export.WriteFile(opts.ExportPath, doc); err != nil {
			return out, err
		}
		out.Exported = opts.ExportPath
	}

	stats := out.Report.Stats
	if opts.AutoCommit && u.Committer != nil && stats.Total() > 0 {
		msg := gitcommit.Message(stats.New, stats.Updated, stats.Discontinued)
		if err := u.Committer.Commit(ctx, msg, opts.DatabaseFile); err != nil {
			log.Warn("git_commit_failed", "error", err)
		} else {
			out.Committed = true
		}
	}
	log.Info("update_done", "saved", out.Saved, "exported", out.Exported, "committed", out.Committed)
	return out, nil
}

type sweepScope struct {
	scraped []string
	skipped []string
}

func (u *Updater) batch(ctx context.Context, opts Options) ([]model.Row, sweepScope, error) {
	if opts.FromCSV != "" {
		rows, err := ingest.ReadCSVFile(opts.FromCSV)
		if err != nil {
			return nil, sweepScope{}, err
		}
		return rows, sweepScope{scraped: opts.Scraped}, nil
	}
	if u.Runner == nil {
		return nil, sweepScope{}, errors.New("no scrape runner configured")
	}
	res, err := u.Runner.Run(ctx, opts.Manufacturers)
	if err != nil {
		return nil, sweepScope{}, err
	}
	scraped := res.Scraped
	if scraped == nil {
		scraped = []string{}
	}
	return res.Rows, sweepScope{scraped: scraped, skipped: res.BotProtected}, nil
}

// ExportFile writes the export of the database at dbPath without updating it.
func ExportFile(dbPath, path string, opts export.Options) (export.Document, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return export.Document{}, err
	}
	doc := export.Build(st, opts)
	if err := export.WriteFile(path, doc); err != nil {
		return export.Document{}, err
	}
	return doc, nil
}
