// Command glassdb maintains the glass product database: update runs the
// sources and reconciles the batch, export writes the public document and
// serve exposes the database read-only over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fairyhunter13/glass-catalog-updater/internal/config"
	"github.com/fairyhunter13/glass-catalog-updater/internal/export"
	"github.com/fairyhunter13/glass-catalog-updater/internal/gitcommit"
	httpapi "github.com/fairyhunter13/glass-catalog-updater/internal/http"
	"github.com/fairyhunter13/glass-catalog-updater/internal/ingest"
	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
	"github.com/fairyhunter13/glass-catalog-updater/internal/scrape"
	"github.com/fairyhunter13/glass-catalog-updater/internal/store"
	"github.com/fairyhunter13/glass-catalog-updater/internal/updater"
)

const usage = `usage: glassdb <command> [flags]

commands:
  update   fetch sources (or -from-csv) and reconcile into the database
  export   write the public glass item document
  serve    serve the database over HTTP
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	obs.SetOutput(stderr)
	obs.InitLogger(cfg.LogLevel)
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "update":
		err = runUpdate(cfg, args[1:], stdout, stderr)
	case "export":
		err = runExport(cfg, args[1:], stdout, stderr)
	case "serve":
		err = runServe(cfg, args[1:], stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, ingest.ErrDuplicateKeys):
		fmt.Fprintln(stderr, "update aborted: duplicate product keys, database not modified")
		return 1
	case errors.Is(err, scrape.ErrSourceFailed):
		fmt.Fprintf(stderr, "update aborted: %v\n", err)
		return 1
	default:
		fmt.Fprintf(stderr, "glassdb %s: %v\n", args[0], err)
		return 1
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runUpdate(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dryRun              = fs.Bool("dry-run", false, "compute and print the summary without writing anything")
		mfr                 = fs.String("mfr", "", "only fetch and sweep this manufacturer code")
		testMode            = fs.Bool("test", false, fmt.Sprintf("fetch at most %d items per manufacturer", scrape.TestModeItems))
		maxItems            = fs.Int("max-items", 0, "cap items per manufacturer (0 = no cap)")
		fromCSV             = fs.String("from-csv", "", "reconcile this CSV batch instead of running sources")
		scraped             = fs.String("scraped", "", "with -from-csv: comma separated manufacturers the batch covers")
		dbPath              = fs.String("db", cfg.DatabaseFile, "database file")
		registryPath        = fs.String("manufacturers", cfg.ManufacturersFile, "manufacturer registry (YAML)")
		batchCSV            = fs.String("batch-csv", cfg.BatchCSV, "where to keep the combined scraped batch")
		exportPath          = fs.String("export", cfg.ExportPath, "write the export document here after saving")
		stripMetadata       = fs.Bool("strip-metadata", false, "drop status and dates from the export")
		includeDiscontinued = fs.Bool("include-discontinued", false, "keep discontinued products in the export")
		autoCommit          = fs.Bool("auto-commit", false, "git commit the database when something changed")
		workers             = fs.Int("workers", cfg.ScrapeWorkers, "concurrent sources")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := updater.Options{
		DatabaseFile:        *dbPath,
		ExcludedURLsFile:    cfg.ExcludedURLsFile,
		SKUOverridesFile:    cfg.SKUOverridesFile,
		BatchCSV:            *batchCSV,
		FromCSV:             *fromCSV,
		DryRun:              *dryRun,
		ExportPath:          *exportPath,
		StripMetadata:       *stripMetadata,
		IncludeDiscontinued: *includeDiscontinued,
		AutoCommit:          *autoCommit,
	}
	u := &updater.Updater{Out: stdout}

	if *fromCSV != "" {
		opts.Scraped = splitList(*scraped)
		if *mfr != "" {
			opts.Scraped = []string{*mfr}
		}
	} else {
		reg, err := config.LoadRegistry(*registryPath)
		if err != nil {
			return err
		}
		ms, err := reg.Select(*mfr)
		if err != nil {
			return err
		}
		opts.Manufacturers = ms
		limit := *maxItems
		if *testMode && limit == 0 {
			limit = scrape.TestModeItems
		}
		u.Runner = &scrape.Runner{
			Workers:  *workers,
			Timeout:  cfg.ScrapeTimeout,
			MaxItems: limit,
			Fetcher:  scrape.NewFetcher(cfg.HTTPTimeout, cfg.UserAgent),
		}
		fmt.Fprintf(stdout, "Fetching %d manufacturer(s): %s\n", len(ms), strings.Join(config.Codes(ms), ", "))
	}
	if *autoCommit {
		dir, _ := filepath.Abs(filepath.Dir(*dbPath))
		u.Committer = gitcommit.Committer{Dir: dir}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	out, err := u.Run(ctx, opts)
	if err != nil {
		return err
	}
	if out.Saved {
		fmt.Fprintf(stdout, "\nDatabase saved to %s\n", opts.DatabaseFile)
	}
	if out.Exported != "" {
		fmt.Fprintf(stdout, "Exported to %s\n", out.Exported)
	}
	if out.Committed {
		fmt.Fprintln(stdout, "Changes committed to git")
	}
	return nil
}

func runExport(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dbPath              = fs.String("db", cfg.DatabaseFile, "database file")
		out                 = fs.String("o", cfg.ExportPath, "output path")
		stripMetadata       = fs.Bool("strip-metadata", false, "drop status and dates")
		includeDiscontinued = fs.Bool("include-discontinued", false, "keep discontinued products")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("export: -o (or EXPORT_PATH) is required")
	}
	doc, err := updater.ExportFile(*dbPath, *out, export.Options{
		IncludeDiscontinued: *includeDiscontinued,
		StripMetadata:       *stripMetadata,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported %d glass items to %s (version %s, generated %s)\n", doc.ItemCount, *out, doc.Version, doc.Generated)
	return nil
}

func runServe(cfg config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", cfg.DatabaseFile, "database file")
	addr := fs.String("addr", cfg.HTTPAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	obs.Logger.Info("service_starting", "database", *dbPath)
	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	app := httpapi.NewApp(cfg, st)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		obs.Logger.Info("http_listen", "addr", *addr, "products", st.Len())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	for {
		select {
		case err := <-errc:
			obs.Logger.Error("http_server_error", "error", err)
			return err
		case s := <-sigc:
			if s == syscall.SIGHUP {
				if err := app.Reload(); err != nil {
					obs.Logger.Error("store_reload_failed", "error", err)
				}
				continue
			}
			obs.Logger.Info("shutdown_signal", "signal", s.String())
			app.StartShutdown()
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				obs.Logger.Error("http_shutdown_error", "error", err)
				return err
			}
			obs.Logger.Info("service_stopped")
			return nil
		}
	}
}
