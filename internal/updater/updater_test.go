package updater

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/glass-catalog-updater/internal/config"
	"github.com/fairyhunter13/glass-catalog-updater/internal/export"
	"github.com/fairyhunter13/glass-catalog-updater/internal/ingest"
	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
	"github.com/fairyhunter13/glass-catalog-updater/internal/scrape"
	"github.com/fairyhunter13/glass-catalog-updater/internal/store"
)

type recordingCommitter struct {
	msgs  []string
	paths []string
	err   error
}

func (c *recordingCommitter) Commit(_ context.Context, msg string, paths ...string) error {
	c.msgs = append(c.msgs, msg)
	c.paths = append(c.paths, paths...)
	return c.err
}

type staticSource struct {
	rows []model.Row
	err  error
}

func (s staticSource) Fetch(context.Context) ([]model.Row, error) { return s.rows, s.err }

type env struct {
	dir  string
	opts Options
	out  *bytes.Buffer
	git  *recordingCommitter
	u    *Updater
}

func newEnv(t *testing.T, sources map[string]scrape.Source) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{dir: dir, out: &bytes.Buffer{}, git: &recordingCommitter{}}
	e.opts = Options{
		DatabaseFile:     filepath.Join(dir, "glass_database.json"),
		ExcludedURLsFile: filepath.Join(dir, "excluded_urls.txt"),
		SKUOverridesFile: filepath.Join(dir, "sku_overrides.txt"),
		BatchCSV:         filepath.Join(dir, "batch.csv"),
		AutoCommit:       true,
	}
	for code := range sources {
		e.opts.Manufacturers = append(e.opts.Manufacturers, config.Manufacturer{Code: code})
	}
	e.u = &Updater{
		Runner: &scrape.Runner{Workers: 2, NewSource: func(m config.Manufacturer) (scrape.Source, error) {
			return sources[m.Code], nil
		}},
		Committer: e.git,
		Out:       e.out,
		Now:       func() time.Time { return time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC) },
	}
	return e
}

func TestRunFromSources(t *testing.T) {
	e := newEnv(t, map[string]scrape.Source{
		"BB": staticSource{rows: []model.Row{
			{Code: "001", Name: "Blue Rod", URL: "https://bb/1", Tags: `"blue", "unknown"`},
			{Code: "001", Name: "Blue Rod", URL: "https://bb/1"},
		}},
	})
	e.opts.ExportPath = filepath.Join(e.dir, "out", "glassitems.json")
	e.opts.StripMetadata = true

	res, err := e.u.Run(context.Background(), e.opts)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.Preprocess.Deduplicated)
	assert.Equal(t, 1, res.Report.Stats.New)
	assert.True(t, res.Saved)
	assert.Equal(t, e.opts.ExportPath, res.Exported)
	assert.True(t, res.Committed)
	assert.Equal(t, []string{"Update glass database: 1 new, 0 updated, 0 discontinued"}, e.git.msgs)
	assert.Equal(t, []string{e.opts.DatabaseFile}, e.git.paths)
	assert.Contains(t, e.out.String(), "+ NEW: BB - Blue Rod (001)")

	st, err := store.Open(e.opts.DatabaseFile)
	require.NoError(t, err)
	p, ok := st.Get("BB:001")
	require.True(t, ok)
	assert.Equal(t, "4UBG43", p.StableID)
	assert.Equal(t, "2025-04-01", p.AddedDate)
	require.NotNil(t, st.LastUpdated)

	batch, err := ingest.ReadCSVFile(e.opts.BatchCSV)
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	_, err = os.Stat(e.opts.ExportPath)
	require.NoError(t, err)

	// second identical run changes nothing and does not commit
	res, err = e.u.Run(context.Background(), e.opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Stats.Unchanged)
	assert.False(t, res.Committed)
	assert.Len(t, e.git.msgs, 1)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	e := newEnv(t, map[string]scrape.Source{"BB": staticSource{rows: []model.Row{{Code: "001", URL: "u"}}}})
	e.opts.DryRun = true
	e.opts.ExportPath = filepath.Join(e.dir, "export.json")

	res, err := e.u.Run(context.Background(), e.opts)
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Equal(t, 1, res.Report.Stats.New)
	assert.Contains(t, e.out.String(), "DRY RUN")
	for _, p := range []string{e.opts.DatabaseFile, e.opts.ExportPath, e.opts.BatchCSV} {
		_, err := os.Stat(p)
		assert.True(t, errors.Is(err, os.ErrNotExist), p)
	}
	assert.Empty(t, e.git.msgs)
}

func TestRunConflictLeavesStoreUntouched(t *testing.T) {
	e := newEnv(t, nil)
	seed := store.New(e.opts.DatabaseFile)
	seed.Put(model.NewProduct(model.Row{Manufacturer: "EF", Code: "9", URL: "c"}))
	require.NoError(t, seed.Save(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	before, err := os.ReadFile(e.opts.DatabaseFile)
	require.NoError(t, err)

	csvPath := filepath.Join(e.dir, "batch_in.csv")
	require.NoError(t, ingest.WriteCSVFile(csvPath, []model.Row{
		{Manufacturer: "BB", Code: "001", Name: "One", URL: "https://bb/a"},
		{Manufacturer: "BB", Code: "001", Name: "Other", URL: "https://bb/b"},
	}))
	e.opts.FromCSV = csvPath

	_, err = e.u.Run(context.Background(), e.opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ingest.ErrDuplicateKeys))
	assert.Contains(t, e.out.String(), "Key: BB:001")

	after, err := os.ReadFile(e.opts.DatabaseFile)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Empty(t, e.git.msgs)
}

func TestRunOverrideResolvesConflict(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, os.WriteFile(e.opts.SKUOverridesFile, []byte("# url\tsku\nhttps://bb/b\t002\n"), 0o644))
	csvPath := filepath.Join(e.dir, "batch_in.csv")
	require.NoError(t, ingest.WriteCSVFile(csvPath, []model.Row{
		{Manufacturer: "BB", Code: "001", Name: "One", URL: "https://bb/a"},
		{Manufacturer: "BB", Code: "001", Name: "Other", URL: "https://bb/b"},
	}))
	e.opts.FromCSV = csvPath

	res, err := e.u.Run(context.Background(), e.opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Preprocess.Overridden)
	assert.Equal(t, 2, res.Report.Stats.New)
}

func TestRunSourceFailureAborts(t *testing.T) {
	e := newEnv(t, map[string]scrape.Source{
		"BB": staticSource{err: errors.New("dial tcp: connection refused")},
	})
	_, err := e.u.Run(context.Background(), e.opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scrape.ErrSourceFailed))
	_, statErr := os.Stat(e.opts.DatabaseFile)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRunBotProtectedKeepsCatalog(t *testing.T) {
	e := newEnv(t, map[string]scrape.Source{
		"BB":  staticSource{rows: []model.Row{{Code: "001", URL: "u1"}}},
		"GAF": staticSource{rows: []model.Row{{Code: "7", URL: "u7"}}},
	})
	_, err := e.u.Run(context.Background(), e.opts)
	require.NoError(t, err)

	e.u.Runner.NewSource = func(m config.Manufacturer) (scrape.Source, error) {
		if m.Code == "GAF" {
			return staticSource{err: &scrape.SourceError{Manufacturer: "GAF", Status: 403}}, nil
		}
		return staticSource{}, nil
	}
	res, err := e.u.Run(context.Background(), e.opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Stats.Discontinued)
	assert.Equal(t, []string{"GAF"}, res.Report.Skipped)

	st, err := store.Open(e.opts.DatabaseFile)
	require.NoError(t, err)
	bb, _ := st.Get("BB:001")
	gaf, _ := st.Get("GAF:7")
	assert.True(t, bb.Lifecycle.IsDiscontinued())
	assert.False(t, gaf.Lifecycle.IsDiscontinued())
}

func TestRunCommitFailureIsNotFatal(t *testing.T) {
	e := newEnv(t, map[string]scrape.Source{"BB": staticSource{rows: []model.Row{{Code: "001", URL: "u"}}}})
	e.git.err = errors.New("not a git repository")
	res, err := e.u.Run(context.Background(), e.opts)
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.False(t, res.Committed)
}

func TestExportFile(t *testing.T) {
	e := newEnv(t, map[string]scrape.Source{"BB": staticSource{rows: []model.Row{{Code: "001", Name: "Blue", URL: "u"}}}})
	_, err := e.u.Run(context.Background(), e.opts)
	require.NoError(t, err)

	path := filepath.Join(e.dir, "public.json")
	doc, err := ExportFile(e.opts.DatabaseFile, path, export.Options{StripMetadata: true})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ItemCount)
	assert.Nil(t, doc.GlassItems[0].Metadata)
	assert.Equal(t, "4UBG43", doc.GlassItems[0].StableID)
}
