package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/fairyhunter13/glass-catalog-updater/internal/config"
	"github.com/fairyhunter13/glass-catalog-updater/internal/export"
	httpopenapi "github.com/fairyhunter13/glass-catalog-updater/internal/http/openapi"
	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
	"github.com/fairyhunter13/glass-catalog-updater/internal/store"
)

// App serves a snapshot of the store. Reload swaps in a fresh snapshot.
type App struct {
	Cfg config.Config

	mu       sync.RWMutex
	store    *store.Store
	loadedAt time.Time

	closing atomic.Bool
	started time.Time
}

func NewApp(cfg config.Config, st *store.Store) *App {
	now := time.Now()
	return &App{Cfg: cfg, store: st, loadedAt: now, started: now}
}

// Reload reopens the database file the current snapshot came from.
func (a *App) Reload() error {
	a.mu.RLock()
	path := a.store.Path()
	a.mu.RUnlock()
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.store = st
	a.loadedAt = time.Now()
	a.mu.Unlock()
	obs.Logger.Info("store_reloaded", "path", path, "products", st.Len())
	return nil
}

func (a *App) StartShutdown() {
	a.closing.Store(true)
}

func (a *App) snapshot() (*store.Store, time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store, a.loadedAt
}

func boolQuery(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(name + " must be a boolean")
	}
	return b, nil
}

func (a *App) listItemsHandler(w http.ResponseWriter, r *http.Request) {
	include, err := boolQuery(r, "include_discontinued")
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	strip, err := boolQuery(r, "strip_metadata")
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	st, _ := a.snapshot()
	writeJSON(w, export.Build(st, export.Options{IncludeDiscontinued: include, StripMetadata: strip}))
}

func (a *App) getProductHandler(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseKey(mux.Vars(r)["key"])
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_key", "expected MFR:CODE")
		return
	}
	st, _ := a.snapshot()
	p, ok := st.Get(key.String())
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	writeJSON(w, p)
}

func (a *App) getItemHandler(w http.ResponseWriter, r *http.Request) {
	st, _ := a.snapshot()
	p, ok := st.FindStableID(mux.Vars(r)["stable_id"])
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	writeJSON(w, export.NewItem(p, false))
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	st, loadedAt := a.snapshot()
	var available, discontinued, withID int
	for _, p := range st.Products {
		if p.Lifecycle.IsDiscontinued() {
			discontinued++
		} else {
			available++
		}
		if p.StableID != "" {
			withID++
		}
	}
	m := map[string]any{
		"products":       st.Len(),
		"available":      available,
		"discontinued":   discontinued,
		"with_stable_id": withID,
		"last_updated":   st.LastUpdated,
		"loaded_at":      loadedAt.UTC().Format(time.RFC3339),
		"uptime_sec":     time.Since(a.started).Seconds(),
	}
	writeJSON(w, m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Glass Catalog API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
