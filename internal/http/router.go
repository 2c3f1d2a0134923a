package httpapi

import (
	"expvar"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := mux.NewRouter()
	r.Use(tagRoute)
	r.HandleFunc("/glassitems", app.listItemsHandler).Methods(http.MethodGet)
	r.HandleFunc("/products/{key:.+}", app.getProductHandler).Methods(http.MethodGet)
	r.HandleFunc("/items/{stable_id}", app.getItemHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", app.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/debug/metrics", app.metricsHandler).Methods(http.MethodGet)
	r.Handle("/debug/vars", expvar.Handler())
	r.HandleFunc("/openapi.yaml", app.openapiHandler).Methods(http.MethodGet)
	r.HandleFunc("/docs", app.docsHandler).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return WithRequestID(WithLogging(r))
}
