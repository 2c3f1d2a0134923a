package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyLookup
)

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// lookup is filled in by tagRoute once mux has matched a catalog route.
type lookup struct {
	route string
	vars  map[string]string
}

type statusRecorder struct {
	h  http.ResponseWriter
	st int
	n  int
}

func (w *statusRecorder) Header() http.Header { return w.h.Header() }
func (w *statusRecorder) WriteHeader(code int) {
	w.st = code
	w.h.WriteHeader(code)
}
func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.h.Write(b)
	w.n += n
	return n, err
}

// WithRequestID echoes X-Request-Id or assigns a new one.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

// tagRoute runs inside the router and records the matched template and
// the product key or stable id being looked up.
func tagRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l, ok := r.Context().Value(ctxKeyLookup).(*lookup); ok {
			if cur := mux.CurrentRoute(r); cur != nil {
				l.route, _ = cur.GetPathTemplate()
			}
			l.vars = mux.Vars(r)
		}
		next.ServeHTTP(w, r)
	})
}

// WithLogging writes one http_request line per request. Unmatched requests
// are logged with route "unmatched".
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{h: w, st: 200}
		l := &lookup{route: "unmatched"}
		next.ServeHTTP(sr, r.WithContext(context.WithValue(r.Context(), ctxKeyLookup, l)))
		attrs := []any{
			"method", r.Method,
			"route", l.route,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", sr.st,
			"bytes", sr.n,
			"latency_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id", RequestIDFromContext(r.Context()),
		}
		if k := l.vars["key"]; k != "" {
			attrs = append(attrs, "product_key", k)
		}
		if id := l.vars["stable_id"]; id != "" {
			attrs = append(attrs, "stable_id", id)
		}
		obs.Logger.Info("http_request", attrs...)
	})
}
