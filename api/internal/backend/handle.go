package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nutrisnap/api/internal/classify"
	"nutrisnap/api/internal/logx"
	"nutrisnap/api/internal/store"
)

// Store persists analyses and serves the history list.
type Store interface {
	SaveAnalysis(ctx context.Context, rec store.NewRecord) (store.SavedRecord, error)
	List(ctx context.Context, limit int) ([]store.HistoryRow, error)
}

type Handle struct {
	store      Store
	classifier classify.Engine
	since      func(time.Time) time.Duration
}

func New(s Store, c classify.Engine) *Handle {
	return &Handle{store: s, classifier: c, since: time.Since}
}

// Routes registers the API on mux.
func (h *Handle) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/analyze", h.Analyze)
	mux.HandleFunc("/history", h.History)
	mux.HandleFunc("/nutrition", h.Nutrition)
}

func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Error bodies follow the {"detail": "..."} shape clients already know.
func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warn().Err(err).Msg("write response")
	}
}

// CORS allows the browser client on origins to call the API.
func CORS(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o := r.Header.Get("Origin"); o != "" && allowed[o] {
			w.Header().Set("Access-Control-Allow-Origin", o)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
