package backend

import (
	"net/http"
	"strconv"
	"strings"

	"nutrisnap/api/internal/logx"
	"nutrisnap/api/internal/nutrition"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// History lists the latest records across all uploads, newest first.
func (h *Handle) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	limit := DefaultHistoryLimit
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
			return
		}
		limit = v
	}
	limit = min(limit, MaxHistoryLimit)

	rows, err := h.store.List(r.Context(), limit)
	if err != nil {
		logx.Error().Err(err).Int("limit", limit).Msg("list history")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	out := make([]nutrition.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, nutrition.HistoryEntry{
			ID:         nutrition.NumberID(row.ID),
			Timestamp:  nutrition.At(row.CreatedAt),
			Food:       row.Food,
			Calories:   float64(row.Calories),
			ProteinG:   row.Protein,
			CarbsG:     row.Carbs,
			FatG:       row.Fat,
			Confidence: row.Confidence,
			FileName:   row.FileName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Nutrition returns the table row for ?food=, matched case-insensitively.
func (h *Handle) Nutrition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	food := r.URL.Query().Get("food")
	if strings.TrimSpace(food) == "" {
		writeError(w, http.StatusUnprocessableEntity, "food is required")
		return
	}
	f, ok := LookupFacts(food)
	if !ok {
		writeError(w, http.StatusNotFound, "Food not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}
