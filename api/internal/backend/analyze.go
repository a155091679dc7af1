package backend

import (
	"errors"
	"io"
	"math"
	"net/http"
	"path"
	"strings"
	"time"

	"nutrisnap/api/internal/logx"
	"nutrisnap/api/internal/nutrition"
	"nutrisnap/api/internal/store"
)

const MaxImageBytes = 5 << 20

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Analyze classifies the uploaded image, estimates one serving and records it.
func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+1<<20)
	f, hdr, err := r.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image too large (>5MB)")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "image field required")
		return
	}
	defer f.Close()

	mediaType := strings.ToLower(strings.TrimSpace(hdr.Header.Get("Content-Type")))
	if !allowedTypes[mediaType] {
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported image type")
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read image: "+err.Error())
		return
	}
	if len(data) > MaxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large (>5MB)")
		return
	}

	img := nutrition.Image{Data: data, Size: int64(len(data)), MediaType: mediaType}
	if hdr.Filename != "" {
		img.Name = path.Base(hdr.Filename)
	}

	t0 := time.Now()
	label, err := h.classifier.Classify(r.Context(), img)
	if err != nil {
		writeError(w, http.StatusBadGateway, "classify: "+err.Error())
		return
	}
	s := Calc(label.Food)
	inferMS := h.since(t0).Milliseconds()

	saved, err := h.store.SaveAnalysis(r.Context(), store.NewRecord{
		FileName:   img.Name,
		Food:       s.Food,
		Confidence: round4(label.Confidence),
		Calories:   s.Calories,
		Protein:    s.Protein,
		Carbs:      s.Carbs,
		Fat:        s.Fat,
	})
	if err != nil {
		logx.Error().Err(err).Str("file", img.Name).Msg("save analysis")
		writeError(w, http.StatusInternalServerError, "save analysis failed")
		return
	}

	uploadID := nutrition.NumberID(saved.UploadID)
	ts := nutrition.At(saved.CreatedAt)
	logx.Info().Str("food", s.Food).Float64("confidence", label.Confidence).
		Int64("record_id", saved.RecordID).Int64("inference_ms", inferMS).Msg("analyzed")

	writeJSON(w, http.StatusOK, nutrition.Analysis{
		Food:        s.Food,
		Confidence:  round4(label.Confidence),
		Calories:    float64(s.Calories),
		ServingG:    float64(s.ServingG),
		ProteinG:    s.Protein,
		CarbsG:      s.Carbs,
		FatG:        s.Fat,
		InferenceMS: float64(inferMS),
		RecordID:    nutrition.NumberID(saved.RecordID),
		UploadID:    &uploadID,
		Timestamp:   &ts,
	})
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
