package classify

import (
	"context"
	"strings"

	"nutrisnap/api/internal/nutrition"
)

const (
	HintConfidence    = 0.85
	DefaultConfidence = 0.80
)

// Hint labels a photo by the first known food its file name mentions and
// falls back to Default. It never fails.
type Hint struct {
	Foods   []string
	Default string
}

func NewHint(foods []string, def string) *Hint {
	return &Hint{Foods: foods, Default: def}
}

func (h *Hint) Name() string { return "hint" }

func (h *Hint) Classify(_ context.Context, img nutrition.Image) (Label, error) {
	name := strings.ToLower(img.Name)
	for _, f := range h.Foods {
		if f != "" && strings.Contains(name, f) {
			return Label{Food: f, Confidence: HintConfidence}, nil
		}
	}
	return Label{Food: h.Default, Confidence: DefaultConfidence}, nil
}
