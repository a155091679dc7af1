package nutrition

import (
	"strings"
)

// Image is a user-selected photo waiting to be analyzed.
type Image struct {
	Data      []byte
	Name      string
	Size      int64
	MediaType string
}

// IsImage reports whether a declared media type names an image.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

// Lookup is the opaque record returned by the nutrition database.
type Lookup map[string]any

// Analysis is the classification and nutrition estimate for one photo.
type Analysis struct {
	Food        string  `json:"food"`
	Confidence  float64 `json:"confidence"`
	Calories    float64 `json:"calories"`
	ServingG    float64 `json:"serving_g"`
	ProteinG    float64 `json:"protein_g"`
	CarbsG      float64 `json:"carbs_g"`
	FatG        float64 `json:"fat_g"`
	InferenceMS float64 `json:"inference_ms"`

	RecordID  RecordID   `json:"record_id"`
	UploadID  *RecordID  `json:"upload_id,omitempty"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`

	NutritionLookup Lookup `json:"nutrition_lookup,omitzero"`
}

// Clone returns a deep copy, lookup included.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	out := *a
	if a.UploadID != nil {
		id := *a.UploadID
		out.UploadID = &id
	}
	if a.Timestamp != nil {
		ts := *a.Timestamp
		out.Timestamp = &ts
	}
	out.NutritionLookup = a.NutritionLookup.Clone()
	return &out
}

// Clone deep-copies the lookup; nested objects and arrays are copied too.
func (l Lookup) Clone() Lookup {
	if l == nil {
		return nil
	}
	return cloneValue(map[string]any(l)).(map[string]any)
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = cloneValue(e)
		}
		return m
	case Lookup:
		return Lookup(cloneValue(map[string]any(x)).(map[string]any))
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// HistoryEntry is one past analysis as returned by the history service.
type HistoryEntry struct {
	ID         RecordID  `json:"id"`
	Timestamp  Timestamp `json:"timestamp"`
	Food       string    `json:"food"`
	Calories   float64   `json:"calories"`
	ProteinG   float64   `json:"protein_g"`
	CarbsG     float64   `json:"carbs_g"`
	FatG       float64   `json:"fat_g"`
	Confidence float64   `json:"confidence"`
	FileName   *string   `json:"file_name,omitempty"`
}
