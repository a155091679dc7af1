package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"nutrisnap/api/internal/classify"
	"nutrisnap/api/internal/nutrition"
	"nutrisnap/api/internal/util"
)

type Engine struct {
	APIKey string
	Model  string
	Foods  []string
}

func New(apiKey, model string, foods []string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		Foods:  foods,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

type answer struct {
	Food       string  `json:"food"`
	Confidence float64 `json:"confidence"`
}

// Classify asks the model to pick one of Foods for the photo.
func (e *Engine) Classify(ctx context.Context, img nutrition.Image) (classify.Label, error) {
	if e.APIKey == "" {
		return classify.Label{}, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return classify.Label{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(e.Foods))},
	}

	parts := []genai.Part{
		genai.Text(`Return JSON {"food": string, "confidence": number}.`),
		&genai.Blob{MIMEType: util.PickMIME(img.MediaType, img.Data), Data: img.Data},
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return classify.Label{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		return parseAnswer(firstText(resp))
	}
	return classify.Label{}, lastErr
}

func systemPrompt(foods []string) string {
	return "You classify a single food photo. Answer with exactly one label from this list: " +
		strings.Join(foods, ", ") +
		". confidence is your probability in [0,1]. Output only JSON."
}

func parseAnswer(txt string) (classify.Label, error) {
	txt = util.StripCodeFences(txt)
	if txt == "" {
		return classify.Label{}, fmt.Errorf("gemini classify: empty response")
	}
	var a answer
	if err := json.Unmarshal([]byte(txt), &a); err != nil {
		return classify.Label{}, fmt.Errorf("gemini classify: bad JSON: %w", err)
	}
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return classify.Label{Food: a.Food, Confidence: a.Confidence}, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
