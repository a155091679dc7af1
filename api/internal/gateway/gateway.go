package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nutrisnap/api/internal/logx"
	"nutrisnap/api/internal/nutrition"
)

// Gateway is the set of remote capabilities the session controller needs.
type Gateway interface {
	AnalyzeImage(ctx context.Context, img nutrition.Image) (*nutrition.Analysis, error)
	FetchHistory(ctx context.Context, limit int) ([]nutrition.HistoryEntry, error)
	FetchNutrition(ctx context.Context, food string) (nutrition.Lookup, error)
}

// Client talks to the NutriSnap HTTP API. It holds no state besides its
// configuration: one call is one round trip, without retries or caching.
type Client struct {
	BaseURL string
	httpc   *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc:   httpc,
	}
}

func (c *Client) AnalyzeImage(ctx context.Context, img nutrition.Image) (*nutrition.Analysis, error) {
	body, contentType, err := multipartImage(img)
	if err != nil {
		return nil, &ServiceError{Op: OpAnalyze, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/analyze", body)
	if err != nil {
		return nil, &ServiceError{Op: OpAnalyze, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	var out nutrition.Analysis
	if err := c.do(req, OpAnalyze, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchHistory(ctx context.Context, limit int) ([]nutrition.HistoryEntry, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/history?"+q.Encode(), nil)
	if err != nil {
		return nil, &ServiceError{Op: OpHistory, Err: err}
	}

	var out []nutrition.HistoryEntry
	if err := c.do(req, OpHistory, &out); err != nil {
		return nil, err
	}
	if out == nil {
		// a JSON null is as empty as []
		out = []nutrition.HistoryEntry{}
	}
	return out, nil
}

func (c *Client) FetchNutrition(ctx context.Context, food string) (nutrition.Lookup, error) {
	q := url.Values{}
	q.Set("food", food)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/nutrition?"+q.Encode(), nil)
	if err != nil {
		return nil, &ServiceError{Op: OpNutrition, Err: err}
	}

	var out nutrition.Lookup
	if err := c.do(req, OpNutrition, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, &ServiceError{Op: OpNutrition, Err: fmt.Errorf("empty response")}
	}
	return out, nil
}

// Health checks that the API answers /health with ok=true. It is not part of
// Gateway; the bot uses it for its own liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return &ServiceError{Op: OpHealth, Err: err}
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.do(req, OpHealth, &out); err != nil {
		return err
	}
	if !out.OK {
		return &ServiceError{Op: OpHealth, Err: fmt.Errorf("not ok")}
	}
	return nil
}

func (c *Client) do(req *http.Request, op Op, out any) error {
	req.Header.Set("Accept", "application/json")
	started := time.Now()

	resp, err := c.httpc.Do(req)
	if err != nil {
		logx.Warn().Err(err).Str("op", string(op)).Str("url", req.URL.Redacted()).Msg("request failed")
		return &ServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		logx.Warn().Str("op", string(op)).Int("status", resp.StatusCode).
			Str("body", strings.TrimSpace(string(x))).Msg("non-success response")
		return &ServiceError{Op: op, Status: resp.StatusCode}
	}
	// numbers in opaque records stay json.Number so they re-encode verbatim
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		logx.Warn().Err(err).Str("op", string(op)).Msg("bad response body")
		return &ServiceError{Op: op, Err: fmt.Errorf("bad JSON: %w", err)}
	}
	logx.Debug().Str("op", string(op)).Dur("took", time.Since(started)).Msg("request settled")
	return nil
}

func multipartImage(img nutrition.Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	name := img.Name
	if name == "" {
		name = "image"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(name)))
	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	h.Set("Content-Type", mediaType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

var _ Gateway = (*Client)(nil)
