package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"nutrisnap/api/internal/classify"
	"nutrisnap/api/internal/gateway"
	"nutrisnap/api/internal/nutrition"
	"nutrisnap/api/internal/store"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, d, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := New(store.NewHistoryRepo(db, d), classify.NewHint(Foods(), DefaultFood))
	h.since = func(time.Time) time.Duration { return 12 * time.Millisecond }
	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func upload(t *testing.T, url, name, mediaType string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="`+name+`"`)
	hdr.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	resp, err := http.Post(url+"/analyze", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCalc(t *testing.T) {
	cases := map[string]int{"pizza": 399, "banana": 105, "spaghetti": 316, "salad": 90, "sushi": 399}
	for food, want := range cases {
		if got := Calc(food).Calories; got != want {
			t.Errorf("%s: %d kcal, want %d", food, got, want)
		}
	}
	if s := Calc("Banana"); s.ServingG != 118 || s.Protein != 1.1 || s.Food != "banana" {
		t.Errorf("banana = %+v", s)
	}
}

func TestAnalyzeThenHistory(t *testing.T) {
	srv := newServer(t)

	resp := upload(t, srv.URL, "banana.png", "image/png", []byte("png"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var a nutrition.Analysis
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		t.Fatal(err)
	}
	if a.Food != "banana" || a.Confidence != 0.85 || a.Calories != 105 || a.ServingG != 118 || a.InferenceMS != 12 {
		t.Errorf("analysis = %+v", a)
	}
	if a.RecordID.IsZero() || a.UploadID == nil || a.Timestamp == nil {
		t.Errorf("ids missing: %+v", a)
	}
	if _, ok := a.Timestamp.Time(); !ok {
		t.Errorf("timestamp %q not parseable", a.Timestamp.String())
	}

	upload(t, srv.URL, "lunch.jpg", "image/jpeg", []byte("jpg"))

	entries, err := gateway.New(srv.URL, time.Second).FetchHistory(context.Background(), 20)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Food != "pizza" || entries[0].Confidence != 0.8 || entries[0].Calories != 399 {
		t.Errorf("newest = %+v", entries[0])
	}
	if entries[1].FileName == nil || *entries[1].FileName != "banana.png" {
		t.Errorf("file name = %v", entries[1].FileName)
	}
	if entries[1].ID != a.RecordID {
		t.Errorf("id = %v, want %v", entries[1].ID, a.RecordID)
	}
}

func TestAnalyzeRejects(t *testing.T) {
	srv := newServer(t)

	if resp := upload(t, srv.URL, "doc.gif", "image/gif", []byte("gif")); resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("gif: status %d", resp.StatusCode)
	}
	big := make([]byte, MaxImageBytes+1)
	if resp := upload(t, srv.URL, "big.jpg", "image/jpeg", big); resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("big: status %d", resp.StatusCode)
	}
	resp, err := http.Post(srv.URL+"/analyze", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("no file: status %d", resp.StatusCode)
	}
}

func TestHistoryLimits(t *testing.T) {
	srv := newServer(t)
	for i := 0; i < 3; i++ {
		upload(t, srv.URL, "salad.jpg", "image/jpeg", []byte{1})
	}
	gw := gateway.New(srv.URL, time.Second)
	entries, err := gw.FetchHistory(context.Background(), 2)
	if err != nil || len(entries) != 2 {
		t.Fatalf("limit 2: %d entries, %v", len(entries), err)
	}

	resp, err := http.Get(srv.URL + "/history?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad limit: status %d", resp.StatusCode)
	}
}

func TestNutritionLookup(t *testing.T) {
	srv := newServer(t)
	gw := gateway.New(srv.URL, time.Second)

	got, err := gw.FetchNutrition(context.Background(), "Pizza")
	if err != nil {
		t.Fatalf("FetchNutrition: %v", err)
	}
	if got["food"] != "pizza" || got["calories_per_100g"] != json.Number("266") || got["default_serving_g"] != json.Number("150") {
		t.Errorf("lookup = %v", got)
	}

	_, err = gw.FetchNutrition(context.Background(), "sushi")
	se, ok := gateway.AsServiceError(err)
	if !ok || se.Status != http.StatusNotFound {
		t.Errorf("unknown food: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body["ok"] {
		t.Errorf("health = %v %v", body, err)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:5173"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("foreign origin = %d %v", rec.Code, rec.Header())
	}
}
