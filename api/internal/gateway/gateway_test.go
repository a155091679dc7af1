package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nutrisnap/api/internal/nutrition"
)

const pizzaJSON = `{"food":"pizza","confidence":0.92,"calories":285,"serving_g":125,"protein_g":12,"carbs_g":36,"fat_g":10,"inference_ms":340,"record_id":"r1"}`

func TestAnalyzeImageSendsMultipart(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost || r.URL.Path != "/analyze" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		if string(b) != "jpegbytes" {
			t.Errorf("payload = %q", b)
		}
		if hdr.Filename != "lunch.jpg" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part content type = %q", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, pizzaJSON)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", 5*time.Second)
	got, err := c.AnalyzeImage(context.Background(), nutrition.Image{
		Data: []byte("jpegbytes"), Name: "lunch.jpg", Size: 9, MediaType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	want := &nutrition.Analysis{
		Food: "pizza", Confidence: 0.92, Calories: 285, ServingG: 125,
		ProteinG: 12, CarbsG: 36, FatG: 10, InferenceMS: 340,
		RecordID: nutrition.StringID("r1"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("round trips = %d, want 1", n)
	}
}

func TestFetchHistoryQueryAndOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history" || r.URL.Query().Get("limit") != "20" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = io.WriteString(w, `[
			{"id":2,"timestamp":"2025-03-04T12:30:00","food":"banana","calories":105,"protein_g":1.1,"carbs_g":23,"fat_g":0.3,"confidence":0.85,"file_name":"banana.png"},
			{"id":1,"timestamp":1741091400,"food":"pizza","calories":399,"protein_g":11,"carbs_g":33,"fat_g":10,"confidence":0.8}
		]`)
	}))
	defer srv.Close()

	got, err := New(srv.URL, time.Second).FetchHistory(context.Background(), 20)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(got) != 2 || got[0].Food != "banana" || got[1].Food != "pizza" {
		t.Fatalf("order not preserved: %+v", got)
	}
	if got[0].FileName == nil || *got[0].FileName != "banana.png" {
		t.Errorf("file name = %v", got[0].FileName)
	}
	if got[1].FileName != nil {
		t.Errorf("expected no file name, got %q", *got[1].FileName)
	}
	if got[0].ID != nutrition.NumberID(2) {
		t.Errorf("id = %v", got[0].ID)
	}
}

func TestFetchHistoryEmpty(t *testing.T) {
	for _, body := range []string{`[]`, `null`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		}))
		got, err := New(srv.URL, time.Second).FetchHistory(context.Background(), 5)
		srv.Close()
		if err != nil {
			t.Fatalf("%s: %v", body, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("%s: got %#v, want empty non-nil", body, got)
		}
	}
}

func TestFetchNutritionEscapesFood(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("food"); got != "mac & cheese" {
			t.Errorf("food = %q", got)
		}
		_, _ = io.WriteString(w, `{"food":"mac & cheese","calories_per_100g":164,"nested":{"a":[1,2]}}`)
	}))
	defer srv.Close()

	got, err := New(srv.URL, time.Second).FetchNutrition(context.Background(), "mac & cheese")
	if err != nil {
		t.Fatalf("FetchNutrition: %v", err)
	}
	want := nutrition.Lookup{
		"food":              "mac & cheese",
		"calories_per_100g": json.Number("164"),
		"nested":            map[string]any{"a": []any{json.Number("1"), json.Number("2")}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "<html>down</html>")
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second)

	_, err := c.FetchNutrition(context.Background(), "pizza")
	se, ok := AsServiceError(err)
	if !ok {
		t.Fatalf("want *ServiceError, got %T %v", err, err)
	}
	if se.Op != OpNutrition || se.Status != 503 || se.Transport() {
		t.Errorf("unexpected error %+v", se)
	}
	if se.Error() != "Nutrition failed: 503" {
		t.Errorf("message = %q", se.Error())
	}

	_, err = c.FetchHistory(context.Background(), 20)
	if err == nil || err.Error() != "History failed: 503" {
		t.Errorf("history error = %v", err)
	}
	_, err = c.AnalyzeImage(context.Background(), nutrition.Image{Data: []byte{1}, MediaType: "image/png"})
	if err == nil || err.Error() != "Analyze failed: 503" {
		t.Errorf("analyze error = %v", err)
	}
}

func TestTransportFailureIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).FetchHistory(context.Background(), 20)
	se, ok := AsServiceError(err)
	if !ok {
		t.Fatalf("want *ServiceError, got %T", err)
	}
	if !se.Transport() || se.Op != OpHistory {
		t.Errorf("unexpected error %+v", se)
	}
	if !strings.HasPrefix(se.Error(), "History failed: ") {
		t.Errorf("message = %q", se.Error())
	}
	if errors.Unwrap(se) == nil {
		t.Error("cause not exposed")
	}
}

func TestBadBodyIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[1,2,3]`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).FetchNutrition(context.Background(), "pizza")
	se, ok := AsServiceError(err)
	if !ok || !se.Transport() || se.Op != OpNutrition {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _ = New(srv.URL, time.Second).FetchNutrition(context.Background(), "pizza")
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestHealth(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !down.Load() {
			_, _ = io.WriteString(w, `{"ok":true}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":false}`)
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second)

	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	down.Store(true)
	if err := c.Health(context.Background()); err == nil || err.Error() != "Health failed: not ok" {
		t.Errorf("err = %v", err)
	}
}

func TestFetchNutritionKeepsLargeIntegers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"food":"pizza","usda_fdc_id":9007199254740993,"fat":10.25}`)
	}))
	defer srv.Close()

	got, err := New(srv.URL, time.Second).FetchNutrition(context.Background(), "pizza")
	if err != nil {
		t.Fatalf("FetchNutrition: %v", err)
	}
	if got["usda_fdc_id"] != json.Number("9007199254740993") || got["fat"] != json.Number("10.25") {
		t.Errorf("numbers changed: %#v", got)
	}
	out, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"usda_fdc_id":9007199254740993`) {
		t.Errorf("re-encoded as %s", out)
	}
}
