package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/trip-book/internal/config"
	"github.com/kozaktomas/trip-book/internal/database/mock"
	"github.com/kozaktomas/trip-book/internal/logging"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/pipeline"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON body and chi params
func jsonRequest(t *testing.T, method, path string, body any, params map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return requestWithChiParams(req, params)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func newTestGenerator(store *mock.MockStore) *pipeline.Generator {
	return pipeline.NewGenerator(store, config.DefaultPipeline(), logging.Discard())
}

var tripStart = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func asset(id string, offset time.Duration, lat, lon float64) manifest.AssetRecord {
	t := tripStart.Add(offset)
	return manifest.AssetRecord{ID: id, TakenAt: &t, Lat: &lat, Lon: &lon}
}

func tripAssets() []manifest.AssetRecord {
	return []manifest.AssetRecord{
		asset("eiffel-1", 0, 48.8584, 2.2945),
		asset("eiffel-2", 5*time.Minute, 48.8586, 2.2950),
		asset("louvre-1", 2*time.Hour, 48.8606, 2.3376),
		asset("lyon-1", 26*time.Hour, 45.7640, 4.8357),
	}
}
