package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/trip-book/internal/config"
	"github.com/kozaktomas/trip-book/internal/database/mock"
	"github.com/kozaktomas/trip-book/internal/logging"
	"github.com/kozaktomas/trip-book/internal/metrics"
	"github.com/kozaktomas/trip-book/internal/pipeline"
)

func newTestServer(t *testing.T, rec *metrics.Recorder) *httptest.Server {
	t.Helper()
	store := mock.NewMockStore()
	log := logging.Discard()
	gen := pipeline.NewGenerator(store, config.DefaultPipeline(), log).WithMetrics(rec)
	s := NewServer(Options{Host: "127.0.0.1", Port: 0}, gen, store, rec, log)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestServer_BookFlow(t *testing.T) {
	ts := newTestServer(t, metrics.New())
	api := ts.URL + "/api/v1/books/trip-2024"

	ts0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	ts1 := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC).Format(time.RFC3339)
	manifest := `{"title":"Paris","assets":[
		{"id":"a","takenAt":"` + ts0 + `","lat":48.8584,"lon":2.2945,"width":4000,"height":3000},
		{"id":"b","takenAt":"` + ts1 + `","lat":48.8586,"lon":2.2950,"width":4000,"height":3000}
	]}`

	if code, _ := do(t, http.MethodGet, api+"/plan", ""); code != http.StatusNotFound {
		t.Fatalf("plan before generation: %d", code)
	}

	code, body := do(t, http.MethodPost, api+"/plan", manifest)
	if code != http.StatusOK {
		t.Fatalf("generate: %d %s", code, body)
	}
	var res struct {
		Plan struct {
			Title string `json:"title"`
		} `json:"plan"`
		Debug struct {
			Stops []struct {
				StableID string `json:"stableId"`
			} `json:"stops"`
		} `json:"debug"`
	}
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Plan.Title != "Paris" || len(res.Debug.Stops) != 1 {
		t.Fatalf("unexpected result %s", body)
	}
	stop := res.Debug.Stops[0].StableID

	if code, body := do(t, http.MethodPatch, api+"/stops/"+stop, `{"overrideName":"Eiffel Tower"}`); code != http.StatusOK {
		t.Fatalf("patch stop: %d %s", code, body)
	}
	code, body = do(t, http.MethodGet, api+"/overrides", "")
	if code != http.StatusOK || !strings.Contains(body, "Eiffel Tower") {
		t.Fatalf("overrides: %d %s", code, body)
	}

	if code, body := do(t, http.MethodPost, api+"/plan", manifest); code != http.StatusOK || !strings.Contains(body, `"overrideName":"Eiffel Tower"`) {
		t.Fatalf("regenerate should apply the override: %d %s", code, body)
	}

	if code, _ := do(t, http.MethodPut, api+"/picks", `{"highlights":["b"]}`); code != http.StatusOK {
		t.Fatalf("put picks: %d", code)
	}
	if code, _ := do(t, http.MethodDelete, api+"/picks", ""); code != http.StatusNoContent {
		t.Fatalf("delete picks: %d", code)
	}

	if code, body := do(t, http.MethodGet, api+"/debug", ""); code != http.StatusOK || !strings.Contains(body, stop) {
		t.Fatalf("debug: %d %s", code, body)
	}
}

func TestServer_HealthMetricsAndNotFound(t *testing.T) {
	ts := newTestServer(t, metrics.New())

	if code, body := do(t, http.MethodGet, ts.URL+"/api/v1/health", ""); code != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Errorf("health: %d %s", code, body)
	}
	if code, body := do(t, http.MethodGet, ts.URL+"/api/v1/nope", ""); code != http.StatusNotFound || !strings.Contains(body, "not found") {
		t.Errorf("unknown route: %d %s", code, body)
	}

	code, body := do(t, http.MethodGet, ts.URL+"/metrics", "")
	if code != http.StatusOK {
		t.Fatalf("metrics: %d", code)
	}
	if !strings.Contains(body, `tripbook_http_requests_total{method="GET",route="/api/v1/health",status="200"} 1`) {
		t.Errorf("metrics should count the health request, got:\n%s", body)
	}
}

func TestServer_NoMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	if code, _ := do(t, http.MethodGet, ts.URL+"/metrics", ""); code != http.StatusNotFound {
		t.Errorf("metrics without recorder: %d", code)
	}
}
