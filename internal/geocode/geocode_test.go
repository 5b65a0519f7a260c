package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/trip-book/internal/database/mock"
	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/kozaktomas/trip-book/internal/logging"
)

func TestPlace_ShortLabel(t *testing.T) {
	tests := []struct {
		name  string
		place Place
		want  string
	}{
		{"city and state", Place{City: "Austin", State: "Texas", Country: "USA"}, "Austin, Texas"},
		{"city and country", Place{City: "Paris", Country: "France"}, "Paris, France"},
		{"state and country", Place{State: "Bavaria", Country: "Germany"}, "Bavaria, Germany"},
		{"city only", Place{City: "Reykjavik"}, "Reykjavik"},
		{"country only", Place{Country: "Iceland"}, "Iceland"},
		{"display name", Place{DisplayName: "Tour Eiffel, 5, Avenue Anatole France, Paris"}, "Tour Eiffel, 5"},
		{"empty", Place{}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.place.ShortLabel(); got != tc.want {
				t.Errorf("ShortLabel() = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestPlace_CityLabel(t *testing.T) {
	if got := (Place{City: "Lyon", State: "Rhône", Country: "France"}).CityLabel(); got != "Lyon" {
		t.Errorf("CityLabel = %q", got)
	}
	if got := (Place{State: "Tyrol", Country: "Austria"}).CityLabel(); got != "Tyrol" {
		t.Errorf("CityLabel = %q", got)
	}
}

func TestLabelKey(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"São Paulo", "sao paulo"},
		{"Sao  Paulo", "sao paulo"},
		{"Zürich", "zurich"},
		{"Aix-en-Provence", "aix en provence"},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := LabelKey(tc.input); got != tc.want {
				t.Errorf("LabelKey(%q) = %q; want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNominatim_ReverseGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "jsonv2" || r.URL.Query().Get("zoom") != "10" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != "trip-book-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"display_name":"Hallstatt, Upper Austria, Austria","address":{"village":"Hallstatt","state":"Upper Austria","country":"Austria"}}`))
	}))
	defer server.Close()

	n := NewNominatim(server.URL+"/", "trip-book-test", 0)
	place, err := n.ReverseGeocode(context.Background(), geo.Point{Lat: 47.56, Lon: 13.65})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if place.City != "Hallstatt" {
		t.Errorf("expected village fallback for city, got %q", place.City)
	}
	if place.ShortLabel() != "Hallstatt, Upper Austria" {
		t.Errorf("unexpected label %q", place.ShortLabel())
	}
}

func TestNominatim_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"api error", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":"Unable to geocode"}`))
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{`))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			n := NewNominatim(server.URL, "test", 0)
			if _, err := n.ReverseGeocode(context.Background(), geo.Point{Lat: 1, Lon: 1}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNominatim_ThrottleRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":{"city":"X"}}`))
	}))
	defer server.Close()

	n := NewNominatim(server.URL, "test", time.Hour)
	if _, err := n.ReverseGeocode(context.Background(), geo.Point{Lat: 1, Lon: 1}); err != nil {
		t.Fatalf("first call should not wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := n.ReverseGeocode(ctx, geo.Point{Lat: 1, Lon: 1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded while throttled, got %v", err)
	}
}

type countingGeocoder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingGeocoder) ReverseGeocode(ctx context.Context, p geo.Point) (*Place, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &Place{City: "Paris", Country: "France"}, nil
}

func TestCached_MemoryAndStore(t *testing.T) {
	inner := &countingGeocoder{}
	store := mock.NewMockStore()
	c := NewCached(inner, store, 10, logging.Discard())
	ctx := context.Background()

	// both points quantize to the same key
	for _, p := range []geo.Point{{Lat: 48.85841, Lon: 2.29441}, {Lat: 48.85839, Lon: 2.29439}} {
		place, err := c.ReverseGeocode(ctx, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if place.City != "Paris" {
			t.Errorf("unexpected place %+v", place)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls)
	}
	if store.PutPlaceCalls != 1 {
		t.Errorf("expected 1 persisted place, got %d", store.PutPlaceCalls)
	}

	// a fresh memory cache is served from the persistent store
	c2 := NewCached(inner, store, 10, logging.Discard())
	if _, err := c2.ReverseGeocode(ctx, geo.Point{Lat: 48.8584, Lon: 2.2944}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected persistent cache hit, got %d upstream calls", inner.calls)
	}
}

func TestCached_StoreErrorsAreIgnored(t *testing.T) {
	inner := &countingGeocoder{}
	store := mock.NewMockStore()
	store.GetPlaceError = errors.New("db down")
	store.PutPlaceError = errors.New("db down")
	c := NewCached(inner, store, 10, logging.Discard())

	place, err := c.ReverseGeocode(context.Background(), geo.Point{Lat: 1, Lon: 1})
	if err != nil || place == nil {
		t.Fatalf("store errors must not fail geocoding: %v", err)
	}
}

func TestCached_UpstreamErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("timeout")}
	c := NewCached(inner, nil, 10, logging.Discard())

	for range 2 {
		if _, err := c.ReverseGeocode(context.Background(), geo.Point{Lat: 1, Lon: 1}); err == nil {
			t.Fatal("expected upstream error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("failures must not be cached, got %d calls", inner.calls)
	}
}

func TestCached_Eviction(t *testing.T) {
	inner := &countingGeocoder{}
	c := NewCached(inner, nil, 2, logging.Discard())
	ctx := context.Background()

	pts := []geo.Point{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}, {Lat: 3, Lon: 3}}
	for _, p := range pts {
		c.ReverseGeocode(ctx, p)
	}
	// {1,1} was evicted
	c.ReverseGeocode(ctx, pts[0])
	if inner.calls != 4 {
		t.Errorf("expected 4 upstream calls after eviction, got %d", inner.calls)
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey(geo.Point{Lat: 48.85837, Lon: 2.294481}); got != "48.858,2.294" {
		t.Errorf("CacheKey = %q", got)
	}
}

func TestCached_RecentlyUsedSurvives(t *testing.T) {
	inner := &countingGeocoder{}
	c := NewCached(inner, nil, 2, logging.Discard())
	ctx := context.Background()

	a, b, d := geo.Point{Lat: 1, Lon: 1}, geo.Point{Lat: 2, Lon: 2}, geo.Point{Lat: 3, Lon: 3}
	for _, p := range []geo.Point{a, b, a, d} {
		c.ReverseGeocode(ctx, p)
	}
	// a was read after b, so b is the one evicted by d
	c.ReverseGeocode(ctx, a)
	if inner.calls != 3 {
		t.Errorf("expected 3 upstream calls, got %d", inner.calls)
	}
	c.ReverseGeocode(ctx, b)
	if inner.calls != 4 {
		t.Errorf("expected b to be refetched, got %d calls", inner.calls)
	}
}

func TestCached_ConcurrentUse(t *testing.T) {
	inner := &countingGeocoder{}
	c := NewCached(inner, nil, 4, logging.Discard())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := geo.Point{Lat: float64(i % 8), Lon: 1}
			if _, err := c.ReverseGeocode(ctx, p); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if inner.calls < 8 || inner.calls > 16 {
		t.Errorf("unexpected upstream calls %d", inner.calls)
	}
}
