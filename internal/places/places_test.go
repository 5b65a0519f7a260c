package places

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/kozaktomas/trip-book/internal/geocode"
	"github.com/kozaktomas/trip-book/internal/logging"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/timeline"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func photo(id string, offset time.Duration, lat, lon float64) manifest.AssetRecord {
	t := base.Add(offset)
	return manifest.AssetRecord{ID: id, TakenAt: &t, Lat: &lat, Lon: &lon}
}

// build runs manifest ordering and segmentation like the pipeline does.
func build(t *testing.T, assets []manifest.AssetRecord) ([]manifest.AssetRecord, []timeline.Day) {
	t.Helper()
	m, err := manifest.Build(assets)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	days, err := timeline.Build(context.Background(), m.Approved, timeline.DefaultOptions())
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	return m.Approved, days
}

func tripAssets() []manifest.AssetRecord {
	return []manifest.AssetRecord{
		// Eiffel Tower
		photo("A", 0, 48.8584, 2.2945),
		photo("B", 5*time.Minute, 48.8586, 2.2950),
		photo("C", 10*time.Minute, 48.8580, 2.2940),
		// Louvre, 3.5 km away
		photo("D", 2*time.Hour, 48.8606, 2.3376),
		photo("E", 2*time.Hour+10*time.Minute, 48.8610, 2.3380),
		// back at the Eiffel Tower next day
		photo("F", 25*time.Hour, 48.8585, 2.2946),
	}
}

func TestBuildStops_Basic(t *testing.T) {
	assets, days := build(t, tripAssets())
	stops := BuildStops(assets, days, 0.5)

	if len(stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(stops))
	}
	eiffel := stops[0]
	if !slices.Equal(eiffel.AssetIDs, []string{"A", "B", "C", "F"}) {
		t.Errorf("eiffel members = %v", eiffel.AssetIDs)
	}
	if eiffel.TotalPhotos != 4 {
		t.Errorf("total photos = %d", eiffel.TotalPhotos)
	}
	if eiffel.VisitCount != 2 {
		t.Errorf("visit count = %d; want 2", eiffel.VisitCount)
	}
	if !slices.Equal(eiffel.DayIndices, []int{0, 1}) {
		t.Errorf("day indices = %v", eiffel.DayIndices)
	}
	if eiffel.TotalDurationHours < 0.16 || eiffel.TotalDurationHours > 0.17 {
		t.Errorf("duration hours = %f; want 10 minutes", eiffel.TotalDurationHours)
	}
	if stops[1].FirstTakenAt == nil || !stops[1].FirstTakenAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("louvre first taken = %v", stops[1].FirstTakenAt)
	}
}

func TestStableID_OrderIndependent(t *testing.T) {
	a := StableID([]string{"A", "B", "C"})
	b := StableID([]string{"C", "A", "B"})
	if a != b {
		t.Errorf("StableID differs by order: %s vs %s", a, b)
	}
	if a == StableID([]string{"A", "B"}) {
		t.Error("different membership must give different ids")
	}
}

func TestBuildStops_StableUnderPermutation(t *testing.T) {
	assets, days := build(t, tripAssets())
	want := BuildStops(assets, days, 0.5)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 5 {
		shuffled := slices.Clone(tripAssets())
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		a, d := build(t, shuffled)
		got := BuildStops(a, d, 0.5)
		if len(got) != len(want) {
			t.Fatalf("stop count changed: %d vs %d", len(got), len(want))
		}
		for i := range got {
			if got[i].StableID != want[i].StableID {
				t.Errorf("stop %d id %s; want %s", i, got[i].StableID, want[i].StableID)
			}
			if got[i].CenterLat != want[i].CenterLat || got[i].CenterLon != want[i].CenterLon {
				t.Errorf("stop %d centroid drifted", i)
			}
		}
	}
}

func TestBuildStops_SingleLinkIsTransitive(t *testing.T) {
	// each neighbour is 0.4 km apart, ends are 0.8 km apart
	assets, days := build(t, []manifest.AssetRecord{
		photo("p1", 0, 50.0, 14.0),
		photo("p2", time.Minute, 50.0036, 14.0),
		photo("p3", 2*time.Minute, 50.0072, 14.0),
	})
	stops := BuildStops(assets, days, 0.5)
	if len(stops) != 1 {
		t.Fatalf("expected one chained stop, got %d", len(stops))
	}
}

func TestBuildStops_IgnoresUngeotagged(t *testing.T) {
	t0 := base
	assets, days := build(t, []manifest.AssetRecord{
		photo("geo", 0, 50, 14),
		{ID: "nogeo", TakenAt: &t0},
	})
	stops := BuildStops(assets, days, 0.5)
	if len(stops) != 1 || stops[0].TotalPhotos != 1 {
		t.Errorf("unexpected stops %+v", stops)
	}
}

type fakeGeocoder struct {
	places map[string]*geocode.Place
	err    error
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, p geo.Point) (*geocode.Place, error) {
	if f.err != nil {
		return nil, f.err
	}
	if pl, ok := f.places[geocode.CacheKey(p)]; ok {
		return pl, nil
	}
	return &geocode.Place{City: "Paris", Country: "France", DisplayName: "Somewhere, Paris, France"}, nil
}

func TestCluster_Labels(t *testing.T) {
	assets, days := build(t, tripAssets())
	c := NewClusterer(&fakeGeocoder{}, DefaultOptions(), logging.Discard())
	stops := c.Cluster(context.Background(), assets, days)

	for _, s := range stops {
		if s.DisplayName == nil || *s.DisplayName != "Paris, France" {
			t.Errorf("display name = %v", s.DisplayName)
		}
		if s.BestPlaceName == nil || *s.BestPlaceName != "Somewhere" {
			t.Errorf("best place name = %v", s.BestPlaceName)
		}
		if s.CityLabel != "Paris" {
			t.Errorf("city label = %q", s.CityLabel)
		}
		if s.Label() != "Paris, France" {
			t.Errorf("label = %q", s.Label())
		}
	}
}

func TestCluster_GeocodeFailureFallsBack(t *testing.T) {
	assets, days := build(t, tripAssets())
	c := NewClusterer(&fakeGeocoder{err: errors.New("timeout")}, DefaultOptions(), logging.Discard())
	stops := c.Cluster(context.Background(), assets, days)

	if len(stops) != 2 {
		t.Fatalf("geocoding failure must not block clustering, got %d stops", len(stops))
	}
	s := stops[0]
	if s.RawName != nil || s.DisplayName != nil || s.BestPlaceName != nil {
		t.Error("name fields must stay nil on failure")
	}
	if s.Label() != s.Center().String() {
		t.Errorf("expected coordinate label, got %q", s.Label())
	}
}

type blockingGeocoder struct{}

func (blockingGeocoder) ReverseGeocode(ctx context.Context, p geo.Point) (*geocode.Place, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCluster_GeocodeTimeoutIsBounded(t *testing.T) {
	assets, days := build(t, tripAssets())
	c := NewClusterer(blockingGeocoder{}, Options{RadiusKm: 0.5, GeocodeTimeout: 10 * time.Millisecond}, logging.Discard())

	start := time.Now()
	stops := c.Cluster(context.Background(), assets, days)
	if time.Since(start) > 2*time.Second {
		t.Error("geocoding was not bounded by the timeout")
	}
	if stops[0].DisplayName != nil {
		t.Error("timed out lookups must leave names nil")
	}
}

func TestApplyOverrides(t *testing.T) {
	assets, days := build(t, tripAssets())
	stops := BuildStops(assets, days, 0.5)

	name := "Eiffel Tower"
	overrides := map[string]Override{
		stops[0].StableID: {OverrideName: &name},
		stops[1].StableID: {Hidden: true},
		"stop_gone":       {OverrideName: &name},
	}
	out := ApplyOverrides(stops, overrides)

	if out[0].OverrideName == nil || *out[0].OverrideName != "Eiffel Tower" || out[0].Label() != "Eiffel Tower" {
		t.Errorf("override not applied: %+v", out[0])
	}
	if !out[1].Hidden {
		t.Error("hidden not applied")
	}
	if stops[0].OverrideName != nil {
		t.Error("input must not be modified")
	}
	if got := Orphaned(stops, overrides); !slices.Equal(got, []string{"stop_gone"}) {
		t.Errorf("orphaned = %v", got)
	}
	if len(Visible(out)) != 1 {
		t.Errorf("expected 1 visible stop")
	}
}

func TestOverrideSurvivesUnrelatedPhoto(t *testing.T) {
	assets, days := build(t, tripAssets())
	before := BuildStops(assets, days, 0.5)
	name := "Eiffel Tower"
	overrides := map[string]Override{before[0].StableID: {OverrideName: &name}}

	more := append(tripAssets(), photo("Z", 30*time.Hour, 41.9028, 12.4964)) // Rome
	assets2, days2 := build(t, more)
	after := ApplyOverrides(BuildStops(assets2, days2, 0.5), overrides)

	found := false
	for _, s := range after {
		if s.StableID == before[0].StableID {
			found = true
			if s.OverrideName == nil || *s.OverrideName != name {
				t.Errorf("override lost: %+v", s)
			}
		}
	}
	if !found {
		t.Fatal("stable id changed after adding an unrelated photo")
	}
}

func TestCoarsen_ByCityLabel(t *testing.T) {
	assets, days := build(t, tripAssets())
	c := NewClusterer(&fakeGeocoder{}, DefaultOptions(), logging.Discard())
	stops := c.Cluster(context.Background(), assets, days)

	coarse := Coarsen(stops, 25)
	if len(coarse) != 1 {
		t.Fatalf("expected one Paris stop, got %d", len(coarse))
	}
	if coarse[0].TotalPhotos != 6 || coarse[0].Label() != "Paris" {
		t.Errorf("unexpected coarse stop %+v", coarse[0])
	}
	if coarse[0].StableID != StableID([]string{"A", "B", "C", "D", "E", "F"}) {
		t.Error("coarse stop id must derive from merged membership")
	}
}

func TestCoarsen_ByRadius(t *testing.T) {
	assets, days := build(t, append(tripAssets(), photo("R", 30*time.Hour, 41.9028, 12.4964)))
	stops := BuildStops(assets, days, 0.5)
	if len(stops) != 3 {
		t.Fatalf("expected 3 fine stops, got %d", len(stops))
	}

	coarse := Coarsen(stops, 25)
	if len(coarse) != 2 {
		t.Fatalf("expected Paris and Rome, got %d", len(coarse))
	}
	if coarse[0].TotalPhotos != 6 || coarse[1].TotalPhotos != 1 {
		t.Errorf("unexpected totals %d/%d", coarse[0].TotalPhotos, coarse[1].TotalPhotos)
	}
}

func TestCoarsen_SkipsHidden(t *testing.T) {
	assets, days := build(t, tripAssets())
	stops := BuildStops(assets, days, 0.5)
	stops[1].Hidden = true
	coarse := Coarsen(stops, 25)
	if len(coarse) != 1 || coarse[0].StableID != stops[0].StableID {
		t.Errorf("unexpected coarse stops %+v", coarse)
	}
	if len(Coarsen(nil, 25)) != 0 {
		t.Error("expected empty result")
	}
}
