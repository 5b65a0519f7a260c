package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/trip-book/internal/config"
	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/database/mock"
	"github.com/kozaktomas/trip-book/internal/logging"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/metrics"
	"github.com/kozaktomas/trip-book/internal/planner"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func photo(id string, offset time.Duration, lat, lon float64) manifest.AssetRecord {
	t := base.Add(offset)
	return manifest.AssetRecord{ID: id, TakenAt: &t, Lat: &lat, Lon: &lon}
}

func tripAssets() []manifest.AssetRecord {
	return []manifest.AssetRecord{
		photo("eiffel-1", 0, 48.8584, 2.2945),
		photo("eiffel-2", 5*time.Minute, 48.8586, 2.2950),
		photo("eiffel-3", 10*time.Minute, 48.8580, 2.2940),
		photo("louvre-1", 2*time.Hour, 48.8606, 2.3376),
		photo("louvre-2", 2*time.Hour+10*time.Minute, 48.8610, 2.3380),
		photo("lyon-1", 26*time.Hour, 45.7640, 4.8357),
		photo("lyon-2", 26*time.Hour+20*time.Minute, 45.7642, 4.8360),
	}
}

func newGenerator(store database.Store) *Generator {
	return NewGenerator(store, config.DefaultPipeline(), logging.Discard())
}

func planJSON(t *testing.T, plan *planner.BookPlan) []byte {
	t.Helper()
	data, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestGenerate_Deterministic(t *testing.T) {
	store := mock.NewMockStore()
	g := newGenerator(store)

	first, err := g.Generate(context.Background(), "book-1", Request{Assets: tripAssets()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	shuffled := tripAssets()
	slices.Reverse(shuffled)
	second, err := g.Generate(context.Background(), "book-1", Request{Assets: shuffled})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !bytes.Equal(planJSON(t, first.Plan), planJSON(t, second.Plan)) {
		t.Error("plans differ for the same assets")
	}
	if first.GenerationID == second.GenerationID {
		t.Error("each generation needs its own id")
	}
	stored, _ := store.GetPlan(context.Background(), "book-1")
	if stored == nil || !bytes.Equal(stored.Plan, planJSON(t, second.Plan)) {
		t.Error("stored plan should match the last generation")
	}
	if len(first.Debug.Days) != 2 || len(first.Debug.Stops) != 3 {
		t.Errorf("unexpected debug payload: %d days, %d stops", len(first.Debug.Days), len(first.Debug.Stops))
	}
	itinerary := first.Debug.Itinerary
	if len(itinerary) != 2 || len(itinerary[0].Stops) != 2 || len(itinerary[0].Lines) != 2 {
		t.Fatalf("expected the eiffel and louvre visits on day one, got %+v", itinerary)
	}
	if itinerary[0].DisplayDistanceKm == nil || itinerary[1].Stops[0].Kind != planner.StopLocal {
		t.Errorf("unexpected itinerary: %+v", itinerary)
	}
}

func TestGenerate_OverrideSurvivesNewPhoto(t *testing.T) {
	store := mock.NewMockStore()
	g := newGenerator(store)
	ctx := context.Background()

	res, err := g.Generate(ctx, "book", Request{Assets: tripAssets()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	eiffel := res.Debug.Stops[0].StableID
	name := "Eiffel Tower"
	if err := store.PutOverride(ctx, "book", eiffel, database.OverridePatch{OverrideName: &name}); err != nil {
		t.Fatalf("put override: %v", err)
	}
	if err := store.PutOverride(ctx, "book", "stop_gone", database.OverridePatch{OverrideName: &name}); err != nil {
		t.Fatalf("put override: %v", err)
	}

	assets := append(tripAssets(), photo("rome-1", 50*time.Hour, 41.9028, 12.4964))
	res, err = g.Generate(ctx, "book", Request{Assets: assets})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if res.Debug.Stops[0].StableID != eiffel || res.Debug.Stops[0].Label() != "Eiffel Tower" {
		t.Errorf("override lost: %+v", res.Debug.Stops[0])
	}
	if !slices.Equal(res.Debug.OrphanedOverrides, []string{"stop_gone"}) {
		t.Errorf("orphaned = %v", res.Debug.OrphanedOverrides)
	}
	if res.Plan.StopLegend.Entries[0].Label != "Eiffel Tower" {
		t.Errorf("legend should use the override, got %+v", res.Plan.StopLegend.Entries[0])
	}
	if got := res.Debug.Itinerary[0].Stops[0].Label; got != "Eiffel Tower" {
		t.Errorf("itinerary should use the override, got %q", got)
	}
}

func TestGenerate_HiddenStop(t *testing.T) {
	store := mock.NewMockStore()
	g := newGenerator(store)
	ctx := context.Background()

	res, _ := g.Generate(ctx, "book", Request{Assets: tripAssets()})
	hidden := true
	louvre := res.Debug.Stops[1].StableID
	if err := store.PutOverride(ctx, "book", louvre, database.OverridePatch{Hidden: &hidden}); err != nil {
		t.Fatalf("put override: %v", err)
	}

	res, err := g.Generate(ctx, "book", Request{Assets: tripAssets()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, e := range res.Plan.StopLegend.Entries {
		if e.StableID == louvre {
			t.Error("hidden stop must not appear in the legend")
		}
	}
}

func TestGenerate_UserPicksLock(t *testing.T) {
	store := mock.NewMockStore()
	g := newGenerator(store)
	ctx := context.Background()

	picks := &database.StoredPicks{
		BookID:     "book",
		Source:     database.PicksSourceUser,
		Highlights: []string{"lyon-2", "eiffel-1"},
		Gallery:    []string{"louvre-1"},
	}
	if err := store.PutPicks(ctx, picks); err != nil {
		t.Fatalf("put picks: %v", err)
	}

	first, err := g.Generate(ctx, "book", Request{Assets: tripAssets()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	more := append(tripAssets(), photo("extra", 27*time.Hour, 45.7641, 4.8358))
	second, err := g.Generate(ctx, "book", Request{Assets: more})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, plan := range []*planner.BookPlan{first.Plan, second.Plan} {
		if plan.PicksSource != planner.PicksUser {
			t.Errorf("picks source = %s", plan.PicksSource)
		}
		if len(plan.Highlights) != 2 || plan.Highlights[0].AssetID != "lyon-2" || plan.Highlights[1].AssetID != "eiffel-1" {
			t.Errorf("highlights changed: %+v", plan.Highlights)
		}
	}

	if err := store.ResetPicks(ctx, "book"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	third, _ := g.Generate(ctx, "book", Request{Assets: more})
	if third.Plan.PicksSource != planner.PicksAuto {
		t.Errorf("reset should return to auto picks, got %s", third.Plan.PicksSource)
	}
}

// pngBytes draws a 4x4 block pattern from the bits of pattern with a fine
// texture on top, so distinct patterns hash far apart but stay sharp.
func pngBytes(t *testing.T, pattern uint16) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 128, 128))
	for y := range 128 {
		for x := range 128 {
			v := 60
			if pattern>>(uint(y/32*4+x/32))&1 == 1 {
				v = 190
			}
			if (x+y)%2 == 0 {
				v += 30
			} else {
				v -= 30
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type memSource map[string][]byte

func (m memSource) Open(_ context.Context, a manifest.AssetRecord) ([]byte, error) {
	data, ok := m[a.ID]
	if !ok {
		return nil, fmt.Errorf("no image for %s", a.ID)
	}
	return data, nil
}

func TestGenerate_QualityAndDuplicates(t *testing.T) {
	store := mock.NewMockStore()
	same := pngBytes(t, 0x8421)
	src := memSource{
		"eiffel-1": same,
		"eiffel-2": same,
		"eiffel-3": pngBytes(t, 0x1248),
		"louvre-1": pngBytes(t, 0x0660),
		"louvre-2": pngBytes(t, 0x9009),
		"lyon-1":   pngBytes(t, 0x3355),
	}
	g := newGenerator(store).WithImageSource(src)

	res, err := g.Generate(context.Background(), "book", Request{Assets: tripAssets()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(res.Debug.Quality) != 7 {
		t.Fatalf("expected metrics for every photo, got %d", len(res.Debug.Quality))
	}
	var found bool
	for _, group := range res.Debug.Duplicates {
		if !slices.Contains(group.MemberIDs, "eiffel-2") {
			continue
		}
		found = true
		if group.KeepPhotoID == "eiffel-2" || !slices.Contains(group.RejectPhotoIDs, "eiffel-2") {
			t.Errorf("unexpected group %+v", group)
		}
	}
	if !found {
		t.Fatalf("identical photos should be grouped, got %+v", res.Debug.Duplicates)
	}

	var unreadable bool
	for _, r := range res.Debug.Suggestions.LikelyRejects {
		if r.PhotoID == "lyon-2" {
			unreadable = true
		}
		if r.PhotoID == "eiffel-2" {
			t.Error("duplicate rejects are reported through groups only")
		}
	}
	if !unreadable {
		t.Error("missing image should be suggested for rejection")
	}
	for _, h := range res.Plan.Highlights {
		if h.AssetID == "eiffel-2" {
			t.Error("duplicate reject must not be a highlight")
		}
	}
	if store.PutAnalysisCalls == 0 {
		t.Error("analysis results should be cached")
	}
}

type blockingRenderer struct {
	calls   atomic.Int32
	started chan struct{}
}

func (r *blockingRenderer) RenderMap(ctx context.Context, req planner.MapRequest) (*planner.MapAsset, error) {
	if r.calls.Add(1) == 1 {
		close(r.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &planner.MapAsset{Path: req.BookID + ".png", Width: 10, Height: 10}, nil
}

func TestGenerate_SupersededGenerationDoesNotWrite(t *testing.T) {
	store := mock.NewMockStore()
	renderer := &blockingRenderer{started: make(chan struct{})}
	g := newGenerator(store).WithMapRenderer(renderer)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = g.Generate(context.Background(), "book", Request{Assets: tripAssets()})
	}()
	<-renderer.started

	second, err := g.Generate(context.Background(), "book", Request{Assets: tripAssets()})
	if err != nil {
		t.Fatalf("second generation: %v", err)
	}
	wg.Wait()

	if !errors.Is(firstErr, ErrSuperseded) || !errors.Is(firstErr, context.Canceled) {
		t.Errorf("expected superseded error, got %v", firstErr)
	}
	if store.PlanCount() != 1 {
		t.Errorf("expected one stored plan, got %d", store.PlanCount())
	}
	stored, _ := store.GetPlan(context.Background(), "book")
	if stored.GenerationID != second.GenerationID {
		t.Error("stored plan must come from the newest generation")
	}
	if second.Plan.MapAsset == nil {
		t.Error("second generation should carry the rendered map")
	}
}

func TestGenerate_OlderGenerationNotSaved(t *testing.T) {
	store := mock.NewMockStore()
	ctx := context.Background()

	newer := newGenerator(store).WithClock(func() time.Time { return base.Add(time.Hour) })
	if _, err := newer.Generate(ctx, "book", Request{Assets: tripAssets()}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	older := newGenerator(store).WithClock(func() time.Time { return base })
	res, err := older.Generate(ctx, "book", Request{Assets: tripAssets()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Saved {
		t.Error("an older generation must not replace a newer plan")
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("invalid manifest", func(t *testing.T) {
		assets := append(tripAssets(), photo("eiffel-1", time.Hour, 1, 1))
		_, err := newGenerator(mock.NewMockStore()).Generate(context.Background(), "book", Request{Assets: assets})
		if !errors.Is(err, manifest.ErrDuplicateID) {
			t.Errorf("expected ErrDuplicateID, got %v", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := mock.NewMockStore()
		store.GetOverridesError = errors.New("connection refused")
		_, err := newGenerator(store).Generate(context.Background(), "book", Request{Assets: tripAssets()})
		if err == nil || errors.Is(err, ErrSuperseded) {
			t.Errorf("expected a store error, got %v", err)
		}
	})

	t.Run("save failure", func(t *testing.T) {
		store := mock.NewMockStore()
		store.SavePlanError = errors.New("disk full")
		_, err := newGenerator(store).Generate(context.Background(), "book", Request{Assets: tripAssets()})
		if err == nil {
			t.Error("expected save error")
		}
	})

	t.Run("cancelled caller", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		store := mock.NewMockStore()
		_, err := newGenerator(store).Generate(ctx, "book", Request{Assets: tripAssets()})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected cancellation, got %v", err)
		}
		if store.PlanCount() != 0 {
			t.Error("cancelled generation must not write")
		}
	})
}

func TestGenerate_ProgressAndMetrics(t *testing.T) {
	rec := metrics.New()
	var stages []string
	g := newGenerator(mock.NewMockStore()).WithMetrics(rec)

	res, err := g.Generate(context.Background(), "book", Request{
		Assets:     tripAssets(),
		OnProgress: func(p ProgressInfo) { stages = append(stages, p.Stage) },
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	want := []string{StageManifest, StageTimeline, StagePlaces, StageQuality, StageDuplicates, StageCuration, StagePlanner, StageSave}
	if !slices.Equal(stages, want) {
		t.Errorf("stages = %v; want %v", stages, want)
	}
	if len(res.Debug.StageDurations) != len(want) {
		t.Errorf("expected a duration per stage, got %v", res.Debug.StageDurations)
	}

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !bytes.Contains(w.Body.Bytes(), []byte(`tripbook_generations_total{result="ok"} 1`)) {
		t.Error("generation not counted")
	}
}

func TestLatestPlan(t *testing.T) {
	store := mock.NewMockStore()
	g := newGenerator(store)
	ctx := context.Background()

	plan, err := g.LatestPlan(ctx, "book")
	if err != nil || plan != nil {
		t.Fatalf("expected no plan, got %v %v", plan, err)
	}
	res, _ := g.Generate(ctx, "book", Request{Assets: tripAssets(), Title: "Spring"})
	plan, err = g.LatestPlan(ctx, "book")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !bytes.Equal(planJSON(t, plan), planJSON(t, res.Plan)) {
		t.Error("stored plan should round-trip")
	}
}

func TestLatestDebug(t *testing.T) {
	g := newGenerator(mock.NewMockStore())

	if _, ok := g.LatestDebug("book"); ok {
		t.Fatal("expected no debug before the first generation")
	}
	res, err := g.Generate(context.Background(), "book", Request{Assets: tripAssets()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	d, ok := g.LatestDebug("book")
	if !ok {
		t.Fatal("expected debug after a saved generation")
	}
	if len(d.Stops) != len(res.Debug.Stops) || len(d.Days) != len(res.Debug.Days) {
		t.Errorf("debug mismatch: %d/%d stops, %d/%d days",
			len(d.Stops), len(res.Debug.Stops), len(d.Days), len(res.Debug.Days))
	}
}
