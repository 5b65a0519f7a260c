package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/database/mock"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/quality"
)

func TestCurate(t *testing.T) {
	same := pngBytes(t, 0x8421)
	src := memSource{
		"eiffel-1": same,
		"eiffel-2": same,
		"eiffel-3": pngBytes(t, 0x1248),
		"louvre-1": pngBytes(t, 0x0660),
	}
	assets := tripAssets()[:5]
	assets[3].Status = manifest.StatusImported
	assets[4].Status = manifest.StatusRejected

	g := newGenerator(mock.NewMockStore()).WithImageSource(src)
	var photos atomic.Int32
	res, err := g.Curate(context.Background(), assets, func() { photos.Add(1) })
	if err != nil {
		t.Fatalf("curate: %v", err)
	}

	if photos.Load() != 4 || len(res.Quality) != 4 {
		t.Errorf("rejected assets are skipped: %d progress ticks, %d metrics", photos.Load(), len(res.Quality))
	}
	ids := manifest.IDs(res.Assets)
	if !slices.Equal(ids, []string{"eiffel-1", "eiffel-2", "eiffel-3", "louvre-1"}) {
		t.Errorf("unexpected curatable assets %v", ids)
	}
	if len(res.Duplicates) == 0 {
		t.Error("identical photos should form a duplicate group")
	}
	if res.Suggestions.Params.MaxLikelyRejects == 0 {
		t.Error("suggestion params should be echoed")
	}
}

func TestCurate_UnreadableFlagged(t *testing.T) {
	g := newGenerator(mock.NewMockStore()).WithImageSource(memSource{})
	res, err := g.Curate(context.Background(), tripAssets()[:1], nil)
	if err != nil {
		t.Fatalf("curate: %v", err)
	}
	if !slices.Contains(res.Assets[0].QualityFlags, quality.FlagMissingOrUnreadable) {
		t.Errorf("missing image should be flagged, got %v", res.Assets[0].QualityFlags)
	}
	if len(res.Suggestions.LikelyRejects) != 1 {
		t.Errorf("expected one likely reject, got %+v", res.Suggestions.LikelyRejects)
	}
}

func TestCurate_Errors(t *testing.T) {
	if _, err := newGenerator(mock.NewMockStore()).Curate(context.Background(), tripAssets(), nil); !errors.Is(err, ErrNoImageSource) {
		t.Errorf("expected ErrNoImageSource, got %v", err)
	}

	g := newGenerator(mock.NewMockStore()).WithImageSource(memSource{})
	dup := append(tripAssets(), tripAssets()[0])
	if _, err := g.Curate(context.Background(), dup, nil); !errors.Is(err, manifest.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestStops_AppliesOverrides(t *testing.T) {
	store := mock.NewMockStore()
	g := newGenerator(store)
	ctx := context.Background()

	list, err := g.Stops(ctx, "book", tripAssets())
	if err != nil {
		t.Fatalf("stops: %v", err)
	}
	if len(list.Stops) != 3 {
		t.Fatalf("expected 3 stops, got %d", len(list.Stops))
	}

	hidden := true
	id := list.Stops[0].StableID
	if err := store.PutOverride(ctx, "book", id, database.OverridePatch{Hidden: &hidden}); err != nil {
		t.Fatalf("put override: %v", err)
	}
	if err := store.PutOverride(ctx, "book", "stop_gone", database.OverridePatch{Hidden: &hidden}); err != nil {
		t.Fatalf("put override: %v", err)
	}

	list, err = g.Stops(ctx, "book", tripAssets())
	if err != nil {
		t.Fatalf("stops: %v", err)
	}
	if !list.Stops[0].Hidden || list.Stops[0].StableID != id {
		t.Errorf("override not applied: %+v", list.Stops[0])
	}
	if !slices.Equal(list.OrphanedOverrides, []string{"stop_gone"}) {
		t.Errorf("orphaned = %v", list.OrphanedOverrides)
	}
	if store.PlanCount() != 0 {
		t.Error("listing stops must not store a plan")
	}
}
