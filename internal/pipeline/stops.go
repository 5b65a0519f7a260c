package pipeline

import (
	"context"
	"fmt"

	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/kozaktomas/trip-book/internal/timeline"
)

// StopList is the clustered stops of a book with its stored overrides applied.
type StopList struct {
	Stops             []places.Stop `json:"stops"`
	OrphanedOverrides []string      `json:"orphanedOverrides"`
}

// Stops runs segmentation and clustering only, so a curator can see stable ids
// before renaming or hiding stops. Nothing is stored.
func (g *Generator) Stops(ctx context.Context, bookID string, assets []manifest.AssetRecord) (*StopList, error) {
	m, err := manifest.Build(assets)
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}
	days, err := timeline.Build(ctx, m.Approved, timelineOptions(g.cfg))
	if err != nil {
		return nil, fmt.Errorf("segment timeline: %w", err)
	}
	stored, err := g.store.GetOverrides(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	overrides := toOverrides(stored)

	stops := places.NewClusterer(g.geocoder, placesOptions(g.cfg), g.log).Cluster(ctx, m.Approved, days)
	stops = places.ApplyOverrides(stops, overrides)
	return &StopList{Stops: stops, OrphanedOverrides: places.Orphaned(stops, overrides)}, nil
}
