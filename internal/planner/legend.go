package planner

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kozaktomas/trip-book/internal/places"
)

// BuildLegend caps the visible stops at limit. The chronologically first and
// last stops always stay; remaining slots go to the stops with the most
// photos, ties by stable id. Entries are numbered in chronological order and
// dropped stops are reported as "+N more".
func BuildLegend(stops []places.Stop, limit int) Legend {
	visible := places.Visible(stops)
	places.SortChronologically(visible)

	kept := visible
	overflow := ""
	if limit > 0 && len(visible) > limit {
		kept = capStops(visible, limit)
		overflow = fmt.Sprintf("+%d more", len(visible)-len(kept))
	}

	entries := make([]LegendEntry, len(kept))
	for i, s := range kept {
		entries[i] = LegendEntry{
			Number:      i + 1,
			StableID:    s.StableID,
			Label:       s.Label(),
			TotalPhotos: s.TotalPhotos,
			Lat:         s.CenterLat,
			Lon:         s.CenterLon,
		}
	}
	return Legend{Entries: entries, Overflow: overflow}
}

// capStops expects chronologically sorted stops and returns limit of them in
// chronological order.
func capStops(sorted []places.Stop, limit int) []places.Stop {
	if limit == 1 {
		return sorted[:1]
	}
	keep := map[string]bool{
		sorted[0].StableID:             true,
		sorted[len(sorted)-1].StableID: true,
	}

	middle := slices.Clone(sorted[1 : len(sorted)-1])
	slices.SortFunc(middle, func(a, b places.Stop) int {
		if a.TotalPhotos != b.TotalPhotos {
			return b.TotalPhotos - a.TotalPhotos
		}
		return strings.Compare(a.StableID, b.StableID)
	})
	for _, s := range middle[:limit-2] {
		keep[s.StableID] = true
	}

	out := make([]places.Stop, 0, limit)
	for _, s := range sorted {
		if keep[s.StableID] {
			out = append(out, s)
		}
	}
	return out
}
