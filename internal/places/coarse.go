package places

import (
	"slices"
	"strings"

	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/kozaktomas/trip-book/internal/geocode"
)

// Coarsen re-aggregates stops to city level for low-coverage books. When every
// stop has a city label the stops are grouped by label, otherwise their
// centroids are re-clustered at radiusKm. Hidden stops are left out.
func Coarsen(stops []Stop, radiusKm float64) []Stop {
	visible := Visible(stops)
	if len(visible) == 0 {
		return []Stop{}
	}

	var groups [][]Stop
	if allLabelled(visible) {
		groups = groupByCity(visible)
	} else {
		pts := make([]geo.Point, len(visible))
		for i, s := range visible {
			pts[i] = s.Center()
		}
		for _, comp := range linkComponents(pts, radiusKm) {
			g := make([]Stop, len(comp))
			for i, idx := range comp {
				g[i] = visible[idx]
			}
			groups = append(groups, g)
		}
	}

	out := make([]Stop, 0, len(groups))
	for _, g := range groups {
		out = append(out, mergeStops(g))
	}
	SortChronologically(out)
	return out
}

func allLabelled(stops []Stop) bool {
	for _, s := range stops {
		if s.CityLabel == "" {
			return false
		}
	}
	return true
}

func groupByCity(stops []Stop) [][]Stop {
	idx := map[string]int{}
	var groups [][]Stop
	for _, s := range stops {
		key := geocode.LabelKey(s.CityLabel)
		i, ok := idx[key]
		if !ok {
			i = len(groups)
			idx[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}

// mergeStops combines member stops into one city-level stop.
func mergeStops(group []Stop) Stop {
	if len(group) == 1 {
		return group[0]
	}
	members := slices.Clone(group)
	slices.SortFunc(members, func(a, b Stop) int { return strings.Compare(a.StableID, b.StableID) })

	var (
		ids    []string
		lat    float64
		lon    float64
		photos int
		days   = map[int]bool{}
	)
	merged := Stop{}
	largest := members[0]
	for _, s := range members {
		ids = append(ids, s.AssetIDs...)
		w := float64(s.TotalPhotos)
		lat += s.CenterLat * w
		lon += s.CenterLon * w
		photos += s.TotalPhotos
		merged.VisitCount += s.VisitCount
		merged.TotalDurationHours += s.TotalDurationHours
		merged.TotalDistanceKm += s.TotalDistanceKm
		for _, d := range s.DayIndices {
			days[d] = true
		}
		if s.FirstTakenAt != nil && (merged.FirstTakenAt == nil || s.FirstTakenAt.Before(*merged.FirstTakenAt)) {
			t := *s.FirstTakenAt
			merged.FirstTakenAt = &t
		}
		if s.TotalPhotos > largest.TotalPhotos {
			largest = s
		}
	}

	merged.StableID = StableID(ids)
	merged.AssetIDs = ids
	merged.TotalPhotos = photos
	if photos > 0 {
		merged.CenterLat = lat / float64(photos)
		merged.CenterLon = lon / float64(photos)
	}
	for d := range days {
		merged.DayIndices = append(merged.DayIndices, d)
	}
	slices.Sort(merged.DayIndices)
	merged.Thumbnails = slices.Clone(largest.Thumbnails)

	merged.CityLabel = largest.CityLabel
	if merged.CityLabel != "" {
		city := merged.CityLabel
		merged.DisplayName = &city
	} else if largest.DisplayName != nil {
		name := *largest.DisplayName
		merged.DisplayName = &name
	}
	return merged
}
