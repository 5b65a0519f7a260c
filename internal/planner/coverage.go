package planner

import (
	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/kozaktomas/trip-book/internal/manifest"
)

// GeoCoverage is the share of assets with usable coordinates, 0 for none.
func GeoCoverage(assets []manifest.AssetRecord) float64 {
	if len(assets) == 0 {
		return 0
	}
	n := 0
	for _, a := range assets {
		if a.HasGeo() {
			n++
		}
	}
	return float64(n) / float64(len(assets))
}

type mapDecision struct {
	output  string
	detail  string
	dayMaps string
}

var galleryDecision = mapDecision{output: OutputGallery, detail: DetailNone, dayMaps: DayMapsOff}

// decideMap applies the coverage thresholds: at least 0.25 is a full map,
// at least 0.05 a coarse map, anything less a gallery.
func decideMap(coverage float64, visibleStops int, mode MapMode, coarseStyle string) mapDecision {
	if mode == MapOff || visibleStops == 0 {
		return galleryDecision
	}

	var detail string
	switch {
	case coverage >= constants.FullMapCoverage:
		detail = DetailFull
	case coverage >= constants.CoarseMapCoverage:
		detail = DetailCoarse
	case mode == MapOn:
		detail = DetailCoarse
	default:
		return galleryDecision
	}

	d := mapDecision{output: OutputMap, detail: detail, dayMaps: DayMapsFull}
	if detail == DetailCoarse {
		d.dayMaps = DayMapsCoarse
		if coarseStyle == CoarseDisableDayMaps {
			d.dayMaps = DayMapsOff
		}
	}
	return d
}

// legendDetail applies the legend toggle on top of the map detail.
func legendDetail(mapDetail string, mode LegendMode) string {
	switch mode {
	case LegendFull:
		return DetailFull
	case LegendCoarse:
		return DetailCoarse
	}
	return mapDetail
}

func route(assets []manifest.AssetRecord) []geo.Point {
	var pts []geo.Point
	for _, a := range assets {
		if p, ok := a.Point(); ok {
			pts = append(pts, p)
		}
	}
	return pts
}
