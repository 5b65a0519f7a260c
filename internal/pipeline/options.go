package pipeline

import (
	"time"

	"github.com/kozaktomas/trip-book/internal/config"
	"github.com/kozaktomas/trip-book/internal/curation"
	"github.com/kozaktomas/trip-book/internal/duplicates"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/kozaktomas/trip-book/internal/planner"
	"github.com/kozaktomas/trip-book/internal/quality"
	"github.com/kozaktomas/trip-book/internal/timeline"
)

func timelineOptions(c config.PipelineConfig) timeline.Options {
	return timeline.Options{
		GapThreshold: time.Duration(c.SegmentGapMinutes) * time.Minute,
		DistanceKm:   c.SegmentDistanceKm,
		Workers:      c.Workers,
	}
}

func placesOptions(c config.PipelineConfig) places.Options {
	return places.Options{
		RadiusKm:       c.StopRadiusKm,
		GeocodeTimeout: c.GeocodeTimeout,
	}
}

// QualityOptions maps the configured thresholds onto analyzer options.
func QualityOptions(c config.PipelineConfig) quality.Options {
	opts := quality.DefaultOptions()
	opts.VeryBlurry = c.BlurVeryBlurry
	opts.Blurry = c.BlurBlurry
	opts.Dark = c.BrightnessDark
	opts.Bright = c.BrightnessBright
	opts.LowContrast = c.ContrastLow
	opts.LowEdgeDensity = c.EdgeDensityLow
	opts.WeightBlur = c.WeightBlur
	opts.WeightBrightness = c.WeightBrightness
	opts.WeightContrast = c.WeightContrast
	opts.WeightEdges = c.WeightEdges
	opts.Workers = c.Workers
	return opts
}

func duplicateOptions(c config.PipelineConfig, withEmbeddings bool) duplicates.Options {
	opts := duplicates.Options{MaxHamming: c.DuplicateMaxHamming}
	if withEmbeddings {
		opts.EmbeddingDistance = c.EmbeddingDuplicateDistance
	}
	return opts
}

func curationParams(c config.PipelineConfig) curation.Params {
	return curation.Params{
		MaxLikelyRejects:   c.MaxLikelyRejects,
		MaxDuplicateGroups: c.MaxDuplicateGroups,
	}
}

func plannerOptions(c config.PipelineConfig) planner.Options {
	return planner.Options{
		HighlightCap:     c.HighlightCap,
		GalleryCap:       c.GalleryCap,
		LegendCap:        c.LegendCap,
		PicksPerSegment:  c.PicksPerSegment,
		DiversityPenalty: c.DiversityPenalty,
		CoarseRadiusKm:   c.CoarseRadiusKm,
		CoarseMapStyle:   c.CoarseMapStyle,
		TrimSize:         c.TrimSize,
		MapRenderTimeout: c.MapRenderTimeout,

		ItineraryMaxKmPerDay: c.ItineraryMaxKmPerDay,
	}
}
