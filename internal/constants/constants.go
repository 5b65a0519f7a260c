// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Segmentation constants
const (
	// DefaultSegmentGapMinutes starts a new segment when consecutive photos are further apart in time
	DefaultSegmentGapMinutes = 90

	// DefaultSegmentDistanceKm starts a new segment when consecutive geotagged photos are further apart
	DefaultSegmentDistanceKm = 2.0
)

// Stop clustering constants
const (
	// DefaultStopRadiusKm links two geotagged photos into the same stop
	DefaultStopRadiusKm = 0.5

	// DefaultCoarseRadiusKm is the linking radius used for city-level legends
	DefaultCoarseRadiusKm = 25.0

	// MaxThumbnailsPerStop limits thumbnail references carried on a stop
	MaxThumbnailsPerStop = 6

	// EarthRadiusKm is the mean Earth radius used for great-circle distances
	EarthRadiusKm = 6371.0
)

// Quality constants
const (
	// QualityMaxDimension is the longest side an image is downscaled to before metrics
	QualityMaxDimension = 512

	// EdgeGradientThreshold is the gradient magnitude a pixel must exceed to count as an edge
	EdgeGradientThreshold = 40.0

	// WorkerPoolSize is the default number of parallel workers for per-photo analysis
	WorkerPoolSize = 8
)

// Duplicate detection constants
const (
	// DefaultDuplicateMaxHamming is the max pHash and dHash distance for two near-duplicates
	DefaultDuplicateMaxHamming = 10

	// DefaultEmbeddingDuplicateDistance is the max cosine distance for embedding-based duplicates
	DefaultEmbeddingDuplicateDistance = 0.05

	// HashBits is the size of each perceptual hash
	HashBits = 64
)

// Curation constants
const (
	// DefaultMaxLikelyRejects caps the likely-reject list
	DefaultMaxLikelyRejects = 50

	// DefaultMaxDuplicateGroups caps the duplicate groups surfaced to curation
	DefaultMaxDuplicateGroups = 25
)

// Planner constants
const (
	// FullMapCoverage is the geo coverage at or above which the full stop legend is shown
	FullMapCoverage = 0.25

	// CoarseMapCoverage is the geo coverage at or above which a coarse map is shown
	CoarseMapCoverage = 0.05

	// DefaultHighlightCap is the default number of highlights
	DefaultHighlightCap = 6

	// DefaultGalleryCap is the default number of gallery picks
	DefaultGalleryCap = 24

	// DefaultLegendCap is the default number of stops in the map legend
	DefaultLegendCap = 8

	// DefaultPicksPerSegment is the number of picks from one segment before the diversity penalty applies
	DefaultPicksPerSegment = 2

	// DefaultDiversityPenalty is subtracted from a candidate score for each pick beyond the per-segment allowance
	DefaultDiversityPenalty = 0.35

	// GeotagBonus favours photos that can be placed on the map
	GeotagBonus = 0.1

	// ItineraryTravelKm marks a segment covering at least this distance as travel
	ItineraryTravelKm = 150.0

	// ItineraryTravelHours marks a segment lasting at least this long as travel
	ItineraryTravelHours = 4.0

	// DefaultItineraryMaxKmPerDay is the largest daily distance shown; beyond it GPS noise is assumed
	DefaultItineraryMaxKmPerDay = 800.0

	// UnknownDatesLabel is used when no photo carries a timestamp
	UnknownDatesLabel = "Unknown dates"
)

// Collaborator constants
const (
	// DefaultGeocodeTimeout bounds a single reverse-geocoding call
	DefaultGeocodeTimeout = 5 * time.Second

	// DefaultGeocodeThrottle is the minimum spacing between requests to a public geocoder
	DefaultGeocodeThrottle = 1100 * time.Millisecond

	// GeocodeCacheTTL is how long persisted geocode results stay valid
	GeocodeCacheTTL = 30 * 24 * time.Hour

	// DefaultMapRenderTimeout bounds a single map render
	DefaultMapRenderTimeout = 20 * time.Second
)
