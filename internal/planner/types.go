// Package planner decides the structure of a photo book: map or gallery,
// chapters, highlights, the stop legend and the page sequence.
package planner

import (
	"context"

	"github.com/kozaktomas/trip-book/internal/duplicates"
	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/kozaktomas/trip-book/internal/quality"
	"github.com/kozaktomas/trip-book/internal/timeline"
)

// ChapterMode controls chapter emission.
type ChapterMode string

const (
	ChapterAuto ChapterMode = "auto"
	ChapterOn   ChapterMode = "on"
	ChapterOff  ChapterMode = "off"
)

// MapMode controls the map-or-gallery decision.
type MapMode string

const (
	MapAuto MapMode = "auto"
	MapOn   MapMode = "on"
	MapOff  MapMode = "off"
)

// LegendMode selects the stop granularity of the legend.
type LegendMode string

const (
	LegendAuto   LegendMode = "auto"
	LegendFull   LegendMode = "full"
	LegendCoarse LegendMode = "coarse"
)

// Modes are the caller's toggles, echoed in the plan.
type Modes struct {
	Chapter ChapterMode `json:"chapter"`
	Map     MapMode     `json:"map"`
	Legend  LegendMode  `json:"legend"`
}

// Normalize fills empty modes with auto.
func (m Modes) Normalize() Modes {
	if m.Chapter == "" {
		m.Chapter = ChapterAuto
	}
	if m.Map == "" {
		m.Map = MapAuto
	}
	if m.Legend == "" {
		m.Legend = LegendAuto
	}
	return m
}

// Valid reports whether every mode is known.
func (m Modes) Valid() bool {
	m = m.Normalize()
	switch m.Chapter {
	case ChapterAuto, ChapterOn, ChapterOff:
	default:
		return false
	}
	switch m.Map {
	case MapAuto, MapOn, MapOff:
	default:
		return false
	}
	switch m.Legend {
	case LegendAuto, LegendFull, LegendCoarse:
	default:
		return false
	}
	return true
}

// Map decision values.
const (
	OutputMap     = "map"
	OutputGallery = "gallery"

	DetailFull   = "full"
	DetailCoarse = "coarse"
	DetailNone   = "none"

	DayMapsFull   = "full"
	DayMapsCoarse = "coarse"
	DayMapsOff    = "off"
)

// Picks provenance.
const (
	PicksAuto     = "auto"
	PicksEnhanced = "enhanced"
	PicksUser     = "user"
)

// UserPicks is a persisted selection.
type UserPicks struct {
	Source     string
	Highlights []string
	Gallery    []string
}

// Input is everything the planner needs for one book.
type Input struct {
	BookID string
	Title  string
	// Assets are the approved assets in canonical order.
	Assets     []manifest.AssetRecord
	Days       []timeline.Day
	Stops      []places.Stop
	Quality    map[string]quality.Metrics
	Duplicates []duplicates.Group
	Picks      *UserPicks
	// RequestedSource may ask for enhanced picks.
	RequestedSource string
	Modes           Modes
}

// Highlight is a featured photo with a caption label.
type Highlight struct {
	AssetID string `json:"assetId"`
	Label   string `json:"label"`
}

// LegendEntry is one numbered stop on the map legend.
type LegendEntry struct {
	Number      int     `json:"number"`
	StableID    string  `json:"stableId"`
	Label       string  `json:"label"`
	TotalPhotos int     `json:"totalPhotos"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Legend is the capped stop list shown next to the map.
type Legend struct {
	Entries  []LegendEntry `json:"entries"`
	Overflow string        `json:"overflow,omitempty"`
}

// Chapter is a contiguous run of days sharing a city label.
type Chapter struct {
	CityLabel     string `json:"cityLabel"`
	StartDayIndex int    `json:"startDayIndex"`
	EndDayIndex   int    `json:"endDayIndex"`
}

// MapAsset references a rendered map.
type MapAsset struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Page is one entry of the page sequence handed to the layout engine.
type Page struct {
	Index    int      `json:"index"`
	Type     string   `json:"type"`
	Title    string   `json:"title,omitempty"`
	Subtitle string   `json:"subtitle,omitempty"`
	AssetIDs []string `json:"assetIds,omitempty"`
	Layout   string   `json:"layout,omitempty"`
}

// Page types.
const (
	PageFrontCover     = "front_cover"
	PageMap            = "map"
	PageChapterDivider = "chapter_divider"
	PagePhotoGrid      = "photo_grid"
	PageBackCover      = "back_cover"
)

// BookPlan is the output of the planner. It contains no timestamps of its own
// so identical inputs serialize to identical bytes.
type BookPlan struct {
	BookID       string             `json:"bookId"`
	Title        string             `json:"title"`
	Subtitle     string             `json:"subtitle"`
	DateRange    manifest.DateRange `json:"dateRange"`
	GeoCoverage  float64            `json:"geoCoverage"`
	MapOrGallery string             `json:"mapOrGallery"`
	MapDetail    string             `json:"mapDetail"`
	DayMaps      string             `json:"dayMaps"`
	MapAsset     *MapAsset          `json:"mapAsset"`
	Highlights   []Highlight        `json:"highlights"`
	GalleryPicks []string           `json:"galleryPicks"`
	StopLegend   Legend             `json:"stopLegend"`
	Chapters     []Chapter          `json:"chapters"`
	PicksSource  string             `json:"picksSource"`
	Blurb        string             `json:"blurb"`
	Pages        []Page             `json:"pages"`
	Modes        Modes              `json:"modes"`
}

// MapRequest is what a renderer needs to draw the trip map.
type MapRequest struct {
	BookID string
	// Route is the geotagged photo positions in capture order.
	Route []geo.Point
	// Stops are the legend stops, numbered in legend order.
	Stops []LegendEntry
}

// MapRenderer draws the trip map. Any error makes the planner fall back to a gallery.
type MapRenderer interface {
	RenderMap(ctx context.Context, req MapRequest) (*MapAsset, error)
}

// Candidate is a photo eligible for highlights.
type Candidate struct {
	AssetID string
	Score   float64
	Segment timeline.Position
	HasGeo  bool
}

// DiversityScorer adjusts candidate scores for enhanced picks. It must be
// deterministic for a given candidate list.
type DiversityScorer interface {
	Adjust(ctx context.Context, candidates []Candidate) map[string]float64
}
