package planner

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/logging"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/sirupsen/logrus"
)

// ErrUnsortedInput is returned when assets are not in canonical order.
var ErrUnsortedInput = errors.New("planner input is not in canonical order")

// Coarse map styles.
const (
	CoarseLargerClusters = "larger_clusters"
	CoarseDisableDayMaps = "disable_day_maps"
)

// Options holds the planner caps and thresholds.
type Options struct {
	HighlightCap     int
	GalleryCap       int
	LegendCap        int
	PicksPerSegment  int
	DiversityPenalty float64
	CoarseRadiusKm   float64
	CoarseMapStyle   string
	TrimSize         string
	MapRenderTimeout time.Duration
	// ItineraryMaxKmPerDay hides daily distances above it.
	ItineraryMaxKmPerDay float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		HighlightCap:     constants.DefaultHighlightCap,
		GalleryCap:       constants.DefaultGalleryCap,
		LegendCap:        constants.DefaultLegendCap,
		PicksPerSegment:  constants.DefaultPicksPerSegment,
		DiversityPenalty: constants.DefaultDiversityPenalty,
		CoarseRadiusKm:   constants.DefaultCoarseRadiusKm,
		CoarseMapStyle:   CoarseLargerClusters,
		TrimSize:         "8x8",
		MapRenderTimeout: constants.DefaultMapRenderTimeout,

		ItineraryMaxKmPerDay: constants.DefaultItineraryMaxKmPerDay,
	}
}

// Planner turns pipeline results into a BookPlan.
type Planner struct {
	opts     Options
	renderer MapRenderer
	scorer   DiversityScorer
	newRand  func(bookID string) *rand.Rand
	log      *logrus.Logger
}

// New creates a planner without a map renderer or diversity scorer.
func New(opts Options, log *logrus.Logger) *Planner {
	if log == nil {
		log = logging.Discard()
	}
	return &Planner{opts: opts, newRand: SeededRand, log: log}
}

// WithMapRenderer sets the map collaborator.
func (p *Planner) WithMapRenderer(r MapRenderer) *Planner {
	p.renderer = r
	return p
}

// WithDiversityScorer enables enhanced picks.
func (p *Planner) WithDiversityScorer(s DiversityScorer) *Planner {
	p.scorer = s
	return p
}

// WithRand replaces the tie-breaking generator factory.
func (p *Planner) WithRand(fn func(bookID string) *rand.Rand) *Planner {
	p.newRand = fn
	return p
}

// Plan evaluates the planning rules in order: coverage, map decision,
// chapters, picks, legend and page sequence. Collaborator failures degrade to
// documented fallbacks; only malformed input is an error.
func (p *Planner) Plan(ctx context.Context, in Input) (*BookPlan, error) {
	if !manifest.IsSorted(in.Assets) {
		return nil, ErrUnsortedInput
	}
	modes := in.Modes.Normalize()
	visible := places.Visible(in.Stops)

	plan := &BookPlan{
		BookID:       in.BookID,
		DateRange:    manifest.ComputeDateRange(in.Assets),
		GeoCoverage:  GeoCoverage(in.Assets),
		Highlights:   []Highlight{},
		GalleryPicks: []string{},
		StopLegend:   Legend{Entries: []LegendEntry{}},
		Chapters:     []Chapter{},
		Modes:        modes,
	}
	plan.Title = p.title(in.Title, visible)
	plan.Subtitle = plan.DateRange.Label

	decision := decideMap(plan.GeoCoverage, len(visible), modes.Map, p.opts.CoarseMapStyle)
	plan.MapOrGallery, plan.MapDetail, plan.DayMaps = decision.output, decision.detail, decision.dayMaps

	plan.Chapters = buildChapters(in.Days, in.Stops, modes.Chapter, plan.DateRange.Label)

	p.selectPicks(ctx, in, plan)

	if plan.MapOrGallery == OutputMap {
		legendStops := visible
		if legendDetail(plan.MapDetail, modes.Legend) == DetailCoarse {
			legendStops = places.Coarsen(in.Stops, p.opts.CoarseRadiusKm)
		}
		plan.StopLegend = BuildLegend(legendStops, p.opts.LegendCap)
		p.renderMap(ctx, in, plan)
	}

	plan.Blurb = Blurb(plan.DateRange.Days, len(in.Days), len(in.Assets), len(visible))
	plan.Pages = BuildPages(plan, in, p.opts.TrimSize)
	return plan, nil
}

func (p *Planner) title(requested string, visible []places.Stop) string {
	if requested != "" {
		return requested
	}
	if label := dominantCity(visible); label != "" {
		return "Trip to " + label
	}
	return "My Trip"
}

// renderMap calls the renderer with a bounded timeout and falls back to a
// gallery on any failure.
func (p *Planner) renderMap(ctx context.Context, in Input, plan *BookPlan) {
	if p.renderer == nil {
		return
	}
	timeout := p.opts.MapRenderTimeout
	if timeout <= 0 {
		timeout = constants.DefaultMapRenderTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	asset, err := p.renderer.RenderMap(rctx, MapRequest{
		BookID: in.BookID,
		Route:  route(in.Assets),
		Stops:  plan.StopLegend.Entries,
	})
	if err == nil && asset == nil {
		err = errors.New("renderer returned no map")
	}
	if err != nil {
		p.log.WithError(err).WithField("book", in.BookID).Warn("map render failed, falling back to gallery")
		plan.MapOrGallery = OutputGallery
		plan.MapDetail = DetailNone
		plan.DayMaps = DayMapsOff
		plan.StopLegend = Legend{Entries: []LegendEntry{}}
		return
	}
	plan.MapAsset = asset
}
