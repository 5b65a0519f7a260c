// Package pipeline runs the planning stages for one book and persists the result.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/trip-book/internal/config"
	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/curation"
	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/duplicates"
	"github.com/kozaktomas/trip-book/internal/fingerprint"
	"github.com/kozaktomas/trip-book/internal/geocode"
	"github.com/kozaktomas/trip-book/internal/logging"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/metrics"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/kozaktomas/trip-book/internal/planner"
	"github.com/kozaktomas/trip-book/internal/quality"
	"github.com/kozaktomas/trip-book/internal/timeline"
	"github.com/sirupsen/logrus"
)

// ErrSuperseded is returned when a newer generation of the same book started
// before this one finished. Nothing is written in that case.
var ErrSuperseded = errors.New("generation superseded")

// Stage names reported through progress callbacks and metrics.
const (
	StageManifest   = "manifest"
	StageTimeline   = "timeline"
	StagePlaces     = "places"
	StageQuality    = "quality"
	StageDuplicates = "duplicates"
	StageCuration   = "curation"
	StagePlanner    = "planner"
	StageSave       = "save"
)

// geocodeCacheSize is the in-memory LRU capacity in front of the persistent cache.
const geocodeCacheSize = 2048

// ProgressInfo is passed to the progress callback when a stage starts.
type ProgressInfo struct {
	GenerationID string
	Stage        string
	Message      string
}

// Request is one generation request for a book.
type Request struct {
	Title  string
	Assets []manifest.AssetRecord
	Modes  planner.Modes
	// PicksSource may be "enhanced" to ask for scorer-adjusted picks.
	PicksSource string
	OnProgress  func(ProgressInfo)
}

// Debug carries the intermediate results of a generation.
type Debug struct {
	Days              []timeline.Day         `json:"days"`
	Stops             []places.Stop          `json:"stops"`
	OrphanedOverrides []string               `json:"orphanedOverrides"`
	Quality           []quality.Metrics      `json:"quality"`
	Duplicates        []duplicates.Group     `json:"duplicates"`
	Suggestions       curation.SuggestionSet `json:"suggestions"`
	Itinerary         []planner.ItineraryDay `json:"itinerary"`
	StageDurations    map[string]string      `json:"stageDurations"`
}

// Result is the outcome of a finished generation.
type Result struct {
	GenerationID string            `json:"generationId"`
	StartedAt    time.Time         `json:"startedAt"`
	Plan         *planner.BookPlan `json:"plan"`
	Debug        Debug             `json:"debug"`
	// Saved is false when a newer plan was already stored.
	Saved bool `json:"saved"`
}

type generation struct {
	id     string
	cancel context.CancelFunc
}

// Generator runs the pipeline. Collaborators are optional: without a geocoder
// stops carry coordinate labels, without an image source no quality analysis
// runs, without a renderer map decisions are kept but no map is drawn.
type Generator struct {
	store    database.Store
	cfg      config.PipelineConfig
	geocoder geocode.ReverseGeocoder
	renderer planner.MapRenderer
	scorer   planner.DiversityScorer
	source   quality.ImageSource
	embedder fingerprint.Embedder
	metrics  *metrics.Recorder
	log      *logrus.Logger
	now      func() time.Time

	mu      sync.Mutex
	running map[string]generation
	debug   map[string]Debug
}

// NewGenerator creates a generator persisting through store.
func NewGenerator(store database.Store, cfg config.PipelineConfig, log *logrus.Logger) *Generator {
	if log == nil {
		log = logging.Discard()
	}
	return &Generator{
		store:   store,
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		running: make(map[string]generation),
		debug:   make(map[string]Debug),
	}
}

// WithGeocoder labels stops through g, cached in memory and in the store.
func (g *Generator) WithGeocoder(rg geocode.ReverseGeocoder) *Generator {
	g.geocoder = geocode.NewCached(rg, g.store, geocodeCacheSize, g.log)
	return g
}

func (g *Generator) WithMapRenderer(r planner.MapRenderer) *Generator {
	g.renderer = r
	return g
}

func (g *Generator) WithDiversityScorer(s planner.DiversityScorer) *Generator {
	g.scorer = s
	return g
}

// WithImageSource enables quality analysis and duplicate detection.
func (g *Generator) WithImageSource(src quality.ImageSource) *Generator {
	g.source = src
	return g
}

// WithEmbedder adds the embedding index to duplicate detection.
func (g *Generator) WithEmbedder(e fingerprint.Embedder) *Generator {
	g.embedder = e
	return g
}

func (g *Generator) WithMetrics(m *metrics.Recorder) *Generator {
	g.metrics = m
	return g
}

// WithClock replaces the clock used for generation timestamps.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// begin registers a generation for the book and cancels the previous one.
func (g *Generator) begin(ctx context.Context, bookID string) (context.Context, string, func()) {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()

	g.mu.Lock()
	if prev, ok := g.running[bookID]; ok {
		g.log.WithFields(logrus.Fields{"book": bookID, "generation": prev.id}).Info("superseding running generation")
		prev.cancel()
	}
	g.running[bookID] = generation{id: id, cancel: cancel}
	g.mu.Unlock()

	return ctx, id, func() {
		g.mu.Lock()
		if cur, ok := g.running[bookID]; ok && cur.id == id {
			delete(g.running, bookID)
		}
		g.mu.Unlock()
		cancel()
	}
}

// Generate runs every stage for the book and stores the plan. A later call for
// the same book cancels this one, which then returns ErrSuperseded without
// writing. Only malformed input, store failures and cancellation are errors.
func (g *Generator) Generate(ctx context.Context, bookID string, req Request) (*Result, error) {
	ctx, genID, done := g.begin(ctx, bookID)
	defer done()

	res := &Result{GenerationID: genID, StartedAt: g.now()}
	res.Debug.StageDurations = map[string]string{}
	log := g.log.WithFields(logrus.Fields{"book": bookID, "generation": genID})

	var stageStart time.Time
	var stageName string
	enter := func(name, msg string) {
		if stageName != "" {
			g.finishStage(res, stageName, stageStart)
		}
		stageName, stageStart = name, time.Now()
		if req.OnProgress != nil {
			req.OnProgress(ProgressInfo{GenerationID: genID, Stage: name, Message: msg})
		}
	}

	fail := func(err error) (*Result, error) {
		if ctx.Err() != nil {
			g.metrics.Generation(metrics.ResultSuperseded)
			log.Info("generation abandoned")
			return nil, fmt.Errorf("%w: %w", ErrSuperseded, ctx.Err())
		}
		g.metrics.Generation(metrics.ResultFailed)
		return nil, err
	}

	enter(StageManifest, fmt.Sprintf("normalizing %d assets", len(req.Assets)))
	m, err := manifest.Build(req.Assets)
	if err != nil {
		return fail(fmt.Errorf("build manifest: %w", err))
	}

	enter(StageTimeline, fmt.Sprintf("segmenting %d approved photos", len(m.Approved)))
	days, err := timeline.Build(ctx, m.Approved, timelineOptions(g.cfg))
	if err != nil {
		return fail(fmt.Errorf("segment timeline: %w", err))
	}
	res.Debug.Days = days

	enter(StagePlaces, "clustering stops")
	stops := places.NewClusterer(g.geocoder, placesOptions(g.cfg), g.log).Cluster(ctx, m.Approved, days)
	stored, err := g.store.GetOverrides(ctx, bookID)
	if err != nil {
		return fail(fmt.Errorf("load overrides: %w", err))
	}
	overrides := toOverrides(stored)
	stops = places.ApplyOverrides(stops, overrides)
	res.Debug.Stops = stops
	res.Debug.OrphanedOverrides = places.Orphaned(stops, overrides)
	if n := len(res.Debug.OrphanedOverrides); n > 0 {
		log.WithField("orphaned", n).Debug("overrides without a matching stop ignored")
	}

	enter(StageQuality, fmt.Sprintf("analyzing %d photos", len(m.Curatable)))
	var results []quality.Result
	if g.source != nil {
		analyzer := quality.NewAnalyzer(g.source, g.store, QualityOptions(g.cfg), g.log)
		if g.embedder != nil {
			analyzer.WithEmbedder(g.embedder)
		}
		results, err = analyzer.Analyze(ctx, m.Curatable)
		if err != nil {
			return fail(err)
		}
		g.metrics.PhotosAnalyzed(len(results))
	}
	byID := quality.Index(results)
	metricList := make([]quality.Metrics, 0, len(results))
	qualityByID := make(map[string]quality.Metrics, len(results))
	for _, r := range results {
		metricList = append(metricList, r.Metrics)
		qualityByID[r.Metrics.PhotoID] = r.Metrics
	}
	res.Debug.Quality = metricList

	enter(StageDuplicates, "detecting near-duplicates")
	groups := duplicates.Detect(m.Curatable, byID, duplicateOptions(g.cfg, g.embedder != nil))
	res.Debug.Duplicates = groups
	g.metrics.DuplicateGroups(len(groups))

	enter(StageCuration, "ranking suggestions")
	res.Debug.Suggestions = curation.NewSuggester(curationParams(g.cfg), g.now).Suggest(metricList, groups)

	enter(StagePlanner, "planning book")
	picks, err := g.store.GetPicks(ctx, bookID)
	if err != nil {
		return fail(fmt.Errorf("load picks: %w", err))
	}
	p := planner.New(plannerOptions(g.cfg), g.log)
	if g.renderer != nil {
		p.WithMapRenderer(g.renderer)
	}
	if scorer := g.diversityScorer(results); scorer != nil {
		p.WithDiversityScorer(scorer)
	}
	plan, err := p.Plan(ctx, planner.Input{
		BookID:          bookID,
		Title:           req.Title,
		Assets:          m.Approved,
		Days:            days,
		Stops:           stops,
		Quality:         qualityByID,
		Duplicates:      groups,
		Picks:           toUserPicks(picks),
		RequestedSource: req.PicksSource,
		Modes:           req.Modes,
	})
	if err != nil {
		return fail(fmt.Errorf("plan book: %w", err))
	}
	res.Plan = plan
	res.Debug.Itinerary = p.Itinerary(days, stops)
	g.metrics.GeoCoverage(plan.GeoCoverage)
	if g.renderer != nil && plan.MapOrGallery == planner.OutputGallery && plan.Modes.Map != planner.MapOff &&
		len(places.Visible(stops)) > 0 && plan.GeoCoverage >= constants.CoarseMapCoverage {
		g.metrics.MapFallback()
	}

	enter(StageSave, "saving plan")
	if ctx.Err() != nil {
		return fail(ctx.Err())
	}
	payload, err := json.Marshal(plan)
	if err != nil {
		return fail(fmt.Errorf("encode plan: %w", err))
	}
	saved, err := g.store.SavePlan(ctx, &database.StoredPlan{
		BookID:       bookID,
		GenerationID: genID,
		StartedAt:    res.StartedAt,
		Plan:         payload,
	})
	if err != nil {
		return fail(fmt.Errorf("save plan: %w", err))
	}
	res.Saved = saved
	g.finishStage(res, StageSave, stageStart)

	if saved {
		g.mu.Lock()
		g.debug[bookID] = res.Debug
		g.mu.Unlock()
	} else {
		log.Info("newer plan already stored, result not saved")
	}
	g.metrics.Generation(metrics.ResultOK)
	log.WithFields(logrus.Fields{
		"photos":     len(m.Approved),
		"stops":      len(stops),
		"highlights": len(plan.Highlights),
		"output":     plan.MapOrGallery,
	}).Info("book plan generated")
	return res, nil
}

// diversityScorer prefers the injected scorer and otherwise builds one from
// the embeddings of this generation, if any were computed.
func (g *Generator) diversityScorer(results []quality.Result) planner.DiversityScorer {
	if g.scorer != nil {
		return g.scorer
	}
	vectors := map[string][]float32{}
	for _, r := range results {
		if len(r.Embedding) > 0 {
			vectors[r.Metrics.PhotoID] = r.Embedding
		}
	}
	if len(vectors) == 0 {
		return nil
	}
	return embeddingScorer{vectors: vectors}
}

func (g *Generator) finishStage(res *Result, stage string, start time.Time) {
	d := time.Since(start)
	res.Debug.StageDurations[stage] = d.Round(time.Microsecond).String()
	g.metrics.ObserveStage(stage, d)
}

// LatestPlan returns the stored plan of a book, nil if none was generated yet.
func (g *Generator) LatestPlan(ctx context.Context, bookID string) (*planner.BookPlan, error) {
	stored, err := g.store.GetPlan(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if stored == nil {
		return nil, nil
	}
	var plan planner.BookPlan
	if err := json.Unmarshal(stored.Plan, &plan); err != nil {
		return nil, fmt.Errorf("decode stored plan: %w", err)
	}
	return &plan, nil
}

// LatestDebug returns the intermediate results of the last generation of the
// book saved by this process.
func (g *Generator) LatestDebug(bookID string) (Debug, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.debug[bookID]
	return d, ok
}

func toOverrides(stored map[string]database.StopOverride) map[string]places.Override {
	out := make(map[string]places.Override, len(stored))
	for id, o := range stored {
		out[id] = places.Override{OverrideName: o.OverrideName, Hidden: o.Hidden}
	}
	return out
}

func toUserPicks(p *database.StoredPicks) *planner.UserPicks {
	if p == nil {
		return nil
	}
	return &planner.UserPicks{Source: p.Source, Highlights: p.Highlights, Gallery: p.Gallery}
}
