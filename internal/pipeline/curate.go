package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/trip-book/internal/curation"
	"github.com/kozaktomas/trip-book/internal/duplicates"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/quality"
)

// ErrNoImageSource is returned by Curate when no image source is configured.
var ErrNoImageSource = errors.New("no image source configured")

// CurateResult is the quality, duplicate and suggestion output for a set of
// photos, independent of any book.
type CurateResult struct {
	// Assets are the curatable assets in canonical order with quality flags applied.
	Assets      []manifest.AssetRecord `json:"assets"`
	Quality     []quality.Metrics      `json:"quality"`
	Duplicates  []duplicates.Group     `json:"duplicates"`
	Suggestions curation.SuggestionSet `json:"suggestions"`
}

// Curate analyzes approved and imported photos and ranks curation suggestions.
// onPhoto, if set, is called once per analyzed photo.
func (g *Generator) Curate(ctx context.Context, assets []manifest.AssetRecord, onPhoto func()) (*CurateResult, error) {
	if g.source == nil {
		return nil, ErrNoImageSource
	}
	m, err := manifest.Build(assets)
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}

	analyzer := quality.NewAnalyzer(g.source, g.store, QualityOptions(g.cfg), g.log)
	if g.embedder != nil {
		analyzer.WithEmbedder(g.embedder)
	}
	if onPhoto != nil {
		analyzer.OnProgress(onPhoto)
	}
	results, err := analyzer.Analyze(ctx, m.Curatable)
	if err != nil {
		return nil, err
	}
	g.metrics.PhotosAnalyzed(len(results))

	metricList := make([]quality.Metrics, len(results))
	for i, r := range results {
		metricList[i] = r.Metrics
	}
	groups := duplicates.Detect(m.Curatable, quality.Index(results), duplicateOptions(g.cfg, g.embedder != nil))
	g.metrics.DuplicateGroups(len(groups))

	return &CurateResult{
		Assets:      quality.ApplyFlags(m.Curatable, results),
		Quality:     metricList,
		Duplicates:  groups,
		Suggestions: curation.NewSuggester(curationParams(g.cfg), g.now).Suggest(metricList, groups),
	}, nil
}
