package quality

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/kozaktomas/trip-book/internal/database"
	"github.com/kozaktomas/trip-book/internal/fingerprint"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ImageSource loads the raw bytes of a photo.
type ImageSource interface {
	Open(ctx context.Context, asset manifest.AssetRecord) ([]byte, error)
}

// DirSource reads photos from disk. Relative asset paths are resolved
// against Root; assets without a path fall back to their id.
type DirSource struct {
	Root string
}

// Open implements ImageSource.
func (s DirSource) Open(_ context.Context, asset manifest.AssetRecord) ([]byte, error) {
	p := asset.Path
	if p == "" {
		p = asset.ID
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.Root, filepath.FromSlash(p))
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// Result is the analysis of one photo.
type Result struct {
	Metrics   Metrics
	Hashes    fingerprint.Hashes
	HasHashes bool
	Embedding []float32
}

// cachedAnalysis holds raw measurements only. Flags and score depend on the
// configured thresholds and are rebuilt on every read.
type cachedAnalysis struct {
	BlurScore   float64   `json:"blurScore"`
	Brightness  float64   `json:"brightness"`
	Contrast    float64   `json:"contrast"`
	EdgeDensity float64   `json:"edgeDensity"`
	PHash       string    `json:"phash"`
	DHash       string    `json:"dhash"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// Analyzer measures photos in parallel and caches results by content hash.
type Analyzer struct {
	source   ImageSource
	cache    database.AnalysisCache
	embedder fingerprint.Embedder
	opts     Options
	log      *logrus.Logger

	progressMu sync.Mutex
	progress   func()
}

// NewAnalyzer creates an analyzer. cache may be nil.
func NewAnalyzer(source ImageSource, cache database.AnalysisCache, opts Options, log *logrus.Logger) *Analyzer {
	return &Analyzer{source: source, cache: cache, opts: opts, log: log}
}

// WithEmbedder enables embedding computation for the duplicate index.
func (a *Analyzer) WithEmbedder(e fingerprint.Embedder) *Analyzer {
	a.embedder = e
	return a
}

// OnProgress registers a callback invoked once per analyzed photo.
func (a *Analyzer) OnProgress(fn func()) {
	a.progress = fn
}

// Analyze returns one result per asset in the same order as assets. Per-photo
// failures produce unreadable metrics; only context cancellation is an error.
func (a *Analyzer) Analyze(ctx context.Context, assets []manifest.AssetRecord) ([]Result, error) {
	results := make([]Result, len(assets))

	workers := a.opts.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, asset := range assets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.analyzeOne(gctx, asset)
			a.tick()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze photos: %w", err)
	}
	return results, nil
}

func (a *Analyzer) tick() {
	if a.progress == nil {
		return
	}
	a.progressMu.Lock()
	defer a.progressMu.Unlock()
	a.progress()
}

func (a *Analyzer) analyzeOne(ctx context.Context, asset manifest.AssetRecord) Result {
	log := a.log.WithField("photo", asset.ID)

	if a.source == nil {
		return Result{Metrics: Unreadable(asset.ID)}
	}
	data, err := a.source.Open(ctx, asset)
	if err != nil {
		log.WithError(err).Warn("photo missing, skipping metrics")
		return Result{Metrics: Unreadable(asset.ID)}
	}

	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])

	if res, ok := a.fromCache(ctx, contentHash, asset.ID); ok {
		if a.embedder != nil && res.Embedding == nil {
			res.Embedding = a.embed(ctx, data, log)
			if res.Embedding != nil {
				a.toCache(ctx, res)
			}
		}
		return res
	}

	img, err := fingerprint.Decode(data)
	if err != nil {
		log.WithError(err).Warn("photo unreadable, skipping metrics")
		m := Unreadable(asset.ID)
		m.ContentHash = contentHash
		return Result{Metrics: m}
	}

	m := Measure(asset.ID, img, a.opts)
	m.ContentHash = contentHash
	hashes := fingerprint.Compute(img)
	m.PHash, m.DHash = hashes.Hex()

	res := Result{Metrics: m, Hashes: hashes, HasHashes: true}
	if a.embedder != nil {
		res.Embedding = a.embed(ctx, data, log)
	}
	a.toCache(ctx, res)
	return res
}

func (a *Analyzer) embed(ctx context.Context, data []byte, log *logrus.Entry) []float32 {
	emb, err := a.embedder.Embed(ctx, data)
	if err != nil {
		log.WithError(err).Warn("embedding failed")
		return nil
	}
	return emb
}

func (a *Analyzer) fromCache(ctx context.Context, contentHash, photoID string) (Result, bool) {
	if a.cache == nil {
		return Result{}, false
	}
	payload, err := a.cache.GetAnalysis(ctx, a.cacheKey(contentHash))
	if err != nil {
		a.log.WithError(err).Warn("analysis cache read failed")
		return Result{}, false
	}
	if payload == nil {
		return Result{}, false
	}
	var cached cachedAnalysis
	if err := json.Unmarshal(payload, &cached); err != nil {
		a.log.WithError(err).Warn("analysis cache entry corrupt")
		return Result{}, false
	}
	hashes, ok := parseHashes(cached.PHash, cached.DHash)
	if !ok {
		return Result{}, false
	}
	m := Metrics{
		PhotoID:     photoID,
		BlurScore:   cached.BlurScore,
		Brightness:  cached.Brightness,
		Contrast:    cached.Contrast,
		EdgeDensity: cached.EdgeDensity,
		ContentHash: contentHash,
		PHash:       cached.PHash,
		DHash:       cached.DHash,
	}
	m.Flags = flags(m, a.opts)
	m.QualityScore = score(m, a.opts)
	return Result{Metrics: m, Hashes: hashes, HasHashes: true, Embedding: cached.Embedding}, true
}

func (a *Analyzer) toCache(ctx context.Context, res Result) {
	if a.cache == nil {
		return
	}
	m := res.Metrics
	payload, err := json.Marshal(cachedAnalysis{
		BlurScore:   m.BlurScore,
		Brightness:  m.Brightness,
		Contrast:    m.Contrast,
		EdgeDensity: m.EdgeDensity,
		PHash:       m.PHash,
		DHash:       m.DHash,
		Embedding:   res.Embedding,
	})
	if err != nil {
		return
	}
	if err := a.cache.PutAnalysis(ctx, a.cacheKey(m.ContentHash), payload); err != nil {
		a.log.WithError(err).Warn("analysis cache write failed")
	}
}

// cacheKey scopes entries by the downscale size, the one option that changes
// the raw measurements themselves.
func (a *Analyzer) cacheKey(contentHash string) string {
	return contentHash + "@" + strconv.Itoa(a.opts.MaxDimension)
}

func parseHashes(p, d string) (fingerprint.Hashes, bool) {
	ph, err := strconv.ParseUint(p, 16, 64)
	if err != nil {
		return fingerprint.Hashes{}, false
	}
	dh, err := strconv.ParseUint(d, 16, 64)
	if err != nil {
		return fingerprint.Hashes{}, false
	}
	return fingerprint.Hashes{PHash: ph, DHash: dh}, true
}

// Index maps results by photo id.
func Index(results []Result) map[string]Result {
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[r.Metrics.PhotoID] = r
	}
	return out
}

// ApplyFlags returns copies of assets carrying their analyzed quality flags.
func ApplyFlags(assets []manifest.AssetRecord, results []Result) []manifest.AssetRecord {
	byID := Index(results)
	out := make([]manifest.AssetRecord, len(assets))
	for i, a := range assets {
		if r, ok := byID[a.ID]; ok {
			a.QualityFlags = append([]string(nil), r.Metrics.Flags...)
		}
		out[i] = a
	}
	return out
}
