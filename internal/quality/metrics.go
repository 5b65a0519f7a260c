// Package quality scores photos with classical image heuristics and caches
// the results by content hash.
package quality

import (
	"image"
	"math"

	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/fingerprint"
)

// Quality flags.
const (
	FlagVeryBlurry          = "very_blurry"
	FlagBlurry              = "blurry"
	FlagVeryDark            = "very_dark"
	FlagVeryBright          = "very_bright"
	FlagLowContrast         = "low_contrast"
	FlagLowEdgeDensity      = "low_edge_density"
	FlagMissingOrUnreadable = "missing_or_unreadable"
)

// Metrics are the heuristic measurements of one photo. QualityScore is in
// 0..1 where higher is better.
type Metrics struct {
	PhotoID      string   `json:"photoId"`
	BlurScore    float64  `json:"blurScore"`
	Brightness   float64  `json:"brightness"`
	Contrast     float64  `json:"contrast"`
	EdgeDensity  float64  `json:"edgeDensity"`
	QualityScore float64  `json:"qualityScore"`
	Flags        []string `json:"flags"`
	ContentHash  string   `json:"contentHash,omitempty"`
	Unreadable   bool     `json:"unreadable"`
	PHash        string   `json:"phash,omitempty"`
	DHash        string   `json:"dhash,omitempty"`
}

// HasFlag reports whether the metrics carry flag.
func (m Metrics) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Options holds the flag thresholds and score weights.
type Options struct {
	VeryBlurry     float64
	Blurry         float64
	Dark           float64
	Bright         float64
	LowContrast    float64
	LowEdgeDensity float64

	WeightBlur       float64
	WeightBrightness float64
	WeightContrast   float64
	WeightEdges      float64

	MaxDimension int
	Workers      int
}

// DefaultOptions returns the documented thresholds.
func DefaultOptions() Options {
	return Options{
		VeryBlurry:       100,
		Blurry:           300,
		Dark:             40,
		Bright:           220,
		LowContrast:      20,
		LowEdgeDensity:   0.02,
		WeightBlur:       0.45,
		WeightBrightness: 0.2,
		WeightContrast:   0.2,
		WeightEdges:      0.15,
		MaxDimension:     constants.QualityMaxDimension,
		Workers:          constants.WorkerPoolSize,
	}
}

// Unreadable returns the metrics used when an image cannot be loaded.
func Unreadable(photoID string) Metrics {
	return Metrics{
		PhotoID:    photoID,
		Flags:      []string{FlagMissingOrUnreadable},
		Unreadable: true,
	}
}

// Measure computes metrics on a grayscale copy of img downscaled to opts.MaxDimension.
func Measure(photoID string, img image.Image, opts Options) Metrics {
	gray := fingerprint.Luma(fingerprint.Downscale(img, opts.MaxDimension))

	m := Metrics{PhotoID: photoID}
	m.Brightness, m.Contrast = meanStddev(gray)
	m.BlurScore = laplacianVariance(gray)
	m.EdgeDensity = edgeDensity(gray, constants.EdgeGradientThreshold)
	m.Flags = flags(m, opts)
	m.QualityScore = score(m, opts)
	return m
}

func flags(m Metrics, opts Options) []string {
	out := []string{}
	switch {
	case m.BlurScore < opts.VeryBlurry:
		out = append(out, FlagVeryBlurry)
	case m.BlurScore < opts.Blurry:
		out = append(out, FlagBlurry)
	}
	if m.Brightness < opts.Dark {
		out = append(out, FlagVeryDark)
	}
	if m.Brightness > opts.Bright {
		out = append(out, FlagVeryBright)
	}
	if m.Contrast < opts.LowContrast {
		out = append(out, FlagLowContrast)
	}
	if m.EdgeDensity < opts.LowEdgeDensity {
		out = append(out, FlagLowEdgeDensity)
	}
	return out
}

// score combines per-metric badness terms, each in 0..1, and inverts the
// weighted sum so that sharp, well exposed photos score close to 1.
func score(m Metrics, opts Options) float64 {
	blurBad := clamp01((opts.VeryBlurry - m.BlurScore) / math.Max(1, opts.VeryBlurry))
	brightBad := clamp01(math.Abs(m.Brightness-127) / 127)
	contrastBad := clamp01((opts.LowContrast - m.Contrast) / math.Max(1, opts.LowContrast))
	edgeBad := clamp01((opts.LowEdgeDensity - m.EdgeDensity) / math.Max(1e-6, opts.LowEdgeDensity))

	bad := opts.WeightBlur*blurBad +
		opts.WeightBrightness*brightBad +
		opts.WeightContrast*contrastBad +
		opts.WeightEdges*edgeBad
	return clamp01(1 - bad)
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func meanStddev(gray [][]float64) (float64, float64) {
	var sum float64
	n := 0
	for _, row := range gray {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean := sum / float64(n)
	var variance float64
	for _, row := range gray {
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
	}
	return mean, math.Sqrt(variance / float64(n))
}

// laplacianVariance is the variance of the 4-neighbour Laplacian over interior pixels.
func laplacianVariance(gray [][]float64) float64 {
	h := len(gray)
	if h < 3 || len(gray[0]) < 3 {
		return 0
	}
	w := len(gray[0])
	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := gray[y-1][x] + gray[y+1][x] + gray[y][x-1] + gray[y][x+1] - 4*gray[y][x]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// edgeDensity is the fraction of interior pixels whose central-difference
// gradient magnitude exceeds threshold.
func edgeDensity(gray [][]float64, threshold float64) float64 {
	h := len(gray)
	if h < 3 || len(gray[0]) < 3 {
		return 0
	}
	w := len(gray[0])
	edges, n := 0, 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := gray[y][x+1] - gray[y][x-1]
			gy := gray[y+1][x] - gray[y-1][x]
			if math.Hypot(gx, gy) > threshold {
				edges++
			}
			n++
		}
	}
	return float64(edges) / float64(n)
}
