// Package fingerprint computes perceptual hashes and embeddings used to find
// near-duplicate photos.
package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/bits"
	"slices"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Hashes holds the two 64-bit perceptual hashes of an image.
type Hashes struct {
	PHash uint64 `json:"-"`
	DHash uint64 `json:"-"`
}

// Hex returns both hashes as 16-character hex strings.
func (h Hashes) Hex() (string, string) {
	return fmt.Sprintf("%016x", h.PHash), fmt.Sprintf("%016x", h.DHash)
}

// Decode decodes any of the supported image formats.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Compute returns the pHash and dHash of an image.
func Compute(img image.Image) Hashes {
	return Hashes{PHash: computePHash(img), DHash: computeDHash(img)}
}

// ComputeBytes decodes image data and hashes it.
func ComputeBytes(data []byte) (Hashes, error) {
	img, err := Decode(data)
	if err != nil {
		return Hashes{}, err
	}
	return Compute(img), nil
}

// HammingDistance counts differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether two hashes are within threshold bits.
func Similar(a, b uint64, threshold int) bool {
	return HammingDistance(a, b) <= threshold
}

// Downscale fits img into a maxSide x maxSide box keeping the aspect ratio.
// Images already small enough are returned unchanged.
func Downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	if w >= h {
		h = max(1, h*maxSide/w)
		w = maxSide
	} else {
		w = max(1, w*maxSide/h)
		h = maxSide
	}
	return resize(img, w, h)
}

// Luma converts img to a row-major grid of BT.601 luma values in 0..255.
func Luma(img image.Image) [][]float64 {
	b := img.Bounds()
	out := make([][]float64, b.Dy())
	for y := range b.Dy() {
		row := make([]float64, b.Dx())
		for x := range b.Dx() {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
		out[y] = row
	}
	return out
}

// phashFlatRatio is the share of the strongest low-frequency coefficient
// below which a coefficient counts as flat.
const phashFlatRatio = 0.02

// computePHash hashes the low frequencies of a 32x32 DCT against their median.
func computePHash(img image.Image) uint64 {
	gray := Luma(resize(img, 32, 32))
	dct := dct2(gray)

	// top-left 8x8 block without the DC term, padded with the next coefficients
	lowFreq := make([]float64, 0, 64)
	for u := range 8 {
		for v := range 8 {
			if u == 0 && v == 0 {
				continue
			}
			lowFreq = append(lowFreq, dct[u][v])
		}
	}
	lowFreq = append(lowFreq, dct[8][0])

	// Coefficients within phashFlatRatio of the strongest one carry no
	// structure on smooth images; they are fixed to 1 so resampling noise
	// around the median cannot flip them.
	median := medianOf(lowFreq)
	var peak float64
	for _, v := range lowFreq {
		peak = max(peak, math.Abs(v))
	}
	flat := peak * phashFlatRatio

	var hash uint64
	for i, v := range lowFreq {
		if math.Abs(v) <= flat || v > median {
			hash |= 1 << (63 - i)
		}
	}
	return hash
}

// computeDHash compares horizontally adjacent pixels of a 9x8 thumbnail.
func computeDHash(img image.Image) uint64 {
	gray := Luma(resize(img, 9, 8))
	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if gray[y][x] > gray[y][x+1] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

func resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// dct2 is a square DCT-II.
func dct2(gray [][]float64) [][]float64 {
	size := len(gray)
	cosTable := make([][]float64, size)
	for i := range cosTable {
		cosTable[i] = make([]float64, size)
		for j := range size {
			cosTable[i][j] = math.Cos(math.Pi * float64(i) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}

	out := make([][]float64, size)
	for u := range size {
		out[u] = make([]float64, size)
		for v := range size {
			var sum float64
			for y := range size {
				for x := range size {
					sum += gray[y][x] * cosTable[u][y] * cosTable[v][x]
				}
			}
			out[u][v] = sum
		}
	}
	return out
}

func medianOf(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
