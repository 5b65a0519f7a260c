package maprender

import (
	"math"
	"slices"

	"github.com/kozaktomas/trip-book/internal/geo"
)

// dominantCluster groups points greedily around the first point of each
// cluster and returns the members of the largest one in input order. When
// every cluster is a singleton all points are returned.
func dominantCluster(points []geo.Point, radiusKm float64) []geo.Point {
	if len(points) == 0 {
		return nil
	}
	var reps []geo.Point
	assign := make([]int, len(points))
	var sizes []int
	for i, p := range points {
		assign[i] = -1
		for c, r := range reps {
			if geo.DistanceKm(p, r) <= radiusKm {
				assign[i] = c
				sizes[c]++
				break
			}
		}
		if assign[i] < 0 {
			assign[i] = len(reps)
			reps = append(reps, p)
			sizes = append(sizes, 1)
		}
	}

	best := 0
	for c, n := range sizes {
		if n > sizes[best] {
			best = c
		}
	}
	if sizes[best] <= 1 {
		return slices.Clone(points)
	}
	var out []geo.Point
	for i, p := range points {
		if assign[i] == best {
			out = append(out, p)
		}
	}
	return out
}

// trimOutliers drops points further from the centroid than three times the
// median distance, but never closer than 5 km.
func trimOutliers(points []geo.Point) []geo.Point {
	if len(points) < 2 {
		return points
	}
	center := geo.Centroid(points)
	dists := make([]float64, len(points))
	for i, p := range points {
		dists[i] = geo.DistanceKm(p, center)
	}
	limit := math.Max(5, 3*median(dists))

	var out []geo.Point
	for i, p := range points {
		if dists[i] <= limit {
			out = append(out, p)
		}
	}
	if len(out) < 2 {
		return points
	}
	return out
}

func median(values []float64) float64 {
	s := slices.Clone(values)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Simplify keeps the first and last point, drops intermediate points closer
// than minSpacingKm to the previously kept one and then samples evenly down to
// maxPoints.
func Simplify(points []geo.Point, maxPoints int, minSpacingKm float64) []geo.Point {
	if len(points) < 3 {
		return slices.Clone(points)
	}
	out := []geo.Point{points[0]}
	last := points[0]
	for _, p := range points[1 : len(points)-1] {
		if geo.DistanceKm(p, last) >= minSpacingKm {
			out = append(out, p)
			last = p
		}
	}
	out = append(out, points[len(points)-1])

	if maxPoints >= 2 && len(out) > maxPoints {
		inner := out[1 : len(out)-1]
		step := int(math.Ceil(float64(len(inner)) / float64(maxPoints-2)))
		sampled := []geo.Point{out[0]}
		for i := 0; i < len(inner); i += step {
			sampled = append(sampled, inner[i])
		}
		out = append(sampled, out[len(out)-1])
	}
	return out
}

// frame returns the padded view box of the points. A very skinny route is
// widened so its short side is at least 30% of the long side.
func frame(points []geo.Point, padding, minSpan float64) geo.BBox {
	b := geo.Bounds(points)
	latSpan := math.Max(b.MaxLat-b.MinLat, minSpan)
	lonSpan := math.Max(b.MaxLon-b.MinLon, minSpan)
	long := math.Max(latSpan, lonSpan)
	if latSpan < 0.3*long {
		latSpan = 0.3 * long
	}
	if lonSpan < 0.3*long {
		lonSpan = 0.3 * long
	}

	cLat := (b.MinLat + b.MaxLat) / 2
	cLon := (b.MinLon + b.MaxLon) / 2
	widened := geo.BBox{
		MinLat: cLat - latSpan/2,
		MaxLat: cLat + latSpan/2,
		MinLon: cLon - lonSpan/2,
		MaxLon: cLon + lonSpan/2,
	}
	return widened.Pad(padding, minSpan)
}

// project maps a point onto a canvas with north at the top.
func project(p geo.Point, box geo.BBox, width, height int) (float64, float64) {
	x := (p.Lon - box.MinLon) / math.Max(box.MaxLon-box.MinLon, 1e-9)
	y := (box.MaxLat - p.Lat) / math.Max(box.MaxLat-box.MinLat, 1e-9)
	return x * float64(width), y * float64(height)
}

func contains(box geo.BBox, p geo.Point) bool {
	return p.Lat >= box.MinLat && p.Lat <= box.MaxLat && p.Lon >= box.MinLon && p.Lon <= box.MaxLon
}
