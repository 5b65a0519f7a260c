// Package geo provides great-circle math shared by the segmenter, the clusterer and the map renderer.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/kozaktomas/trip-book/internal/constants"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within WGS84 bounds.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// String formats the point in the short "Lat, Lon" form used when no place name is known.
func (p Point) String() string {
	return fmt.Sprintf("%.3f, %.3f", p.Lat, p.Lon)
}

// DistanceKm returns the great-circle distance between two points in kilometres.
func DistanceKm(a, b Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * constants.EarthRadiusKm
}

// PathKm sums consecutive distances along the points in order.
func PathKm(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceKm(points[i-1], points[i])
	}
	return total
}

// Centroid averages the points in the given order. Callers that need
// order-independent results must pass points in a canonical order.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(points))
	return Point{Lat: lat / n, Lon: lon / n}
}

// Quantize snaps a point to a grid of the given step in degrees.
func Quantize(p Point, step float64) Point {
	if step <= 0 {
		return p
	}
	return Point{
		Lat: math.Round(p.Lat/step) * step,
		Lon: math.Round(p.Lon/step) * step,
	}
}

// BBox is an axis-aligned bounding box in degrees.
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Bounds returns the bounding box of the points.
func Bounds(points []Point) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	b := BBox{MinLat: points[0].Lat, MaxLat: points[0].Lat, MinLon: points[0].Lon, MaxLon: points[0].Lon}
	for _, p := range points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b
}

// Pad grows the box by a fraction of its span on each side and enforces a minimum span.
func (b BBox) Pad(fraction, minSpan float64) BBox {
	latSpan := math.Max(b.MaxLat-b.MinLat, minSpan)
	lonSpan := math.Max(b.MaxLon-b.MinLon, minSpan)
	cLat := (b.MinLat + b.MaxLat) / 2
	cLon := (b.MinLon + b.MaxLon) / 2
	halfLat := latSpan * (0.5 + fraction)
	halfLon := lonSpan * (0.5 + fraction)
	return BBox{
		MinLat: cLat - halfLat,
		MaxLat: cLat + halfLat,
		MinLon: cLon - halfLon,
		MaxLon: cLon + halfLon,
	}
}
