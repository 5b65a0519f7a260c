// Package manifest normalizes approved photo assets into the time-ordered
// sequence the rest of the planning pipeline consumes.
package manifest

import (
	"time"

	"github.com/kozaktomas/trip-book/internal/geo"
)

// Status is the curation state of an asset as maintained by the surrounding CRUD layer.
type Status string

// Status values. An empty status is treated as approved.
const (
	StatusImported Status = "imported"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// AssetRecord is a single uploaded photo with metadata already extracted upstream.
type AssetRecord struct {
	ID        string     `json:"id"`
	TakenAt   *time.Time `json:"takenAt,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Lat       *float64   `json:"lat,omitempty"`
	Lon       *float64   `json:"lon,omitempty"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Status    Status     `json:"status,omitempty"`
	// Path locates the image bytes for quality analysis (file path or store key).
	Path         string   `json:"path,omitempty"`
	QualityFlags []string `json:"qualityFlags,omitempty"`
}

// Point returns the asset's coordinate and whether it carries a usable geotag.
func (a AssetRecord) Point() (geo.Point, bool) {
	if a.Lat == nil || a.Lon == nil {
		return geo.Point{}, false
	}
	p := geo.Point{Lat: *a.Lat, Lon: *a.Lon}
	// 0,0 is what many cameras write when the GPS fix is missing
	if !p.Valid() || (p.Lat == 0 && p.Lon == 0) {
		return geo.Point{}, false
	}
	return p, true
}

// HasGeo reports whether the asset has a usable geotag.
func (a AssetRecord) HasGeo() bool {
	_, ok := a.Point()
	return ok
}

// Dated reports whether the asset has a capture timestamp.
func (a AssetRecord) Dated() bool {
	return a.TakenAt != nil && !a.TakenAt.IsZero()
}

// IsApproved reports whether the asset belongs to the approved set.
func (a AssetRecord) IsApproved() bool {
	return a.Status == "" || a.Status == StatusApproved
}

// IsCuratable reports whether curation may still act on the asset.
func (a AssetRecord) IsCuratable() bool {
	return a.IsApproved() || a.Status == StatusImported
}
