// Package geocode resolves coordinates to human-readable place labels.
package geocode

import (
	"context"
	"strings"

	"github.com/kozaktomas/trip-book/internal/geo"
)

// Place is a reverse-geocoding result.
type Place struct {
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// ShortLabel returns the most specific two-part label available,
// preferring city+state, then city+country, state+country, city and country.
func (p Place) ShortLabel() string {
	switch {
	case p.City != "" && p.State != "":
		return p.City + ", " + p.State
	case p.City != "" && p.Country != "":
		return p.City + ", " + p.Country
	case p.State != "" && p.Country != "":
		return p.State + ", " + p.Country
	case p.City != "":
		return p.City
	case p.Country != "":
		return p.Country
	}
	return TruncateLabel(p.DisplayName, 2)
}

// CityLabel returns the city-level label used for chapters and coarse legends.
func (p Place) CityLabel() string {
	switch {
	case p.City != "":
		return p.City
	case p.State != "":
		return p.State
	}
	return p.Country
}

// Empty reports whether the place carries no name at all.
func (p Place) Empty() bool {
	return p.City == "" && p.State == "" && p.Country == "" && p.DisplayName == ""
}

// TruncateLabel keeps the first n comma-separated parts of a label.
func TruncateLabel(label string, n int) string {
	parts := strings.Split(label, ",")
	out := make([]string, 0, n)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
		if len(out) == n {
			break
		}
	}
	return strings.Join(out, ", ")
}

// ReverseGeocoder resolves a coordinate to a place. Implementations return an
// error on failure or timeout; callers fall back to coordinate labels.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (*Place, error)
}
