// Package places clusters geotagged photos into stops with identities that
// survive recomputation, labels them and re-applies user overrides.
package places

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/trip-book/internal/geo"
)

// Stop is a place visited during the trip, inferred from photo density.
type Stop struct {
	StableID           string     `json:"stableId"`
	CenterLat          float64    `json:"centerLat"`
	CenterLon          float64    `json:"centerLon"`
	VisitCount         int        `json:"visitCount"`
	TotalPhotos        int        `json:"totalPhotos"`
	TotalDurationHours float64    `json:"totalDurationHours"`
	TotalDistanceKm    float64    `json:"totalDistanceKm"`
	DayIndices         []int      `json:"dayIndices"`
	FirstTakenAt       *time.Time `json:"firstTakenAt,omitempty"`
	AssetIDs           []string   `json:"assetIds"`
	Thumbnails         []string   `json:"thumbnails"`
	RawName            *string    `json:"rawName"`
	DisplayName        *string    `json:"displayName"`
	BestPlaceName      *string    `json:"bestPlaceName"`
	CityLabel          string     `json:"cityLabel,omitempty"`
	OverrideName       *string    `json:"overrideName"`
	Hidden             bool       `json:"hidden"`
}

// Center returns the stop centroid.
func (s Stop) Center() geo.Point {
	return geo.Point{Lat: s.CenterLat, Lon: s.CenterLon}
}

// Label is the name shown to readers: the user override, then the geocoded
// name, then the short coordinate form.
func (s Stop) Label() string {
	if s.OverrideName != nil && *s.OverrideName != "" {
		return *s.OverrideName
	}
	if s.DisplayName != nil && *s.DisplayName != "" {
		return *s.DisplayName
	}
	return s.Center().String()
}

// StableID derives a stop identity from its member asset ids. The ids are
// sorted first so the identity does not depend on input order.
func StableID(assetIDs []string) string {
	ids := slices.Clone(assetIDs)
	slices.Sort(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return "stop_" + hex.EncodeToString(sum[:8])
}

// Visible returns the stops that are not hidden.
func Visible(stops []Stop) []Stop {
	out := make([]Stop, 0, len(stops))
	for _, s := range stops {
		if !s.Hidden {
			out = append(out, s)
		}
	}
	return out
}

// compareStops orders stops chronologically, undated stops last, ties by stable id.
func compareStops(a, b Stop) int {
	switch {
	case a.FirstTakenAt != nil && b.FirstTakenAt != nil:
		if c := a.FirstTakenAt.Compare(*b.FirstTakenAt); c != 0 {
			return c
		}
	case a.FirstTakenAt != nil:
		return -1
	case b.FirstTakenAt != nil:
		return 1
	}
	return strings.Compare(a.StableID, b.StableID)
}

// SortChronologically orders stops in place by first visit.
func SortChronologically(stops []Stop) {
	slices.SortFunc(stops, compareStops)
}
