package planner

import (
	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/geocode"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/kozaktomas/trip-book/internal/timeline"
)

// Stop kinds.
const (
	StopTravel = "travel"
	StopLocal  = "local"
)

// ItineraryStop is one segment of a day as shown in the itinerary.
type ItineraryStop struct {
	SegmentIndex  int     `json:"segmentIndex"`
	Kind          string  `json:"kind"`
	DistanceKm    float64 `json:"distanceKm"`
	DurationHours float64 `json:"durationHours"`
	PhotoCount    int     `json:"photoCount"`
	StableID      string  `json:"stableId,omitempty"`
	Label         string  `json:"label,omitempty"`
}

// ItineraryDay summarizes one day: where it went and how far.
type ItineraryDay struct {
	DayIndex           int     `json:"dayIndex"`
	Date               *string `json:"date"`
	PhotoCount         int     `json:"photoCount"`
	TotalDistanceKm    float64 `json:"totalDistanceKm"`
	TotalDurationHours float64 `json:"totalDurationHours"`
	// DisplayDistanceKm is nil when the total is implausible for one day.
	DisplayDistanceKm *float64        `json:"displayDistanceKm"`
	Label             string          `json:"label,omitempty"`
	Lines             []string        `json:"lines"`
	Stops             []ItineraryStop `json:"stops"`
}

// ClassifyStop reports whether a segment is a transfer or local wandering.
func ClassifyStop(distanceKm, durationHours float64) string {
	if distanceKm >= constants.ItineraryTravelKm || durationHours >= constants.ItineraryTravelHours {
		return StopTravel
	}
	return StopLocal
}

// Itinerary builds the per-day itinerary. Each segment becomes a stop labelled
// by the visible place holding most of its photos; day lines list the distinct
// labels in visiting order.
func (p *Planner) Itinerary(days []timeline.Day, stops []places.Stop) []ItineraryDay {
	members := map[string]places.Stop{}
	for _, s := range places.Visible(stops) {
		for _, id := range s.AssetIDs {
			members[id] = s
		}
	}
	labels := dayLabels(days, stops)

	out := make([]ItineraryDay, 0, len(days))
	for i, d := range days {
		day := ItineraryDay{
			DayIndex:   d.DayIndex,
			Date:       d.Date,
			PhotoCount: len(d.AssetIDs),
			Lines:      []string{},
			Stops:      make([]ItineraryStop, 0, len(d.Segments)),
		}
		seen := map[string]bool{}
		for _, seg := range d.Segments {
			stop := ItineraryStop{
				SegmentIndex: seg.SegmentIndex,
				PhotoCount:   len(seg.AssetIDs),
			}
			if seg.ApproxDistanceKm != nil {
				stop.DistanceKm = *seg.ApproxDistanceKm
			}
			if seg.DurationMinutes != nil {
				stop.DurationHours = *seg.DurationMinutes / 60
			}
			stop.Kind = ClassifyStop(stop.DistanceKm, stop.DurationHours)

			if place, ok := segmentPlace(seg, members); ok {
				stop.StableID = place.StableID
				stop.Label = geocode.TruncateLabel(place.Label(), 2)
				if key := geocode.LabelKey(stop.Label); key != "" && !seen[key] {
					seen[key] = true
					day.Lines = append(day.Lines, stop.Label)
				}
			}

			day.TotalDistanceKm += stop.DistanceKm
			day.TotalDurationHours += stop.DurationHours
			day.Stops = append(day.Stops, stop)
		}

		if p.plausibleDistance(day.TotalDistanceKm) {
			km := day.TotalDistanceKm
			day.DisplayDistanceKm = &km
		}
		// a day without places of its own would only inherit a neighbour's label
		if len(day.Lines) > 0 {
			day.Label = labels[i]
			if day.Label == "" {
				day.Label = day.Lines[0]
			}
		}
		out = append(out, day)
	}
	return out
}

func (p *Planner) plausibleDistance(km float64) bool {
	limit := p.opts.ItineraryMaxKmPerDay
	if limit <= 0 {
		limit = constants.DefaultItineraryMaxKmPerDay
	}
	return km >= 0 && km <= limit
}

// segmentPlace picks the visible stop holding most of the segment's photos,
// ties by stable id.
func segmentPlace(seg timeline.Segment, members map[string]places.Stop) (places.Stop, bool) {
	counts := map[string]int{}
	var best places.Stop
	found := false
	for _, id := range seg.AssetIDs {
		s, ok := members[id]
		if !ok {
			continue
		}
		counts[s.StableID]++
		if !found || counts[s.StableID] > counts[best.StableID] ||
			(counts[s.StableID] == counts[best.StableID] && s.StableID < best.StableID) {
			best, found = s, true
		}
	}
	return best, found
}
