package planner

import (
	"cmp"
	"strings"

	"github.com/kozaktomas/trip-book/internal/geocode"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/kozaktomas/trip-book/internal/timeline"
)

// chapterLabel is the city-level name of a stop.
func chapterLabel(s places.Stop) string {
	if s.CityLabel != "" {
		return s.CityLabel
	}
	return s.Label()
}

// dayLabels returns the dominant city label of every day: the label of the
// visible stop with the most photos taken that day, ties by stable id. Days
// without stops inherit the previous label; leading unlabelled days take the
// first label found.
func dayLabels(days []timeline.Day, stops []places.Stop) []string {
	members := map[string]places.Stop{}
	for _, s := range places.Visible(stops) {
		for _, id := range s.AssetIDs {
			members[id] = s
		}
	}

	labels := make([]string, len(days))
	for i, d := range days {
		counts := map[string]int{}
		var best *places.Stop
		for _, id := range d.AssetIDs {
			s, ok := members[id]
			if !ok {
				continue
			}
			counts[s.StableID]++
			if best == nil {
				best = &s
				continue
			}
			c := cmp.Compare(counts[s.StableID], counts[best.StableID])
			if c > 0 || (c == 0 && s.StableID < best.StableID) {
				best = &s
			}
		}
		if best != nil {
			labels[i] = chapterLabel(*best)
		}
	}

	prev := ""
	for i := range labels {
		if labels[i] == "" {
			labels[i] = prev
		}
		prev = labels[i]
	}
	first := ""
	for _, l := range labels {
		if l != "" {
			first = l
			break
		}
	}
	for i := range labels {
		if labels[i] != "" {
			break
		}
		labels[i] = first
	}
	return labels
}

// buildChapters emits one chapter per contiguous run of days sharing a label.
// A return to an earlier city opens a new chapter.
func buildChapters(days []timeline.Day, stops []places.Stop, mode ChapterMode, fallback string) []Chapter {
	if mode == ChapterOff || len(days) == 0 {
		return []Chapter{}
	}
	labels := dayLabels(days, stops)

	chapters := []Chapter{}
	distinct := map[string]bool{}
	for i, label := range labels {
		key := geocode.LabelKey(label)
		distinct[key] = true
		if n := len(chapters); n > 0 && geocode.LabelKey(chapters[n-1].CityLabel) == key {
			chapters[n-1].EndDayIndex = days[i].DayIndex
			continue
		}
		chapters = append(chapters, Chapter{CityLabel: label, StartDayIndex: days[i].DayIndex, EndDayIndex: days[i].DayIndex})
	}

	if mode == ChapterAuto && len(distinct) < 2 {
		return []Chapter{}
	}
	for i := range chapters {
		if strings.TrimSpace(chapters[i].CityLabel) == "" {
			chapters[i].CityLabel = fallback
		}
	}
	return chapters
}

// dominantCity is the label of the stop with the most photos, ties by stable id.
func dominantCity(stops []places.Stop) string {
	var best *places.Stop
	for i := range stops {
		s := &stops[i]
		if best == nil || s.TotalPhotos > best.TotalPhotos ||
			(s.TotalPhotos == best.TotalPhotos && s.StableID < best.StableID) {
			best = s
		}
	}
	if best == nil {
		return ""
	}
	return chapterLabel(*best)
}
