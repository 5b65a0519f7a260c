// Package curation turns quality metrics and duplicate groups into
// suggestions for photos the user may want to remove.
package curation

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/duplicates"
	"github.com/kozaktomas/trip-book/internal/quality"
)

// badFlags mark a photo as a likely reject.
var badFlags = []string{
	quality.FlagVeryDark,
	quality.FlagVeryBlurry,
	quality.FlagBlurry,
	quality.FlagLowContrast,
	quality.FlagLowEdgeDensity,
	quality.FlagMissingOrUnreadable,
}

// Params are echoed in every suggestion set.
type Params struct {
	MaxLikelyRejects   int `json:"maxLikelyRejects"`
	MaxDuplicateGroups int `json:"maxDuplicateGroups"`
}

// DefaultParams returns the documented caps.
func DefaultParams() Params {
	return Params{
		MaxLikelyRejects:   constants.DefaultMaxLikelyRejects,
		MaxDuplicateGroups: constants.DefaultMaxDuplicateGroups,
	}
}

// LikelyReject is a photo suggested for removal because of its quality.
type LikelyReject struct {
	PhotoID      string   `json:"photoId"`
	QualityScore float64  `json:"qualityScore"`
	Flags        []string `json:"flags"`
	Reasons      []string `json:"reasons"`
}

// SuggestionSet is the output of the suggester.
type SuggestionSet struct {
	GeneratedAt     time.Time          `json:"generatedAt"`
	Params          Params             `json:"params"`
	LikelyRejects   []LikelyReject     `json:"likelyRejects"`
	DuplicateGroups []duplicates.Group `json:"duplicateGroups"`
}

// Suggester builds suggestion sets. The clock is injected so repeated runs
// can be made byte-identical.
type Suggester struct {
	params Params
	now    func() time.Time
}

// NewSuggester creates a suggester. A nil clock uses time.Now in UTC.
func NewSuggester(params Params, now func() time.Time) *Suggester {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Suggester{params: params, now: now}
}

// Suggest ranks likely rejects by ascending quality score then photo id and
// caps both lists. Photos already rejected by a duplicate group are left out of
// the likely rejects. Groups are expected in detector order.
func (s *Suggester) Suggest(metrics []quality.Metrics, groups []duplicates.Group) SuggestionSet {
	dupRejects := duplicates.RejectIDs(groups)

	rejects := []LikelyReject{}
	for _, m := range metrics {
		if dupRejects[m.PhotoID] {
			continue
		}
		reasons := rejectReasons(m)
		if len(reasons) == 0 {
			continue
		}
		rejects = append(rejects, LikelyReject{
			PhotoID:      m.PhotoID,
			QualityScore: m.QualityScore,
			Flags:        slices.Clone(m.Flags),
			Reasons:      reasons,
		})
	}
	slices.SortFunc(rejects, func(a, b LikelyReject) int {
		if c := cmp.Compare(a.QualityScore, b.QualityScore); c != 0 {
			return c
		}
		return strings.Compare(a.PhotoID, b.PhotoID)
	})
	if s.params.MaxLikelyRejects >= 0 && len(rejects) > s.params.MaxLikelyRejects {
		rejects = rejects[:s.params.MaxLikelyRejects]
	}

	capped := slices.Clone(groups)
	if capped == nil {
		capped = []duplicates.Group{}
	}
	if s.params.MaxDuplicateGroups >= 0 && len(capped) > s.params.MaxDuplicateGroups {
		capped = capped[:s.params.MaxDuplicateGroups]
	}

	return SuggestionSet{
		GeneratedAt:     s.now(),
		Params:          s.params,
		LikelyRejects:   rejects,
		DuplicateGroups: capped,
	}
}

func rejectReasons(m quality.Metrics) []string {
	var bad []string
	for _, f := range badFlags {
		if m.HasFlag(f) {
			bad = append(bad, f)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	if m.Unreadable {
		return []string{"Photo is missing or unreadable"}
	}

	slices.Sort(bad)
	reasons := []string{"Quality issues: " + strings.Join(bad, ", ")}
	if m.HasFlag(quality.FlagBlurry) && m.HasFlag(quality.FlagLowContrast) {
		reasons = append(reasons, "Blurry with low contrast")
	}
	if m.HasFlag(quality.FlagVeryDark) && m.HasFlag(quality.FlagVeryBlurry) {
		reasons = append(reasons, "Too dark and blurry to use")
	}
	return reasons
}
