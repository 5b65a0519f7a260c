package planner

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"slices"

	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/duplicates"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/places"
	"github.com/kozaktomas/trip-book/internal/quality"
	"github.com/kozaktomas/trip-book/internal/timeline"
)

// neutralScore is used for photos without quality metrics.
const neutralScore = 0.5

// SeededRand derives a PCG generator from the FNV-64a hash of the book id.
func SeededRand(bookID string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(bookID))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

// selectPicks fills highlights, gallery picks and their provenance.
func (p *Planner) selectPicks(ctx context.Context, in Input, plan *BookPlan) {
	labels := photoLabels(in.Days, in.Stops)

	if in.Picks != nil && in.Picks.Source == PicksUser {
		plan.PicksSource = PicksUser
		for _, id := range in.Picks.Highlights {
			plan.Highlights = append(plan.Highlights, Highlight{AssetID: id, Label: labels[id]})
		}
		plan.GalleryPicks = append(plan.GalleryPicks, in.Picks.Gallery...)
		return
	}

	cands := Candidates(in.Assets, in.Days, in.Quality, in.Duplicates)
	plan.PicksSource = PicksAuto
	if in.RequestedSource == PicksEnhanced && p.scorer != nil {
		adjust := p.scorer.Adjust(ctx, slices.Clone(cands))
		for i := range cands {
			cands[i].Score += adjust[cands[i].AssetID]
		}
		plan.PicksSource = PicksEnhanced
	}

	order := p.newRand(in.BookID).Perm(len(cands))
	sel := newSelector(cands, order, p.opts.PicksPerSegment, p.opts.DiversityPenalty)

	for _, c := range sel.take(p.opts.HighlightCap) {
		plan.Highlights = append(plan.Highlights, Highlight{AssetID: c.AssetID, Label: labels[c.AssetID]})
	}

	gallery := sel.take(p.opts.GalleryCap)
	index := make(map[string]int, len(in.Assets))
	for i, a := range in.Assets {
		index[a.ID] = i
	}
	slices.SortFunc(gallery, func(a, b Candidate) int { return index[a.AssetID] - index[b.AssetID] })
	for _, c := range gallery {
		plan.GalleryPicks = append(plan.GalleryPicks, c.AssetID)
	}
}

// Candidates returns the highlight pool in canonical order: assets that are not
// duplicate rejects, not unreadable, and not both very blurry and very dark.
func Candidates(assets []manifest.AssetRecord, days []timeline.Day, metrics map[string]quality.Metrics, groups []duplicates.Group) []Candidate {
	rejects := duplicates.RejectIDs(groups)
	pos := timeline.Locate(days)

	var out []Candidate
	for _, a := range assets {
		if rejects[a.ID] {
			continue
		}
		score := neutralScore
		if m, ok := metrics[a.ID]; ok {
			if m.HasFlag(quality.FlagMissingOrUnreadable) ||
				(m.HasFlag(quality.FlagVeryBlurry) && m.HasFlag(quality.FlagVeryDark)) {
				continue
			}
			score = m.QualityScore
		}
		c := Candidate{AssetID: a.ID, Score: score, Segment: pos[a.ID], HasGeo: a.HasGeo()}
		if c.HasGeo {
			c.Score += constants.GeotagBonus
		}
		out = append(out, c)
	}
	return out
}

// selector performs greedy selection with a per-segment diversity penalty.
type selector struct {
	cands     []Candidate
	rank      []int
	taken     []bool
	perSeg    map[timeline.Position]int
	allowance int
	penalty   float64
}

func newSelector(cands []Candidate, order []int, allowance int, penalty float64) *selector {
	rank := make([]int, len(cands))
	for r, i := range order {
		rank[i] = r
	}
	return &selector{
		cands:     cands,
		rank:      rank,
		taken:     make([]bool, len(cands)),
		perSeg:    map[timeline.Position]int{},
		allowance: allowance,
		penalty:   penalty,
	}
}

// effective subtracts the penalty once for every pick the segment already has
// at or beyond its allowance.
func (s *selector) effective(i int) float64 {
	over := s.perSeg[s.cands[i].Segment] - s.allowance + 1
	if over < 0 {
		over = 0
	}
	return s.cands[i].Score - s.penalty*float64(over)
}

func (s *selector) take(n int) []Candidate {
	var out []Candidate
	for len(out) < n {
		best := -1
		var bestScore float64
		for i := range s.cands {
			if s.taken[i] {
				continue
			}
			e := s.effective(i)
			if best < 0 || e > bestScore || (e == bestScore && s.rank[i] < s.rank[best]) {
				best, bestScore = i, e
			}
		}
		if best < 0 {
			break
		}
		s.taken[best] = true
		s.perSeg[s.cands[best].Segment]++
		out = append(out, s.cands[best])
	}
	return out
}

// photoLabels captions each photo with its stop label, else "Day N".
func photoLabels(days []timeline.Day, stops []places.Stop) map[string]string {
	labels := map[string]string{}
	for _, d := range days {
		for _, id := range d.AssetIDs {
			labels[id] = fmt.Sprintf("Day %d", d.DayIndex+1)
		}
	}
	for _, s := range places.Visible(stops) {
		for _, id := range s.AssetIDs {
			labels[id] = s.Label()
		}
	}
	return labels
}
