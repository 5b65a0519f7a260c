// Package duplicates groups near-identical photos and picks the one to keep.
package duplicates

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/kozaktomas/trip-book/internal/constants"
	"github.com/kozaktomas/trip-book/internal/fingerprint"
	"github.com/kozaktomas/trip-book/internal/geo"
	"github.com/kozaktomas/trip-book/internal/manifest"
	"github.com/kozaktomas/trip-book/internal/quality"
)

// Group is a set of near-duplicate photos.
type Group struct {
	RepresentativeID string             `json:"representativeId"`
	MemberIDs        []string           `json:"memberIds"`
	Similarity       map[string]float64 `json:"similarity"`
	KeepPhotoID      string             `json:"keepPhotoId"`
	RejectPhotoIDs   []string           `json:"rejectPhotoIds"`
	Reasons          []string           `json:"reasons"`
}

// Options configures duplicate detection.
type Options struct {
	// MaxHamming is the largest pHash and dHash distance of a near-duplicate pair.
	MaxHamming int
	// EmbeddingDistance enables the embedding index when positive.
	EmbeddingDistance float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{MaxHamming: constants.DefaultDuplicateMaxHamming}
}

type candidate struct {
	asset  manifest.AssetRecord
	result quality.Result
}

// Detect groups photos whose perceptual hashes are both within
// opts.MaxHamming. assets must be in canonical order; photos without hashes
// are ignored. Groups are ordered by size descending, then representative id.
func Detect(assets []manifest.AssetRecord, results map[string]quality.Result, opts Options) []Group {
	var cands []candidate
	for _, a := range assets {
		r, ok := results[a.ID]
		if !ok || !r.HasHashes {
			continue
		}
		cands = append(cands, candidate{asset: a, result: r})
	}
	if len(cands) < 2 {
		return []Group{}
	}

	uf := newUnionFind(len(cands))
	for i := range cands {
		for j := i + 1; j < len(cands); j++ {
			if near(cands[i].result.Hashes, cands[j].result.Hashes, opts.MaxHamming) {
				uf.union(i, j)
			}
		}
	}
	if opts.EmbeddingDistance > 0 {
		linkEmbeddings(cands, opts.EmbeddingDistance, uf)
	}

	components := map[int][]int{}
	for i := range cands {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	groups := []Group{}
	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		slices.Sort(members)
		group := make([]candidate, len(members))
		for k, idx := range members {
			group[k] = cands[idx]
		}
		groups = append(groups, buildGroup(group))
	}

	slices.SortFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(len(b.MemberIDs), len(a.MemberIDs)); c != 0 {
			return c
		}
		return strings.Compare(a.RepresentativeID, b.RepresentativeID)
	})
	return groups
}

func near(a, b fingerprint.Hashes, maxHamming int) bool {
	return fingerprint.Similar(a.PHash, b.PHash, maxHamming) && fingerprint.Similar(a.DHash, b.DHash, maxHamming)
}

// distance is the larger of the two hash distances.
func distance(a, b fingerprint.Hashes) int {
	return max(fingerprint.HammingDistance(a.PHash, b.PHash), fingerprint.HammingDistance(a.DHash, b.DHash))
}

// buildGroup expects members in canonical order; the first one is the representative.
func buildGroup(members []candidate) Group {
	rep := members[0]
	g := Group{
		RepresentativeID: rep.asset.ID,
		Similarity:       make(map[string]float64, len(members)),
	}
	for _, m := range members {
		g.MemberIDs = append(g.MemberIDs, m.asset.ID)
		g.Similarity[m.asset.ID] = 1 - float64(distance(rep.result.Hashes, m.result.Hashes))/constants.HashBits
	}

	keep := slices.MinFunc(members, compareKeep)
	g.KeepPhotoID = keep.asset.ID
	for _, m := range members {
		if m.asset.ID != keep.asset.ID {
			g.RejectPhotoIDs = append(g.RejectPhotoIDs, m.asset.ID)
		}
	}
	g.Reasons = reasons(members, g.Similarity)
	return g
}

// compareKeep prefers the highest quality, then the earliest capture, then the lowest id.
func compareKeep(a, b candidate) int {
	if c := cmp.Compare(b.result.Metrics.QualityScore, a.result.Metrics.QualityScore); c != 0 {
		return c
	}
	switch {
	case a.asset.Dated() && b.asset.Dated():
		if c := a.asset.TakenAt.Compare(*b.asset.TakenAt); c != 0 {
			return c
		}
	case a.asset.Dated():
		return -1
	case b.asset.Dated():
		return 1
	}
	return strings.Compare(a.asset.ID, b.asset.ID)
}

func reasons(members []candidate, similarity map[string]float64) []string {
	minSim := 1.0
	for _, s := range similarity {
		minSim = min(minSim, s)
	}
	out := []string{fmt.Sprintf("Perceptual similarity ≥ %d%%", int(math.Floor(minSim*100)))}

	allDated, allGeo := true, true
	for _, m := range members {
		allDated = allDated && m.asset.Dated()
		allGeo = allGeo && m.asset.HasGeo()
	}
	if allDated {
		first, last := *members[0].asset.TakenAt, *members[0].asset.TakenAt
		for _, m := range members[1:] {
			t := *m.asset.TakenAt
			if t.Before(first) {
				first = t
			}
			if t.After(last) {
				last = t
			}
		}
		out = append(out, fmt.Sprintf("Taken within %d min", int(math.Ceil(last.Sub(first).Minutes()))))
	}
	if allGeo {
		var maxKm float64
		for i := range members {
			pi, _ := members[i].asset.Point()
			for j := i + 1; j < len(members); j++ {
				pj, _ := members[j].asset.Point()
				maxKm = max(maxKm, geo.DistanceKm(pi, pj))
			}
		}
		out = append(out, fmt.Sprintf("Taken within %d m", int(math.Ceil(maxKm*1000))))
	}
	return out
}

// RejectIDs returns the set of photos suggested for removal across groups.
func RejectIDs(groups []Group) map[string]bool {
	out := map[string]bool{}
	for _, g := range groups {
		for _, id := range g.RejectPhotoIDs {
			out[id] = true
		}
	}
	return out
}
