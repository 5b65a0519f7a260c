package pipeline

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/kozaktomas/trip-book/internal/fingerprint"
	"github.com/kozaktomas/trip-book/internal/planner"
)

// similarityPenalty scales the visual similarity to a stronger candidate.
const similarityPenalty = 0.2

// embeddingScorer lowers the score of candidates that look like a better
// candidate, using the image embeddings computed during analysis.
type embeddingScorer struct {
	vectors map[string][]float32
}

func (s embeddingScorer) Adjust(_ context.Context, cands []planner.Candidate) map[string]float64 {
	ranked := slices.Clone(cands)
	slices.SortFunc(ranked, func(a, b planner.Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.AssetID, b.AssetID)
	})

	adjust := make(map[string]float64, len(ranked))
	for i, c := range ranked {
		v, ok := s.vectors[c.AssetID]
		if !ok {
			continue
		}
		var worst float64
		for _, prev := range ranked[:i] {
			if pv, ok := s.vectors[prev.AssetID]; ok {
				worst = max(worst, fingerprint.CosineSimilarity(v, pv))
			}
		}
		if worst > 0 {
			adjust[c.AssetID] = -similarityPenalty * worst
		}
	}
	return adjust
}
