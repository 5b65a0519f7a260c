package pipeline

import (
	"context"
	"testing"

	"github.com/kozaktomas/trip-book/internal/database/mock"
	"github.com/kozaktomas/trip-book/internal/planner"
	"github.com/kozaktomas/trip-book/internal/quality"
)

func TestEmbeddingScorer(t *testing.T) {
	s := embeddingScorer{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {1, 0},
		"c": {0, 1},
	}}
	cands := []planner.Candidate{
		{AssetID: "b", Score: 0.8},
		{AssetID: "a", Score: 0.9},
		{AssetID: "c", Score: 0.7},
		{AssetID: "d", Score: 0.6},
	}

	adjust := s.Adjust(context.Background(), cands)
	if adjust["a"] != 0 {
		t.Errorf("best candidate should not be penalized, got %f", adjust["a"])
	}
	if diff := adjust["b"] + similarityPenalty; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("identical-looking candidate should lose %f, got %f", similarityPenalty, adjust["b"])
	}
	if _, ok := adjust["c"]; ok {
		t.Errorf("orthogonal candidate should keep its score, got %f", adjust["c"])
	}
	if _, ok := adjust["d"]; ok {
		t.Error("candidate without embedding should be left alone")
	}
}

type staticScorer struct{}

func (staticScorer) Adjust(context.Context, []planner.Candidate) map[string]float64 { return nil }

func TestDiversityScorerSelection(t *testing.T) {
	g := newGenerator(mock.NewMockStore())
	if g.diversityScorer(nil) != nil {
		t.Error("no embeddings and no injected scorer should give no scorer")
	}

	results := []quality.Result{{Metrics: quality.Metrics{PhotoID: "a"}, Embedding: []float32{1}}}
	if _, ok := g.diversityScorer(results).(embeddingScorer); !ok {
		t.Error("embeddings should enable the built-in scorer")
	}

	g.WithDiversityScorer(staticScorer{})
	if _, ok := g.diversityScorer(results).(staticScorer); !ok {
		t.Error("injected scorer should win")
	}
}
