package duplicates

import (
	"github.com/coder/hnsw"
	"github.com/kozaktomas/trip-book/internal/fingerprint"
)

const (
	indexMaxNeighbors = 16
	indexSearchK      = 8
)

// EmbeddingIndex is an approximate nearest-neighbour index over photo embeddings.
type EmbeddingIndex struct {
	graph *hnsw.Graph[int]
	size  int
}

// NewEmbeddingIndex builds an index; node keys are positions in vectors.
// Empty vectors are skipped.
func NewEmbeddingIndex(vectors [][]float32) *EmbeddingIndex {
	g := hnsw.NewGraph[int]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	idx := &EmbeddingIndex{graph: g}
	for i, v := range vectors {
		if len(v) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, v))
		idx.size++
	}
	return idx
}

// Len returns the number of indexed vectors.
func (e *EmbeddingIndex) Len() int {
	return e.size
}

// Neighbors returns the keys of up to k vectors closest to query, with their
// exact cosine distances.
func (e *EmbeddingIndex) Neighbors(query []float32, k int) ([]int, []float64) {
	if e.size == 0 {
		return nil, nil
	}
	nodes := e.graph.Search(query, min(k, e.size))
	keys := make([]int, len(nodes))
	dists := make([]float64, len(nodes))
	for i, n := range nodes {
		keys[i] = n.Key
		dists[i] = 1 - fingerprint.CosineSimilarity(query, n.Value)
	}
	return keys, dists
}

// linkEmbeddings unions candidates whose embeddings are within maxDistance.
func linkEmbeddings(cands []candidate, maxDistance float64, uf *unionFind) {
	vectors := make([][]float32, len(cands))
	for i, c := range cands {
		vectors[i] = c.result.Embedding
	}
	idx := NewEmbeddingIndex(vectors)
	if idx.Len() < 2 {
		return
	}
	for i, v := range vectors {
		if len(v) == 0 {
			continue
		}
		keys, dists := idx.Neighbors(v, indexSearchK+1)
		for k, key := range keys {
			if key != i && dists[k] <= maxDistance {
				uf.union(i, key)
			}
		}
	}
}
