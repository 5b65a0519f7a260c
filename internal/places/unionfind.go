package places

import (
	"slices"

	"github.com/kozaktomas/trip-book/internal/geo"
)

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// smaller root wins so component roots do not depend on union order
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// kmPerDegreeLat is the north-south length of one degree of latitude.
const kmPerDegreeLat = 111.19

// linkComponents groups points whose chains of pairwise distances stay within
// radiusKm (single linkage). Components are returned with member indices
// ascending, ordered by their smallest member.
func linkComponents(points []geo.Point, radiusKm float64) [][]int {
	n := len(points)
	uf := newUnionFind(n)

	// sweep over latitude: only pairs within radius in latitude can be linked
	byLat := make([]int, n)
	for i := range byLat {
		byLat[i] = i
	}
	slices.SortStableFunc(byLat, func(a, b int) int {
		switch {
		case points[a].Lat < points[b].Lat:
			return -1
		case points[a].Lat > points[b].Lat:
			return 1
		}
		return a - b
	})

	latWindow := radiusKm / kmPerDegreeLat * 1.01
	for x := 0; x < n; x++ {
		i := byLat[x]
		for y := x + 1; y < n; y++ {
			j := byLat[y]
			if points[j].Lat-points[i].Lat > latWindow {
				break
			}
			if geo.DistanceKm(points[i], points[j]) <= radiusKm {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		r := uf.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}
	out := make([][]int, 0, len(roots))
	for _, r := range roots {
		out = append(out, groups[r])
	}
	return out
}
