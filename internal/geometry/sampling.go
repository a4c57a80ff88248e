package geometry

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// FarthestPointSampling selects n indices from pos by iterative
// farthest-point selection. The first point is drawn from rng, so the
// sampling is deterministic for a fixed seed.
func FarthestPointSampling(pos []r3.Vec, n int, rng *rand.Rand) []int32 {
	if n >= len(pos) {
		idx := make([]int32, len(pos))
		for i := range idx {
			idx[i] = int32(i)
		}
		return idx
	}

	selected := make([]int32, 0, n)
	minDist := make([]float64, len(pos))
	for i := range minDist {
		minDist[i] = math.Inf(1)
	}

	cur := int32(rng.Intn(len(pos)))
	for len(selected) < n {
		selected = append(selected, cur)
		far, farDist := int32(0), -1.0
		for i, p := range pos {
			d := r3.Norm(r3.Sub(p, pos[cur]))
			if d < minDist[i] {
				minDist[i] = d
			}
			if minDist[i] > farDist {
				far, farDist = int32(i), minDist[i]
			}
		}
		cur = far
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i] < selected[j] })
	return selected
}

// RadiusGraph connects every pair of the selected vertices closer than
// radius, capped at maxNeighbors per target (nearest first). Edges are
// directed target <- source using local indices into idx, returned
// grouped by target in ascending order. Self loops are excluded.
func RadiusGraph(pos []r3.Vec, idx []int32, radius float64, maxNeighbors int) (targets, sources []int32) {
	type cand struct {
		j int32
		d float64
	}
	for i, vi := range idx {
		var cands []cand
		for j, vj := range idx {
			if i == j {
				continue
			}
			d := r3.Norm(r3.Sub(pos[vi], pos[vj]))
			if d <= radius {
				cands = append(cands, cand{j: int32(j), d: d})
			}
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].d != cands[b].d {
				return cands[a].d < cands[b].d
			}
			return cands[a].j < cands[b].j
		})
		if maxNeighbors > 0 && len(cands) > maxNeighbors {
			cands = cands[:maxNeighbors]
		}
		for _, c := range cands {
			targets = append(targets, int32(i))
			sources = append(sources, c.j)
		}
	}
	return targets, sources
}

// NearestCluster assigns each fine vertex to its nearest coarse
// representative. Equidistant candidates resolve to the lowest coarse
// index.
func NearestCluster(pos []r3.Vec, fineIdx, coarseIdx []int32) []int32 {
	cluster := make([]int32, len(fineIdx))
	for i, fv := range fineIdx {
		best, bestDist := int32(0), math.Inf(1)
		for k, cv := range coarseIdx {
			d := r3.Norm(r3.Sub(pos[fv], pos[cv]))
			if d < bestDist {
				best, bestDist = int32(k), d
			}
		}
		cluster[i] = best
	}
	return cluster
}
