package transform

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/PeterZhouSZ/hsn/internal/geometry"
)

// MultiscaleRadiusGraph is the one-time pre-transform: it builds a
// family of progressively coarsened radius graphs with logarithmic-map
// coordinates, plus the cluster assignments and transport angles the
// pooling layers need. Requires TangentFrames to have run.
//
// Ratios[k] is the fraction of original vertices retained at scale k
// (Ratios[0] must be 1), Radii[k] the connectivity radius. The result
// is geometry-only and independent of learned parameters, so it is
// computed once per sample and cached.
type MultiscaleRadiusGraph struct {
	Ratios       []float64
	Radii        []float64
	MaxNeighbors int
	Seed         int64
}

// Apply builds the scale graphs and pool maps.
func (t MultiscaleRadiusGraph) Apply(s *Sample) (*Sample, error) {
	if len(t.Ratios) == 0 || len(t.Ratios) != len(t.Radii) {
		return nil, fmt.Errorf("transform: %d ratios vs %d radii", len(t.Ratios), len(t.Radii))
	}
	if t.Ratios[0] != 1 {
		return nil, fmt.Errorf("transform: finest scale must retain all vertices, got ratio %g", t.Ratios[0])
	}
	if s.Frames == nil {
		return nil, fmt.Errorf("transform: MultiscaleRadiusGraph requires tangent frames")
	}

	pos := s.Mesh.Pos
	v := len(pos)
	rng := rand.New(rand.NewSource(t.Seed))

	out := s.shallow()
	out.Scales = make([]ScaleGraph, len(t.Ratios))
	out.Pools = make([]PoolGraph, len(t.Ratios)-1)

	prevIdx := allVertices(v)
	for k := range t.Ratios {
		idx := prevIdx
		if k > 0 {
			n := int(t.Ratios[k] * float64(v))
			if n < 1 {
				n = 1
			}
			// Coarsen by farthest-point sampling of the previous
			// scale's vertex set.
			local := geometry.FarthestPointSampling(subPositions(s, prevIdx), n, rng)
			idx = make([]int32, len(local))
			for i, li := range local {
				idx[i] = prevIdx[li]
			}
		}

		targets, sources := geometry.RadiusGraph(pos, idx, t.Radii[k], t.MaxNeighbors)

		// Geodesic distances run over face adjacency at the finest
		// scale; coarser scales only have the radius graph itself.
		adj := t.scaleAdjacency(s, k, idx, targets, sources)
		origT := make([]int32, len(targets))
		origS := make([]int32, len(sources))
		for e := range targets {
			origT[e] = idx[targets[e]]
			origS[e] = idx[sources[e]]
		}
		lm := geometry.LogMap(pos, s.Frames, adj, origT, origS, 2*t.Radii[k])

		g := ScaleGraph{
			NodeIdx: idx,
			Targets: targets,
			Sources: sources,
			Rho:     make([]float32, len(targets)),
			Theta:   make([]float32, len(targets)),
			Radius:  t.Radii[k],
		}
		for e, c := range lm {
			g.Rho[e] = float32(c.Rho)
			g.Theta[e] = float32(c.Theta)
		}
		out.Scales[k] = g

		if k > 0 {
			cluster := geometry.NearestCluster(pos, prevIdx, idx)
			angle := make([]float32, len(prevIdx))
			for fv, cl := range cluster {
				angle[fv] = float32(geometry.ConnectionAngle(s.Frames, idx[cl], prevIdx[fv]))
			}
			out.Pools[k-1] = PoolGraph{Cluster: cluster, Angle: angle, Coarse: len(idx)}
		}
		prevIdx = idx
	}
	return out, nil
}

// scaleAdjacency returns the neighbor lists used for geodesic
// distances at scale k, indexed by original vertex id.
func (t MultiscaleRadiusGraph) scaleAdjacency(s *Sample, k int, idx, targets, sources []int32) [][]int32 {
	if k == 0 {
		if adj := geometry.FaceAdjacency(s.Mesh); adj != nil {
			return adj
		}
	}
	adj := make([][]int32, s.Mesh.NumVertices())
	for e := range targets {
		a := idx[targets[e]]
		b := idx[sources[e]]
		adj[a] = append(adj[a], b)
	}
	return adj
}

func allVertices(n int) []int32 {
	idx := make([]int32, n)
	for i := range idx {
		idx[i] = int32(i)
	}
	return idx
}

func subPositions(s *Sample, idx []int32) []r3.Vec {
	pos := make([]r3.Vec, len(idx))
	for i, v := range idx {
		pos[i] = s.Mesh.Pos[v]
	}
	return pos
}
