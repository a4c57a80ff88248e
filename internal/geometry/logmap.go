package geometry

import (
	"container/heap"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LogMapEdge is the intrinsic polar coordinate of a neighbor in a
// vertex's tangent plane: geodesic radial distance Rho and angle Theta
// measured against the vertex's frame.
type LogMapEdge struct {
	Rho   float64
	Theta float64
}

// LogMap computes logarithmic-map coordinates for every edge
// (target <- source) of the given edge lists. Radial distances follow
// shortest paths over adj truncated at maxRadius (falling back to the
// chord length when no path exists within the radius); angles come
// from projecting the source into the target's tangent plane.
func LogMap(pos []r3.Vec, frames []Frame, adj [][]int32, targets, sources []int32, maxRadius float64) []LogMapEdge {
	out := make([]LogMapEdge, len(targets))

	// Group edge slots by target so one truncated Dijkstra per
	// distinct target serves all of its edges.
	byTarget := make(map[int32][]int)
	for e, t := range targets {
		byTarget[t] = append(byTarget[t], e)
	}

	for t, slots := range byTarget {
		dist := truncatedDijkstra(pos, adj, t, maxRadius)
		ft := frames[t]
		for _, e := range slots {
			s := sources[e]
			d := r3.Sub(pos[s], pos[t])
			rho, ok := dist[s]
			if !ok {
				rho = r3.Norm(d)
			}
			out[e] = LogMapEdge{
				Rho:   rho,
				Theta: math.Atan2(r3.Dot(d, ft.E2), r3.Dot(d, ft.E1)),
			}
		}
	}
	return out
}

type distItem struct {
	v int32
	d float64
}

type distHeap []distItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool  { return h[i].d < h[j].d }
func (h distHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{}) { *h = append(*h, x.(distItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// truncatedDijkstra returns edge-length shortest-path distances from
// src to all vertices within maxRadius.
func truncatedDijkstra(pos []r3.Vec, adj [][]int32, src int32, maxRadius float64) map[int32]float64 {
	dist := map[int32]float64{src: 0}
	h := &distHeap{{v: src, d: 0}}
	for h.Len() > 0 {
		it := heap.Pop(h).(distItem)
		if it.d > dist[it.v] {
			continue
		}
		if int(it.v) >= len(adj) || adj[it.v] == nil {
			continue
		}
		for _, nb := range adj[it.v] {
			nd := it.d + r3.Norm(r3.Sub(pos[nb], pos[it.v]))
			if nd > maxRadius {
				continue
			}
			if old, ok := dist[nb]; !ok || nd < old {
				dist[nb] = nd
				heap.Push(h, distItem{v: nb, d: nd})
			}
		}
	}
	return dist
}
