package transform

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/PeterZhouSZ/hsn/internal/geometry"
	"github.com/PeterZhouSZ/hsn/internal/parallel"
)

// ScaleData is the precomputed convolution operator data for one
// scale: the scale's edges in CSR form plus the geometry-only basis
// values a harmonic convolution consumes. It depends only on geometry,
// never on learned parameters, and is shared read-only by every layer
// operating at its scale.
type ScaleData struct {
	Verts   int
	Targets []int32
	Sources []int32
	RowPtr  []int32 // CSR offsets into Targets/Sources by target vertex

	// Precomp[e] holds the radial basis weights of edge e over the
	// NRings ring centers, prescaled by the target's in-degree so
	// aggregation is a mean.
	Precomp [][]float32

	// Rot[e] = e^{i*theta_e}: the unit rotation of edge e's log-map
	// angle in the target's frame.
	Rot []complex64

	// Conn[e] = e^{i*phi_e}: the parallel-transport rotation taking
	// features from the source's frame into the target's.
	Conn []complex64
}

// NumEdges returns the edge count after radius filtering.
func (d *ScaleData) NumEdges() int { return len(d.Targets) }

// ScaleOperator is the per-forward-pass stage of the pipeline: it
// selects one scale's edges, filters them by radius, and computes the
// harmonic basis values. Unlike the pre-transform it is cheap and
// never cached.
type ScaleOperator struct {
	Scale  int
	NRings int
	Radius float64 // 0 means the scale's construction radius
	Par    parallel.Config
}

// Apply builds the operator data for the configured scale.
func (op *ScaleOperator) Apply(s *Sample) (*ScaleData, error) {
	if op.Scale < 0 || op.Scale >= len(s.Scales) {
		return nil, fmt.Errorf("transform: scale %d out of range (%d scales)", op.Scale, len(s.Scales))
	}
	if op.NRings < 1 {
		return nil, fmt.Errorf("transform: NRings must be >= 1, got %d", op.NRings)
	}
	if s.Frames == nil {
		return nil, fmt.Errorf("transform: ScaleOperator requires tangent frames")
	}
	g := &s.Scales[op.Scale]
	radius := op.Radius
	if radius <= 0 {
		radius = g.Radius
	}

	// Radius filter. Edges are grouped by target, so filtering keeps
	// the grouping.
	keep := make([]int, 0, len(g.Targets))
	for e := range g.Targets {
		if float64(g.Rho[e]) <= radius {
			keep = append(keep, e)
		}
	}

	d := &ScaleData{
		Verts:   g.NumVertices(),
		Targets: make([]int32, len(keep)),
		Sources: make([]int32, len(keep)),
		Precomp: make([][]float32, len(keep)),
		Rot:     make([]complex64, len(keep)),
		Conn:    make([]complex64, len(keep)),
	}
	for i, e := range keep {
		d.Targets[i] = g.Targets[e]
		d.Sources[i] = g.Sources[e]
	}
	d.RowPtr = rowPointers(d.Targets, d.Verts)

	parallel.For(len(keep), func(i int) {
		e := keep[i]
		d.Precomp[i] = radialWeights(float64(g.Rho[e]), radius, op.NRings)
		d.Rot[i] = complex64(cmplx.Exp(complex(0, float64(g.Theta[e]))))
		phi := connectionAngle(s, g, e)
		d.Conn[i] = complex64(cmplx.Exp(complex(0, phi)))
	}, op.Par)

	// Mean aggregation: divide each edge's radial weights by its
	// target's in-degree.
	for t := 0; t < d.Verts; t++ {
		deg := float32(d.RowPtr[t+1] - d.RowPtr[t])
		if deg == 0 {
			continue
		}
		for i := d.RowPtr[t]; i < d.RowPtr[t+1]; i++ {
			for r := range d.Precomp[i] {
				d.Precomp[i][r] /= deg
			}
		}
	}
	return d, nil
}

func connectionAngle(s *Sample, g *ScaleGraph, e int) float64 {
	oi := g.NodeIdx[g.Targets[e]]
	oj := g.NodeIdx[g.Sources[e]]
	return geometry.ConnectionAngle(s.Frames, oi, oj)
}

// radialWeights interpolates rho linearly over ring centers placed at
// radius*(k+1)/nRings. Distances inside the first ring load it fully.
func radialWeights(rho, radius float64, nRings int) []float32 {
	w := make([]float32, nRings)
	x := rho/radius*float64(nRings) - 1
	if x < 0 {
		x = 0
	}
	for k := 0; k < nRings; k++ {
		h := 1 - math.Abs(x-float64(k))
		if h > 0 {
			w[k] = float32(h)
		}
	}
	return w
}

func rowPointers(targets []int32, verts int) []int32 {
	ptr := make([]int32, verts+1)
	for _, t := range targets {
		ptr[t+1]++
	}
	for i := 0; i < verts; i++ {
		ptr[i+1] += ptr[i]
	}
	return ptr
}
