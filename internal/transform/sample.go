// Package transform implements the composable sample transforms of the
// multiscale precomputation pipeline: a one-time pre-transform that
// builds the multiscale radius graph with logarithmic-map coordinates
// (cached to disk), and a cheap per-forward-pass operator transform
// that turns one scale's edges into harmonic convolution data.
package transform

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/PeterZhouSZ/hsn/internal/geometry"
)

// Sample is one mesh with the attributes attached by the transform
// pipeline. Transforms are pure: each returns a shallow copy with new
// fields filled in, never mutating its input. After precomputation a
// Sample is immutable and shared read-only across training steps.
type Sample struct {
	Mesh    *geometry.Mesh
	Normals []r3.Vec // optional override of mesh normals (e.g. SDF gradients)

	// Label is the supervised target per vertex. For dense
	// correspondence this is the identity labeling: vertex v's
	// correct class is v itself.
	Label []int32

	Frames []geometry.Frame

	// Scales holds one graph per resolution, finest first.
	Scales []ScaleGraph

	// Pools holds the scale transitions; Pools[k] maps Scales[k]
	// down to Scales[k+1].
	Pools []PoolGraph
}

// ScaleGraph is the radius graph of one resolution. Edge endpoints are
// local indices into NodeIdx; NodeIdx maps back to original vertices.
type ScaleGraph struct {
	NodeIdx []int32
	Targets []int32 // grouped by target, ascending
	Sources []int32
	Rho     []float32 // geodesic radial distance per edge
	Theta   []float32 // log-map angle in the target's frame per edge
	Radius  float64
}

// NumVertices returns the vertex count at this scale.
func (g *ScaleGraph) NumVertices() int { return len(g.NodeIdx) }

// PoolGraph maps a fine scale onto the next coarser one: every fine
// vertex has a coarse cluster representative and the transport angle
// aligning its tangent frame with the representative's.
type PoolGraph struct {
	Cluster []int32   // fine local index -> coarse local index
	Angle   []float32 // fine local index -> transport angle (radians)
	Coarse  int       // number of coarse vertices
}

// shallow returns a copy of s sharing all attached data. Transforms
// fill in their new fields on the copy.
func (s *Sample) shallow() *Sample {
	cp := *s
	return &cp
}

// Transform maps a sample to an augmented sample. Implementations are
// pure and hold no shared mutable state across applications.
type Transform interface {
	Apply(s *Sample) (*Sample, error)
}

// Compose chains transforms left to right.
type Compose []Transform

// Apply runs each transform in order, threading the sample through.
func (c Compose) Apply(s *Sample) (*Sample, error) {
	var err error
	for i, t := range c {
		s, err = t.Apply(s)
		if err != nil {
			return nil, fmt.Errorf("transform %d (%T): %w", i, t, err)
		}
	}
	return s, nil
}

// TangentFrames attaches a tangent frame per vertex, from the sample's
// normal override when present, else from mesh face normals.
type TangentFrames struct{}

// Apply computes the frames.
func (TangentFrames) Apply(s *Sample) (*Sample, error) {
	out := s.shallow()
	if s.Normals != nil {
		if len(s.Normals) != s.Mesh.NumVertices() {
			return nil, fmt.Errorf("transform: %d normals for %d vertices", len(s.Normals), s.Mesh.NumVertices())
		}
		out.Frames = geometry.FramesFromNormals(s.Normals)
		return out, nil
	}
	if len(s.Mesh.Faces) == 0 {
		return nil, fmt.Errorf("transform: mesh has no faces and no normals; cannot build tangent frames")
	}
	out.Frames = geometry.TangentFrames(s.Mesh)
	return out, nil
}

// IdentityLabels attaches the identity correspondence target: each
// vertex's label is its own index in the canonical numbering.
type IdentityLabels struct{}

// Apply fills in the labels.
func (IdentityLabels) Apply(s *Sample) (*Sample, error) {
	out := s.shallow()
	out.Label = make([]int32, s.Mesh.NumVertices())
	for i := range out.Label {
		out.Label[i] = int32(i)
	}
	return out, nil
}
