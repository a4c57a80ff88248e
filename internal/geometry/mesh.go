// Package geometry provides the mesh representation and the geometric
// primitives behind the multiscale precomputation pipeline: tangent
// frames, logarithmic maps, farthest-point sampling, radius graphs and
// parallel transport.
package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a triangle mesh with per-vertex positions.
// Faces may be empty for point-cloud samples; consumers that need
// connectivity fall back to radius-graph adjacency.
type Mesh struct {
	Pos   []r3.Vec
	Faces [][3]int32
}

// NumVertices returns the vertex count.
func (m *Mesh) NumVertices() int { return len(m.Pos) }

// Validate checks face indices against the vertex count.
func (m *Mesh) Validate() error {
	n := int32(len(m.Pos))
	for fi, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= n {
				return fmt.Errorf("geometry: face %d references vertex %d, mesh has %d vertices", fi, v, n)
			}
		}
	}
	return nil
}

// VertexNormals computes area-weighted vertex normals. Vertices that
// belong to no face (or whose incident faces are degenerate) get a
// default +Z normal so downstream frame construction stays defined.
func VertexNormals(m *Mesh) []r3.Vec {
	normals := make([]r3.Vec, len(m.Pos))
	for _, f := range m.Faces {
		a, b, c := m.Pos[f[0]], m.Pos[f[1]], m.Pos[f[2]]
		// Cross product length is twice the face area, so this
		// accumulation is area weighted for free.
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		for _, v := range f {
			normals[v] = r3.Add(normals[v], n)
		}
	}
	for i, n := range normals {
		if l := r3.Norm(n); l > 0 {
			normals[i] = r3.Scale(1/l, n)
		} else {
			normals[i] = r3.Vec{Z: 1}
		}
	}
	return normals
}

// FaceAdjacency builds an undirected neighbor list from mesh faces.
// Returns nil if the mesh has no faces.
func FaceAdjacency(m *Mesh) [][]int32 {
	if len(m.Faces) == 0 {
		return nil
	}
	adj := make([][]int32, len(m.Pos))
	add := func(a, b int32) {
		for _, v := range adj[a] {
			if v == b {
				return
			}
		}
		adj[a] = append(adj[a], b)
	}
	for _, f := range m.Faces {
		add(f[0], f[1])
		add(f[1], f[0])
		add(f[1], f[2])
		add(f[2], f[1])
		add(f[2], f[0])
		add(f[0], f[2])
	}
	return adj
}
