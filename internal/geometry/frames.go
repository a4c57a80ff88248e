package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Frame is an orthonormal tangent frame at a vertex: two tangent basis
// vectors and the outward normal. Tangent-space quantities are written
// as complex numbers a + bi meaning a*E1 + b*E2.
type Frame struct {
	E1, E2, N r3.Vec
}

// TangentFrames builds a tangent frame at every vertex from the mesh
// normals. The in-plane basis is chosen deterministically from the
// normal, so frames are reproducible across runs.
func TangentFrames(m *Mesh) []Frame {
	normals := VertexNormals(m)
	return FramesFromNormals(normals)
}

// FramesFromNormals builds frames for externally supplied normals,
// e.g. analytic SDF gradients for synthetic samples.
func FramesFromNormals(normals []r3.Vec) []Frame {
	frames := make([]Frame, len(normals))
	for i, n := range normals {
		// Pick the world axis least aligned with n as the seed
		// for the first tangent direction.
		seed := r3.Vec{X: 1}
		if math.Abs(n.X) > math.Abs(n.Y) {
			seed = r3.Vec{Y: 1}
			if math.Abs(n.Y) > math.Abs(n.Z) {
				seed = r3.Vec{Z: 1}
			}
		} else if math.Abs(n.Y) > math.Abs(n.Z) {
			seed = r3.Vec{Z: 1}
		}
		e1 := r3.Sub(seed, r3.Scale(r3.Dot(seed, n), n))
		e1 = r3.Scale(1/r3.Norm(e1), e1)
		e2 := r3.Cross(n, e1)
		frames[i] = Frame{E1: e1, E2: e2, N: n}
	}
	return frames
}

// rotateTo returns v rotated by the minimal rotation taking unit
// vector from onto unit vector to (Rodrigues formula).
func rotateTo(v, from, to r3.Vec) r3.Vec {
	axis := r3.Cross(from, to)
	s := r3.Norm(axis)
	c := r3.Dot(from, to)
	if s < 1e-12 {
		if c > 0 {
			return v
		}
		// Antipodal normals: rotate by pi around any axis
		// perpendicular to from.
		perp := r3.Cross(from, r3.Vec{X: 1})
		if r3.Norm(perp) < 1e-12 {
			perp = r3.Cross(from, r3.Vec{Y: 1})
		}
		perp = r3.Scale(1/r3.Norm(perp), perp)
		return r3.Sub(r3.Scale(2*r3.Dot(v, perp), perp), v)
	}
	k := r3.Scale(1/s, axis)
	return r3.Add(
		r3.Add(r3.Scale(c, v), r3.Scale(s, r3.Cross(k, v))),
		r3.Scale(r3.Dot(k, v)*(1-c), k),
	)
}

// ConnectionAngle returns the parallel-transport rotation phi taking a
// tangent vector expressed in frame j to its expression in frame i:
// a vector written as the complex number u at j reads u*e^{i*phi} at i.
func ConnectionAngle(frames []Frame, i, j int32) float64 {
	fi, fj := frames[i], frames[j]
	// Transport j's first basis vector into i's tangent plane by the
	// minimal rotation aligning the normals, then measure it in i's
	// frame.
	t := rotateTo(fj.E1, fj.N, fi.N)
	return math.Atan2(r3.Dot(t, fi.E2), r3.Dot(t, fi.E1))
}
