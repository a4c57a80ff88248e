package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/PeterZhouSZ/hsn/internal/geometry"
	"github.com/PeterZhouSZ/hsn/internal/transform"
)

// syntheticMeshCells controls the marching-cubes tessellation of the
// base shape. Coarse is fine: the point set is resampled anyway.
const syntheticMeshCells = 32

// Synthetic builds a dataset of rigidly rotated copies of one
// SDF-derived surface point set. Every sample shares the same vertex
// numbering, so the identity correspondence target is exact. Normals
// come from the SDF gradient, which keeps tangent frames defined
// without any face connectivity.
func Synthetic(numSamples, numVerts int, cfg Config) (*Dataset, error) {
	if numSamples < 1 || numVerts < 4 {
		return nil, fmt.Errorf("dataset: synthetic needs >= 1 samples and >= 4 vertices, got %d and %d", numSamples, numVerts)
	}
	shape, err := syntheticShape()
	if err != nil {
		return nil, err
	}

	// Extract the surface, then farthest-point sample the triangle
	// corners down to exactly numVerts base points.
	tris := render.ToTriangles(shape, render.NewMarchingCubesUniform(syntheticMeshCells))
	if len(tris) == 0 {
		return nil, fmt.Errorf("dataset: synthetic shape produced no surface")
	}
	corners := make([]r3.Vec, 0, len(tris)*3)
	for _, tri := range tris {
		for j := 0; j < 3; j++ {
			corners = append(corners, r3.Vec{X: tri[j].X, Y: tri[j].Y, Z: tri[j].Z})
		}
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	baseIdx := geometry.FarthestPointSampling(corners, numVerts, rng)
	if len(baseIdx) < numVerts {
		return nil, fmt.Errorf("dataset: synthetic surface has only %d distinct points, need %d", len(baseIdx), numVerts)
	}
	base := make([]v3.Vec, numVerts)
	for i, ci := range baseIdx {
		c := corners[ci]
		base[i] = v3.Vec{X: c.X, Y: c.Y, Z: c.Z}
	}

	pre := preTransform(cfg)
	samples := make([]*transform.Sample, 0, numSamples)
	for i := 0; i < numSamples; i++ {
		// Distinct rigid poses of the same numbering.
		m := sdf.RotateZ(2 * math.Pi * float64(i) / float64(numSamples))
		pos := make([]r3.Vec, numVerts)
		normals := make([]r3.Vec, numVerts)
		for k, p := range base {
			q := m.MulPosition(p)
			n := m.MulPosition(sdfNormal(shape, p))
			pos[k] = r3.Vec{X: q.X, Y: q.Y, Z: q.Z}
			normals[k] = r3.Vec{X: n.X, Y: n.Y, Z: n.Z}
		}
		s, err := pre.Apply(&transform.Sample{
			Mesh:    &geometry.Mesh{Pos: pos},
			Normals: normals,
		})
		if err != nil {
			return nil, fmt.Errorf("dataset: synthetic sample %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return newDataset(samples)
}

// syntheticShape is a unit sphere with a box fused on, so the surface
// has no rotational symmetry that would make correspondence trivial.
func syntheticShape() (sdf.SDF3, error) {
	sphere, err := sdf.Sphere3D(1)
	if err != nil {
		return nil, fmt.Errorf("dataset: synthetic sphere: %w", err)
	}
	box, err := sdf.Box3D(v3.Vec{X: 0.8, Y: 0.8, Z: 0.8}, 0)
	if err != nil {
		return nil, fmt.Errorf("dataset: synthetic box: %w", err)
	}
	box = sdf.Transform3D(box, sdf.Translate3d(v3.Vec{X: 0.9}))
	return sdf.Union3D(sphere, box), nil
}

// sdfNormal evaluates the SDF gradient by central differences.
func sdfNormal(s sdf.SDF3, p v3.Vec) v3.Vec {
	const h = 1e-4
	g := v3.Vec{
		X: s.Evaluate(v3.Vec{X: p.X + h, Y: p.Y, Z: p.Z}) - s.Evaluate(v3.Vec{X: p.X - h, Y: p.Y, Z: p.Z}),
		Y: s.Evaluate(v3.Vec{X: p.X, Y: p.Y + h, Z: p.Z}) - s.Evaluate(v3.Vec{X: p.X, Y: p.Y - h, Z: p.Z}),
		Z: s.Evaluate(v3.Vec{X: p.X, Y: p.Y, Z: p.Z + h}) - s.Evaluate(v3.Vec{X: p.X, Y: p.Y, Z: p.Z - h}),
	}
	l := math.Sqrt(g.X*g.X + g.Y*g.Y + g.Z*g.Z)
	if l == 0 {
		return v3.Vec{Z: 1}
	}
	return v3.Vec{X: g.X / l, Y: g.Y / l, Z: g.Z / l}
}
