package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/PeterZhouSZ/hsn/internal/geometry"
	"github.com/PeterZhouSZ/hsn/internal/hsn"
	"github.com/PeterZhouSZ/hsn/internal/transform"
)

func testConfig() Config {
	return Config{
		MaxOrder:   1,
		NRings:     2,
		NF:         [2]int{4, 8},
		Radii:      [2]float64{1.5, 3},
		HeadHidden: 8,
		Dropout:    0.5,
	}
}

// gridSample precomputes a flat n x n unit-spaced point grid.
func gridSample(t *testing.T, n int) *transform.Sample {
	t.Helper()
	pos := make([]r3.Vec, 0, n*n)
	normals := make([]r3.Vec, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			pos = append(pos, r3.Vec{X: float64(x), Y: float64(y)})
			normals = append(normals, r3.Vec{Z: 1})
		}
	}
	pre := transform.Compose{
		transform.IdentityLabels{},
		transform.TangentFrames{},
		transform.MultiscaleRadiusGraph{
			Ratios:       []float64{1, 0.25},
			Radii:        []float64{1.5, 3},
			MaxNeighbors: 8,
			Seed:         1,
		},
	}
	s, err := pre.Apply(&transform.Sample{
		Mesh:    &geometry.Mesh{Pos: pos},
		Normals: normals,
	})
	require.NoError(t, err)
	return s
}

func TestHSN_ForwardShape(t *testing.T) {
	s := gridSample(t, 4)
	m := New(testConfig(), 16, rand.New(rand.NewSource(1)))
	assert.Equal(t, 16, m.NumNodes())

	logp, err := m.Forward(s, hsn.Eval)
	require.NoError(t, err)
	require.Len(t, logp, 16*16)

	// Rows are normalized log-probabilities.
	for v := 0; v < 16; v++ {
		var sum float64
		for c := 0; c < 16; c++ {
			sum += math.Exp(float64(logp[v*16+c]))
		}
		assert.InDelta(t, 1, sum, 1e-4, "vertex %d", v)
	}
}

func TestHSN_ForwardRejectsBadSamples(t *testing.T) {
	m := New(testConfig(), 16, rand.New(rand.NewSource(1)))

	_, err := m.Forward(gridSample(t, 3), hsn.Eval)
	assert.Error(t, err, "vertex count mismatch")

	s := gridSample(t, 4)
	s2 := *s
	s2.Scales = s.Scales[:1]
	s2.Pools = nil
	_, err = m.Forward(&s2, hsn.Eval)
	assert.Error(t, err, "missing coarse scale")
}

func TestHSN_DeterministicForFixedSeed(t *testing.T) {
	s := gridSample(t, 4)
	a := New(testConfig(), 16, rand.New(rand.NewSource(7)))
	b := New(testConfig(), 16, rand.New(rand.NewSource(7)))

	la, err := a.Forward(s, hsn.Eval)
	require.NoError(t, err)
	lb, err := b.Forward(s, hsn.Eval)
	require.NoError(t, err)
	assert.Equal(t, la, lb)

	// Repeated forward passes are pure in eval mode: the pooling
	// state is re-created per pass.
	la2, err := a.Forward(s, hsn.Eval)
	require.NoError(t, err)
	assert.Equal(t, la, la2)
}

func TestHSN_BackwardProducesGradients(t *testing.T) {
	s := gridSample(t, 4)
	m := New(testConfig(), 16, rand.New(rand.NewSource(2)))

	logp, err := m.Forward(s, hsn.Train)
	require.NoError(t, err)
	_, grad := hsn.NLLLoss(logp, 16, 16, s.Label)

	params := m.Parameters()
	for _, p := range params {
		p.ZeroGrad()
	}
	m.Backward(grad)

	var withGrad int
	for _, p := range params {
		for _, g := range p.Grad() {
			if g != 0 {
				withGrad++
				break
			}
		}
	}
	// Every layer's parameters sit on the gradient path. Dropout can
	// zero a few, but the bulk must be touched.
	assert.Greater(t, withGrad, len(params)*3/4)
}

func TestHSN_ParameterNamesUnique(t *testing.T) {
	m := New(testConfig(), 16, rand.New(rand.NewSource(3)))
	seen := map[string]bool{}
	for _, p := range m.Parameters() {
		assert.False(t, seen[p.Name()], "duplicate parameter %s", p.Name())
		seen[p.Name()] = true
	}
	assert.NotEmpty(t, seen)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1, cfg.MaxOrder)
	assert.Equal(t, [2]int{32, 64}, cfg.NF)
	assert.Equal(t, [2]float64{0.05, 0.1}, cfg.Radii)
	assert.Equal(t, 256, cfg.HeadHidden)
	assert.Equal(t, float32(0.5), cfg.Dropout)
}
