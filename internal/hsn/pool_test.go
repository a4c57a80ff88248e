package hsn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeterZhouSZ/hsn/internal/field"
	"github.com/PeterZhouSZ/hsn/internal/transform"
)

func testPoolGraph() *transform.PoolGraph {
	return &transform.PoolGraph{
		Cluster: []int32{0, 0, 1, 0},
		Angle:   []float32{0.3, -0.7, 1.1, 0},
		Coarse:  2,
	}
}

// Transport does not touch order-0 streams, so a constant scalar field
// survives a pool/unpool round trip exactly.
func TestPool_ConstantScalarRoundTrip(t *testing.T) {
	pg := testPoolGraph()
	x := field.New(4, 2, 2)
	want := complex64(complex(0.5, -1.25))
	for v := 0; v < 4; v++ {
		for c := 0; c < 2; c++ {
			x.Set(v, 0, c, want)
		}
	}

	pool := &ParallelTransportPool{}
	coarse, st := pool.Forward(x, pg)
	require.Equal(t, 2, coarse.Verts())
	for k := 0; k < 2; k++ {
		for c := 0; c < 2; c++ {
			z := coarse.At(k, 0, c)
			assert.InDelta(t, real(want), float64(real(z)), 1e-6)
			assert.InDelta(t, imag(want), float64(imag(z)), 1e-6)
		}
	}

	unpool := &ParallelTransportUnpool{}
	fine := unpool.Forward(coarse, st)
	require.Equal(t, 4, fine.Verts())
	for v := 0; v < 4; v++ {
		for c := 0; c < 2; c++ {
			z := fine.At(v, 0, c)
			assert.InDelta(t, real(want), float64(real(z)), 1e-6)
			assert.InDelta(t, imag(want), float64(imag(z)), 1e-6)
		}
	}
}

func TestPool_SingletonClusterPreservesMagnitude(t *testing.T) {
	pg := testPoolGraph()
	rng := rand.New(rand.NewSource(1))
	x := randField(4, 2, 1, rng)

	pool := &ParallelTransportPool{}
	coarse, _ := pool.Forward(x, pg)
	// Vertex 2 is alone in cluster 1: pooling only transports it.
	for m := 0; m < 2; m++ {
		assert.InDelta(t, mag64(x.At(2, m, 0)), mag64(coarse.At(1, m, 0)), 1e-5)
	}
}

func TestPoolState_ConsumedTwicePanics(t *testing.T) {
	pg := testPoolGraph()
	x := randField(4, 1, 1, rand.New(rand.NewSource(1)))

	pool := &ParallelTransportPool{}
	coarse, st := pool.Forward(x, pg)

	unpool := &ParallelTransportUnpool{}
	unpool.Forward(coarse, st)
	assert.PanicsWithValue(t,
		"hsn: pooling state consumed twice; each PoolState pairs one pool with one unpool per forward pass",
		func() { unpool.Forward(coarse, st) })
}

func TestUnpool_ShapeMismatchPanics(t *testing.T) {
	pg := testPoolGraph()
	x := randField(4, 1, 1, rand.New(rand.NewSource(1)))
	pool := &ParallelTransportPool{}
	_, st := pool.Forward(x, pg)

	unpool := &ParallelTransportUnpool{}
	assert.Panics(t, func() { unpool.Forward(randField(3, 1, 1, rand.New(rand.NewSource(2))), st) })
}

// Pooling is linear, so its backward must be the exact adjoint:
// Re<g, Pool(x)> == Re<Pool^T(g), x>.
func TestPool_BackwardIsAdjoint(t *testing.T) {
	pg := testPoolGraph()
	rng := rand.New(rand.NewSource(2))
	x := randField(4, 2, 2, rng)
	g := randField(2, 2, 2, rng)

	pool := &ParallelTransportPool{}
	y, _ := pool.Forward(x, pg)
	gx := pool.Backward(g)

	assert.InDelta(t, realInner(g, y), realInner(gx, x), 1e-4)
}

func TestUnpool_BackwardIsAdjoint(t *testing.T) {
	pg := testPoolGraph()
	rng := rand.New(rand.NewSource(3))
	x := randField(4, 2, 2, rng)
	coarse := randField(2, 2, 2, rng)
	g := randField(4, 2, 2, rng)

	pool := &ParallelTransportPool{}
	_, st := pool.Forward(x, pg)

	unpool := &ParallelTransportUnpool{}
	y := unpool.Forward(coarse, st)
	gc := unpool.Backward(g)

	assert.InDelta(t, realInner(g, y), realInner(gc, coarse), 1e-4)
}

// realInner is the real-view inner product sum Re(conj(a_i) b_i).
func realInner(a, b *field.Field) float64 {
	var s float64
	ad, bd := a.Data(), b.Data()
	for i := range ad {
		s += float64(real(ad[i]))*float64(real(bd[i])) + float64(imag(ad[i]))*float64(imag(bd[i]))
	}
	return s
}
