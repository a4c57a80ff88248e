package hsn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeterZhouSZ/hsn/internal/field"
)

func TestParameter(t *testing.T) {
	p := NewParameter("w", 2, 3)
	assert.Equal(t, "w", p.Name())
	assert.Equal(t, []int{2, 3}, p.Shape())
	assert.Equal(t, 6, p.NumElements())

	p.Grad()[0] = 5
	p.ZeroGrad()
	assert.Equal(t, float32(0), p.Grad()[0])

	assert.Panics(t, func() { NewParameter("bad", 2, 0) })
}

func TestXavierUniform_Bounds(t *testing.T) {
	p := NewParameter("w", 100)
	XavierUniform(p, 10, 10, rand.New(rand.NewSource(1)))
	limit := float32(0.5477226) // sqrt(6/20)
	var nonzero int
	for _, v := range p.Data() {
		assert.LessOrEqual(t, v, limit)
		assert.GreaterOrEqual(t, v, -limit)
		if v != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, 90)
}

func TestLinear_Forward(t *testing.T) {
	l := NewLinear("lin", 2, 1, rand.New(rand.NewSource(1)))
	copy(l.weight.Data(), []float32{2, -1})
	l.bias.Data()[0] = 0.5

	y := l.Forward([]float32{1, 2, 3, 4}, 2)
	require.Len(t, y, 2)
	assert.InDelta(t, 0.5, float64(y[0]), 1e-6) // 2*1 - 1*2 + 0.5
	assert.InDelta(t, 2.5, float64(y[1]), 1e-6) // 2*3 - 1*4 + 0.5
}

func TestLinear_GradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	l := NewLinear("lin", 3, 2, rng)
	x := make([]float32, 2*3)
	for i := range x {
		x[i] = rng.Float32()*2 - 1
	}
	w := quadWeights(2*2, rng)

	loss := func() float64 {
		var s float64
		for i, v := range l.Forward(x, 2) {
			s += w[i] * float64(v) * float64(v)
		}
		return s
	}

	y := l.Forward(x, 2)
	g := make([]float32, len(y))
	for i, v := range y {
		g[i] = float32(2*w[i]) * v
	}
	l.weight.ZeroGrad()
	l.bias.ZeroGrad()
	gx := l.Backward(g)

	checkParamGrad(t, l.weight, loss, 1e-2)
	checkParamGrad(t, l.bias, loss, 1e-2)
	for i := range x {
		orig := x[i]
		x[i] = orig + 1e-2
		lp := loss()
		x[i] = orig - 1e-2
		lm := loss()
		x[i] = orig
		assertGradClose(t, "linear input", (lp-lm)/2e-2, float64(gx[i]))
	}
}

func TestReLU(t *testing.T) {
	r := &ReLU{}
	y := r.Forward([]float32{-1, 0, 2})
	assert.Equal(t, []float32{0, 0, 2}, y)
	g := r.Backward([]float32{1, 1, 1})
	assert.Equal(t, []float32{0, 0, 1}, g)
}

func TestDropout_EvalIsIdentity(t *testing.T) {
	d := NewDropout(0.5, rand.New(rand.NewSource(1)))
	x := []float32{1, 2, 3}
	assert.Equal(t, x, d.Forward(x, Eval))
	assert.Equal(t, x, d.Backward(x))
}

func TestDropout_TrainScalesSurvivors(t *testing.T) {
	d := NewDropout(0.5, rand.New(rand.NewSource(1)))
	x := make([]float32, 1000)
	for i := range x {
		x[i] = 1
	}
	y := d.Forward(x, Train)
	var kept int
	for i, v := range y {
		if v != 0 {
			assert.InDelta(t, 2, float64(v), 1e-6)
			kept++
		}
		// Backward follows the same mask.
		g := d.mask[i]
		if v == 0 {
			assert.Equal(t, float32(0), g)
		}
	}
	assert.Greater(t, kept, 400)
	assert.Less(t, kept, 600)
}

func TestDropout_RejectsBadProbability(t *testing.T) {
	assert.Panics(t, func() { NewDropout(1, rand.New(rand.NewSource(1))) })
	assert.Panics(t, func() { NewDropout(-0.1, rand.New(rand.NewSource(1))) })
}

func TestComplexLinear_GradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	l := NewComplexLinear("mix", 2, 3, rng)
	x := randField(2, 2, 2, rng)
	w := quadWeights(2*2*3, rng)

	loss := func() float64 { return quadLoss(l.Forward(x), w) }

	y := l.Forward(x)
	require.Equal(t, 3, y.Channels())
	require.Equal(t, 2, y.Orders())
	l.weight.ZeroGrad()
	gx := l.Backward(quadGrad(y, w))

	checkParamGrad(t, l.weight, loss, 1e-2)
	checkFieldGrad(t, x, gx, loss, 1e-2)
}

func TestMagnitudeNonlin_Forward(t *testing.T) {
	n := NewMagnitudeNonlin("nl", 1)
	n.bias.Data()[0] = -2

	x := field.New(1, 1, 1)
	x.Set(0, 0, 0, complex(3, 4)) // |z| = 5
	y := n.Forward(x)
	// (5-2)/5 scales the activation, phase untouched.
	assert.InDelta(t, 1.8, float64(real(y.At(0, 0, 0))), 1e-5)
	assert.InDelta(t, 2.4, float64(imag(y.At(0, 0, 0))), 1e-5)

	// Bias below -|z| kills the unit.
	n.bias.Data()[0] = -6
	y = n.Forward(x)
	assert.Equal(t, complex64(0), y.At(0, 0, 0))
}

func TestMagnitudeNonlin_ZeroStaysZero(t *testing.T) {
	n := NewMagnitudeNonlin("nl", 1)
	n.bias.Data()[0] = 1
	x := field.New(1, 1, 1)
	y := n.Forward(x)
	assert.Equal(t, complex64(0), y.At(0, 0, 0))
}

func TestMagnitudeNonlin_GradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	n := NewMagnitudeNonlin("nl", 2)
	n.bias.Data()[0] = 0.2
	n.bias.Data()[1] = -0.15
	x := randField(3, 2, 2, rng) // magnitudes >= 0.5, away from the kink
	w := quadWeights(3*2*2, rng)

	loss := func() float64 { return quadLoss(n.Forward(x), w) }

	y := n.Forward(x)
	n.bias.ZeroGrad()
	gx := n.Backward(quadGrad(y, w))

	checkParamGrad(t, n.bias, loss, 1e-3)
	checkFieldGrad(t, x, gx, loss, 1e-3)
}
