package hsn

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/PeterZhouSZ/hsn/internal/field"
	"github.com/PeterZhouSZ/hsn/internal/transform"
)

// testScaleData is a tiny 3-vertex operator with non-trivial angles.
func testScaleData(nRings int) *transform.ScaleData {
	unit := func(a float64) complex64 { return complex64(cmplx.Exp(complex(0, a))) }
	d := &transform.ScaleData{
		Verts:   3,
		Targets: []int32{0, 0, 1, 2},
		Sources: []int32{1, 2, 0, 1},
		RowPtr:  []int32{0, 2, 3, 4},
		Rot:     []complex64{unit(0.3), unit(-1.1), unit(2.0), unit(0.7)},
		Conn:    []complex64{unit(0.9), unit(-0.4), unit(1.6), unit(-2.2)},
	}
	profiles := [][]float32{{0.7, 0.3}, {0.5, 0.5}, {1, 0}, {0.2, 0.8}}
	d.Precomp = make([][]float32, len(d.Targets))
	for e := range d.Precomp {
		d.Precomp[e] = profiles[e][:nRings]
	}
	return d
}

// randField draws complex entries with magnitude in [0.5, 1.5], keeping
// activations away from the magnitude kink at zero.
func randField(verts, orders, channels int, rng *rand.Rand) *field.Field {
	f := field.New(verts, orders, channels)
	data := f.Data()
	for i := range data {
		mag := 0.5 + rng.Float64()
		arg := rng.Float64() * 2 * math.Pi
		data[i] = complex64(cmplx.Rect(mag, arg))
	}
	return f
}

func randPositions(n int, rng *rand.Rand) []r3.Vec {
	pos := make([]r3.Vec, n)
	for i := range pos {
		pos[i] = r3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1}
	}
	return pos
}

func quadWeights(n int, rng *rand.Rand) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = rng.Float64()*2 - 1
	}
	return w
}

// quadLoss is sum_i w_i * |y_i|^2, a smooth scalar probe.
func quadLoss(y *field.Field, w []float64) float64 {
	var l float64
	for i, z := range y.Data() {
		re, im := float64(real(z)), float64(imag(z))
		l += w[i] * (re*re + im*im)
	}
	return l
}

// quadGrad is the real-view gradient of quadLoss: 2 * w_i * y_i.
func quadGrad(y *field.Field, w []float64) *field.Field {
	g := field.New(y.Verts(), y.Orders(), y.Channels())
	gd := g.Data()
	for i, z := range y.Data() {
		gd[i] = z * complex(float32(2*w[i]), 0)
	}
	return g
}

func assertGradClose(t *testing.T, name string, fd, an float64) {
	t.Helper()
	tol := 2e-2 * (1 + math.Abs(fd) + math.Abs(an))
	if math.Abs(fd-an) > tol {
		t.Errorf("%s: finite diff %g, adjoint %g", name, fd, an)
	}
}

// checkParamGrad compares every element of p.Grad against a central
// finite difference of loss.
func checkParamGrad(t *testing.T, p *Parameter, loss func() float64, eps float64) {
	t.Helper()
	data := p.Data()
	grad := p.Grad()
	for i := range data {
		orig := data[i]
		data[i] = orig + float32(eps)
		lp := loss()
		data[i] = orig - float32(eps)
		lm := loss()
		data[i] = orig
		assertGradClose(t, p.Name(), (lp-lm)/(2*eps), float64(grad[i]))
	}
}

// checkFieldGrad compares gx against finite differences of loss over
// the real and imaginary parts of x.
func checkFieldGrad(t *testing.T, x, gx *field.Field, loss func() float64, eps float64) {
	t.Helper()
	data := x.Data()
	for i := range data {
		orig := data[i]
		data[i] = orig + complex(float32(eps), 0)
		lp := loss()
		data[i] = orig - complex(float32(eps), 0)
		lm := loss()
		data[i] = orig
		assertGradClose(t, "grad re", (lp-lm)/(2*eps), float64(real(gx.Data()[i])))

		data[i] = orig + complex(0, float32(eps))
		lp = loss()
		data[i] = orig - complex(0, float32(eps))
		lm = loss()
		data[i] = orig
		assertGradClose(t, "grad im", (lp-lm)/(2*eps), float64(imag(gx.Data()[i])))
	}
}

func TestHarmonicConv_Shapes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	conv := NewHarmonicConv("conv", 2, 3, 1, 2, 1, rng)
	sd := testScaleData(2)
	x := randField(3, 1, 2, rng)

	y := conv.Forward(x, sd)
	assert.Equal(t, 3, y.Verts())
	assert.Equal(t, 2, y.Orders())
	assert.Equal(t, 3, y.Channels())
	assert.Equal(t, 2, conv.OutOrders())

	assert.Panics(t, func() { conv.Forward(randField(3, 2, 2, rng), sd) })
	assert.Panics(t, func() { conv.Forward(randField(4, 1, 2, rng), sd) })
}

func TestHarmonicConv_GradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	conv := NewHarmonicConv("conv", 2, 2, 2, 2, 1, rng)
	sd := testScaleData(2)
	x := randField(3, 2, 2, rng)
	w := quadWeights(3*2*2, rng)

	loss := func() float64 { return quadLoss(conv.Forward(x, sd), w) }

	y := conv.Forward(x, sd)
	conv.weight.ZeroGrad()
	gx := conv.Backward(quadGrad(y, w))

	checkParamGrad(t, conv.weight, loss, 1e-2)
	checkFieldGrad(t, x, gx, loss, 1e-2)
}

// Changing the tangent frame at one vertex rotates that vertex's order-m
// stream by e^{-i*m*a} and leaves every magnitude unchanged.
func TestHarmonicConv_GaugeEquivariance(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	conv := NewHarmonicConv("conv", 2, 2, 2, 2, 1, rng)
	sd := testScaleData(2)
	x := randField(3, 2, 2, rng)
	y := conv.Forward(x, sd).Clone()

	const alpha = 0.9
	const gauged = 1 // vertex whose frame rotates
	rot := func(a float64) complex64 { return complex64(cmplx.Exp(complex(0, a))) }

	sd2 := &transform.ScaleData{
		Verts:   sd.Verts,
		Targets: sd.Targets,
		Sources: sd.Sources,
		RowPtr:  sd.RowPtr,
		Precomp: sd.Precomp,
		Rot:     append([]complex64{}, sd.Rot...),
		Conn:    append([]complex64{}, sd.Conn...),
	}
	for e := range sd2.Targets {
		if sd2.Targets[e] == gauged {
			sd2.Rot[e] *= rot(-alpha)
			sd2.Conn[e] *= rot(-alpha)
		}
		if sd2.Sources[e] == gauged {
			sd2.Conn[e] *= rot(alpha)
		}
	}
	x2 := x.Clone()
	for m := 0; m < x2.Orders(); m++ {
		for c := 0; c < x2.Channels(); c++ {
			x2.Set(gauged, m, c, x2.At(gauged, m, c)*unitPow(rot(-alpha), m))
		}
	}

	y2 := conv.Forward(x2, sd2)
	for v := 0; v < y.Verts(); v++ {
		for m := 0; m < y.Orders(); m++ {
			expect := func(z complex64) complex64 { return z }
			if v == gauged {
				expect = func(z complex64) complex64 { return z * unitPow(rot(-alpha), m) }
			}
			for c := 0; c < y.Channels(); c++ {
				want := expect(y.At(v, m, c))
				got := y2.At(v, m, c)
				require.InDelta(t, real(want), real(got), 1e-4, "v=%d m=%d c=%d", v, m, c)
				require.InDelta(t, imag(want), imag(got), 1e-4, "v=%d m=%d c=%d", v, m, c)
			}
		}
	}
}

func TestUnitPow(t *testing.T) {
	z := complex64(cmplx.Exp(complex(0, 0.5)))
	assert.Equal(t, complex64(1), unitPow(z, 0))
	assert.Equal(t, z, unitPow(z, 1))

	w := unitPow(z, -2)
	want := cmplx.Exp(complex(0, -1.0))
	assert.InDelta(t, real(want), float64(real(w)), 1e-6)
	assert.InDelta(t, imag(want), float64(imag(w)), 1e-6)
}
