package hsn

import (
	"fmt"
	"math/rand"
)

// Linear is a real fully connected layer applied per vertex:
// y = x @ W.T + b with W of shape [out, in]. Used by the position lift
// and the invariant head, where features are plain real vectors.
type Linear struct {
	in, out int
	weight  *Parameter
	bias    *Parameter

	x     []float32 // cached input for backward
	verts int
}

// NewLinear creates a Linear layer with Xavier-initialized weights and
// zero biases.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		in:     in,
		out:    out,
		weight: NewParameter(name+".weight", out, in),
		bias:   NewParameter(name+".bias", out),
	}
	XavierUniform(l.weight, in, out, rng)
	return l
}

// Parameters returns the weight and bias.
func (l *Linear) Parameters() []*Parameter { return []*Parameter{l.weight, l.bias} }

// Forward computes y[v] = W x[v] + b for verts vertices. x is
// vertex-major with l.in values per vertex.
func (l *Linear) Forward(x []float32, verts int) []float32 {
	if len(x) != verts*l.in {
		panic(fmt.Sprintf("hsn: Linear.Forward: input length %d, want %d x %d", len(x), verts, l.in))
	}
	l.x = x
	l.verts = verts
	w := l.weight.Data()
	b := l.bias.Data()
	y := make([]float32, verts*l.out)
	for v := 0; v < verts; v++ {
		xv := x[v*l.in : (v+1)*l.in]
		yv := y[v*l.out : (v+1)*l.out]
		for o := 0; o < l.out; o++ {
			acc := b[o]
			wo := w[o*l.in : (o+1)*l.in]
			for i, xi := range xv {
				acc += wo[i] * xi
			}
			yv[o] = acc
		}
	}
	return y
}

// Backward accumulates weight/bias gradients and returns dL/dx.
func (l *Linear) Backward(grad []float32) []float32 {
	if len(grad) != l.verts*l.out {
		panic(fmt.Sprintf("hsn: Linear.Backward: gradient length %d, want %d x %d", len(grad), l.verts, l.out))
	}
	w := l.weight.Data()
	gw := l.weight.Grad()
	gb := l.bias.Grad()
	gx := make([]float32, l.verts*l.in)
	for v := 0; v < l.verts; v++ {
		xv := l.x[v*l.in : (v+1)*l.in]
		gv := grad[v*l.out : (v+1)*l.out]
		gxv := gx[v*l.in : (v+1)*l.in]
		for o := 0; o < l.out; o++ {
			g := gv[o]
			if g == 0 {
				continue
			}
			gb[o] += g
			wo := w[o*l.in : (o+1)*l.in]
			gwo := gw[o*l.in : (o+1)*l.in]
			for i, xi := range xv {
				gwo[i] += g * xi
				gxv[i] += g * wo[i]
			}
		}
	}
	return gx
}

// ReLU is the rectified nonlinearity on real features.
type ReLU struct {
	mask []bool
}

// Parameters returns nil; ReLU has no trainable state.
func (r *ReLU) Parameters() []*Parameter { return nil }

// Forward computes max(0, x).
func (r *ReLU) Forward(x []float32) []float32 {
	y := make([]float32, len(x))
	r.mask = make([]bool, len(x))
	for i, v := range x {
		if v > 0 {
			y[i] = v
			r.mask[i] = true
		}
	}
	return y
}

// Backward gates the gradient by the forward activation mask.
func (r *ReLU) Backward(grad []float32) []float32 {
	gx := make([]float32, len(grad))
	for i, g := range grad {
		if r.mask[i] {
			gx[i] = g
		}
	}
	return gx
}

// Dropout zeroes activations with probability P during training,
// scaling survivors by 1/(1-P) so expectations match eval mode.
type Dropout struct {
	P   float32
	rng *rand.Rand

	mask []float32
}

// NewDropout creates a Dropout layer driven by the given rng.
func NewDropout(p float32, rng *rand.Rand) *Dropout {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("hsn: dropout probability %g out of [0,1)", p))
	}
	return &Dropout{P: p, rng: rng}
}

// Parameters returns nil; Dropout has no trainable state.
func (d *Dropout) Parameters() []*Parameter { return nil }

// Forward applies dropout in Train mode and is the identity in Eval
// mode.
func (d *Dropout) Forward(x []float32, mode Mode) []float32 {
	if mode == Eval || d.P == 0 {
		d.mask = nil
		return x
	}
	scale := 1 / (1 - d.P)
	y := make([]float32, len(x))
	d.mask = make([]float32, len(x))
	for i, v := range x {
		if d.rng.Float32() >= d.P {
			d.mask[i] = scale
			y[i] = v * scale
		}
	}
	return y
}

// Backward routes gradients through the surviving units.
func (d *Dropout) Backward(grad []float32) []float32 {
	if d.mask == nil {
		return grad
	}
	gx := make([]float32, len(grad))
	for i, g := range grad {
		gx[i] = g * d.mask[i]
	}
	return gx
}
