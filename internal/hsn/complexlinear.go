package hsn

import (
	"fmt"
	"math/rand"

	"github.com/PeterZhouSZ/hsn/internal/field"
)

// ComplexLinear is a 1x1 complex channel mixer applied independently at
// every (vertex, order) slot. Because it multiplies each stream by the
// same complex matrix, it commutes with frame rotations and preserves
// equivariance. Residual shortcuts use it when a block changes width.
type ComplexLinear struct {
	in, out int
	weight  *Parameter // [in, out, 2]

	x *field.Field
}

// NewComplexLinear creates the mixer with Xavier-initialized complex
// weights.
func NewComplexLinear(name string, in, out int, rng *rand.Rand) *ComplexLinear {
	l := &ComplexLinear{
		in:     in,
		out:    out,
		weight: NewParameter(name+".weight", in, out, 2),
	}
	XavierUniform(l.weight, in, out, rng)
	return l
}

// Parameters returns the weight.
func (l *ComplexLinear) Parameters() []*Parameter { return []*Parameter{l.weight} }

// Forward mixes channels: y[v,m,co] = sum_ci W[ci,co] x[v,m,ci].
func (l *ComplexLinear) Forward(x *field.Field) *field.Field {
	if x.Channels() != l.in {
		panic(fmt.Sprintf("hsn: ComplexLinear.Forward: %s, want %d channels", x, l.in))
	}
	l.x = x
	w := l.weight.Data()
	out := field.New(x.Verts(), x.Orders(), l.out)
	in := x.Data()
	y := out.Data()
	slots := x.Verts() * x.Orders()
	for s := 0; s < slots; s++ {
		xrow := in[s*l.in : (s+1)*l.in]
		yrow := y[s*l.out : (s+1)*l.out]
		for ci, xc := range xrow {
			if xc == 0 {
				continue
			}
			for co := 0; co < l.out; co++ {
				idx := (ci*l.out + co) * 2
				yrow[co] += complex(w[idx], w[idx+1]) * xc
			}
		}
	}
	return out
}

// Backward accumulates the weight gradient and returns dL/dx.
func (l *ComplexLinear) Backward(grad *field.Field) *field.Field {
	if l.x == nil {
		panic("hsn: ComplexLinear.Backward before Forward")
	}
	w := l.weight.Data()
	gw := l.weight.Grad()
	in := l.x.Data()
	g := grad.Data()
	out := field.New(l.x.Verts(), l.x.Orders(), l.in)
	gx := out.Data()
	slots := l.x.Verts() * l.x.Orders()
	for s := 0; s < slots; s++ {
		xrow := in[s*l.in : (s+1)*l.in]
		grow := g[s*l.out : (s+1)*l.out]
		gxrow := gx[s*l.in : (s+1)*l.in]
		for ci, xc := range xrow {
			xconj := conj64(xc)
			for co := 0; co < l.out; co++ {
				gc := grow[co]
				if gc == 0 {
					continue
				}
				idx := (ci*l.out + co) * 2
				kg := xconj * gc
				gw[idx] += real(kg)
				gw[idx+1] += imag(kg)
				gxrow[ci] += conj64(complex(w[idx], w[idx+1])) * gc
			}
		}
	}
	return out
}
