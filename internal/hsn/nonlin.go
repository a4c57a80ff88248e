package hsn

import (
	"fmt"
	"math"

	"github.com/PeterZhouSZ/hsn/internal/field"
)

// MagnitudeNonlin is the equivariant nonlinearity: it rectifies the
// magnitude of each complex activation while leaving its phase alone,
//
//	y = ReLU(|z| + b) * z / |z|
//
// with one learned real bias b per channel, shared across orders.
// Acting only on magnitudes keeps every stream's rotation behavior
// intact. Zero activations stay zero.
type MagnitudeNonlin struct {
	channels int
	bias     *Parameter // [channels]

	x *field.Field
}

// NewMagnitudeNonlin creates the nonlinearity with zero biases, which
// makes it the identity on nonnegative magnitudes at initialization.
func NewMagnitudeNonlin(name string, channels int) *MagnitudeNonlin {
	return &MagnitudeNonlin{
		channels: channels,
		bias:     NewParameter(name+".bias", channels),
	}
}

// Parameters returns the bias.
func (n *MagnitudeNonlin) Parameters() []*Parameter { return []*Parameter{n.bias} }

// Forward applies the magnitude rectification.
func (n *MagnitudeNonlin) Forward(x *field.Field) *field.Field {
	if x.Channels() != n.channels {
		panic(fmt.Sprintf("hsn: MagnitudeNonlin.Forward: %s, want %d channels", x, n.channels))
	}
	n.x = x
	b := n.bias.Data()
	out := field.New(x.Verts(), x.Orders(), x.Channels())
	in := x.Data()
	y := out.Data()
	ch := n.channels
	for i, z := range in {
		s := mag64(z)
		if s == 0 {
			continue
		}
		a := s + float64(b[i%ch])
		if a <= 0 {
			continue
		}
		scale := float32(a / s)
		y[i] = z * complex(scale, 0)
	}
	return out
}

// Backward accumulates the bias gradient and returns dL/dz. For active
// units y = lambda(s) * z with lambda(s) = (s+b)/s, so
//
//	dL/dz = lambda * G + lambda'(s) * Re(conj(z) G) * z / s
//	dL/db = Re(conj(z/s) * G)
func (n *MagnitudeNonlin) Backward(grad *field.Field) *field.Field {
	if n.x == nil {
		panic("hsn: MagnitudeNonlin.Backward before Forward")
	}
	if !grad.SameShape(n.x) {
		panic(fmt.Sprintf("hsn: MagnitudeNonlin.Backward: gradient %s, want %s", grad, n.x))
	}
	b := n.bias.Data()
	gb := n.bias.Grad()
	in := n.x.Data()
	g := grad.Data()
	out := field.New(n.x.Verts(), n.x.Orders(), n.x.Channels())
	gz := out.Data()
	ch := n.channels
	for i, z := range in {
		s := mag64(z)
		if s == 0 {
			continue
		}
		bc := float64(b[i%ch])
		if s+bc <= 0 {
			continue
		}
		lambda := (s + bc) / s
		dlambda := -bc / (s * s)
		gi := g[i]
		// Re(conj(z) G)
		zg := float64(real(z))*float64(real(gi)) + float64(imag(z))*float64(imag(gi))
		gz[i] = gi*complex(float32(lambda), 0) + z*complex(float32(dlambda*zg/s), 0)
		gb[i%ch] += float32(zg / s)
	}
	return out
}

func mag64(z complex64) float64 {
	re := float64(real(z))
	im := float64(imag(z))
	return math.Sqrt(re*re + im*im)
}
