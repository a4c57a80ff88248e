package hsn

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/PeterZhouSZ/hsn/internal/field"
)

// Lift maps raw 3-D positions into the network's feature space: a real
// linear layer to nf channels, a rectifier, then promotion to a single
// order-0 complex stream with zero imaginary part.
type Lift struct {
	lin  *Linear
	relu *ReLU
}

// NewLift creates the position lift.
func NewLift(name string, nf int, rng *rand.Rand) *Lift {
	return &Lift{
		lin:  NewLinear(name+".lin", 3, nf, rng),
		relu: &ReLU{},
	}
}

// Parameters returns the linear layer's parameters.
func (l *Lift) Parameters() []*Parameter { return l.lin.Parameters() }

// Forward lifts positions to an order-0 field.
func (l *Lift) Forward(pos []r3.Vec) *field.Field {
	flat := make([]float32, len(pos)*3)
	for i, p := range pos {
		flat[i*3] = float32(p.X)
		flat[i*3+1] = float32(p.Y)
		flat[i*3+2] = float32(p.Z)
	}
	h := l.relu.Forward(l.lin.Forward(flat, len(pos)))

	nf := len(h) / len(pos)
	out := field.New(len(pos), 1, nf)
	data := out.Data()
	for i, v := range h {
		data[i] = complex(v, 0)
	}
	return out
}

// Backward propagates into the linear layer's parameters. The position
// input itself receives no gradient (geometry is not learned), so
// nothing is returned.
func (l *Lift) Backward(grad *field.Field) {
	g := make([]float32, len(grad.Data()))
	for i, z := range grad.Data() {
		g[i] = real(z)
	}
	l.lin.Backward(l.relu.Backward(g))
}
