package hsn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/PeterZhouSZ/hsn/internal/field"
)

// InvariantHead turns equivariant streams into a per-vertex probability
// distribution over the canonical reference vertices: it reduces each
// channel to its rotation-invariant magnitude summed across orders,
// applies two dense layers with a rectifier and dropout between them,
// and log-normalizes the output.
type InvariantHead struct {
	lin1, lin2 *Linear
	relu       *ReLU
	drop       *Dropout
	classes    int

	x     *field.Field
	probs []float32 // cached softmax for the log-softmax adjoint
}

// NewInvariantHead creates the head. classes is the dataset's fixed
// vertex count.
func NewInvariantHead(name string, inCh, hidden, classes int, dropout float32, rng *rand.Rand) *InvariantHead {
	return &InvariantHead{
		lin1:    NewLinear(name+".lin1", inCh, hidden, rng),
		lin2:    NewLinear(name+".lin2", hidden, classes, rng),
		relu:    &ReLU{},
		drop:    NewDropout(dropout, rng),
		classes: classes,
	}
}

// Parameters returns the dense layers' parameters.
func (h *InvariantHead) Parameters() []*Parameter {
	return append(h.lin1.Parameters(), h.lin2.Parameters()...)
}

// Classes returns the output distribution size.
func (h *InvariantHead) Classes() int { return h.classes }

// Forward emits log-probabilities, vertex-major: the slice has
// x.Verts()*Classes() entries.
func (h *InvariantHead) Forward(x *field.Field, mode Mode) []float32 {
	h.x = x
	verts := x.Verts()

	inv := field.Magnitudes(x)
	hid := h.relu.Forward(h.lin1.Forward(inv, verts))
	hid = h.drop.Forward(hid, mode)
	logits := h.lin2.Forward(hid, verts)

	// Log-softmax per vertex, max-shifted for stability.
	logp := make([]float32, len(logits))
	h.probs = make([]float32, len(logits))
	for v := 0; v < verts; v++ {
		row := logits[v*h.classes : (v+1)*h.classes]
		maxv := row[0]
		for _, l := range row[1:] {
			if l > maxv {
				maxv = l
			}
		}
		var sum float64
		for _, l := range row {
			sum += math.Exp(float64(l - maxv))
		}
		logZ := float32(math.Log(sum)) + maxv
		for c, l := range row {
			logp[v*h.classes+c] = l - logZ
			h.probs[v*h.classes+c] = float32(math.Exp(float64(l - logZ)))
		}
	}
	return logp
}

// Backward takes dL/dlogp and returns dL/dx.
func (h *InvariantHead) Backward(gradLogp []float32) *field.Field {
	if h.x == nil {
		panic("hsn: InvariantHead.Backward before Forward")
	}
	verts := h.x.Verts()
	if len(gradLogp) != verts*h.classes {
		panic(fmt.Sprintf("hsn: InvariantHead.Backward: gradient length %d, want %d", len(gradLogp), verts*h.classes))
	}

	// Log-softmax adjoint: dL/dlogit = g - softmax * sum(g).
	gLogits := make([]float32, len(gradLogp))
	for v := 0; v < verts; v++ {
		var sum float32
		for c := 0; c < h.classes; c++ {
			sum += gradLogp[v*h.classes+c]
		}
		for c := 0; c < h.classes; c++ {
			i := v*h.classes + c
			gLogits[i] = gradLogp[i] - h.probs[i]*sum
		}
	}

	g := h.lin2.Backward(gLogits)
	g = h.drop.Backward(g)
	g = h.relu.Backward(g)
	g = h.lin1.Backward(g)
	return field.MagnitudesBackward(h.x, g)
}
