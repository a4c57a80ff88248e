// Package hsn implements the equivariant layers of a harmonic surface
// network: harmonic convolution, residual blocks, the magnitude
// nonlinearity, parallel-transport pooling/unpooling and the
// rotation-invariant classification head.
//
// Layers come in Forward/Backward pairs with hand-derived adjoints:
// Forward caches the activations its Backward needs, and Backward
// accumulates parameter gradients in place and returns the gradient
// with respect to its input. A layer instance therefore serves one
// forward pass at a time, which matches the strictly sequential
// training loop.
//
// Complex gradients follow the real-view convention: the gradient of a
// complex activation z = x + iy is carried as the complex number
// dL/dx + i*dL/dy, so backpropagation through a complex-linear factor a
// multiplies by conj(a).
package hsn

// Mode selects training or inference behavior (dropout). It is passed
// explicitly into forward calls rather than stored as hidden mutable
// state on the model.
type Mode int

const (
	// Train enables dropout.
	Train Mode = iota
	// Eval disables dropout.
	Eval
)

// Module is the base capability set shared by all layers: exposing the
// trainable parameter set to an optimizer. Forward signatures differ
// per layer (convolutions take operator data, pooling takes a pool
// graph), so composition is by explicit ownership, not a uniform
// container.
type Module interface {
	Parameters() []*Parameter
}

// unitPow raises a unit complex number to an integer power. Negative
// powers conjugate, which is exact inversion on the unit circle.
func unitPow(z complex64, k int) complex64 {
	if k < 0 {
		z = complex(real(z), -imag(z))
		k = -k
	}
	out := complex64(1)
	for i := 0; i < k; i++ {
		out *= z
	}
	return out
}

func conj64(z complex64) complex64 {
	return complex(real(z), -imag(z))
}
