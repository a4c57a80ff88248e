package hsn

import "fmt"

// Parameter is a trainable parameter viewed as a flat float32 slice.
// Complex-valued kernels store interleaved (re, im) pairs as a
// trailing dimension of 2, so optimizers update them element-wise like
// any real parameter.
type Parameter struct {
	name  string
	shape []int
	data  []float32
	grad  []float32
}

// NewParameter creates a zero-initialized parameter.
func NewParameter(name string, shape ...int) *Parameter {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("hsn: parameter %q has invalid shape %v", name, shape))
		}
		n *= d
	}
	return &Parameter{
		name:  name,
		shape: shape,
		data:  make([]float32, n),
		grad:  make([]float32, n),
	}
}

// Name returns the parameter name (e.g. "conv1.weight").
func (p *Parameter) Name() string { return p.name }

// Shape returns the parameter shape.
func (p *Parameter) Shape() []int { return p.shape }

// NumElements returns the flat element count.
func (p *Parameter) NumElements() int { return len(p.data) }

// Data returns the parameter values (zero-copy).
func (p *Parameter) Data() []float32 { return p.data }

// Grad returns the accumulated gradient (zero-copy).
func (p *Parameter) Grad() []float32 { return p.grad }

// ZeroGrad clears the accumulated gradient. Called by the optimizer
// before each backward pass.
func (p *Parameter) ZeroGrad() {
	for i := range p.grad {
		p.grad[i] = 0
	}
}
