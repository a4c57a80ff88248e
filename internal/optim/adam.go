package optim

import (
	"math"

	"github.com/PeterZhouSZ/hsn/internal/hsn"
)

// Adam implements Adaptive Moment Estimation with bias correction.
//
// Update rule per element:
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g*g
//	param -= lr * (m / (1-beta1^t)) / (sqrt(v / (1-beta2^t)) + eps)
type Adam struct {
	params []*hsn.Parameter
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	m, v   [][]float32
	t      int
}

// AdamConfig holds configuration for the Adam optimizer. Zero values
// take the usual defaults (lr 0.001, betas 0.9/0.999, eps 1e-8).
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam(params []*hsn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas == [2]float32{} {
		config.Betas = [2]float32{0.9, 0.999}
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	a := &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make([][]float32, len(params)),
		v:      make([][]float32, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float32, p.NumElements())
		a.v[i] = make([]float32, p.NumElements())
	}
	return a
}

// Step applies one Adam update from the accumulated gradients.
func (a *Adam) Step() {
	a.t++
	bc1 := 1 - float32(math.Pow(float64(a.beta1), float64(a.t)))
	bc2 := 1 - float32(math.Pow(float64(a.beta2), float64(a.t)))
	for i, p := range a.params {
		data := p.Data()
		grad := p.Grad()
		m, v := a.m[i], a.v[i]
		for k, g := range grad {
			m[k] = a.beta1*m[k] + (1-a.beta1)*g
			v[k] = a.beta2*v[k] + (1-a.beta2)*g*g
			mHat := m[k] / bc1
			vHat := v[k] / bc2
			data[k] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (a *Adam) ZeroGrad() { zeroGrads(a.params) }

// LR returns the current learning rate.
func (a *Adam) LR() float32 { return a.lr }

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) { a.lr = lr }
