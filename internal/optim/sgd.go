package optim

import "github.com/PeterZhouSZ/hsn/internal/hsn"

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Without momentum: param -= lr * grad.
// With momentum:    velocity = momentum*velocity + grad,
//
//	param -= lr * velocity.
type SGD struct {
	params     []*hsn.Parameter
	lr         float32
	momentum   float32
	velocities [][]float32
}

// SGDConfig holds configuration for SGD. A zero LR defaults to 0.01.
type SGDConfig struct {
	LR       float32
	Momentum float32
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD(params []*hsn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	s := &SGD{
		params:   params,
		lr:       config.LR,
		momentum: config.Momentum,
	}
	if s.momentum != 0 {
		s.velocities = make([][]float32, len(params))
		for i, p := range params {
			s.velocities[i] = make([]float32, p.NumElements())
		}
	}
	return s
}

// Step applies one gradient-descent update.
func (s *SGD) Step() {
	for i, p := range s.params {
		data := p.Data()
		grad := p.Grad()
		if s.momentum == 0 {
			for k, g := range grad {
				data[k] -= s.lr * g
			}
			continue
		}
		vel := s.velocities[i]
		for k, g := range grad {
			vel[k] = s.momentum*vel[k] + g
			data[k] -= s.lr * vel[k]
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (s *SGD) ZeroGrad() { zeroGrads(s.params) }

// LR returns the current learning rate.
func (s *SGD) LR() float32 { return s.lr }

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) { s.lr = lr }
