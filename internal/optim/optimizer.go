// Package optim implements the optimization algorithms and the
// learning-rate schedule of the training loop.
//
// There is no gradient map to pass around: layers accumulate
// gradients on their parameters during the backward pass, and Step
// consumes them in place.
package optim

import "github.com/PeterZhouSZ/hsn/internal/hsn"

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update to every parameter from its
	// accumulated gradient.
	Step()

	// ZeroGrad clears all parameter gradients. Call before each
	// backward pass to prevent accumulation across batches.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float32

	// SetLR updates the learning rate; used by schedules.
	SetLR(lr float32)
}

// Schedule maps an epoch to a learning rate. It is a pure function
// consulted at the start of every epoch, replacing scattered one-shot
// mutation of the optimizer.
type Schedule func(epoch int) float32

// StepSchedule returns initial for epochs before dropEpoch and dropped
// from dropEpoch on. The transition is one-shot: no further changes in
// later epochs.
func StepSchedule(initial, dropped float32, dropEpoch int) Schedule {
	return func(epoch int) float32 {
		if epoch < dropEpoch {
			return initial
		}
		return dropped
	}
}

func zeroGrads(params []*hsn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
