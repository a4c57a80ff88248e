// Package train implements the supervised training and evaluation
// loop of the correspondence experiment: a fixed number of epochs over
// shuffled training batches with a one-shot learning-rate drop,
// followed by a single evaluation pass reporting per-vertex accuracy.
package train

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/PeterZhouSZ/hsn/internal/dataset"
	"github.com/PeterZhouSZ/hsn/internal/hsn"
	"github.com/PeterZhouSZ/hsn/internal/model"
	"github.com/PeterZhouSZ/hsn/internal/optim"
)

// Config controls the loop. The loop is open-loop: no checkpointing,
// no early stopping, no validation-driven decisions.
type Config struct {
	Epochs    int
	BatchSize int
}

// Trainer drives one model through training and evaluation. Strictly
// sequential: preprocessing, then training, then evaluation, with the
// parameter set as the sole mutable state, touched only by the
// optimizer between batches.
type Trainer struct {
	Model *model.HSN
	Opt   optim.Optimizer
	Sched optim.Schedule
	RNG   *rand.Rand
	Out   io.Writer // progress destination; io.Discard silences
}

// Run trains for exactly cfg.Epochs epochs. The schedule is consulted
// at the start of each epoch; any failure is fatal to the run.
func (t *Trainer) Run(train *dataset.Dataset, cfg Config) error {
	if cfg.Epochs < 1 {
		return fmt.Errorf("train: need at least 1 epoch, got %d", cfg.Epochs)
	}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		t.Opt.SetLR(t.Sched(epoch))

		var epochLoss float64
		batches := dataset.Batches(train.Samples, cfg.BatchSize, true, t.RNG)
		for _, batch := range batches {
			t.Opt.ZeroGrad()
			scale := 1 / float32(len(batch))
			for _, s := range batch {
				logp, err := t.Model.Forward(s, hsn.Train)
				if err != nil {
					return err
				}
				loss, grad := hsn.NLLLoss(logp, train.NumNodes(), t.Model.NumNodes(), s.Label)
				// Average the batch by scaling each sample's
				// gradient before accumulation.
				if len(batch) > 1 {
					for i := range grad {
						grad[i] *= scale
					}
				}
				t.Model.Backward(grad)
				epochLoss += float64(loss) / float64(len(batch))
			}
			t.Opt.Step()
		}

		fmt.Fprintf(t.Out, "Epoch %3d/%d: lr=%.4g loss=%.4f\n",
			epoch+1, cfg.Epochs, t.Opt.LR(), epochLoss/float64(len(batches)))
	}
	return nil
}

// Evaluate runs a single inference pass over the test set and returns
// accuracy = correct / (samples * vertices) against the identity
// correspondence target.
func (t *Trainer) Evaluate(test *dataset.Dataset) (float64, error) {
	correct, total := 0, 0
	for _, s := range test.Samples {
		logp, err := t.Model.Forward(s, hsn.Eval)
		if err != nil {
			return 0, err
		}
		pred := hsn.Argmax(logp, test.NumNodes(), t.Model.NumNodes())
		for v, p := range pred {
			if p == s.Label[v] {
				correct++
			}
			total++
		}
	}
	return float64(correct) / float64(total), nil
}
