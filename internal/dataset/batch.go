package dataset

import (
	"math/rand"

	"github.com/PeterZhouSZ/hsn/internal/transform"
)

// Batches partitions samples into batches of at most batchSize,
// optionally shuffling first. Meshes keep their full graphs, so a
// batch is simply a slice of samples processed with gradient
// accumulation before one optimizer step.
func Batches(samples []*transform.Sample, batchSize int, shuffle bool, rng *rand.Rand) [][]*transform.Sample {
	if batchSize < 1 {
		batchSize = 1
	}
	order := make([]*transform.Sample, len(samples))
	copy(order, samples)
	if shuffle {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	var batches [][]*transform.Sample
	for start := 0; start < len(order); start += batchSize {
		end := start + batchSize
		if end > len(order) {
			end = len(order)
		}
		batches = append(batches, order[start:end])
	}
	return batches
}
