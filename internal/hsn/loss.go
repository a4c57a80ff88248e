package hsn

import "fmt"

// NLLLoss computes the negative log-likelihood of the identity
// correspondence targets over vertex-major log-probabilities, averaged
// over vertices, and the gradient dL/dlogp.
func NLLLoss(logp []float32, verts, classes int, labels []int32) (float32, []float32) {
	if len(logp) != verts*classes {
		panic(fmt.Sprintf("hsn: NLLLoss: %d log-probs, want %d x %d", len(logp), verts, classes))
	}
	if len(labels) != verts {
		panic(fmt.Sprintf("hsn: NLLLoss: %d labels for %d vertices", len(labels), verts))
	}
	grad := make([]float32, len(logp))
	var loss float64
	inv := 1 / float32(verts)
	for v := 0; v < verts; v++ {
		t := labels[v]
		if t < 0 || int(t) >= classes {
			panic(fmt.Sprintf("hsn: NLLLoss: label %d out of range for %d classes", t, classes))
		}
		loss -= float64(logp[v*classes+int(t)])
		grad[v*classes+int(t)] = -inv
	}
	return float32(loss) * inv, grad
}

// Argmax returns the most likely class per vertex.
func Argmax(logp []float32, verts, classes int) []int32 {
	out := make([]int32, verts)
	for v := 0; v < verts; v++ {
		row := logp[v*classes : (v+1)*classes]
		best := 0
		for c := 1; c < classes; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[v] = int32(best)
	}
	return out
}
