package hsn

import (
	"math"
	"math/rand"
)

// XavierUniform fills p with values drawn from
// U(-sqrt(6/(fanIn+fanOut)), +sqrt(6/(fanIn+fanOut))).
//
// The rng is threaded in explicitly so initialization is reproducible
// for a fixed seed.
func XavierUniform(p *Parameter, fanIn, fanOut int, rng *rand.Rand) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	data := p.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
}
