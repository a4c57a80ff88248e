// Package model assembles the fixed-topology Harmonic Surface Network
// for dense shape correspondence: an encoder stack at the finest
// scale, a parallel-transport pooling step, a bottleneck of four
// residual blocks at the coarse scale, unpooling with a skip
// concatenation, a decoder stack, and a rotation-invariant
// classification head over the reference vertices.
package model

import (
	"fmt"
	"math/rand"

	"github.com/PeterZhouSZ/hsn/internal/field"
	"github.com/PeterZhouSZ/hsn/internal/hsn"
	"github.com/PeterZhouSZ/hsn/internal/parallel"
	"github.com/PeterZhouSZ/hsn/internal/transform"
)

// Config fixes the architecture hyperparameters. The zero value is not
// usable; call DefaultConfig.
type Config struct {
	MaxOrder   int        // rotation-order truncation
	NRings     int        // radial basis resolution
	NF         [2]int     // channel widths per stack (fine, coarse)
	Radii      [2]float64 // per-scale neighborhood radius
	HeadHidden int        // hidden width of the classification head
	Dropout    float32
}

// DefaultConfig returns the published experiment configuration.
func DefaultConfig() Config {
	return Config{
		MaxOrder:   1,
		NRings:     2,
		NF:         [2]int{32, 64},
		Radii:      [2]float64{0.05, 0.1},
		HeadHidden: 256,
		Dropout:    0.5,
	}
}

// HSN is the full network. One instance serves one forward/backward
// pass at a time; the training loop is strictly sequential, so no
// internal locking is needed.
type HSN struct {
	cfg      Config
	numNodes int

	lift       *hsn.Lift
	enc1, enc2 *hsn.ResNetBlock
	pool       *hsn.ParallelTransportPool
	bottleneck [4]*hsn.ResNetBlock
	unpool     *hsn.ParallelTransportUnpool
	dec1, dec2 *hsn.ResNetBlock
	head       *hsn.InvariantHead

	op0, op1 *transform.ScaleOperator

	// skip connection cache for the backward pass
	prepool *field.Field
}

// New constructs the network. numNodes is the dataset's fixed vertex
// count and sizes the head's output distribution.
func New(cfg Config, numNodes int, rng *rand.Rand) *HSN {
	nf0, nf1 := cfg.NF[0], cfg.NF[1]
	orders := cfg.MaxOrder + 1
	m := &HSN{
		cfg:      cfg,
		numNodes: numNodes,
		lift:     hsn.NewLift("lift", nf0, rng),
		// The first encoder block accepts the pure order-0 lifted
		// stream; the second takes the full multi-order output.
		enc1:   hsn.NewResNetBlock("enc1", nf0, nf0, 1, cfg.NRings, cfg.MaxOrder, false, rng),
		enc2:   hsn.NewResNetBlock("enc2", nf0, nf0, orders, cfg.NRings, cfg.MaxOrder, false, rng),
		pool:   &hsn.ParallelTransportPool{},
		unpool: &hsn.ParallelTransportUnpool{},
		// Decoder block 1 absorbs the skip concatenation's doubled
		// width; block 2 is the architecture's last layer and keeps
		// its streams linear for the magnitude reduction.
		dec1: hsn.NewResNetBlock("dec1", 2*nf0, nf0, orders, cfg.NRings, cfg.MaxOrder, false, rng),
		dec2: hsn.NewResNetBlock("dec2", nf0, nf0, orders, cfg.NRings, cfg.MaxOrder, true, rng),
		head: hsn.NewInvariantHead("head", nf0, cfg.HeadHidden, numNodes, cfg.Dropout, rng),
		op0:  &transform.ScaleOperator{Scale: 0, NRings: cfg.NRings, Radius: cfg.Radii[0], Par: parallel.DefaultConfig()},
		op1:  &transform.ScaleOperator{Scale: 1, NRings: cfg.NRings, Radius: cfg.Radii[1], Par: parallel.DefaultConfig()},
	}
	m.bottleneck[0] = hsn.NewResNetBlock("btl1", nf0, nf1, orders, cfg.NRings, cfg.MaxOrder, false, rng)
	for i := 1; i < 4; i++ {
		m.bottleneck[i] = hsn.NewResNetBlock(fmt.Sprintf("btl%d", i+1), nf1, nf1, orders, cfg.NRings, cfg.MaxOrder, false, rng)
	}
	return m
}

// Parameters returns every trainable parameter, encoder to head.
func (m *HSN) Parameters() []*hsn.Parameter {
	mods := []hsn.Module{m.lift, m.enc1, m.enc2}
	for _, b := range m.bottleneck {
		mods = append(mods, b)
	}
	mods = append(mods, m.dec1, m.dec2, m.head)
	var params []*hsn.Parameter
	for _, mod := range mods {
		params = append(params, mod.Parameters()...)
	}
	return params
}

// NumNodes returns the head's output distribution size.
func (m *HSN) NumNodes() int { return m.numNodes }

// Forward runs one sample through the network and returns vertex-major
// log-probabilities over the reference vertices.
func (m *HSN) Forward(s *transform.Sample, mode hsn.Mode) ([]float32, error) {
	if len(s.Scales) < 2 || len(s.Pools) < 1 {
		return nil, fmt.Errorf("model: sample has %d scales and %d pool maps, need 2 and 1", len(s.Scales), len(s.Pools))
	}
	if v := s.Mesh.NumVertices(); v != m.numNodes {
		return nil, fmt.Errorf("model: sample has %d vertices, head is sized for %d", v, m.numNodes)
	}

	sd0, err := m.op0.Apply(s)
	if err != nil {
		return nil, fmt.Errorf("model: scale-0 operator: %w", err)
	}
	sd1, err := m.op1.Apply(s)
	if err != nil {
		return nil, fmt.Errorf("model: scale-1 operator: %w", err)
	}

	x := m.lift.Forward(s.Mesh.Pos)
	x = m.enc1.Forward(x, sd0)
	x = m.enc2.Forward(x, sd0)
	m.prepool = x

	pooled, st := m.pool.Forward(x, &s.Pools[0])
	for _, b := range m.bottleneck {
		pooled = b.Forward(pooled, sd1)
	}
	up := m.unpool.Forward(pooled, st)

	// Skip connection: concatenate, never sum, doubling dec1's input
	// width.
	x = field.Concat(up, m.prepool)
	x = m.dec1.Forward(x, sd0)
	x = m.dec2.Forward(x, sd0)

	return m.head.Forward(x, mode), nil
}

// Backward accumulates parameter gradients from dL/dlogp. Must follow
// a Forward on the same sample.
func (m *HSN) Backward(gradLogp []float32) {
	g := m.head.Backward(gradLogp)
	g = m.dec2.Backward(g)
	g = m.dec1.Backward(g)

	gup, gskip := field.Split(g, m.cfg.NF[0])
	gPooled := m.unpool.Backward(gup)
	for i := len(m.bottleneck) - 1; i >= 0; i-- {
		gPooled = m.bottleneck[i].Backward(gPooled)
	}
	gPre := m.pool.Backward(gPooled)
	field.AccumAdd(gPre, gskip)

	gPre = m.enc2.Backward(gPre)
	gPre = m.enc1.Backward(gPre)
	m.lift.Backward(gPre)
}
