package hsn

import (
	"fmt"
	"math/rand"

	"github.com/PeterZhouSZ/hsn/internal/field"
	"github.com/PeterZhouSZ/hsn/internal/parallel"
	"github.com/PeterZhouSZ/hsn/internal/transform"
)

// HarmonicConv is the rotation-equivariant surface convolution. For
// every incoming edge e = (i <- j) a precomputed radial profile
// Precomp[e], log-map rotation Rot[e] and parallel transport Conn[e]
// combine with a learned complex kernel K indexed by
// (order-in, order-out, ring, channel-in, channel-out):
//
//	y[i, mo] += sum_{mi, r} K[mi, mo, r] * Precomp[e][r]
//	            * Rot[e]^(mo-mi) * Conn[e]^mi * x[j, mi]
//
// The transport factor re-expresses x in the target's tangent frame
// and the angular factor Rot^(mo-mi) makes the output stream transform
// with rotation order mo, so equivariance holds by construction.
// Rotation offsets beyond the configured truncation are simply absent:
// outputs carry orders 0..maxOrder only.
type HarmonicConv struct {
	inCh, outCh        int
	inOrders, maxOrder int
	nRings             int
	weight             *Parameter // [inOrders, outOrders, nRings, inCh, outCh, 2]
	par                parallel.Config

	// cached for backward
	x  *field.Field
	sd *transform.ScaleData
}

// NewHarmonicConv creates a harmonic convolution. inOrders is the
// number of order streams on the input (1 for a freshly lifted order-0
// field); outputs always carry maxOrder+1 streams.
func NewHarmonicConv(name string, inCh, outCh, inOrders, nRings, maxOrder int, rng *rand.Rand) *HarmonicConv {
	c := &HarmonicConv{
		inCh:     inCh,
		outCh:    outCh,
		inOrders: inOrders,
		maxOrder: maxOrder,
		nRings:   nRings,
		weight:   NewParameter(name+".weight", inOrders, maxOrder+1, nRings, inCh, outCh, 2),
		par:      parallel.DefaultConfig(),
	}
	// Fan counts ignore the complex pair: each output value sums
	// inOrders*nRings*inCh complex products.
	XavierUniform(c.weight, inOrders*nRings*inCh, (maxOrder+1)*nRings*outCh, rng)
	return c
}

// Parameters returns the kernel.
func (c *HarmonicConv) Parameters() []*Parameter { return []*Parameter{c.weight} }

// OutOrders returns the number of output order streams.
func (c *HarmonicConv) OutOrders() int { return c.maxOrder + 1 }

func (c *HarmonicConv) kernelAt(w []float32, mi, mo, r, ci, co int) complex64 {
	idx := ((((mi*(c.maxOrder+1)+mo)*c.nRings+r)*c.inCh+ci)*c.outCh + co) * 2
	return complex(w[idx], w[idx+1])
}

// Forward convolves x over the scale's edges.
func (c *HarmonicConv) Forward(x *field.Field, sd *transform.ScaleData) *field.Field {
	if x.Orders() != c.inOrders || x.Channels() != c.inCh {
		panic(fmt.Sprintf("hsn: HarmonicConv.Forward: input %s, want orders=%d channels=%d", x, c.inOrders, c.inCh))
	}
	if x.Verts() != sd.Verts {
		panic(fmt.Sprintf("hsn: HarmonicConv.Forward: input has %d vertices, operator data has %d", x.Verts(), sd.Verts))
	}
	c.x = x
	c.sd = sd

	out := field.New(x.Verts(), c.maxOrder+1, c.outCh)
	w := c.weight.Data()
	u := x.Data()
	y := out.Data()

	// Edges are CSR-grouped by target, so parallelizing over targets
	// writes disjoint output rows.
	parallel.For(sd.Verts, func(t int) {
		for e := sd.RowPtr[t]; e < sd.RowPtr[t+1]; e++ {
			j := int(sd.Sources[e])
			for mi := 0; mi < c.inOrders; mi++ {
				transport := unitPow(sd.Conn[e], mi)
				xrow := u[(j*c.inOrders+mi)*c.inCh : (j*c.inOrders+mi+1)*c.inCh]
				for mo := 0; mo <= c.maxOrder; mo++ {
					angular := unitPow(sd.Rot[e], mo-mi)
					twist := angular * transport
					yrow := y[(t*(c.maxOrder+1)+mo)*c.outCh : (t*(c.maxOrder+1)+mo+1)*c.outCh]
					for r := 0; r < c.nRings; r++ {
						wr := sd.Precomp[e][r]
						if wr == 0 {
							continue
						}
						f := twist * complex(wr, 0)
						for ci := 0; ci < c.inCh; ci++ {
							v := f * xrow[ci]
							if v == 0 {
								continue
							}
							for co := 0; co < c.outCh; co++ {
								yrow[co] += c.kernelAt(w, mi, mo, r, ci, co) * v
							}
						}
					}
				}
			}
		}
	}, c.par)
	return out
}

// Backward accumulates the kernel gradient and returns dL/dx. Runs
// serially: the input gradient scatters across source vertices shared
// by many targets.
func (c *HarmonicConv) Backward(grad *field.Field) *field.Field {
	if c.x == nil {
		panic("hsn: HarmonicConv.Backward before Forward")
	}
	if grad.Verts() != c.x.Verts() || grad.Orders() != c.maxOrder+1 || grad.Channels() != c.outCh {
		panic(fmt.Sprintf("hsn: HarmonicConv.Backward: gradient %s, want [%d x %d x %d]",
			grad, c.x.Verts(), c.maxOrder+1, c.outCh))
	}
	sd := c.sd
	w := c.weight.Data()
	gw := c.weight.Grad()
	u := c.x.Data()
	g := grad.Data()

	gx := field.New(c.x.Verts(), c.inOrders, c.inCh)
	gu := gx.Data()

	for t := 0; t < sd.Verts; t++ {
		for e := sd.RowPtr[t]; e < sd.RowPtr[t+1]; e++ {
			j := int(sd.Sources[e])
			for mi := 0; mi < c.inOrders; mi++ {
				transport := unitPow(sd.Conn[e], mi)
				xrow := u[(j*c.inOrders+mi)*c.inCh : (j*c.inOrders+mi+1)*c.inCh]
				gxrow := gu[(j*c.inOrders+mi)*c.inCh : (j*c.inOrders+mi+1)*c.inCh]
				for mo := 0; mo <= c.maxOrder; mo++ {
					angular := unitPow(sd.Rot[e], mo-mi)
					twist := angular * transport
					grow := g[(t*(c.maxOrder+1)+mo)*c.outCh : (t*(c.maxOrder+1)+mo+1)*c.outCh]
					for r := 0; r < c.nRings; r++ {
						wr := sd.Precomp[e][r]
						if wr == 0 {
							continue
						}
						f := twist * complex(wr, 0)
						fconj := conj64(f)
						for ci := 0; ci < c.inCh; ci++ {
							v := f * xrow[ci]
							vconj := conj64(v)
							base := ((((mi*(c.maxOrder+1)+mo)*c.nRings+r)*c.inCh + ci) * c.outCh) * 2
							for co := 0; co < c.outCh; co++ {
								gc := grow[co]
								if gc == 0 {
									continue
								}
								// dL/dK = conj(f*x) * G
								kg := vconj * gc
								gw[base+co*2] += real(kg)
								gw[base+co*2+1] += imag(kg)
								// dL/dx = conj(K*f) * G
								k := c.kernelAt(w, mi, mo, r, ci, co)
								gxrow[ci] += conj64(k) * fconj * gc
							}
						}
					}
				}
			}
		}
	}
	return gx
}
