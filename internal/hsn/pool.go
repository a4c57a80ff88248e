package hsn

import (
	"fmt"
	"math/cmplx"

	"github.com/PeterZhouSZ/hsn/internal/field"
	"github.com/PeterZhouSZ/hsn/internal/transform"
)

// PoolState is the explicit handoff object between a pooling layer and
// its matched unpooling layer. It is produced by one Forward of
// ParallelTransportPool, owns the cluster geometry of that pass, and
// must be consumed by exactly one ParallelTransportUnpool.Forward in
// the same forward pass. Consuming it twice panics: the pairing is a
// correctness invariant, not something re-derivable later.
type PoolState struct {
	cluster  []int32
	rot      []complex64 // e^{i*angle} per fine vertex
	counts   []float32   // fine vertices per cluster
	fine     int
	coarse   int
	orders   int
	channels int
	consumed bool
}

// ParallelTransportPool reduces a fine-scale field to the next coarser
// scale: each coarse vertex averages the features of its cluster, with
// order-m streams rotated by e^{i*m*angle} so directional features are
// expressed in the representative's tangent frame before averaging.
// Order-0 streams are untouched by the transport, so a constant scalar
// field pools to the same constant.
type ParallelTransportPool struct {
	st *PoolState
}

// Parameters returns nil; pooling is a fixed geometric rule.
func (p *ParallelTransportPool) Parameters() []*Parameter { return nil }

// Forward pools x using the precomputed cluster assignment and returns
// the coarse field together with the pooling state the matching
// unpooling layer needs.
func (p *ParallelTransportPool) Forward(x *field.Field, pg *transform.PoolGraph) (*field.Field, *PoolState) {
	if x.Verts() != len(pg.Cluster) {
		panic(fmt.Sprintf("hsn: ParallelTransportPool.Forward: %s vs %d cluster entries", x, len(pg.Cluster)))
	}
	st := &PoolState{
		cluster:  pg.Cluster,
		rot:      make([]complex64, len(pg.Cluster)),
		counts:   make([]float32, pg.Coarse),
		fine:     x.Verts(),
		coarse:   pg.Coarse,
		orders:   x.Orders(),
		channels: x.Channels(),
	}
	for v, k := range pg.Cluster {
		st.rot[v] = complex64(cmplx.Exp(complex(0, float64(pg.Angle[v]))))
		st.counts[k]++
	}

	out := field.New(pg.Coarse, x.Orders(), x.Channels())
	for v := 0; v < x.Verts(); v++ {
		k := int(pg.Cluster[v])
		inv := 1 / st.counts[k]
		for m := 0; m < x.Orders(); m++ {
			rot := unitPow(st.rot[v], m) * complex(inv, 0)
			for c := 0; c < x.Channels(); c++ {
				out.Set(k, m, c, out.At(k, m, c)+rot*x.At(v, m, c))
			}
		}
	}
	p.st = st
	return out, st
}

// Backward routes the coarse gradient back to the fine vertices.
func (p *ParallelTransportPool) Backward(grad *field.Field) *field.Field {
	st := p.st
	if st == nil {
		panic("hsn: ParallelTransportPool.Backward before Forward")
	}
	out := field.New(st.fine, st.orders, st.channels)
	for v := 0; v < st.fine; v++ {
		k := int(st.cluster[v])
		inv := 1 / st.counts[k]
		for m := 0; m < st.orders; m++ {
			rot := unitPow(conj64(st.rot[v]), m) * complex(inv, 0)
			for c := 0; c < st.channels; c++ {
				out.Set(v, m, c, rot*grad.At(k, m, c))
			}
		}
	}
	return out
}

// ParallelTransportUnpool inverts the pooling's vertex mapping: each
// fine vertex receives its cluster representative's feature with the
// transport rotation undone.
type ParallelTransportUnpool struct {
	st *PoolState
}

// Parameters returns nil; unpooling is a fixed geometric rule.
func (u *ParallelTransportUnpool) Parameters() []*Parameter { return nil }

// Forward broadcasts the coarse field back to fine resolution using
// the state produced by the paired pooling layer in this forward pass.
func (u *ParallelTransportUnpool) Forward(x *field.Field, st *PoolState) *field.Field {
	if st.consumed {
		panic("hsn: pooling state consumed twice; each PoolState pairs one pool with one unpool per forward pass")
	}
	st.consumed = true
	if x.Verts() != st.coarse || x.Orders() != st.orders || x.Channels() != st.channels {
		panic(fmt.Sprintf("hsn: ParallelTransportUnpool.Forward: %s does not match pooling state [%d x %d x %d]",
			x, st.coarse, st.orders, st.channels))
	}
	u.st = st

	out := field.New(st.fine, st.orders, st.channels)
	for v := 0; v < st.fine; v++ {
		k := int(st.cluster[v])
		for m := 0; m < st.orders; m++ {
			rot := unitPow(conj64(st.rot[v]), m)
			for c := 0; c < st.channels; c++ {
				out.Set(v, m, c, rot*x.At(k, m, c))
			}
		}
	}
	return out
}

// Backward gathers the fine gradient back onto the coarse vertices.
func (u *ParallelTransportUnpool) Backward(grad *field.Field) *field.Field {
	st := u.st
	if st == nil {
		panic("hsn: ParallelTransportUnpool.Backward before Forward")
	}
	out := field.New(st.coarse, st.orders, st.channels)
	for v := 0; v < st.fine; v++ {
		k := int(st.cluster[v])
		for m := 0; m < st.orders; m++ {
			rot := unitPow(st.rot[v], m)
			for c := 0; c < st.channels; c++ {
				out.Set(k, m, c, out.At(k, m, c)+rot*grad.At(v, m, c))
			}
		}
	}
	return out
}
