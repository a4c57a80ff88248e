package hsn

import (
	"math/rand"

	"github.com/PeterZhouSZ/hsn/internal/field"
	"github.com/PeterZhouSZ/hsn/internal/transform"
)

// ResNetBlock is one equivariant residual block:
//
//	y = nonlin(conv2(nonlin(conv1(x))) + shortcut(x))
//
// The shortcut is the identity (with order padding) when the input and
// output widths match, and a ComplexLinear channel mixer otherwise.
// A block marked Last suppresses the outer nonlinearity: the network's
// final block feeds the magnitude reduction, which needs the raw
// streams.
type ResNetBlock struct {
	conv1, conv2 *HarmonicConv
	nl1, nl2     *MagnitudeNonlin
	shortcut     *ComplexLinear // nil when widths match

	inOrders, outOrders int
	last                bool

	x *field.Field
}

// NewResNetBlock builds a residual block mapping inCh channels over
// inOrders streams to outCh channels over maxOrder+1 streams.
func NewResNetBlock(name string, inCh, outCh, inOrders, nRings, maxOrder int, last bool, rng *rand.Rand) *ResNetBlock {
	b := &ResNetBlock{
		conv1:     NewHarmonicConv(name+".conv1", inCh, outCh, inOrders, nRings, maxOrder, rng),
		conv2:     NewHarmonicConv(name+".conv2", outCh, outCh, maxOrder+1, nRings, maxOrder, rng),
		nl1:       NewMagnitudeNonlin(name+".nonlin1", outCh),
		inOrders:  inOrders,
		outOrders: maxOrder + 1,
		last:      last,
	}
	if !last {
		b.nl2 = NewMagnitudeNonlin(name+".nonlin2", outCh)
	}
	if inCh != outCh {
		b.shortcut = NewComplexLinear(name+".shortcut", inCh, outCh, rng)
	}
	return b
}

// Parameters returns all trainable parameters of the block.
func (b *ResNetBlock) Parameters() []*Parameter {
	params := append([]*Parameter{}, b.conv1.Parameters()...)
	params = append(params, b.conv2.Parameters()...)
	params = append(params, b.nl1.Parameters()...)
	if b.nl2 != nil {
		params = append(params, b.nl2.Parameters()...)
	}
	if b.shortcut != nil {
		params = append(params, b.shortcut.Parameters()...)
	}
	return params
}

// OutOrders returns the number of order streams the block emits.
func (b *ResNetBlock) OutOrders() int { return b.outOrders }

// Forward runs the block using the scale's operator data.
func (b *ResNetBlock) Forward(x *field.Field, sd *transform.ScaleData) *field.Field {
	b.x = x
	h := b.conv1.Forward(x, sd)
	h = b.nl1.Forward(h)
	h = b.conv2.Forward(h, sd)

	var sc *field.Field
	if b.shortcut != nil {
		sc = field.PadOrders(b.shortcut.Forward(x), b.outOrders)
	} else {
		sc = field.PadOrders(x, b.outOrders)
	}
	y := field.Add(h, sc)
	if b.last {
		return y
	}
	return b.nl2.Forward(y)
}

// Backward runs the block's adjoint and returns dL/dx.
func (b *ResNetBlock) Backward(grad *field.Field) *field.Field {
	g := grad
	if !b.last {
		g = b.nl2.Backward(g)
	}

	// Residual branch.
	gh := b.conv2.Backward(g)
	gh = b.nl1.Backward(gh)
	gx := b.conv1.Backward(gh)

	// Shortcut branch: undo the order padding, then the mixer.
	gsc := field.PadOrders(g, b.inOrders)
	if b.shortcut != nil {
		gsc = b.shortcut.Backward(gsc)
	}
	field.AccumAdd(gx, gsc)
	return gx
}
