package field

import (
	"fmt"
	"math"
)

// Add returns a + b element-wise. Shapes must match.
func Add(a, b *Field) *Field {
	if !a.SameShape(b) {
		panic(fmt.Sprintf("field.Add: shape mismatch %s vs %s", a, b))
	}
	out := New(a.verts, a.orders, a.channels)
	for i, z := range a.data {
		out.data[i] = z + b.data[i]
	}
	return out
}

// AccumAdd adds src into dst in place. Shapes must match.
func AccumAdd(dst, src *Field) {
	if !dst.SameShape(src) {
		panic(fmt.Sprintf("field.AccumAdd: shape mismatch %s vs %s", dst, src))
	}
	for i, z := range src.data {
		dst.data[i] += z
	}
}

// Scale returns s * a.
func Scale(a *Field, s float32) *Field {
	out := New(a.verts, a.orders, a.channels)
	cs := complex(s, 0)
	for i, z := range a.data {
		out.data[i] = z * cs
	}
	return out
}

// Concat concatenates a and b along the channel axis.
// Vertex and order counts must match.
func Concat(a, b *Field) *Field {
	if a.verts != b.verts || a.orders != b.orders {
		panic(fmt.Sprintf("field.Concat: incompatible shapes %s vs %s", a, b))
	}
	out := New(a.verts, a.orders, a.channels+b.channels)
	for v := 0; v < a.verts; v++ {
		for m := 0; m < a.orders; m++ {
			base := (v*out.orders + m) * out.channels
			abase := (v*a.orders + m) * a.channels
			bbase := (v*b.orders + m) * b.channels
			copy(out.data[base:base+a.channels], a.data[abase:abase+a.channels])
			copy(out.data[base+a.channels:base+out.channels], b.data[bbase:bbase+b.channels])
		}
	}
	return out
}

// Split undoes Concat: returns the first ca channels and the remaining
// channels as two fresh fields.
func Split(x *Field, ca int) (*Field, *Field) {
	if ca <= 0 || ca >= x.channels {
		panic(fmt.Sprintf("field.Split: split point %d out of range for %s", ca, x))
	}
	cb := x.channels - ca
	a := New(x.verts, x.orders, ca)
	b := New(x.verts, x.orders, cb)
	for v := 0; v < x.verts; v++ {
		for m := 0; m < x.orders; m++ {
			base := (v*x.orders + m) * x.channels
			abase := (v*a.orders + m) * ca
			bbase := (v*b.orders + m) * cb
			copy(a.data[abase:abase+ca], x.data[base:base+ca])
			copy(b.data[bbase:bbase+cb], x.data[base+ca:base+x.channels])
		}
	}
	return a, b
}

// PadOrders returns a copy of x with the order axis resized to orders.
// Missing streams are zero, surplus streams are dropped. Used by
// residual shortcuts when a block changes the number of streams.
func PadOrders(x *Field, orders int) *Field {
	if orders == x.orders {
		return x.Clone()
	}
	out := New(x.verts, orders, x.channels)
	keep := x.orders
	if orders < keep {
		keep = orders
	}
	for v := 0; v < x.verts; v++ {
		for m := 0; m < keep; m++ {
			src := (v*x.orders + m) * x.channels
			dst := (v*out.orders + m) * out.channels
			copy(out.data[dst:dst+x.channels], x.data[src:src+x.channels])
		}
	}
	return out
}

// Magnitudes reduces x to rotation-invariant per-vertex features by
// summing the complex magnitude of each channel across orders.
// The result has length Verts*Channels, vertex-major.
func Magnitudes(x *Field) []float32 {
	out := make([]float32, x.verts*x.channels)
	for v := 0; v < x.verts; v++ {
		for m := 0; m < x.orders; m++ {
			base := (v*x.orders + m) * x.channels
			for c := 0; c < x.channels; c++ {
				z := x.data[base+c]
				re := float64(real(z))
				im := float64(imag(z))
				out[v*x.channels+c] += float32(math.Sqrt(re*re + im*im))
			}
		}
	}
	return out
}

// MagnitudesBackward routes a gradient on Magnitudes(x) back to x.
// grad has length Verts*Channels. Zero-magnitude entries get zero
// gradient.
func MagnitudesBackward(x *Field, grad []float32) *Field {
	if len(grad) != x.verts*x.channels {
		panic(fmt.Sprintf("field.MagnitudesBackward: gradient length %d, want %d", len(grad), x.verts*x.channels))
	}
	out := New(x.verts, x.orders, x.channels)
	for v := 0; v < x.verts; v++ {
		for m := 0; m < x.orders; m++ {
			base := (v*x.orders + m) * x.channels
			for c := 0; c < x.channels; c++ {
				z := x.data[base+c]
				re := float64(real(z))
				im := float64(imag(z))
				s := math.Sqrt(re*re + im*im)
				if s == 0 {
					continue
				}
				g := float64(grad[v*x.channels+c]) / s
				out.data[base+c] = complex(float32(g*re), float32(g*im))
			}
		}
	}
	return out
}
