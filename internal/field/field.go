// Package field implements the equivariant feature tensor that flows
// through a harmonic surface network.
//
// A Field holds one complex value per (vertex, rotation order, channel)
// triple. Order 0 channels are rotation-invariant scalars; order m >= 1
// channels rotate by e^{i*m*a} when the tangent frame rotates by a.
//
// Layers never alias: every operation allocates a fresh Field, so a
// layer's cached activations stay valid for its backward pass.
package field

import "fmt"

// Field is a V x orders x channels complex feature tensor.
//
// Example:
//
//	x := field.New(6890, 2, 32) // 6890 vertices, orders 0..1, 32 channels
//	x.Set(0, 1, 3, complex(0.5, -0.5))
type Field struct {
	verts    int
	orders   int
	channels int
	data     []complex64
}

// New creates a zero-valued Field with the given dimensions.
func New(verts, orders, channels int) *Field {
	if verts < 0 || orders <= 0 || channels <= 0 {
		panic(fmt.Sprintf("field.New: invalid dimensions %d x %d x %d", verts, orders, channels))
	}
	return &Field{
		verts:    verts,
		orders:   orders,
		channels: channels,
		data:     make([]complex64, verts*orders*channels),
	}
}

// FromSlice creates a Field backed by a copy of data.
// Layout is vertex-major: data[(v*orders+m)*channels+c].
func FromSlice(data []complex64, verts, orders, channels int) (*Field, error) {
	if len(data) != verts*orders*channels {
		return nil, fmt.Errorf("field: %d x %d x %d requires %d elements, but got %d",
			verts, orders, channels, verts*orders*channels, len(data))
	}
	f := New(verts, orders, channels)
	copy(f.data, data)
	return f, nil
}

// Verts returns the number of vertices.
func (f *Field) Verts() int { return f.verts }

// Orders returns the number of rotation-order streams (orders 0..Orders-1).
func (f *Field) Orders() int { return f.orders }

// Channels returns the number of channels per stream.
func (f *Field) Channels() int { return f.channels }

// Data returns the backing slice (zero-copy).
//
// WARNING: modifications to the returned slice modify the field.
func (f *Field) Data() []complex64 { return f.data }

func (f *Field) index(v, m, c int) int {
	if v < 0 || v >= f.verts || m < 0 || m >= f.orders || c < 0 || c >= f.channels {
		panic(fmt.Sprintf("field: index (%d,%d,%d) out of bounds for %d x %d x %d",
			v, m, c, f.verts, f.orders, f.channels))
	}
	return (v*f.orders+m)*f.channels + c
}

// At returns the value at (vertex, order, channel).
func (f *Field) At(v, m, c int) complex64 {
	return f.data[f.index(v, m, c)]
}

// Set stores a value at (vertex, order, channel).
func (f *Field) Set(v, m, c int, z complex64) {
	f.data[f.index(v, m, c)] = z
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	g := New(f.verts, f.orders, f.channels)
	copy(g.data, f.data)
	return g
}

// Zero resets every element to 0. Used for gradient accumulators.
func (f *Field) Zero() {
	for i := range f.data {
		f.data[i] = 0
	}
}

// SameShape reports whether g has identical dimensions.
func (f *Field) SameShape(g *Field) bool {
	return f.verts == g.verts && f.orders == g.orders && f.channels == g.channels
}

// String returns a human-readable description.
func (f *Field) String() string {
	return fmt.Sprintf("Field[%d x %d x %d]", f.verts, f.orders, f.channels)
}
