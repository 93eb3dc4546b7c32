package vector

import (
	"fmt"
	"math"
)

// N is a vector whose dimension is chosen at run time. Every N owns its
// buffer: constructors and Clone copy, and accessors never expose it.
type N struct {
	e []float64
}

func NewN(dim int) N {
	return N{e: make([]float64, dim)}
}

// FromSlice copies xs into a new vector.
func FromSlice(xs []float64) N {
	e := make([]float64, len(xs))
	copy(e, xs)
	return N{e: e}
}

func (v N) Dim() int {
	return len(v.e)
}

func (v N) At(i int) (float64, error) {
	if i < 0 || i >= len(v.e) {
		return 0, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(v.e))
	}
	return v.e[i], nil
}

func (v *N) Set(i int, x float64) error {
	if i < 0 || i >= len(v.e) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(v.e))
	}
	v.e[i] = x
	return nil
}

// Resize changes the dimension, keeping the leading elements and
// zero-filling new ones.
func (v *N) Resize(dim int) {
	if dim <= cap(v.e) {
		old := len(v.e)
		v.e = v.e[:dim]
		for i := old; i < dim; i++ {
			v.e[i] = 0
		}
		return
	}
	e := make([]float64, dim)
	copy(e, v.e)
	v.e = e
}

// Assign replaces v with a copy of src, adopting its dimension.
func (v *N) Assign(src N) {
	v.e = append(v.e[:0], src.e...)
}

func (v N) Clone() N {
	return FromSlice(v.e)
}

func (v N) Slice() []float64 {
	return FromSlice(v.e).e
}

func (v N) Add(w N) (N, error) {
	if len(v.e) != len(w.e) {
		return N{}, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(v.e), len(w.e))
	}
	out := v.Clone()
	for i := range out.e {
		out.e[i] += w.e[i]
	}
	return out, nil
}

func (v N) Sub(w N) (N, error) {
	if len(v.e) != len(w.e) {
		return N{}, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(v.e), len(w.e))
	}
	out := v.Clone()
	for i := range out.e {
		out.e[i] -= w.e[i]
	}
	return out, nil
}

func (v N) Scale(s float64) N {
	out := v.Clone()
	for i := range out.e {
		out.e[i] *= s
	}
	return out
}

func (v N) Dot(w N) (float64, error) {
	if len(v.e) != len(w.e) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(v.e), len(w.e))
	}
	var sum float64
	for i := range v.e {
		sum += v.e[i] * w.e[i]
	}
	return sum, nil
}

func (v N) Len() float64 {
	var sum float64
	for _, x := range v.e {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func (v N) Normalize() N {
	l := v.Len()
	if l == 0 {
		return v.Clone()
	}
	return v.Scale(1 / l)
}

// Equal reports exact equality. Vectors of different dimension are not equal.
func (v N) Equal(w N) bool {
	if len(v.e) != len(w.e) {
		return false
	}
	for i := range v.e {
		if v.e[i] != w.e[i] {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether the length of v-w is below eps. Vectors of
// different dimension are never approximately equal.
func (v N) ApproxEqual(w N, eps float64) bool {
	d, err := v.Sub(w)
	if err != nil {
		return false
	}
	return d.Len() < eps
}

func (v N) String() string {
	return fmt.Sprint(v.e)
}
