package vector

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrOutOfRange        = errors.New("vector: index out of range")
	ErrDimensionMismatch = errors.New("vector: dimension mismatch")
)

// Array is the backing storage of a fixed-dimension vector.
type Array interface {
	[2]float64 | [3]float64 | [4]float64
}

// Vec is a fixed-dimension vector. The zero value is the zero vector.
type Vec[A Array] struct {
	e A
}

type (
	Vec2 = Vec[[2]float64]
	Vec3 = Vec[[3]float64]
	Vec4 = Vec[[4]float64]
)

func New2(x, y float64) Vec2 {
	return Vec2{e: [2]float64{x, y}}
}

func New3(x, y, z float64) Vec3 {
	return Vec3{e: [3]float64{x, y, z}}
}

func New4(x, y, z, w float64) Vec4 {
	return Vec4{e: [4]float64{x, y, z, w}}
}

// Of wraps an array.
func Of[A Array](e A) Vec[A] {
	return Vec[A]{e: e}
}

func (v Vec[A]) Dim() int {
	return len(v.e)
}

func (v Vec[A]) At(i int) (float64, error) {
	if i < 0 || i >= len(v.e) {
		return 0, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(v.e))
	}
	return v.e[i], nil
}

func (v *Vec[A]) Set(i int, x float64) error {
	if i < 0 || i >= len(v.e) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(v.e))
	}
	v.e[i] = x
	return nil
}

func (v Vec[A]) X() float64 { return v.e[0] }
func (v Vec[A]) Y() float64 { return v.e[1] }

// Array returns a copy of the elements.
func (v Vec[A]) Array() A {
	return v.e
}

func (v Vec[A]) Slice() []float64 {
	out := make([]float64, len(v.e))
	for i := 0; i < len(v.e); i++ {
		out[i] = v.e[i]
	}
	return out
}

func (v Vec[A]) Add(w Vec[A]) Vec[A] {
	for i := 0; i < len(v.e); i++ {
		v.e[i] += w.e[i]
	}
	return v
}

func (v Vec[A]) Sub(w Vec[A]) Vec[A] {
	for i := 0; i < len(v.e); i++ {
		v.e[i] -= w.e[i]
	}
	return v
}

func (v Vec[A]) Scale(s float64) Vec[A] {
	for i := 0; i < len(v.e); i++ {
		v.e[i] *= s
	}
	return v
}

func (v Vec[A]) Dot(w Vec[A]) float64 {
	var sum float64
	for i := 0; i < len(v.e); i++ {
		sum += v.e[i] * w.e[i]
	}
	return sum
}

// Len returns the Euclidean length.
func (v Vec[A]) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize scales v to unit length. The zero vector is left unchanged.
func (v Vec[A]) Normalize() Vec[A] {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

func (v Vec[A]) Equal(w Vec[A]) bool {
	for i := 0; i < len(v.e); i++ {
		if v.e[i] != w.e[i] {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether the length of v-w is below eps.
func (v Vec[A]) ApproxEqual(w Vec[A], eps float64) bool {
	return v.Sub(w).Len() < eps
}

// N converts v into a dynamic vector.
func (v Vec[A]) N() N {
	return N{e: v.Slice()}
}

// Assign copies src into a fixed vector, truncating extra elements and
// zero-filling missing ones.
func Assign[A Array](src []float64) Vec[A] {
	var v Vec[A]
	for i := 0; i < len(v.e) && i < len(src); i++ {
		v.e[i] = src[i]
	}
	return v
}

// Cross2 returns the z component of the cross product of two planar vectors.
func Cross2(a, b Vec2) float64 {
	return a.e[0]*b.e[1] - a.e[1]*b.e[0]
}

func Cross3(a, b Vec3) Vec3 {
	return New3(
		a.e[1]*b.e[2]-a.e[2]*b.e[1],
		a.e[2]*b.e[0]-a.e[0]*b.e[2],
		a.e[0]*b.e[1]-a.e[1]*b.e[0],
	)
}

func (v Vec[A]) String() string {
	return fmt.Sprint(v.Slice())
}
