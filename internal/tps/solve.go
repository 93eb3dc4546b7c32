package tps

import (
	"fmt"

	"github.com/yyyoichi/warptps/internal/matrix"
	"github.com/yyyoichi/warptps/internal/vector"
)

// MinLandmarks is the smallest landmark count with a defined solution.
const MinLandmarks = 3

// Method selects how the system matrix is inverted.
type Method int

const (
	GaussJordanPartial Method = iota
	GaussJordanFull
	Pseudoinverse
)

// InvertSystem builds and inverts the system matrix for src.
func InvertSystem(src []vector.Vec3, k Kernel, method Method) (*matrix.Matrix, error) {
	if len(src) < MinLandmarks {
		return nil, fmt.Errorf("%d landmarks", len(src))
	}
	l := System(src, k)
	switch method {
	case GaussJordanFull:
		return l.Invert(matrix.FullPivot)
	case Pseudoinverse:
		return l.Pseudoinvert()
	default:
		return l.Invert(matrix.PartialPivot)
	}
}

// Solution holds solved weights and everything needed to evaluate the
// unscaled offset at any position.
type Solution struct {
	Kernel Kernel
	Src    []vector.Vec3
	Wx, Wy []float64
}

// Solve computes the weights Wx = L⁻¹·Hx and Wy = L⁻¹·Hy.
func Solve(lInv *matrix.Matrix, src, dst []vector.Vec3, k Kernel) (*Solution, error) {
	wx, err := matrix.MulVec(lInv, Heights(src, dst, 0))
	if err != nil {
		return nil, err
	}
	wy, err := matrix.MulVec(lInv, Heights(src, dst, 1))
	if err != nil {
		return nil, err
	}
	s := &Solution{
		Kernel: k,
		Src:    make([]vector.Vec3, len(src)),
		Wx:     wx.Slice(),
		Wy:     wy.Slice(),
	}
	copy(s.Src, src)
	return s, nil
}

// Offset returns the displacement at pos at full strength.
// A nil Solution displaces nothing.
func (s *Solution) Offset(pos vector.Vec3) (dx, dy float64) {
	if s == nil {
		return 0, 0
	}
	n := len(s.Src)
	for i, p := range s.Src {
		u := s.Kernel.U(pos.Sub(p).Len())
		dx += u * s.Wx[i]
		dy += u * s.Wy[i]
	}
	x, y := pos.X(), pos.Y()
	dx += s.Wx[n] + s.Wx[n+1]*x + s.Wx[n+2]*y
	dy += s.Wy[n] + s.Wy[n+1]*x + s.Wy[n+2]*y
	return dx, dy
}
