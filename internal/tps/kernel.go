package tps

import (
	"math"

	"github.com/yyyoichi/warptps/internal/matrix"
	"github.com/yyyoichi/warptps/internal/vector"
)

// Kernel is the radial basis U(r) = Scale · r^Exp · ln r.
type Kernel struct {
	Exp   float64
	Scale float64
}

var DefaultKernel = Kernel{Exp: 2.0, Scale: 1.0}

// U evaluates the kernel. U(0) is 0.
func (k Kernel) U(r float64) float64 {
	if r <= 0 {
		return 0
	}
	return k.Scale * math.Pow(r, k.Exp) * math.Log(r)
}

// System builds the (n+3) x (n+3) TPS matrix
//
//	| K   P |
//	| Pᵗ  0 |
//
// where K[i][j] = U(|p_i - p_j|) and P[i] = (1, x_i, y_i).
func System(src []vector.Vec3, k Kernel) *matrix.Matrix {
	n := len(src)
	return matrix.NewFunc(n+3, n+3, func(r, c int) float64 {
		switch {
		case r < n && c < n:
			if r == c {
				return 0
			}
			return k.U(src[r].Sub(src[c]).Len())
		case r < n:
			return affine(src[r], c-n)
		case c < n:
			return affine(src[c], r-n)
		default:
			return 0
		}
	})
}

func affine(p vector.Vec3, i int) float64 {
	switch i {
	case 0:
		return 1
	case 1:
		return p.X()
	default:
		return p.Y()
	}
}

// Heights returns the right-hand side for one axis: dst-src per landmark,
// followed by three zeros for the affine terms.
func Heights(src, dst []vector.Vec3, axis int) vector.N {
	h := make([]float64, len(src)+3)
	for i := range src {
		a, _ := dst[i].At(axis)
		b, _ := src[i].At(axis)
		h[i] = a - b
	}
	return vector.FromSlice(h)
}
