package warptps

import (
	"fmt"
	"math"

	"github.com/yyyoichi/warptps/internal/tps"
)

type Option func(*Transform) error

func checkKernel(name string, x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Errorf("%w: %s %v", ErrInvalidKernel, name, x)
	}
	return nil
}

// Solver selects how the landmark system is inverted.
type Solver int

const (
	// SolverPartialPivot is Gauss-Jordan elimination with row pivoting.
	SolverPartialPivot Solver = iota
	// SolverFullPivot is Gauss-Jordan elimination with row and column pivoting.
	SolverFullPivot
	// SolverPseudoinverse inverts through the singular value decomposition.
	// Singular values below 1e-8 are dropped, so degenerate landmark
	// configurations yield a least-squares solution instead of an error.
	SolverPseudoinverse
)

var solverNames = [...]string{"partial", "full", "pinv"}

func (s Solver) String() string {
	if s < 0 || int(s) >= len(solverNames) {
		return fmt.Sprintf("Solver(%d)", int(s))
	}
	return solverNames[s]
}

// ParseSolver accepts "partial", "full" or "pinv". The empty string is
// SolverPartialPivot.
func ParseSolver(name string) (Solver, error) {
	if name == "" {
		return SolverPartialPivot, nil
	}
	for i, n := range solverNames {
		if n == name {
			return Solver(i), nil
		}
	}
	return 0, fmt.Errorf("unknown solver %q", name)
}

// WithKernelExponent sets r_exp in U(r) = k · r^r_exp · ln r. The default is 2.
func WithKernelExponent(r float64) Option {
	return func(t *Transform) error {
		if err := checkKernel("exponent", r); err != nil {
			return err
		}
		t.kernel.Exp = r
		return nil
	}
}

// WithKernelScale sets k in U(r) = k · r^r_exp · ln r. The default is 1.
func WithKernelScale(k float64) Option {
	return func(t *Transform) error {
		if err := checkKernel("scale", k); err != nil {
			return err
		}
		t.kernel.Scale = k
		return nil
	}
}

func WithSolver(s Solver) Option {
	return func(t *Transform) error {
		switch s {
		case SolverPartialPivot:
			t.method = tps.GaussJordanPartial
		case SolverFullPivot:
			t.method = tps.GaussJordanFull
		case SolverPseudoinverse:
			t.method = tps.Pseudoinverse
		default:
			return fmt.Errorf("unknown solver %d", s)
		}
		return nil
	}
}

// WithLandmarks adds the landmarks in order.
func WithLandmarks(ls []Landmark) Option {
	return func(t *Transform) error {
		t.AddLandmarks(ls)
		return nil
	}
}
