package warptps

import (
	"errors"
	"fmt"

	"github.com/yyyoichi/warptps/internal/matrix"
	"github.com/yyyoichi/warptps/internal/tps"
)

// Transform is a thin plate spline warp defined by landmark pairs.
//
// Solving is lazy. Editing a source landmark, adding or removing landmarks,
// or changing the kernel invalidates the inverted system matrix. Editing a
// destination landmark only invalidates the weights. Either invalidates the
// presampled field.
//
// A Transform is not safe for concurrent use. Distinct Transforms share
// nothing and may be used from different goroutines.
type Transform struct {
	src, dst []Point
	kernel   tps.Kernel
	method   tps.Method

	state    tps.State
	lInv     *matrix.Matrix
	solution *tps.Solution
	field    *tps.Field

	observers []observer
	nextObs   int
}

// New creates a Transform with the kernel r^2·ln r and no landmarks.
// For default values, refer to the init function.
func New(opts ...Option) (*Transform, error) {
	t := new(Transform)
	if err := t.init(opts...); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transform) init(opts ...Option) error {
	t.kernel = tps.DefaultKernel
	t.method = tps.GaussJordanPartial
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return err
		}
	}
	return nil
}

// AddLandmark adds a landmark whose destination equals its source and
// returns its index.
func (t *Transform) AddLandmark(src Point) int {
	return t.AddLandmarkPair(src, src)
}

// AddLandmarkPair adds a landmark and returns its index.
func (t *Transform) AddLandmarkPair(src, dst Point) int {
	t.src = append(t.src, src)
	t.dst = append(t.dst, dst)
	t.state.Invalidate(tps.MatrixLayer)
	t.notify()
	return len(t.src) - 1
}

// AddLandmarks appends every landmark of ls with a single change
// notification.
func (t *Transform) AddLandmarks(ls []Landmark) {
	if len(ls) == 0 {
		return
	}
	for _, l := range ls {
		t.src = append(t.src, l.Source)
		t.dst = append(t.dst, l.Destination)
	}
	t.state.Invalidate(tps.MatrixLayer)
	t.notify()
}

func (t *Transform) LandmarkCount() int {
	return len(t.src)
}

func (t *Transform) dataset(ds Dataset) ([]Point, error) {
	switch ds {
	case Source:
		return t.src, nil
	case Destination:
		return t.dst, nil
	}
	return nil, fmt.Errorf("%w: dataset %d", ErrOutOfRange, int(ds))
}

// Landmark returns the position of landmark i in the given dataset.
func (t *Transform) Landmark(ds Dataset, i int) (Point, error) {
	pts, err := t.dataset(ds)
	if err != nil {
		return Point{}, err
	}
	if i < 0 || i >= len(pts) {
		return Point{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(pts))
	}
	return pts[i], nil
}

// SetLandmark moves landmark i in the given dataset.
func (t *Transform) SetLandmark(ds Dataset, i int, p Point) error {
	pts, err := t.dataset(ds)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(pts) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(pts))
	}
	pts[i] = p
	if ds == Source {
		t.state.Invalidate(tps.MatrixLayer)
	} else {
		t.state.Invalidate(tps.WeightsLayer)
	}
	t.notify()
	return nil
}

// Landmarks returns a copy of all landmark pairs in index order.
func (t *Transform) Landmarks() []Landmark {
	ls := make([]Landmark, len(t.src))
	for i := range t.src {
		ls[i] = Landmark{Source: t.src[i], Destination: t.dst[i]}
	}
	return ls
}

func (t *Transform) RemoveAllLandmarks() {
	t.src, t.dst = nil, nil
	t.lInv, t.solution, t.field = nil, nil, nil
	t.state.Invalidate(tps.MatrixLayer)
	t.notify()
}

// SetKernelExponent changes r_exp. NaN and infinities are rejected with
// ErrInvalidKernel and leave the transform unchanged.
func (t *Transform) SetKernelExponent(r float64) error {
	if err := checkKernel("exponent", r); err != nil {
		return err
	}
	t.kernel.Exp = r
	t.state.Invalidate(tps.MatrixLayer)
	t.notify()
	return nil
}

func (t *Transform) SetKernelScale(k float64) error {
	if err := checkKernel("scale", k); err != nil {
		return err
	}
	t.kernel.Scale = k
	t.state.Invalidate(tps.MatrixLayer)
	t.notify()
	return nil
}

func (t *Transform) Solver() Solver {
	switch t.method {
	case tps.GaussJordanFull:
		return SolverFullPivot
	case tps.Pseudoinverse:
		return SolverPseudoinverse
	}
	return SolverPartialPivot
}

// Kernel returns the kernel exponent and scale.
func (t *Transform) Kernel() (exp, scale float64) {
	return t.kernel.Exp, t.kernel.Scale
}

// Inverse returns a new Transform with every landmark reversed and the
// same kernel and solver.
func (t *Transform) Inverse() *Transform {
	inv := &Transform{kernel: t.kernel, method: t.method}
	inv.src = append([]Point(nil), t.dst...)
	inv.dst = append([]Point(nil), t.src...)
	return inv
}

// Stage is the state of one cached layer.
type Stage = tps.Stage

const (
	Stale   = tps.Stale
	Solving = tps.Solving
	Solved  = tps.Solved
)

// Status reports the stage of each cached layer.
type Status struct {
	Matrix, Weights, Field Stage
}

func (t *Transform) Status() Status {
	return Status{
		Matrix:  t.state.Stage(tps.MatrixLayer),
		Weights: t.state.Stage(tps.WeightsLayer),
		Field:   t.state.Stage(tps.FieldLayer),
	}
}

// Solve brings the matrix and weights up to date. Unlike evaluation, it
// reports ErrInsufficientLandmarks when fewer than three landmarks exist.
func (t *Transform) Solve() error {
	if len(t.src) < tps.MinLandmarks {
		return fmt.Errorf("%w: have %d", ErrInsufficientLandmarks, len(t.src))
	}
	_, err := t.solve()
	return err
}

// solve returns the current solution, or nil when there are too few
// landmarks to define one.
func (t *Transform) solve() (*tps.Solution, error) {
	if len(t.src) < tps.MinLandmarks {
		return nil, nil
	}
	if t.state.Stage(tps.MatrixLayer) != tps.Solved {
		t.state.Begin(tps.MatrixLayer)
		lInv, err := tps.InvertSystem(t.src, t.kernel, t.method)
		if err != nil {
			t.state.Fail(tps.MatrixLayer)
			if errors.Is(err, matrix.ErrSVDNonConvergence) {
				return nil, fmt.Errorf("%w:%w", ErrSVDNonConvergence, err)
			}
			return nil, fmt.Errorf("%w:%w", ErrSingularSystem, err)
		}
		t.lInv = lInv
		t.state.Done(tps.MatrixLayer)
	}
	if t.state.Stage(tps.WeightsLayer) != tps.Solved {
		t.state.Begin(tps.WeightsLayer)
		s, err := tps.Solve(t.lInv, t.src, t.dst, t.kernel)
		if err != nil {
			t.state.Fail(tps.WeightsLayer)
			return nil, fmt.Errorf("%w:%w", ErrDimensionMismatch, err)
		}
		t.solution = s
		t.state.Done(tps.WeightsLayer)
	}
	return t.solution, nil
}

// Eval returns the offset of pos at the given strength: percent 0 is the
// identity and percent 1 maps every source landmark onto its destination.
// With fewer than three landmarks the offset is zero.
func (t *Transform) Eval(pos Point, percent float64) (Point, error) {
	s, err := t.solve()
	if err != nil {
		return Point{}, err
	}
	dx, dy := s.Offset(pos)
	return Pt(percent*dx, percent*dy), nil
}

// Map returns pos displaced by Eval.
func (t *Transform) Map(pos Point, percent float64) (Point, error) {
	off, err := t.Eval(pos, percent)
	if err != nil {
		return Point{}, err
	}
	return pos.Add(off), nil
}

// TransformPoints maps every point of pts.
func (t *Transform) TransformPoints(pts []Point, percent float64) ([]Point, error) {
	out := make([]Point, len(pts))
	for i, p := range pts {
		q, err := t.Map(p, percent)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// CheckInverse reports whether inverse holds the landmarks of forward with
// source and destination swapped, within 1e-5.
func CheckInverse(forward, inverse *Transform) bool {
	const eps = 1e-5
	if forward.LandmarkCount() != inverse.LandmarkCount() {
		return false
	}
	for i := range forward.src {
		if !forward.src[i].ApproxEqual(inverse.dst[i], eps) || !forward.dst[i].ApproxEqual(inverse.src[i], eps) {
			return false
		}
	}
	return true
}
