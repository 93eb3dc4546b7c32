package matrix

import (
	"fmt"

	"github.com/yyyoichi/warptps/internal/vector"
	"gonum.org/v1/gonum/mat"
)

// Dense converts m to a gonum matrix.
func (m *Matrix) Dense() *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.rows, m.cols, nil)
	for r := range m.rows {
		for c := range m.cols {
			d.Set(r, c, m.at(r, c))
		}
	}
	return d
}

// FromDense copies a gonum matrix.
func FromDense(a mat.Matrix) *Matrix {
	rows, cols := a.Dims()
	m := Zeros(rows, cols)
	for r := range rows {
		for c := range cols {
			m.set(r, c, a.At(r, c))
		}
	}
	return m
}

// SVD factorizes m = U·diag(w)·Vᵗ in thin form: for an r x c matrix with
// k = min(r, c), U is r x k, w has k values in descending order and V is
// c x k.
func (m *Matrix) SVD() (u *Matrix, w vector.N, v *Matrix, err error) {
	if m.rows == 0 || m.cols == 0 {
		return nil, vector.N{}, nil, ErrEmpty
	}
	var f mat.SVD
	if ok := f.Factorize(m.Dense(), mat.SVDThin); !ok {
		return nil, vector.N{}, nil, fmt.Errorf("%w: %dx%d", ErrSVDNonConvergence, m.rows, m.cols)
	}
	var ud, vd mat.Dense
	f.UTo(&ud)
	f.VTo(&vd)
	return FromDense(&ud), vector.FromSlice(f.Values(nil)), FromDense(&vd), nil
}

// Pseudoinvert returns the Moore-Penrose pseudoinverse V·diag(1/w)·Uᵗ.
// Singular values not above SingularEps contribute zero.
func (m *Matrix) Pseudoinvert() (*Matrix, error) {
	u, w, v, err := m.SVD()
	if err != nil {
		return nil, err
	}
	ws := w.Slice()
	// scale the columns of V by the reciprocal singular values
	vs := v.Clone()
	for k, s := range ws {
		inv := 0.0
		if s > SingularEps {
			inv = 1 / s
		}
		col := vs.data[k*vs.rows : (k+1)*vs.rows]
		for i := range col {
			col[i] *= inv
		}
	}
	return Mul(vs, u.T())
}
