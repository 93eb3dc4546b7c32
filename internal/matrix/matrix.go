package matrix

import (
	"fmt"
	"math"
	"strings"

	"github.com/yyyoichi/warptps/internal/vector"
)

// Matrix is a dense rows x cols matrix stored column-major.
type Matrix struct {
	rows, cols int
	data       []float64
}

// New returns a rows x cols matrix with ones on the main diagonal.
func New(rows, cols int) *Matrix {
	m := &Matrix{}
	m.Reshape(rows, cols)
	return m
}

// Zeros returns a rows x cols zero matrix.
func Zeros(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// NewFunc returns a rows x cols matrix with elements f(r, c).
func NewFunc(rows, cols int, f func(r, c int) float64) *Matrix {
	m := Zeros(rows, cols)
	for c := range cols {
		for r := range rows {
			m.set(r, c, f(r, c))
		}
	}
	return m
}

func Identity(n int) *Matrix {
	return New(n, n)
}

// FromRows builds a matrix from row slices. All rows must have equal length.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return Zeros(0, 0), nil
	}
	m := Zeros(len(rows), len(rows[0]))
	for r, row := range rows {
		if len(row) != m.cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, r, len(row), m.cols)
		}
		for c, x := range row {
			m.set(r, c, x)
		}
	}
	return m, nil
}

func (m *Matrix) Dims() (rows, cols int) {
	return m.rows, m.cols
}

func (m *Matrix) at(r, c int) float64 {
	return m.data[c*m.rows+r]
}

func (m *Matrix) set(r, c int, x float64) {
	m.data[c*m.rows+r] = x
}

func (m *Matrix) check(r, c int) error {
	if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, r, c, m.rows, m.cols)
	}
	return nil
}

func (m *Matrix) At(r, c int) (float64, error) {
	if err := m.check(r, c); err != nil {
		return 0, err
	}
	return m.at(r, c), nil
}

func (m *Matrix) Set(r, c int, x float64) error {
	if err := m.check(r, c); err != nil {
		return err
	}
	m.set(r, c, x)
	return nil
}

// Reshape resizes m in place. Elements inside the overlap of the old and
// new shapes are kept and new elements are zero. A matrix that held no
// elements becomes identity-filled.
func (m *Matrix) Reshape(rows, cols int) {
	if rows == m.rows && cols == m.cols {
		return
	}
	data := make([]float64, rows*cols)
	if len(m.data) == 0 {
		for i := 0; i < rows && i < cols; i++ {
			data[i*rows+i] = 1
		}
	} else {
		for c := 0; c < cols && c < m.cols; c++ {
			for r := 0; r < rows && r < m.rows; r++ {
				data[c*rows+r] = m.at(r, c)
			}
		}
	}
	m.rows, m.cols, m.data = rows, cols, data
}

func (m *Matrix) Clone() *Matrix {
	data := make([]float64, len(m.data))
	copy(data, m.data)
	return &Matrix{rows: m.rows, cols: m.cols, data: data}
}

// Assign makes m a copy of src, adopting its shape.
func (m *Matrix) Assign(src *Matrix) {
	m.rows, m.cols = src.rows, src.cols
	m.data = append(m.data[:0], src.data...)
}

func (m *Matrix) Row(r int) (vector.N, error) {
	if r < 0 || r >= m.rows {
		return vector.N{}, fmt.Errorf("%w: row %d of %d", ErrOutOfRange, r, m.rows)
	}
	row := make([]float64, m.cols)
	for c := range m.cols {
		row[c] = m.at(r, c)
	}
	return vector.FromSlice(row), nil
}

func (m *Matrix) Col(c int) (vector.N, error) {
	if c < 0 || c >= m.cols {
		return vector.N{}, fmt.Errorf("%w: column %d of %d", ErrOutOfRange, c, m.cols)
	}
	return vector.FromSlice(m.data[c*m.rows : (c+1)*m.rows]), nil
}

func (m *Matrix) SetRow(r int, v vector.N) error {
	if r < 0 || r >= m.rows {
		return fmt.Errorf("%w: row %d of %d", ErrOutOfRange, r, m.rows)
	}
	if v.Dim() != m.cols {
		return fmt.Errorf("%w: row of %d for %d columns", ErrDimensionMismatch, v.Dim(), m.cols)
	}
	for c, x := range v.Slice() {
		m.set(r, c, x)
	}
	return nil
}

func (m *Matrix) SetCol(c int, v vector.N) error {
	if c < 0 || c >= m.cols {
		return fmt.Errorf("%w: column %d of %d", ErrOutOfRange, c, m.cols)
	}
	if v.Dim() != m.rows {
		return fmt.Errorf("%w: column of %d for %d rows", ErrDimensionMismatch, v.Dim(), m.rows)
	}
	copy(m.data[c*m.rows:(c+1)*m.rows], v.Slice())
	return nil
}

func (m *Matrix) SwapRows(a, b int) error {
	if a < 0 || a >= m.rows || b < 0 || b >= m.rows {
		return fmt.Errorf("%w: rows %d,%d of %d", ErrOutOfRange, a, b, m.rows)
	}
	m.swapRows(a, b)
	return nil
}

func (m *Matrix) swapRows(a, b int) {
	if a == b {
		return
	}
	for c := range m.cols {
		i, j := c*m.rows+a, c*m.rows+b
		m.data[i], m.data[j] = m.data[j], m.data[i]
	}
}

func (m *Matrix) SwapCols(a, b int) error {
	if a < 0 || a >= m.cols || b < 0 || b >= m.cols {
		return fmt.Errorf("%w: columns %d,%d of %d", ErrOutOfRange, a, b, m.cols)
	}
	m.swapCols(a, b)
	return nil
}

func (m *Matrix) swapCols(a, b int) {
	if a == b {
		return
	}
	ca := m.data[a*m.rows : (a+1)*m.rows]
	cb := m.data[b*m.rows : (b+1)*m.rows]
	for r := range ca {
		ca[r], cb[r] = cb[r], ca[r]
	}
}

// T returns the transpose of m as a new matrix.
func (m *Matrix) T() *Matrix {
	t := Zeros(m.cols, m.rows)
	for c := range m.cols {
		for r := range m.rows {
			t.set(c, r, m.at(r, c))
		}
	}
	return t
}

// Transpose transposes m in place.
func (m *Matrix) Transpose() {
	m.Assign(m.T())
}

func (m *Matrix) sameShape(o *Matrix) error {
	if m.rows != o.rows || m.cols != o.cols {
		return fmt.Errorf("%w: %dx%d and %dx%d", ErrDimensionMismatch, m.rows, m.cols, o.rows, o.cols)
	}
	return nil
}

// AddInPlace performs m += o.
func (m *Matrix) AddInPlace(o *Matrix) error {
	if err := m.sameShape(o); err != nil {
		return err
	}
	for i := range m.data {
		m.data[i] += o.data[i]
	}
	return nil
}

// SubInPlace performs m -= o.
func (m *Matrix) SubInPlace(o *Matrix) error {
	if err := m.sameShape(o); err != nil {
		return err
	}
	for i := range m.data {
		m.data[i] -= o.data[i]
	}
	return nil
}

// ScaleInPlace performs m *= s.
func (m *Matrix) ScaleInPlace(s float64) {
	for i := range m.data {
		m.data[i] *= s
	}
}

// MulInPlace performs m = m * o.
func (m *Matrix) MulInPlace(o *Matrix) error {
	p, err := Mul(m, o)
	if err != nil {
		return err
	}
	m.Assign(p)
	return nil
}

// Mul returns a * b.
func Mul(a, b *Matrix) (*Matrix, error) {
	if a.cols != b.rows {
		return nil, fmt.Errorf("%w: %dx%d * %dx%d", ErrDimensionMismatch, a.rows, a.cols, b.rows, b.cols)
	}
	p := Zeros(a.rows, b.cols)
	for c := range b.cols {
		for k := range a.cols {
			bkc := b.at(k, c)
			if bkc == 0 {
				continue
			}
			for r := range a.rows {
				p.data[c*p.rows+r] += a.at(r, k) * bkc
			}
		}
	}
	return p, nil
}

// MulVec returns m * v.
func MulVec(m *Matrix, v vector.N) (vector.N, error) {
	if v.Dim() != m.cols {
		return vector.N{}, fmt.Errorf("%w: %dx%d * %d", ErrDimensionMismatch, m.rows, m.cols, v.Dim())
	}
	x := v.Slice()
	out := make([]float64, m.rows)
	for c, xc := range x {
		for r := range m.rows {
			out[r] += m.at(r, c) * xc
		}
	}
	return vector.FromSlice(out), nil
}

func (m *Matrix) Equal(o *Matrix) bool {
	if m.sameShape(o) != nil {
		return false
	}
	for i := range m.data {
		if m.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether every element of m-o is within eps.
func (m *Matrix) ApproxEqual(o *Matrix, eps float64) bool {
	if m.sameShape(o) != nil {
		return false
	}
	for i := range m.data {
		if math.Abs(m.data[i]-o.data[i]) > eps {
			return false
		}
	}
	return true
}

func (m *Matrix) String() string {
	var b strings.Builder
	for r := range m.rows {
		b.WriteByte('[')
		for c := range m.cols {
			if c > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%g", m.at(r, c))
		}
		b.WriteString("]\n")
	}
	return b.String()
}
