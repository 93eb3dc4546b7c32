package matrix

import (
	"fmt"
	"math"
)

// Pivot selects the pivot search used by Invert.
type Pivot int

const (
	// PartialPivot swaps in the largest element below the diagonal.
	PartialPivot Pivot = iota
	// FullPivot swaps in the largest element of the remaining sub-matrix.
	FullPivot
)

const (
	// pivotTrigger is the diagonal magnitude below which a pivot search runs.
	// Larger diagonals are used as they are.
	pivotTrigger = 1.0
	// SingularEps is the largest pivot magnitude treated as zero.
	SingularEps = 1e-8
)

// Invert returns the inverse of a square matrix by Gauss-Jordan
// elimination. It fails with ErrSingular when no usable pivot is found.
func (m *Matrix) Invert(p Pivot) (*Matrix, error) {
	if m.rows != m.cols {
		return nil, fmt.Errorf("%w: %dx%d", ErrNonSquare, m.rows, m.cols)
	}
	n := m.rows
	a := m.Clone()
	inv := Identity(n)

	// colSwaps[d] is the column swapped with d at step d
	colSwaps := make([]int, n)
	for d := range n {
		colSwaps[d] = d
		if math.Abs(a.at(d, d)) < pivotTrigger {
			switch p {
			case FullPivot:
				pr, pc := a.findPivotElem(d)
				a.swapRows(d, pr)
				inv.swapRows(d, pr)
				a.swapCols(d, pc)
				colSwaps[d] = pc
			default:
				pr := a.findPivotRow(d)
				a.swapRows(d, pr)
				inv.swapRows(d, pr)
			}
		}

		piv := a.at(d, d)
		if math.Abs(piv) <= SingularEps {
			return nil, fmt.Errorf("%w: pivot %g at %d", ErrSingular, piv, d)
		}
		scale := 1 / piv
		for c := range n {
			a.set(d, c, a.at(d, c)*scale)
			inv.set(d, c, inv.at(d, c)*scale)
		}
		for r := range n {
			if r == d {
				continue
			}
			f := a.at(r, d)
			if f == 0 {
				continue
			}
			for c := range n {
				a.set(r, c, a.at(r, c)-f*a.at(d, c))
				inv.set(r, c, inv.at(r, c)-f*inv.at(d, c))
			}
		}
	}

	// (A·P)^-1 = P^-1·A^-1, so undo the column permutation on the rows of
	// the result, last swap first.
	for d := n - 1; d >= 0; d-- {
		inv.swapRows(d, colSwaps[d])
	}
	return inv, nil
}

// findPivotRow returns the row at or below d with the largest magnitude in
// column d.
func (m *Matrix) findPivotRow(d int) int {
	best, bestAbs := d, math.Abs(m.at(d, d))
	for r := d + 1; r < m.rows; r++ {
		if v := math.Abs(m.at(r, d)); v > bestAbs {
			best, bestAbs = r, v
		}
	}
	return best
}

// findPivotElem returns the position of the largest magnitude in the
// sub-matrix starting at (d, d).
func (m *Matrix) findPivotElem(d int) (row, col int) {
	row, col = d, d
	bestAbs := math.Abs(m.at(d, d))
	for c := d; c < m.cols; c++ {
		for r := d; r < m.rows; r++ {
			if v := math.Abs(m.at(r, c)); v > bestAbs {
				row, col, bestAbs = r, c, v
			}
		}
	}
	return row, col
}

// Determinant computes the determinant by cofactor expansion along the
// first row.
func (m *Matrix) Determinant() (float64, error) {
	if m.rows != m.cols {
		return 0, fmt.Errorf("%w: %dx%d", ErrNonSquare, m.rows, m.cols)
	}
	if m.rows == 0 {
		return 0, ErrEmpty
	}
	return m.det(), nil
}

func (m *Matrix) det() float64 {
	switch m.rows {
	case 1:
		return m.at(0, 0)
	case 2:
		return m.at(0, 0)*m.at(1, 1) - m.at(0, 1)*m.at(1, 0)
	}
	var sum float64
	sign := 1.0
	for c := range m.cols {
		if x := m.at(0, c); x != 0 {
			sum += sign * x * m.minor(0, c).det()
		}
		sign = -sign
	}
	return sum
}

// minor returns m without row r and column c.
func (m *Matrix) minor(r, c int) *Matrix {
	out := Zeros(m.rows-1, m.cols-1)
	for cc, oc := 0, 0; cc < m.cols; cc++ {
		if cc == c {
			continue
		}
		for rr, or := 0, 0; rr < m.rows; rr++ {
			if rr == r {
				continue
			}
			out.set(or, oc, m.at(rr, cc))
			or++
		}
		oc++
	}
	return out
}
