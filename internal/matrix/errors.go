package matrix

import "errors"

var (
	ErrOutOfRange        = errors.New("matrix: index out of range")
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")
	ErrNonSquare         = errors.New("matrix: matrix is not square")
	ErrEmpty             = errors.New("matrix: matrix is empty")
	ErrSingular          = errors.New("matrix: singular matrix")
	ErrSVDNonConvergence = errors.New("matrix: svd did not converge")
)
