package warptps

import "errors"

var (
	// ErrInsufficientLandmarks is returned by Solve when fewer than three
	// landmarks are defined. Evaluation with fewer landmarks is a no-op.
	ErrInsufficientLandmarks = errors.New("at least three landmarks are required")
	ErrSingularSystem        = errors.New("landmark configuration is degenerate")
	ErrSVDNonConvergence     = errors.New("singular value decomposition did not converge")
	ErrOutOfRange            = errors.New("landmark index out of range")
	ErrDimensionMismatch     = errors.New("dimension mismatch")
	ErrInvalidBuffer         = errors.New("invalid pixel buffer")
	ErrFieldSize             = errors.New("field does not match image size")
	ErrImageSize             = errors.New("images differ in size")
	ErrInvalidKernel         = errors.New("kernel parameter must be finite")
)
