package warptps

import (
	"fmt"

	"github.com/yyyoichi/warptps/internal/vector"
)

// Point is a landmark position. The z component is carried but the warp
// is planar.
type Point = vector.Vec3

func Pt(x, y float64) Point {
	return vector.New3(x, y, 0)
}

func Pt3(x, y, z float64) Point {
	return vector.New3(x, y, z)
}

// Dataset selects one side of the landmark correspondence.
type Dataset int

const (
	Source Dataset = iota
	Destination
)

var datasetNames = [...]string{"source", "destination"}

func (d Dataset) String() string {
	if d < 0 || int(d) >= len(datasetNames) {
		return fmt.Sprintf("Dataset(%d)", int(d))
	}
	return datasetNames[d]
}

// Landmark pairs a source position with the destination it maps to.
type Landmark struct {
	Source      Point
	Destination Point
}

// Inverse swaps source and destination.
func (l Landmark) Inverse() Landmark {
	return Landmark{Source: l.Destination, Destination: l.Source}
}

// CornerLandmarks pins the corners of a srcW x srcH image to the corners
// of a dstW x dstH image, starting at the origin and going around through
// (0, h), (w, h) and (w, 0).
func CornerLandmarks(srcW, srcH, dstW, dstH int) []Landmark {
	sw, sh := float64(srcW), float64(srcH)
	dw, dh := float64(dstW), float64(dstH)
	return []Landmark{
		{Source: Pt(0, 0), Destination: Pt(0, 0)},
		{Source: Pt(0, sh), Destination: Pt(0, dh)},
		{Source: Pt(sw, sh), Destination: Pt(dw, dh)},
		{Source: Pt(sw, 0), Destination: Pt(dw, 0)},
	}
}
