package tps

import "fmt"

// Layer is one level of derived data. Each layer is computed from the
// layers before it.
type Layer int

const (
	MatrixLayer Layer = iota
	WeightsLayer
	FieldLayer

	numLayers
)

func (l Layer) String() string {
	switch l {
	case MatrixLayer:
		return "matrix"
	case WeightsLayer:
		return "weights"
	case FieldLayer:
		return "field"
	}
	return fmt.Sprintf("Layer(%d)", int(l))
}

type Stage int

const (
	Stale Stage = iota
	Solving
	Solved
)

func (s Stage) String() string {
	switch s {
	case Stale:
		return "stale"
	case Solving:
		return "solving"
	case Solved:
		return "solved"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// State tracks the stage of every layer. Invalidating a layer invalidates
// every layer after it, so a stale matrix always implies stale weights and
// a stale field. The zero value has every layer stale.
type State struct {
	stages [numLayers]Stage
}

func (s *State) Stage(l Layer) Stage {
	return s.stages[l]
}

func (s *State) Invalidate(l Layer) {
	for i := l; i < numLayers; i++ {
		s.stages[i] = Stale
	}
}

// Begin marks l as solving. It reports false if an earlier layer is not
// solved.
func (s *State) Begin(l Layer) bool {
	for i := range l {
		if s.stages[i] != Solved {
			return false
		}
	}
	s.stages[l] = Solving
	return true
}

func (s *State) Done(l Layer) {
	if s.stages[l] == Solving {
		s.stages[l] = Solved
	}
}

func (s *State) Fail(l Layer) {
	s.Invalidate(l)
}
