package warptps

import "slices"

type observer struct {
	id int
	fn func()
}

// OnChange registers fn to be called after every landmark or kernel
// change. Callbacks run synchronously in registration order. The returned
// function unregisters fn.
func (t *Transform) OnChange(fn func()) (cancel func()) {
	id := t.nextObs
	t.nextObs++
	t.observers = append(t.observers, observer{id: id, fn: fn})
	return func() {
		// a fresh slice keeps a notify in progress on the old list
		t.observers = slices.DeleteFunc(slices.Clone(t.observers), func(o observer) bool {
			return o.id == id
		})
	}
}

func (t *Transform) notify() {
	for _, o := range t.observers {
		o.fn()
	}
}
