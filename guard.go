package livebind

// direction is the propagation a controller has in flight.
type direction int

const (
	directionNone direction = iota
	modelToDOM
	domToModel
)

func (d direction) String() string {
	switch d {
	case modelToDOM:
		return "model->dom"
	case domToModel:
		return "dom->model"
	default:
		return "none"
	}
}

// syncGuard holds at most one propagation direction at a time. It is
// check-then-set without locking; a controller is driven from one goroutine.
type syncGuard struct {
	dir direction
}

// enter claims the guard for d and reports whether it was free.
func (g *syncGuard) enter(d direction) bool {
	if g.dir != directionNone {
		return false
	}
	g.dir = d
	return true
}

func (g *syncGuard) leave() {
	g.dir = directionNone
}

func (g *syncGuard) held() bool {
	return g.dir != directionNone
}

func (g *syncGuard) current() direction {
	return g.dir
}
