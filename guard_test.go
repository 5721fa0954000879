package livebind

import "testing"

func TestSyncGuard(t *testing.T) {
	var g syncGuard

	if g.held() {
		t.Fatal("zero guard should be free")
	}
	if !g.enter(modelToDOM) {
		t.Fatal("enter on a free guard should succeed")
	}
	if g.current() != modelToDOM {
		t.Errorf("expected model->dom, got %s", g.current())
	}

	// Neither direction may enter while one is in flight.
	if g.enter(domToModel) {
		t.Error("dom->model entered while model->dom held")
	}
	if g.enter(modelToDOM) {
		t.Error("model->dom re-entered")
	}
	if g.current() != modelToDOM {
		t.Errorf("failed enter changed direction to %s", g.current())
	}

	g.leave()
	if g.held() {
		t.Error("guard still held after leave")
	}
	if !g.enter(domToModel) {
		t.Error("dom->model should enter after leave")
	}
	g.leave()
}

func TestDirectionString(t *testing.T) {
	tests := map[direction]string{
		directionNone: "none",
		modelToDOM:    "model->dom",
		domToModel:    "dom->model",
	}
	for d, want := range tests {
		if got := d.String(); got != want {
			t.Errorf("direction %d: expected %q, got %q", d, want, got)
		}
	}
}

func TestPhaseString(t *testing.T) {
	tests := map[Phase]string{
		Uninitialized: "uninitialized",
		Rendered:      "rendered",
		Updating:      "updating",
		Disposed:      "disposed",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("phase %d: expected %q, got %q", p, want, got)
		}
	}
}
