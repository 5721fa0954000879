package dom_test

import (
	"testing"

	"github.com/livefir/livebind/dom"
	"github.com/livefir/livebind/memdom"
)

func TestWalk(t *testing.T) {
	doc := memdom.NewDocument()
	if err := doc.Body().SetInnerHTML(`<div id="a"><span id="b"><i id="c"></i></span><p id="d"></p></div>`); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}

	var seen []string
	dom.Walk(doc.GetElementByID("a"), func(el dom.Element) bool {
		seen = append(seen, el.ID())
		return el.ID() != "b"
	})

	want := []string{"a", "b", "d"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], seen[i])
		}
	}

	dom.Walk(nil, func(dom.Element) bool {
		t.Fatal("walk over nil must not call fn")
		return true
	})
}
