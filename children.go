package livebind

import (
	"fmt"

	"github.com/livefir/livebind/dom"
)

// ChildView renders a nested view into an anchor. RenderInto must append to
// el; several children may share one anchor.
type ChildView interface {
	RenderInto(el dom.Element) error
}

// ChildResolver maps an opaque child reference to its view. It returns nil
// for references it does not know.
type ChildResolver interface {
	Resolve(ref any) ChildView
}

// ChildResolverFunc adapts a function to ChildResolver.
type ChildResolverFunc func(ref any) ChildView

// Resolve implements ChildResolver.
func (f ChildResolverFunc) Resolve(ref any) ChildView {
	return f(ref)
}

// ChildRefs returns the non-literal child references in anchor order.
func (c *Controller) ChildRefs() []any {
	var refs []any
	for _, anchor := range sortedKeys(c.children) {
		for _, child := range c.children[anchor] {
			if !child.IsLiteral() {
				refs = append(refs, child.Ref)
			}
		}
	}
	return refs
}

// placeChildren fills every children anchor. A plain anchor "<name>-<id>" is
// cleared and receives all children in order; a looped anchor receives child
// i in "<name>-<i>-<id>". Missing anchors are reported and skipped.
func (c *Controller) placeChildren() {
	for _, anchor := range sortedKeys(c.children) {
		kids := c.children[anchor]
		if c.def.IsLooped(anchor) {
			for i, child := range kids {
				if c.phase == Disposed {
					return
				}
				el := c.resolve(fmt.Sprintf("%s-%d", anchor, i), "render children")
				if el == nil {
					continue
				}
				el.Clear()
				c.placeChild(el, child)
			}
			continue
		}
		el := c.resolve(anchor, "render children")
		if el == nil {
			continue
		}
		el.Clear()
		for _, child := range kids {
			if c.phase == Disposed {
				return
			}
			c.placeChild(el, child)
		}
	}
}

func (c *Controller) placeChild(el dom.Element, child Child) {
	if child.IsLiteral() {
		if err := el.AppendHTML(child.Markup); err != nil {
			c.report(fmt.Errorf("livebind: place child in %s: %w", el.ID(), err))
		}
		return
	}
	var view ChildView
	if c.config.Resolver != nil {
		view = c.config.Resolver.Resolve(child.Ref)
	}
	if view == nil {
		c.report(fmt.Errorf("livebind: no child view for %v in %s", child.Ref, el.ID()))
		return
	}
	if err := view.RenderInto(el); err != nil {
		c.report(fmt.Errorf("livebind: render child into %s: %w", el.ID(), err))
	}
}

// syncChildFields refreshes anchors fed from list data fields.
func (c *Controller) syncChildFields() {
	if len(c.def.ChildFields) == 0 {
		return
	}
	snap := c.data.Snapshot()
	for anchor, field := range c.def.ChildFields {
		c.children[anchor] = childrenFrom(snap[field])
	}
}

// childrenFrom converts a list field value into children. Strings are
// literal markup; anything else is a reference for the ChildResolver.
func childrenFrom(v any) []Child {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return []Child{Literal(x)}
	case []string:
		out := make([]Child, len(x))
		for i, s := range x {
			out[i] = Literal(s)
		}
		return out
	case []any:
		out := make([]Child, len(x))
		for i, item := range x {
			if s, ok := item.(string); ok {
				out[i] = Literal(s)
			} else {
				out[i] = Ref(item)
			}
		}
		return out
	default:
		return []Child{Ref(x)}
	}
}

func copyChildren(spec ChildrenSpec) ChildrenSpec {
	out := make(ChildrenSpec, len(spec))
	for anchor, kids := range spec {
		out[anchor] = append([]Child(nil), kids...)
	}
	return out
}
