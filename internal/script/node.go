package script

import (
	"github.com/livefir/livebind/dom"
	"github.com/livefir/livebind/internal/compiler"
)

// Node is the script-side handle to a named DOM element. Every method returns
// a value so it can be used as an expression statement.
type Node struct {
	el dom.Element
}

// ID returns the element id.
func (n Node) ID() string {
	if n.el == nil {
		return ""
	}
	return n.el.ID()
}

// Attr returns the attribute value, or "" when it is absent.
func (n Node) Attr(name string) string {
	if n.el == nil {
		return ""
	}
	v, _ := n.el.Attribute(name)
	return v
}

// SetAttr sets an attribute and returns the value written.
func (n Node) SetAttr(name string, value any) string {
	s := compiler.Format(value)
	if n.el != nil {
		n.el.SetAttribute(name, s)
	}
	return s
}

// RemoveAttr removes an attribute.
func (n Node) RemoveAttr(name string) bool {
	if n.el == nil {
		return false
	}
	_, had := n.el.Attribute(name)
	n.el.RemoveAttribute(name)
	return had
}

// HTML returns the inner markup.
func (n Node) HTML() string {
	if n.el == nil {
		return ""
	}
	return n.el.InnerHTML()
}

// SetHTML replaces the inner markup.
func (n Node) SetHTML(markup string) (string, error) {
	if n.el == nil {
		return "", nil
	}
	return markup, n.el.SetInnerHTML(markup)
}

// Style sets one inline style property.
func (n Node) Style(prop, value string) string {
	if n.el != nil {
		n.el.SetStyle(prop, value)
	}
	return value
}
