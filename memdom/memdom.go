// Package memdom is an in-memory DOM backed by golang.org/x/net/html nodes.
//
// It implements the dom interfaces for headless rendering and tests. Mutation
// observers are notified synchronously from SetAttribute, and Dispatch calls
// listeners synchronously in registration order. A Document is not safe for
// concurrent use; drive it from one goroutine like a browser event loop.
package memdom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livefir/livebind/dom"
)

// Document owns a <body> root and the listener and observer registries for
// every node created under it.
type Document struct {
	root      *html.Node
	listeners map[*html.Node]map[string][]*listener
	observers map[*html.Node][]*observer
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		root:      &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body},
		listeners: make(map[*html.Node]map[string][]*listener),
		observers: make(map[*html.Node][]*observer),
	}
}

// Body returns the root element.
func (d *Document) Body() *Element {
	return d.wrap(d.root)
}

// GetElementByID implements dom.Document.
func (d *Document) GetElementByID(id string) dom.Element {
	if el := d.Element(id); el != nil {
		return el
	}
	return nil
}

// Element returns the attached element with id, or nil.
func (d *Document) Element(id string) *Element {
	if id == "" {
		return nil
	}
	if n := findByID(d.root, id); n != nil {
		return d.wrap(n)
	}
	return nil
}

// HTML returns the markup inside the body.
func (d *Document) HTML() string {
	return d.Body().InnerHTML()
}

// ListenerCount returns the number of live listeners on attached or detached
// nodes. It is meant for leak checks in tests.
func (d *Document) ListenerCount() int {
	n := 0
	for _, byEvent := range d.listeners {
		for _, ls := range byEvent {
			n += len(ls)
		}
	}
	return n
}

// ObserverCount returns the number of connected observers.
func (d *Document) ObserverCount() int {
	n := 0
	for _, obs := range d.observers {
		n += len(obs)
	}
	return n
}

func (d *Document) wrap(n *html.Node) *Element {
	return &Element{doc: d, node: n}
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Element wraps an element node. Wrappers are cheap; two wrappers of the same
// node share listeners and observers.
type Element struct {
	doc  *Document
	node *html.Node
}

// Node exposes the underlying x/net/html node.
func (e *Element) Node() *html.Node {
	return e.node
}

// ID implements dom.Element.
func (e *Element) ID() string {
	v, _ := e.Attribute("id")
	return v
}

// Tag implements dom.Element.
func (e *Element) Tag() string {
	return e.node.Data
}

// Attribute implements dom.Element.
func (e *Element) Attribute(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute implements dom.Element. Observers are notified even when the
// value is unchanged, as browsers do.
func (e *Element) SetAttribute(name, value string) {
	old, had := e.Attribute(name)
	if had {
		for i := range e.node.Attr {
			if e.node.Attr[i].Key == name {
				e.node.Attr[i].Val = value
				break
			}
		}
	} else {
		e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
	}
	e.notify(name, old, had)
}

// RemoveAttribute implements dom.Element.
func (e *Element) RemoveAttribute(name string) {
	old, had := e.Attribute(name)
	if !had {
		return
	}
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Key != name {
			attrs = append(attrs, a)
		}
	}
	e.node.Attr = attrs
	e.notify(name, old, had)
}

// Attributes implements dom.Element.
func (e *Element) Attributes() []dom.Attr {
	attrs := make([]dom.Attr, len(e.node.Attr))
	for i, a := range e.node.Attr {
		attrs[i] = dom.Attr{Name: a.Key, Value: a.Val}
	}
	return attrs
}

// InnerHTML implements dom.Element.
func (e *Element) InnerHTML() string {
	var buf bytes.Buffer
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}

// SetInnerHTML implements dom.Element.
func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := e.parse(markup)
	if err != nil {
		return err
	}
	e.Clear()
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	return nil
}

// AppendHTML implements dom.Element.
func (e *Element) AppendHTML(markup string) error {
	nodes, err := e.parse(markup)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	return nil
}

// AppendChild moves child under e.
func (e *Element) AppendChild(child *Element) {
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	e.node.AppendChild(child.node)
}

// Clear implements dom.Element.
func (e *Element) Clear() {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
}

// Children implements dom.Element.
func (e *Element) Children() []dom.Element {
	var out []dom.Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

// TextContent returns the concatenated text below e.
func (e *Element) TextContent() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}

// Style returns one inline style property.
func (e *Element) Style(prop string) string {
	style, _ := e.Attribute("style")
	for _, decl := range parseStyle(style) {
		if decl[0] == prop {
			return decl[1]
		}
	}
	return ""
}

// SetStyle implements dom.Element. An empty value removes the property.
func (e *Element) SetStyle(prop, value string) {
	style, _ := e.Attribute("style")
	decls := parseStyle(style)
	found := false
	out := decls[:0]
	for _, decl := range decls {
		if decl[0] == prop {
			found = true
			if value == "" {
				continue
			}
			decl[1] = value
		}
		out = append(out, decl)
	}
	if !found && value != "" {
		out = append(out, [2]string{prop, value})
	}
	if len(out) == 0 {
		e.RemoveAttribute("style")
		return
	}
	parts := make([]string, len(out))
	for i, decl := range out {
		parts[i] = decl[0] + ": " + decl[1]
	}
	e.SetAttribute("style", strings.Join(parts, "; ")+";")
}

// SetClasses implements dom.Element.
func (e *Element) SetClasses(classes []string) {
	var kept []string
	for _, c := range classes {
		if c = strings.TrimSpace(c); c != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		e.RemoveAttribute("class")
		return
	}
	e.SetAttribute("class", strings.Join(kept, " "))
}

func (e *Element) parse(markup string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: e.node.Data, DataAtom: e.node.DataAtom}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("memdom: parse fragment: %w", err)
	}
	return nodes, nil
}

func parseStyle(style string) [][2]string {
	var decls [][2]string
	for _, decl := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop, value = strings.TrimSpace(prop), strings.TrimSpace(value)
		if prop != "" {
			decls = append(decls, [2]string{prop, value})
		}
	}
	return decls
}
