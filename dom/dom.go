// Package dom declares the narrow DOM surface a bound view needs. Hosts
// provide an implementation backed by a real rendering surface; package
// memdom provides an in-memory one.
package dom

// Attr is a single element attribute.
type Attr struct {
	Name  string
	Value string
}

// MutationRecord describes one attribute change delivered to an Observer.
type MutationRecord struct {
	Target        Element
	AttributeName string
	OldValue      string
	HadOldValue   bool
}

// Event is a DOM event as seen by listeners.
type Event interface {
	Type() string
	// Serialize returns a plain, JSON-friendly copy of the event fields.
	Serialize() map[string]any
}

// Listener is the handle returned by AddEventListener.
type Listener interface {
	Remove()
}

// Observer is the handle returned by ObserveAttributes.
type Observer interface {
	Disconnect()
}

// Element is a DOM element.
type Element interface {
	ID() string
	Tag() string

	Attribute(name string) (string, bool)
	SetAttribute(name, value string)
	RemoveAttribute(name string)
	Attributes() []Attr

	InnerHTML() string
	SetInnerHTML(markup string) error
	AppendHTML(markup string) error
	Clear()
	Children() []Element

	SetStyle(prop, value string)
	SetClasses(classes []string)

	AddEventListener(event string, fn func(Event)) Listener
	ObserveAttributes(fn func(MutationRecord)) Observer
}

// Document looks elements up by id.
type Document interface {
	// GetElementByID returns nil when no attached element has the id.
	GetElementByID(id string) Element
}

// Walk calls fn for el and every element below it, depth first. Returning
// false from fn skips that element's subtree.
func Walk(el Element, fn func(Element) bool) {
	if el == nil || !fn(el) {
		return
	}
	for _, child := range el.Children() {
		Walk(child, fn)
	}
}
