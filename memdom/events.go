package memdom

import (
	"golang.org/x/net/html"

	"github.com/livefir/livebind/dom"
)

// Event is a plain DOM event.
type Event struct {
	Name   string
	Fields map[string]any
}

// NewEvent returns an event of type name carrying fields.
func NewEvent(name string, fields map[string]any) *Event {
	return &Event{Name: name, Fields: fields}
}

// Type implements dom.Event.
func (ev *Event) Type() string {
	return ev.Name
}

// Serialize implements dom.Event.
func (ev *Event) Serialize() map[string]any {
	out := make(map[string]any, len(ev.Fields)+1)
	for k, v := range ev.Fields {
		out[k] = v
	}
	out["type"] = ev.Name
	return out
}

type listener struct {
	doc     *Document
	node    *html.Node
	event   string
	fn      func(dom.Event)
	removed bool
}

// Remove implements dom.Listener. It is safe to call more than once.
func (l *listener) Remove() {
	if l.removed {
		return
	}
	l.removed = true
	byEvent := l.doc.listeners[l.node]
	ls := byEvent[l.event]
	for i, other := range ls {
		if other == l {
			byEvent[l.event] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(byEvent[l.event]) == 0 {
		delete(byEvent, l.event)
	}
	if len(byEvent) == 0 {
		delete(l.doc.listeners, l.node)
	}
}

type observer struct {
	doc          *Document
	node         *html.Node
	fn           func(dom.MutationRecord)
	disconnected bool
}

// Disconnect implements dom.Observer. It is safe to call more than once.
func (o *observer) Disconnect() {
	if o.disconnected {
		return
	}
	o.disconnected = true
	obs := o.doc.observers[o.node]
	for i, other := range obs {
		if other == o {
			o.doc.observers[o.node] = append(obs[:i:i], obs[i+1:]...)
			break
		}
	}
	if len(o.doc.observers[o.node]) == 0 {
		delete(o.doc.observers, o.node)
	}
}

// AddEventListener implements dom.Element.
func (e *Element) AddEventListener(event string, fn func(dom.Event)) dom.Listener {
	l := &listener{doc: e.doc, node: e.node, event: event, fn: fn}
	byEvent := e.doc.listeners[e.node]
	if byEvent == nil {
		byEvent = make(map[string][]*listener)
		e.doc.listeners[e.node] = byEvent
	}
	byEvent[event] = append(byEvent[event], l)
	return l
}

// ObserveAttributes implements dom.Element.
func (e *Element) ObserveAttributes(fn func(dom.MutationRecord)) dom.Observer {
	o := &observer{doc: e.doc, node: e.node, fn: fn}
	e.doc.observers[e.node] = append(e.doc.observers[e.node], o)
	return o
}

// Dispatch delivers ev to the listeners registered on e for ev.Type() and
// returns how many ran. Listeners removed during dispatch do not run.
func (e *Element) Dispatch(ev dom.Event) int {
	ls := append([]*listener(nil), e.doc.listeners[e.node][ev.Type()]...)
	n := 0
	for _, l := range ls {
		if l.removed {
			continue
		}
		l.fn(ev)
		n++
	}
	return n
}

func (e *Element) notify(name, old string, had bool) {
	obs := append([]*observer(nil), e.doc.observers[e.node]...)
	if len(obs) == 0 {
		return
	}
	rec := dom.MutationRecord{
		Target:        e,
		AttributeName: name,
		OldValue:      old,
		HadOldValue:   had,
	}
	for _, o := range obs {
		if o.disconnected {
			continue
		}
		o.fn(rec)
	}
}
