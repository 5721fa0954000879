package livebind

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Wildcard matches any node or any event in EventRouter.On.
const Wildcard = "*"

// NodeEvents maps event names on one anchor to the attrs re-sync flag. In
// YAML a list of names is accepted and every listed event re-syncs.
type NodeEvents map[string]bool

// UnmarshalYAML accepts a mapping or a list of event names.
func (n *NodeEvents) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		out := make(NodeEvents, len(names))
		for _, name := range names {
			out[name] = true
		}
		*n = out
		return nil
	}
	var m map[string]bool
	if err := node.Decode(&m); err != nil {
		return err
	}
	*n = m
	return nil
}

// DOMEvent is the outbound message for a DOM event on a watched anchor.
// Data is the serialised event; Data["type"] is the declared event name or,
// for inline callbacks, the callback id.
type DOMEvent struct {
	Node string         `json:"node"`
	Data map[string]any `json:"data"`
}

// Type returns the event type tag.
func (e DOMEvent) Type() string {
	t, _ := e.Data["type"].(string)
	return t
}

// Emitter receives outbound DOM events. Emit must not block.
type Emitter interface {
	Emit(ev DOMEvent)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev DOMEvent)

// Emit implements Emitter.
func (f EmitterFunc) Emit(ev DOMEvent) {
	f(ev)
}

// MergeEvents combines the declared events with events that only have host
// callbacks registered. Declared flags win; registered-only events get false
// so they are forwarded without re-syncing attrs. Wildcard nodes are not
// listened on directly and are skipped.
func MergeEvents(declared EventsSpec, registered map[string][]string) EventsSpec {
	out := make(EventsSpec, len(declared)+len(registered))
	for node, evs := range declared {
		cp := make(NodeEvents, len(evs))
		for name, flag := range evs {
			cp[name] = flag
		}
		out[node] = cp
	}
	for node, names := range registered {
		if node == Wildcard {
			continue
		}
		evs := out[node]
		if evs == nil {
			evs = make(NodeEvents)
			out[node] = evs
		}
		for _, name := range names {
			if _, ok := evs[name]; !ok {
				evs[name] = false
			}
		}
	}
	return out
}

// EventHandler handles a routed DOM event.
type EventHandler func(ev DOMEvent)

// EventRouter dispatches DOM events to host handlers. It implements Emitter
// and is safe for concurrent use.
type EventRouter struct {
	mu        sync.RWMutex
	nodes     map[string]bool
	callbacks CallbacksSpec
	handlers  map[string]map[string][]EventHandler // node -> event -> handlers
	methods   map[string][]EventHandler
}

// NewEventRouter returns a router for the nodes and inline callbacks of def.
func NewEventRouter(def *Definition) *EventRouter {
	r := &EventRouter{
		nodes:     make(map[string]bool, len(def.Nodes)),
		callbacks: def.Callbacks,
		handlers:  make(map[string]map[string][]EventHandler),
		methods:   make(map[string][]EventHandler),
	}
	for _, n := range def.Nodes {
		r.nodes[n] = true
	}
	return r
}

// On registers fn for event on node. node must be a declared node or
// Wildcard; event may be Wildcard.
func (r *EventRouter) On(node, event string, fn EventHandler) error {
	if node != Wildcard && !r.nodes[node] {
		return fmt.Errorf("named node '%s' not found. Available nodes include: %v", node, sortedKeys(r.nodes))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byEvent := r.handlers[node]
	if byEvent == nil {
		byEvent = make(map[string][]EventHandler)
		r.handlers[node] = byEvent
	}
	byEvent[event] = append(byEvent[event], fn)
	return nil
}

// Method registers the implementation of an inline callback method.
func (r *EventRouter) Method(name string, fn EventHandler) error {
	declared := false
	for _, cbs := range r.callbacks {
		for _, cb := range cbs {
			if cb.Method == name {
				declared = true
			}
		}
	}
	if !declared {
		return fmt.Errorf("callback method '%s' is not referenced by the template", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = append(r.methods[name], fn)
	return nil
}

// Registered returns the events with handlers per concrete node, for
// MergeEvents.
func (r *EventRouter) Registered() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.handlers))
	for node, byEvent := range r.handlers {
		if node == Wildcard {
			continue
		}
		for event := range byEvent {
			if event == Wildcard {
				continue
			}
			out[node] = append(out[node], event)
		}
		sort.Strings(out[node])
	}
	return out
}

// Emit implements Emitter. Handlers run in order: node/event, node/*,
// */event, */*, then inline callback methods declared on the node under
// the event's type tag.
func (r *EventRouter) Emit(ev DOMEvent) {
	typ := ev.Type()

	r.mu.RLock()
	var run []EventHandler
	nodeHandlers := r.handlers[ev.Node]
	starHandlers := r.handlers[Wildcard]
	run = append(run, nodeHandlers[typ]...)
	run = append(run, nodeHandlers[Wildcard]...)
	run = append(run, starHandlers[typ]...)
	run = append(run, starHandlers[Wildcard]...)
	for _, cb := range r.callbacks[ev.Node] {
		if cb.ID == typ {
			run = append(run, r.methods[cb.Method]...)
		}
	}
	r.mu.RUnlock()

	for _, fn := range run {
		fn(ev)
	}
}
