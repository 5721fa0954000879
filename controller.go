package livebind

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/livefir/livebind/dom"
	"github.com/livefir/livebind/internal/coerce"
	"github.com/livefir/livebind/internal/compiler"
	"github.com/livefir/livebind/internal/extract"
	"github.com/livefir/livebind/internal/script"
)

// DataModel is the observable record a view binds to. Subscribers are
// invoked synchronously from Update.
type DataModel interface {
	ID() string
	Has(field string) bool
	Snapshot() map[string]any
	Update(values map[string]any) error
	Subscribe(field string, fn func()) (unsubscribe func())
}

// Phase is the controller lifecycle state.
type Phase int

const (
	Uninitialized Phase = iota
	Rendered
	Updating
	Disposed
)

func (p Phase) String() string {
	switch p {
	case Rendered:
		return "rendered"
	case Updating:
		return "updating"
	case Disposed:
		return "disposed"
	default:
		return "uninitialized"
	}
}

// Controller binds a Definition to a DOM target and a data model. It keeps
// the rendered DOM in sync with the model and writes DOM-side attribute
// changes back into the model.
//
// A Controller is not safe for concurrent use. Every call, including the
// data-model notifications and DOM callbacks it receives, must come from one
// goroutine at a time.
type Controller struct {
	def    *Definition
	doc    dom.Document
	target dom.Element
	data   DataModel
	config Config
	vm     ViewModel

	template string
	program  *compiler.Program
	patterns map[string][]*extract.Pattern
	scripts  map[string][]*script.Script
	methods  map[string]compiler.Callback

	events   EventsSpec
	children ChildrenSpec
	state    map[string]any

	guard     syncGuard
	phase     Phase
	connected bool

	observers   []dom.Observer
	listeners   []dom.Listener
	inline      []dom.Listener
	unsubscribe []func()
}

// New validates def, compiles its template and scripts, and returns an
// unrendered controller. Template and script compile failures are returned
// as *CompileError; definition problems as SpecError.
func New(def *Definition, doc dom.Document, target dom.Element, data DataModel, opts ...Option) (*Controller, error) {
	if def == nil || doc == nil || target == nil || data == nil {
		return nil, errors.New("livebind: definition, document, target and data model are required")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	c := &Controller{
		def:      def,
		doc:      doc,
		target:   target,
		data:     data,
		config:   config,
		vm:       def.Model,
		template: def.Template(),
		patterns: make(map[string][]*extract.Pattern, len(def.Attrs)),
		scripts:  make(map[string][]*script.Script, len(def.Scripts)),
		methods:  make(map[string]compiler.Callback),
		events:   MergeEvents(def.Events, nil),
		children: copyChildren(def.Children),
		state:    make(map[string]any),
	}
	if config.ViewModel != nil {
		c.vm = *config.ViewModel
	}

	var callbacks []compiler.Callback
	for _, anchor := range sortedKeys(def.Callbacks) {
		for _, cb := range def.Callbacks[anchor] {
			callbacks = append(callbacks, compiler.Callback{Element: anchor, ID: cb.ID, Method: cb.Method})
		}
	}
	program, err := compiler.Compile(c.template, callbacks)
	if err != nil {
		return nil, &CompileError{Kind: "template", Source: c.template, Err: err}
	}
	c.program = program
	for _, cb := range program.Callbacks() {
		c.methods[cb.Method] = cb
	}

	for anchor, bindings := range def.Attrs {
		for _, b := range bindings {
			c.patterns[anchor] = append(c.patterns[anchor], extract.Compile(b.Template, b.Tokens))
		}
	}

	for _, trigger := range sortedKeys(def.Scripts) {
		for _, src := range def.Scripts[trigger] {
			src = html.UnescapeString(src)
			s, err := script.Compile(src, def.Nodes, data.ID())
			if err != nil {
				return nil, &CompileError{Kind: "script", Name: trigger, Source: src, Err: err}
			}
			c.scripts[trigger] = append(c.scripts[trigger], s)
		}
	}

	c.config.Metrics.IncrementViewCreated()
	return c, nil
}

// Phase returns the lifecycle state.
func (c *Controller) Phase() Phase {
	return c.phase
}

// State returns the scratch state shared by templates and scripts.
func (c *Controller) State() map[string]any {
	return c.state
}

// Definition returns the bound definition.
func (c *Controller) Definition() *Definition {
	return c.def
}

// Events returns the events currently listened for.
func (c *Controller) Events() EventsSpec {
	return c.events
}

// Render clears the target and performs a full render: view model styling,
// template, children, observers and listeners, then render scripts. The
// first call also subscribes to the data model.
func (c *Controller) Render() error {
	if c.phase == Disposed {
		return ErrDisposed
	}
	if !c.guard.enter(modelToDOM) {
		c.config.Metrics.IncrementDeclined()
		return nil
	}
	c.phase = Updating
	c.syncChildFields()
	c.removeBindings()
	c.target.Clear()
	c.target.SetStyle("background-color", c.vm.Background)
	c.target.SetClasses(c.vm.CSSClasses)
	err := c.renderTemplate()
	c.guard.leave()
	if !c.settle() {
		return ErrDisposed
	}

	c.connect()
	if err != nil {
		return err
	}
	c.config.Layout.Invalidate()
	c.runScripts(RenderTrigger)
	return nil
}

// settle ends an update. A host callout may have disposed the controller
// while it was Updating; that phase is kept and settle reports false.
func (c *Controller) settle() bool {
	if c.phase == Disposed {
		return false
	}
	c.phase = Rendered
	return true
}

// renderTemplate replaces the target's content and re-attaches everything
// that hangs off rendered nodes. The caller holds the guard.
func (c *Controller) renderTemplate() error {
	markup, err := c.program.Render(c.env())
	if err != nil {
		c.config.Metrics.IncrementRenderError()
		rerr := &RenderError{Err: err}
		c.report(rerr)
		return rerr
	}

	c.removeBindings()
	if err := c.target.SetInnerHTML(markup); err != nil {
		c.config.Metrics.IncrementRenderError()
		rerr := &RenderError{Err: err}
		c.report(rerr)
		return rerr
	}
	c.config.Metrics.IncrementRender()

	if kids := c.target.Children(); len(kids) > 0 {
		c.config.Layout.ApplySize(kids[0], c.vm.Sizing)
		if c.phase == Disposed {
			return ErrDisposed
		}
	}
	c.bindInline()
	c.placeChildren()
	if c.phase == Disposed {
		return ErrDisposed
	}
	c.setupObservers()
	c.setupListeners()
	return nil
}

func (c *Controller) env() compiler.Env {
	data := c.data.Snapshot()
	if _, ok := data["id"]; !ok {
		data["id"] = c.data.ID()
	}
	return compiler.Env{
		View:  map[string]any{"id": c.data.ID(), "phase": c.phase.String()},
		Model: c.vm.Vars(),
		Data:  data,
		State: c.state,
	}
}

// relevant reports whether a change to field affects the rendered template.
func (c *Controller) relevant(field string) bool {
	return strings.Contains(c.template, "${"+field+"}") || c.program.References(field)
}

// connect subscribes to every data field once.
func (c *Controller) connect() {
	if c.connected {
		return
	}
	c.connected = true
	for _, field := range sortedKeys(c.data.Snapshot()) {
		if field == "id" && !c.data.Has("id") {
			continue
		}
		field := field
		c.unsubscribe = append(c.unsubscribe, c.data.Subscribe(field, func() {
			c.fieldChanged(field)
		}))
	}
}

// fieldChanged is the model->DOM path for one field.
func (c *Controller) fieldChanged(field string) {
	if c.phase == Disposed {
		return
	}
	if c.guard.held() {
		c.config.Metrics.IncrementDeclined()
		return
	}
	if c.feedsChildren(field) {
		_ = c.Render()
	} else if c.relevant(field) {
		c.update()
		if c.phase == Disposed {
			return
		}
		c.config.Layout.Invalidate()
	}
	c.runScripts(field)
}

func (c *Controller) feedsChildren(field string) bool {
	for _, f := range c.def.ChildFields {
		if f == field {
			return true
		}
	}
	return false
}

// update re-renders the template without clearing view styling.
func (c *Controller) update() {
	if !c.guard.enter(modelToDOM) {
		c.config.Metrics.IncrementDeclined()
		return
	}
	c.phase = Updating
	defer func() {
		c.guard.leave()
		c.settle()
	}()
	_ = c.renderTemplate()
}

// SetChildren replaces the children spec and rebuilds the view.
func (c *Controller) SetChildren(children ChildrenSpec) error {
	if c.phase == Disposed {
		return ErrDisposed
	}
	c.children = copyChildren(children)
	if c.phase == Uninitialized {
		return nil
	}
	return c.Render()
}

// SetEvents replaces the events spec and re-attaches listeners.
func (c *Controller) SetEvents(events EventsSpec) error {
	if c.phase == Disposed {
		return ErrDisposed
	}
	c.events = MergeEvents(events, nil)
	if c.phase == Uninitialized {
		return nil
	}
	c.removeListeners()
	c.setupListeners()
	return nil
}

// RunScripts runs the scripts registered under name. It is how hosts fire
// scripts keyed by names that are not data fields.
func (c *Controller) RunScripts(name string) error {
	if c.phase == Disposed {
		return ErrDisposed
	}
	if len(c.scripts[name]) == 0 {
		return fmt.Errorf("livebind: no scripts registered for %q", name)
	}
	c.runScripts(name)
	return nil
}

func (c *Controller) runScripts(trigger string) {
	scripts := c.scripts[trigger]
	if len(scripts) == 0 || c.phase == Disposed {
		return
	}
	env := script.Env{
		Model: c.vm.Vars(),
		Data:  c.env().Data,
		State: c.state,
		SetData: func(field string, value any) error {
			return c.data.Update(map[string]any{field: value})
		},
		Logger: c.config.Logger,
	}
	for _, s := range scripts {
		if c.phase == Disposed {
			return
		}
		err := s.Run(c.doc, env)
		c.config.Metrics.IncrementScriptRun(err != nil)
		if err == nil {
			continue
		}
		var nf *script.NodeNotFoundError
		if errors.As(err, &nf) {
			c.config.Metrics.IncrementResolutionMiss()
			c.report(&ResolutionError{Node: nf.Node, ID: nf.ID, Op: "execute callback"})
			continue
		}
		c.report(&ScriptError{Trigger: trigger, Err: err})
	}
}

// Dispose disconnects observers, removes listeners and unsubscribes from the
// data model. It is idempotent.
func (c *Controller) Dispose() {
	if c.phase == Disposed {
		return
	}
	c.removeBindings()
	for _, unsub := range c.unsubscribe {
		unsub()
	}
	c.unsubscribe = nil
	c.state = make(map[string]any)
	c.phase = Disposed
	c.config.Metrics.IncrementViewDisposed()
}

func (c *Controller) anchorID(name string) string {
	return name + "-" + c.data.ID()
}

func (c *Controller) resolve(name, op string) dom.Element {
	id := c.anchorID(name)
	el := c.doc.GetElementByID(id)
	if el == nil {
		c.config.Metrics.IncrementResolutionMiss()
		c.report(&ResolutionError{Node: name, ID: id, Op: op})
	}
	return el
}

func (c *Controller) setupObservers() {
	for _, name := range sortedKeys(c.def.Attrs) {
		el := c.resolve(name, "set up MutationObserver")
		if el == nil {
			continue
		}
		name := name
		c.observers = append(c.observers, el.ObserveAttributes(func(dom.MutationRecord) {
			c.updateModel(el, name)
		}))
	}
}

func (c *Controller) setupListeners() {
	for _, node := range sortedKeys(c.events) {
		el := c.resolve(node, "subscribe to DOM events")
		if el == nil {
			continue
		}
		node := node
		_, synced := c.def.Attrs[node]
		for _, name := range sortedKeys(c.events[node]) {
			name, resync := name, c.events[node][name]
			c.listeners = append(c.listeners, el.AddEventListener(name, func(ev dom.Event) {
				c.sendEvent(node, name, ev)
				if synced && resync {
					c.updateModel(el, node)
				}
			}))
		}
	}
}

// bindInline swaps rendered callback markers in on<event> attributes for
// listeners that forward the event tagged with the callback id.
func (c *Controller) bindInline() {
	dom.Walk(c.target, func(el dom.Element) bool {
		for _, attr := range el.Attributes() {
			method, ok := compiler.ParseMarker(attr.Value)
			if !ok || !strings.HasPrefix(attr.Name, "on") {
				continue
			}
			cb, ok := c.methods[method]
			if !ok {
				continue
			}
			el.RemoveAttribute(attr.Name)
			c.inline = append(c.inline, el.AddEventListener(strings.TrimPrefix(attr.Name, "on"), func(ev dom.Event) {
				c.sendEvent(cb.Element, cb.ID, ev)
			}))
		}
		return true
	})
}

func (c *Controller) removeListeners() {
	for _, l := range c.listeners {
		l.Remove()
	}
	c.listeners = nil
}

// removeBindings drops everything attached to rendered nodes.
func (c *Controller) removeBindings() {
	for _, o := range c.observers {
		o.Disconnect()
	}
	c.observers = nil
	c.removeListeners()
	for _, l := range c.inline {
		l.Remove()
	}
	c.inline = nil
}

// sendEvent forwards a DOM event to the emitter with its type set to tag.
func (c *Controller) sendEvent(node, tag string, ev dom.Event) {
	if c.phase == Disposed {
		return
	}
	data := ev.Serialize()
	if data == nil {
		data = make(map[string]any)
	}
	data["type"] = tag
	c.config.Metrics.IncrementEventForwarded()
	c.config.Emitter.Emit(DOMEvent{Node: node, Data: data})
}

// updateModel is the DOM->model path: decode the anchor's attributes and
// write the result in one batched update.
func (c *Controller) updateModel(el dom.Element, anchor string) {
	if c.phase == Disposed {
		return
	}
	if c.guard.held() {
		c.config.Metrics.IncrementDeclined()
		return
	}

	attrs := make(map[string]any)
	for i, b := range c.def.Attrs[anchor] {
		var value string
		if b.Attr == "children" {
			value = el.InnerHTML()
		} else {
			value, _ = el.Attribute(b.Attr)
		}
		found, ok := c.patterns[anchor][i].Match(value)
		if !ok {
			c.config.Metrics.IncrementTokenMismatch()
			c.report(&TokenMismatchError{Node: anchor, Attr: b.Attr, Value: value})
			continue
		}
		for _, tok := range b.Tokens {
			v, ok := found[tok]
			if !ok {
				c.config.Metrics.IncrementTokenMismatch()
				c.report(&TokenMismatchError{Node: anchor, Attr: b.Attr, Value: value, Token: tok})
				continue
			}
			attrs[tok] = v
		}
	}
	if len(attrs) == 0 {
		return
	}

	c.guard.enter(domToModel)
	c.phase = Updating
	err := c.data.Update(coerce.Attrs(attrs))
	c.guard.leave()
	if !c.settle() {
		return
	}
	if err != nil {
		c.report(fmt.Errorf("livebind: update %s from DOM: %w", anchor, err))
		return
	}
	c.config.Metrics.IncrementModelWrite()
}

// report logs a non-fatal error and hands it to the error handler.
func (c *Controller) report(err error) {
	if c.config.Logger != nil {
		msg := err.Error()
		if !strings.HasPrefix(msg, "livebind:") {
			msg = "livebind: " + msg
		}
		c.config.Logger.Print(msg)
	}
	if c.config.ErrorHandler != nil {
		c.config.ErrorHandler.HandleError(err)
	}
}
