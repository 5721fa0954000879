package livebind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/livefir/livebind/datamodel"
	"github.com/livefir/livebind/internal/memory"
	"github.com/livefir/livebind/internal/metrics"
	"github.com/livefir/livebind/internal/sanitize"
	"github.com/livefir/livebind/internal/session"
	"github.com/livefir/livebind/internal/store"
	"github.com/livefir/livebind/internal/token"
	"github.com/livefir/livebind/memdom"
)

const (
	groupCookie  = "livebind-id"
	rootID       = "livebind-root"
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// ErrBridgeClosed is returned for work submitted after Bridge.Close.
var ErrBridgeClosed = errors.New("livebind: bridge closed")

// MountConfig configures the websocket bridge
type MountConfig struct {
	Upgrader     *websocket.Upgrader
	Logger       *log.Logger
	Metrics      *metrics.Collector
	Store        *store.Store // Optional snapshot persistence
	Resolver     ChildResolver
	Handlers     func(r *EventRouter, rec *datamodel.Record)
	Title        string
	TokenTTL     time.Duration
	SessionTTL   time.Duration
	JanitorEvery time.Duration
	Minify       bool
	MemoryMB     int // Budget for markup held by live views; 0 uses the default
}

// MountOption is a functional option for configuring Mount
type MountOption func(*MountConfig)

// WithUpgrader replaces the default websocket upgrader
func WithUpgrader(u *websocket.Upgrader) MountOption {
	return func(c *MountConfig) {
		c.Upgrader = u
	}
}

// WithMountLogger sets the bridge and view logger
func WithMountLogger(logger *log.Logger) MountOption {
	return func(c *MountConfig) {
		c.Logger = logger
	}
}

// WithMountMetrics shares collector between the bridge and its views
func WithMountMetrics(collector *metrics.Collector) MountOption {
	return func(c *MountConfig) {
		c.Metrics = collector
	}
}

// WithStore persists each group's record in s
func WithStore(s *store.Store) MountOption {
	return func(c *MountConfig) {
		c.Store = s
	}
}

// WithMountChildResolver sets how views render non-literal children
func WithMountChildResolver(r ChildResolver) MountOption {
	return func(c *MountConfig) {
		c.Resolver = r
	}
}

// WithHandlers registers host event handlers. fn runs once per session group
// with that group's router and record; handlers run on the group's goroutine
// and may write the record directly.
func WithHandlers(fn func(r *EventRouter, rec *datamodel.Record)) MountOption {
	return func(c *MountConfig) {
		c.Handlers = fn
	}
}

// WithTitle sets the page title
func WithTitle(title string) MountOption {
	return func(c *MountConfig) {
		c.Title = title
	}
}

// WithTokenTTL sets how long a served page may take to open its connection
func WithTokenTTL(ttl time.Duration) MountOption {
	return func(c *MountConfig) {
		c.TokenTTL = ttl
	}
}

// WithSessionTTL sets how long an idle session is kept
func WithSessionTTL(ttl time.Duration) MountOption {
	return func(c *MountConfig) {
		c.SessionTTL = ttl
	}
}

// WithMemoryLimit caps the markup held by all live views of the bridge.
func WithMemoryLimit(mb int) MountOption {
	return func(c *MountConfig) {
		c.MemoryMB = mb
	}
}

// WithMinify toggles minification of outbound markup
func WithMinify(enabled bool) MountOption {
	return func(c *MountConfig) {
		c.Minify = enabled
	}
}

// Bridge serves a component over HTTP and keeps browser views in sync with a
// shared record per session group. Every group has one goroutine that owns
// its record and headless views, so controllers stay single-threaded.
type Bridge struct {
	def      *Definition
	config   MountConfig
	tokens   *token.Service
	sessions *session.Manager
	memory   *memory.Manager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	hubs   map[string]*hub
	closed bool
}

// Mount creates an http.Handler serving def. GET renders the page; a
// websocket upgrade on the same path opens the live view.
func Mount(def *Definition, opts ...MountOption) (*Bridge, error) {
	if def == nil {
		return nil, errors.New("livebind: mount requires a definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	config := MountConfig{
		Upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		Logger:       log.Default(),
		Metrics:      metrics.NewCollector(),
		Title:        def.Name,
		TokenTTL:     time.Hour,
		SessionTTL:   24 * time.Hour,
		JanitorEvery: time.Minute,
		Minify:       true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Title == "" {
		config.Title = "livebind"
	}

	tokens, err := token.NewService(token.Config{TTL: config.TokenTTL})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		def:      def,
		config:   config,
		tokens:   tokens,
		sessions: session.NewManager(config.SessionTTL),
		memory:   memory.NewManager(memory.Config{MaxMemoryMB: config.MemoryMB}),
		ctx:      ctx,
		cancel:   cancel,
		hubs:     make(map[string]*hub),
	}
	b.wg.Add(1)
	go b.janitor()
	return b, nil
}

// janitor expires idle sessions and spent nonces, then stops groups nobody
// is using.
func (b *Bridge) janitor() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.config.JanitorEvery)
	defer ticker.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if n := b.sessions.CleanupExpiredSessions(); n > 0 {
				b.config.Logger.Printf("livebind: expired %d sessions", n)
			}
			b.tokens.CleanupExpiredNonces()
			if n := b.reapHubs(); n > 0 {
				b.config.Logger.Printf("livebind: stopped %d idle groups", n)
			}
		}
	}
}

// reapHubs stops every group with no caller inside it and no unexpired
// session, so no view can still attach. The record is saved first when a
// store is set; otherwise it is dropped with the group.
func (b *Bridge) reapHubs() int {
	live := b.sessions.Groups()

	b.mu.Lock()
	var idle []*hub
	for group, h := range b.hubs {
		if h.users > 0 {
			continue
		}
		if _, ok := live[group]; ok {
			continue
		}
		delete(b.hubs, group)
		idle = append(idle, h)
	}
	b.mu.Unlock()

	for _, h := range idle {
		h.call(h.save)
		close(h.done)
	}
	return len(idle)
}

// Close stops every group, disconnecting their views. It is safe to call
// more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	hubs := make([]*hub, 0, len(b.hubs))
	for _, h := range b.hubs {
		hubs = append(hubs, h)
	}
	b.mu.Unlock()

	b.cancel()
	for _, h := range hubs {
		close(h.done)
	}
	b.wg.Wait()
	return nil
}

// Metrics returns a snapshot of binding activity across all views.
func (b *Bridge) Metrics() metrics.BindingMetrics {
	return b.config.Metrics.GetMetrics()
}

// MemoryStatus reports the markup held by live views against the budget.
func (b *Bridge) MemoryStatus() memory.Status {
	return b.memory.GetStatus()
}

// Update writes values into group's record from the server side and pushes
// the result to the group's views.
func (b *Bridge) Update(group string, values map[string]any) error {
	h, err := b.hub(group)
	if err != nil {
		return err
	}
	defer b.release(h)
	var updateErr error
	if !h.call(func() {
		updateErr = h.record.Update(values)
		h.settle()
	}) {
		return ErrBridgeClosed
	}
	return updateErr
}

// Snapshot returns group's current record values.
func (b *Bridge) Snapshot(group string) (map[string]any, error) {
	h, err := b.hub(group)
	if err != nil {
		return nil, err
	}
	defer b.release(h)
	return h.record.Snapshot(), nil
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		b.handleWebSocket(w, r)
		return
	}
	b.handleHTTP(w, r)
}

func (b *Bridge) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	group := groupFromRequest(r)
	if group == "" {
		group = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     groupCookie,
			Value:    group,
			Path:     "/",
			MaxAge:   365 * 24 * 60 * 60,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	sess, err := b.sessions.CreateSession(group, b.def.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tok, err := b.tokens.Issue(b.def.Name, sess.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b.config.Metrics.IncrementTokenGenerated()

	h, err := b.hub(group)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer b.release(h)

	var (
		data    pageData
		viewErr error
	)
	if !h.call(func() {
		v, err := h.newView(nil)
		if err != nil {
			viewErr = err
			return
		}
		defer v.close()
		frame := v.frame()
		data = pageData{
			Title:  b.config.Title,
			Token:  tok,
			Class:  frame.Root["class"],
			Style:  template.CSS(frame.Root["style"]),
			Markup: template.HTML(frame.HTML),
			Client: newClientConfig(b.def, h.events, h.record.ID(), tok),
		}
	}) {
		http.Error(w, ErrBridgeClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if viewErr != nil {
		http.Error(w, viewErr.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := renderPage(&buf, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (b *Bridge) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := b.tokens.Verify(r.URL.Query().Get("token"), b.def.Name)
	if err != nil {
		b.config.Metrics.IncrementTokenFailure()
		http.Error(w, "invalid view token", http.StatusUnauthorized)
		return
	}
	b.config.Metrics.IncrementTokenVerified()

	sess, ok := b.sessions.GetSession(claims.SessionID)
	if !ok {
		http.Error(w, "session expired", http.StatusUnauthorized)
		return
	}
	defer b.sessions.DeleteSession(sess.ID)

	h, err := b.hub(sess.Group)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer b.release(h)

	conn, err := b.config.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.config.Logger.Printf("livebind: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var v *view
	if !h.call(func() {
		v, err = h.newView(conn)
		if err == nil {
			err = b.memory.Allocate(v.id, int64(len(v.target.InnerHTML())))
			if err != nil {
				h.removeView(v)
			}
		}
		if err == nil {
			h.flush()
		}
	}) || err != nil {
		if err != nil {
			b.config.Logger.Printf("livebind: view setup failed: %v", err)
		}
		return
	}
	go v.writePump(v.send)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.config.Logger.Printf("livebind: websocket error: %v", err)
			}
			break
		}

		msg, err := parseClientMessage(data)
		if err != nil {
			if !h.call(func() { v.sendError(err) }) {
				break
			}
			continue
		}
		if !h.call(func() {
			v.apply(msg)
			h.settle()
		}) {
			break
		}
	}

	h.call(func() { h.removeView(v) })
}

// hub returns the running hub for group, starting it on first use. The
// caller must release it when done.
func (b *Bridge) hub(group string) (*hub, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBridgeClosed
	}
	if h, ok := b.hubs[group]; ok {
		h.users++
		return h, nil
	}
	h, err := newHub(b, group)
	if err != nil {
		return nil, err
	}
	h.users = 1
	b.hubs[group] = h
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		h.run()
	}()
	return h, nil
}

func (b *Bridge) release(h *hub) {
	b.mu.Lock()
	h.users--
	b.mu.Unlock()
}

func groupFromRequest(r *http.Request) string {
	if c, err := r.Cookie(groupCookie); err == nil {
		return c.Value
	}
	return ""
}

type pendingEvent struct {
	view *view
	ev   DOMEvent
}

// hub owns one group's record and views. Everything touching them runs on
// the hub goroutine through call.
type hub struct {
	bridge  *Bridge
	group   string
	record  *datamodel.Record
	router  *EventRouter
	events  EventsSpec
	views   map[*view]struct{}
	pending []pendingEvent
	changed bool
	users   int // guarded by bridge.mu

	work chan func()
	done chan struct{}
}

func newHub(b *Bridge, group string) (*hub, error) {
	rec, err := b.def.NewRecord()
	if err != nil {
		return nil, err
	}
	h := &hub{
		bridge: b,
		group:  group,
		record: rec,
		router: NewEventRouter(b.def),
		views:  make(map[*view]struct{}),
		work:   make(chan func()),
		done:   make(chan struct{}),
	}

	if s := b.config.Store; s != nil {
		values, ok, err := s.Load(b.ctx, b.def.Name, group)
		if err != nil {
			return nil, err
		}
		if ok {
			restore := make(map[string]any, len(values))
			for k, v := range values {
				if rec.Has(k) {
					restore[k] = v
				}
			}
			if err := rec.Update(restore); err != nil {
				b.config.Logger.Printf("livebind: discarding snapshot for %s: %v", group, err)
			}
		}
	}
	for _, field := range rec.Fields() {
		rec.Subscribe(field, func() { h.changed = true })
	}

	if b.config.Handlers != nil {
		b.config.Handlers(h.router, rec)
	}
	h.events = MergeEvents(b.def.Events, h.router.Registered())
	return h, nil
}

func (h *hub) run() {
	for {
		select {
		case fn := <-h.work:
			fn()
		case <-h.done:
			for v := range h.views {
				h.removeView(v)
			}
			return
		}
	}
}

// call runs fn on the hub goroutine and waits for it. It reports false if
// the hub stopped first.
func (h *hub) call(fn func()) bool {
	finished := make(chan struct{})
	select {
	case h.work <- func() { fn(); close(finished) }:
	case <-h.done:
		return false
	}
	select {
	case <-finished:
		return true
	case <-h.done:
		return false
	}
}

// settle delivers queued DOM events to the host handlers and their views,
// then persists and pushes the resulting state.
func (h *hub) settle() {
	for len(h.pending) > 0 {
		batch := h.pending
		h.pending = nil
		for _, p := range batch {
			h.router.Emit(p.ev)
			if _, live := h.views[p.view]; live {
				ev := p.ev
				p.view.write(Frame{Type: FrameEvent, Event: &ev})
			}
		}
	}
	h.save()
	h.flush()
}

func (h *hub) save() {
	s := h.bridge.config.Store
	if s == nil || !h.changed {
		return
	}
	h.changed = false
	snap := h.record.Snapshot()
	delete(snap, "id")
	if err := s.Save(h.bridge.ctx, h.bridge.def.Name, h.group, snap); err != nil {
		h.bridge.config.Logger.Printf("livebind: %v", err)
	}
}

// flush sends a render frame to every view whose markup changed.
func (h *hub) flush() {
	for v := range h.views {
		if !v.dirty {
			continue
		}
		v.dirty = false
		f := v.frame()
		if f.HTML == v.last {
			continue
		}
		if err := h.bridge.memory.Update(v.id, int64(len(f.HTML))); err != nil {
			h.bridge.config.Logger.Printf("livebind: closing view in group %s: %v", h.group, err)
			h.removeView(v)
			continue
		}
		v.last = f.HTML
		v.write(f)
	}
}

func (h *hub) removeView(v *view) {
	if _, ok := h.views[v]; !ok {
		return
	}
	delete(h.views, v)
	h.bridge.memory.Release(v.id)
	v.close()
}

// view is one headless copy of the component bound to the group record.
// Views without a connection render the initial page.
type view struct {
	id     string
	hub    *hub
	conn   *websocket.Conn
	doc    *memdom.Document
	target *memdom.Element
	ctrl   *Controller
	send   chan []byte
	closed bool
	dirty  bool
	last   string
}

func (h *hub) newView(conn *websocket.Conn) (*view, error) {
	cfg := h.bridge.config
	doc := memdom.NewDocument()
	if err := doc.Body().SetInnerHTML(`<div id="` + rootID + `"></div>`); err != nil {
		return nil, err
	}
	v := &view{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		doc:    doc,
		target: doc.Element(rootID),
	}

	opts := []Option{
		WithLogger(cfg.Logger),
		WithMetrics(cfg.Metrics),
		WithEmitter(EmitterFunc(func(ev DOMEvent) {
			h.pending = append(h.pending, pendingEvent{view: v, ev: ev})
		})),
		WithLayout(StyleSizer{OnInvalidate: func() { v.dirty = true }}),
		WithErrorHandler(ErrorHandlerFunc(v.sendError)),
	}
	if cfg.Resolver != nil {
		opts = append(opts, WithChildResolver(cfg.Resolver))
	}
	ctrl, err := New(h.bridge.def, doc, v.target, h.record, opts...)
	if err != nil {
		return nil, err
	}
	v.ctrl = ctrl
	if err := ctrl.SetEvents(h.events); err != nil {
		return nil, err
	}
	if err := ctrl.Render(); err != nil {
		ctrl.Dispose()
		return nil, err
	}

	if conn != nil {
		v.send = make(chan []byte, sendBuffer)
		h.views[v] = struct{}{}
	}
	return v, nil
}

func (v *view) frame() Frame {
	markup := v.target.InnerHTML()
	if v.hub.bridge.config.Minify {
		markup = minifyHTML(markup)
	}
	class, _ := v.target.Attribute("class")
	style, _ := v.target.Attribute("style")
	return Frame{
		Type: FrameRender,
		HTML: markup,
		Root: map[string]string{"class": class, "style": style},
	}
}

// apply writes a client message into the headless DOM. Attribute writes go
// through the controller's observers; a write may re-render the view, so
// the node is looked up again after each one.
func (v *view) apply(msg ClientMessage) {
	id := msg.Node + "-" + v.hub.record.ID()
	el := v.doc.Element(id)
	if el == nil {
		v.sendError(fmt.Errorf("node %q is not rendered", msg.Node))
		return
	}
	for _, name := range sortedKeys(msg.Attrs) {
		value := sanitize.String(msg.Attrs[name])
		if name == "children" {
			if err := el.SetInnerHTML(value); err != nil {
				v.sendError(err)
			}
		} else {
			el.SetAttribute(name, value)
		}
		if el = v.doc.Element(id); el == nil {
			return
		}
	}
	if msg.Type == MessageEvent {
		el.Dispatch(memdom.NewEvent(msg.Event, sanitize.Map(msg.Data)))
	}
}

func (v *view) write(f Frame) {
	if v.send == nil || v.closed {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		v.hub.bridge.config.Logger.Printf("livebind: failed to marshal frame: %v", err)
		return
	}
	select {
	case v.send <- data:
	default:
		v.hub.bridge.config.Logger.Printf("livebind: dropping slow view in group %s", v.hub.group)
		v.conn.Close()
	}
}

func (v *view) sendError(err error) {
	v.write(Frame{Type: FrameError, Message: err.Error()})
}

func (v *view) writePump(send <-chan []byte) {
	for data := range send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			v.conn.Close()
			for range send {
			}
			return
		}
	}
}

func (v *view) close() {
	if v.closed {
		return
	}
	v.closed = true
	v.ctrl.Dispose()
	if v.send != nil {
		close(v.send)
	}
	if v.conn != nil {
		v.conn.Close()
	}
}
