// Package datamodel provides an observable record of named, typed fields. It
// is the reference data model hosts bind views to: every write notifies the
// subscribers of the fields whose value actually changed.
package datamodel

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind constrains the values a field accepts.
type Kind int

const (
	Any Kind = iota
	Bool
	Number
	String
	List
	Dict
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case List:
		return "list"
	case Dict:
		return "dict"
	default:
		return "any"
	}
}

// ParseKind maps a kind name as written in definitions to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "", "any":
		return Any, nil
	case "bool", "boolean":
		return Bool, nil
	case "number", "int", "integer", "float":
		return Number, nil
	case "string", "str":
		return String, nil
	case "list":
		return List, nil
	case "dict", "map":
		return Dict, nil
	}
	return Any, fmt.Errorf("unknown field kind %q", name)
}

// Field declares one record field.
type Field struct {
	Name    string
	Kind    Kind
	Default any
}

// FieldError reports a rejected write.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Msg)
}

type subscription struct {
	fn     func()
	active atomic.Bool
}

// Record is an observable set of fields with a stable id. It is safe for
// concurrent use; subscribers run on the writing goroutine after the write
// lock is released.
type Record struct {
	id     string
	mu     sync.RWMutex
	kinds  map[string]Kind
	values map[string]any
	order  []string
	subs   map[string][]*subscription
}

// Option configures a Record.
type Option func(*Record)

// WithID fixes the record id instead of generating one.
func WithID(id string) Option {
	return func(r *Record) {
		r.id = id
	}
}

// New creates a record with the declared fields set to their defaults.
func New(fields []Field, opts ...Option) (*Record, error) {
	r := &Record{
		id:     uuid.NewString(),
		kinds:  make(map[string]Kind, len(fields)),
		values: make(map[string]any, len(fields)),
		subs:   make(map[string][]*subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("datamodel: field with empty name")
		}
		if _, dup := r.kinds[f.Name]; dup {
			return nil, fmt.Errorf("datamodel: duplicate field %q", f.Name)
		}
		v, err := normalize(f.Kind, f.Default)
		if err != nil {
			return nil, &FieldError{Field: f.Name, Msg: "default: " + err.Error()}
		}
		r.kinds[f.Name] = f.Kind
		r.values[f.Name] = v
		r.order = append(r.order, f.Name)
	}
	return r, nil
}

// FromValues creates a record of untyped fields from values. Fields are
// ordered by name.
func FromValues(values map[string]any, opts ...Option) *Record {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name, Kind: Any, Default: values[name]}
	}
	// Any-kind fields with distinct names cannot fail.
	r, _ := New(fields, opts...)
	return r
}

// ID returns the record's stable identifier.
func (r *Record) ID() string {
	return r.id
}

// Fields returns the declared field names in declaration order.
func (r *Record) Fields() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Has reports whether field is declared.
func (r *Record) Has(field string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[field]
	return ok
}

// Get returns the current value of field.
func (r *Record) Get(field string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[field]
	return v, ok
}

// Snapshot returns a copy of every field value plus "id" unless a field of
// that name is declared.
func (r *Record) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.values)+1)
	out["id"] = r.id
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Set writes a single field.
func (r *Record) Set(field string, value any) error {
	return r.Update(map[string]any{field: value})
}

// Update writes several fields as one batch. Every value is validated before
// any is applied; subscribers of changed fields are then notified in
// declaration order.
func (r *Record) Update(values map[string]any) error {
	r.mu.Lock()
	normalized := make(map[string]any, len(values))
	for field, v := range values {
		kind, ok := r.kinds[field]
		if !ok {
			r.mu.Unlock()
			return &FieldError{Field: field, Msg: "not declared"}
		}
		nv, err := normalize(kind, v)
		if err != nil {
			r.mu.Unlock()
			return &FieldError{Field: field, Msg: err.Error()}
		}
		normalized[field] = nv
	}

	var notify []func()
	for _, field := range r.order {
		nv, ok := normalized[field]
		if !ok || reflect.DeepEqual(r.values[field], nv) {
			continue
		}
		r.values[field] = nv
		for _, s := range r.subs[field] {
			if s.active.Load() {
				s := s
				notify = append(notify, func() {
					if s.active.Load() {
						s.fn()
					}
				})
			}
		}
	}
	r.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
	return nil
}

// Subscribe registers fn to run after field changes. The returned function
// removes the subscription and may be called more than once.
func (r *Record) Subscribe(field string, fn func()) func() {
	s := &subscription{fn: fn}
	s.active.Store(true)
	r.mu.Lock()
	r.subs[field] = append(r.subs[field], s)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if !s.active.Swap(false) {
			return
		}
		subs := r.subs[field]
		for i, other := range subs {
			if other == s {
				r.subs[field] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions across fields.
func (r *Record) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, subs := range r.subs {
		n += len(subs)
	}
	return n
}

func normalize(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case Bool:
		if _, ok := v.(bool); !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
	case Number:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		return f, nil
	case String:
		if _, ok := v.(string); !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
	case List:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected list, got %T", v)
		}
	case Dict:
		if reflect.ValueOf(v).Kind() != reflect.Map {
			return nil, fmt.Errorf("expected dict, got %T", v)
		}
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
