package livebind

import (
	"fmt"
	"html"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/livefir/livebind/datamodel"
)

// RenderTrigger is the scripts key that runs after every full render.
const RenderTrigger = "render"

// AttrBinding decodes one attribute of an anchor back into data fields.
// In YAML it may be written as a mapping or as the tuple
// [attr, [tokens...], template].
type AttrBinding struct {
	Attr     string   `yaml:"attr" json:"attr" validate:"required"`
	Tokens   []string `yaml:"tokens" json:"tokens" validate:"dive,required"`
	Template string   `yaml:"template" json:"template"`
}

// UnmarshalYAML accepts the mapping and tuple forms.
func (b *AttrBinding) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		if len(node.Content) != 3 {
			return fmt.Errorf("line %d: attr binding needs [attr, tokens, template], got %d items", node.Line, len(node.Content))
		}
		if err := node.Content[0].Decode(&b.Attr); err != nil {
			return err
		}
		if err := node.Content[1].Decode(&b.Tokens); err != nil {
			return err
		}
		return node.Content[2].Decode(&b.Template)
	}
	type plain AttrBinding
	return node.Decode((*plain)(b))
}

// Callback wires an inline callback on an anchor. ID is the attribute the
// callback was declared on (for example "onclick") and tags forwarded events.
// In YAML it may be written as [id, method].
type Callback struct {
	ID     string `yaml:"id" json:"id" validate:"required"`
	Method string `yaml:"method" json:"method" validate:"required,ident"`
}

// UnmarshalYAML accepts the mapping and tuple forms.
func (c *Callback) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: callback needs [id, method], got %d items", node.Line, len(node.Content))
		}
		if err := node.Content[0].Decode(&c.ID); err != nil {
			return err
		}
		return node.Content[1].Decode(&c.Method)
	}
	type plain Callback
	return node.Decode((*plain)(c))
}

// Child is one entry of a children anchor: literal markup, or an opaque
// reference handed to the ChildResolver. In YAML a scalar is literal markup
// and a mapping {ref: name} is a reference.
type Child struct {
	Markup string `yaml:"markup,omitempty" json:"markup,omitempty"`
	Ref    any    `yaml:"ref,omitempty" json:"ref,omitempty"`
}

// Literal returns a literal markup child.
func Literal(markup string) Child {
	return Child{Markup: markup}
}

// Ref returns a child that is rendered by the resolved child view.
func Ref(ref any) Child {
	return Child{Ref: ref}
}

// IsLiteral reports whether the child is literal markup.
func (c Child) IsLiteral() bool {
	return c.Ref == nil
}

// UnmarshalYAML accepts a scalar or a mapping.
func (c *Child) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&c.Markup)
	}
	type plain Child
	return node.Decode((*plain)(c))
}

// AttrsSpec maps an anchor to the attributes decoded back into data fields.
type AttrsSpec map[string][]AttrBinding

// EventsSpec maps an anchor to event names. A true flag re-syncs the anchor's
// attrs after the event is forwarded.
type EventsSpec map[string]NodeEvents

// CallbacksSpec maps an anchor to its inline callbacks.
type CallbacksSpec map[string][]Callback

// ScriptsSpec maps a data field, RenderTrigger or a free name to scripts.
type ScriptsSpec map[string][]string

// ChildrenSpec maps an anchor to its ordered children.
type ChildrenSpec map[string][]Child

// FieldSpec declares a typed data field for definitions that carry their own
// data model.
type FieldSpec struct {
	Name    string `yaml:"name" json:"name" validate:"required,ident"`
	Kind    string `yaml:"kind" json:"kind" validate:"omitempty,oneof=any bool boolean number int integer float string str list dict map"`
	Default any    `yaml:"default" json:"default"`
}

// Definition is a component: the template plus everything needed to bind it.
// It is loaded once and treated as immutable.
type Definition struct {
	Name      string        `yaml:"name" json:"name"`
	HTML      string        `yaml:"html" json:"html" validate:"required"`
	Nodes     []string      `yaml:"nodes" json:"nodes" validate:"unique,dive,required,ident"`
	Attrs     AttrsSpec     `yaml:"attrs" json:"attrs" validate:"dive,keys,required,endkeys,dive"`
	Events    EventsSpec    `yaml:"events" json:"events" validate:"dive,keys,required,endkeys,dive,keys,required,endkeys"`
	Callbacks CallbacksSpec `yaml:"callbacks" json:"callbacks" validate:"dive,keys,required,endkeys,dive"`
	Scripts   ScriptsSpec   `yaml:"scripts" json:"scripts" validate:"dive,keys,required,endkeys,dive,required"`
	Children  ChildrenSpec  `yaml:"children" json:"children" validate:"dive,keys,required,endkeys"`
	Looped    []string      `yaml:"looped" json:"looped" validate:"unique,dive,required"`
	Fields    []FieldSpec   `yaml:"fields" json:"fields" validate:"dive"`
	Model     ViewModel     `yaml:"model" json:"model"`

	// ChildFields feeds a children anchor from a list data field.
	ChildFields map[string]string `yaml:"child_fields" json:"child_fields" validate:"dive,keys,required,endkeys,required"`
}

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	validate     = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Template returns the HTML template, entity-decoded once.
func (d *Definition) Template() string {
	return html.UnescapeString(d.HTML)
}

// Validate checks struct constraints and cross references between the anchor maps.
// Every anchor named by attrs, events, callbacks or non-looped children must
// be a declared node, and every looped anchor must have a children entry.
func (d *Definition) Validate() error {
	var errs SpecError
	if err := validate.Struct(d); err != nil {
		errs = append(errs, validationToSpecError(err)...)
	}

	nodes := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		nodes[n] = true
	}
	check := func(section string, names []string) {
		for _, name := range names {
			if !nodes[name] {
				errs = append(errs, FieldError{
					Field:   section + "." + name,
					Message: fmt.Sprintf("anchor %q is not a declared node (nodes: %v)", name, d.Nodes),
				})
			}
		}
	}
	check("attrs", sortedKeys(d.Attrs))
	check("events", sortedKeys(d.Events))
	check("callbacks", sortedKeys(d.Callbacks))
	var plain []string
	for _, name := range sortedKeys(d.Children) {
		if !d.IsLooped(name) {
			plain = append(plain, name)
		}
	}
	check("children", plain)
	check("child_fields", sortedKeys(d.ChildFields))

	for _, name := range d.Looped {
		if _, ok := d.Children[name]; !ok {
			errs = append(errs, FieldError{
				Field:   "looped." + name,
				Message: fmt.Sprintf("looped anchor %q has no children entry", name),
			})
		}
	}

	for anchor, bindings := range d.Attrs {
		for i, b := range bindings {
			seen := make(map[string]bool, len(b.Tokens))
			for _, tok := range b.Tokens {
				if seen[tok] {
					errs = append(errs, FieldError{
						Field:   fmt.Sprintf("attrs.%s[%d].tokens", anchor, i),
						Message: fmt.Sprintf("token %q declared twice", tok),
					})
				}
				seen[tok] = true
			}
		}
	}

	for _, f := range d.Fields {
		if f.Kind == "" {
			continue
		}
		kind, err := datamodel.ParseKind(f.Kind)
		if err != nil {
			continue // reported by the oneof tag
		}
		if f.Default != nil {
			if _, err := datamodel.New([]datamodel.Field{{Name: f.Name, Kind: kind, Default: f.Default}}); err != nil {
				errs = append(errs, FieldError{Field: "fields." + f.Name, Message: err.Error()})
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IsLooped reports whether anchor expands per child index.
func (d *Definition) IsLooped(anchor string) bool {
	for _, l := range d.Looped {
		if l == anchor {
			return true
		}
	}
	return false
}

// NewRecord builds a datamodel.Record from the declared fields.
func (d *Definition) NewRecord(opts ...datamodel.Option) (*datamodel.Record, error) {
	fields := make([]datamodel.Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		kind := datamodel.Any
		if f.Kind != "" {
			k, err := datamodel.ParseKind(f.Kind)
			if err != nil {
				return nil, err
			}
			kind = k
		}
		fields = append(fields, datamodel.Field{Name: f.Name, Kind: kind, Default: f.Default})
	}
	return datamodel.New(fields, opts...)
}

// ParseDefinition decodes and validates a YAML definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadDefinition reads a YAML definition from path.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}
	d, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// validationToSpecError converts validator errors into field errors keyed by
// their YAML path.
func validationToSpecError(err error) SpecError {
	var out SpecError
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return SpecError{{Field: "definition", Message: err.Error()}}
	}
	for _, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "Definition.")
		var message string
		switch e.Tag() {
		case "required":
			message = "is required"
		case "ident":
			message = fmt.Sprintf("%q is not a valid identifier", e.Value())
		case "unique":
			message = "contains duplicates"
		case "oneof":
			message = fmt.Sprintf("must be one of %s", e.Param())
		default:
			message = fmt.Sprintf("failed %s validation", e.Tag())
		}
		out = append(out, FieldError{Field: field, Message: message})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
