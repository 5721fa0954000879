// Package compiler turns an HTML template with ${...} interpolation sites into
// a Program that renders markup from a view model, a data snapshot and
// per-view state.
//
// Every site is classified once at compile time:
//
//	${model.width}   read from the view model
//	${handleClick}   an inline callback declared for some element
//	${count + 1}     anything else is read from the data model (data.count + 1)
//
// Site expressions are expr-lang programs evaluated against an explicit
// variable table holding view, model, data and state.
package compiler

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
)

// markerPrefix tags rendered callback sites so the caller can swap them for
// real event listeners once the markup is in the DOM.
const markerPrefix = "livebind:callback:"

// handlerAttr matches template text ending in an on<event>= attribute opener.
var handlerAttr = regexp.MustCompile(`(?i)\son[a-z]+\s*=\s*(["']?)$`)

// SiteKind classifies an interpolation site.
type SiteKind int

const (
	// SiteData reads from the data model.
	SiteData SiteKind = iota
	// SiteModel reads from the view model.
	SiteModel
	// SiteCallback refers to an inline callback method.
	SiteCallback
)

func (k SiteKind) String() string {
	switch k {
	case SiteModel:
		return "model"
	case SiteCallback:
		return "callback"
	default:
		return "data"
	}
}

// Callback declares that method, when referenced from the template, forwards
// DOM events for Element tagged with ID.
type Callback struct {
	Element string
	ID      string
	Method  string
}

// Site is a compiled interpolation site.
type Site struct {
	Kind   SiteKind
	Source string // expression as written in the template
	Expr   string // expression after qualification
	Method string // set for SiteCallback
	Pos    int

	program *vm.Program
}

// Env is the variable table a Program renders against.
type Env struct {
	View  any
	Model map[string]any
	Data  map[string]any
	State map[string]any
}

// Program is a compiled template. It is immutable and safe to render
// repeatedly.
type Program struct {
	template  string
	parts     []part
	sites     []*Site
	callbacks []Callback
	refs      map[string]bool
}

// Compile scans template and compiles each site. Callbacks are deduplicated by
// method name; the first declaration of a method wins.
func Compile(template string, callbacks []Callback) (*Program, error) {
	parts, raw, err := scan(template)
	if err != nil {
		return nil, err
	}

	p := &Program{
		template: template,
		parts:    parts,
		refs:     make(map[string]bool),
	}

	methods := make(map[string]bool)
	for _, cb := range callbacks {
		if methods[cb.Method] {
			continue
		}
		methods[cb.Method] = true
		p.callbacks = append(p.callbacks, cb)
	}

	for _, rs := range raw {
		src := strings.TrimSpace(rs.body)
		if src == "" {
			return nil, &SyntaxError{Pos: rs.pos, Msg: "empty interpolation"}
		}
		site := &Site{Source: src, Pos: rs.pos}
		switch {
		case strings.HasPrefix(src, "model."):
			site.Kind = SiteModel
			site.Expr = src
		case methods[src]:
			if !inHandlerAttr(template, rs) {
				return nil, &SyntaxError{Pos: rs.pos, Msg: fmt.Sprintf("callback ${%s} must be the whole value of an on<event> attribute", src)}
			}
			site.Kind = SiteCallback
			site.Method = src
			p.sites = append(p.sites, site)
			continue
		default:
			site.Kind = SiteData
			site.Expr = "data." + src
		}

		collector := &refCollector{refs: p.refs}
		program, err := expr.Compile(site.Expr, expr.Patch(collector))
		if err != nil {
			return nil, fmt.Errorf("offset %d: compile ${%s}: %w", rs.pos, src, err)
		}
		site.program = program
		p.sites = append(p.sites, site)
	}

	return p, nil
}

// inHandlerAttr reports whether site is the entire value of an on<event>
// attribute, the only place a callback marker can be bound.
func inHandlerAttr(template string, site rawSite) bool {
	m := handlerAttr.FindStringSubmatch(template[:site.pos])
	if m == nil {
		return false
	}
	rest := template[site.pos+len(site.body)+3:]
	if quote := m[1]; quote != "" {
		return strings.HasPrefix(rest, quote)
	}
	return rest == "" || strings.ContainsAny(rest[:1], " \t\r\n/>")
}

// Render evaluates every site and returns the resulting markup. Values are
// HTML-escaped; callback sites render as markers (see ParseMarker).
func (p *Program) Render(env Env) (string, error) {
	vars := map[string]any{
		"view":  env.View,
		"model": env.Model,
		"data":  env.Data,
		"state": env.State,
	}

	var b strings.Builder
	b.Grow(len(p.template))
	for _, pt := range p.parts {
		if pt.site < 0 {
			b.WriteString(pt.literal)
			continue
		}
		site := p.sites[pt.site]
		if site.Kind == SiteCallback {
			b.WriteString(CallbackMarker(site.Method))
			continue
		}
		out, err := expr.Run(site.program, vars)
		if err != nil {
			return "", fmt.Errorf("render ${%s}: %w", site.Source, err)
		}
		b.WriteString(html.EscapeString(Format(out)))
	}
	return b.String(), nil
}

// References reports whether any data site reads field.
func (p *Program) References(field string) bool {
	return p.refs[field]
}

// Callbacks returns the deduplicated callback declarations.
func (p *Program) Callbacks() []Callback {
	return p.callbacks
}

// Sites returns the compiled sites in template order.
func (p *Program) Sites() []*Site {
	return p.sites
}

// Template returns the source template.
func (p *Program) Template() string {
	return p.template
}

// CallbackMarker is the rendered form of a callback site.
func CallbackMarker(method string) string {
	return markerPrefix + method
}

// ParseMarker extracts the method name from a rendered callback marker.
func ParseMarker(value string) (string, bool) {
	if !strings.HasPrefix(value, markerPrefix) {
		return "", false
	}
	method := value[len(markerPrefix):]
	return method, method != ""
}

// Format renders a site value the way a browser stringifies it.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case []any:
		items := make([]string, len(x))
		for i, item := range x {
			items[i] = Format(item)
		}
		return strings.Join(items, ",")
	case []string:
		return strings.Join(x, ",")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	// Exponent form without zero padding: 1e-7, 1e+21.
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

// refCollector records data fields read through `data.<field>`.
type refCollector struct {
	refs map[string]bool
}

func (r *refCollector) Visit(node *ast.Node) {
	member, ok := (*node).(*ast.MemberNode)
	if !ok {
		return
	}
	ident, ok := member.Node.(*ast.IdentifierNode)
	if !ok || ident.Value != "data" {
		return
	}
	if prop, ok := member.Property.(*ast.StringNode); ok {
		r.refs[prop.Value] = true
	}
}
