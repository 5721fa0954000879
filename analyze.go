package livebind

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/net/html"
)

var sitePattern = regexp.MustCompile(`\$\{[^}]+\}`)

// AnalyzeError reports a template problem found by Analyze.
type AnalyzeError struct {
	Node        string
	Name        string   // offending parameter, if any
	Suggestions []string // similar known names
	Msg         string
}

func (e *AnalyzeError) Error() string {
	msg := e.Msg
	if e.Node != "" {
		msg = fmt.Sprintf("node %q: %s", e.Node, msg)
	}
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(", similar parameters include %v", e.Suggestions)
	}
	return "livebind: analyze: " + msg
}

// Analyze derives a Definition from a raw author template, the data fields
// it binds and the callback methods the host implements.
//
// Every element with id="name" becomes a node. Attribute values holding
// ${field} sites become attrs bindings, ${method} sites in attributes become
// inline callbacks keyed by the attribute name, and element text that is
// exactly ${listField} marks a children anchor fed from that field. The
// returned HTML qualifies node ids as name-${id} and drops children
// placeholders.
func Analyze(name, template string, fields []FieldSpec, methods []string) (*Definition, error) {
	a := &analyzer{
		fields:  make(map[string]FieldSpec, len(fields)),
		methods: make(map[string]bool, len(methods)),
		def: &Definition{
			Name:        name,
			Attrs:       make(AttrsSpec),
			Callbacks:   make(CallbacksSpec),
			Children:    make(ChildrenSpec),
			ChildFields: make(map[string]string),
			Fields:      fields,
		},
		seen: make(map[string]bool),
	}
	for _, f := range fields {
		a.fields[f.Name] = f
	}
	for _, m := range methods {
		a.methods[m] = true
	}

	if err := a.walk(template); err != nil {
		return nil, err
	}

	out := template
	for _, node := range a.def.Nodes {
		out = strings.ReplaceAll(out, fmt.Sprintf(`id="%s"`, node), fmt.Sprintf(`id="%s-${id}"`, node))
		out = strings.ReplaceAll(out, fmt.Sprintf(`id='%s'`, node), fmt.Sprintf(`id='%s-${id}'`, node))
	}
	for _, field := range a.def.ChildFields {
		out = strings.ReplaceAll(out, "${"+field+"}", "")
	}
	a.def.HTML = out

	if err := a.def.Validate(); err != nil {
		return nil, err
	}
	return a.def, nil
}

type analyzer struct {
	fields  map[string]FieldSpec
	methods map[string]bool
	def     *Definition
	seen    map[string]bool
	current string
}

func (a *analyzer) walk(template string) error {
	z := html.NewTokenizer(strings.NewReader(template))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return nil
			}
			return fmt.Errorf("livebind: analyze: %w", z.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			if err := a.startTag(z.Token()); err != nil {
				return err
			}
		case html.EndTagToken:
			a.current = ""
		case html.TextToken:
			if err := a.text(string(z.Text())); err != nil {
				return err
			}
		}
	}
}

func (a *analyzer) startTag(tok html.Token) error {
	a.current = ""
	var id string
	for _, attr := range tok.Attr {
		if attr.Key == "id" {
			id = attr.Val
		}
	}
	if id == "" {
		return nil
	}
	if a.seen[id] {
		return &AnalyzeError{Node: id, Msg: fmt.Sprintf(`multiple DOM nodes with id="%s" found`, id)}
	}
	a.seen[id] = true
	a.current = id
	a.def.Nodes = append(a.def.Nodes, id)

	for _, attr := range tok.Attr {
		if attr.Key == "id" {
			continue
		}
		var tokens []string
		for _, site := range sitePattern.FindAllString(attr.Val, -1) {
			param := strings.TrimSpace(site[2 : len(site)-1])
			switch {
			case strings.HasPrefix(param, "model."):
			case a.isField(param):
				tokens = append(tokens, param)
			case a.methods[param]:
				if !strings.HasPrefix(strings.ToLower(attr.Key), "on") || strings.TrimSpace(attr.Val) != site {
					return &AnalyzeError{Node: id, Name: param, Msg: fmt.Sprintf("method '%s' must be the whole value of an on<event> attribute, found in '%s'", param, attr.Key)}
				}
				a.def.Callbacks[id] = append(a.def.Callbacks[id], Callback{ID: attr.Key, Method: param})
			default:
				return a.unknown(id, param, true)
			}
		}
		if len(tokens) > 0 {
			a.def.Attrs[id] = append(a.def.Attrs[id], AttrBinding{
				Attr:     attr.Key,
				Tokens:   tokens,
				Template: strings.ReplaceAll(attr.Val, "${", "{"),
			})
		}
	}
	return nil
}

func (a *analyzer) text(data string) error {
	if a.current == "" {
		return nil
	}
	sites := sitePattern.FindAllString(data, -1)
	if len(sites) == 0 {
		return nil
	}

	trimmed := strings.TrimSpace(data)
	if len(sites) == 1 && trimmed == sites[0] {
		param := trimmed[2 : len(trimmed)-1]
		if f, ok := a.fields[param]; ok && f.Kind == "list" {
			a.def.ChildFields[a.current] = param
			a.def.Children[a.current] = nil
			return nil
		}
	}

	var tokens []string
	for _, site := range sites {
		param := strings.TrimSpace(site[2 : len(site)-1])
		if strings.HasPrefix(param, "model.") {
			continue
		}
		if !a.isField(param) {
			return a.unknown(a.current, param, false)
		}
		tokens = append(tokens, param)
	}
	if len(tokens) > 0 {
		a.def.Attrs[a.current] = append(a.def.Attrs[a.current], AttrBinding{
			Attr:     "children",
			Tokens:   tokens,
			Template: strings.ReplaceAll(data, "${", "{"),
		})
	}
	return nil
}

func (a *analyzer) isField(name string) bool {
	_, ok := a.fields[name]
	return ok
}

func (a *analyzer) unknown(node, param string, allowMethods bool) error {
	candidates := make([]string, 0, len(a.fields)+len(a.methods))
	for f := range a.fields {
		candidates = append(candidates, f)
	}
	what := "parameter"
	if allowMethods {
		what = "parameter or method"
		for m := range a.methods {
			candidates = append(candidates, m)
		}
	}
	return &AnalyzeError{
		Node:        node,
		Name:        param,
		Suggestions: suggest(param, candidates),
		Msg:         fmt.Sprintf("template references unknown %s '%s'", what, param),
	}
}

// suggest returns up to three candidates close to name: fuzzy subsequence
// matches first, then small edit distances.
func suggest(name string, candidates []string) []string {
	sort.Strings(candidates)
	ranks := fuzzy.RankFindFold(name, candidates)
	sort.Sort(ranks)

	var out []string
	seen := make(map[string]bool)
	for _, r := range ranks {
		if !seen[r.Target] {
			seen[r.Target] = true
			out = append(out, r.Target)
		}
	}

	type scored struct {
		name string
		dist int
	}
	limit := len(name)/3 + 1
	var close []scored
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d <= limit {
			close = append(close, scored{c, d})
		}
	}
	sort.SliceStable(close, func(i, j int) bool { return close[i].dist < close[j].dist })
	for _, s := range close {
		out = append(out, s.name)
	}

	if len(out) > 3 {
		out = out[:3]
	}
	return out
}
