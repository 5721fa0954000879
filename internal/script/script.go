// Package script compiles lifecycle scripts attached to a bound view.
//
// A script is a list of statements separated by newlines or semicolons. Each
// statement is an expr-lang expression evaluated against:
//
//	model, data, state      the view model, a data snapshot and per-view state
//	<node>                  every named DOM node, bound as a Node
//	setState(key, value)    store a value in state
//	setData(field, value)   write a data-model field
//	log(args...)            write to the view logger
package script

import (
	"fmt"
	"log"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/livefir/livebind/dom"
)

var reserved = map[string]bool{
	"model": true, "data": true, "state": true, "view": true,
	"setState": true, "setData": true, "log": true,
}

// NodeNotFoundError is returned by Run when a declared node is missing.
type NodeNotFoundError struct {
	Node string
	ID   string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("DOM node '%s' could not be found. Cannot execute callback.", e.ID)
}

// Env carries the values a script runs against.
type Env struct {
	Model   map[string]any
	Data    map[string]any
	State   map[string]any
	SetData func(field string, value any) error
	Logger  *log.Logger
}

// Script is a compiled script bound to a fixed set of node names and a data
// model id.
type Script struct {
	source     string
	nodes      []string
	id         string
	statements []*vm.Program
}

// Compile compiles source. nodes are the element names the script may
// reference; each resolves to the element with id "<name>-<id>".
func Compile(source string, nodes []string, id string) (*Script, error) {
	for _, n := range nodes {
		if reserved[n] {
			return nil, fmt.Errorf("node name %q shadows a script builtin", n)
		}
	}

	shape := typeEnv(nodes)
	s := &Script{source: source, nodes: nodes, id: id}
	for _, stmt := range Statements(source) {
		program, err := expr.Compile(stmt, expr.Env(shape))
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", stmt, err)
		}
		s.statements = append(s.statements, program)
	}
	return s, nil
}

// Source returns the script source.
func (s *Script) Source() string {
	return s.source
}

// Run resolves the declared nodes and executes every statement in order. A
// missing node aborts the run before any statement executes.
func (s *Script) Run(doc dom.Document, env Env) error {
	logger := env.Logger
	if logger == nil {
		logger = log.Default()
	}
	if env.State == nil {
		env.State = make(map[string]any)
	}

	vars := map[string]any{
		"model": env.Model,
		"data":  env.Data,
		"state": env.State,
		"setState": func(key string, value any) any {
			env.State[key] = value
			return value
		},
		"setData": func(field string, value any) (any, error) {
			if env.SetData == nil {
				return nil, fmt.Errorf("setData(%q): no data model bound", field)
			}
			if err := env.SetData(field, value); err != nil {
				return nil, err
			}
			if env.Data != nil {
				env.Data[field] = value
			}
			return value, nil
		},
		"log": func(args ...any) any {
			logger.Println(append([]any{"livebind script:"}, args...)...)
			return nil
		},
	}

	for _, name := range s.nodes {
		id := name + "-" + s.id
		el := doc.GetElementByID(id)
		if el == nil {
			return &NodeNotFoundError{Node: name, ID: id}
		}
		vars[name] = Node{el: el}
	}

	for i, program := range s.statements {
		if _, err := expr.Run(program, vars); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

// typeEnv describes variable types to the expr checker.
func typeEnv(nodes []string) map[string]any {
	env := map[string]any{
		"model":    map[string]any{},
		"data":     map[string]any{},
		"state":    map[string]any{},
		"setState": func(string, any) any { return nil },
		"setData":  func(string, any) (any, error) { return nil, nil },
		"log":      func(...any) any { return nil },
	}
	for _, n := range nodes {
		env[n] = Node{}
	}
	return env
}

// Statements splits source at newlines and semicolons that are not nested
// inside brackets or string literals. Blank statements and // comment lines
// are dropped.
func Statements(source string) []string {
	var (
		stmts []string
		depth int
		quote byte
		start int
	)
	flush := func(end int) {
		stmt := strings.TrimSpace(source[start:end])
		if stmt != "" && !strings.HasPrefix(stmt, "//") {
			stmts = append(stmts, stmt)
		}
		start = end + 1
	}
	for i := 0; i < len(source); i++ {
		c := source[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '\n', ';':
			if depth == 0 {
				flush(i)
			}
		}
	}
	if start < len(source) {
		flush(len(source))
	}
	return stmts
}
