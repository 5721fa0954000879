package livebind

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDisposed is returned by controller operations after Dispose.
var ErrDisposed = errors.New("livebind: controller disposed")

// ResolutionError reports an anchor whose DOM node could not be found. It is
// never fatal: the operation skips that anchor and continues.
type ResolutionError struct {
	Node string // anchor name
	ID   string // DOM id that was looked up
	Op   string // what could not be done, e.g. "set up MutationObserver"
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("DOM node '%s' could not be found. Cannot %s.", e.ID, e.Op)
}

// TokenMismatchError reports an attribute value that could not be decoded
// with its token template. Token is empty when the whole value failed to
// match; otherwise only that token was unresolved.
type TokenMismatchError struct {
	Node  string
	Attr  string
	Value string
	Token string
}

func (e *TokenMismatchError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("Could not resolve parameters in %s element %s attribute value %s.", e.Node, e.Attr, e.Value)
	}
	return fmt.Sprintf("Could not resolve %s in %s element %s attribute value %s.", e.Token, e.Node, e.Attr, e.Value)
}

// CompileError reports a template or script that failed to compile. It is
// returned from construction and never swallowed.
type CompileError struct {
	Kind   string // "template" or "script"
	Name   string // script trigger, empty for the template
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("livebind: compile %s %q: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("livebind: compile %s: %v", e.Kind, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// RenderError reports a template that compiled but failed while rendering,
// for example by reading a member of a non-object value. The previous DOM is
// left in place.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("livebind: render: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ScriptError reports a script that failed at run time.
type ScriptError struct {
	Trigger string
	Err     error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("livebind: script %q: %v", e.Trigger, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// FieldError is a validation failure for one part of a definition.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SpecError collects every validation failure of a definition.
type SpecError []FieldError

func (m SpecError) Error() string {
	if len(m) == 0 {
		return ""
	}
	msgs := make([]string, len(m))
	for i, err := range m {
		msgs[i] = err.Error()
	}
	return "livebind: invalid definition: " + strings.Join(msgs, "; ")
}

// ErrorHandler receives the non-fatal errors a controller recovers from.
type ErrorHandler interface {
	HandleError(err error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(err error)

// HandleError implements ErrorHandler.
func (f ErrorHandlerFunc) HandleError(err error) {
	f(err)
}
