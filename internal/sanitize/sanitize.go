// Package sanitize cleans strings that arrive from remote clients before they
// are written into a data model. A small set of formatting tags survives
// without attributes; every other tag is escaped and rendered as text.
package sanitize

import (
	"errors"
	"html"
	"io"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var allowed = map[atom.Atom]bool{
	atom.B:          true,
	atom.Blockquote: true,
	atom.Br:         true,
	atom.Code:       true,
	atom.Em:         true,
	atom.I:          true,
	atom.Li:         true,
	atom.Ol:         true,
	atom.P:          true,
	atom.Pre:        true,
	atom.S:          true,
	atom.Span:       true,
	atom.Strong:     true,
	atom.Sub:        true,
	atom.Sup:        true,
	atom.U:          true,
	atom.Ul:         true,
}

// String returns s with disallowed markup escaped. Strings without markup
// characters are returned unchanged.
func String(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}

	var b strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				b.WriteString(html.EscapeString(string(z.Raw())))
			}
			return b.String()
		}

		switch tt {
		case nethtml.TextToken:
			b.WriteString(html.EscapeString(string(z.Text())))
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken, nethtml.EndTagToken:
			tok := z.Token()
			if !allowed[tok.DataAtom] {
				b.WriteString(html.EscapeString(tok.String()))
				continue
			}
			// Attributes never survive.
			b.WriteString((&nethtml.Token{Type: tt, DataAtom: tok.DataAtom, Data: tok.Data}).String())
		default:
			b.WriteString(html.EscapeString(string(z.Raw())))
		}
	}
}

// Value sanitises every string in v, descending into slices and maps of the
// shapes JSON decoding produces.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(e)
		}
		return out
	case map[string]any:
		return Map(t)
	}
	return v
}

// Map sanitises the values of m into a new map. Keys are kept as is.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Value(v)
	}
	return out
}
