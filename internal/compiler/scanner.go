package compiler

import "fmt"

// SyntaxError reports a malformed interpolation site.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Pos, e.Msg)
}

// part is a literal run of template text or a reference to a site.
type part struct {
	literal string
	site    int // -1 for literals
}

// rawSite is a ${...} occurrence before classification.
type rawSite struct {
	pos  int
	body string
}

// scan splits template into literal parts and ${...} sites. Braces nest, and
// braces inside quoted strings do not count, so `${a == "}" ? 1 : 2}` is one
// site.
func scan(template string) ([]part, []rawSite, error) {
	var (
		parts []part
		sites []rawSite
		start int
	)
	for i := 0; i < len(template); i++ {
		if template[i] != '$' || i+1 >= len(template) || template[i+1] != '{' {
			continue
		}
		end, err := closing(template, i+2)
		if err != nil {
			return nil, nil, err
		}
		if start < i {
			parts = append(parts, part{literal: template[start:i], site: -1})
		}
		parts = append(parts, part{site: len(sites)})
		sites = append(sites, rawSite{pos: i, body: template[i+2 : end]})
		start = end + 1
		i = end
	}
	if start < len(template) {
		parts = append(parts, part{literal: template[start:], site: -1})
	}
	return parts, sites, nil
}

// closing returns the index of the brace that closes a site whose body starts
// at from.
func closing(template string, from int) (int, error) {
	depth := 1
	var quote byte
	for i := from; i < len(template); i++ {
		c := template[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	if quote != 0 {
		return 0, &SyntaxError{Pos: from - 2, Msg: "unterminated string in interpolation"}
	}
	return 0, &SyntaxError{Pos: from - 2, Msg: "unterminated interpolation, missing '}'"}
}
