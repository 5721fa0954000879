// Package extract decodes composite attribute values back into named fields.
//
// A template such as "color: {r},{g},{b}" declares placeholders; matching the
// live value "color: 255,0,0" against it yields {r: "255", g: "0", b: "0"}.
package extract

import (
	"regexp"
	"strings"
)

// Pattern is a compiled token template.
type Pattern struct {
	template string
	tokens   []string
	// whole is set when a single declared token is the entire template.
	whole string
	re    *regexp.Regexp
	// groups holds the token name of each capture group in order.
	groups []string
}

// segment is either literal text or a {name} placeholder.
type segment struct {
	text        string
	placeholder bool
}

// Compile builds a Pattern for template with the declared token names.
func Compile(template string, tokens []string) *Pattern {
	p := &Pattern{template: template, tokens: tokens}
	if len(tokens) == 1 && template == "{"+tokens[0]+"}" {
		p.whole = tokens[0]
		return p
	}

	declared := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		declared[tok] = true
	}

	var b strings.Builder
	b.WriteString("^")
	bound := make(map[string]bool, len(tokens))
	for _, seg := range split(template) {
		if !seg.placeholder {
			b.WriteString(regexp.QuoteMeta(seg.text))
			continue
		}
		name := seg.text[1 : len(seg.text)-1]
		if declared[name] && !bound[name] {
			bound[name] = true
			p.groups = append(p.groups, name)
			b.WriteString("(.*)")
			continue
		}
		b.WriteString(".*")
	}
	b.WriteString("$")

	// QuoteMeta output and fixed wildcards always form a valid expression.
	p.re = regexp.MustCompile(b.String())
	return p
}

// Match compiles template and matches candidate against it in one step.
func Match(template string, tokens []string, candidate string) (map[string]string, bool) {
	return Compile(template, tokens).Match(candidate)
}

// Match returns the captured substring of every declared token found in the
// template. The second result is false when candidate does not match.
func (p *Pattern) Match(candidate string) (map[string]string, bool) {
	if p.whole != "" {
		return map[string]string{p.whole: candidate}, true
	}
	m := p.re.FindStringSubmatch(candidate)
	if m == nil {
		return nil, false
	}
	result := make(map[string]string, len(p.groups))
	for i, name := range p.groups {
		result[name] = m[i+1]
	}
	return result, true
}

// Missing lists declared tokens that never appear in the template, in
// declaration order. Matching can never resolve them.
func (p *Pattern) Missing() []string {
	if p.whole != "" {
		return nil
	}
	var missing []string
	for _, tok := range p.tokens {
		found := false
		for _, g := range p.groups {
			if g == tok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, tok)
		}
	}
	return missing
}

// Template returns the source template.
func (p *Pattern) Template() string {
	return p.template
}

// split cuts template into literal runs and {name} placeholders. A placeholder
// is a non-empty run without braces enclosed in a single pair of braces;
// anything else, including a stray brace, is literal.
func split(template string) []segment {
	var segs []segment
	start := 0
	for i := 0; i < len(template); i++ {
		if template[i] != '{' {
			continue
		}
		end := -1
		for j := i + 1; j < len(template); j++ {
			if template[j] == '{' {
				break
			}
			if template[j] == '}' {
				end = j
				break
			}
		}
		if end <= i+1 {
			continue
		}
		if start < i {
			segs = append(segs, segment{text: template[start:i]})
		}
		segs = append(segs, segment{text: template[i : end+1], placeholder: true})
		start = end + 1
		i = end
	}
	if start < len(template) {
		segs = append(segs, segment{text: template[start:]})
	}
	return segs
}
