package livebind

import (
	"strings"
	"testing"
)

func TestMinifyHTML(t *testing.T) {
	in := "<div class=\"box\">\n    <input id=\"x-1\" type=\"text\" value=\"1/2\">\n    <span id=\"s-1\">3</span>\n</div>"
	out := minifyHTML(in)

	if strings.Contains(out, "\n") {
		t.Errorf("newlines should be removed: %q", out)
	}
	for _, keep := range []string{`class="box"`, `id="x-1"`, `type="text"`, `value="1/2"`, `<span id="s-1">3</span>`, `</div>`} {
		if !strings.Contains(out, keep) {
			t.Errorf("expected %q in %q", keep, out)
		}
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := map[string]string{
		"  a   b \n c ": "a b c",
		"":              "",
		"x":             "x",
	}
	for in, want := range tests {
		if got := minifyHTML(in); got != want {
			t.Errorf("minifyHTML(%q) = %q, want %q", in, got, want)
		}
	}
}
