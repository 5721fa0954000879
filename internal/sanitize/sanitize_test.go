package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "1/2", "1/2"},
		{"ampersand", "a & b", "a &amp; b"},
		{"allowed tag", "<b>bold</b>", "<b>bold</b>"},
		{"attributes stripped", `<span class="x" onclick="evil()">t</span>`, "<span>t</span>"},
		{"script escaped", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"img escaped", `<img src=x onerror="y">`, `&lt;img src=&#34;x&#34; onerror=&#34;y&#34;&gt;`},
		{"self closing br", "a<br/>b", "a<br/>b"},
		{"comment escaped", "<!-- c -->", "&lt;!-- c --&gt;"},
		{"entity text", "&lt;tag&gt;", "&lt;tag&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.in))
		})
	}
}

func TestValue(t *testing.T) {
	in := map[string]any{
		"text":   "<i>ok</i><iframe></iframe>",
		"n":      3.0,
		"list":   []any{"<u>u</u>", true},
		"nested": map[string]any{"x": "<script>"},
	}
	got := Value(in).(map[string]any)

	assert.Equal(t, "<i>ok</i>&lt;iframe&gt;&lt;/iframe&gt;", got["text"])
	assert.Equal(t, 3.0, got["n"])
	assert.Equal(t, []any{"<u>u</u>", true}, got["list"])
	assert.Equal(t, map[string]any{"x": "&lt;script&gt;"}, got["nested"])
	assert.Equal(t, "<iframe></iframe>", in["text"].(string)[9:], "input is not mutated")

	assert.Nil(t, Map(nil))
}
