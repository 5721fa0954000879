package livebind

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileTemplate = `<div id="card" class="${theme}" title="${model.background}">
  <input id="name" value="${first} ${last}" oninput="${changed}">
  <ul id="items">${items}</ul>
  <span id="label">Hello ${first}</span>
</div>`

var profileFields = []FieldSpec{
	{Name: "theme", Kind: "string", Default: "light"},
	{Name: "first", Kind: "string", Default: ""},
	{Name: "last", Kind: "string", Default: ""},
	{Name: "items", Kind: "list"},
}

func TestAnalyze(t *testing.T) {
	def, err := Analyze("profile", profileTemplate, profileFields, []string{"changed"})
	require.NoError(t, err)

	assert.Equal(t, "profile", def.Name)
	assert.Equal(t, []string{"card", "name", "items", "label"}, def.Nodes)
	assert.Equal(t, AttrsSpec{
		"card":  {{Attr: "class", Tokens: []string{"theme"}, Template: "{theme}"}},
		"name":  {{Attr: "value", Tokens: []string{"first", "last"}, Template: "{first} {last}"}},
		"label": {{Attr: "children", Tokens: []string{"first"}, Template: "Hello {first}"}},
	}, def.Attrs)
	assert.Equal(t, CallbacksSpec{"name": {{ID: "oninput", Method: "changed"}}}, def.Callbacks)
	assert.Equal(t, map[string]string{"items": "items"}, def.ChildFields)
	assert.Contains(t, def.Children, "items")

	assert.Equal(t, `<div id="card-${id}" class="${theme}" title="${model.background}">
  <input id="name-${id}" value="${first} ${last}" oninput="${changed}">
  <ul id="items-${id}"></ul>
  <span id="label-${id}">Hello ${first}</span>
</div>`, def.HTML)
}

func TestAnalyzeDuplicateID(t *testing.T) {
	_, err := Analyze("dup", `<p id="a"></p><p id="a"></p>`, nil, nil)
	var ae *AnalyzeError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "a", ae.Node)
	assert.Contains(t, err.Error(), `multiple DOM nodes with id="a" found`)
}

func TestAnalyzeUnknownSuggestions(t *testing.T) {
	tests := []struct {
		name     string
		template string
		methods  []string
		param    string
		want     []string
		msg      string
	}{
		{
			name:     "transposed letters",
			template: `<p id="p">${frist}</p>`,
			param:    "frist",
			want:     []string{"first"},
			msg:      "unknown parameter 'frist'",
		},
		{
			name:     "subsequence",
			template: `<p id="p" title="${fst}"></p>`,
			param:    "fst",
			want:     []string{"first"},
			msg:      "unknown parameter or method 'fst'",
		},
		{
			name:     "method",
			template: `<button id="b" onclick="${clk}"></button>`,
			methods:  []string{"click"},
			param:    "clk",
			want:     []string{"click"},
			msg:      "unknown parameter or method 'clk'",
		},
		{
			name:     "nothing close",
			template: `<p id="p">${zzzzzz}</p>`,
			param:    "zzzzzz",
			msg:      "unknown parameter 'zzzzzz'",
		},
	}

	fields := []FieldSpec{{Name: "first"}, {Name: "last"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze("t", tt.template, fields, tt.methods)
			var ae *AnalyzeError
			require.True(t, errors.As(err, &ae), "got %v", err)
			assert.Equal(t, tt.param, ae.Name)
			assert.Equal(t, tt.want, ae.Suggestions)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestAnalyzeMethodOutsideHandler(t *testing.T) {
	_, err := Analyze("t", `<b id="b" title="${click}"></b>`, nil, []string{"click"})
	var ae *AnalyzeError
	require.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, "click", ae.Name)
	assert.Contains(t, err.Error(), "on<event> attribute")
}

func TestAnalyzedDefinitionRenders(t *testing.T) {
	def, err := Analyze("greet", `<p id="msg">Hi ${who}</p>`, []FieldSpec{{Name: "who", Kind: "string", Default: "you"}}, nil)
	require.NoError(t, err)

	f := newFixture(t, def, map[string]any{"who": "you"})
	require.NoError(t, f.ctrl.Render())
	assert.Equal(t, "Hi you", f.doc.Element("msg-1").TextContent())
}

func TestSuggestLimit(t *testing.T) {
	got := suggest("ab", []string{"abc", "abd", "abe", "abf"})
	assert.Len(t, got, 3)
	for _, g := range got {
		assert.Contains(t, []string{"abc", "abd", "abe", "abf"}, g)
	}
}
