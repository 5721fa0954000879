package extract

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/go-cmp/cmp"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		tokens    []string
		candidate string
		want      map[string]string
		wantOK    bool
	}{
		{
			name:      "two tokens",
			template:  "{a}-{b}",
			tokens:    []string{"a", "b"},
			candidate: "x-y",
			want:      map[string]string{"a": "x", "b": "y"},
			wantOK:    true,
		},
		{
			name:      "no separator",
			template:  "{a}-{b}",
			tokens:    []string{"a", "b"},
			candidate: "x",
			wantOK:    false,
		},
		{
			name:      "css value",
			template:  "color: {r},{g},{b}",
			tokens:    []string{"r", "g", "b"},
			candidate: "color: 255,10,0",
			want:      map[string]string{"r": "255", "g": "10", "b": "0"},
			wantOK:    true,
		},
		{
			name:      "tokens declared out of template order",
			template:  "{b}/{a}",
			tokens:    []string{"a", "b"},
			candidate: "1/2",
			want:      map[string]string{"a": "2", "b": "1"},
			wantOK:    true,
		},
		{
			name:      "undeclared placeholder is a wildcard",
			template:  "{a} of {total}",
			tokens:    []string{"a"},
			candidate: "3 of 10",
			want:      map[string]string{"a": "3"},
			wantOK:    true,
		},
		{
			name:      "regex metacharacters in literal text",
			template:  "(${price}) [x]",
			tokens:    []string{"price"},
			candidate: "($9.99) [x]",
			want:      map[string]string{"price": "9.99"},
			wantOK:    true,
		},
		{
			name:      "literal text must match exactly",
			template:  "a.{x}",
			tokens:    []string{"x"},
			candidate: "ab1",
			wantOK:    false,
		},
		{
			name:      "declared token missing from template",
			template:  "{a}px",
			tokens:    []string{"a", "b"},
			candidate: "10px",
			want:      map[string]string{"a": "10"},
			wantOK:    true,
		},
		{
			name:      "repeated token captures first occurrence",
			template:  "{a}:{a}",
			tokens:    []string{"a"},
			candidate: "1:2",
			want:      map[string]string{"a": "1"},
			wantOK:    true,
		},
		{
			name:      "stray braces are literal",
			template:  "{}{a",
			tokens:    []string{"a"},
			candidate: "{}{a",
			want:      map[string]string{},
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.template, tt.tokens, tt.candidate)
			if ok != tt.wantOK {
				t.Fatalf("Match() ok = %v, want %v (got %v)", ok, tt.wantOK, got)
			}
			if !ok {
				if got != nil {
					t.Errorf("expected nil result on mismatch, got %v", got)
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Match() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatchSingleTokenBypass(t *testing.T) {
	fixed := []string{"a.*b", "", "^$", "(unclosed", "line\nbreak", "{a}"}
	for _, s := range fixed {
		got, ok := Match("{a}", []string{"a"}, s)
		if !ok {
			t.Fatalf("single token template rejected %q", s)
		}
		if got["a"] != s {
			t.Errorf("expected %q unmodified, got %q", s, got["a"])
		}
	}

	faker := gofakeit.New(42)
	for i := 0; i < 200; i++ {
		s := faker.Regex(`[a-z.*+?()|\[\]^$\\{} ]{0,24}`)
		got, ok := Match("{value}", []string{"value"}, s)
		if !ok || got["value"] != s {
			t.Fatalf("single token template did not bind %q verbatim: %v", s, got)
		}
	}
}

func TestPatternMissing(t *testing.T) {
	p := Compile("{a}-{c}", []string{"a", "b", "c", "d"})
	if diff := cmp.Diff([]string{"b", "d"}, p.Missing()); diff != "" {
		t.Errorf("Missing() mismatch (-want +got):\n%s", diff)
	}

	if missing := Compile("{a}", []string{"a"}).Missing(); missing != nil {
		t.Errorf("single token pattern should report nothing missing, got %v", missing)
	}
}

func TestPatternReuse(t *testing.T) {
	p := Compile("{w}x{h}", []string{"w", "h"})
	for _, tc := range []struct{ in, w, h string }{
		{"10x20", "10", "20"},
		{"1x1", "1", "1"},
		{"x", "", ""},
	} {
		got, ok := p.Match(tc.in)
		if !ok {
			t.Fatalf("expected %q to match", tc.in)
		}
		if got["w"] != tc.w || got["h"] != tc.h {
			t.Errorf("%q: got w=%q h=%q, want w=%q h=%q", tc.in, got["w"], got["h"], tc.w, tc.h)
		}
	}
}
