package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/livefir/livebind"
)

var exampleDir = filepath.Join("..", "..", "..", "examples")

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCheckExamples(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join(exampleDir, "*.yaml"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("no example definitions found: %v", err)
	}

	var out bytes.Buffer
	if err := Check(paths, &out); err != nil {
		t.Fatalf("Check failed: %v\n%s", err, out.String())
	}
	if got := strings.Count(out.String(), "✓"); got != len(paths) {
		t.Errorf("expected %d passing definitions, got output:\n%s", len(paths), out.String())
	}
}

func TestCheckReportsProblems(t *testing.T) {
	bad := writeFile(t, "bad.yaml", `
html: "<p id=\"p-${id}\"></p>"
nodes: [p, bad-name]
attrs:
  ghost:
    - [title, [t], "{t}"]
`)
	broken := writeFile(t, "broken.yaml", `
html: "<p id=\"p-${id}\">${1 +}</p>"
nodes: [p]
`)

	var out bytes.Buffer
	err := Check([]string{bad, broken, filepath.Join(exampleDir, "counter.yaml")}, &out)
	if err == nil {
		t.Fatal("expected an error for invalid definitions")
	}
	if !strings.Contains(err.Error(), "2 of 3") {
		t.Errorf("unexpected error: %v", err)
	}

	text := out.String()
	for _, want := range []string{"✗ " + bad, "nodes[1]", "attrs.ghost", "✗ " + broken, "✓"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestCheckRequiresArgs(t *testing.T) {
	if err := Check(nil, io.Discard); err == nil {
		t.Error("expected an error without arguments")
	}
}

func TestRender(t *testing.T) {
	counter := filepath.Join(exampleDir, "counter.yaml")

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{
			name: "defaults",
			args: []string{counter},
			want: []string{`id="x-1"`, `value="1/2"`, `>3</span>`},
		},
		{
			name: "values and id",
			args: []string{"-values", `{"a": 5}`, "-id", "7", counter},
			want: []string{`id="sum-7"`, `value="5/2"`, `>7</span>`, `title="sum of a and b"`},
		},
		{
			name:    "undeclared field",
			args:    []string{"-values", `{"zz": 1}`, counter},
			wantErr: true,
		},
		{
			name:    "bad json",
			args:    []string{"-values", `{`, counter},
			wantErr: true,
		},
		{
			name:    "missing file",
			args:    []string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := Render(tt.args, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got output %s", out.String())
				}
				return
			}
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
			if strings.Contains(out.String(), "${bump}") {
				t.Errorf("inline callback marker left in output:\n%s", out.String())
			}
		})
	}
}

func TestRenderUntypedDefinition(t *testing.T) {
	path := writeFile(t, "greet.yaml", `
html: "<p id=\"msg-${id}\">hello ${who}</p>"
nodes: [msg]
`)
	var out bytes.Buffer
	if err := Render([]string{"-values", `{"who": "world"}`, path}, &out); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out.String(), "hello world") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestAnalyze(t *testing.T) {
	path := writeFile(t, "counter.html",
		`<div><input id="x" value="${a}/${b}"><button id="inc" onclick="${bump}">+</button></div>`)

	var out bytes.Buffer
	err := Analyze([]string{"-fields", "a:number, b:number", "-methods", "bump", path}, &out)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	def, err := livebind.ParseDefinition(out.Bytes())
	if err != nil {
		t.Fatalf("generated YAML does not parse: %v\n%s", err, out.String())
	}
	if def.Name != "counter" {
		t.Errorf("expected name from file, got %q", def.Name)
	}
	if len(def.Nodes) != 2 || def.Nodes[0] != "x" || def.Nodes[1] != "inc" {
		t.Errorf("unexpected nodes %v", def.Nodes)
	}
	if got := def.Attrs["x"]; len(got) != 1 || got[0].Template != "{a}/{b}" {
		t.Errorf("unexpected attrs %+v", def.Attrs)
	}
	if got := def.Callbacks["inc"]; len(got) != 1 || got[0].Method != "bump" {
		t.Errorf("unexpected callbacks %+v", def.Callbacks)
	}
	if !strings.Contains(def.HTML, `id="x-${id}"`) {
		t.Errorf("ids not qualified: %s", def.HTML)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	path := writeFile(t, "t.html", `<p id="p" title="${frist}"></p>`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown parameter", []string{"-fields", "first", path}, "first"},
		{"empty field name", []string{"-fields", ":number", path}, "invalid field"},
		{"missing template", []string{filepath.Join(t.TempDir(), "none.html")}, "read template"},
		{"no template", nil, "usage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Analyze(tt.args, io.Discard)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

// syncBuffer is written by the server goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var servingPattern = regexp.MustCompile(`http://\S+`)

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	db := filepath.Join(t.TempDir(), "snapshots.db")
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, []string{"-addr", "127.0.0.1:0", "-db", db, "-title", "Counter", filepath.Join(exampleDir, "counter.yaml")}, out)
	}()

	var base string
	deadline := time.Now().Add(5 * time.Second)
	for base == "" {
		if time.Now().After(deadline) {
			t.Fatalf("server did not start:\n%s", out.String())
		}
		select {
		case err := <-done:
			t.Fatalf("Serve returned early: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
		base = servingPattern.FindString(out.String())
	}

	resp, err := http.Get(base + "/")
	if err != nil {
		t.Fatalf("GET page: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{"<title>Counter</title>", `name="livebind-token"`, `id="sum-`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	var m map[string]any
	err = json.NewDecoder(resp.Body).Decode(&m)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if m["tokens_generated"] != 1.0 {
		t.Errorf("expected one issued token, got %v", m["tokens_generated"])
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not stop")
	}
	if !strings.Contains(out.String(), "server stopped") {
		t.Errorf("missing shutdown message:\n%s", out.String())
	}
}

func TestServeBadArgs(t *testing.T) {
	if err := Serve(context.Background(), nil, io.Discard); err == nil {
		t.Error("expected usage error")
	}
	if err := Serve(context.Background(), []string{"-nope"}, io.Discard); err == nil {
		t.Error("expected flag error")
	}
}
