package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/livefir/livebind"
)

// Analyze derives a definition from a raw template and prints it as YAML.
func Analyze(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "definition name (default: template file name)")
	fields := fs.String("fields", "", "comma separated data fields, each name or name:kind")
	methods := fs.String("methods", "", "comma separated callback methods")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: livebind analyze [-name NAME] [-fields a:number,...] [-methods m,...] <template.html>")
	}

	path := fs.Arg(0)
	template, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	specs, err := parseFields(*fields)
	if err != nil {
		return err
	}

	def, err := livebind.Analyze(*name, string(template), specs, splitList(*methods))
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	return enc.Close()
}

// parseFields reads "name[:kind]" entries.
func parseFields(list string) ([]livebind.FieldSpec, error) {
	var specs []livebind.FieldSpec
	for _, entry := range splitList(list) {
		name, kind, _ := strings.Cut(entry, ":")
		if name == "" {
			return nil, fmt.Errorf("invalid field %q: expected name or name:kind", entry)
		}
		specs = append(specs, livebind.FieldSpec{Name: name, Kind: kind})
	}
	return specs, nil
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
