package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/livefir/livebind"
	"github.com/livefir/livebind/datamodel"
)

// Render prints the markup a definition renders to for the given values.
func Render(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	values := fs.String("values", "", "JSON object of field values")
	id := fs.String("id", "1", "record id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: livebind render [-values JSON] [-id ID] <definition.yaml>")
	}

	def, err := livebind.LoadDefinition(fs.Arg(0))
	if err != nil {
		return err
	}

	var vals map[string]any
	if *values != "" {
		if err := json.Unmarshal([]byte(*values), &vals); err != nil {
			return fmt.Errorf("parse -values: %w", err)
		}
	}

	var rec *datamodel.Record
	if len(def.Fields) == 0 {
		rec = datamodel.FromValues(vals, datamodel.WithID(*id))
	} else {
		rec, err = def.NewRecord(datamodel.WithID(*id))
		if err != nil {
			return err
		}
		if err := rec.Update(vals); err != nil {
			return err
		}
	}

	ctrl, target, err := mountOffline(def, rec, os.Stderr)
	if err != nil {
		return err
	}
	defer ctrl.Dispose()
	if err := ctrl.Render(); err != nil {
		return err
	}

	fmt.Fprintln(out, target.InnerHTML())
	return nil
}
