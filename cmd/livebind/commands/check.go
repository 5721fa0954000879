package commands

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/livefir/livebind"
	"github.com/livefir/livebind/datamodel"
	"github.com/livefir/livebind/memdom"
)

const rootID = "livebind-root"

// Check loads, validates and compiles every definition in args, then renders
// each once against its declared defaults.
func Check(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("definition file required: livebind check <definition.yaml>...")
	}

	failed := 0
	for _, path := range args {
		def, problems := checkFile(path)
		if len(problems) > 0 {
			failed++
			fmt.Fprintf(out, "✗ %s\n", path)
			for _, p := range problems {
				fmt.Fprintf(out, "    %s\n", p)
			}
			continue
		}
		fmt.Fprintf(out, "✓ %s: %s (%d nodes, %d fields)\n", path, def.Name, len(def.Nodes), len(def.Fields))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d definitions invalid", failed, len(args))
	}
	return nil
}

func checkFile(path string) (*livebind.Definition, []string) {
	def, err := livebind.LoadDefinition(path)
	if err != nil {
		var spec livebind.SpecError
		if errors.As(err, &spec) {
			problems := make([]string, len(spec))
			for i, fe := range spec {
				problems[i] = fe.Error()
			}
			return nil, problems
		}
		return nil, []string{err.Error()}
	}

	rec, err := def.NewRecord(datamodel.WithID("1"))
	if err != nil {
		return nil, []string{err.Error()}
	}

	var problems []string
	collect := livebind.ErrorHandlerFunc(func(err error) {
		problems = append(problems, err.Error())
	})
	ctrl, target, err := mountOffline(def, rec, io.Discard, livebind.WithErrorHandler(collect))
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer ctrl.Dispose()

	if err := ctrl.Render(); err != nil && len(problems) == 0 {
		problems = append(problems, err.Error())
	}
	if len(problems) == 0 && target.InnerHTML() == "" {
		problems = append(problems, "template rendered no markup")
	}
	return def, problems
}

// mountOffline binds def to rec inside an in-memory document.
func mountOffline(def *livebind.Definition, rec *datamodel.Record, logs io.Writer, opts ...livebind.Option) (*livebind.Controller, *memdom.Element, error) {
	doc := memdom.NewDocument()
	if err := doc.Body().SetInnerHTML(`<div id="` + rootID + `"></div>`); err != nil {
		return nil, nil, err
	}
	target := doc.Element(rootID)
	base := []livebind.Option{livebind.WithLogger(log.New(logs, "", 0))}
	ctrl, err := livebind.New(def, doc, target, rec, append(base, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return ctrl, target, nil
}
