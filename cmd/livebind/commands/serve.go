package commands

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/livefir/livebind"
	"github.com/livefir/livebind/datamodel"
	"github.com/livefir/livebind/internal/store"
)

// Serve mounts a definition on an HTTP server until ctx is cancelled. Every
// forwarded DOM event and inline callback is logged.
func Serve(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", ":8080", "listen address")
	db := fs.String("db", "", "SQLite file for record snapshots")
	title := fs.String("title", "", "page title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: livebind serve [-addr ADDR] [-db FILE] [-title TITLE] <definition.yaml>")
	}

	def, err := livebind.LoadDefinition(fs.Arg(0))
	if err != nil {
		return err
	}

	logger := log.New(out, "", log.LstdFlags)
	opts := []livebind.MountOption{
		livebind.WithMountLogger(logger),
		livebind.WithHandlers(logEvents(def, logger)),
	}
	if *title != "" {
		opts = append(opts, livebind.WithTitle(*title))
	}
	if *db != "" {
		s, err := store.Open(ctx, *db)
		if err != nil {
			return err
		}
		defer s.Close()
		opts = append(opts, livebind.WithStore(s))
	}

	bridge, err := livebind.Mount(def, opts...)
	if err != nil {
		return err
	}
	defer bridge.Close()

	mux := http.NewServeMux()
	mux.Handle("/", bridge)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(bridge.Metrics())
	})

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	fmt.Fprintf(out, "serving %s on http://%s\n", def.Name, ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	fmt.Fprintln(out, "server stopped")
	return nil
}

func logEvents(def *livebind.Definition, logger *log.Logger) func(*livebind.EventRouter, *datamodel.Record) {
	return func(r *livebind.EventRouter, rec *datamodel.Record) {
		handler := func(ev livebind.DOMEvent) {
			logger.Printf("event %s on %s (record %s)", ev.Type(), ev.Node, rec.ID())
		}
		for node, events := range def.Events {
			for event := range events {
				if err := r.On(node, event, handler); err != nil {
					logger.Printf("livebind: %v", err)
				}
			}
		}
		seen := make(map[string]bool)
		for _, callbacks := range def.Callbacks {
			for _, cb := range callbacks {
				if seen[cb.Method] {
					continue
				}
				seen[cb.Method] = true
				if err := r.Method(cb.Method, handler); err != nil {
					logger.Printf("livebind: %v", err)
				}
			}
		}
	}
}
