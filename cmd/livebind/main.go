package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/livefir/livebind/cmd/livebind/commands"
)

// Version information (can be overridden at build time with -ldflags)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error

	switch command {
	case "check":
		err = commands.Check(args, os.Stdout)
	case "render":
		err = commands.Render(args, os.Stdout)
	case "analyze":
		err = commands.Analyze(args, os.Stdout)
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = commands.Serve(ctx, args, os.Stdout)
		stop()
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("livebind version %s\n", version)

	if info, ok := debug.ReadBuildInfo(); ok {
		var vcsRevision, vcsModified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				vcsRevision = setting.Value
			case "vcs.modified":
				vcsModified = setting.Value
			}
		}

		if commit != "unknown" {
			fmt.Printf("commit: %s\n", commit)
		} else if vcsRevision != "" {
			if len(vcsRevision) > 12 {
				vcsRevision = vcsRevision[:12]
			}
			fmt.Printf("commit: %s\n", vcsRevision)
		}
		if date != "unknown" {
			fmt.Printf("built: %s\n", date)
		}
		if vcsModified == "true" {
			fmt.Printf("modified: true (uncommitted changes)\n")
		}
		fmt.Printf("go: %s\n", info.GoVersion)
	}
}

func printUsage() {
	fmt.Println("livebind - two-way DOM bindings for server-side views")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  livebind check <definition.yaml>...             Validate and compile definitions")
	fmt.Println("  livebind render [flags] <definition.yaml>       Render a definition to stdout")
	fmt.Println("  livebind analyze [flags] <template.html>        Derive a definition from a template")
	fmt.Println("  livebind serve [flags] <definition.yaml>        Serve a definition over HTTP and websockets")
	fmt.Println("  livebind version                                Show version information")
	fmt.Println()
	fmt.Println("Render Flags:")
	fmt.Println("  -values '{\"a\": 5}'      JSON object of field values")
	fmt.Println("  -id <id>                  Record id used to qualify node ids (default 1)")
	fmt.Println()
	fmt.Println("Analyze Flags:")
	fmt.Println("  -name <name>              Definition name")
	fmt.Println("  -fields a:number,b:list   Data fields with optional kinds")
	fmt.Println("  -methods bump,reset       Callback methods the host implements")
	fmt.Println()
	fmt.Println("Serve Flags:")
	fmt.Println("  -addr :8080               Listen address")
	fmt.Println("  -db snapshots.db          Persist record snapshots in SQLite")
	fmt.Println("  -title <title>            Page title")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  livebind check examples/*.yaml")
	fmt.Println("  livebind render -values '{\"a\": 5}' examples/counter.yaml")
	fmt.Println("  livebind analyze -fields a:number,b:number -methods bump counter.html")
	fmt.Println("  livebind serve -addr :8080 -db counter.db examples/counter.yaml")
}
