// Command glens loads a graph dataset into the interaction engine, applies
// filters, selections, expansions and trims from the command line, and prints
// a styled summary or the JSON render snapshot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/vanderheijden86/graphlens/pkg/version"
)

type options struct {
	configPath  string
	dataset     string
	mode        string
	minDegree   int
	maxDegree   int
	selectIDs   string
	where       string
	expandSeeds string
	expandMode  string
	remove      bool
	trim        bool
	nodeScheme  string
	linkScheme  string
	theme       string
	jsonOut     bool
	snapshot    string
	watch       bool
	stats       bool
	metricsAddr string
	width       int
	cpuProfile  string
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("glens", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: glens [options] [dataset]")
		fmt.Fprintln(stderr, "\nLoads a graph dataset (.json, .db or a directory of them) and prints the resulting view.")
		fs.PrintDefaults()
	}

	fs.StringVar(&o.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/glens/config.yaml)")
	fs.StringVar(&o.dataset, "dataset", "", "Dataset name from the config, or a path")
	fs.StringVar(&o.mode, "mode", "", "View mode: overview or detail")
	fs.IntVar(&o.minDegree, "min-degree", -1, "Hide nodes with a lower degree")
	fs.IntVar(&o.maxDegree, "max-degree", -1, "Hide nodes with a higher degree")
	fs.StringVar(&o.selectIDs, "select", "", "Comma-separated node ids to select")
	fs.StringVar(&o.where, "where", "", "Select nodes whose property equals a value, e.g. feature=person")
	fs.StringVar(&o.expandSeeds, "expand", "", "Comma-separated seed ids to expand, or 'selected'")
	fs.StringVar(&o.expandMode, "expand-mode", "", "Expand mode: or (broad) or and (narrow)")
	fs.BoolVar(&o.remove, "remove", false, "Remove the selected nodes")
	fs.BoolVar(&o.trim, "trim", false, "Drop every hidden node, link and component")
	fs.StringVar(&o.nodeScheme, "node-scheme", "", "Node colour scheme, source[/values|types]")
	fs.StringVar(&o.linkScheme, "link-scheme", "", "Link colour scheme, source[/values|types]")
	fs.StringVar(&o.theme, "theme", "", "Colour theme: light or dark")
	fs.BoolVar(&o.jsonOut, "json", false, "Print the render snapshot as JSON")
	fs.StringVar(&o.snapshot, "snapshot", "", "Write an SVG or PNG picture of the view to this file")
	fs.BoolVar(&o.watch, "watch", false, "Reload the dataset when it changes")
	fs.BoolVar(&o.stats, "stats", false, "Print operation timings")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	fs.IntVar(&o.width, "width", 0, "Output width (default: terminal width)")
	fs.StringVar(&o.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.BoolVar(&o.version, "version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	switch fs.NArg() {
	case 0:
	case 1:
		if o.dataset != "" {
			return o, fmt.Errorf("dataset given twice (%q and %q)", o.dataset, fs.Arg(0))
		}
		o.dataset = fs.Arg(0)
	default:
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args()[1:], " "))
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if opts.version {
		fmt.Printf("glens %s\n", version.String())
		os.Exit(0)
	}

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}
