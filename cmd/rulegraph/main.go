// Command rulegraph builds the rule relationship graph, writes every output
// format and optionally answers a query.
//
// Build from the extraction files named in a config file:
//
//	go run ./cmd/rulegraph -config rulegraph.yaml -out ./output
//
// Build from explicit sources and ask a question:
//
//	go run ./cmd/rulegraph \
//	  -source ccp=./data/ccp_extraction_results.json \
//	  -source crc=./data/crc_extraction_results.json \
//	  -source county=./data/la_rules \
//	  -query "motion for summary judgment in Los Angeles County"
//
// Reuse a stored snapshot instead of rebuilding:
//
//	go run ./cmd/rulegraph -snapshot ./output/rulegraph.db -query "ex parte"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/brunobiangulo/rulegraph"
	"github.com/brunobiangulo/rulegraph/export"
	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/query"
	"github.com/brunobiangulo/rulegraph/store"
)

// stringSlice implements flag.Value for multi-value string flags.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ", ") }
func (s *stringSlice) Set(val string) error {
	*s = append(*s, val)
	return nil
}

func main() {
	var sources stringSlice

	var (
		configPath = flag.String("config", "", "Path to config file (YAML or JSON)")
		outDir     = flag.String("out", "", "Output directory (default: from config)")
		formats    = flag.String("formats", "", "Comma-separated output formats, or \"all\"")
		baseName   = flag.String("name", "", "Base name for output files")
		queryText  = flag.String("query", "", "Answer this query after building and print it as JSON")
		snapshot   = flag.String("snapshot", "", "Load the graph from this SQLite snapshot instead of building")
		buildID    = flag.String("build", "", "Snapshot build id to load (default: latest)")
		noExport   = flag.Bool("no-export", false, "Skip writing output files")
		listBuilds = flag.Bool("builds", false, "List the builds stored in the snapshot database and exit")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
	)
	flag.Var(&sources, "source", "Rule source as system=path (repeatable; replaces that system's configured source)")
	flag.Parse()

	// .env is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fatal("loading .env", err)
	}

	cfg := rulegraph.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = rulegraph.LoadConfig(*configPath); err != nil {
			fatal("loading config", err)
		}
	}
	cfg.ApplyEnv()

	for _, s := range sources {
		name, path, ok := strings.Cut(s, "=")
		if !ok {
			fatal("parsing -source", fmt.Errorf("expected system=path, got %q", s))
		}
		sys, err := graph.ParseSystem(name)
		if err != nil {
			fatal("parsing -source", err)
		}
		cfg.SetSource(sys, path)
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *formats != "" {
		cfg.Formats = strings.Split(*formats, ",")
	}
	if *baseName != "" {
		cfg.BaseName = *baseName
	}
	if *snapshot != "" {
		cfg.DBPath = *snapshot
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := rulegraph.New(cfg)
	if err != nil {
		fatal("creating engine", err)
	}
	defer engine.Close()

	if *listBuilds {
		builds, err := engine.Builds(ctx)
		if err != nil {
			fatal("listing builds", err)
		}
		printBuilds(os.Stdout, builds)
		return
	}

	var b *rulegraph.Build
	if *snapshot != "" {
		b, err = engine.Load(ctx, *buildID)
		if err != nil {
			fatal("loading snapshot", err)
		}
	} else {
		b, err = engine.Build(ctx)
		if err != nil {
			fatal("building graph", err)
		}
	}

	var res *export.Result
	if !*noExport {
		var exportErr error
		res, exportErr = engine.Export(ctx, export.Options{})
		if exportErr != nil && res == nil {
			fatal("exporting", exportErr)
		}
	}

	printSummary(os.Stdout, b, res)

	if *queryText != "" {
		a, err := engine.Query(ctx, *queryText)
		if err != nil {
			fatal("querying", err)
		}
		printAnswer(os.Stdout, a)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			fatal("encoding answer", err)
		}
	}

	if res != nil && len(res.Errors) > 0 {
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

var (
	heading = color.New(color.Bold, color.FgCyan)
	good    = color.New(color.FgGreen)
	bad     = color.New(color.FgRed)
	muted   = color.New(color.FgHiBlack)
)

func printSummary(w io.Writer, b *rulegraph.Build, res *export.Result) {
	s := b.Stats
	heading.Fprintf(w, "Rule graph %s (%s)\n", b.ID, b.Source)
	fmt.Fprintf(w, "  rules          %d\n", s.NodeCount)
	for _, sys := range graph.Systems {
		if n := s.NodesBySystem[string(sys)]; n > 0 {
			muted.Fprintf(w, "    %-12s %d\n", sys, n)
		}
	}
	fmt.Fprintf(w, "  relationships  %d\n", s.EdgeCount)
	for _, t := range graph.EdgeTypes {
		if n := s.EdgesByType[string(t)]; n > 0 {
			muted.Fprintf(w, "    %-22s %d\n", t, n)
		}
	}
	fmt.Fprintf(w, "  density        %.4f\n", s.Density)
	fmt.Fprintf(w, "  avg degree     %.2f\n", s.AverageDegree)
	fmt.Fprintf(w, "  isolated       %d\n", s.IsolatedNodes)
	fmt.Fprintf(w, "  components     %d (largest %d)\n", s.Components, s.LargestCluster)

	for _, f := range b.Failures {
		bad.Fprintf(w, "  failed source  %s\n", f.Error())
	}

	if res == nil {
		return
	}
	heading.Fprintln(w, "Outputs")
	for _, p := range res.Files {
		good.Fprintf(w, "  ✓ %s\n", filepath.Base(p))
	}
	for _, f := range export.AllFormats {
		if err, ok := res.Errors[f]; ok {
			bad.Fprintf(w, "  ✗ %s: %v\n", f, err)
		}
	}
}

func printAnswer(w io.Writer, a *query.Answer) {
	heading.Fprintf(w, "Query: %s\n", a.Components.Raw)
	if a.Summary != "" {
		fmt.Fprintf(w, "  %s\n", a.Summary)
	}
	if a.Matched() == 0 {
		bad.Fprintln(w, "  no applicable rules")
		return
	}
	good.Fprintf(w, "  %d applicable rules, %d related\n", a.Matched(), len(a.RelatedRules))
}

func printBuilds(w io.Writer, builds []store.Build) {
	if len(builds) == 0 {
		muted.Fprintln(w, "no stored builds")
		return
	}
	for _, b := range builds {
		fmt.Fprintf(w, "%s  %s  ", b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"))
		muted.Fprintf(w, "%d rules, %d relationships\n", b.NodeCount, b.EdgeCount)
	}
}
