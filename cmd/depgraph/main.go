// depgraph builds a dependency graph, detects cycles, and computes
// coupling metrics for a Rust workspace or crate.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/crateweave/depgraph/internal/cache"
	"github.com/crateweave/depgraph/internal/cycles"
	"github.com/crateweave/depgraph/internal/graphbuild"
	"github.com/crateweave/depgraph/internal/jsonexport"
	"github.com/crateweave/depgraph/internal/metrics"
	"github.com/crateweave/depgraph/internal/model"
	"github.com/crateweave/depgraph/internal/resolve"
	"github.com/crateweave/depgraph/internal/useresolve"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("depgraph", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		noTests      bool
		asJSON       bool
		verbose      bool
		cachePath    string
		moduleCycles bool
		showVersion  bool
	)

	fs.BoolVar(&noTests, "no-tests", false, "exclude test files, tests/ directories, and cfg(test) modules")
	fs.BoolVar(&asJSON, "json", false, "emit the JSON interchange format instead of a text summary")
	fs.BoolVar(&verbose, "v", false, "print per-crate module counts and module-resolution warnings (unreadable files, unresolved mod declarations); unresolved imports are not reported")
	fs.StringVar(&cachePath, "cache", "", "cache file path")
	fs.BoolVar(&moduleCycles, "module-cycles", false, "detect cycles at module granularity instead of item granularity")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		fmt.Fprintf(stdout, "depgraph %s\n", version)
		return nil
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	if cachePath != "" && cache.IsFresh(cachePath, root) {
		if result, err := cache.Load(cachePath); err == nil {
			return writeOutput(stdout, result, asJSON)
		}
	}

	filter := model.DefaultFilterConfig()
	if noTests {
		filter = model.NoTestsFilterConfig()
	}

	ws, err := resolve.ResolveWorkspace(root, filter)
	if err != nil {
		return fmt.Errorf("resolving modules: %w", err)
	}

	idx := useresolve.NewSymbolIndex(ws)
	graph := graphbuild.Build(ws, idx)

	var cycleList []model.Cycle
	if moduleCycles {
		cycleList = cycles.DetectModuleLevel(graph)
	} else {
		cycleList = cycles.Detect(graph)
	}

	report := metrics.Compute(ws, graph, cycleList, root)

	result := model.Result{
		Workspace: ws,
		Graph:     graph,
		Cycles:    cycleList,
		Metrics:   report,
	}

	if cachePath != "" {
		if err := cache.Store(cachePath, result); err != nil {
			fmt.Fprintf(stderr, "warning: failed to write cache: %v\n", err)
		}
	}

	if verbose {
		printDiagnostics(stderr, ws)
	}

	return writeOutput(stdout, result, asJSON)
}

func writeOutput(w io.Writer, result model.Result, asJSON bool) error {
	if asJSON {
		return jsonexport.Write(w, result)
	}
	printSummary(w, result)
	return nil
}

func printSummary(w io.Writer, result model.Result) {
	fmt.Fprintf(w, "crates: %d\n", len(result.Workspace.Crates))
	fmt.Fprintf(w, "nodes: %d\n", len(result.Graph.Nodes))
	fmt.Fprintf(w, "edges: %d\n", len(result.Graph.Edges))
	fmt.Fprintf(w, "cycles: %d\n", len(result.Cycles))
	for _, c := range result.Cycles {
		fmt.Fprintf(w, "  cycle %d: %v\n", c.Index, c.Nodes)
	}
	fmt.Fprintf(w, "modules: %d\n", result.Metrics.Crate.TotalModules)
	fmt.Fprintf(w, "avg instability: %.3f\n", result.Metrics.Crate.AvgInstability)
	fmt.Fprintf(w, "avg distance from main sequence: %.3f\n", result.Metrics.Crate.AvgDistance)
	if len(result.Metrics.Crate.MostCoupled) > 0 {
		fmt.Fprintf(w, "most coupled: %v\n", result.Metrics.Crate.MostCoupled)
	}
}

func printDiagnostics(w io.Writer, ws model.Workspace) {
	for _, crate := range ws.Crates {
		if crate.Root == nil {
			continue
		}
		label := crate.Name
		if label == "" {
			label = "crate"
		}
		fmt.Fprintf(w, "%s: %d modules\n", label, countModules(crate.Root))
	}
	for _, d := range ws.Diagnostics {
		fmt.Fprintf(w, "warning: %s\n", d)
	}
}

func countModules(mod *model.Module) int {
	n := 1
	for _, sub := range mod.Submodules {
		n += countModules(sub)
	}
	return n
}

// flagsWithValue lists flags that take a value argument, following the
// teacher's reorderArgs table.
var flagsWithValue = map[string]bool{
	"-cache": true, "--cache": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag
// package can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
