// Command correlf fingerprints ELF binaries and ranks them against a
// content-addressed catalog by structural similarity. It follows the
// teacher repo's single-binary, flag-based CLI conventions (profiling
// flags, -version) but is organized into subcommands, one per
// spec.md §6 operation plus the operator workflows of §4.12/§4.16.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/omertheroot/correlf/cmd/correlf/browser"
	"github.com/omertheroot/correlf/internal/catalog"
	"github.com/omertheroot/correlf/internal/coderec"
	"github.com/omertheroot/correlf/internal/compare"
	"github.com/omertheroot/correlf/internal/config"
	"github.com/omertheroot/correlf/internal/fingerprint"
	"github.com/omertheroot/correlf/internal/httpapi"
	"github.com/omertheroot/correlf/internal/ingest"
	"github.com/omertheroot/correlf/internal/minhash"
	"github.com/omertheroot/correlf/internal/weightsearch"
)

var version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "-version" || cmd == "--version" {
		fmt.Printf("correlf version %s\n", version)
		return
	}

	var err error
	switch cmd {
	case "ingest":
		err = runIngest(args)
	case "compare":
		err = runCompare(args)
	case "analyze":
		err = runAnalyze(args)
	case "serve":
		err = runServe(args)
	case "watch":
		err = runWatch(args)
	case "weights-search":
		err = runWeightsSearch(args)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "correlf %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: correlf <command> [options]

Commands:
  ingest <zip-or-dir>...   batch-ingest archives and/or directories into the catalog
  compare <fileA> <fileB>  one-shot pairwise comparison, nothing persisted
  analyze [-tui] <file>    rank one file against the whole catalog
  serve [-addr :8080]      run the HTTP surface
  watch [-interval 5s] <dir>
                           poll a directory and auto-ingest changed files
  weights-search [-iterations N] <labels.json>
                           randomized local search over the comparator's weight maps

  -version                 print the version and exit
`)
}

// profiling wires -cpuprofile/-memprofile into fs, kept from the
// teacher's main.go in spirit. Returns a cleanup func the caller must
// defer.
func profiling(fs *flag.FlagSet) func() {
	cpuProfile := fs.String("cpuprofile", "", "Write CPU profile to file")
	memProfile := fs.String("memprofile", "", "Write memory profile to file")

	return func() {
		if *cpuProfile != "" {
			f, err := os.Create(*cpuProfile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not create CPU profile: %v\n", err)
				return
			}
			pprof.StartCPUProfile(f)
			defer pprof.StopCPUProfile()
			defer f.Close()
		}
		if *memProfile != "" {
			f, err := os.Create(*memProfile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
				return
			}
			defer f.Close()
			pprof.WriteHeapProfile(f)
		}
	}
}

// buildService loads configuration and wires every component in the
// fingerprinting/comparison pipeline behind an ingest.Service, the
// way every subcommand below needs it.
func buildService() (*ingest.Service, *config.Config, catalog.Repository, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
	}

	store, err := catalog.OpenJSONStore(cfg.CatalogPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening catalog: %w", err)
	}

	mh := minhash.New(cfg.MinHashLength, cfg.MinHashDictionarySize, cfg.MinHashSeed)
	bridge := coderec.NewBridge(cfg.CoderecEnabled, cfg.CoderecLocation)
	extractor := fingerprint.NewExtractor(mh, bridge, cfg.StringMinLength)
	extractor.ReadelfPath = cfg.ReadelfPath
	comparer := compare.NewComparator(cfg, mh)

	workers := cfg.Workers
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc := ingest.NewService(extractor, store, comparer, workers, logger)

	return svc, cfg, store, nil
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	cleanup := profiling(fs)
	defer cleanup()
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("usage: correlf ingest <zip-or-dir>...")
	}

	svc, _, _, err := buildService()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var total int
	for _, p := range paths {
		info, statErr := os.Stat(p)
		if statErr != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", p, statErr)
			continue
		}

		var results []ingest.EntryResult
		switch {
		case info.IsDir():
			results, err = svc.IngestDir(ctx, p)
		case strings.HasSuffix(strings.ToLower(p), ".zip"):
			data, readErr := os.ReadFile(p)
			if readErr != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", p, readErr)
				continue
			}
			results, err = svc.IngestZip(ctx, data)
		default:
			var one ingest.EntryResult
			one, err = svc.IngestFile(ctx, filepath.Base(p), p)
			results = []ingest.EntryResult{one}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest failed for %s: %v\n", p, err)
			continue
		}

		for _, r := range results {
			if r.Err != nil {
				fmt.Printf("  %s: FAILED (%v)\n", r.Name, r.Err)
				continue
			}
			status := "already in catalog"
			if r.Persisted {
				status = "ingested"
				total++
			}
			fmt.Printf("  %s: %s\n", r.Name, status)
		}
	}

	fmt.Printf("ingested %d new file(s)\n", total)
	return nil
}

func runCompare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	cleanup := profiling(fs)
	defer cleanup()
	fs.Parse(args)

	if fs.NArg() != 2 {
		return fmt.Errorf("usage: correlf compare <fileA> <fileB>")
	}
	pathA, pathB := fs.Arg(0), fs.Arg(1)

	svc, _, _, err := buildService()
	if err != nil {
		return err
	}

	dataA, err := os.ReadFile(pathA)
	if err != nil {
		return err
	}
	dataB, err := os.ReadFile(pathB)
	if err != nil {
		return err
	}

	cmp, err := svc.Compare(context.Background(), filepath.Base(pathA), pathA, dataA, filepath.Base(pathB), pathB, dataB)
	if err != nil {
		return err
	}

	return printJSON(cmp)
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	tuiMode := fs.Bool("tui", false, "launch the interactive ranking browser")
	cleanup := profiling(fs)
	defer cleanup()
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: correlf analyze [-tui] <file>")
	}
	path := fs.Arg(0)

	svc, _, _, err := buildService()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	comparisons, err := svc.Analyze(context.Background(), filepath.Base(path), path, data)
	if err != nil {
		return err
	}

	if *tuiMode {
		rows := browser.RowsFromComparisons(comparisons, func(string) string { return "" })
		browser.New(rows).Run()
		return nil
	}

	return printJSON(comparisons)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "address to listen on")
	cleanup := profiling(fs)
	defer cleanup()
	fs.Parse(args)

	svc, cfg, _, err := buildService()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	server := httpapi.NewServer(svc, cfg.UploadSizeLimit, logger)

	logger.Info("correlf serving", "addr", *addr)
	return server.ListenAndServe(*addr)
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", 5*time.Second, "poll interval")
	cleanup := profiling(fs)
	defer cleanup()
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: correlf watch [-interval 5s] <dir>")
	}
	dir := fs.Arg(0)

	svc, _, _, err := buildService()
	if err != nil {
		return err
	}

	w := ingest.NewWatcher(svc, dir, *interval)
	fmt.Printf("watching %s (interval: %v); press Ctrl+C to stop\n", dir, *interval)
	return w.Run(context.Background())
}

func runWeightsSearch(args []string) error {
	fs := flag.NewFlagSet("weights-search", flag.ExitOnError)
	iterations := fs.Int("iterations", 500, "local-search iteration count per weight map")
	seed := fs.Int64("seed", 1, "random seed")
	cleanup := profiling(fs)
	defer cleanup()
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: correlf weights-search [-iterations N] <labeled-pairs.json>")
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	var pairs []weightsearch.LabeledPair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return fmt.Errorf("decoding labeled pairs: %w", err)
	}

	_, cfg, _, err := buildService()
	if err != nil {
		return err
	}

	mh := minhash.New(cfg.MinHashLength, cfg.MinHashDictionarySize, cfg.MinHashSeed)
	bridge := coderec.NewBridge(cfg.CoderecEnabled, cfg.CoderecLocation)
	extractor := fingerprint.NewExtractor(mh, bridge, cfg.StringMinLength)
	extractor.ReadelfPath = cfg.ReadelfPath
	comparer := compare.NewComparator(cfg, mh)

	samples, err := weightsearch.BuildSamples(context.Background(), extractor, comparer, pairs)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	full := weightsearch.SearchFull(cfg, samples, *iterations, rng)
	fallback := weightsearch.SearchFallback(cfg, samples, *iterations, rng)

	cfg.WeightsFull = full.Weights
	cfg.WeightsFallback = fallback.Weights

	path := config.FindConfigFile()
	if path == "" {
		path = ".correlfrc"
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}

	fmt.Printf("full-weights margin: %.4f, fallback-weights margin: %.4f\n", full.Margin, fallback.Margin)
	fmt.Printf("wrote updated weights to %s\n", path)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
