package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sghaida/odispatch/internal/config"
	"github.com/sghaida/odispatch/internal/gen"
	"github.com/sghaida/odispatch/internal/logging"
	"github.com/sghaida/odispatch/internal/metrics"
	"github.com/sghaida/odispatch/internal/output"
	"github.com/sghaida/odispatch/internal/source"
)

const usage = "usage: dispatchgen [-config file] [-dry-run] [-prune] [-metrics-textfile path] [-v] [dirs...]"

// Exit codes.
const (
	exitOK       = 0
	exitFailed   = 1
	exitUsage    = 2
	exitConflict = 3
)

// run executes the generator and returns an exit code.
// It exists separately from main to allow unit testing without os.Exit.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("dispatchgen", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { _, _ = fmt.Fprintln(stderr, usage) }

	configPath := flags.String("config", "", "config file (default: dispatchgen.yaml|yml|toml in the working directory)")
	dryRun := flags.Bool("dry-run", false, "list the files that would change without writing them")
	prune := flags.Bool("prune", false, "remove generated files that are no longer produced")
	textfile := flags.String("metrics-textfile", "", "write run metrics in the Prometheus text format to this file")
	verbose := flags.Bool("v", false, "log at debug level")

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	wd, err := os.Getwd()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "dispatchgen:", err)
		return exitFailed
	}
	cfg, cfgFile, err := config.Resolve(*configPath, wd)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "dispatchgen:", err)
		return exitUsage
	}
	if *prune {
		cfg.Prune = true
	}
	if *textfile != "" {
		cfg.Metrics.Textfile = *textfile
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logging.New(cfg.Log, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "dispatchgen:", err)
		return exitUsage
	}
	defer func() { _ = log.Sync() }()
	if cfgFile != "" {
		log.Debug("config loaded", zap.String("file", cfgFile))
	}

	g, err := gen.New(cfg.GenOptions(log))
	if err != nil {
		log.Error("invalid generator options", zap.Error(err))
		return exitUsage
	}

	code, err := generate(ctx, g, cfg, flags.Args(), *dryRun, stdout, stderr, log)
	if err != nil {
		log.Error("generation failed", zap.Error(err))
		return exitFailed
	}
	return code
}

func generate(ctx context.Context, g *gen.Generator, cfg config.Config, patterns []string, dryRun bool, stdout, stderr io.Writer, log *zap.Logger) (int, error) {
	start := time.Now()

	set, err := source.Loader{Suffix: cfg.Naming.Suffix}.Load(ctx, patterns...)
	if err != nil {
		return exitFailed, err
	}
	res, err := g.Run(ctx, set)
	if err != nil {
		return exitFailed, err
	}
	for _, d := range res.Diagnostics {
		_, _ = fmt.Fprintln(stderr, d.String())
	}

	dirs := make([]string, 0, len(set.Packages))
	for _, p := range set.Packages {
		dirs = append(dirs, p.Dir)
	}
	w := &output.Writer{DryRun: dryRun, Prune: cfg.Prune, Suffix: cfg.Naming.Suffix, Log: log}
	rep, err := w.Write(ctx, res.Artifacts, dirs)
	if err != nil {
		return exitFailed, err
	}

	verb := ""
	if dryRun {
		verb = "would "
	}
	for _, p := range rep.Written {
		_, _ = fmt.Fprintf(stdout, "%swrite %s\n", verb, p)
	}
	for _, p := range rep.Pruned {
		_, _ = fmt.Fprintf(stdout, "%sprune %s\n", verb, p)
	}

	if cfg.Metrics.Textfile != "" {
		m := metrics.New()
		m.Observe(res.Stats, time.Since(start))
		m.ObserveFiles(metrics.OutcomeWritten, len(rep.Written))
		m.ObserveFiles(metrics.OutcomeUnchanged, len(rep.Unchanged))
		m.ObserveFiles(metrics.OutcomePruned, len(rep.Pruned))
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return exitFailed, err
		}
	}

	if res.HasErrors() {
		return exitConflict, nil
	}
	return exitOK, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
