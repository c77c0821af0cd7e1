// Command gradebook initializes the local gradebook database and runs
// maintenance tasks against it: seeding demo data, resetting, exporting and
// printing a summary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"gradebook/internal/blob"
	"gradebook/internal/config"
	"gradebook/internal/core"
)

var exitFunc = os.Exit

const (
	metricsNone       = ""
	metricsExpvar     = "expvar"
	metricsPrometheus = "prometheus"
)

type options struct {
	dotEnv     string
	seed       bool
	force      bool
	noLessons  bool
	reset      bool
	exportPath string
	metrics    string
}

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gradebook", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.dotEnv, "env", config.DefaultDotEnv, "optional .env file with GRADEBOOK_* settings")
	fs.BoolVar(&opts.seed, "seed", false, "seed demo groups, rosters, lessons and a timetable")
	fs.BoolVar(&opts.force, "force", false, "with -seed, clear existing data first")
	fs.BoolVar(&opts.noLessons, "no-lessons", false, "with -seed, skip demo lessons")
	fs.BoolVar(&opts.reset, "reset", false, "drop every table and start empty")
	fs.StringVar(&opts.exportPath, "export", "", "write the full dataset as JSON to this file")
	fs.StringVar(&opts.metrics, "metrics", metricsNone, "print operation metrics after running (expvar|prometheus)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	switch opts.metrics {
	case metricsNone, metricsExpvar, metricsPrometheus:
	default:
		_, _ = fmt.Fprintf(stderr, "unknown -metrics value %q\n", opts.metrics)
		return 2
	}

	cfg, err := config.LoadFrom(opts.dotEnv)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, opts, logger, stdout); err != nil {
		logger.Error("gradebook failed", zap.Error(err))
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, opts options, logger *zap.Logger, stdout io.Writer) error {
	store, err := core.OpenPersistentStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	svcOpts := []core.ServiceOption{core.WithLogger(logger), core.WithBlobStore(blobs)}
	var (
		expvarRec *core.ExpvarMetricsRecorder
		registry  *prometheus.Registry
	)
	switch opts.metrics {
	case metricsExpvar:
		expvarRec = core.NewExpvarMetricsRecorder("")
		svcOpts = append(svcOpts, core.WithMetricsRecorder(expvarRec))
	case metricsPrometheus:
		registry = prometheus.NewRegistry()
		svcOpts = append(svcOpts, core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder(registry, cfg.MetricsNamespace)))
	}

	svc := core.NewService(store, svcOpts...)
	if err := svc.Initialize(ctx); err != nil {
		return err
	}
	if opts.reset {
		if err := svc.Reset(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "reset: all tables cleared")
	}
	if opts.seed {
		res, err := svc.SeedDemo(ctx, core.SeedOptions{Force: opts.force, IncludeLessons: !opts.noLessons})
		if err != nil {
			return err
		}
		if res.Skipped {
			_, _ = fmt.Fprintln(stdout, "seed: skipped, groups already exist (use -force)")
		} else {
			_, _ = fmt.Fprintf(stdout, "seed: %d groups, %d students, %d lessons, %d schedules\n",
				len(res.Groups), len(res.Students), len(res.Lessons), len(res.Schedules))
		}
	}
	if opts.exportPath != "" {
		if err := writeExport(opts.exportPath, svc); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "export: wrote %s\n", opts.exportPath)
	}
	printSummary(stdout, svc)

	switch {
	case expvarRec != nil:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(expvarRec.Snapshot())
	case registry != nil:
		return writePrometheus(stdout, registry)
	}
	return nil
}

func writeExport(path string, svc *core.Service) error {
	data, err := json.MarshalIndent(svc.Export(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, svc *core.Service) {
	r := svc.Reader()
	counts := r.Counts()
	_, _ = fmt.Fprintf(w, "groups=%d students=%d marks=%d observations=%d lessons=%d schedules=%d\n",
		counts.Groups, counts.Students, counts.Marks, counts.Observations, counts.Lessons, counts.Schedules)
	selected := r.SelectedGroupID()
	for _, g := range r.Groups() {
		marker := " "
		if g.ID == selected {
			marker = "*"
		}
		timetable := "-"
		if s, ok := r.GroupSchedule(g.ID); ok {
			timetable = s.Title
		}
		_, _ = fmt.Fprintf(w, "%s %-8s %-3s students=%-3d lessons=%-3d timetable=%s\n",
			marker, g.Code, g.Grade, len(r.Students(g.ID)), len(r.Lessons(g.ID)), timetable)
	}
	active, hasActive := r.ActiveSchedule()
	for _, s := range r.Schedules() {
		marker := " "
		if hasActive && s.ID == active.ID {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s schedule %q slots=%d\n", marker, s.Title, len(s.Slots))
	}
}

func writePrometheus(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
