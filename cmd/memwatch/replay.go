package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/joshuapare/memwatch/internal/config"
	"github.com/joshuapare/memwatch/internal/logging"
	"github.com/joshuapare/memwatch/internal/trace"
	"github.com/joshuapare/memwatch/metrics"
	"github.com/joshuapare/memwatch/watch"
)

// errLeaks is returned with --fail-on-leak when live records remain.
var errLeaks = errors.New("live allocations remain")

type replayFlags struct {
	maxTracked int
	buckets    int
	reposition bool
	metrics    bool
	failOnLeak bool
	namespace  string
}

func newReplayCmd(g *globalFlags) *cobra.Command {
	f := &replayFlags{}
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay an allocation trace and report live allocations",
		Long: `The replay command feeds every event of a trace file to a watchdog
registry and prints the report. Use "-" to read the trace from stdin.

Trace lines look like:
  alloc   0x1000 64 a.c:10
  realloc 0x3000 4KiB b.c:7
  free    0x1000 a.c:12

Example:
  memwatch replay app.trace
  memwatch replay app.trace --max-tracked 100000 --fail-on-leak
  memwatch replay app.trace --json --metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			f.overlay(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := setupLogging(cmd, cfg); err != nil {
				return err
			}
			return runReplay(cmd, cfg, args[0])
		},
	}

	cmd.Flags().IntVar(&f.maxTracked, "max-tracked", watch.DefaultMaxTracked, "Maximum number of live allocations tracked")
	cmd.Flags().IntVar(&f.buckets, "buckets", watch.DefaultBuckets, "Number of hash buckets")
	cmd.Flags().BoolVar(&f.reposition, "reposition", false, "Move the pool's scan cursor back to a freed slot")
	cmd.Flags().BoolVar(&f.metrics, "metrics", false, "Append Prometheus metrics to the report")
	cmd.Flags().BoolVar(&f.failOnLeak, "fail-on-leak", false, "Exit non-zero when allocations remain live")
	cmd.Flags().StringVar(&f.namespace, "namespace", "memwatch", "Metric namespace")
	return cmd
}

func (f *replayFlags) overlay(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-tracked") {
		cfg.Registry.MaxTracked = f.maxTracked
	}
	if flags.Changed("buckets") {
		cfg.Registry.Buckets = f.buckets
	}
	if flags.Changed("reposition") {
		cfg.Registry.ReclaimReposition = f.reposition
	}
	if flags.Changed("metrics") {
		cfg.Report.Metrics = f.metrics
	}
	if flags.Changed("fail-on-leak") {
		cfg.Report.FailOnLeak = f.failOnLeak
	}
	if flags.Changed("namespace") {
		cfg.Report.Namespace = f.namespace
	}
}

// replayOutput is the JSON shape of a replay.
type replayOutput struct {
	Trace  string       `json:"trace"`
	Events int          `json:"events"`
	Replay trace.Result `json:"replay"`
	Report watch.Report `json:"report"`
}

func runReplay(cmd *cobra.Command, cfg config.Config, path string) error {
	events, err := readTrace(cmd, path)
	if err != nil {
		return err
	}
	logging.L.Debug("trace loaded", "path", path, "events", len(events))

	reg, err := watch.New(cfg.Registry, watch.WithLogger(logging.L))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := reg.Close(); cerr != nil {
			logging.L.Warn("closing registry", "err", cerr)
		}
	}()

	res, err := trace.Apply(cmd.Context(), reg, events)
	if err != nil {
		return err
	}
	rep := reg.Report()
	rep.Log(logging.L)

	out := cmd.OutOrStdout()
	if cfg.Report.Format == config.ReportJSON {
		err = printJSON(out, replayOutput{Trace: path, Events: len(events), Replay: res, Report: rep})
	} else {
		err = writeText(out, path, res, rep)
	}
	if err != nil {
		return err
	}

	if cfg.Report.Metrics {
		if err := writeMetrics(out, reg, cfg.Report.Namespace); err != nil {
			return err
		}
	}

	if cfg.Report.FailOnLeak && len(rep.Records) > 0 {
		return fmt.Errorf("%w: %d allocation(s), %d bytes", errLeaks, len(rep.Records), rep.LiveBytes())
	}
	return nil
}

func readTrace(cmd *cobra.Command, path string) ([]trace.Event, error) {
	if path == "-" {
		return trace.Parse(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()
	return trace.Parse(f)
}

func writeText(w io.Writer, path string, res trace.Result, rep watch.Report) error {
	if _, err := fmt.Fprintf(w, "replayed %d event(s) from %s: %d applied, %d dropped, %d untracked\n",
		res.Total(), path, res.Applied, res.Dropped, res.Untracked); err != nil {
		return err
	}
	return rep.WriteText(w)
}

func writeMetrics(w io.Writer, reg *watch.Registry, namespace string) error {
	pr := prometheus.NewPedanticRegistry()
	if err := pr.Register(metrics.NewCollector(reg, namespace)); err != nil {
		return err
	}
	mfs, err := pr.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
