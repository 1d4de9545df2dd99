package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memwatch/internal/config"
	"github.com/joshuapare/memwatch/internal/logging"
)

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "memwatch",
		Short: "Find allocations that were never freed",
		Long: `memwatch replays allocation traces through a fixed-capacity watchdog
registry and lists every allocation that is still live at the end,
together with the statistics of the watchdog's record pool.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: text, json, logfmt")
	root.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "Output in JSON format")

	root.AddCommand(newReplayCmd(g), newConfigCmd(g), newVersionCmd())
	return root
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// load reads the configuration file, if any, and overlays the persistent
// flags the user set explicitly.
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	if flags.Changed("json") && g.jsonOut {
		cfg.Report.Format = config.ReportJSON
	}
	return cfg, nil
}

// setupLogging points the process logger at the command's stderr.
func setupLogging(cmd *cobra.Command, cfg config.Config) error {
	opts, err := cfg.Log.Logging(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return logging.Init(opts)
}

// printJSON outputs data as indented JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
