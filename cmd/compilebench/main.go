// Package main provides the CLI entry point for compilebench, which measures
// how long a fixed set of external projects take to compile.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weiihann/compilebench/config"
	"github.com/weiihann/compilebench/harness"
	"github.com/weiihann/compilebench/pipeline"
	"github.com/weiihann/compilebench/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(config.New()).ExecuteContext(ctx)
	stop()

	if err != nil {
		newLogger(os.Stderr, false).Error("compilebench failed",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
}

// newLogger returns a slog logger rendered by charmbracelet/log.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		Prefix:          "compilebench",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           level,
	})

	return slog.New(handler)
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "compilebench",
		Short: "Compile-time benchmark across external projects",
		Long: `Compilebench clones a fixed list of projects, warms up their build
tooling, then times repeated clean+compile rounds for each project one at a
time and writes the per-round durations to a report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "",
		"Path to a config file (YAML, TOML or JSON)")
	flags.BoolP("verbose", "v", false,
		"Log executed commands")
	flags.String("root", "projects",
		"Directory holding the project checkouts")
	flags.String("projects-file", "",
		"YAML project catalog (default: built-in list)")
	flags.StringSlice("only", nil,
		"Benchmark only these projects (org/name)")

	root.AddCommand(newRunCmd(v, nil))
	root.AddCommand(newListCmd(v))

	return root
}

// newRunCmd builds the run command. A nil exec uses real processes.
func newRunCmd(v *viper.Viper, exec harness.Executor) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the compile benchmark and write a report",
		Long: `Acquire every project, warm up build tooling in parallel, wait for all
warmups to finish, then run the timed clean+compile rounds sequentially.

Environment variables COMPILEBENCH_<KEY> override defaults; NO_WARMUP and
NO_COMPILE disable warmup and measurement when set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}

			cfg, err := config.Load(v, true)
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

			return runBenchmark(cmd.Context(), logger, cfg, exec)
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "",
		"Report destination (required)")
	flags.Int("rounds", pipeline.DefaultRounds,
		"Timed rounds per project")
	flags.Bool("clone", true,
		"Clone missing projects")
	flags.Bool("warmup", true,
		"Compile every project once before measuring")
	flags.Bool("compile", true,
		"Run the timed rounds")
	flags.Int("warmup-parallelism", pipeline.DefaultWarmupParallelism,
		"Concurrent warmup compiles")
	flags.String("clone-method", harness.CloneGit,
		"How to clone: git or go-git")
	flags.Duration("command-timeout", 0,
		"Per-command timeout (0 = wait indefinitely)")
	flags.String("format", report.FormatCSV,
		"Report format: csv or json")

	_ = flags.MarkHidden("warmup-parallelism")

	return cmd
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.Config,
	exec harness.Executor,
) error {
	projects, err := cfg.Projects()
	if err != nil {
		return err
	}

	logger = logger.With(slog.String("run_id", uuid.NewString()))

	logger.InfoContext(ctx, "starting benchmark",
		slog.Int("projects", len(projects)),
		slog.Int("rounds", cfg.Rounds),
		slog.Bool("warmup", cfg.Warmup),
		slog.Bool("compile", cfg.Compile),
		slog.String("root", cfg.Root),
		slog.String("output", cfg.Output),
	)

	if exec == nil {
		exec = harness.NewCommandExecutor(logger, cfg.CommandTimeout)
	}

	cloner, err := harness.NewCloner(cfg.CloneMethod, exec, logger)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg.Pipeline(), exec, cloner, logger)
	if err != nil {
		return err
	}

	results, err := p.Run(ctx, projects)
	if err != nil {
		return fmt.Errorf("benchmark aborted, no report written: %w", err)
	}

	if err := report.WriteFile(cfg.Output, cfg.Format, results); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.InfoContext(ctx, "report written",
		slog.String("path", cfg.Output),
		slog.Int("rows", len(results)),
	)

	return nil
}

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the projects a run would benchmark",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}

			cfg, err := config.Load(v, false)
			if err != nil {
				return err
			}

			projects, err := cfg.Projects()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROJECT\tROOT\tSTATUS\tCOMPILE")

			for _, p := range projects {
				status := "missing"
				if p.Exists() {
					status = "present"
				}

				fmt.Fprintf(tw, "%s\t%s\t%s\t%q\n",
					p.Show(), p.Root(), status, p.CompileCommand())
			}

			return tw.Flush()
		},
	}
}
