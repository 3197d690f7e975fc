package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tickworker",
		Short:         "Cooperative deadline-bounded work scheduler",
		Long:          "tickworker drains workload queues on a fixed tick, spending at most a time budget per queue per tick.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("TICKWORKER_CONFIG"), "YAML config file (watched for default_budget changes)")

	rootCmd.AddCommand(newRunCommand(), newVersionCommand())
	return rootCmd
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler and serve metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts Options
			opts.ConfigPath, _ = cmd.Flags().GetString("config")
			opts.Workers, _ = cmd.Flags().GetInt("workers")
			opts.TickInterval, _ = cmd.Flags().GetDuration("tick")
			opts.DefaultBudget, _ = cmd.Flags().GetDuration("budget")
			opts.LogLevel, _ = cmd.Flags().GetString("log-level")
			opts.MetricsListen, _ = cmd.Flags().GetString("metrics-listen")
			opts.DemoItems, _ = cmd.Flags().GetInt("demo-items")
			opts.Once, _ = cmd.Flags().GetBool("once")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := Run(ctx, opts, cmd.ErrOrStderr()); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "Worker pool size (overrides config)")
	cmd.Flags().Duration("tick", 0, "Tick interval (overrides config)")
	cmd.Flags().Duration("budget", 0, "Default per-tick budget (overrides config)")
	cmd.Flags().String("log-level", "", "Log level: debug|info|warn|error (overrides config)")
	cmd.Flags().String("metrics-listen", "", "Serve Prometheus metrics on this address (enables metrics)")
	cmd.Flags().Int("demo-items", 0, "Queue a demo loop over this many items")
	cmd.Flags().Bool("once", false, "Exit when the demo loop completes")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "tickworker", version)
		},
	}
}

