package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/schema"
	"github.com/quarrydata/quarry/internal/store"
	"github.com/quarrydata/quarry/internal/stream"
)

// StreamOptions holds flags for the stream command.
type StreamOptions struct {
	*RootOptions
	Config   string
	Database string
	Tick     time.Duration
	Seed     int64
}

// NewStreamCommand creates the stream command: continuous generation into
// a SQLite database.
func NewStreamCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StreamOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Continuously generate rows into a SQLite database",
		Long: `Bootstrap the generation caches from previously persisted rows, then
append new rows to each cadenced table at its configured rows-per-minute
rate until interrupted.

Example:
  quarry stream --config schema.yaml --db ./data.db
  quarry stream --config schema.yaml --db ./data.db --tick 2s --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ov := seedOverride(cmd.Flags().Changed("seed"), opts.Seed)
			return runStream(cmd, opts, ov)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to schema config (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().DurationVar(&opts.Tick, "tick", stream.DefaultTick, "scheduler tick interval")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "override the config seed")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStream(cmd *cobra.Command, opts *StreamOptions, ov schema.Overrides) error {
	p, reg, err := loadPlan(opts.Config, ov)
	if err != nil {
		return err
	}

	slog.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, name := range p.Order {
		if err := st.EnsureTable(ctx, p.Tables[name].Table); err != nil {
			return WrapExitError(ExitCommandError, "prepare tables", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sched := stream.New(p, reg, st, stream.Options{Tick: opts.Tick})

	slog.Info("scheduler starting", "db", opts.Database, "tick", opts.Tick)
	fmt.Fprintln(cmd.OutOrStdout(), "Streaming started. Press Ctrl-C to stop.")

	if err := sched.Run(ctx); err != nil {
		printError(cmd.ErrOrStderr(), "streaming failed: %v", err)
		return WrapExitError(ExitFailure, "stream", err)
	}

	printSuccess(cmd.OutOrStdout(), "Streaming stopped gracefully.")
	return nil
}
