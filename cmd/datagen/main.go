package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanshika/purchasewatch/backend/internal/generator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := generator.DefaultConfig()
	var outputDir string

	cmd := &cobra.Command{
		Use:           "datagen",
		Short:         "Generate synthetic batch and stream logs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.FriendshipShare = clampProbability(cfg.FriendshipShare)
			cfg.UnfriendChance = clampProbability(cfg.UnfriendChance)
			cfg.SpikeChance = clampProbability(cfg.SpikeChance)

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			dataset, err := generator.New(cfg).Generate(ctx)
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}
			if err := generator.WriteFeeds(dataset, outputDir); err != nil {
				return fmt.Errorf("write feeds: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d batch and %d stream events into %s\n", len(dataset.Batch), len(dataset.Stream), outputDir)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.NumUsers, "users", cfg.NumUsers, "number of users")
	f.IntVar(&cfg.NumBatchEvents, "batch-events", cfg.NumBatchEvents, "events in the batch log, excluding the config record")
	f.IntVar(&cfg.NumStreamEvents, "stream-events", cfg.NumStreamEvents, "events in the stream log")
	f.IntVar(&cfg.Degree, "degree", cfg.Degree, "degree D written to the config record")
	f.IntVar(&cfg.Window, "window", cfg.Window, "window T written to the config record")
	f.Float64Var(&cfg.FriendshipShare, "friendship-share", cfg.FriendshipShare, "fraction of events that change a friendship")
	f.Float64Var(&cfg.UnfriendChance, "unfriend-chance", cfg.UnfriendChance, "probability a friendship change removes an edge")
	f.Float64Var(&cfg.SpikeChance, "spike-chance", cfg.SpikeChance, "probability a purchase is inflated 10x to 50x")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for deterministic generation")
	f.StringVar(&outputDir, "output-dir", "log_input", "directory for "+generator.BatchFile+" and "+generator.StreamFile)
	return cmd
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
