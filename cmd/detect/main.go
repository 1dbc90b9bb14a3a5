package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vanshika/purchasewatch/backend/internal/anomaly"
	"github.com/vanshika/purchasewatch/backend/internal/config"
	"github.com/vanshika/purchasewatch/backend/internal/domain"
	"github.com/vanshika/purchasewatch/backend/internal/graph"
	"github.com/vanshika/purchasewatch/backend/internal/logging"
	"github.com/vanshika/purchasewatch/backend/internal/metrics"
	"github.com/vanshika/purchasewatch/backend/internal/network"
	"github.com/vanshika/purchasewatch/backend/internal/repository"
	"github.com/vanshika/purchasewatch/backend/internal/service"
)

type options struct {
	ordering        string
	sigmas          float64
	metricsTextfile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "detect <batch_log> <stream_log> <flagged_purchases>",
		Short: "Flag purchases that stand out from the buyer's social network",
		Long: `Replay the batch log to build the social network and purchase history,
then replay the stream log and write every purchase that exceeds the network
mean by more than the configured number of standard deviations.

Configuration is read from the environment (and a .env file); flags override it.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("ordering") {
				cfg.Detection.Ordering = strings.ToLower(strings.TrimSpace(opts.ordering))
			}
			if cmd.Flags().Changed("sigmas") {
				cfg.Detection.Sigmas = opts.sigmas
			}
			if cmd.Flags().Changed("metrics-textfile") {
				cfg.Metrics.TextfilePath = opts.metricsTextfile
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringVar(&opts.ordering, "ordering", "", "history ordering: sequence or timestamp (DETECT_ORDERING)")
	cmd.Flags().Float64Var(&opts.sigmas, "sigmas", 0, "standard deviations above the mean that flag a purchase (DETECT_SIGMAS)")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run (METRICS_TEXTFILE)")
	return cmd
}

func run(ctx context.Context, cfg config.Config, batchPath, streamPath, outPath string) error {
	runID := uuid.New()
	logger := logging.New(cfg.Logging).With("component", "detect", "run_id", runID.String())

	ordering, err := network.ParseOrdering(cfg.Detection.Ordering)
	if err != nil {
		return err
	}

	batch, err := os.Open(batchPath)
	if err != nil {
		return fmt.Errorf("open batch log: %w", err)
	}
	defer batch.Close()

	stream, err := os.Open(streamPath)
	if err != nil {
		return fmt.Errorf("open stream log: %w", err)
	}
	defer stream.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	start := time.Now()
	socialGraph := network.New(logger, ordering)
	recorder := metrics.New()
	pipeline := service.NewPipeline(socialGraph, anomaly.NewClassifier(socialGraph, cfg.Detection.Sigmas), logger, recorder)

	logger.Info("replaying batch log", "path", batchPath, "ordering", ordering.String(), "sigmas", cfg.Detection.Sigmas)
	if err := pipeline.ReplayBatch(ctx, batch); err != nil {
		return fmt.Errorf("replay batch log: %w", err)
	}
	logger.Info("batch log replayed",
		"users", socialGraph.Len(),
		"purchases", socialGraph.PurchaseCount(),
		"degree", socialGraph.Degree(),
		"window", socialGraph.Window(),
	)

	w := bufio.NewWriter(out)
	flagged, streamErr := pipeline.ProcessStream(ctx, stream, w)
	if err := w.Flush(); err != nil && streamErr == nil {
		streamErr = fmt.Errorf("flush output: %w", err)
	}
	if streamErr != nil {
		return fmt.Errorf("process stream log: %w", streamErr)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if cfg.Metrics.TextfilePath != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Warn("metrics textfile not written", "error", err)
		}
	}

	if cfg.Graph.URI != "" {
		if err := exportRun(ctx, logger, cfg, runID, socialGraph.Friendships(), flagged); err != nil {
			return fmt.Errorf("graph export: %w", err)
		}
	}

	summary := pipeline.Summary()
	logger.Info("run complete",
		"users", socialGraph.Len(),
		"purchases", summary.Purchases,
		"flagged", summary.Flagged,
		"skipped", summary.Skipped,
		"insufficient_history", summary.InsufficientHistory,
		"duration", time.Since(start).String(),
	)
	return nil
}

func exportRun(ctx context.Context, logger *slog.Logger, cfg config.Config, runID uuid.UUID, edges []domain.Friendship, flagged []domain.FlaggedPurchase) error {
	client, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()
	logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)

	repo := repository.New(client)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	exporter := service.NewExporter(repo, runID, cfg.Export.Workers)
	start := time.Now()
	logger.Info("exporting friendships", "count", len(edges), "workers", cfg.Export.Workers)
	if err := exporter.ExportFriendships(ctx, edges); err != nil {
		return err
	}

	logger.Info("exporting flagged purchases", "count", len(flagged))
	if err := exporter.ExportFlags(ctx, flagged); err != nil {
		var taskErr *service.TaskError
		if errors.As(err, &taskErr) {
			logger.Error("some flagged purchases were not exported", "failed", len(taskErr.Errors))
		}
		return err
	}

	missing, err := exporter.Reconcile(ctx, repo, flagged)
	if err != nil {
		return fmt.Errorf("reconcile flagged purchases: %w", err)
	}
	if len(missing) > 0 {
		for _, flag := range missing {
			logger.Error("flagged purchase missing from graph",
				"user_id", flag.UserID.String(),
				"sequence", flag.Purchase.Sequence,
				"flag_id", exporter.FlagID(flag),
			)
		}
		return fmt.Errorf("%d of %d flagged purchases missing from graph", len(missing), len(flagged))
	}
	logger.Info("graph export complete", "flagged_stored", len(flagged), "duration", time.Since(start).String())
	return nil
}
