package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pgoodall/tagtally/internal/batch"
	systemclock "github.com/pgoodall/tagtally/internal/clock/system"
	"github.com/pgoodall/tagtally/internal/config"
	"github.com/pgoodall/tagtally/internal/dispatcher"
	"github.com/pgoodall/tagtally/internal/export"
	"github.com/pgoodall/tagtally/internal/extractor"
	collyfetcher "github.com/pgoodall/tagtally/internal/fetcher/colly"
	idgen "github.com/pgoodall/tagtally/internal/id/uuid"
	"github.com/pgoodall/tagtally/internal/loader"
	"github.com/pgoodall/tagtally/internal/logging"
	"github.com/pgoodall/tagtally/internal/metrics"
	"github.com/pgoodall/tagtally/internal/ops"
	"github.com/pgoodall/tagtally/internal/progress"
	"github.com/pgoodall/tagtally/internal/progress/sinks"
	"github.com/pgoodall/tagtally/internal/recorder"
	"github.com/pgoodall/tagtally/internal/store"
	"github.com/pgoodall/tagtally/internal/tally"
	"github.com/pgoodall/tagtally/internal/worker"
)

type runFlags struct {
	workers int
	timeout int
	csvPath string
	dbPath  string
}

// newRunCmd creates and configures the 'run' subcommand. It executes one
// batch over the URL list file given as the positional argument.
func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <urls-file>",
		Short: "Runs a batch over a URL list file",
		Long: `Reads whitespace-separated URLs from the given file, fetches each
exactly once with a bounded worker pool, and records per-URL outcomes.
Re-running over the same store skips everything already recorded and
rewrites the CSV snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.workers, "workers", 0, "worker pool size (overrides config)")
	cmd.Flags().IntVar(&flags.timeout, "timeout", 0, "per-URL fetch timeout in seconds (overrides config)")
	cmd.Flags().StringVar(&flags.csvPath, "csv", "", "CSV snapshot path (overrides config)")
	cmd.Flags().StringVar(&flags.dbPath, "db", "", "sqlite database path (overrides config)")

	return cmd
}

func runBatch(cmd *cobra.Command, urlsFile string, flags runFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("close store", zap.Error(cerr))
		}
	}()

	runID, err := idgen.NewGenerator().NewRunID()
	if err != nil {
		return err
	}

	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		sinks.NewPrometheusSink(),
	)

	clk := systemclock.New()
	rec := recorder.New(st, hub, runID, clk, logger)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Batch.UserAgent,
		Timeout:   cfg.Timeout(),
	}, logger)
	counter := extractor.New(cfg.Batch.TargetTag)

	pool := make([]*worker.Worker, 0, cfg.Batch.Workers)
	for i := 0; i < cfg.Batch.Workers; i++ {
		pool = append(pool, worker.New(fetcher, counter, rec, logger))
	}
	disp, err := dispatcher.New(pool, logger)
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}

	orch := batch.New(
		loader.FileSource{Path: urlsFile},
		st,
		disp,
		export.NewCSVWriter(cfg.Export.CSVPath),
		hub,
		clk,
		runID,
		logger,
	)

	opsDone := startOps(ctx, cfg, orch, st, runID, logger)

	runErr := orch.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("close progress hub", zap.Error(err))
	}

	stop()
	<-opsDone

	return runErr
}

// startOps starts the operational HTTP server when enabled. The returned
// channel closes once the server has shut down; it is already closed when
// ops is disabled.
func startOps(
	ctx context.Context,
	cfg config.Config,
	orch *batch.Orchestrator,
	st tally.OutcomeStore,
	runID uuid.UUID,
	logger *zap.Logger,
) <-chan struct{} {
	done := make(chan struct{})
	if !cfg.Ops.Enabled {
		close(done)
		return done
	}
	srv := ops.NewServer(orch, st, runID, logger)
	go func() {
		defer close(done)
		if err := srv.Serve(ctx, cfg.Ops.Port); err != nil {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()
	return done
}

// loadConfig loads the file/env configuration and applies flag overrides.
// Overrides are re-validated so a bad flag fails before any dispatch.
func loadConfig(cmd *cobra.Command, flags runFlags) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers = flags.workers
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Batch.TimeoutSeconds = flags.timeout
	}
	if cmd.Flags().Changed("csv") {
		cfg.Export.CSVPath = flags.csvPath
	}
	if cmd.Flags().Changed("db") {
		cfg.Store.Path = flags.dbPath
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
