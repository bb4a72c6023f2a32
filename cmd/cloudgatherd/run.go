package main

import (
	"context"
	"fmt"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/controlplane"
	"github.com/cloudgather/cloudgather/internal/daemoncfg"
	"github.com/cloudgather/cloudgather/internal/logging"
	"github.com/cloudgather/cloudgather/internal/scheduler"
	"github.com/cloudgather/cloudgather/internal/store"
	"github.com/cloudgather/cloudgather/internal/stubgen"
	"github.com/cloudgather/cloudgather/internal/syncengine"
)

// controlPlaneShutdownGrace bounds how long the control-plane HTTP server
// gets to drain in-flight requests during shutdown.
const controlPlaneShutdownGrace = 5 * time.Second

// newRunCmd starts the daemon: it loads config, opens the metadata store,
// wires the sync/stub runners into a scheduler, starts the control-plane
// HTTP adapter, and blocks until a shutdown signal arrives.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "start the CloudGather daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := logging.New(cfg.LogLevel)
			defer syncLogger(logger)

			statusf(flagQuiet, "cloudgatherd starting (http=%s log=%s)\n", cfg.HTTPAddr, cfg.LogLevel)

			cleanup, err := writePIDFile(cfg.PIDFile)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := shutdownContext(context.Background(), logger)

			st, err := store.Open(ctx, cfg.StoreFile, logger)
			if err != nil {
				return fmt.Errorf("opening metadata store: %w", err)
			}
			defer st.Close()

			engine := &syncengine.Engine{Store: st, Logger: logger}
			gen := &stubgen.Generator{Logger: logger}

			sched, err := scheduler.New(scheduler.Paths{
				SyncFile: cfg.SyncTasksFile,
				StubFile: cfg.StubTasksFile,
			}, logger, st, engine, gen)
			if err != nil {
				return fmt.Errorf("initializing scheduler: %w", err)
			}

			buckets := logging.NewBuckets()
			srv := controlplane.New(logger, sched, buckets, cfg.HTTPAddr, cfg.BrowseRoots)

			sched.Start()
			defer sched.Stop()

			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("starting control plane: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), controlPlaneShutdownGrace)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			watchReloadSignal(ctx, sched, logger)

			statusf(flagQuiet, "cloudgatherd ready\n")

			<-ctx.Done()

			statusf(flagQuiet, "cloudgatherd shutting down\n")

			return nil
		},
	}
}

// watchReloadSignal spawns a goroutine that calls sched.ReloadFromDisk on
// every SIGHUP until ctx is done (§6.1 operator hand-edits the on-disk task
// files while the daemon is running — additive discovery only, never an
// authoritative resync).
func watchReloadSignal(ctx context.Context, sched *scheduler.Scheduler, logger *zap.SugaredLogger) {
	reloadCh := sighupChannel()

	go func() {
		defer signal.Stop(reloadCh)

		for {
			select {
			case <-ctx.Done():
				return
			case <-reloadCh:
				added, err := sched.ReloadFromDisk()
				if err != nil {
					logger.Errorw("reload from disk failed", "error", err)
					continue
				}

				logger.Infow("reloaded task files from disk", "new_tasks", added)
			}
		}
	}()
}
