package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second. This gives the daemon time to drain
// in-flight sync/stub runs and close the control plane on first signal,
// while allowing the operator to force-quit if something hangs.
func shutdownContext(parent context.Context, logger *zap.SugaredLogger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Infow("received signal, initiating graceful shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			return
		}

		// Wait for second signal — force exit.
		select {
		case sig := <-sigCh:
			logger.Warnw("received second signal, forcing exit", "signal", sig.String())
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}

// sighupChannel returns a channel that receives SIGHUP, used to trigger an
// additive reload of the on-disk task files (§6.1) without disturbing the
// running daemon.
func sighupChannel() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)

	return ch
}
