package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// maintainer is implemented by readers that hold a connection open, such as
// the libvirt host reader.
type maintainer interface {
	Maintain(ctx context.Context) error
}

func (a *Agent) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.sampler.Run(gctx)
	})
	g.Go(func() error {
		return a.runHTTPServer(gctx)
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	g.Go(func() error {
		return a.runProbeListener(gctx)
	})
	if m, ok := a.reader.(maintainer); ok {
		g.Go(func() error {
			return m.Maintain(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runHTTPServer(ctx context.Context) error {
	// Request contexts derive from ctx so long-lived WebSocket streams end
	// with the agent; Shutdown does not track hijacked connections.
	a.http.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.http.ListenAndServe()
	}()
	a.logger.Info("http server listening", "addr", a.http.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server %s: %w", a.http.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			ok := a.evaluateHealth()
			if ok != serving {
				if ok {
					a.logger.Info("sampler recovered, probe serving")
				} else {
					a.logger.Warn("sampler failing, probe not serving", "consecutive_failures", a.health.ConsecutiveFailures())
				}
				serving = ok
			}
		}
	}
}

func (a *Agent) evaluateHealth() bool {
	status := syncProbe(a.probe, a.health)
	a.logger.Log(context.Background(), slog.LevelDebug, "agent health", "status", status.String(), "snapshot", a.health.Snapshot())
	return status == healthpb.HealthCheckResponse_SERVING
}

func (a *Agent) shutdown() {
	a.probe.Shutdown()
	if c, ok := a.reader.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("metric reader close failed", "error", err)
		}
	}
}
