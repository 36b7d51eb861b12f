package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// probeService is the service name registered next to the overall ("") status.
const probeService = "host-health-agent"

func newProbeServer() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus(probeService, healthpb.HealthCheckResponse_SERVING)
	return hs
}

func (a *Agent) runProbeListener(ctx context.Context) error {
	addr := strings.TrimSpace(a.cfg.ProbeListenAddr)
	if addr == "" {
		a.logger.Info("probe endpoint disabled")
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen probe endpoint %s: %w", addr, err)
	}
	a.logger.Info("probe endpoint listening", "addr", ln.Addr().String())
	return serveProbe(ctx, ln, a.probe)
}

// serveProbe serves the gRPC health service on ln until ctx is done.
func serveProbe(ctx context.Context, ln net.Listener, probe *health.Server) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, probe)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		srv.GracefulStop()
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve probe endpoint %s: %w", ln.Addr(), err)
	}
	<-stopped
	return nil
}

// syncProbe publishes the current sampler health on the probe server.
func syncProbe(probe *health.Server, h *HealthStatus) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if !h.Serving() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	probe.SetServingStatus("", status)
	probe.SetServingStatus(probeService, status)
	return status
}
