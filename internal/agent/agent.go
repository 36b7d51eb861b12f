package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/health"

	"host-health-agent/internal/agent/version"
	"host-health-agent/internal/analyzer"
	"host-health-agent/internal/collector"
	"host-health-agent/internal/config"
	"host-health-agent/internal/history"
	"host-health-agent/internal/httpapi"
	"host-health-agent/internal/model"
	"host-health-agent/internal/telemetry"
)

type Agent struct {
	cfg      config.Config
	logger   *slog.Logger
	reader   collector.Reader
	history  *history.Store
	sampler  *collector.Sampler
	analyzer *analyzer.Analyzer
	metrics  *telemetry.Metrics
	health   *HealthStatus
	probe    *health.Server
	http     *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	reader, err := collector.NewReaderFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("metric reader: %w", err)
	}
	return newAgent(cfg, logger, reader, time.Now()), nil
}

// newAgent wires every component around one history store and one builder.
func newAgent(cfg config.Config, logger *slog.Logger, reader collector.Reader, start time.Time) *Agent {
	store := history.NewStore(cfg.HistoryMaxEntries, cfg.HistoryMaxAge)
	builder := collector.NewBuilder(reader, start, time.Now)
	status := NewHealthStatus()
	metrics := telemetry.New(store.Len)

	sampler := collector.NewSampler(logger, builder, store, cfg.SampleInterval,
		status.ObserveSample,
		metrics.ObserveSample,
	)
	an := analyzer.New(builder, store,
		status.ObserveReport,
		metrics.ObserveReport,
	)

	api := httpapi.NewServer(logger, an, store, httpapi.Options{
		PushInterval: cfg.WSPushInterval,
		WriteTimeout: cfg.WSWriteTimeout,
		Metrics:      metrics.Handler(),
		Version:      func() version.Info { return version.Get(cfg, time.Now()) },
	})

	return &Agent{
		cfg:      cfg,
		logger:   logger,
		reader:   reader,
		history:  store,
		sampler:  sampler,
		analyzer: an,
		metrics:  metrics,
		health:   status,
		probe:    newProbeServer(),
		http: &http.Server{
			Addr:              cfg.HTTPListenAddr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Analyze produces one report on demand, as GET /analyze does.
func (a *Agent) Analyze(ctx context.Context) (model.Report, error) {
	return a.analyzer.Analyze(ctx)
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting host-health-agent",
		"hostname", a.cfg.Hostname,
		"metric_source", a.cfg.MetricSource,
		"http_addr", a.cfg.HTTPListenAddr,
		"version", a.cfg.AgentVersion,
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Agent terminated by itself (startup error/runtime error/parent ctx canceled).
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	a.shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("host-health-agent stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	return buildLogger(cfg, os.Stdout)
}

func buildLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(w, hOpts))
	}
	return slog.New(slog.NewTextHandler(w, hOpts))
}
