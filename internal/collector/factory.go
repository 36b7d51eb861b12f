package collector

import (
	"fmt"
	"log/slog"

	"host-health-agent/internal/config"
	"host-health-agent/internal/libvirt"
)

// NewReaderFromConfig picks the metric source. The libvirt reader also
// implements io.Closer and a Maintain loop the agent runs.
func NewReaderFromConfig(cfg config.Config, logger *slog.Logger) (Reader, error) {
	switch cfg.MetricSource {
	case config.MetricSourceProcfs:
		return NewProcReader(cfg.ProcRoot), nil
	case config.MetricSourceGopsutil:
		return NewGopsutilReader(), nil
	case config.MetricSourceLibvirt:
		conn := libvirt.NewConnManager(cfg.LibvirtURI, cfg.ReconnectInterval, cfg.MaxReconnectJitter, logger)
		return libvirt.NewHostReader(conn, cfg.ProcRoot), nil
	default:
		return nil, fmt.Errorf("unsupported metric source %q", cfg.MetricSource)
	}
}
