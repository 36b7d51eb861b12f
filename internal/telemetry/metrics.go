// Package telemetry exports the latest health report as Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"host-health-agent/internal/model"
)

type Metrics struct {
	registry *prometheus.Registry

	healthScore    prometheus.Gauge
	cpuUsage       prometheus.Gauge
	vcpus          prometheus.Gauge
	memoryUsage    prometheus.Gauge
	memoryHeadroom prometheus.Gauge
	loadAverage    *prometheus.GaugeVec
	samples        *prometheus.CounterVec
	reports        prometheus.Counter
}

// New registers the agent metrics on a private registry. historyLen, when
// non-nil, backs a gauge with the current history size.
func New(historyLen func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		healthScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "host_health_score",
			Help: "Latest host health score (0-100)",
		}),
		cpuUsage: f.NewGauge(prometheus.GaugeOpts{
			Name: "host_cpu_usage_percent",
			Help: "CPU usage over the latest history window",
		}),
		vcpus: f.NewGauge(prometheus.GaugeOpts{
			Name: "host_cpu_allocated_vcpus",
			Help: "Logical processors available to the agent",
		}),
		memoryUsage: f.NewGauge(prometheus.GaugeOpts{
			Name: "host_memory_usage_percent",
			Help: "Memory in use, excluding buffers and page cache",
		}),
		memoryHeadroom: f.NewGauge(prometheus.GaugeOpts{
			Name: "host_memory_headroom_percent",
			Help: "Memory still available",
		}),
		loadAverage: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "host_load_average",
			Help: "System load average",
		}, []string{"period"}),
		samples: f.NewCounterVec(prometheus.CounterOpts{
			Name: "host_health_samples_total",
			Help: "Background sampler ticks by result",
		}, []string{"result"}),
		reports: f.NewCounter(prometheus.CounterOpts{
			Name: "host_health_reports_total",
			Help: "Health reports produced",
		}),
	}
	if historyLen != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "host_health_history_entries",
			Help: "Snapshots currently retained in history",
		}, func() float64 { return float64(historyLen()) })
	}
	return m
}

func (m *Metrics) ObserveReport(r model.Report) {
	m.reports.Inc()
	m.healthScore.Set(r.HealthScore)
	m.cpuUsage.Set(r.CPU.Signals.CurrentUsagePercent)
	m.vcpus.Set(float64(r.CPU.Capacity.AllocatedVCPUs))
	m.memoryUsage.Set(r.Memory.Signals.UsagePercent())
	m.memoryHeadroom.Set(r.Memory.Capacity.HeadroomPercent)
	m.loadAverage.WithLabelValues("1m").Set(r.CPU.Signals.LoadAverage.Last1Min)
	m.loadAverage.WithLabelValues("5m").Set(r.CPU.Signals.LoadAverage.Last5Min)
	m.loadAverage.WithLabelValues("15m").Set(r.CPU.Signals.LoadAverage.Last15Min)
}

func (m *Metrics) ObserveSample(_ model.Snapshot, err error) {
	if err != nil {
		m.samples.WithLabelValues("error").Inc()
		return
	}
	m.samples.WithLabelValues("ok").Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
