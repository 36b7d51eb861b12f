package agent

import (
	"math"
	"sync/atomic"
	"time"

	"host-health-agent/internal/model"
)

// unhealthyAfterFailures is the run of failed sampler ticks after which the
// probe reports NOT_SERVING.
const unhealthyAfterFailures = 3

type HealthStatus struct {
	lastSampleAt        atomic.Int64
	lastReportAt        atomic.Int64
	lastScore           atomic.Uint64
	consecutiveFailures atomic.Int64
	totalFailures       atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

// ObserveSample is a sampler hook.
func (h *HealthStatus) ObserveSample(snap model.Snapshot, err error) {
	if err != nil {
		h.consecutiveFailures.Add(1)
		h.totalFailures.Add(1)
		return
	}
	h.consecutiveFailures.Store(0)
	h.lastSampleAt.Store(snap.Timestamp.UnixNano())
}

// ObserveReport is an analyzer hook.
func (h *HealthStatus) ObserveReport(r model.Report) {
	h.lastScore.Store(math.Float64bits(r.HealthScore))
	h.lastReportAt.Store(time.Time(r.Timestamp).UnixNano())
}

func (h *HealthStatus) ConsecutiveFailures() int64 {
	return h.consecutiveFailures.Load()
}

func (h *HealthStatus) Serving() bool {
	return h.consecutiveFailures.Load() < unhealthyAfterFailures
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"serving":              h.Serving(),
		"consecutive_failures": h.consecutiveFailures.Load(),
		"total_failures":       h.totalFailures.Load(),
	}
	if v := h.lastSampleAt.Load(); v > 0 {
		out["last_sample_at"] = time.Unix(0, v).UTC()
	}
	if v := h.lastReportAt.Load(); v > 0 {
		out["last_report_at"] = time.Unix(0, v).UTC()
		out["last_health_score"] = math.Float64frombits(h.lastScore.Load())
	}
	return out
}
