// Package analyzer turns the snapshot history into a scored health report.
package analyzer

import (
	"context"
	"fmt"
	"runtime"

	"host-health-agent/internal/collector"
	"host-health-agent/internal/model"
)

// History records a snapshot and hands back the buffer including it.
type History interface {
	AppendRecent(model.Snapshot) []model.Snapshot
}

// ReportHook observes every successful report.
type ReportHook func(model.Report)

type Analyzer struct {
	builder collector.SnapshotBuilder
	history History
	numCPU  func() int
	hooks   []ReportHook
}

func New(builder collector.SnapshotBuilder, history History, hooks ...ReportHook) *Analyzer {
	return &Analyzer{
		builder: builder,
		history: history,
		numCPU:  runtime.NumCPU,
		hooks:   hooks,
	}
}

// Analyze samples the host, records the sample and scores it against the
// history. A read failure returns an error instead of a partial report.
func (a *Analyzer) Analyze(ctx context.Context) (model.Report, error) {
	snap, err := a.builder.Build(ctx)
	if err != nil {
		return model.Report{}, fmt.Errorf("build snapshot: %w", err)
	}
	// One copy for the whole computation, ending with snap; concurrent
	// sampler appends land before or after it, never in between.
	recent := a.history.AppendRecent(snap)
	cpuUsage := CPUUsagePercent(recent)

	cpuCount := a.numCPU()
	if cpuCount < 1 {
		cpuCount = 1
	}
	score := HealthScore(cpuUsage, snap.Memory.UsagePercent(), snap.Load.Last1Min, cpuCount)

	report := model.Report{
		Timestamp:     model.ReportTime(snap.Timestamp),
		UptimeSeconds: snap.UptimeSeconds,
		CPU: model.CPUMetric{
			Signals: model.CPUSignals{
				CurrentUsagePercent: model.RoundTo(cpuUsage, 2),
				LoadAverage:         snap.Load,
			},
			Capacity: model.CPUCapacity{
				AllocatedVCPUs:   cpuCount,
				UtilizationRatio: model.RoundTo(cpuUsage/100, 4),
			},
		},
		Memory: model.MemoryMetric{
			Signals: snap.Memory,
			Capacity: model.MemoryCapacity{
				HeadroomPercent: model.RoundTo(snap.Memory.HeadroomPercent(), 2),
			},
		},
		HealthScore: model.RoundTo(score, 2),
		Message:     StatusMessage(score),
	}
	for _, hook := range a.hooks {
		hook(report)
	}
	return report, nil
}
