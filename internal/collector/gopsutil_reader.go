package collector

import (
	"context"
	"errors"
	"math"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"host-health-agent/internal/model"
	"host-health-agent/internal/system"
)

// ticksPerSecond converts gopsutil's CPU seconds back to USER_HZ ticks so the
// counters stay integral like the procfs ones.
const ticksPerSecond = 100

// GopsutilReader is the portable source for hosts without procfs.
type GopsutilReader struct {
	getCPUTimes func(context.Context, bool) ([]cpu.TimesStat, error)
	getLoadAvg  func(context.Context) (*load.AvgStat, error)
	getMemStats func(context.Context) (*mem.VirtualMemoryStat, error)
}

func NewGopsutilReader() *GopsutilReader {
	return &GopsutilReader{
		getCPUTimes: cpu.TimesWithContext,
		getLoadAvg:  load.AvgWithContext,
		getMemStats: mem.VirtualMemoryWithContext,
	}
}

func (r *GopsutilReader) CPUTimes(ctx context.Context) (model.CPUTimes, error) {
	times, err := r.getCPUTimes(ctx, false)
	if err != nil {
		return model.CPUTimes{}, system.Unavailable("cpu times", err)
	}
	if len(times) == 0 {
		return model.CPUTimes{}, system.Unavailable("cpu times", errors.New("no data returned"))
	}
	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	return model.CPUTimes{
		Total: toTicks(total),
		Idle:  toTicks(t.Idle + t.Iowait),
	}, nil
}

func (r *GopsutilReader) LoadAverage(ctx context.Context) (model.LoadAverage, error) {
	l, err := r.getLoadAvg(ctx)
	if err != nil {
		return model.LoadAverage{}, system.Unavailable("load average", err)
	}
	if l == nil || l.Load1 < 0 || l.Load5 < 0 || l.Load15 < 0 {
		return model.LoadAverage{}, system.Unavailable("load average", errors.New("invalid load average"))
	}
	return model.LoadAverage{Last1Min: l.Load1, Last5Min: l.Load5, Last15Min: l.Load15}, nil
}

func (r *GopsutilReader) Memory(ctx context.Context) (model.MemoryUsage, error) {
	v, err := r.getMemStats(ctx)
	if err != nil {
		return model.MemoryUsage{}, system.Unavailable("virtual memory", err)
	}
	if v == nil || v.Total == 0 {
		return model.MemoryUsage{}, system.Unavailable("virtual memory", errors.New("total memory is zero"))
	}
	return model.MemoryFromKB(v.Total/1024, v.Free/1024, v.Buffers/1024, v.Cached/1024), nil
}

func toTicks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(math.Round(seconds * ticksPerSecond))
}
