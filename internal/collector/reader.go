package collector

import (
	"context"

	"host-health-agent/internal/model"
	"host-health-agent/internal/system"
)

// Reader returns the raw host signals, read fresh on every call. Failures
// wrap system.ErrMetricUnavailable and are not retried.
type Reader interface {
	CPUTimes(ctx context.Context) (model.CPUTimes, error)
	LoadAverage(ctx context.Context) (model.LoadAverage, error)
	Memory(ctx context.Context) (model.MemoryUsage, error)
}

// ProcReader reads /proc/stat, /proc/loadavg and /proc/meminfo below root.
type ProcReader struct {
	root string
}

func NewProcReader(root string) *ProcReader {
	if root == "" {
		root = "/proc"
	}
	return &ProcReader{root: root}
}

func (r *ProcReader) CPUTimes(context.Context) (model.CPUTimes, error) {
	c, err := system.ReadCPUCounters(r.root)
	if err != nil {
		return model.CPUTimes{}, err
	}
	return c.Times(), nil
}

func (r *ProcReader) LoadAverage(context.Context) (model.LoadAverage, error) {
	return system.ReadLoadAverage(r.root)
}

func (r *ProcReader) Memory(context.Context) (model.MemoryUsage, error) {
	info, err := system.ReadMemInfo(r.root)
	if err != nil {
		return model.MemoryUsage{}, err
	}
	return info.Usage(), nil
}
