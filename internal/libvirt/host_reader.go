package libvirt

import (
	"context"
	"fmt"
	"strings"

	golibvirt "github.com/digitalocean/go-libvirt"

	"host-health-agent/internal/model"
	"host-health-agent/internal/system"
)

const (
	allCPUs  int32 = -1
	allCells int32 = -1
)

type nodeStatsClient interface {
	NodeGetCPUStats(cpuNum int32, nparams int32, flags uint32) ([]golibvirt.NodeGetCPUStats, int32, error)
	NodeGetMemoryStats(nparams int32, cellNum int32, flags uint32) ([]golibvirt.NodeGetMemoryStats, int32, error)
}

// HostReader reads host CPU and memory counters through the libvirt daemon.
// libvirt has no load average call, so load still comes from procfs.
type HostReader struct {
	conn     *ConnManager
	client   func(context.Context) (nodeStatsClient, error)
	procRoot string
}

func NewHostReader(conn *ConnManager, procRoot string) *HostReader {
	return &HostReader{
		conn: conn,
		client: func(ctx context.Context) (nodeStatsClient, error) {
			c, err := conn.Client(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		procRoot: procRoot,
	}
}

// CPUTimes sums the aggregate node CPU fields (kernel, user, idle, iowait on
// Linux, in nanoseconds). Idle time is idle+iowait.
func (r *HostReader) CPUTimes(ctx context.Context) (model.CPUTimes, error) {
	c, err := r.client(ctx)
	if err != nil {
		return model.CPUTimes{}, system.Unavailable("libvirt cpu stats", err)
	}
	_, n, err := c.NodeGetCPUStats(allCPUs, 0, 0)
	if err != nil {
		return model.CPUTimes{}, system.Unavailable("NodeGetCPUStats", err)
	}
	stats, _, err := c.NodeGetCPUStats(allCPUs, n, 0)
	if err != nil {
		return model.CPUTimes{}, system.Unavailable("NodeGetCPUStats", err)
	}
	if len(stats) == 0 {
		return model.CPUTimes{}, system.Unavailable("NodeGetCPUStats", fmt.Errorf("empty node cpu stats"))
	}

	var out model.CPUTimes
	for _, st := range stats {
		out.Total += st.Value
		switch strings.ToLower(st.Field) {
		case "idle", "iowait":
			out.Idle += st.Value
		}
	}
	return out, nil
}

func (r *HostReader) LoadAverage(context.Context) (model.LoadAverage, error) {
	return system.ReadLoadAverage(r.procRoot)
}

func (r *HostReader) Memory(ctx context.Context) (model.MemoryUsage, error) {
	c, err := r.client(ctx)
	if err != nil {
		return model.MemoryUsage{}, system.Unavailable("libvirt memory stats", err)
	}
	_, n, err := c.NodeGetMemoryStats(0, allCells, 0)
	if err != nil {
		return model.MemoryUsage{}, system.Unavailable("NodeGetMemoryStats", err)
	}
	stats, _, err := c.NodeGetMemoryStats(n, allCells, 0)
	if err != nil {
		return model.MemoryUsage{}, system.Unavailable("NodeGetMemoryStats", err)
	}

	vals := map[string]uint64{}
	for _, st := range stats {
		vals[strings.ToLower(st.Field)] = st.Value
	}
	for _, key := range []string{"total", "free", "buffers", "cached"} {
		if _, ok := vals[key]; !ok {
			return model.MemoryUsage{}, system.Unavailable("NodeGetMemoryStats", fmt.Errorf("%s missing", key))
		}
	}
	if vals["total"] == 0 {
		return model.MemoryUsage{}, system.Unavailable("NodeGetMemoryStats", fmt.Errorf("total memory is zero"))
	}
	return model.MemoryFromKB(vals["total"], vals["free"], vals["buffers"], vals["cached"]), nil
}

func (r *HostReader) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Maintain keeps the libvirt connection alive for the life of ctx.
func (r *HostReader) Maintain(ctx context.Context) error {
	if r.conn == nil {
		<-ctx.Done()
		return nil
	}
	return r.conn.Maintain(ctx)
}
