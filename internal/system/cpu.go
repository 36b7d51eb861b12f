package system

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"host-health-agent/internal/model"
)

const minCPUFields = 4

type CPUCounters struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	IOWait  uint64
	IRQ     uint64
	SoftIRQ uint64
	Steal   uint64
	Total   uint64
}

// Times reduces the counters to what the health score needs: idle time is
// idle+iowait, total is the sum of every bucket on the line.
func (c CPUCounters) Times() model.CPUTimes {
	return model.CPUTimes{Total: c.Total, Idle: c.Idle + c.IOWait}
}

// ReadCPUCounters reads the aggregate cpu line of <procRoot>/stat.
func ReadCPUCounters(procRoot string) (CPUCounters, error) {
	path := filepath.Join(procRoot, "stat")
	f, err := os.Open(path)
	if err != nil {
		return CPUCounters{}, Unavailable("open "+path, err)
	}
	defer f.Close()

	c, err := ParseCPUCounters(f)
	if err != nil {
		return CPUCounters{}, Unavailable("parse "+path, err)
	}
	return c, nil
}

func ParseCPUCounters(r io.Reader) (CPUCounters, error) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		return parseCPULine(strings.Fields(line)[1:])
	}
	if err := s.Err(); err != nil {
		return CPUCounters{}, fmt.Errorf("scan cpu stat: %w", err)
	}
	return CPUCounters{}, fmt.Errorf("cpu aggregate line not found")
}

func parseCPULine(fields []string) (CPUCounters, error) {
	if len(fields) < minCPUFields {
		return CPUCounters{}, fmt.Errorf("unexpected cpu fields: %v", fields)
	}
	vals := make([]uint64, 0, len(fields))
	for _, p := range fields {
		v, convErr := strconv.ParseUint(p, 10, 64)
		if convErr != nil {
			return CPUCounters{}, fmt.Errorf("parse cpu stat %q: %w", p, convErr)
		}
		vals = append(vals, v)
	}

	c := CPUCounters{}
	buckets := []*uint64{&c.User, &c.Nice, &c.System, &c.Idle, &c.IOWait, &c.IRQ, &c.SoftIRQ, &c.Steal}
	for i, dst := range buckets {
		if i < len(vals) {
			*dst = vals[i]
		}
	}
	for _, v := range vals {
		c.Total += v
	}
	return c, nil
}
