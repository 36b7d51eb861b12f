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

// MemInfo carries the meminfo fields the usage computation depends on, in kB.
type MemInfo struct {
	TotalKB   uint64
	FreeKB    uint64
	BuffersKB uint64
	CachedKB  uint64
}

func (m MemInfo) Usage() model.MemoryUsage {
	return model.MemoryFromKB(m.TotalKB, m.FreeKB, m.BuffersKB, m.CachedKB)
}

var requiredMemFields = []string{"MemTotal", "MemFree", "Buffers", "Cached"}

// ReadMemInfo reads <procRoot>/meminfo.
func ReadMemInfo(procRoot string) (MemInfo, error) {
	path := filepath.Join(procRoot, "meminfo")
	f, err := os.Open(path)
	if err != nil {
		return MemInfo{}, Unavailable("open "+path, err)
	}
	defer f.Close()

	info, err := ParseMemInfo(f)
	if err != nil {
		return MemInfo{}, Unavailable("parse "+path, err)
	}
	return info, nil
}

func ParseMemInfo(r io.Reader) (MemInfo, error) {
	vals := map[string]uint64{}
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		key := strings.TrimSuffix(parts[0], ":")
		v, convErr := strconv.ParseUint(parts[1], 10, 64)
		if convErr != nil {
			continue
		}
		vals[key] = v
	}
	if err := s.Err(); err != nil {
		return MemInfo{}, fmt.Errorf("scan meminfo: %w", err)
	}

	for _, key := range requiredMemFields {
		if _, ok := vals[key]; !ok {
			return MemInfo{}, fmt.Errorf("%s missing", key)
		}
	}
	if vals["MemTotal"] == 0 {
		return MemInfo{}, fmt.Errorf("MemTotal is zero")
	}
	return MemInfo{
		TotalKB:   vals["MemTotal"],
		FreeKB:    vals["MemFree"],
		BuffersKB: vals["Buffers"],
		CachedKB:  vals["Cached"],
	}, nil
}
