package model

import (
	"math"
	"time"
)

// Snapshot is one point-in-time observation of the host. It is a value type
// and is never modified after the builder returns it.
type Snapshot struct {
	Timestamp     time.Time   `json:"timestamp"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	CPU           CPUTimes    `json:"cpu"`
	Load          LoadAverage `json:"load_average"`
	Memory        MemoryUsage `json:"memory"`
}

// CPUTimes holds cumulative counters of the aggregate CPU line. Only the
// difference between two samples is meaningful.
type CPUTimes struct {
	Total uint64 `json:"total_time"`
	Idle  uint64 `json:"idle_time"`
}

type LoadAverage struct {
	Last1Min  float64 `json:"last_1_min"`
	Last5Min  float64 `json:"last_5_min"`
	Last15Min float64 `json:"last_15_min"`
}

type MemoryUsage struct {
	TotalMB     float64 `json:"total_mb"`
	AvailableMB float64 `json:"available_mb"`
	UsedMB      float64 `json:"used_mb"`
}

// MemoryFromKB derives memory usage from kernel style kB counters.
// Buffers and page cache are reclaimable and do not count as used.
func MemoryFromKB(totalKB, freeKB, buffersKB, cachedKB uint64) MemoryUsage {
	var usedKB uint64
	if reclaimable := freeKB + buffersKB + cachedKB; reclaimable < totalKB {
		usedKB = totalKB - reclaimable
	}
	// Work in whole hundredths of a MB so every field has exactly two
	// decimals and used + available == total.
	totalC := kbToCentiMB(totalKB)
	usedC := kbToCentiMB(usedKB)
	if usedC > totalC {
		usedC = totalC
	}
	return MemoryUsage{
		TotalMB:     float64(totalC) / 100,
		UsedMB:      float64(usedC) / 100,
		AvailableMB: float64(totalC-usedC) / 100,
	}
}

func kbToCentiMB(kb uint64) int64 {
	return int64(math.Round(float64(kb) * 100 / 1024))
}

// UsagePercent is the share of total memory in use, 0 when total is unknown.
func (m MemoryUsage) UsagePercent() float64 {
	if m.TotalMB <= 0 {
		return 0
	}
	return m.UsedMB / m.TotalMB * 100
}

// HeadroomPercent is the share of total memory still available.
func (m MemoryUsage) HeadroomPercent() float64 {
	if m.TotalMB <= 0 {
		return 0
	}
	return m.AvailableMB / m.TotalMB * 100
}
