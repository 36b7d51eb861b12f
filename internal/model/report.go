package model

import (
	"encoding/json"
	"time"
)

// ReportTimeLayout is the wall clock format used in reports (always UTC).
const ReportTimeLayout = "2006-01-02 15:04:05"

// Report is the /analyze payload.
type Report struct {
	Timestamp     ReportTime    `json:"timestamp"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	CPU           CPUMetric     `json:"cpu_metric"`
	Memory        MemoryMetric  `json:"memory_metric"`
	HealthScore   float64       `json:"health_score"`
	Message       StatusMessage `json:"message"`
}

type CPUMetric struct {
	Signals  CPUSignals  `json:"signals"`
	Capacity CPUCapacity `json:"capacity"`
}

type CPUSignals struct {
	CurrentUsagePercent float64     `json:"current_usage_percent"`
	LoadAverage         LoadAverage `json:"load_average"`
}

type CPUCapacity struct {
	AllocatedVCPUs   int     `json:"allocated_vcpus"`
	UtilizationRatio float64 `json:"utilization_ratio"`
}

type MemoryMetric struct {
	Signals  MemoryUsage    `json:"signals"`
	Capacity MemoryCapacity `json:"capacity"`
}

type MemoryCapacity struct {
	HeadroomPercent float64 `json:"headroom_percent"`
}

type StatusMessage string

const (
	StatusHealthy  StatusMessage = "System is healthy and stable."
	StatusModerate StatusMessage = "System is under moderate load."
	StatusStressed StatusMessage = "System is under high stress!"
)

// ReportTime renders as "YYYY-MM-DD HH:MM:SS" in UTC.
type ReportTime time.Time

func (t ReportTime) String() string {
	return time.Time(t).UTC().Format(ReportTimeLayout)
}

func (t ReportTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ReportTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(ReportTimeLayout, raw, time.UTC)
	if err != nil {
		return err
	}
	*t = ReportTime(parsed)
	return nil
}
