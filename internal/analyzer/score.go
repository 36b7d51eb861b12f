package analyzer

import (
	"host-health-agent/internal/model"
)

const (
	cpuPenaltyThreshold    = 50.0
	cpuPenaltyFactor       = 0.5
	memoryPenaltyThreshold = 75.0
	memoryPenaltyFactor    = 2.0
	loadPenalty            = 20.0

	healthyAbove  = 80.0
	moderateAbove = 50.0

	// deltaDistance is how far back from the newest entry the CPU delta
	// reaches: the third entry from the end.
	deltaDistance = 2
)

// CPUUsagePercent compares the newest snapshot with the third from the end.
// Fewer than three entries, or a counter that did not advance, yields 0.
func CPUUsagePercent(history []model.Snapshot) float64 {
	if len(history) < deltaDistance+1 {
		return 0
	}
	prev := history[len(history)-1-deltaDistance].CPU
	curr := history[len(history)-1].CPU

	totalDiff := int64(curr.Total) - int64(prev.Total)
	if totalDiff <= 0 {
		return 0
	}
	idleDiff := int64(curr.Idle) - int64(prev.Idle)
	return clampPercent(100 * (1 - float64(idleDiff)/float64(totalDiff)))
}

// HealthScore starts at 100 and subtracts a linear CPU penalty above 50%, a
// steeper memory penalty above 75% and a flat penalty when the 1 minute load
// exceeds the CPU count. The result is clamped to [0, 100] with one decimal.
func HealthScore(cpuUsagePercent, memoryUsagePercent, load1 float64, cpuCount int) float64 {
	if cpuCount < 1 {
		cpuCount = 1
	}
	score := 100.0
	if cpuUsagePercent > cpuPenaltyThreshold {
		score -= (cpuUsagePercent - cpuPenaltyThreshold) * cpuPenaltyFactor
	}
	if memoryUsagePercent > memoryPenaltyThreshold {
		score -= (memoryUsagePercent - memoryPenaltyThreshold) * memoryPenaltyFactor
	}
	if load1 > float64(cpuCount) {
		score -= loadPenalty
	}
	return model.RoundTo(clampPercent(score), 1)
}

func StatusMessage(score float64) model.StatusMessage {
	switch {
	case score > healthyAbove:
		return model.StatusHealthy
	case score > moderateAbove:
		return model.StatusModerate
	default:
		return model.StatusStressed
	}
}

func clampPercent(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
