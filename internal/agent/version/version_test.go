package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"host-health-agent/internal/config"
)

func TestGet(t *testing.T) {
	cfg := config.Config{
		Hostname:        "node-a",
		AgentVersion:    config.HardcodedVersion,
		MetricSource:    config.MetricSourceGopsutil,
		ProbeListenAddr: "127.0.0.1:7443",
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	info := Get(cfg, now)
	assert.Equal(t, Info{
		Hostname:        "node-a",
		AgentVersion:    "V0.3",
		MetricSource:    "gopsutil",
		ProbeListenAddr: "127.0.0.1:7443",
		CheckedAtUnix:   now.Unix(),
	}, info)
}
