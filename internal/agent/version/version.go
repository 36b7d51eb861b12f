package version

import (
	"time"

	"host-health-agent/internal/config"
)

type Info struct {
	Hostname        string `json:"hostname"`
	AgentVersion    string `json:"agent_version"`
	MetricSource    string `json:"metric_source"`
	ProbeListenAddr string `json:"probe_listen_addr"`
	CheckedAtUnix   int64  `json:"checked_at_unix"`
}

func Get(cfg config.Config, now time.Time) Info {
	return Info{
		Hostname:        cfg.Hostname,
		AgentVersion:    cfg.AgentVersion,
		MetricSource:    string(cfg.MetricSource),
		ProbeListenAddr: cfg.ProbeListenAddr,
		CheckedAtUnix:   now.UTC().Unix(),
	}
}
