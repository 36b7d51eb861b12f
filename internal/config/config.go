package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type MetricSource string

const (
	MetricSourceProcfs   MetricSource = "procfs"
	MetricSourceGopsutil MetricSource = "gopsutil"
	MetricSourceLibvirt  MetricSource = "libvirt"
	HardcodedVersion     string       = "V0.3"
)

type Config struct {
	Hostname           string
	HTTPListenAddr     string
	ProbeListenAddr    string
	SampleInterval     time.Duration
	HistoryMaxEntries  int
	HistoryMaxAge      time.Duration
	MetricSource       MetricSource
	ProcRoot           string
	LibvirtURI         string
	ReconnectInterval  time.Duration
	MaxReconnectJitter time.Duration
	WSPushInterval     time.Duration
	WSWriteTimeout     time.Duration
	HealthInterval     time.Duration
	ShutdownTimeout    time.Duration
	AgentVersion       string
	LogJSON            bool
	LogLevel           string
}

func Load() (Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	port := env("PORT", "8080")
	cfg := Config{
		Hostname:           hostname,
		HTTPListenAddr:     env("HOST_HEALTH_HTTP_ADDR", net.JoinHostPort("0.0.0.0", port)),
		ProbeListenAddr:    envAllowEmpty("HOST_HEALTH_PROBE_ADDR", "0.0.0.0:7443"),
		SampleInterval:     envDuration("HOST_HEALTH_SAMPLE_INTERVAL", 2*time.Second),
		HistoryMaxEntries:  envInt("HOST_HEALTH_HISTORY_MAX_ENTRIES", 50),
		HistoryMaxAge:      envDuration("HOST_HEALTH_HISTORY_MAX_AGE", 600*time.Second),
		MetricSource:       MetricSource(strings.ToLower(env("HOST_HEALTH_METRIC_SOURCE", string(MetricSourceProcfs)))),
		ProcRoot:           env("HOST_HEALTH_PROC_ROOT", "/proc"),
		LibvirtURI:         env("HOST_HEALTH_LIBVIRT_URI", "qemu+unix:///system"),
		ReconnectInterval:  envDuration("HOST_HEALTH_RECONNECT_INTERVAL", 4*time.Second),
		MaxReconnectJitter: envDuration("HOST_HEALTH_RECONNECT_MAX_JITTER", 900*time.Millisecond),
		WSPushInterval:     envDuration("HOST_HEALTH_WS_PUSH_INTERVAL", 2*time.Second),
		WSWriteTimeout:     envDuration("HOST_HEALTH_WS_WRITE_TIMEOUT", 5*time.Second),
		HealthInterval:     envDuration("HOST_HEALTH_HEALTH_INTERVAL", 10*time.Second),
		ShutdownTimeout:    envDuration("HOST_HEALTH_SHUTDOWN_TIMEOUT", 20*time.Second),
		AgentVersion:       HardcodedVersion,
		LogJSON:            envBool("HOST_HEALTH_LOG_JSON", true),
		LogLevel:           strings.ToLower(env("HOST_HEALTH_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPListenAddr) == "" {
		return errors.New("HOST_HEALTH_HTTP_ADDR is required")
	}
	if strings.TrimSpace(c.AgentVersion) == "" {
		return errors.New("agent version must not be empty")
	}
	if c.SampleInterval <= 0 {
		return errors.New("HOST_HEALTH_SAMPLE_INTERVAL must be > 0")
	}
	if c.HistoryMaxEntries <= 0 {
		return errors.New("HOST_HEALTH_HISTORY_MAX_ENTRIES must be > 0")
	}
	if c.HistoryMaxAge <= 0 {
		return errors.New("HOST_HEALTH_HISTORY_MAX_AGE must be > 0")
	}
	if c.WSPushInterval <= 0 || c.HealthInterval <= 0 {
		return errors.New("push and health intervals must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("HOST_HEALTH_SHUTDOWN_TIMEOUT must be > 0")
	}
	switch c.MetricSource {
	case MetricSourceProcfs, MetricSourceGopsutil:
	case MetricSourceLibvirt:
		if c.LibvirtURI == "" {
			return errors.New("HOST_HEALTH_LIBVIRT_URI is required for libvirt source")
		}
	default:
		return fmt.Errorf("unsupported metric source %q", c.MetricSource)
	}
	if c.MetricSource != MetricSourceGopsutil && strings.TrimSpace(c.ProcRoot) == "" {
		return errors.New("HOST_HEALTH_PROC_ROOT is required")
	}
	return nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// envAllowEmpty lets an explicitly empty variable disable a feature.
func envAllowEmpty(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(v)
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

// envDuration accepts Go durations ("2s") and bare integers as seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
