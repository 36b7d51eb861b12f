package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"host-health-agent/internal/config"
	"host-health-agent/internal/libvirt"
	"host-health-agent/internal/model"
	"host-health-agent/internal/system"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubReader struct {
	cpu     model.CPUTimes
	load    model.LoadAverage
	memory  model.MemoryUsage
	cpuErr  error
	loadErr error
	memErr  error
	calls   atomic.Int32
}

func (r *stubReader) CPUTimes(context.Context) (model.CPUTimes, error) {
	r.calls.Add(1)
	return r.cpu, r.cpuErr
}

func (r *stubReader) LoadAverage(context.Context) (model.LoadAverage, error) {
	r.calls.Add(1)
	return r.load, r.loadErr
}

func (r *stubReader) Memory(context.Context) (model.MemoryUsage, error) {
	r.calls.Add(1)
	return r.memory, r.memErr
}

func TestProcReader(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"stat":    "cpu  100 0 50 800 50 0 0 0 0 0\n",
		"loadavg": "1.50 1.00 0.50 3/200 99\n",
		"meminfo": "MemTotal: 2097152 kB\nMemFree: 524288 kB\nBuffers: 0 kB\nCached: 524288 kB\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}
	r := NewProcReader(root)
	ctx := context.Background()

	times, err := r.CPUTimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CPUTimes{Total: 1000, Idle: 850}, times)

	l, err := r.LoadAverage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.5, l.Last1Min)

	m, err := r.Memory(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2048.0, m.TotalMB, 1e-9)
	assert.InDelta(t, 1024.0, m.UsedMB, 1e-9)
}

func TestProcReaderMissingRoot(t *testing.T) {
	r := NewProcReader(filepath.Join(t.TempDir(), "nope"))
	_, err := r.CPUTimes(context.Background())
	assert.ErrorIs(t, err, system.ErrMetricUnavailable)
	_, err = r.Memory(context.Background())
	assert.ErrorIs(t, err, system.ErrMetricUnavailable)
}

func TestGopsutilReader(t *testing.T) {
	r := NewGopsutilReader()
	r.getCPUTimes = func(ctx context.Context, perCPU bool) ([]cpu.TimesStat, error) {
		assert.False(t, perCPU)
		return []cpu.TimesStat{{User: 10, System: 5, Idle: 80, Iowait: 5}}, nil
	}
	r.getLoadAvg = func(ctx context.Context) (*load.AvgStat, error) {
		return &load.AvgStat{Load1: 2, Load5: 1, Load15: 0.5}, nil
	}
	r.getMemStats = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{
			Total:   4 << 30,
			Free:    1 << 30,
			Buffers: 0,
			Cached:  1 << 30,
		}, nil
	}
	ctx := context.Background()

	times, err := r.CPUTimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.CPUTimes{Total: 10000, Idle: 8500}, times)

	l, err := r.LoadAverage(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.LoadAverage{Last1Min: 2, Last5Min: 1, Last15Min: 0.5}, l)

	m, err := r.Memory(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 4096.0, m.TotalMB, 1e-9)
	assert.InDelta(t, 2048.0, m.UsedMB, 1e-9)
}

func TestGopsutilReaderFailures(t *testing.T) {
	boom := errors.New("boom")
	r := NewGopsutilReader()
	r.getCPUTimes = func(context.Context, bool) ([]cpu.TimesStat, error) { return nil, nil }
	r.getLoadAvg = func(context.Context) (*load.AvgStat, error) { return nil, boom }
	r.getMemStats = func(context.Context) (*mem.VirtualMemoryStat, error) { return &mem.VirtualMemoryStat{}, nil }
	ctx := context.Background()

	_, err := r.CPUTimes(ctx)
	assert.ErrorIs(t, err, system.ErrMetricUnavailable)

	_, err = r.LoadAverage(ctx)
	assert.ErrorIs(t, err, system.ErrMetricUnavailable)
	assert.ErrorIs(t, err, boom)

	_, err = r.Memory(ctx)
	assert.ErrorIs(t, err, system.ErrMetricUnavailable)
}

func TestBuilderBuild(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	now := start.Add(90*time.Second + 900*time.Millisecond)
	reader := &stubReader{
		cpu:    model.CPUTimes{Total: 1000, Idle: 900},
		load:   model.LoadAverage{Last1Min: 0.3},
		memory: model.MemoryUsage{TotalMB: 100, UsedMB: 40, AvailableMB: 60},
	}
	b := NewBuilder(reader, start, func() time.Time { return now })

	snap, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now, snap.Timestamp)
	assert.Equal(t, int64(90), snap.UptimeSeconds)
	assert.Equal(t, reader.cpu, snap.CPU)
	assert.Equal(t, reader.load, snap.Load)
	assert.Equal(t, reader.memory, snap.Memory)
	assert.Equal(t, int32(3), reader.calls.Load())
}

func TestBuilderClampsUptimeWhenClockIsBehindStart(t *testing.T) {
	start := time.Now()
	b := NewBuilder(&stubReader{}, start, func() time.Time { return start.Add(-time.Minute) })
	snap, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.UptimeSeconds)
}

func TestBuilderPropagatesReaderError(t *testing.T) {
	readErr := system.Unavailable("read loadavg", errors.New("eof"))
	b := NewBuilder(&stubReader{loadErr: readErr}, time.Now(), nil)

	_, err := b.Build(context.Background())
	assert.Same(t, readErr, err)
	assert.ErrorIs(t, err, system.ErrMetricUnavailable)
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop() { m.stopped.Store(true) }

type scriptedBuilder struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool
}

func (b *scriptedBuilder) Build(context.Context) (model.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.fail[b.calls] {
		return model.Snapshot{}, system.Unavailable("read stat", errors.New("truncated"))
	}
	return model.Snapshot{CPU: model.CPUTimes{Total: uint64(b.calls)}}, nil
}

type sliceSink struct {
	mu    sync.Mutex
	snaps []model.Snapshot
}

func (s *sliceSink) Append(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *sliceSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

type tickResult struct {
	snap model.Snapshot
	err  error
}

func newTestSampler(builder SnapshotBuilder, sink SnapshotSink) (*Sampler, *atomic.Int32, *manualTicker, chan tickResult) {
	results := make(chan tickResult, 16)
	s := NewSampler(discardLogger(), builder, sink, time.Second, func(snap model.Snapshot, err error) {
		results <- tickResult{snap: snap, err: err}
	})
	ticker := &manualTicker{ch: make(chan time.Time)}
	var created atomic.Int32
	s.newTicker = func(d time.Duration) Ticker {
		created.Add(1)
		return ticker
	}
	return s, &created, ticker, results
}

func waitTick(t *testing.T, results <-chan tickResult) tickResult {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sampler tick")
		return tickResult{}
	}
}

func TestSamplerStartIsIdempotent(t *testing.T) {
	sink := &sliceSink{}
	s, created, ticker, results := newTestSampler(&scriptedBuilder{}, sink)

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	waitTick(t, results)

	assert.True(t, s.Running())
	assert.Equal(t, int32(1), created.Load())

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	assert.True(t, ticker.stopped.Load())
	assert.Equal(t, 1, sink.Len())

	require.NoError(t, s.Stop())
}

func TestSamplerAppendsEveryTick(t *testing.T) {
	sink := &sliceSink{}
	s, _, ticker, results := newTestSampler(&scriptedBuilder{}, sink)
	require.NoError(t, s.Start())
	defer s.Stop()

	first := waitTick(t, results)
	require.NoError(t, first.err)

	for i := 2; i <= 4; i++ {
		ticker.ch <- time.Now()
		r := waitTick(t, results)
		require.NoError(t, r.err)
		assert.Equal(t, uint64(i), r.snap.CPU.Total)
	}
	assert.Equal(t, 4, sink.Len())
}

func TestSamplerSkipsFailedTick(t *testing.T) {
	sink := &sliceSink{}
	builder := &scriptedBuilder{fail: map[int]bool{2: true}}
	s, _, ticker, results := newTestSampler(builder, sink)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.NoError(t, waitTick(t, results).err)

	ticker.ch <- time.Now()
	failed := waitTick(t, results)
	assert.ErrorIs(t, failed.err, system.ErrMetricUnavailable)

	ticker.ch <- time.Now()
	require.NoError(t, waitTick(t, results).err)

	assert.True(t, s.Running())
	assert.Equal(t, 2, sink.Len())
}

func TestSamplerRunStopsWithContext(t *testing.T) {
	sink := &sliceSink{}
	s, _, _, results := newTestSampler(&scriptedBuilder{}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	waitTick(t, results)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sampler did not stop")
	}
	assert.False(t, s.Running())
}

func TestNewReaderFromConfig(t *testing.T) {
	logger := discardLogger()

	r, err := NewReaderFromConfig(config.Config{MetricSource: config.MetricSourceProcfs, ProcRoot: "/proc"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &ProcReader{}, r)

	r, err = NewReaderFromConfig(config.Config{MetricSource: config.MetricSourceGopsutil}, logger)
	require.NoError(t, err)
	assert.IsType(t, &GopsutilReader{}, r)

	r, err = NewReaderFromConfig(config.Config{MetricSource: config.MetricSourceLibvirt, LibvirtURI: "qemu:///system", ProcRoot: "/proc"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &libvirt.HostReader{}, r)

	_, err = NewReaderFromConfig(config.Config{MetricSource: "snmp"}, logger)
	assert.Error(t, err)
}
