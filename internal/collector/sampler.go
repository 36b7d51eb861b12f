package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"host-health-agent/internal/model"
)

type SnapshotBuilder interface {
	Build(ctx context.Context) (model.Snapshot, error)
}

type SnapshotSink interface {
	Append(model.Snapshot)
}

// Ticker is the subset of *time.Ticker the sampler needs; tests substitute a
// manually driven one.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop() { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }

// SampleHook observes every tick: the appended snapshot, or the build error
// that made the sampler skip it.
type SampleHook func(model.Snapshot, error)

// Sampler appends a fresh snapshot to the sink every interval, independent of
// request traffic.
type Sampler struct {
	logger   *slog.Logger
	builder  SnapshotBuilder
	sink     SnapshotSink
	interval time.Duration
	hooks    []SampleHook

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	newTicker func(time.Duration) Ticker
}

func NewSampler(logger *slog.Logger, builder SnapshotBuilder, sink SnapshotSink, interval time.Duration, hooks ...SampleHook) *Sampler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Sampler{
		logger:    logger.With("scope", "collector.sampler"),
		builder:   builder,
		sink:      sink,
		interval:  interval,
		hooks:     hooks,
		newTicker: newTimeTicker,
	}
}

// Start launches the sampling loop. Calling it while running is a no-op.
func (s *Sampler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := s.newTicker(s.interval)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, ticker, s.done)

	s.logger.Info("background sampler started", "interval", s.interval)
	return nil
}

// Stop ends the loop and waits for an in-flight tick to finish.
func (s *Sampler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("background sampler stopped")
	return nil
}

func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run starts the sampler and stops it once ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

func (s *Sampler) loop(ctx context.Context, ticker Ticker, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.tick(ctx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	snap, err := s.builder.Build(ctx)
	if err != nil {
		s.logger.Warn("sample skipped", "error", err)
	} else {
		s.sink.Append(snap)
	}
	for _, hook := range s.hooks {
		hook(snap, err)
	}
}
