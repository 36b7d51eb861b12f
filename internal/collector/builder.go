package collector

import (
	"context"
	"time"

	"host-health-agent/internal/model"
)

// Builder composes one Snapshot per call from a Reader.
type Builder struct {
	reader Reader
	start  time.Time
	now    func() time.Time
}

func NewBuilder(reader Reader, start time.Time, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{reader: reader, start: start, now: now}
}

// Build reads each signal group once. Reader errors are returned unchanged.
func (b *Builder) Build(ctx context.Context) (model.Snapshot, error) {
	cpuTimes, err := b.reader.CPUTimes(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	load, err := b.reader.LoadAverage(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	memory, err := b.reader.Memory(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}

	now := b.now().UTC()
	uptime := int64(now.Sub(b.start) / time.Second)
	if uptime < 0 {
		uptime = 0
	}
	return model.Snapshot{
		Timestamp:     now,
		UptimeSeconds: uptime,
		CPU:           cpuTimes,
		Load:          load,
		Memory:        memory,
	}, nil
}
