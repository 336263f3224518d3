// Package sampler turns one process-table collection into a timestamped Snapshot.
package sampler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/srodi/proctop/pkg/collector/cpu"
	"github.com/srodi/proctop/pkg/collector/memory"
	"github.com/srodi/proctop/pkg/types"
)

// Source returns the readable processes at call time. Processes that vanish
// while being read are left out; an error means the whole collection failed.
type Source interface {
	Collect(ctx context.Context) ([]types.ProcessSample, error)
}

// droppedCounter is implemented by sources that report unreadable processes.
type droppedCounter interface {
	Dropped() int
}

// UsageReader reports host-wide load alongside each snapshot.
type UsageReader interface {
	Usage(ctx context.Context) (types.SystemUsage, error)
}

// SampleError is returned when the Source could not collect at all.
type SampleError struct {
	Err error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sampling processes: %v", e.Err)
}

func (e *SampleError) Unwrap() error {
	return e.Err
}

// Sampler takes one Snapshot per Sample call. It keeps no state between calls.
type Sampler struct {
	source Source
	usage  UsageReader
	now    func() time.Time
	log    *zap.Logger
}

// Option customizes a Sampler.
type Option func(*Sampler)

// WithUsage attaches host-wide usage to every snapshot.
func WithUsage(u UsageReader) Option {
	return func(s *Sampler) { s.usage = u }
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithLogger sets the logger used for non-fatal usage read failures.
func WithLogger(log *zap.Logger) Option {
	return func(s *Sampler) { s.log = log }
}

func New(source Source, opts ...Option) *Sampler {
	s := &Sampler{source: source, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("component", "sampler.Sampler"))
	return s
}

// Sample invokes the Source exactly once and stamps the result with the time
// the collection completed. Source failures are returned as *SampleError.
func (s *Sampler) Sample(ctx context.Context) (types.Snapshot, error) {
	samples, err := s.source.Collect(ctx)
	if err != nil {
		return types.Snapshot{}, &SampleError{Err: err}
	}
	snap := types.Snapshot{
		CapturedAt: s.now(),
		Samples:    samples,
	}
	if dc, ok := s.source.(droppedCounter); ok {
		snap.Dropped = dc.Dropped()
	}
	if s.usage != nil {
		if u, err := s.usage.Usage(ctx); err != nil {
			s.log.Debug("host usage unavailable", zap.Error(err))
		} else {
			snap.System = &u
		}
	}
	return snap, nil
}

// hostCPU and hostMemory allow tests to stub the host readers.
var (
	hostCPU    = cpu.Utilization
	hostMemory = memory.UsedPercent
)

// HostUsage reads host CPU and memory load through gopsutil.
type HostUsage struct{}

func (HostUsage) Usage(ctx context.Context) (types.SystemUsage, error) {
	cpuPct, err := hostCPU(ctx)
	if err != nil {
		return types.SystemUsage{}, err
	}
	memPct, err := hostMemory(ctx)
	if err != nil {
		return types.SystemUsage{}, err
	}
	return types.SystemUsage{CPUPercent: cpuPct, MemoryPercent: memPct}, nil
}
