// Package scheduler drives the sample, rank and publish cycle at a fixed period.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/srodi/proctop/pkg/config"
	"github.com/srodi/proctop/pkg/report"
	"github.com/srodi/proctop/pkg/types"
)

// ErrAlreadyRunning is returned when Run is invoked on a Scheduler that is running.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Sampler produces one snapshot per call.
type Sampler interface {
	Sample(ctx context.Context) (types.Snapshot, error)
}

// Sink receives the ranked views of every successful tick. It is called from
// the scheduler goroutine and must return promptly.
type Sink interface {
	OnTick(cpu, mem types.RankedView)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(cpu, mem types.RankedView)

func (f SinkFunc) OnTick(cpu, mem types.RankedView) { f(cpu, mem) }

// MultiSink forwards every tick to each sink in order.
type MultiSink []Sink

func (m MultiSink) OnTick(cpu, mem types.RankedView) {
	for _, s := range m {
		s.OnTick(cpu, mem)
	}
}

// Metrics accounts the scheduler's activity.
type Metrics interface {
	TickPublished(duration time.Duration, processes, dropped int)
	TickSkipped()
}

type noopMetrics struct{}

func (noopMetrics) TickPublished(time.Duration, int, int) {}
func (noopMetrics) TickSkipped()                          {}

type Config struct {
	Period time.Duration
	TopN   int
	Filter report.FilterConfig
}

type Scheduler struct {
	cfg     Config
	sampler Sampler
	metrics Metrics
	log     *zap.Logger
	running atomic.Bool
}

type Option func(*Scheduler)

func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New validates cfg and returns a Scheduler. A non-positive period or top-n
// is rejected with an error wrapping config.ErrInvalidConfiguration.
func New(cfg Config, sampler Sampler, opts ...Option) (*Scheduler, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive, got %v", config.ErrInvalidConfiguration, cfg.Period)
	}
	if cfg.TopN <= 0 {
		return nil, fmt.Errorf("%w: top-n must be positive, got %d", config.ErrInvalidConfiguration, cfg.TopN)
	}
	if sampler == nil {
		return nil, fmt.Errorf("%w: nil sampler", config.ErrInvalidConfiguration)
	}
	s := &Scheduler{cfg: cfg, sampler: sampler, metrics: noopMetrics{}, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("component", "scheduler.Scheduler"), zap.Duration("period", cfg.Period))
	return s, nil
}

// Run ticks immediately and then once per period, measured from the start of
// the previous tick, until ctx is cancelled. A tick that overruns the period is
// followed right away by the next one; ticks never overlap. Cancellation is
// observed between ticks, so Run returns at most one tick after ctx is done.
func (s *Scheduler) Run(ctx context.Context, sink Sink) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.log.Info("starting", zap.Int("topN", s.cfg.TopN))
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("context canceled. Exiting")
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			s.log.Debug("context canceled. Exiting")
			return nil
		}

		start := time.Now()
		s.tick(ctx, sink, start)
		timer.Reset(max(s.cfg.Period-time.Since(start), 0))
	}
}

func (s *Scheduler) tick(ctx context.Context, sink Sink, start time.Time) {
	snap, err := s.sampler.Sample(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.metrics.TickSkipped()
		s.log.Warn("skipping tick", zap.Error(err))
		return
	}

	snap = report.FilterSnapshot(snap, s.cfg.Filter)
	cpuView, err := report.Rank(snap, types.MetricCPU, s.cfg.TopN)
	if err != nil {
		s.metrics.TickSkipped()
		s.log.Error("ranking by cpu", zap.Error(err))
		return
	}
	memView, err := report.Rank(snap, types.MetricMemory, s.cfg.TopN)
	if err != nil {
		s.metrics.TickSkipped()
		s.log.Error("ranking by memory", zap.Error(err))
		return
	}

	// a view sampled while shutting down is never published
	if ctx.Err() != nil {
		return
	}
	sink.OnTick(cpuView, memView)
	s.metrics.TickPublished(time.Since(start), len(snap.Samples), snap.Dropped)
	s.log.Debug("tick published",
		zap.Int("processes", len(snap.Samples)),
		zap.Int("dropped", snap.Dropped),
		zap.Duration("took", time.Since(start)))
}
