// Package process enumerates live processes and reads their CPU and memory usage.
//
// Processes that exit or become unreadable between enumeration and the metric
// read are dropped from the result instead of failing the whole collection.
package process

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	pkgerrors "github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/srodi/proctop/pkg/collector/memory"
	"github.com/srodi/proctop/pkg/types"
)

// ErrProcessUnavailable marks a process that vanished or could not be read.
// It never leaves the Collector: affected processes are dropped.
var ErrProcessUnavailable = errors.New("process unavailable")

// handle is the subset of gopsutil's *process.Process the collector reads.
type handle interface {
	NameWithContext(ctx context.Context) (string, error)
	PercentWithContext(ctx context.Context, interval time.Duration) (float64, error)
	MemoryInfoWithContext(ctx context.Context) (*process.MemoryInfoStat, error)
	CreateTimeWithContext(ctx context.Context) (int64, error)
}

type cacheEntry struct {
	handle    handle
	createdAt int64
}

// Collector owns the gopsutil handles used to sample processes. Handles are kept
// between calls so CPU usage is measured since the previous sample.
// A Collector must not be used from more than one goroutine at a time.
type Collector struct {
	cache   *simplelru.LRU[int32, *cacheEntry]
	log     *zap.Logger
	dropped int

	pids        func(ctx context.Context) ([]int32, error)
	open        func(ctx context.Context, pid int32) (handle, error)
	totalMemory func(ctx context.Context) (uint64, error)
}

// NewCollector returns a Collector reading the host's process table.
func NewCollector(log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	// entries are purged explicitly, so the size is unbounded
	cache, _ := simplelru.NewLRU[int32, *cacheEntry](math.MaxInt, nil)
	return &Collector{
		cache:       cache,
		log:         log.With(zap.String("component", "process.Collector")),
		pids:        process.PidsWithContext,
		open:        openProcess,
		totalMemory: memory.TotalMemoryBytes,
	}
}

func openProcess(ctx context.Context, pid int32) (handle, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Collect returns one sample per readable live process. It fails only when the
// process table or the system memory size cannot be read at all, or when ctx
// expired during the collection.
func (c *Collector) Collect(ctx context.Context) ([]types.ProcessSample, error) {
	pids, err := c.pids(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "enumerating processes")
	}
	total, err := c.totalMemory(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "reading total memory")
	}
	if total == 0 {
		return nil, pkgerrors.New("total memory reported as zero")
	}

	samples := make([]types.ProcessSample, 0, len(pids))
	seen := make(map[int32]struct{}, len(pids))
	c.dropped = 0
	for _, pid := range pids {
		seen[pid] = struct{}{}
		sample, err := c.read(ctx, pid, total)
		if err != nil {
			c.log.Debug("skipping process", zap.Int32("pid", pid), zap.Error(err))
			c.cache.Remove(pid)
			c.dropped++
			continue
		}
		samples = append(samples, sample)
	}
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "collecting processes")
	}

	// forget processes that are gone so a reused PID starts from scratch
	for _, pid := range c.cache.Keys() {
		if _, ok := seen[pid]; !ok {
			c.cache.Remove(pid)
		}
	}
	return samples, nil
}

// Dropped returns how many processes the last Collect call skipped.
func (c *Collector) Dropped() int {
	return c.dropped
}

func (c *Collector) read(ctx context.Context, pid int32, totalMem uint64) (types.ProcessSample, error) {
	h, err := c.handleFor(ctx, pid)
	if err != nil {
		return types.ProcessSample{}, unavailable(pid, err)
	}
	cpuPct, err := h.PercentWithContext(ctx, 0)
	if err != nil {
		return types.ProcessSample{}, unavailable(pid, err)
	}
	mi, err := h.MemoryInfoWithContext(ctx)
	if err != nil {
		return types.ProcessSample{}, unavailable(pid, err)
	}
	if mi == nil {
		return types.ProcessSample{}, unavailable(pid, errors.New("no memory info"))
	}
	name, err := h.NameWithContext(ctx)
	if err != nil {
		if isGone(err) {
			return types.ProcessSample{}, unavailable(pid, err)
		}
		name = commForPID(pid)
	}

	return types.ProcessSample{
		PID:           pid,
		Name:          name,
		CPUPercent:    cpuPct,
		MemoryPercent: 100 * float64(mi.RSS) / float64(totalMem),
		RSSBytes:      mi.RSS,
	}, nil
}

// handleFor reuses the cached handle for pid unless the PID now belongs to a
// different process, detected through its creation time.
func (c *Collector) handleFor(ctx context.Context, pid int32) (handle, error) {
	fresh, err := c.open(ctx, pid)
	if err != nil {
		return nil, err
	}
	createdAt, err := fresh.CreateTimeWithContext(ctx)
	if err != nil {
		return nil, err
	}
	if entry, ok := c.cache.Get(pid); ok && entry.createdAt == createdAt {
		return entry.handle, nil
	}
	c.cache.Add(pid, &cacheEntry{handle: fresh, createdAt: createdAt})
	return fresh, nil
}

func unavailable(pid int32, cause error) error {
	return fmt.Errorf("pid %d: %w: %w", pid, ErrProcessUnavailable, cause)
}
