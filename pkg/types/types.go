package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTopK controls how many top processes we display per resource category.
const DefaultTopK = 10

// DefaultPeriod is the refresh cadence used when none is configured.
const DefaultPeriod = 500 * time.Millisecond

// ProcessSample holds one process's resource usage at one tick.
type ProcessSample struct {
	PID  int32
	Name string
	// CPUPercent is averaged since the previous sample of the same process and
	// ranges from 0 to NumCPU*100.
	CPUPercent    float64
	MemoryPercent float64
	RSSBytes      uint64
}

// SystemUsage describes host-wide load at the time of a snapshot.
type SystemUsage struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Snapshot is the set of process samples captured during one tick.
// Samples keeps collection order and must not be modified once the snapshot is built.
type Snapshot struct {
	CapturedAt time.Time
	Samples    []ProcessSample
	System     *SystemUsage
	// Dropped counts processes that were enumerated but could not be read.
	Dropped int
}

// Metric selects the value processes are ranked by.
type Metric int

const (
	MetricCPU Metric = iota
	MetricMemory
)

func (m Metric) String() string {
	switch m {
	case MetricCPU:
		return "cpu"
	case MetricMemory:
		return "memory"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// Valid reports whether m is one of the known metrics.
func (m Metric) Valid() bool {
	return m == MetricCPU || m == MetricMemory
}

// Value extracts the ranking value for m from a sample.
func (m Metric) Value(s ProcessSample) float64 {
	if m == MetricMemory {
		return s.MemoryPercent
	}
	return s.CPUPercent
}

// ParseMetric accepts "cpu" or "memory" (also "mem"), case-insensitive.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return MetricCPU, nil
	case "memory", "mem":
		return MetricMemory, nil
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}

// RankedView is the top-N slice of a snapshot ordered by one metric.
type RankedView struct {
	Metric     Metric
	CapturedAt time.Time
	Entries    []ProcessSample
	// Total is the number of processes the view was ranked from.
	Total  int
	System *SystemUsage
}
